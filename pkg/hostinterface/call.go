package hostinterface

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/killindicator/extension/internal/dispatcher"
)

// TimestampCommand is answered without a dispatcher.
const TimestampCommand = ":TIMESTAMP:"

// Call handles a call without arguments. "command|extra" falls back to
// "command" when only the prefix has a handler; the full input is then
// passed as the single argument.
func Call(input string) string {
	if input == TimestampCommand {
		return strconv.FormatInt(time.Now().UTC().UnixNano(), 10)
	}

	command := input
	args := []string(nil)
	if d := GetDispatcher(); d != nil && !d.HasHandler(input) {
		if prefix := strings.Split(input, "|")[0]; d.HasHandler(prefix) {
			command = prefix
			args = []string{input}
		}
	}
	return CallArgs(command, args)
}

// CallArgs handles a call with arguments.
func CallArgs(command string, args []string) string {
	d := GetDispatcher()
	if d == nil || !d.HasHandler(command) {
		return formatDispatchResponse(command, nil, fmt.Errorf("no handler registered for %s", command))
	}

	result, err := d.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	return formatDispatchResponse(command, result, err)
}

// quote doubles inner quotes the way the host escapes strings.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// formatDispatchResponse formats the dispatcher result for the host
func formatDispatchResponse(command string, result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", %s]`, quote(err.Error()))
	}
	switch v := result.(type) {
	case nil:
		return `["ok"]`
	case string:
		return fmt.Sprintf(`["ok", %s]`, quote(v))
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`["error", %s]`, quote(fmt.Sprintf("%s: encoding result: %v", command, err)))
	}
	return fmt.Sprintf(`["ok", %s]`, data)
}
