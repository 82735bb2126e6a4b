package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewDispatcherLogger(t *testing.T) {
	dl := NewDispatcherLogger(zerolog.New(&bytes.Buffer{}))
	assert.NotNil(t, dl)
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*DispatcherLogger)
		level string
		msg   string
		key   string
		value any
	}{
		{
			name:  "debug",
			log:   func(d *DispatcherLogger) { d.Debug("test message", "key1", "value1") },
			level: "debug",
			msg:   "test message",
			key:   "key1",
			value: "value1",
		},
		{
			name:  "info",
			log:   func(d *DispatcherLogger) { d.Info("info message", "status", "ok") },
			level: "info",
			msg:   "info message",
			key:   "status",
			value: "ok",
		},
		{
			name:  "error",
			log:   func(d *DispatcherLogger) { d.Error("error occurred", "code", 500) },
			level: "error",
			msg:   "error occurred",
			key:   "code",
			value: float64(500),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.msg, entry["message"])
			assert.Equal(t, tt.value, entry[tt.key])
		})
	}
}

func TestDispatcherLogger_ErrorValueFlattened(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("handler failed", "command", ":DAMAGE:", "error", errors.New("boom"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, ":DAMAGE:", entry["command"])
}

func TestDispatcherLogger_OddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("odd", "a", 1, "dangling", 2, "b")

	entry := decodeLine(t, &buf)
	assert.Equal(t, float64(1), entry["a"])
	assert.Equal(t, float64(2), entry["dangling"])
	assert.NotContains(t, entry, "b")
}

func TestDispatcherLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(NewZerolog(&buf, "info"))

	dl.Debug("hidden")
	assert.Zero(t, buf.Len())

	dl.Info("shown")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "dispatcher", entry["component"])
	assert.Contains(t, entry, "time")
}

func TestNewZerolog_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	NewDispatcherLogger(NewZerolog(&buf, "nonsense")).Debug("hidden")
	assert.Zero(t, buf.Len())
}
