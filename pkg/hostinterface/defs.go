package hostinterface

import (
	"sync"

	"github.com/killindicator/extension/internal/dispatcher"
)

// Config defines how calls to this extension will be handled
var Config = configStruct{version: "No version set"}

type configStruct struct {
	mu sync.RWMutex

	// version is the value returned when the host first loads the extension
	version string

	// dispatcher handles event routing
	dispatcher *dispatcher.Dispatcher
}

// SetVersion sets the version string returned to the host on load.
func SetVersion(version string) {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	Config.version = version
}

// Version returns the configured version string.
func Version() string {
	Config.mu.RLock()
	defer Config.mu.RUnlock()
	return Config.version
}

// SetDispatcher sets the event dispatcher for handling commands
func SetDispatcher(d *dispatcher.Dispatcher) {
	Config.mu.Lock()
	defer Config.mu.Unlock()
	Config.dispatcher = d
}

// GetDispatcher returns the configured dispatcher, or nil if not set
func GetDispatcher() *dispatcher.Dispatcher {
	Config.mu.RLock()
	defer Config.mu.RUnlock()
	return Config.dispatcher
}
