// internal/storage/memory/memory.go
package memory

import (
	"sync"
	"time"

	"github.com/killindicator/extension/internal/config"
	"github.com/killindicator/extension/pkg/core"
)

// Backend stores the session's kill feed in memory and exports it to JSON
type Backend struct {
	cfg     config.MemoryConfig
	version string
	session *core.SessionInfo
	started time.Time
	ended   time.Time

	kills      []core.KillEvent
	indicators []core.IndicatorEvent

	lastExportPath string
	lastMeta       exportMeta
	now            func() time.Time
	mu             sync.RWMutex
}

// exportMeta is captured at export time so metadata survives the reset of
// the next session.
type exportMeta struct {
	role       string
	node       uint64
	duration   time.Duration
	kills      int
	indicators int
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, version string) *Backend {
	return &Backend{
		cfg:     cfg,
		version: version,
		now:     time.Now,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(info *core.SessionInfo) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := *info
	b.session = &s
	b.started = b.now()
	b.ended = time.Time{}

	// Reset all collections
	b.kills = nil
	b.indicators = nil

	return nil
}

// EndSession finalizes and exports the session data. Without a started
// session there is nothing to export.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	b.ended = b.now()
	return b.exportJSON()
}

// RecordKill records an attributed kill
func (b *Backend) RecordKill(e *core.KillEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kills = append(b.kills, *e)
	return nil
}

// RecordIndicator records a shown confirmation
func (b *Backend) RecordIndicator(e *core.IndicatorEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.indicators = append(b.indicators, *e)
	return nil
}

// Counts returns the number of recorded kills and indicators.
func (b *Backend) Counts() (kills, indicators int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.kills), len(b.indicators)
}
