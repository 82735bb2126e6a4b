// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend via composition; the only SQLite-specific concerns are
// (a) creating the database and (b) the disk dump.
package sqlitestorage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/killindicator/extension/internal/database"
	gormstorage "github.com/killindicator/extension/internal/storage/gorm"
	"github.com/killindicator/extension/pkg/core"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	// Path of an on-disk database. Empty keeps it in memory and dumps it.
	Path     string
	DumpDir  string
	Interval time.Duration
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg      Config
	deps     gormstorage.Dependencies
	dumpPath string
	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a new SQLite storage backend. The database is opened by Init.
func New(cfg Config, deps gormstorage.Dependencies) *Backend {
	return &Backend{
		Backend:  gormstorage.New(deps),
		cfg:      cfg,
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// Init opens the database, initializes the embedded GORM backend and starts
// the dump goroutine for in-memory databases.
func (b *Backend) Init() error {
	db, err := database.OpenSQLite(b.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	b.SetDB(db)

	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.Path == "" && b.cfg.DumpDir != "" && b.cfg.Interval > 0 {
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine and closes the embedded GORM backend.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	return b.Backend.Close()
}

// StartSession picks the dump file for this session.
func (b *Backend) StartSession(info *core.SessionInfo) error {
	if err := b.Backend.StartSession(info); err != nil {
		return err
	}
	if b.cfg.Path == "" && b.cfg.DumpDir != "" {
		name := fmt.Sprintf("killfeed_%s_%s.db", info.Role, time.Now().Format("20060102_150405"))
		b.dumpPath = filepath.Join(b.cfg.DumpDir, name)
	}
	return nil
}

// EndSession flushes and writes a final dump.
func (b *Backend) EndSession() error {
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	if b.dumpPath == "" {
		return nil
	}
	return b.dump()
}

// DumpPath returns where the in-memory database is dumped, empty when none.
func (b *Backend) DumpPath() string {
	return b.dumpPath
}

func (b *Backend) dump() error {
	if err := os.MkdirAll(filepath.Dir(b.dumpPath), 0o755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	if err := b.Flush(); err != nil {
		return err
	}
	return database.DumpMemoryDBToDisk(b.DB(), b.dumpPath)
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if b.dumpPath == "" {
				continue
			}
			start := time.Now()
			if err := b.dump(); err != nil {
				b.deps.Logger.Error("Error dumping kill feed to disk", "error", err)
			} else {
				b.deps.Logger.Debug("Dumped kill feed to disk", "path", b.dumpPath, "duration", time.Since(start))
			}
		}
	}
}
