// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine. The sqlite and
// postgres backends wrap it with their own connection handling.
package gormstorage

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/killindicator/extension/internal/database"
	"github.com/killindicator/extension/internal/model"
	"github.com/killindicator/extension/internal/model/convert"
	"github.com/killindicator/extension/internal/queue"
	"github.com/killindicator/extension/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	Version       string
	FlushInterval time.Duration
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Kills      *queue.Queue[model.Kill]
	Indicators *queue.Queue[model.Indicator]
}

func newQueues() *queues {
	return &queues{
		Kills:      queue.New[model.Kill](),
		Indicators: queue.New[model.Indicator](),
	}
}

// Backend implements storage.Backend on top of a *gorm.DB.
type Backend struct {
	deps      Dependencies
	queues    *queues
	sessionID atomic.Uint64
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	flushMu   sync.Mutex
	now       func() time.Time
}

// New creates a new GORM storage backend. A nil DB runs in queue-only mode.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		deps: deps,
		now:  time.Now,
	}
}

// SetDB injects the connection before Init; wrappers open it lazily.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

// DB returns the underlying connection, nil in queue-only mode.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init creates internal queues, runs schema migration, and starts the DB writer goroutine.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})
	b.stopOnce = sync.Once{}

	if b.deps.DB == nil {
		return nil
	}

	if err := database.Setup(b.deps.DB, b.deps.Logger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	if b.deps.FlushInterval > 0 {
		b.wg.Add(1)
		go b.writerLoop()
	}
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	return b.Flush()
}

// StartSession inserts the session row; later events reference it.
func (b *Backend) StartSession(info *core.SessionInfo) error {
	if b.deps.DB == nil {
		return nil
	}

	row := convert.CoreToSession(*info, b.now(), b.deps.Version)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	b.sessionID.Store(uint64(row.ID))
	b.deps.Logger.Info("Kill feed session created", "sessionId", row.ID, "role", row.Role)
	return nil
}

// EndSession flushes pending rows and stamps the end time.
func (b *Backend) EndSession() error {
	if err := b.Flush(); err != nil {
		return err
	}
	id := b.sessionID.Swap(0)
	if b.deps.DB == nil || id == 0 {
		return nil
	}
	err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("end_time", b.now()).Error
	if err != nil {
		return fmt.Errorf("failed to close session %d: %w", id, err)
	}
	return nil
}

// SessionID returns the current session row id, 0 when none.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// RecordKill queues a kill row.
func (b *Backend) RecordKill(e *core.KillEvent) error {
	if b.queues == nil {
		return fmt.Errorf("backend not initialized")
	}
	b.queues.Kills.Push(convert.CoreToKill(*e, b.SessionID(), b.now()))
	return nil
}

// RecordIndicator queues an indicator row.
func (b *Backend) RecordIndicator(e *core.IndicatorEvent) error {
	if b.queues == nil {
		return fmt.Errorf("backend not initialized")
	}
	b.queues.Indicators.Push(convert.CoreToIndicator(*e, b.SessionID(), b.now()))
	return nil
}

// Pending returns the number of queued rows.
func (b *Backend) Pending() int {
	if b.queues == nil {
		return 0
	}
	return b.queues.Kills.Len() + b.queues.Indicators.Len()
}

// Flush writes every queued row. Rows are only dequeued when a DB is set.
func (b *Backend) Flush() error {
	if b.deps.DB == nil || b.queues == nil {
		return nil
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if kills := b.queues.Kills.GetAndEmpty(); len(kills) > 0 {
		if err := b.deps.DB.Omit(clause.Associations).CreateInBatches(&kills, 500).Error; err != nil {
			return fmt.Errorf("failed to write %d kills: %w", len(kills), err)
		}
	}
	if inds := b.queues.Indicators.GetAndEmpty(); len(inds) > 0 {
		if err := b.deps.DB.Omit(clause.Associations).CreateInBatches(&inds, 500).Error; err != nil {
			return fmt.Errorf("failed to write %d indicators: %w", len(inds), err)
		}
	}
	return nil
}

func (b *Backend) writerLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			pending := b.Pending()
			if pending == 0 {
				continue
			}
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("Error writing kill feed", "error", err)
				continue
			}
			b.deps.Logger.Debug("Wrote kill feed rows", "rows", pending, "duration", time.Since(start))
		}
	}
}
