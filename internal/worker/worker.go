package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/killindicator/extension/internal/cache"
	"github.com/killindicator/extension/internal/config"
	"github.com/killindicator/extension/internal/outbox"
	"github.com/killindicator/extension/internal/parser"
	"github.com/killindicator/extension/internal/session"
	"github.com/killindicator/extension/internal/storage"
	"github.com/killindicator/extension/pkg/api"
	"github.com/killindicator/extension/pkg/core"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

// ErrNoSession is returned by session commands before :SESSION:START:.
var ErrNoSession = errors.New("no active session")

// Metrics receives the delay metrics of every recorded event.
type Metrics interface {
	SetRole(role string)
	RecordKill(core.KillEvent) error
	RecordIndicator(core.IndicatorEvent) error
	WritePoint(*influxdb2_write.Point) error
	Flush() error
}

// Uploader sends an exported kill feed to the feed server.
type Uploader interface {
	Upload(filePath string, meta core.FeedMetadata) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	World     *cache.World
	Outbox    *outbox.Outbox
	Listeners *api.Listeners
	Parser    *parser.Parser
	Logger    *slog.Logger
	Reconcile config.ReconcileConfig

	// Optional.
	Metrics  Metrics
	Uploader Uploader
}

// Manager owns the active session and feeds it host commands.
type Manager struct {
	deps     Dependencies
	backend  storage.Backend
	recorder *recorder

	mu      sync.RWMutex
	session *session.Session
}

// NewManager creates a new worker manager. backend may be nil when no
// kill feed is recorded.
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.World == nil {
		deps.World = cache.NewWorld()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger)
	}
	if deps.Listeners == nil {
		deps.Listeners = api.NewListeners(deps.Logger)
	}
	if deps.Outbox == nil {
		deps.Outbox = outbox.New(deps.World, deps.Reconcile.OutboxLimit)
	}
	return &Manager{
		deps:     deps,
		backend:  backend,
		recorder: newRecorder(backend, deps.Metrics, deps.Logger),
	}
}

// Outbox returns the queue the host drains with :POLL:.
func (m *Manager) Outbox() *outbox.Outbox {
	return m.deps.Outbox
}

// Listeners returns the typed listener registry.
func (m *Manager) Listeners() *api.Listeners {
	return m.deps.Listeners
}

// SessionInfo reports the role and node of the active session.
func (m *Manager) SessionInfo() (role string, node uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return "", 0
	}
	info := m.session.Info()
	return info.Role.String(), uint64(info.LocalNode)
}

func (m *Manager) current() (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, ErrNoSession
	}
	return m.session, nil
}

// StartSession replaces the active session. A previous session is ended as
// if :SAVE: had been received.
func (m *Manager) StartSession(info core.SessionInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.endSessionLocked()
	}

	s, err := session.New(info, session.Config{
		Window:         m.deps.Reconcile.Window,
		SkewTolerance:  m.deps.Reconcile.SkewTolerance,
		MarkerLifetime: m.deps.Reconcile.MarkerLifetime,
		MineGearIDs:    m.deps.Reconcile.MineGearIDs,
	}, session.Deps{
		World:     m.deps.World,
		Display:   m.deps.Outbox,
		Transport: m.deps.Outbox,
		Listeners: m.deps.Listeners,
		Recorder:  m.recorder,
		Logger:    m.deps.Logger,
	})
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	m.session = s
	m.deps.Outbox.Clear()

	if m.deps.Metrics != nil {
		m.deps.Metrics.SetRole(info.Role.String())
	}
	if m.backend != nil {
		if err := m.backend.StartSession(&info); err != nil {
			m.deps.Logger.Error("Failed to start session in storage backend", "error", err)
		}
	}
	return nil
}

// EndSession closes the active session, finishes its recording and forgets
// the world the host reported.
func (m *Manager) EndSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNoSession
	}
	err := m.endSessionLocked()
	m.deps.World.Reset()
	return err
}

func (m *Manager) endSessionLocked() error {
	m.session.Close()
	m.session = nil

	var errs []error
	if m.backend != nil {
		if err := m.backend.EndSession(); err != nil {
			errs = append(errs, fmt.Errorf("ending storage session: %w", err))
		} else {
			m.upload()
		}
	}
	if m.deps.Metrics != nil {
		if err := m.deps.Metrics.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flushing metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) upload() {
	if m.deps.Uploader == nil {
		return
	}
	u, ok := m.backend.(storage.Uploadable)
	if !ok {
		return
	}
	path := u.ExportedFilePath()
	if path == "" {
		return
	}
	if err := m.deps.Uploader.Upload(path, u.ExportMetadata()); err != nil {
		m.deps.Logger.Warn("Failed to upload kill feed", "path", path, "error", err)
		return
	}
	m.deps.Logger.Info("Uploaded kill feed", "path", path)
}

// Stats is a snapshot for the status monitor.
type Stats struct {
	Session         *session.Status `json:"session,omitempty"`
	KillsRecorded   uint64          `json:"killsRecorded"`
	IndicatorsShown uint64          `json:"indicatorsShown"`
	RecordErrors    uint64          `json:"recordErrors"`
	ListenerCount   int             `json:"listeners"`
}

// Stats reports counters of the active session and the recorder.
func (m *Manager) Stats() Stats {
	st := Stats{
		KillsRecorded:   m.recorder.kills.Load(),
		IndicatorsShown: m.recorder.indicators.Load(),
		RecordErrors:    m.recorder.errors.Load(),
		ListenerCount:   m.deps.Listeners.Len(),
	}
	if s, err := m.current(); err == nil {
		status := s.Status()
		st.Session = &status
	}
	return st
}

// Close ends any active session and releases the storage backend.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.session != nil {
		errs = append(errs, m.endSessionLocked())
	}
	if m.backend != nil {
		errs = append(errs, m.backend.Close())
	}
	return errors.Join(errs...)
}
