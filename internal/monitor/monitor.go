package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/killindicator/extension/internal/outbox"
	"github.com/killindicator/extension/internal/worker"
)

// StatusFileName is written next to the logs while the monitor runs.
const StatusFileName = "status.json"

// StatsSource reports worker counters.
type StatsSource interface {
	Stats() worker.Stats
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Worker   StatsSource
	Outbox   *outbox.Outbox
	Logger   *slog.Logger
	Dir      string
	Interval time.Duration
}

// Snapshot is the :STATUS: reply.
type Snapshot struct {
	Time          time.Time    `json:"time"`
	Worker        worker.Stats `json:"worker"`
	OutboxPending int          `json:"outboxPending"`
	OutboxDropped uint64       `json:"outboxDropped"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current program status
func (s *Service) GetStatus() Snapshot {
	snap := Snapshot{Time: time.Now().UTC()}
	if s.deps.Worker != nil {
		snap.Worker = s.deps.Worker.Stats()
	}
	if s.deps.Outbox != nil {
		snap.OutboxPending = s.deps.Outbox.Len()
		snap.OutboxDropped = s.deps.Outbox.Dropped()
	}
	return snap
}

// StatusFilePath returns where the running monitor writes snapshots.
func (s *Service) StatusFilePath() string {
	return filepath.Join(s.deps.Dir, StatusFileName)
}

func (s *Service) writeStatus() error {
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}
	tmp := s.StatusFilePath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	return os.Rename(tmp, s.StatusFilePath())
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Dir == "" {
		s.mu.Unlock()
		return fmt.Errorf("monitor: no status directory configured")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "path", s.StatusFilePath())

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.writeStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
