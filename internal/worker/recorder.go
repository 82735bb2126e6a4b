package worker

import (
	"log/slog"
	"sync/atomic"

	"github.com/killindicator/extension/internal/storage"
	"github.com/killindicator/extension/pkg/core"
)

// recorder hands every kill and shown indicator to the storage backend and
// the metrics sink. It runs under the session lock, so both sinks must only
// enqueue.
type recorder struct {
	backend storage.Backend
	metrics Metrics
	logger  *slog.Logger

	kills      atomic.Uint64
	indicators atomic.Uint64
	errors     atomic.Uint64
}

func newRecorder(backend storage.Backend, metrics Metrics, logger *slog.Logger) *recorder {
	return &recorder{backend: backend, metrics: metrics, logger: logger}
}

func (r *recorder) RecordKill(k core.KillEvent) {
	r.kills.Add(1)
	if r.backend != nil {
		if err := r.backend.RecordKill(&k); err != nil {
			r.errors.Add(1)
			r.logger.Warn("Failed to record kill", "entity", k.Entity, "error", err)
		}
	}
	if r.metrics != nil {
		if err := r.metrics.RecordKill(k); err != nil {
			r.logger.Debug("Failed to write kill metric", "error", err)
		}
	}
}

func (r *recorder) RecordIndicator(e core.IndicatorEvent) {
	r.indicators.Add(1)
	if r.backend != nil {
		if err := r.backend.RecordIndicator(&e); err != nil {
			r.errors.Add(1)
			r.logger.Warn("Failed to record indicator", "entity", e.Entity, "source", e.Source.String(), "error", err)
		}
	}
	if r.metrics != nil {
		if err := r.metrics.RecordIndicator(e); err != nil {
			r.logger.Debug("Failed to write indicator metric", "error", err)
		}
	}
}
