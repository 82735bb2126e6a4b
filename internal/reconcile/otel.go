package reconcile

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/killindicator/extension/internal/reconcile"

type metrics struct {
	outcomes metric.Int64Counter
	delay    metric.Int64Histogram
}

func newMetrics() (*metrics, error) {
	m := otel.Meter(instrumentationName)

	outcomes, err := m.Int64Counter(
		"reconcile.outcomes",
		metric.WithDescription("Reconciliation outcomes by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating outcomes counter: %w", err)
	}

	delay, err := m.Int64Histogram(
		"reconcile.delay",
		metric.WithDescription("Time from local hit to shown confirmation"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delay histogram: %w", err)
	}

	return &metrics{outcomes: outcomes, delay: delay}, nil
}

func (m *metrics) outcome(name string) {
	m.outcomes.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", name)))
}

func (m *metrics) observeDelay(ms int64, source string) {
	m.delay.Record(context.Background(), ms, metric.WithAttributes(attribute.String("source", source)))
}
