package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/murmur/internal/optimistic"
)

const (
	meterName = "github.com/wolfeidau/murmur"
)

// Metrics holds the OpenTelemetry instruments used by the client.
type Metrics struct {
	MutationsTotal   metric.Int64Counter
	MutationDuration metric.Float64Histogram
	RollbacksTotal   metric.Int64Counter

	SessionTransitionsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = NewMetrics(otel.GetMeterProvider())
	})
	return metrics
}

// NewMetrics registers the instruments against the given provider.
func NewMetrics(provider metric.MeterProvider) *Metrics {
	meter := provider.Meter(meterName)

	m := &Metrics{}

	m.MutationsTotal, _ = meter.Int64Counter(
		"murmur.mutations.total",
		metric.WithDescription("Total number of optimistic mutations by kind and outcome"),
		metric.WithUnit("{mutation}"),
	)

	m.MutationDuration, _ = meter.Float64Histogram(
		"murmur.mutations.duration",
		metric.WithDescription("Time from optimistic apply to server confirmation or rollback"),
		metric.WithUnit("ms"),
	)

	m.RollbacksTotal, _ = meter.Int64Counter(
		"murmur.mutations.rollbacks.total",
		metric.WithDescription("Total number of optimistic mutations rolled back"),
		metric.WithUnit("{mutation}"),
	)

	m.SessionTransitionsTotal, _ = meter.Int64Counter(
		"murmur.session.transitions.total",
		metric.WithDescription("Total number of session state transitions"),
		metric.WithUnit("{transition}"),
	)

	return m
}

var _ optimistic.Observer = (*Metrics)(nil)

// MutationFinished records an optimistic mutation outcome.
func (m *Metrics) MutationFinished(ctx context.Context, kind string, outcome optimistic.Outcome, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", string(outcome)),
	)

	m.MutationsTotal.Add(ctx, 1, attrs)
	m.MutationDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)

	if outcome == optimistic.OutcomeRolledBack {
		m.RollbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// SessionChanged counts a session transition, labelled by whether it ended authenticated.
func (m *Metrics) SessionChanged(ctx context.Context, authenticated bool) {
	m.SessionTransitionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("authenticated", authenticated)))
}
