package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/flightops/flight-data-server/sync"

	// PhaseMetricsMeterName is the name used for the phase engine meter
	PhaseMetricsMeterName = "github.com/flightops/flight-data-server/phase"
)

// Sync run outcomes
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeConfigError = "config_error"
)

// SyncMetrics holds the OpenTelemetry instruments for schedule runs
type SyncMetrics struct {
	runDuration metric.Float64Histogram
	runsTotal   metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	runDuration, err := meter.Float64Histogram(
		"flightd_sync_run_duration_seconds",
		metric.WithDescription("Duration of schedule runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	runsTotal, err := meter.Int64Counter(
		"flightd_sync_runs_total",
		metric.WithDescription("Number of schedule runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{runDuration: runDuration, runsTotal: runsTotal}, nil
}

// RecordRun records one schedule run
func (m *SyncMetrics) RecordRun(ctx context.Context, schedule, model, outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("schedule", schedule),
		attribute.String("model", model),
		attribute.String("outcome", outcome),
	)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
	m.runsTotal.Add(ctx, 1, attrs)
}

// PhaseMetrics counts phase duration derivations
type PhaseMetrics struct {
	recomputes metric.Int64Counter
	written    metric.Int64Counter
	deleted    metric.Int64Counter
}

// NewPhaseMetrics creates a new PhaseMetrics instance. A nil provider yields nil.
func NewPhaseMetrics(provider metric.MeterProvider) (*PhaseMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(PhaseMetricsMeterName)

	recomputes, err := meter.Int64Counter(
		"flightd_phase_recomputes_total",
		metric.WithDescription("Number of phase duration recomputations"),
		metric.WithUnit("{recompute}"),
	)
	if err != nil {
		return nil, err
	}
	written, err := meter.Int64Counter(
		"flightd_phase_durations_written_total",
		metric.WithDescription("Phase duration records created or changed"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}
	deleted, err := meter.Int64Counter(
		"flightd_phase_durations_deleted_total",
		metric.WithDescription("Stale phase duration records removed"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &PhaseMetrics{recomputes: recomputes, written: written, deleted: deleted}, nil
}

// RecordRecompute records one recomputation and the records it touched
func (m *PhaseMetrics) RecordRecompute(ctx context.Context, written, deleted int) {
	if m == nil {
		return
	}
	m.recomputes.Add(ctx, 1)
	m.written.Add(ctx, int64(written))
	m.deleted.Add(ctx, int64(deleted))
}
