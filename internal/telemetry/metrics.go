package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// JoinMetricsMeterName is the name used for the join coordinator meter
	JoinMetricsMeterName = "github.com/stacklok/joingroup/join"

	// FetchMetricsMeterName is the name used for the fetch orchestrator meter
	FetchMetricsMeterName = "github.com/stacklok/joingroup/fetch"
)

// JoinMetrics holds the OpenTelemetry instruments for join groups
type JoinMetrics struct {
	batchDuration metric.Float64Histogram
	violations    metric.Int64Counter
	waits         metric.Int64Counter
}

// NewJoinMetrics creates a new JoinMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewJoinMetrics(provider metric.MeterProvider) (*JoinMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(JoinMetricsMeterName)

	batchDuration, err := meter.Float64Histogram(
		"joingroup_batch_duration_seconds",
		metric.WithDescription("Time from the first enter of a batch to its drain"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	violations, err := meter.Int64Counter(
		"joingroup_protocol_violations_total",
		metric.WithDescription("Number of leave calls without a matching enter"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, err
	}

	waits, err := meter.Int64Counter(
		"joingroup_waits_total",
		metric.WithDescription("Number of blocking waits by outcome"),
		metric.WithUnit("{wait}"),
	)
	if err != nil {
		return nil, err
	}

	return &JoinMetrics{
		batchDuration: batchDuration,
		violations:    violations,
		waits:         waits,
	}, nil
}

// RecordBatchDuration records how long a batch took to drain
func (m *JoinMetrics) RecordBatchDuration(ctx context.Context, group string, duration time.Duration) {
	if m == nil || m.batchDuration == nil {
		return
	}
	m.batchDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("group", group)))
}

// RecordProtocolViolation counts an unbalanced leave
func (m *JoinMetrics) RecordProtocolViolation(ctx context.Context, group string) {
	if m == nil || m.violations == nil {
		return
	}
	m.violations.Add(ctx, 1, metric.WithAttributes(attribute.String("group", group)))
}

// RecordWait counts a finished wait with its outcome
func (m *JoinMetrics) RecordWait(ctx context.Context, group, outcome string) {
	if m == nil || m.waits == nil {
		return
	}
	m.waits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("group", group),
		attribute.String("outcome", outcome),
	))
}

// FetchMetrics holds the OpenTelemetry instruments for record fetches
type FetchMetrics struct {
	fetchDuration metric.Float64Histogram
}

// NewFetchMetrics creates a new FetchMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewFetchMetrics(provider metric.MeterProvider) (*FetchMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(FetchMetricsMeterName)

	fetchDuration, err := meter.Float64Histogram(
		"joingroup_fetch_duration_seconds",
		metric.WithDescription("Duration of single record fetches in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	return &FetchMetrics{fetchDuration: fetchDuration}, nil
}

// RecordFetchDuration records the duration of one fetch
func (m *FetchMetrics) RecordFetchDuration(ctx context.Context, kind string, duration time.Duration, success bool) {
	if m == nil || m.fetchDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	}

	m.fetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
