package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collect gathers the metrics of one scope from a manual reader
func collect(t *testing.T, reader *sdkmetric.ManualReader, scopeName string) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != scopeName {
			continue
		}
		for _, m := range scope.Metrics {
			found[m.Name] = m
		}
	}
	return found
}

func TestNewJoinMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewJoinMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		t.Parallel()

		var metrics *JoinMetrics
		metrics.RecordBatchDuration(context.Background(), "g", time.Second)
		metrics.RecordProtocolViolation(context.Background(), "g")
		metrics.RecordWait(context.Background(), "g", "completed")
	})
}

func TestJoinMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewJoinMetrics(mp)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.RecordBatchDuration(ctx, "games", 1500*time.Millisecond)
	metrics.RecordProtocolViolation(ctx, "games")
	metrics.RecordProtocolViolation(ctx, "games")
	metrics.RecordWait(ctx, "games", "timed_out")

	found := collect(t, reader, JoinMetricsMeterName)

	hist, ok := found["joingroup_batch_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected histogram data type")
	require.Len(t, hist.DataPoints, 1)
	assert.InDelta(t, 1.5, hist.DataPoints[0].Sum, 0.001)

	violations, ok := found["joingroup_protocol_violations_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected sum data type")
	require.Len(t, violations.DataPoints, 1)
	assert.Equal(t, int64(2), violations.DataPoints[0].Value)

	waits, ok := found["joingroup_waits_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected sum data type")
	require.Len(t, waits.DataPoints, 1)
	outcome, _ := waits.DataPoints[0].Attributes.Value("outcome")
	assert.Equal(t, "timed_out", outcome.AsString())
}

func TestFetchMetrics_RecordFetchDuration(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewFetchMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)

		// Should not panic
		metrics.RecordFetchDuration(context.Background(), "game", time.Second, true)
	})

	t.Run("records duration per kind and outcome", func(t *testing.T) {
		t.Parallel()

		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		defer func() { _ = mp.Shutdown(context.Background()) }()

		metrics, err := NewFetchMetrics(mp)
		require.NoError(t, err)

		metrics.RecordFetchDuration(context.Background(), "game", 250*time.Millisecond, true)
		metrics.RecordFetchDuration(context.Background(), "profile", 100*time.Millisecond, false)

		found := collect(t, reader, FetchMetricsMeterName)
		hist, ok := found["joingroup_fetch_duration_seconds"].Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		assert.Len(t, hist.DataPoints, 2)
	})
}
