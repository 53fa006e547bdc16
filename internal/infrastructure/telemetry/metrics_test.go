package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/stockledger/backend/internal/infrastructure/telemetry"
)

// collect reads every metric recorded through the reader, keyed by name
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

// sumFor returns the int64 sum data point matching the attribute
func sumFor(t *testing.T, m metricdata.Metrics, kv attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(kv.Key); ok && v == kv.Value {
			total += dp.Value
		}
	}
	return total
}

func newTestMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "stock-ledger"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_NilLogger(t *testing.T) {
	mp, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
}

func TestCounterAndHistogram(t *testing.T) {
	reader, provider := newTestMeter()
	meter := provider.Meter("test")
	ctx := context.Background()

	counter, err := telemetry.NewCounter(meter, "pushes", "pushes", "{pushes}")
	require.NoError(t, err)
	counter.Add(ctx, 4, attribute.String("channel", "WB"))
	counter.Inc(ctx, attribute.String("channel", "WB"))
	counter.Inc(ctx, attribute.String("channel", "OZON"))

	hist, err := telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name: "latency", Unit: "s", Boundaries: telemetry.HTTPDurationBuckets,
	})
	require.NoError(t, err)
	hist.RecordDuration(ctx, 250*time.Millisecond)

	got := collect(t, reader)
	assert.Equal(t, int64(5), sumFor(t, got["pushes"], attribute.String("channel", "WB")))
	assert.Equal(t, int64(1), sumFor(t, got["pushes"], attribute.String("channel", "OZON")))

	h, ok := got["latency"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.Equal(t, uint64(1), h.DataPoints[0].Count)
	assert.InDelta(t, 0.25, h.DataPoints[0].Sum, 1e-9)
	assert.Equal(t, telemetry.HTTPDurationBuckets, h.DataPoints[0].Bounds)
}

func TestGauge_Record(t *testing.T) {
	reader, provider := newTestMeter()
	g, err := telemetry.NewGauge(provider.Meter("test"), "low", "low", "{items}")
	require.NoError(t, err)

	g.Record(context.Background(), 3)
	g.Record(context.Background(), 7)

	gauge, ok := collect(t, reader)["low"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(7), gauge.DataPoints[0].Value)
}
