package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/reservoir/pkg/metrics"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
	"github.com/ajitpratap0/reservoir/pkg/testutil"
)

type buffer struct{ bytes.Buffer }

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumFor(t *testing.T, m metricdata.Metrics, poolName string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", m.Name)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(PoolAttribute); ok && v.AsString() == poolName {
			return dp.Value
		}
	}
	t.Fatalf("no data point for pool %q in %s", poolName, m.Name)
	return 0
}

func gaugeFor(t *testing.T, m metricdata.Metrics, poolName string) int64 {
	t.Helper()
	g, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok, "%s is not an int64 gauge", m.Name)
	for _, dp := range g.DataPoints {
		if v, ok := dp.Attributes.Value(PoolAttribute); ok && v.AsString() == poolName {
			return dp.Value
		}
	}
	t.Fatalf("no data point for pool %q in %s", poolName, m.Name)
	return 0
}

func TestObservePool(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	p, err := pool.New(
		pool.WithName[*buffer]("buffers"),
		pool.WithBounds[*buffer](0, 4),
		pool.WithDiagnostics[*buffer](),
		pool.WithLogger[*buffer](testutil.TestLogger(t)),
	)
	require.NoError(t, err)
	defer p.Close()

	reg, err := ObservePool(mp.Meter("test"), p)
	require.NoError(t, err)

	a, err := p.Get()
	require.NoError(t, err)
	b, err := p.Get()
	require.NoError(t, err)
	p.Put(a)
	v, err := p.Get()
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	created, ok := findMetric(rm, "reservoir.pool.created")
	require.True(t, ok)
	assert.Equal(t, int64(2), sumFor(t, created, "buffers"))

	hits, ok := findMetric(rm, "reservoir.pool.hits")
	require.True(t, ok)
	assert.Equal(t, int64(1), sumFor(t, hits, "buffers"))

	inUse, ok := findMetric(rm, "reservoir.pool.in_use")
	require.True(t, ok)
	assert.Equal(t, int64(2), gaugeFor(t, inUse, "buffers"))

	p.Put(v)
	p.Put(b)
	assert.NoError(t, reg.Unregister())
}

func TestObserveKeyedPool(t *testing.T) {
	prov, err := NewProvider(Config{ServiceName: "test", ExporterType: ExporterNone})
	require.NoError(t, err)
	defer prov.Shutdown(context.Background())

	kp, err := pool.NewKeyed(
		func(string) (*buffer, error) { return &buffer{}, nil },
		pool.WithName[*buffer]("tenants"),
		pool.WithBounds[*buffer](0, 2),
		pool.WithLogger[*buffer](testutil.TestLogger(t)),
	)
	require.NoError(t, err)
	defer kp.Close()

	for _, tenant := range []string{"a", "b"} {
		v, err := kp.Get(tenant)
		require.NoError(t, err)
		kp.Put(tenant, v)
	}

	_, err = ObservePools(prov.Meter(), metrics.Keyed(kp))
	require.NoError(t, err)

	rm, err := prov.Collect(context.Background())
	require.NoError(t, err)

	idle, ok := findMetric(rm, "reservoir.pool.idle")
	require.True(t, ok)
	assert.Equal(t, int64(1), gaugeFor(t, idle, "tenants[a]"))
	assert.Equal(t, int64(1), gaugeFor(t, idle, "tenants[b]"))
}

func TestTraceRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prov, err := NewProvider(Config{ServiceName: "test", SamplingRate: 1}, WithSpanProcessor(recorder))
	require.NoError(t, err)
	defer prov.Shutdown(context.Background())

	boom := errors.New("boom")
	err = Trace(context.Background(), prov.Tracer(), "fails", func(ctx context.Context) error {
		AddEvent(ctx, "halfway", attribute.Int("step", 1))
		return boom
	}, attribute.String("flavor", "widget"))
	assert.ErrorIs(t, err, boom)

	require.NoError(t, Trace(context.Background(), prov.Tracer(), "works", func(context.Context) error { return nil }))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "fails", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 2) // halfway + exception
	assert.Equal(t, "halfway", spans[0].Events()[0].Name)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)

	// No span in the context means nothing to record
	assert.NotPanics(t, func() { AddEvent(context.Background(), "ignored") })
}

func TestStdoutExporter(t *testing.T) {
	var out bytes.Buffer
	prov, err := NewProvider(Config{ServiceName: "test", SamplingRate: 1, ExporterType: ExporterStdout}, WithWriter(&out))
	require.NoError(t, err)

	_, span := prov.StartSpan(context.Background(), "exported", attribute.String("pool", "p"))
	span.End()

	require.NoError(t, prov.Shutdown(context.Background()))
	assert.Contains(t, out.String(), "exported")
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(Config{ServiceName: "test", ExporterType: "jaeger"})
	require.Error(t, err)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("TRACING_EXPORTER", ExporterStdout)
	cfg := DefaultConfig()
	assert.Equal(t, "reservoir", cfg.ServiceName)
	assert.Equal(t, ExporterStdout, cfg.ExporterType)
}
