package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ajitpratap0/reservoir/pkg/metrics"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

// PoolAttribute is the attribute key carrying the pool name.
const PoolAttribute = attribute.Key("pool")

type int64Counter struct {
	inst  metric.Int64ObservableCounter
	value func(pool.Stats) uint64
}

type int64Gauge struct {
	inst  metric.Int64ObservableGauge
	value func(pool.Stats) int64
}

// ObservePools registers observable instruments that read snapshot on every
// collection. Unregister the returned registration when the pools go away.
func ObservePools(meter metric.Meter, snapshot metrics.SnapshotFunc) (metric.Registration, error) {
	var (
		counters []int64Counter
		gauges   []int64Gauge
		errs     []error
	)

	counter := func(name, desc string, value func(pool.Stats) uint64) {
		inst, err := meter.Int64ObservableCounter("reservoir.pool."+name,
			metric.WithDescription(desc), metric.WithUnit("{value}"))
		if err != nil {
			errs = append(errs, err)
			return
		}
		counters = append(counters, int64Counter{inst: inst, value: value})
	}
	gauge := func(name, desc string, value func(pool.Stats) int64) {
		inst, err := meter.Int64ObservableGauge("reservoir.pool."+name,
			metric.WithDescription(desc), metric.WithUnit("{value}"))
		if err != nil {
			errs = append(errs, err)
			return
		}
		gauges = append(gauges, int64Gauge{inst: inst, value: value})
	}

	counter("created", "Values created by the factory", func(s pool.Stats) uint64 { return s.Created })
	counter("destroyed", "Values destroyed", func(s pool.Stats) uint64 { return s.Destroyed })
	counter("hits", "Acquires served from the idle reserve", func(s pool.Stats) uint64 { return s.Hits })
	counter("misses", "Acquires that had to create a value", func(s pool.Stats) uint64 { return s.Misses })
	counter("overflow", "Releases destroyed because the idle reserve was full", func(s pool.Stats) uint64 { return s.Overflow })
	counter("reset_failed", "Releases rejected by the reset hook", func(s pool.Stats) uint64 { return s.ResetFailed })
	counter("resurrected", "Leaked values taken back by finalization", func(s pool.Stats) uint64 { return s.Resurrected })
	counter("returned", "Values accepted back into the idle reserve", func(s pool.Stats) uint64 { return s.Returned })
	counter("expired", "Idle values destroyed by the sweeper", func(s pool.Stats) uint64 { return s.Expired })
	counter("release_failed", "Release hooks that failed or panicked", func(s pool.Stats) uint64 { return s.ReleaseFailed })

	gauge("idle", "Values in the idle reserve", func(s pool.Stats) int64 { return int64(s.Idle) })
	gauge("in_use", "Values handed out and not returned", func(s pool.Stats) int64 { return s.InUse })
	gauge("live", "Values created and not destroyed", func(s pool.Stats) int64 { return s.Live() })

	hitRatio, err := meter.Float64ObservableGauge("reservoir.pool.hit_ratio",
		metric.WithDescription("Hits over total acquires"), metric.WithUnit("1"))
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, poolerrors.Wrap(errs[0], poolerrors.ErrorTypeInternal, "failed to create pool instruments").
			WithDetail("errors", len(errs))
	}

	observables := make([]metric.Observable, 0, len(counters)+len(gauges)+1)
	for _, c := range counters {
		observables = append(observables, c.inst)
	}
	for _, g := range gauges {
		observables = append(observables, g.inst)
	}
	observables = append(observables, hitRatio)

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, s := range snapshot() {
			attrs := metric.WithAttributes(PoolAttribute.String(s.Name))
			for _, c := range counters {
				o.ObserveInt64(c.inst, int64(c.value(s)), attrs)
			}
			for _, g := range gauges {
				o.ObserveInt64(g.inst, g.value(s), attrs)
			}
			o.ObserveFloat64(hitRatio, s.HitRate(), attrs)
		}
		return nil
	}, observables...)
}

// ObservePool is ObservePools for a single pool.
func ObservePool(meter metric.Meter, src metrics.Source) (metric.Registration, error) {
	return ObservePools(meter, func() []pool.Stats { return []pool.Stats{src.Stats()} })
}
