// Package metrics exports pool statistics to Prometheus. It offers a
// collector that snapshots registered pools on every scrape, plus the timing
// helpers the workload driver uses for throughput and latency.
//
// # Overview
//
// The metrics package provides:
//   - A prometheus.Collector over pool.Stats snapshots
//   - reservoir_pool_* series labelled by pool name
//   - Throughput and latency tracking utilities
//
// # Basic Usage
//
//	collector := metrics.NewCollector()
//	if err := collector.Register(p); err != nil {
//	    return err
//	}
//	prometheus.MustRegister(collector)
//
//	// Keyed pools export one series set per sub-pool
//	collector.RegisterFunc(kp.Name(), metrics.Keyed(kp))
//
// # Metric Types
//
// Counter: diagnostics counters (created, destroyed, hits, ...). They only
// move while diagnostics are enabled on the pool.
// Gauge: idle, in_use, live, bounds and hit ratio.
//
// Nothing is recorded on the pool's hot path; all values are read at scrape
// time.
package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

const namespace = "reservoir"

// Source is anything that can snapshot a single pool. *pool.Pool and
// *pool.TimedPool satisfy it.
type Source interface {
	Name() string
	Stats() pool.Stats
}

// SnapshotFunc returns the current snapshots of a group of pools.
type SnapshotFunc func() []pool.Stats

// Keyed adapts a keyed pool into a SnapshotFunc with one snapshot per key.
func Keyed[K comparable, T any](k *pool.KeyedPool[K, T]) SnapshotFunc {
	return func() []pool.Stats {
		stats := k.Stats()
		out := make([]pool.Stats, 0, len(stats))
		for _, s := range stats {
			out = append(out, s)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	}
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(pool.Stats) uint64
}

type gaugeDesc struct {
	desc  *prometheus.Desc
	value func(pool.Stats) float64
}

// Collector implements prometheus.Collector over registered pools.
// Register it once with a registry; pools can be added and removed at any time.
type Collector struct {
	mu      sync.RWMutex
	sources map[string]SnapshotFunc

	counters []counterDesc
	gauges   []gaugeDesc
}

// NewCollector creates a collector with no pools.
//
// Example:
//
//	collector := metrics.NewCollector()
//	_ = collector.Register(p)
//	registry.MustRegister(collector)
func NewCollector() *Collector {
	c := &Collector{sources: make(map[string]SnapshotFunc)}

	counter := func(name, help string, value func(pool.Stats) uint64) {
		c.counters = append(c.counters, counterDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, []string{"pool"}, nil),
			value: value,
		})
	}
	gauge := func(name, help string, value func(pool.Stats) float64) {
		c.gauges = append(c.gauges, gaugeDesc{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, []string{"pool"}, nil),
			value: value,
		})
	}

	counter("created_total", "Values created by the factory", func(s pool.Stats) uint64 { return s.Created })
	counter("destroyed_total", "Values destroyed", func(s pool.Stats) uint64 { return s.Destroyed })
	counter("hits_total", "Acquires served from the idle reserve", func(s pool.Stats) uint64 { return s.Hits })
	counter("misses_total", "Acquires that had to create a value", func(s pool.Stats) uint64 { return s.Misses })
	counter("overflow_total", "Releases destroyed because the idle reserve was full", func(s pool.Stats) uint64 { return s.Overflow })
	counter("reset_failed_total", "Releases rejected by the reset hook", func(s pool.Stats) uint64 { return s.ResetFailed })
	counter("resurrected_total", "Leaked values taken back by finalization", func(s pool.Stats) uint64 { return s.Resurrected })
	counter("returned_total", "Values accepted back into the idle reserve", func(s pool.Stats) uint64 { return s.Returned })
	counter("expired_total", "Idle values destroyed by the sweeper", func(s pool.Stats) uint64 { return s.Expired })
	counter("release_failed_total", "Release hooks that failed or panicked", func(s pool.Stats) uint64 { return s.ReleaseFailed })

	gauge("idle", "Values in the idle reserve", func(s pool.Stats) float64 { return float64(s.Idle) })
	gauge("in_use", "Values handed out and not returned", func(s pool.Stats) float64 { return float64(s.InUse) })
	gauge("live", "Values created and not destroyed", func(s pool.Stats) float64 { return float64(s.Live()) })
	gauge("minimum_size", "Configured minimum idle reserve", func(s pool.Stats) float64 { return float64(s.MinimumSize) })
	gauge("maximum_size", "Configured maximum idle reserve", func(s pool.Stats) float64 { return float64(s.MaximumSize) })
	gauge("hit_ratio", "Hits over total acquires", func(s pool.Stats) float64 { return s.HitRate() })

	return c
}

// Register adds a single pool under its own name.
func (c *Collector) Register(src Source) error {
	return c.RegisterFunc(src.Name(), func() []pool.Stats { return []pool.Stats{src.Stats()} })
}

// RegisterFunc adds a group of pools under a registration name. The names
// inside the snapshots become the pool label.
func (c *Collector) RegisterFunc(name string, fn SnapshotFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.sources[name]; exists {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "pool already registered").
			WithDetail("pool", name)
	}
	c.sources[name] = fn
	return nil
}

// Unregister removes a registration. It reports whether one existed.
func (c *Collector) Unregister(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.sources[name]
	delete(c.sources, name)
	return ok
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counters {
		ch <- d.desc
	}
	for _, d := range c.gauges {
		ch <- d.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.Snapshot() {
		for _, d := range c.counters {
			ch <- prometheus.MustNewConstMetric(d.desc, prometheus.CounterValue, float64(d.value(s)), s.Name)
		}
		for _, d := range c.gauges {
			ch <- prometheus.MustNewConstMetric(d.desc, prometheus.GaugeValue, d.value(s), s.Name)
		}
	}
}

// Snapshot returns the stats of every registered pool, sorted by name.
// Duplicate pool names keep the first snapshot only.
func (c *Collector) Snapshot() []pool.Stats {
	c.mu.RLock()
	fns := make([]SnapshotFunc, 0, len(c.sources))
	for _, fn := range c.sources {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	var out []pool.Stats
	seen := make(map[string]struct{})
	for _, fn := range fns {
		for _, s := range fn() {
			if _, dup := seen[s.Name]; dup {
				continue
			}
			seen[s.Name] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
