// Package reservoir provides generic, thread-safe object pools that keep an
// idle reserve between a minimum and a maximum size, reset values on return,
// release the ones they cannot keep and recover values callers forgot to
// give back.
//
// # Architecture
//
// The pools live in pkg/pool and are layered:
//
// 1. Pool[T]: the core. Idle values sit in a lock-free MPMC queue; a single
// background adjust pass refills up to the minimum and trims down to the
// maximum. Counters for hits, misses, overflow and resurrections are
// optional and can be toggled at runtime.
//
// 2. KeyedPool[K, T]: one Pool[T] per key, created on first use with the
// same bounds and hooks, so connections or buffers for different targets
// never mix.
//
// 3. TimedPool[T]: a Pool[T] whose idle values expire after a timeout. A
// sweeper collects them and the minimum is refilled with fresh values.
//
// Values take part in the lifecycle by implementing Reset() bool and
// Release(), by embedding pool.Pooled (which also enables leak recovery), or
// through the WithReset and WithRelease options.
//
// # Quick Start
//
//	p, err := pool.New[*Conn](
//	    pool.WithBounds[*Conn](2, 16),
//	    pool.WithFactory(dial),
//	    pool.WithDiagnostics[*Conn](),
//	)
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	c, err := p.Get()
//	if err != nil {
//	    return err
//	}
//	defer p.Put(c)
//
// # Key Packages
//
//	pkg/pool         - Pool, KeyedPool and TimedPool
//	pkg/poolerrors   - Structured error handling
//	pkg/config       - YAML and environment configuration
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus collector for pool statistics
//	pkg/observability - OpenTelemetry traces and pool metrics
//	pkg/strings      - Pooled string builders
//	pkg/memstream    - Size-classed bytes.Buffer pools
//	pkg/compression  - Pooled compression codecs
//	pkg/lockfree     - Lock-free queue and counters
//
// # Benchmarking
//
// cmd/poolbench drives any of the pooled flavors under concurrent load:
//
//	poolbench run --flavor keyed --workers 8 --iterations 10000 --metrics-addr :9090
//	poolbench run --config pool.yaml --json
//
// Pool settings can be overridden with RESERVOIR_* environment variables,
// for example RESERVOIR_POOL_MAXIMUM_SIZE=64.
package reservoir
