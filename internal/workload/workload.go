// Package workload drives concurrent acquire/use/release cycles against a
// pool and reports throughput, latency percentiles and memory use.
//
// # Basic Usage
//
//	target, err := workload.NewTarget(cfg, log)
//	if err != nil {
//	    return err
//	}
//	defer target.Close()
//
//	report, err := workload.Run(ctx, cfg.Workload, target,
//	    workload.WithLogger(log),
//	)
//
// Each of the configured workers runs Iterations cycles. The run stops early
// on the first cycle error or when ctx is cancelled; the report is still
// returned and covers the cycles that completed.
package workload

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/reservoir/pkg/config"
	"github.com/ajitpratap0/reservoir/pkg/metrics"
	"github.com/ajitpratap0/reservoir/pkg/observability"
	"github.com/ajitpratap0/reservoir/pkg/pool"
)

const defaultLatencySamples = 10000

// Report summarizes a run.
type Report struct {
	Flavor       string         `json:"flavor"`
	Workers      int            `json:"workers"`
	Operations   int64          `json:"operations"`
	Errors       int64          `json:"errors"`
	Duration     time.Duration  `json:"duration"`
	OpsPerSecond float64        `json:"ops_per_second"`
	Latency      LatencySummary `json:"acquire_latency"`
	PeakRSS      uint64         `json:"peak_rss_bytes"`
	Pools        []pool.Stats   `json:"pools"`
}

// LatencySummary holds acquire latency percentiles.
type LatencySummary struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
	Max time.Duration `json:"max"`
}

type options struct {
	logger         *zap.Logger
	tracer         trace.Tracer
	latencySamples int
}

// Option configures Run.
type Option func(*options)

// WithLogger sets the logger used for progress and errors.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer records the run as a span on tracer. The default is the global
// otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithLatencySamples bounds how many acquire latencies are kept for
// percentiles.
func WithLatencySamples(n int) Option {
	return func(o *options) { o.latencySamples = n }
}

// Run drives target with cfg.GetWorkers() workers doing cfg.Iterations cycles
// each.
func Run(ctx context.Context, cfg config.WorkloadConfig, target Target, opts ...Option) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{
		logger:         zap.NewNop(),
		latencySamples: defaultLatencySamples,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("github.com/ajitpratap0/reservoir/internal/workload")
	}

	r := &runner{
		cfg:        cfg,
		target:     target,
		workers:    cfg.GetWorkers(),
		logger:     o.logger.With(zap.String("flavor", target.Flavor())),
		latency:    metrics.NewLatencyTracker(o.latencySamples),
		throughput: metrics.NewThroughputTracker(target.Flavor()),
		histogram:  metrics.AcquireLatency.WithLabelValues(target.Flavor()),
	}
	r.memory = newMemorySampler(r.logger)

	var report *Report
	err := observability.Trace(ctx, o.tracer, "workload.run", func(ctx context.Context) error {
		var err error
		report, err = r.run(ctx)
		return err
	},
		attribute.String("flavor", target.Flavor()),
		attribute.Int("workers", r.workers),
		attribute.Int("iterations", cfg.Iterations),
	)
	return report, err
}

type runner struct {
	cfg     config.WorkloadConfig
	target  Target
	workers int
	logger  *zap.Logger

	latency    *metrics.LatencyTracker
	throughput *metrics.ThroughputTracker
	histogram  prometheus.Observer
	memory     *memorySampler

	ops    atomic.Int64
	errors atomic.Int64
	max    atomic.Int64
}

func (r *runner) run(ctx context.Context) (*Report, error) {
	r.logger.Info("starting workload",
		zap.Int("workers", r.workers),
		zap.Int("iterations", r.cfg.Iterations),
		zap.Int("payload_size", r.cfg.PayloadSize),
		zap.Duration("hold", r.cfg.Hold))

	r.memory.sample(ctx)
	stopSampling := r.startSampling(ctx)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < r.workers; w++ {
		g.Go(func() error { return r.worker(gctx, w) })
	}
	err := g.Wait()
	elapsed := time.Since(start)

	stopSampling()
	r.memory.sample(ctx)

	report := r.report(elapsed)
	if err != nil {
		r.logger.Warn("workload stopped early",
			zap.Error(err),
			zap.Int64("operations", report.Operations))
		return report, err
	}

	r.logger.Info("workload completed",
		zap.Duration("duration", elapsed),
		zap.Int64("operations", report.Operations),
		zap.Float64("ops_per_second", report.OpsPerSecond),
		zap.Duration("p99", report.Latency.P99))
	return report, nil
}

func (r *runner) worker(ctx context.Context, id int) error {
	for i := 0; i < r.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		acquire, err := r.target.Cycle(ctx, id, i)
		if err != nil {
			r.errors.Add(1)
			return err
		}
		r.record(acquire)
	}
	return nil
}

func (r *runner) record(acquire time.Duration) {
	r.ops.Add(1)
	r.throughput.Increment(1)
	r.latency.Record(acquire)
	r.histogram.Observe(float64(acquire.Nanoseconds()))

	for {
		cur := r.max.Load()
		if int64(acquire) <= cur || r.max.CompareAndSwap(cur, int64(acquire)) {
			return
		}
	}
}

// startSampling publishes throughput and RSS every SampleInterval until the
// returned stop function is called.
func (r *runner) startSampling(ctx context.Context) func() {
	if r.cfg.SampleInterval <= 0 {
		return func() {}
	}
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.cfg.SampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				opsPerSec := r.throughput.GetAndReset()
				r.memory.sample(ctx)
				r.logger.Debug("workload sample",
					zap.Float64("ops_per_second", opsPerSec),
					zap.Int64("operations", r.ops.Load()))
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}

func (r *runner) report(elapsed time.Duration) *Report {
	ops := r.ops.Load()
	report := &Report{
		Flavor:     r.target.Flavor(),
		Workers:    r.workers,
		Operations: ops,
		Errors:     r.errors.Load(),
		Duration:   elapsed,
		Latency: LatencySummary{
			P50: r.latency.GetPercentile(50),
			P95: r.latency.GetPercentile(95),
			P99: r.latency.GetPercentile(99),
			Max: time.Duration(r.max.Load()),
		},
		PeakRSS: r.memory.peak.Load(),
		Pools:   r.target.Stats(),
	}
	if elapsed > 0 {
		report.OpsPerSecond = float64(ops) / elapsed.Seconds()
	}
	return report
}
