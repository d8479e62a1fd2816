package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/reservoir/internal/workload"
	"github.com/ajitpratap0/reservoir/pkg/config"
	"github.com/ajitpratap0/reservoir/pkg/json"
	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/metrics"
	"github.com/ajitpratap0/reservoir/pkg/observability"
)

// runFlags are command line overrides. Only flags the user set are applied.
type runFlags struct {
	configFile  string
	flavor      string
	workers     int
	iterations  int
	keys        int
	payload     int
	hold        time.Duration
	algorithm   string
	metricsAddr string
	logLevel    string
	jsonOutput  bool
	trace       bool
	timeout     time.Duration
}

func newRunCommand() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pool workload",
		Long: `Run concurrent get/use/put cycles against a pool built from the configuration.

Example:
  poolbench run --config pool.yaml --workers 8 --iterations 10000 --metrics-addr :9090 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(cmd, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if f.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, f.timeout)
				defer cancel()
			}
			return runBenchmark(ctx, cfg, f, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configFile, "config", "c", "", "Path to configuration YAML file")
	flags.StringVar(&f.flavor, "flavor", config.FlavorWidget, "What to pool: widget, keyed, buffer, builder or compressor")
	flags.IntVarP(&f.workers, "workers", "w", 0, "Number of concurrent workers (0 = NumCPU)")
	flags.IntVarP(&f.iterations, "iterations", "n", 10000, "Get/put cycles per worker")
	flags.IntVar(&f.keys, "keys", 4, "Distinct keys for the keyed flavor")
	flags.IntVar(&f.payload, "payload", 256, "Bytes written per cycle")
	flags.DurationVar(&f.hold, "hold", 0, "How long each value stays checked out")
	flags.StringVar(&f.algorithm, "algorithm", "zstd", "Compression algorithm for the compressor flavor")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&f.jsonOutput, "json", false, "Print the report as JSON")
	flags.BoolVar(&f.trace, "trace", false, "Export spans and pool metrics through OpenTelemetry to stderr")
	flags.DurationVar(&f.timeout, "timeout", 0, "Stop the run after this long (0 = no limit)")
	return cmd
}

func loadRunConfig(cmd *cobra.Command, f *runFlags) (*config.Config, error) {
	cfg, err := config.LoadWithViper(f.configFile)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("flavor") {
		cfg.Workload.Flavor = f.flavor
	}
	if changed("workers") {
		cfg.Workload.Workers = f.workers
	}
	if changed("iterations") {
		cfg.Workload.Iterations = f.iterations
	}
	if changed("keys") {
		cfg.Workload.Keys = f.keys
	}
	if changed("payload") {
		cfg.Workload.PayloadSize = f.payload
	}
	if changed("hold") {
		cfg.Workload.Hold = f.hold
	}
	if changed("algorithm") {
		cfg.Workload.Algorithm = f.algorithm
	}
	if changed("metrics-addr") {
		cfg.Metrics.Enabled = f.metricsAddr != ""
		cfg.Metrics.Address = f.metricsAddr
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runBenchmark(ctx context.Context, cfg *config.Config, f *runFlags, out io.Writer) error {
	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx = context.WithValue(ctx, logger.RunIDKey, time.Now().Format("20060102-150405"))
	log := logger.WithContext(ctx).Named("poolbench")

	target, err := workload.NewTarget(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create %s target: %w", cfg.Workload.Flavor, err)
	}
	defer func() {
		if err := target.Close(); err != nil {
			log.Warn("failed to close target", zap.Error(err))
		}
	}()

	collector := metrics.NewCollector()
	if err := collector.RegisterFunc(target.Flavor(), target.Stats); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		shutdown, err := serveMetrics(cfg.Metrics, collector, log)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	opts := []workload.Option{workload.WithLogger(log)}
	if f.trace {
		prov, err := newTelemetry(collector, os.Stderr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := prov.Shutdown(shutdownCtx); err != nil {
				log.Warn("failed to shut down telemetry", zap.Error(err))
			}
		}()
		opts = append(opts, workload.WithTracer(prov.Tracer()))
	}

	report, runErr := workload.Run(ctx, cfg.Workload, target, opts...)
	if report != nil {
		if err := writeReport(out, report, f.jsonOutput); err != nil {
			return err
		}
	}
	return runErr
}

// serveMetrics exposes the process metrics and the pool collector until the
// returned function is called.
func serveMetrics(cfg config.MetricsConfig, collector *metrics.Collector, log *zap.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collector); err != nil {
		return nil, err
	}
	handler := promhttp.HandlerFor(prometheus.Gatherers{prometheus.DefaultGatherer, reg}, promhttp.HandlerOpts{})

	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("address", cfg.Address), zap.String("path", path))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func newTelemetry(collector *metrics.Collector, w io.Writer) (*observability.Provider, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceName = "poolbench"
	cfg.ServiceVersion = version
	cfg.ExporterType = observability.ExporterStdout

	prov, err := observability.NewProvider(cfg, observability.WithWriter(w))
	if err != nil {
		return nil, err
	}
	if _, err := observability.ObservePools(prov.Meter(), collector.Snapshot); err != nil {
		_ = prov.Shutdown(context.Background())
		return nil, err
	}
	prov.SetGlobal()
	return prov, nil
}

func writeReport(w io.Writer, r *workload.Report, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	fmt.Fprintf(w, "=== %s workload ===\n", r.Flavor)
	fmt.Fprintf(w, "Workers:     %d\n", r.Workers)
	fmt.Fprintf(w, "Operations:  %d (%d errors)\n", r.Operations, r.Errors)
	fmt.Fprintf(w, "Duration:    %v\n", r.Duration)
	fmt.Fprintf(w, "Throughput:  %.0f ops/sec\n", r.OpsPerSecond)
	fmt.Fprintf(w, "Acquire p50: %v  p95: %v  p99: %v  max: %v\n",
		r.Latency.P50, r.Latency.P95, r.Latency.P99, r.Latency.Max)
	if r.PeakRSS > 0 {
		fmt.Fprintf(w, "Peak RSS:    %.1f MB\n", float64(r.PeakRSS)/1024/1024)
	}
	for _, s := range r.Pools {
		fmt.Fprintf(w, "Pool %-28s idle=%d in_use=%d created=%d destroyed=%d hit_rate=%.1f%%\n",
			s.Name, s.Idle, s.InUse, s.Created, s.Destroyed, s.HitRate()*100)
	}
	return nil
}
