package config

import (
	"runtime"
	"time"

	"github.com/ajitpratap0/reservoir/pkg/logger"
	"github.com/ajitpratap0/reservoir/pkg/pool"
	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

// Config is the root configuration structure.
type Config struct {
	// Pool settings apply to every pool built from this configuration
	Pool PoolConfig `yaml:"pool" json:"pool" mapstructure:"pool"`

	// Logging configures the process-wide zap logger
	Logging logger.Config `yaml:"logging" json:"logging" mapstructure:"logging"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" mapstructure:"metrics"`

	// Workload configures the benchmark driver
	Workload WorkloadConfig `yaml:"workload" json:"workload" mapstructure:"workload"`
}

// PoolConfig holds the settings of a single pool.
type PoolConfig struct {
	// Name labels the pool in logs and metrics
	Name          string        `yaml:"name" json:"name" mapstructure:"name"`
	// MinimumSize is the idle reserve kept filled
	MinimumSize   int           `yaml:"minimum_size" json:"minimum_size" mapstructure:"minimum_size"`
	// MaximumSize caps the idle reserve
	MaximumSize   int           `yaml:"maximum_size" json:"maximum_size" mapstructure:"maximum_size"`
	// Diagnostics enables the hit/miss/overflow counters
	Diagnostics   bool          `yaml:"diagnostics" json:"diagnostics" mapstructure:"diagnostics"`
	// LeakRecovery takes back values dropped without being returned
	LeakRecovery  bool          `yaml:"leak_recovery" json:"leak_recovery" mapstructure:"leak_recovery"`
	// IdleTimeout expires idle values (0 = never)
	IdleTimeout   time.Duration `yaml:"idle_timeout" json:"idle_timeout" mapstructure:"idle_timeout"`
	// SweepInterval is how often expired values are collected (0 = IdleTimeout)
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval" mapstructure:"sweep_interval"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Address string `yaml:"address" json:"address" mapstructure:"address"`
	Path    string `yaml:"path" json:"path" mapstructure:"path"`
}

// WorkloadConfig configures the concurrent benchmark driver.
type WorkloadConfig struct {
	// Flavor selects what is pooled: widget, keyed, buffer, builder or compressor
	Flavor         string        `yaml:"flavor" json:"flavor" mapstructure:"flavor"`
	Workers        int           `yaml:"workers" json:"workers" mapstructure:"workers"`
	Iterations     int           `yaml:"iterations" json:"iterations" mapstructure:"iterations"`
	// Keys is the number of distinct keys for the keyed flavor
	Keys           int           `yaml:"keys" json:"keys" mapstructure:"keys"`
	// PayloadSize is the number of bytes written per operation
	PayloadSize    int           `yaml:"payload_size" json:"payload_size" mapstructure:"payload_size"`
	// Hold keeps each value checked out for this long
	Hold           time.Duration `yaml:"hold" json:"hold" mapstructure:"hold"`
	SampleInterval time.Duration `yaml:"sample_interval" json:"sample_interval" mapstructure:"sample_interval"`
	// Algorithm is the compression algorithm for the compressor flavor
	Algorithm      string        `yaml:"algorithm" json:"algorithm" mapstructure:"algorithm"`
}

// Workload flavors.
const (
	FlavorWidget     = "widget"
	FlavorKeyed      = "keyed"
	FlavorBuffer     = "buffer"
	FlavorBuilder    = "builder"
	FlavorCompressor = "compressor"
)

// DefaultConfig returns a configuration with sensible defaults.
//
// Example:
//
//	cfg := config.DefaultConfig()
//	cfg.Pool.Diagnostics = true // Override default
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			Name:        "default",
			MinimumSize: pool.DefaultMinimumSize,
			MaximumSize: pool.DefaultMaximumSize,
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
			Path:    "/metrics",
		},
		Workload: WorkloadConfig{
			Flavor:         FlavorWidget,
			Workers:        runtime.NumCPU(),
			Iterations:     10000,
			Keys:           4,
			PayloadSize:    256,
			SampleInterval: 100 * time.Millisecond,
			Algorithm:      "zstd",
		},
	}
}

// Validate validates the configuration for correctness.
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "metrics address is required when metrics are enabled")
	}
	return c.Workload.Validate()
}

// Validate checks the pool bounds and timing settings.
func (p *PoolConfig) Validate() error {
	if err := pool.ValidateBounds(p.MinimumSize, p.MaximumSize); err != nil {
		return err
	}
	if p.IdleTimeout < 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "idle_timeout cannot be negative").
			WithDetail("idle_timeout", p.IdleTimeout.String())
	}
	if p.SweepInterval < 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "sweep_interval cannot be negative").
			WithDetail("sweep_interval", p.SweepInterval.String())
	}
	return nil
}

// Timed reports whether idle values expire.
func (p *PoolConfig) Timed() bool {
	return p.IdleTimeout > 0
}

// Validate checks the workload settings.
func (w *WorkloadConfig) Validate() error {
	switch w.Flavor {
	case FlavorWidget, FlavorKeyed, FlavorBuffer, FlavorBuilder, FlavorCompressor:
	default:
		return poolerrors.New(poolerrors.ErrorTypeConfig, "unknown workload flavor").
			WithDetail("flavor", w.Flavor)
	}
	if w.Iterations <= 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "iterations must be positive")
	}
	if w.Keys <= 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "keys must be positive")
	}
	if w.PayloadSize < 0 {
		return poolerrors.New(poolerrors.ErrorTypeConfig, "payload_size cannot be negative")
	}
	return nil
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (w *WorkloadConfig) GetWorkers() int {
	if w.Workers <= 0 {
		return runtime.NumCPU()
	}
	return w.Workers
}

// PoolOptions converts the pool settings into options for pool.New. Idle
// expiry is not an option; use pool.NewTimed with IdleTimeout and
// SweepInterval when Timed reports true.
func PoolOptions[T any](p PoolConfig) []pool.Option[T] {
	opts := []pool.Option[T]{
		pool.WithBounds[T](p.MinimumSize, p.MaximumSize),
	}
	if p.Name != "" {
		opts = append(opts, pool.WithName[T](p.Name))
	}
	if p.Diagnostics {
		opts = append(opts, pool.WithDiagnostics[T]())
	}
	if p.LeakRecovery {
		opts = append(opts, pool.WithLeakRecovery[T]())
	}
	return opts
}
