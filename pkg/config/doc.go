// Package config provides the configuration system for reservoir.
//
// A single Config structure covers the pool and the surfaces around it, so
// the poolbench CLI and embedding applications load settings the same way.
//
// # Key Features
//
// - Config: one structure with Pool, Logging, Metrics and Workload sections
// - Environment variable substitution with ${VAR_NAME} syntax in YAML files
// - Layered loading through viper: defaults, file, then RESERVOIR_* variables
// - Validation that reuses the pool's own bounds checks
//
// # Usage
//
// ## Loading a File
//
//	cfg, err := config.LoadFile("reservoir.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// ## Building a Pool
//
//	opts := config.PoolOptions[*bytes.Buffer](cfg.Pool)
//	if cfg.Pool.Timed() {
//		tp, err := pool.NewTimed(cfg.Pool.IdleTimeout, cfg.Pool.SweepInterval, opts...)
//		// ...
//	}
//	p, err := pool.New(opts...)
//
// ## Environment Overrides
//
//	# reservoir.yaml
//	pool:
//	  name: ${POOL_NAME}
//	  minimum_size: 4
//	  maximum_size: 64
//
//	RESERVOIR_POOL_MAXIMUM_SIZE=128 poolbench run --config reservoir.yaml
//
// # Configuration Structure
//
//	pool:
//	  name: default
//	  minimum_size: 1
//	  maximum_size: 16
//	  diagnostics: false
//	  leak_recovery: false
//	  idle_timeout: 0s
//	  sweep_interval: 0s
//	logging:
//	  level: info
//	  encoding: json
//	metrics:
//	  enabled: false
//	  address: ":9090"
//	  path: /metrics
//	workload:
//	  flavor: widget
//	  iterations: 10000
//
// Validation errors are *poolerrors.Error values of type ErrorTypeConfig;
// unreadable files are ErrorTypeFile.
package config
