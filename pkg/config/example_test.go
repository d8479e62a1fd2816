package config_test

import (
	"fmt"
	"log"
	"time"

	"github.com/ajitpratap0/reservoir/pkg/config"
)

// ExampleDefaultConfig demonstrates the defaults every loader starts from.
func ExampleDefaultConfig() {
	cfg := config.DefaultConfig()

	fmt.Printf("Pool: %s\n", cfg.Pool.Name)
	fmt.Printf("Bounds: %d..%d\n", cfg.Pool.MinimumSize, cfg.Pool.MaximumSize)
	fmt.Printf("Timed: %v\n", cfg.Pool.Timed())
	fmt.Printf("Metrics: %s%s\n", cfg.Metrics.Address, cfg.Metrics.Path)

	// Output:
	// Pool: default
	// Bounds: 1..16
	// Timed: false
	// Metrics: :9090/metrics
}

// ExampleConfig_Validate shows how to validate a configuration
// before using it.
func ExampleConfig_Validate() {
	cfg := config.DefaultConfig()

	cfg.Pool.MinimumSize = 4
	cfg.Pool.MaximumSize = 64
	cfg.Pool.IdleTimeout = 30 * time.Second

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	fmt.Println("Configuration is valid!")

	cfg.Pool.MinimumSize = 100
	fmt.Println(cfg.Validate() != nil)

	// Output:
	// Configuration is valid!
	// true
}

// ExamplePoolOptions converts pool settings into constructor options.
func ExamplePoolOptions() {
	pc := config.DefaultConfig().Pool
	pc.Diagnostics = true

	opts := config.PoolOptions[[]byte](pc)
	fmt.Println(len(opts))

	// Output:
	// 3
}
