package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
	"github.com/ajitpratap0/reservoir/pkg/testutil"
)

type LoaderSuite struct {
	testutil.FileSuite
}

func TestLoaderSuite(t *testing.T) {
	suite.Run(t, new(LoaderSuite))
}

func (s *LoaderSuite) TestLoadFileOverridesDefaults() {
	path := s.CreateTempFile("file.yaml", []byte(`
pool:
  name: conns
  minimum_size: 2
  maximum_size: 8
  idle_timeout: 30s
workload:
  flavor: keyed
`))

	cfg, err := LoadFile(path)
	s.Require().NoError(err)
	s.Equal("conns", cfg.Pool.Name)
	s.Equal(2, cfg.Pool.MinimumSize)
	s.Equal(8, cfg.Pool.MaximumSize)
	s.Equal(30*time.Second, cfg.Pool.IdleTimeout)
	s.True(cfg.Pool.Timed())
	s.Equal(FlavorKeyed, cfg.Workload.Flavor)
	// Untouched sections keep their defaults
	s.Equal(":9090", cfg.Metrics.Address)
	s.Equal(10000, cfg.Workload.Iterations)
}

func (s *LoaderSuite) TestLoadSubstitutesEnvironment() {
	s.T().Setenv("RESERVOIR_TEST_POOL", "from-env")
	path := s.CreateTempFile("env.yaml", []byte("pool:\n  name: ${RESERVOIR_TEST_POOL}-pool\n"))

	cfg := DefaultConfig()
	s.Require().NoError(Load(path, cfg))
	s.Equal("from-env-pool", cfg.Pool.Name)
}

func (s *LoaderSuite) TestLoadFileRejectsInvalidBounds() {
	path := s.CreateTempFile("bad.yaml", []byte("pool:\n  minimum_size: 9\n  maximum_size: 3\n"))

	_, err := LoadFile(path)
	s.Require().Error(err)
	s.True(poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
}

func (s *LoaderSuite) TestLoadErrors() {
	err := Load(filepath.Join(s.TempDir(), "missing.yaml"), DefaultConfig())
	s.Require().Error(err)
	s.True(poolerrors.IsType(err, poolerrors.ErrorTypeFile))
	s.ErrorIs(err, os.ErrNotExist)

	path := s.CreateTempFile("broken.yaml", []byte("pool: [unterminated"))
	err = Load(path, DefaultConfig())
	s.Require().Error(err)
	s.True(poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
}

func (s *LoaderSuite) TestSaveRoundTrip() {
	cfg := DefaultConfig()
	cfg.Pool.Name = "saved"
	cfg.Pool.SweepInterval = time.Minute
	path := filepath.Join(s.TempDir(), "saved.yaml")

	s.Require().NoError(Save(path, cfg))
	loaded, err := LoadFile(path)
	s.Require().NoError(err)
	s.Equal(cfg.Pool, loaded.Pool)
}

func (s *LoaderSuite) TestLoadWithViperAppliesEnvironment() {
	path := s.CreateTempFile("viper.yaml", []byte("pool:\n  name: viper\n  maximum_size: 8\n"))
	s.T().Setenv("RESERVOIR_POOL_MAXIMUM_SIZE", "32")
	s.T().Setenv("RESERVOIR_POOL_IDLE_TIMEOUT", "45s")

	cfg, err := LoadWithViper(path)
	s.Require().NoError(err)
	s.Equal("viper", cfg.Pool.Name)
	s.Equal(32, cfg.Pool.MaximumSize)
	s.Equal(45*time.Second, cfg.Pool.IdleTimeout)
	s.Equal(1, cfg.Pool.MinimumSize)
	s.Equal("json", cfg.Logging.Encoding)
}

func (s *LoaderSuite) TestLoadWithViperMissingExplicitFile() {
	_, err := LoadWithViper(filepath.Join(s.TempDir(), "nope.yaml"))
	s.Require().Error(err)
	s.True(poolerrors.IsType(err, poolerrors.ErrorTypeFile))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero minimum", func(c *Config) { c.Pool.MinimumSize = 0 }, false},
		{"negative minimum", func(c *Config) { c.Pool.MinimumSize = -1 }, true},
		{"minimum above maximum", func(c *Config) { c.Pool.MinimumSize = 20 }, true},
		{"negative timeout", func(c *Config) { c.Pool.IdleTimeout = -time.Second }, true},
		{"negative sweep", func(c *Config) { c.Pool.SweepInterval = -time.Second }, true},
		{"metrics without address", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Address = "" }, true},
		{"unknown flavor", func(c *Config) { c.Workload.Flavor = "sockets" }, true},
		{"no iterations", func(c *Config) { c.Workload.Iterations = 0 }, true},
		{"no keys", func(c *Config) { c.Workload.Keys = 0 }, true},
		{"negative payload", func(c *Config) { c.Workload.PayloadSize = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if !poolerrors.IsType(err, poolerrors.ErrorTypeConfig) {
					t.Fatalf("expected a config error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGetWorkers(t *testing.T) {
	w := WorkloadConfig{}
	if w.GetWorkers() < 1 {
		t.Fatal("workers should default to at least one")
	}
	w.Workers = 3
	if w.GetWorkers() != 3 {
		t.Fatalf("expected 3 workers, got %d", w.GetWorkers())
	}
}
