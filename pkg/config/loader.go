package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/reservoir/pkg/poolerrors"
)

// EnvPrefix prefixes environment overrides read by LoadWithViper, so
// RESERVOIR_POOL_MAXIMUM_SIZE overrides pool.maximum_size.
const EnvPrefix = "RESERVOIR"

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeFile, "failed to read config file").
			WithDetail("path", filePath)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to parse YAML").
			WithDetail("path", filePath)
	}

	return nil
}

// LoadFile reads a YAML file over the defaults and validates the result.
func LoadFile(filePath string) (*Config, error) {
	cfg := DefaultConfig()
	if err := Load(filePath, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return poolerrors.Wrap(err, poolerrors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}

	return nil
}

// LoadWithViper layers defaults, an optional config file and RESERVOIR_*
// environment variables. An empty path searches ./reservoir.yaml and
// $HOME/.reservoir/reservoir.yaml; a missing file in the search path is not
// an error, an explicit path that cannot be read is.
func LoadWithViper(filePath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if filePath != "" {
		v.SetConfigFile(filePath)
	} else {
		v.SetConfigName("reservoir")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.reservoir")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if filePath != "" || !errors.As(err, &notFound) {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeFile, "failed to read config file").
				WithDetail("path", filePath)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that the
// file does not mention.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("pool.name", d.Pool.Name)
	v.SetDefault("pool.minimum_size", d.Pool.MinimumSize)
	v.SetDefault("pool.maximum_size", d.Pool.MaximumSize)
	v.SetDefault("pool.diagnostics", d.Pool.Diagnostics)
	v.SetDefault("pool.leak_recovery", d.Pool.LeakRecovery)
	v.SetDefault("pool.idle_timeout", d.Pool.IdleTimeout)
	v.SetDefault("pool.sweep_interval", d.Pool.SweepInterval)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("logging.output_paths", d.Logging.OutputPaths)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.address", d.Metrics.Address)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("workload.flavor", d.Workload.Flavor)
	v.SetDefault("workload.workers", d.Workload.Workers)
	v.SetDefault("workload.iterations", d.Workload.Iterations)
	v.SetDefault("workload.keys", d.Workload.Keys)
	v.SetDefault("workload.payload_size", d.Workload.PayloadSize)
	v.SetDefault("workload.hold", d.Workload.Hold)
	v.SetDefault("workload.sample_interval", d.Workload.SampleInterval)
	v.SetDefault("workload.algorithm", d.Workload.Algorithm)
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
