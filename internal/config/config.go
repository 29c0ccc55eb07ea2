// Package config loads QuantaCQL configuration from an optional file and
// QUANTACQL_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dshills/QuantaCQL/internal/errors"
	"github.com/dshills/QuantaCQL/internal/log"
)

// EnvPrefix prefixes environment overrides, e.g. QUANTACQL_QUERY_DEFAULT_PAGE_SIZE.
const EnvPrefix = "QUANTACQL"

// Config represents the complete configuration.
type Config struct {
	Log     log.Config    `json:"log" mapstructure:"log"`
	Query   QueryConfig   `json:"query" mapstructure:"query"`
	Storage StorageConfig `json:"storage" mapstructure:"storage"`
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
}

// QueryConfig controls statement preparation and execution.
type QueryConfig struct {
	// DefaultPageSize is the internal storage page size, in rows.
	DefaultPageSize int `json:"default_page_size" mapstructure:"default_page_size"`
	// StatementCacheSize bounds the number of prepared statements kept.
	StatementCacheSize int `json:"statement_cache_size" mapstructure:"statement_cache_size"`
	// NativeExclusiveBounds is set when storage honours exclusive
	// clustering bounds, so they are not simulated.
	NativeExclusiveBounds bool `json:"native_exclusive_bounds" mapstructure:"native_exclusive_bounds"`
	// StorageTimeout bounds one storage read. Zero disables it.
	StorageTimeout time.Duration `json:"storage_timeout" mapstructure:"storage_timeout"`
}

// StorageConfig configures the in-memory store used by the tools.
type StorageConfig struct {
	NativeReversal bool `json:"native_reversal" mapstructure:"native_reversal"`
}

// MetricsConfig toggles prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Log:   log.DefaultConfig(),
		Query: DefaultQueryConfig(),
		Storage: StorageConfig{
			NativeReversal: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "quantacql",
		},
	}
}

// DefaultQueryConfig returns the default query settings.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		DefaultPageSize:    10000,
		StatementCacheSize: 1000,
		StorageTimeout:     10 * time.Second,
	}
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment overrides apply. The file format follows the
// extension (json, yaml, toml).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment overrides are seen by
// Unmarshal even when no file mentions them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("query.default_page_size", cfg.Query.DefaultPageSize)
	v.SetDefault("query.statement_cache_size", cfg.Query.StatementCacheSize)
	v.SetDefault("query.native_exclusive_bounds", cfg.Query.NativeExclusiveBounds)
	v.SetDefault("query.storage_timeout", cfg.Query.StorageTimeout)
	v.SetDefault("storage.native_reversal", cfg.Storage.NativeReversal)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.InvalidConfigurationError("log.level", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return errors.InvalidConfigurationError("log.format", c.Log.Format)
	}
	return c.Query.Validate()
}

// Validate checks the query settings.
func (q QueryConfig) Validate() error {
	if q.DefaultPageSize < 1 {
		return errors.InvalidConfigurationError("query.default_page_size", fmt.Sprint(q.DefaultPageSize)).
			WithHint("page size must be at least 1 row")
	}
	if q.StatementCacheSize < 1 {
		return errors.InvalidConfigurationError("query.statement_cache_size", fmt.Sprint(q.StatementCacheSize)).
			WithHint("the statement cache must hold at least one statement")
	}
	if q.StorageTimeout < 0 {
		return errors.InvalidConfigurationError("query.storage_timeout", q.StorageTimeout.String())
	}
	return nil
}
