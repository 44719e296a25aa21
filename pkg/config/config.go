package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all visiongate configuration.
type Config struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	Quota QuotaConfig `yaml:"quota"`
	Cache CacheConfig `yaml:"cache"`
	Retry RetryConfig `yaml:"retry"`
	Probe RetryConfig `yaml:"probe"`

	// RequestsPerSecond paces remote analysis calls client-side.
	// Zero disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// QuotaConfig controls the per-period call quota.
type QuotaConfig struct {
	Limit    int    `yaml:"limit"`
	Rollover string `yaml:"rollover"`
}

// CacheConfig controls the in-memory result cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// RetryConfig controls retry attempts and backoff.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath:   "visiongate.db",
		LogLevel: "info",
		Quota: QuotaConfig{
			Limit:    5000,
			Rollover: "none",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     24 * time.Hour,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			BaseDelay:      time.Second,
			AttemptTimeout: 20 * time.Second,
		},
		Probe: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields. Missing credentials are a construction-time
// failure, never retried.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("config: endpoint is required")
	}
	if c.APIKey == "" {
		return errors.New("config: api_key is required")
	}
	if c.Quota.Limit < 0 {
		return fmt.Errorf("config: quota limit must be >= 0, got %d", c.Quota.Limit)
	}
	switch c.Quota.Rollover {
	case "", "none", "daily", "monthly":
	default:
		return fmt.Errorf("config: unknown quota rollover %q", c.Quota.Rollover)
	}
	return nil
}
