package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Storage     StorageConfig  `toml:"storage"`
	Outbox      OutboxConfig   `toml:"outbox"`
	Pipeline    PipelineConfig `toml:"pipeline"`
	Recovery    RecoveryConfig `toml:"recovery"`
	Spatial     SpatialConfig  `toml:"spatial"`
	Logging     LoggingConfig  `toml:"logging"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// OutboxConfig controls the geo outbox worker polling loop.
type OutboxConfig struct {
	PollInterval  string `toml:"poll_interval"`   // e.g. "5s" - how often the worker polls for pending events
	BatchSize     int    `toml:"batch_size"`      // Max events fetched per poll tick
	Concurrency   int    `toml:"concurrency"`     // Events processed in parallel within a tick
	BaseBackoffMs int    `toml:"base_backoff_ms"` // Base for exponential retry backoff
	MaxBackoffMs  int    `toml:"max_backoff_ms"`  // Backoff cap
	MaxRetries    int    `toml:"max_retries"`     // Retry budget before an event is marked dead
	CleanupAfter  string `toml:"cleanup_after"`   // e.g. "168h" - completed events older than this are deleted
}

// PipelineConfig controls the ETL run state machine scheduler.
type PipelineConfig struct {
	RetrySchedule string `toml:"retry_schedule"`  // Cron schedule for the retry scan (e.g. "@every 30s")
	BaseBackoffMs int    `toml:"base_backoff_ms"` // Base for run retry backoff
	MaxBackoffMs  int    `toml:"max_backoff_ms"`  // Run retry backoff cap
	MaxRetries    int    `toml:"max_retries"`     // Default retry budget for new runs
}

// RecoveryConfig controls context recovery behaviour.
type RecoveryConfig struct {
	ParallelTimeout string `toml:"parallel_timeout"` // Timeout for racing recovery strategies (e.g. "5s")
}

// SpatialConfig controls the secondary spatial index client.
type SpatialConfig struct {
	RateLimit string `toml:"rate_limit"` // Minimum interval between index writes (e.g. "10ms")
	RateBurst int    `toml:"rate_burst"` // Burst allowance for the write limiter
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the baseline configuration used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/praxis",
				ResetOnStartup: false,
			},
		},
		Outbox: OutboxConfig{
			PollInterval:  "5s",
			BatchSize:     10,
			Concurrency:   3,
			BaseBackoffMs: 1000,
			MaxBackoffMs:  300000,
			MaxRetries:    10,
			CleanupAfter:  "168h",
		},
		Pipeline: PipelineConfig{
			RetrySchedule: "@every 30s",
			BaseBackoffMs: 5000,
			MaxBackoffMs:  600000,
			MaxRetries:    3,
		},
		Recovery: RecoveryConfig{
			ParallelTimeout: "5s",
		},
		Spatial: SpatialConfig{
			RateLimit: "10ms",
			RateBurst: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from TOML files, applying them in order
// over the defaults. Later files override earlier ones. Environment variables
// are applied last.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies PRAXIS_* environment variable overrides.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PRAXIS_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("PRAXIS_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("PRAXIS_OUTBOX_POLL_INTERVAL"); v != "" {
		config.Outbox.PollInterval = v
	}
	if v := os.Getenv("PRAXIS_OUTBOX_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Outbox.MaxRetries = n
		}
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.Storage.Badger.Path == "" {
		return fmt.Errorf("storage.badger.path is required")
	}
	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("outbox.batch_size must be at least 1, got %d", c.Outbox.BatchSize)
	}
	if c.Outbox.Concurrency < 1 {
		return fmt.Errorf("outbox.concurrency must be at least 1, got %d", c.Outbox.Concurrency)
	}
	if c.Outbox.BaseBackoffMs < 1 {
		return fmt.Errorf("outbox.base_backoff_ms must be positive, got %d", c.Outbox.BaseBackoffMs)
	}
	if c.Outbox.MaxBackoffMs < c.Outbox.BaseBackoffMs {
		return fmt.Errorf("outbox.max_backoff_ms (%d) must not be below base_backoff_ms (%d)",
			c.Outbox.MaxBackoffMs, c.Outbox.BaseBackoffMs)
	}
	if _, err := c.OutboxPollInterval(); err != nil {
		return err
	}
	if _, err := c.ParallelRecoveryTimeout(); err != nil {
		return err
	}
	return nil
}

// OutboxPollInterval parses the outbox poll interval duration.
func (c *Config) OutboxPollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Outbox.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid outbox.poll_interval %q: %w", c.Outbox.PollInterval, err)
	}
	return d, nil
}

// ParallelRecoveryTimeout parses the parallel recovery timeout duration.
func (c *Config) ParallelRecoveryTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Recovery.ParallelTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid recovery.parallel_timeout %q: %w", c.Recovery.ParallelTimeout, err)
	}
	return d, nil
}

// SpatialRateLimit parses the spatial index rate limit interval.
// Returns zero when rate limiting is disabled.
func (c *Config) SpatialRateLimit() time.Duration {
	d, err := time.ParseDuration(c.Spatial.RateLimit)
	if err != nil {
		return 0
	}
	return d
}
