// Package config provides environment-based configuration for logkeeper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// FileEnv names the environment variable holding an optional YAML config file.
const FileEnv = "LOGKEEPER_CONFIG"

// maxBatchSize is the store's atomic write limit.
const maxBatchSize = 500

// Config holds all configuration for logkeeper.
type Config struct {
	Store StoreConfig `yaml:"store"`

	// Authentication
	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`

	// Server configuration
	APIHost string `yaml:"api_host"`
	APIPort int    `yaml:"api_port"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	Retention RetentionConfig `yaml:"retention"`
	Query     QueryConfig     `yaml:"query"`
}

// StoreConfig selects and locates the log store.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	DatabaseDSN string `yaml:"database_dsn"`
	SQLitePath  string `yaml:"sqlite_path"`
}

// RetentionConfig holds the retention policy and its schedule.
type RetentionConfig struct {
	Enabled       bool          `yaml:"enabled"`
	DefaultDays   int           `yaml:"default_days"`
	Schedule      string        `yaml:"schedule"`
	Timezone      string        `yaml:"timezone"`
	BatchSize     int           `yaml:"batch_size"`
	MaxIterations int           `yaml:"max_iterations"`
	SingleBatch   bool          `yaml:"single_batch"`
	RunTimeout    time.Duration `yaml:"run_timeout"`
}

// QueryConfig bounds log listing.
type QueryConfig struct {
	DefaultPageSize int    `yaml:"default_page_size"`
	MaxPageSize     int    `yaml:"max_page_size"`
	Timezone        string `yaml:"timezone"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:      DriverPostgres,
			DatabaseDSN: "postgres://localhost:5432/logkeeper?sslmode=disable",
			SQLitePath:  "./data/logkeeper.db",
		},
		JWTExpiry:       24 * time.Hour,
		APIHost:         "0.0.0.0",
		APIPort:         8080,
		ShutdownTimeout: 30 * time.Second,
		LogLevel:        "info",
		LogJSON:         true,
		Retention: RetentionConfig{
			Enabled:       true,
			DefaultDays:   90,
			Schedule:      "0 2 * * *",
			Timezone:      "Asia/Kolkata",
			BatchSize:     maxBatchSize,
			MaxIterations: 10000,
			RunTimeout:    30 * time.Minute,
		},
		Query: QueryConfig{
			DefaultPageSize: 100,
			MaxPageSize:     1000,
			Timezone:        "UTC",
		},
	}
}

// Load reads configuration from the optional LOGKEEPER_CONFIG YAML file, then from
// environment variables, and validates the result.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	cfg, err := load()
	if err != nil {
		cfg = Defaults()
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "development-secret-key-min-32-chars"
	}
	return cfg
}

func load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DatabaseDSN = getEnv("DATABASE_URL", c.Store.DatabaseDSN)
	c.Store.SQLitePath = getEnv("SQLITE_PATH", c.Store.SQLitePath)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTExpiry = getDurationEnv("JWT_EXPIRY", c.JWTExpiry)
	c.APIHost = getEnv("API_HOST", c.APIHost)
	c.APIPort = getIntEnv("API_PORT", c.APIPort)
	c.ShutdownTimeout = getDurationEnv("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogJSON = getBoolEnv("LOG_JSON", c.LogJSON)

	c.Retention.Enabled = getBoolEnv("RETENTION_ENABLED", c.Retention.Enabled)
	c.Retention.DefaultDays = getIntEnv("RETENTION_DAYS", c.Retention.DefaultDays)
	c.Retention.Schedule = getEnv("RETENTION_SCHEDULE", c.Retention.Schedule)
	c.Retention.Timezone = getEnv("RETENTION_TIMEZONE", c.Retention.Timezone)
	c.Retention.BatchSize = getIntEnv("RETENTION_BATCH_SIZE", c.Retention.BatchSize)
	c.Retention.MaxIterations = getIntEnv("RETENTION_MAX_ITERATIONS", c.Retention.MaxIterations)
	c.Retention.SingleBatch = getBoolEnv("RETENTION_SINGLE_BATCH", c.Retention.SingleBatch)
	c.Retention.RunTimeout = getDurationEnv("RETENTION_RUN_TIMEOUT", c.Retention.RunTimeout)

	c.Query.DefaultPageSize = getIntEnv("QUERY_DEFAULT_PAGE_SIZE", c.Query.DefaultPageSize)
	c.Query.MaxPageSize = getIntEnv("QUERY_MAX_PAGE_SIZE", c.Query.MaxPageSize)
	c.Query.Timezone = getEnv("QUERY_TIMEZONE", c.Query.Timezone)
}

// Validate checks that required configuration values are set and consistent.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Retention.DefaultDays < 0 {
		return fmt.Errorf("retention days must not be negative, got %d", c.Retention.DefaultDays)
	}
	if c.Retention.BatchSize <= 0 || c.Retention.BatchSize > maxBatchSize {
		return fmt.Errorf("retention batch size must be between 1 and %d, got %d", maxBatchSize, c.Retention.BatchSize)
	}
	if c.Retention.MaxIterations <= 0 {
		return fmt.Errorf("retention max iterations must be positive")
	}
	if _, err := cron.ParseStandard(c.Retention.Schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", c.Retention.Schedule, err)
	}
	if _, err := time.LoadLocation(c.Retention.Timezone); err != nil {
		return fmt.Errorf("invalid retention timezone: %w", err)
	}

	if c.Query.DefaultPageSize <= 0 || c.Query.MaxPageSize < c.Query.DefaultPageSize {
		return fmt.Errorf("query page sizes must satisfy 0 < default <= max")
	}
	if _, err := time.LoadLocation(c.Query.Timezone); err != nil {
		return fmt.Errorf("invalid query timezone: %w", err)
	}
	return nil
}

// QueryLocation returns the zone used for date filters and exports.
func (c *Config) QueryLocation() *time.Location {
	loc, err := time.LoadLocation(c.Query.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
