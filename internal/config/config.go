package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Log        LogConfig
	Redis      RedisConfig
	Generation GenerationConfig
	Redemption RedemptionConfig
	RateLimit  RateLimitConfig
	Worker     WorkerConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
// In production, set DB_SSLMODE to "require" or "verify-full".
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name     string `envconfig:"DB_NAME" default:"coupon_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
// Pool sizing is only appended when set, so a zero-value DBConfig yields a plain URL.
func (c DBConfig) DSN() string {
	dsn := c.URL("postgres")
	if c.MaxConns > 0 {
		dsn += fmt.Sprintf("&pool_max_conns=%d", c.MaxConns)
	}
	if c.MinConns > 0 {
		dsn += fmt.Sprintf("&pool_min_conns=%d", c.MinConns)
	}
	return dsn
}

// URL returns the connection URL with the given scheme and no pool parameters.
// golang-migrate uses the "pgx5" scheme to select its pgx/v5 driver.
func (c DBConfig) URL(scheme string) string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s?sslmode=%s",
		scheme, c.User, c.Password, c.Host, c.Port, c.Name, sslMode)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// RedisConfig holds Redis configuration. When URL is empty the service
// falls back to in-process locks and rate limiting.
type RedisConfig struct {
	URL string `envconfig:"REDIS_URL" default:""`
}

// Enabled reports whether a Redis URL was configured.
func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

// GenerationConfig tunes the bulk code generator.
type GenerationConfig struct {
	BatchSize        int           `envconfig:"GENERATION_BATCH_SIZE" default:"5000"`
	MaxRetryAttempts int           `envconfig:"GENERATION_MAX_RETRY_ATTEMPTS" default:"10"`
	LockTTL          time.Duration `envconfig:"GENERATION_LOCK_TTL" default:"30m"`
}

// RedemptionConfig holds redemption settings.
type RedemptionConfig struct {
	// Timezone used to decide what "today" is when checking validity windows.
	Timezone string `envconfig:"REDEMPTION_TIMEZONE" default:"UTC"`
}

// Location resolves the configured timezone.
func (c RedemptionConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// RateLimitConfig limits public redemption endpoints per client IP.
type RateLimitConfig struct {
	Enabled  bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Requests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	Window   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	ExpiryInterval time.Duration `envconfig:"WORKER_EXPIRY_INTERVAL" default:"1h"`
}

// Load parses environment variables into the Config struct.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
