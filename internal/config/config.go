package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/fairyhunter13/order-pricing-engine/pkg/retry"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	Discount DiscountConfig
	Usage    UsageConfig
	Log      LogConfig
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
	Name     string `envconfig:"DB_NAME" default:"pricing_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"` // Use "require" in production
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns int    `envconfig:"DB_MIN_CONNS" default:"5"`
}

// DSN returns the PostgreSQL connection string.
// Pool sizing is only appended when set.
func (c DBConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, sslMode)
	if c.MaxConns > 0 {
		dsn += fmt.Sprintf("&pool_max_conns=%d", c.MaxConns)
	}
	if c.MinConns > 0 {
		dsn += fmt.Sprintf("&pool_min_conns=%d", c.MinConns)
	}
	return dsn
}

// RedisConfig holds the shared cache location. An empty URL selects the
// in-process cache.
type RedisConfig struct {
	URL string `envconfig:"REDIS_URL"`
}

// DiscountConfig tunes discount lookups.
type DiscountConfig struct {
	CacheTTL       time.Duration `envconfig:"DISCOUNT_CACHE_TTL" default:"5m"`
	ReadAttempts   int           `envconfig:"DISCOUNT_READ_ATTEMPTS" default:"3"`
	ReadRetryDelay time.Duration `envconfig:"DISCOUNT_READ_RETRY_DELAY" default:"100ms"`
}

// ReadPolicy returns the retry policy for store reads.
func (c DiscountConfig) ReadPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: c.ReadAttempts, Delay: c.ReadRetryDelay}
}

// UsageConfig tunes the usage accountant.
type UsageConfig struct {
	BatchSize     int           `envconfig:"USAGE_BATCH_SIZE" default:"50"`
	FlushDelay    time.Duration `envconfig:"USAGE_FLUSH_DELAY" default:"1s"`
	RetryAttempts int           `envconfig:"USAGE_RETRY_ATTEMPTS" default:"3"`
	RetryDelay    time.Duration `envconfig:"USAGE_RETRY_DELAY" default:"200ms"`
}

// RetryPolicy returns the retry policy for usage writes.
func (c UsageConfig) RetryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: c.RetryAttempts, Delay: c.RetryDelay}
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load reads an optional .env file and then parses environment variables
// into the Config struct. Variables already set in the environment win over
// the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
