package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is loaded once at process startup and passed by reference to
// every component that needs it; there is no global mutable state.
type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	MaxWorkers          int     `env:"MAX_WORKERS" envDefault:"10" validate:"min=1,max=1000"`
	MaxRetries          int     `env:"MAX_RETRIES" envDefault:"5" validate:"min=0,max=100"`
	RetryBackoffBase    float64 `env:"RETRY_BACKOFF_BASE" envDefault:"2.0" validate:"gt=1"`
	JobTimeoutSeconds   int     `env:"JOB_TIMEOUT_SECONDS" envDefault:"300" validate:"min=1,max=86400"`
	PollIntervalSeconds float64 `env:"POLL_INTERVAL_SECONDS" envDefault:"1.0" validate:"gt=0"`
	UseFastQueue        bool    `env:"USE_FAST_QUEUE" envDefault:"true"`
	BulkSubmitCap       int     `env:"BULK_SUBMIT_CAP" envDefault:"100" validate:"min=1,max=1000"`

	ShutdownGraceSeconds       int `env:"SHUTDOWN_GRACE_SECONDS" envDefault:"30" validate:"min=0,max=600"`
	ReclaimScanIntervalSeconds int `env:"RECLAIM_SCAN_INTERVAL_SECONDS" envDefault:"30" validate:"min=1,max=3600"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// ClerkJWKSURL is the JWKS endpoint for RS256 token verification. When
	// set, it takes precedence over JWTSecret.
	ClerkJWKSURL string `env:"CLERK_JWKS_URL"`
	JWTSecret    string `env:"JWT_SECRET"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
