package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/target/laptopdoc/config"
)

// InitLogger initializes the structured logger.
func InitLogger() *slog.Logger {
	return newLogger(slog.LevelInfo)
}

// ConfigureLogger lowers the log level in development and installs the
// result as the default logger.
func ConfigureLogger(cfg *config.AppConfig) *slog.Logger {
	if cfg != nil && cfg.IsDev {
		return newLogger(slog.LevelDebug)
	}
	return InitLogger()
}

func newLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// NeedsPostgres reports whether the configured backends require a database connection.
func NeedsPostgres(cfg *config.AppConfig) bool {
	return cfg != nil && cfg.Credentials.Backend == config.CredentialBackendPostgres
}

// NeedsRedis reports whether the configured backends require a Redis connection.
func NeedsRedis(cfg *config.AppConfig) bool {
	return cfg != nil && cfg.Credentials.Backend == config.CredentialBackendRedis
}
