package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/target/laptopdoc/config"
	"github.com/target/laptopdoc/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	logger = bootstrap.ConfigureLogger(&cfg)

	logStartupInfo(ctx, logger, &cfg)

	db, redisClient, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database failed", "error", cerr)
			}
		}()
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	stores, err := bootstrap.BuildStores(bootstrap.StoreDeps{
		Config: &cfg,
		DB:     db,
		Redis:  redisClient,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config: &cfg,
		Stores: stores,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting laptopdoc",
		"addr", cfg.HTTP.Addr,
		"dev", cfg.IsDev,
		"api_configured", cfg.API.Configured(),
		"credential_store", string(cfg.Credentials.Backend),
		"rate_limit", cfg.RateLimit.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled)
}

// initInfrastructure connects only the backends the credential store needs.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	deps := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}

	var db *sql.DB
	if bootstrap.NeedsPostgres(cfg) {
		var err error
		db, err = bootstrap.ConnectDB(deps)
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		if cfg.Postgres.RunMigrationsOnStart {
			if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
				return nil, nil, closeDBAfter(db, err)
			}
		} else {
			logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
		}
	}

	if !bootstrap.NeedsRedis(cfg) {
		return db, nil, nil
	}
	redisClient, err := bootstrap.ConnectRedis(deps)
	if err != nil {
		return nil, nil, closeDBAfter(db, fmt.Errorf("connect redis: %w", err))
	}
	return db, redisClient, nil
}

func closeDBAfter(db *sql.DB, err error) error {
	if db == nil {
		return err
	}
	if cerr := db.Close(); cerr != nil {
		return errors.Join(err, fmt.Errorf("close database: %w", cerr))
	}
	return err
}
