package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/laptopdoc/config"
	"github.com/target/laptopdoc/internal/adapters/memory"
	"github.com/target/laptopdoc/internal/adapters/postgres"
	redisstore "github.com/target/laptopdoc/internal/adapters/redis"
	"github.com/target/laptopdoc/internal/adapters/sealed"
	"github.com/target/laptopdoc/internal/ports"
)

// credentialPurgeInterval is how often expired postgres rows are deleted.
const credentialPurgeInterval = 15 * time.Minute

// StoreDeps groups the connections the storage adapters may use.
type StoreDeps struct {
	Config *config.AppConfig
	DB     *sql.DB               // Required for the postgres backend
	Redis  redis.UniversalClient // Required for the redis backend
	Logger *slog.Logger
}

// Stores holds the persistence adapters behind the session layer.
type Stores struct {
	Credentials ports.CredentialStore
	Recent      ports.RecentDiagnoses
	Backend     config.CredentialBackend
	Sealed      bool

	purger *postgres.CredentialStore
}

// BuildStores selects the credential backend, wraps it with token sealing
// when an encryption key is configured, and picks a recent-diagnosis store.
func BuildStores(deps StoreDeps) (Stores, error) {
	if deps.Config == nil {
		return Stores{}, errors.New("store config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	ttl := cfg.Session.TTL

	stores := Stores{Backend: cfg.Credentials.Backend}
	switch cfg.Credentials.Backend {
	case config.CredentialBackendRedis:
		if deps.Redis == nil {
			return Stores{}, errors.New("redis credential backend requires a redis client")
		}
		stores.Credentials = redisstore.NewCredentialStoreWithPrefix(deps.Redis, cfg.Credentials.RedisPrefix, ttl)
	case config.CredentialBackendPostgres:
		if deps.DB == nil {
			return Stores{}, errors.New("postgres credential backend requires a database")
		}
		pg := postgres.NewCredentialStore(deps.DB, ttl)
		stores.Credentials = pg
		stores.purger = pg
	case config.CredentialBackendMemory, "":
		stores.Backend = config.CredentialBackendMemory
		stores.Credentials = memory.NewCredentialStore(ttl)
	default:
		return Stores{}, fmt.Errorf("unknown credential backend %q", cfg.Credentials.Backend)
	}

	if cfg.Credentials.EncryptionKey != "" {
		key, err := sealed.ParseKey(cfg.Credentials.EncryptionKey)
		if err != nil {
			return Stores{}, fmt.Errorf("credential encryption key: %w", err)
		}
		wrapped, err := sealed.New(stores.Credentials, key)
		if err != nil {
			return Stores{}, fmt.Errorf("seal credential store: %w", err)
		}
		stores.Credentials = wrapped
		stores.Sealed = true
	} else if !cfg.IsDev && stores.Backend != config.CredentialBackendMemory {
		logger.Warn("CREDENTIAL_ENCRYPTION_KEY not set; bearer tokens are stored in plaintext",
			"backend", string(stores.Backend))
	}

	if deps.Redis != nil {
		stores.Recent = redisstore.NewRecentStore(deps.Redis, ttl)
	} else {
		stores.Recent = memory.NewRecentStore()
	}

	logger.Info("credential store ready", "backend", string(stores.Backend), "sealed", stores.Sealed)
	return stores, nil
}

// RunPurger deletes expired postgres credential rows until ctx is done.
// It returns immediately for other backends.
func (s Stores) RunPurger(ctx context.Context, logger *slog.Logger) {
	if s.purger == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(credentialPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.purger.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("purge expired credentials failed", "error", err)
				}
				continue
			}
			if n > 0 {
				logger.Info("purged expired credentials", "count", n)
			}
		}
	}
}
