package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/laptopdoc/config"
	"github.com/target/laptopdoc/internal/adapters/apiclient"
	httpx "github.com/target/laptopdoc/internal/http"
	"github.com/target/laptopdoc/internal/observability/metrics"
	"github.com/target/laptopdoc/internal/service"
)

const shutdownWaitTimeout = 10 * time.Second

// ServiceContainer holds all application services.
type ServiceContainer struct {
	API          *apiclient.Client
	Sessions     *service.SessionManager
	Troubleshoot *service.TroubleshootService
	Limiter      *httpx.LoginLimiter // nil when login throttling is disabled
	Metrics      *metrics.Metrics    // nil when metrics are disabled
	Stores       Stores
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	Stores Stores
	Logger *slog.Logger
	// HTTPClient overrides the transport used for the remote API (tests).
	HTTPClient *http.Client
}

// NewServices wires the API client, session manager and troubleshoot service.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service config is required")
	}
	if deps.Stores.Credentials == nil {
		return nil, errors.New("credential store is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var m *metrics.Metrics
	if cfg.Observability.Metrics.Enabled {
		m = metrics.New(cfg.Observability.Metrics.Namespace)
	}

	if !cfg.API.Configured() {
		logger.Warn("API_BASE_URL not set; every remote call will fail as unavailable")
	}
	client := apiclient.New(apiclient.Options{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		Store:      deps.Stores.Credentials,
		Breaker:    breakerSettings(cfg.API.Breaker),
		Metrics:    m,
		Logger:     logger,
		HTTPClient: deps.HTTPClient,
	})

	sessions := service.NewSessionManager(service.SessionManagerOptions{
		API:   client,
		Store: deps.Stores.Credentials,
		Config: service.SessionManagerConfig{
			ProfilePath:     cfg.API.ProfilePath,
			PublicPath:      cfg.Session.PublicPath,
			ValidateTimeout: cfg.Session.ValidateTimeout,
			IdleTTL:         cfg.Session.IdleTTL,
			Logger:          logger,
			Metrics:         m,
		},
	})
	// A 401 on a stored token tears the session down in the manager as well.
	client.OnTeardown(sessions.HandleTeardown)

	troubleshoot := service.NewTroubleshootService(service.TroubleshootServiceOptions{
		API:    client,
		Recent: deps.Stores.Recent,
		Logger: logger,
	})

	var limiter *httpx.LoginLimiter
	if cfg.RateLimit.Enabled {
		limiter = httpx.NewLoginLimiter(httpx.LoginLimiterConfig{
			RPS:        cfg.RateLimit.RPS,
			Burst:      cfg.RateLimit.Burst,
			TTL:        cfg.RateLimit.TTL,
			TrustProxy: cfg.HTTP.TrustProxyHeaders,
			Logger:     logger,
		})
	}

	return &ServiceContainer{
		API:          client,
		Sessions:     sessions,
		Troubleshoot: troubleshoot,
		Limiter:      limiter,
		Metrics:      m,
		Stores:       deps.Stores,
	}, nil
}

func breakerSettings(cfg config.BreakerConfig) *apiclient.BreakerSettings {
	if !cfg.Enabled {
		return nil
	}
	return &apiclient.BreakerSettings{
		Name:         "laptopdoc-api",
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		FailureRatio: cfg.FailureRatio,
		MinRequests:  cfg.MinRequests,
	}
}

// backgroundServiceHandle tracks one long-running loop.
type backgroundServiceHandle struct {
	name string
	done <-chan struct{}
}

// StartBackground launches the idle sweeper, limiter eviction and credential
// purge loops. Each stops when ctx is cancelled.
func (c *ServiceContainer) StartBackground(ctx context.Context, logger *slog.Logger) []backgroundServiceHandle {
	if logger == nil {
		logger = slog.Default()
	}
	var handles []backgroundServiceHandle
	start := func(name string, fn func(context.Context)) {
		done := make(chan struct{})
		go func() {
			defer close(done)
			fn(ctx)
		}()
		handles = append(handles, backgroundServiceHandle{name: name, done: done})
		logger.Info(name + " started")
	}

	start("session sweeper", c.Sessions.Run)
	if c.Limiter != nil {
		start("login limiter eviction", c.Limiter.Run)
	}
	if c.Stores.purger != nil {
		start("credential purger", func(ctx context.Context) { c.Stores.RunPurger(ctx, logger) })
	}
	return handles
}

// ServiceOrchestrationConfig contains everything RunServicesWithShutdown needs.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts the HTTP server and background loops and
// blocks until a shutdown signal is received or the server fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	backgrounds := cfg.Services.StartBackground(serviceCtx, logger)
	server := StartHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
		ErrCh:    errCh,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("shutting down services...", "signal", sig.String())
	case runErr = <-errCh:
		logger.Error("service error", "error", runErr)
	}
	cancel()

	if err := gracefulStop(server, cfg.Services, backgrounds, logger); err != nil {
		if runErr == nil {
			return err
		}
		logger.Error("graceful stop failed", "error", err)
	}
	return runErr
}

// gracefulStop drains HTTP traffic, then waits for background loops and
// in-flight session validations.
func gracefulStop(server *http.Server, services *ServiceContainer, backgrounds []backgroundServiceHandle, logger *slog.Logger) error {
	err := ShutdownHTTPServer(ShutdownConfig{
		Context: context.Background(),
		Server:  server,
		Logger:  logger,
	})

	for _, svc := range backgrounds {
		waitForService(svc.done, svc.name, logger)
	}
	waitForService(waitGroupDone(services.Sessions.Wait), "session validations", logger)
	return err
}

func waitGroupDone(wait func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	return done
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
