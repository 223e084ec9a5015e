package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/laptopdoc/config"
	httpx "github.com/target/laptopdoc/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
	// ErrCh receives the listener error if the server stops unexpectedly (optional).
	ErrCh chan<- error
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil || cfg.Services == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := BuildHandler(appCfg, cfg.Services, logger)
	return startServer(logger, handler, appCfg.HTTP.Addr, cfg.ErrCh)
}

// BuildHandler assembles the router and its middleware from configuration.
func BuildHandler(cfg *config.AppConfig, services *ServiceContainer, logger *slog.Logger) http.Handler {
	if cfg.HTTP.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel)
	}
	return httpx.NewRouter(httpx.RouterServices{
		Sessions:           services.Sessions,
		Troubleshoot:       services.Troubleshoot,
		Metrics:            services.Metrics,
		MetricsPath:        cfg.Observability.Metrics.Path,
		Limiter:            services.Limiter,
		CookieDomain:       cfg.HTTP.CookieDomain,
		SecureCookies:      cfg.HTTP.SecureCookies,
		SessionTTL:         cfg.Session.TTL,
		HydrationWait:      cfg.Session.HydrationWait,
		LoginPath:          cfg.Session.LoginPath,
		LandingPath:        cfg.Session.LandingPath,
		CompressionEnabled: cfg.HTTP.CompressionEnabled,
		CompressionLevel:   cfg.HTTP.CompressionLevel,
		IsDev:              cfg.IsDev,
		Logger:             logger,
	})
}

func startServer(logger *slog.Logger, handler http.Handler, addr string, errCh chan<- error) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			if errCh != nil {
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return server
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	parent := cfg.Context
	if parent == nil {
		parent = context.Background()
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(parent, shutdownWaitTimeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
