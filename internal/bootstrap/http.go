package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/parkwatch/ui-api/config"
	httpx "github.com/parkwatch/ui-api/internal/http"
	"github.com/parkwatch/ui-api/internal/service"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config *config.AppConfig
	Auth   *AuthStack
	Logger *slog.Logger
}

// BuildHTTPServer wires the router and returns an unstarted HTTP server.
func BuildHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil || cfg.Auth == nil {
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

	services := httpx.RouterServices{
		Auth:    cfg.Auth.Controller,
		Backend: cfg.Auth.Backend,
		Cookie: httpx.CookieConfig{
			Name:   appCfg.Auth.CookieName,
			Domain: appCfg.Auth.CookieDomain,
			TTL:    appCfg.Auth.SessionTTL,
		},
		RememberMeTTL: appCfg.Auth.RememberMeTTL,
		Paths: httpx.GuardPaths{
			Login:       appCfg.Auth.LoginPath,
			VerifyEmail: appCfg.Auth.VerifyEmailPath,
			Dashboard:   appCfg.Auth.DashboardPath,
		},
		Logger: logger,
	}
	if cfg.Auth.Audit != nil {
		services.Audit = cfg.Auth.Audit
	}

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:         addr,
		Handler:      httpx.NewRouter(services),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// RunHTTPServer serves until ctx is cancelled or the server fails, then shuts
// down gracefully. Blocks until both the listener and the shutdown have
// finished.
func RunHTTPServer(ctx context.Context, cfg *HTTPServerConfig) error {
	server := BuildHTTPServer(cfg)
	if server == nil {
		return errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(ShutdownConfig{
			Context:    context.Background(),
			Server:     server,
			Controller: cfg.Auth.Controller,
			Logger:     logger,
		})
	})

	return g.Wait()
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context    context.Context
	Server     *http.Server
	Controller *service.AuthController
	Logger     *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(cfg.Context, shutdownTimeout)
	defer cancel()

	if err := cfg.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Stop the expiry bus subscription and wait for in-flight confirmations
	if cfg.Controller != nil {
		cfg.Controller.Close()
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
