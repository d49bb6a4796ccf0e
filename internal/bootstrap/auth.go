package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/parkwatch/ui-api/config"
	redisadapter "github.com/parkwatch/ui-api/internal/adapters/redis"
	"github.com/parkwatch/ui-api/internal/adapters/upstream"
	"github.com/parkwatch/ui-api/internal/data"
	"github.com/parkwatch/ui-api/internal/ports"
	"github.com/parkwatch/ui-api/internal/service"
	"github.com/parkwatch/ui-api/internal/service/expirybus"
	"github.com/redis/go-redis/v9"
)

// AuthStackConfig contains dependencies for the auth controller stack.
type AuthStackConfig struct {
	Config      *config.AppConfig
	RedisClient redis.UniversalClient
	// DB is optional. When nil (or audit is disabled) auth events are only
	// logged, never persisted.
	DB     *sql.DB
	Logger *slog.Logger
}

// AuthStack bundles the wired auth components the HTTP layer needs.
type AuthStack struct {
	Controller *service.AuthController
	Backend    ports.BackendClient
	Store      ports.SessionStore
	Bus        ports.ExpiryBus
	// Audit is nil when event persistence is disabled.
	Audit *data.AuthEventRepo
}

// BuildAuthStack wires the session store, backend client, expiry bus, and
// auth controller from configuration.
func BuildAuthStack(cfg AuthStackConfig) (*AuthStack, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if cfg.RedisClient == nil {
		return nil, fmt.Errorf("redis client is required for the session store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	up := cfg.Config.Upstream
	extractor, err := upstream.NewExtractor(upstream.ExtractorConfig{
		UserExpr:          up.UserExpr,
		TokenExpr:         up.TokenExpr,
		IDExpr:            up.IDExpr,
		RoleExpr:          up.RoleExpr,
		EmailVerifiedExpr: up.EmailVerifiedExpr,
	})
	if err != nil {
		return nil, fmt.Errorf("build profile extractor: %w", err)
	}

	store := redisadapter.NewSessionStore(redisadapter.SessionStoreOptions{
		Client:    cfg.RedisClient,
		Extractor: extractor,
		Prefix:    "session:",
		TTL:       cfg.Config.Auth.SessionTTL,
		Logger:    logger,
	})

	bus := expirybus.New()

	backend, err := upstream.NewClient(upstream.ClientOptions{
		Config: upstream.ClientConfig{
			BaseURL:             up.BaseURL,
			LoginPath:           up.LoginPath,
			LogoutPath:          up.LogoutPath,
			ProfilePath:         up.ProfilePath,
			ProfileFallbackPath: up.ProfileFallbackPath,
			ReportsPath:         up.ReportsPath,
			Timeout:             up.Timeout,
		},
		Extractor: extractor,
		Bus:       bus,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build upstream client: %w", err)
	}

	var audit *data.AuthEventRepo
	if cfg.DB != nil && cfg.Config.Postgres.Enabled {
		audit = data.NewAuthEventRepo(cfg.DB)
	}

	opts := service.AuthControllerOptions{
		Store:   store,
		Backend: backend,
		Bus:     bus,
		Routes: service.RouteSet{
			Login:      cfg.Config.Auth.LoginPath,
			Public:     cfg.Config.Auth.PublicPaths,
			PostLogout: cfg.Config.Auth.PostLogoutPath,
		},
		ConfirmTimeout: cfg.Config.Auth.ConfirmTimeout,
		Logger:         logger,
	}
	// Assign only a non-nil repo so the controller's nil check stays valid.
	if audit != nil {
		opts.Audit = audit
	}
	controller := service.NewAuthController(opts)

	return &AuthStack{
		Controller: controller,
		Backend:    backend,
		Store:      store,
		Bus:        bus,
		Audit:      audit,
	}, nil
}
