package httpx

import (
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/ports"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth    AuthServiceInterface
	Backend ports.BackendClient
	// Audit is optional; when nil the audit endpoints are not registered.
	Audit  AuditQuerier
	Cookie CookieConfig
	// RememberMeTTL extends the session cookie on remembered logins.
	RememberMeTTL time.Duration
	Paths         GuardPaths
	Logger        *slog.Logger
}

// NewRouter creates and configures the gateway's HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:           services.Auth,
		Cookie:        services.Cookie,
		RememberMeTTL: services.RememberMeTTL,
		Logger:        logger,
	}
	reportHandlers := &ReportHandlers{Backend: services.Backend, Logger: logger}
	guard := Guard{Resolver: services.Auth, Paths: services.Paths}

	mux.HandleFunc("POST /auth/login", authHandlers.Login)
	mux.HandleFunc("POST /auth/logout", authHandlers.Logout)
	mux.HandleFunc("GET /auth/session", authHandlers.Session)

	mux.Handle("POST /api/reports", guard.RequireAuth(http.HandlerFunc(reportHandlers.Submit)))
	mux.Handle("GET /api/reports", guard.RequireAuth(http.HandlerFunc(reportHandlers.ListOwn)))
	mux.Handle("GET /api/reports/{userID}", guard.RequireInspector(http.HandlerFunc(reportHandlers.ListForUser)))

	if services.Audit != nil {
		auditHandlers := &AuditHandlers{Events: services.Audit, Logger: logger}
		mux.Handle("GET /api/audit/events",
			guard.RequireRole(domainauth.RoleAdmin)(http.HandlerFunc(auditHandlers.ListEvents)))
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	handler = SessionCookie(services.Cookie)(handler)
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
