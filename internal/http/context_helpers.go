package httpx

import (
	"context"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/ports"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// It carries the resolved session after a guard pass.
type sessionKey struct{}

// SetSessionIDInContext returns a child context carrying the gateway session ID.
// The ID also travels on the ports context so the upstream client can attach
// it to expiry events.
func SetSessionIDInContext(ctx context.Context, sid string) context.Context {
	if sid == "" {
		return ctx
	}
	return ports.WithSessionID(ctx, sid)
}

// SessionIDFromContext returns the gateway session ID assigned by the session
// cookie middleware, or "" if none was assigned.
func SessionIDFromContext(ctx context.Context) string {
	sid, _ := ports.SessionIDFromContext(ctx)
	return sid
}

// SetSessionInContext returns a child context that carries the given session.
// If session is nil, the original ctx is returned unchanged.
func SetSessionInContext(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetUserSessionFromContext returns the user session from context and a boolean indicating presence.
func GetUserSessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	if session, ok := ctx.Value(sessionKey{}).(*domainauth.Session); ok && session != nil {
		return session, true
	}
	return nil, false
}

// GetSessionFromContext retrieves the session from the request context.
// Maintained for convenience; prefer GetUserSessionFromContext when you need presence info.
func GetSessionFromContext(ctx context.Context) *domainauth.Session {
	if s, ok := GetUserSessionFromContext(ctx); ok {
		return s
	}
	return nil
}
