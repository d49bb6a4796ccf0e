package ports

// Package ports defines interfaces (hexagonal ports) for the auth core.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"encoding/json"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
)

// SessionStore persists the single mutable Session slot per gateway session.
// The auth controller is the sole writer; everything else is read-only.
type SessionStore interface {
	// Read returns the persisted session and whether one is present.
	// Malformed persisted data is treated as absent (the corrupt entry is
	// cleared, never surfaced to callers). The error return is reserved for
	// infrastructure failures.
	Read(ctx context.Context, id string) (domainauth.Session, bool, error)

	// Write persists the full session, replacing any prior value.
	Write(ctx context.Context, id string, sess domainauth.Session) error

	// Clear removes persisted state. Idempotent: clearing an absent entry
	// is not an error.
	Clear(ctx context.Context, id string) error
}

// LoginInput carries credentials for the backend login endpoint.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
}

// BackendClient issues login, logout, and profile requests against the
// report/user backend and classifies authentication failures.
//
// All implementations attach the bearer token when present and always send
// cookies, so cookie-based and token-based backends both work. A 401 from
// Login is an initial-auth failure (KindInvalidCredentials), never a session
// expiry; a 401 from FetchProfile or a pass-through call is KindSessionExpired
// and fires the expiry bus with the session ID carried in ctx.
type BackendClient interface {
	Login(ctx context.Context, in LoginInput) (domainauth.Session, error)
	Logout(ctx context.Context, token string) error

	// FetchProfile requests the authoritative current user. Used for
	// verification, not for login. Returns the extracted profile alongside
	// the raw backend payload.
	FetchProfile(ctx context.Context, token string) (domainauth.Profile, json.RawMessage, error)

	// SubmitReport and ListReports pass report traffic through to the
	// backend unchanged. userID narrows ListReports to one reporter when
	// non-empty.
	SubmitReport(ctx context.Context, token string, body json.RawMessage) (json.RawMessage, error)
	ListReports(ctx context.Context, token, userID string) (json.RawMessage, error)
}

// ExpiryBus is the process-wide broadcast point for the single
// session-expired event type. Delivery is at-least-once: rapid repeated
// publishes for the same session must collapse to a single visible effect,
// so handlers are required to be idempotent. Subscribers must not assume
// ordering relative to each other.
type ExpiryBus interface {
	Publish(sessionID string)
	Subscribe(handler func(sessionID string)) (unsubscribe func())
}

// ProfileExtractor pulls the three logical profile fields out of a
// backend-defined user payload.
type ProfileExtractor interface {
	Extract(raw json.RawMessage) (domainauth.Profile, error)
}

// AuthEventRepository records the auth audit trail.
type AuthEventRepository interface {
	Record(ctx context.Context, e domainauth.Event) error
	List(ctx context.Context, limit, offset int) ([]domainauth.Event, error)
}

// sessionIDKey is an unexported context key type so the gateway session ID
// can travel with outgoing backend requests without widening signatures.
type sessionIDKey struct{}

// WithSessionID returns a child context carrying the gateway session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionIDFromContext returns the gateway session ID carried by ctx, if any.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok && id != ""
}

// forwardedCookiesKey carries the browser's Cookie header so cookie-only
// backends keep working through the gateway.
type forwardedCookiesKey struct{}

// WithForwardedCookies returns a child context carrying the browser's raw
// Cookie header for pass-through to the backend.
func WithForwardedCookies(ctx context.Context, header string) context.Context {
	if header == "" {
		return ctx
	}
	return context.WithValue(ctx, forwardedCookiesKey{}, header)
}

// ForwardedCookiesFromContext returns the raw Cookie header carried by ctx.
func ForwardedCookiesFromContext(ctx context.Context) string {
	header, _ := ctx.Value(forwardedCookiesKey{}).(string)
	return header
}
