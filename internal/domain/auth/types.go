package auth

// Package auth contains domain-level types for sessions and authentication
// status. It is pure and free of transport/adapter concerns.

import (
	"encoding/json"
	"time"
)

// Role represents an application authorization role.
// Kept in string form for easy persistence; values mirror what the
// report/user backend issues.
type Role string

const (
	RoleUser           Role = "user"
	RoleInspector      Role = "inspector"
	RoleSuperInspector Role = "superInspector"
	RoleAdmin          Role = "admin"
)

// ParseRole maps a raw role string onto a known Role.
// The second return is false for anything the backend sends that we do not
// recognize.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleInspector, RoleSuperInspector, RoleAdmin:
		return Role(s), true
	default:
		return "", false
	}
}

// Resolvable reports whether the role is one we can authorize against.
func (r Role) Resolvable() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// In reports whether the role is one of the allowed roles.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// Profile holds the three logical fields the auth core depends on,
// extracted defensively from the backend-defined user payload.
type Profile struct {
	ID              string `json:"id"`
	Role            Role   `json:"role"`
	IsEmailVerified bool   `json:"isEmailVerified"`
}

// Session is the locally held record of the authenticated user.
//
// RawUser is the last user payload received from storage or the backend; its
// shape is backend-defined and preserved verbatim. Token is present only when
// the backend issues bearer tokens; cookie-only backends leave it empty.
// User is derived from RawUser on read and is never persisted.
//
// Persisted form: {"token": "...", "user": {...}}.
type Session struct {
	Token   string          `json:"token,omitempty"`
	RawUser json.RawMessage `json:"user"`
	User    Profile         `json:"-"`
}

// Authorized reports whether the session carries a resolvable role.
// A session with an unresolvable role is treated as absent for authorization
// purposes but present for navigation purposes.
func (s Session) Authorized() bool { return s.User.Role.Resolvable() }

// Status is the derived authentication status exposed to route guards.
// It is computed, never stored.
type Status int

const (
	// StatusUnknown is the initial state for a verification pass. It is the
	// only state in which guards must block rendering.
	StatusUnknown Status = iota
	StatusUnauthenticated
	StatusAuthenticated
	// StatusVerificationFailed is transient: it always resolves to
	// StatusUnauthenticated plus a redirect side effect.
	StatusVerificationFailed
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	case StatusVerificationFailed:
		return "verificationFailed"
	default:
		return "invalid"
	}
}

// EventType classifies entries in the auth event audit trail.
type EventType string

const (
	EventLoginSuccess   EventType = "login_success"
	EventLoginFailure   EventType = "login_failure"
	EventLogout         EventType = "logout"
	EventSessionExpired EventType = "session_expired"
)

// Event is a single auth audit record. SessionID is the opaque gateway
// session identifier, never a credential.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Type      EventType `json:"type"`
	Email     string    `json:"email,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
