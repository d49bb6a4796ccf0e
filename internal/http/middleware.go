package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/ports"
	"github.com/parkwatch/ui-api/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CookieConfig describes the gateway session cookie.
type CookieConfig struct {
	// Name of the opaque gateway session cookie.
	Name string
	// Domain scope for the cookie; empty means host-only.
	Domain string
	// TTL of a remembered session cookie. Zero yields a browser-session cookie.
	TTL time.Duration
}

// SessionCookie returns a middleware that assigns every browser an opaque
// gateway session ID. The ID identifies the per-browser session slot in the
// store; it is never a credential. The middleware also forwards the raw
// Cookie header on the context so cookie-based upstream backends keep
// working through the proxy.
func SessionCookie(cfg CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if c, err := r.Cookie(cfg.Name); err == nil && c.Value != "" {
				sid = c.Value
			}
			if sid == "" {
				sid = uuid.NewString()
				setSessionCookie(w, r, cfg, sid)
			}

			ctx := SetSessionIDInContext(r.Context(), sid)
			if raw := r.Header.Get("Cookie"); raw != "" {
				ctx = ports.WithForwardedCookies(ctx, raw)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// setSessionCookie writes the gateway session cookie.
func setSessionCookie(w http.ResponseWriter, r *http.Request, cfg CookieConfig, sid string) {
	c := &http.Cookie{
		Name:     cfg.Name,
		Value:    sid,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.TTL > 0 {
		c.MaxAge = int(cfg.TTL.Seconds())
	}
	http.SetCookie(w, c)
}

// ClearSessionCookie expires the gateway session cookie. It mirrors key
// attributes used when setting cookies to maximize compatibility across
// browsers during deletion.
func ClearSessionCookie(w http.ResponseWriter, r *http.Request, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Resolver is the guard-facing surface of the auth controller: one
// verification pass for a route and gateway session.
type Resolver interface {
	Resolve(ctx context.Context, route, sid string) service.Resolution
}

// GuardPaths names the routes guards redirect to. Bootstrap populates it from
// configuration.
type GuardPaths struct {
	Login       string
	VerifyEmail string
	Dashboard   string
}

// Guard builds route-guard middleware around the auth controller's Resolve.
// Guards are read-only consumers of auth state; they never mutate the session
// slot themselves.
type Guard struct {
	Resolver Resolver
	Paths    GuardPaths
}

// VerifyingMessage is rendered while a verification pass has not yet settled.
const VerifyingMessage = "Verifying your session..."

// RequireAuth requires an authenticated session with a verified email.
// Unauthenticated browser requests are redirected to the login page; API
// requests get a 401. An Unknown status renders a placeholder, never
// protected content and never a premature redirect.
func (g Guard) RequireAuth(next http.Handler) http.Handler {
	return g.protect(next, nil)
}

// RequireRole requires an authenticated, verified session whose role is one
// of the allowed roles. A session whose role cannot be resolved is treated as
// absent for authorization and is sent to login rather than to an
// access-denied page.
func (g Guard) RequireRole(allowed ...domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.protect(next, allowed)
	}
}

// RequireInspector admits the inspector role and nothing else. Super
// inspectors and admins have their own surfaces; routes that want a wider
// set compose RequireRole directly.
func (g Guard) RequireInspector(next http.Handler) http.Handler {
	return g.protect(next, []domainauth.Role{domainauth.RoleInspector})
}

func (g Guard) protect(next http.Handler, allowed []domainauth.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := SessionIDFromContext(r.Context())
		res := g.Resolver.Resolve(r.Context(), r.URL.Path, sid)

		switch {
		case res.Status == domainauth.StatusUnknown:
			// The pass has not settled; block rendering without redirecting.
			writeVerifying(w, r)
			return

		case res.Redirect != "":
			g.deny(w, r, denial{
				location: res.Redirect,
				message:  res.Message,
				code:     http.StatusUnauthorized,
				errCode:  "session_expired",
			})
			return

		case res.Status != domainauth.StatusAuthenticated || res.Session == nil:
			g.deny(w, r, denial{
				location: g.Paths.Login,
				code:     http.StatusUnauthorized,
				errCode:  "authentication_required",
			})
			return
		}

		sess := res.Session
		if !sess.User.IsEmailVerified {
			g.deny(w, r, denial{
				location: g.Paths.VerifyEmail,
				code:     http.StatusForbidden,
				errCode:  "email_not_verified",
			})
			return
		}

		if allowed != nil {
			if !sess.Authorized() {
				// Unresolvable role: present for navigation, absent for
				// authorization.
				g.deny(w, r, denial{
					location: g.Paths.Login,
					code:     http.StatusUnauthorized,
					errCode:  "authentication_required",
				})
				return
			}
			if !sess.User.Role.In(allowed...) {
				g.deny(w, r, denial{
					location: g.Paths.Dashboard,
					code:     http.StatusForbidden,
					errCode:  "insufficient_permissions",
				})
				return
			}
		}

		ctx := SetSessionInContext(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// denial describes how to reject a request: a redirect for browsers, a JSON
// error for API clients.
type denial struct {
	location string
	message  string
	code     int
	errCode  string
}

func (g Guard) deny(w http.ResponseWriter, r *http.Request, d denial) {
	if isBrowserRequest(r) {
		redirectWithMessage(w, r, d.location, d.message)
		return
	}
	msg := d.message
	if msg == "" {
		msg = http.StatusText(d.code)
	}
	WriteJSON(w, d.code, map[string]string{"error": d.errCode, "message": msg})
}

// redirectWithMessage issues a 303 so the browser replaces the protected
// request rather than re-submitting it. A non-empty message travels as a
// query parameter for the destination page to display.
func redirectWithMessage(w http.ResponseWriter, r *http.Request, location, message string) {
	if location == "" {
		location = "/"
	}
	if message != "" {
		u := url.URL{Path: location}
		q := url.Values{}
		q.Set("message", message)
		u.RawQuery = q.Encode()
		location = u.String()
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func writeVerifying(w http.ResponseWriter, r *http.Request) {
	if isBrowserRequest(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("<p>" + VerifyingMessage + "</p>"))
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  domainauth.StatusUnknown.String(),
		"message": VerifyingMessage,
	})
}

// isBrowserRequest determines if a request is from a browser based on:
// 1. Path prefix - API routes start with /api/
// 2. Accept header - browsers typically accept text/html.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}

	accept := r.Header.Get("Accept")
	if accept == "" {
		// No Accept header, assume browser for non-API routes
		return true
	}
	return strings.Contains(accept, "text/html")
}
