package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/ports"
	"github.com/parkwatch/ui-api/internal/service"
)

// AuthServiceInterface defines the controller operations the auth handlers
// depend on.
type AuthServiceInterface interface {
	Resolve(ctx context.Context, route, sid string) service.Resolution
	Login(ctx context.Context, sid string, in ports.LoginInput) (domainauth.Session, error)
	Logout(ctx context.Context, sid string) string
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc    AuthServiceInterface
	Cookie CookieConfig
	// RememberMeTTL extends the session cookie when the login asked to be
	// remembered.
	RememberMeTTL time.Duration
	Logger        *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var errMissingCredentials = errors.New("email and password are required")

// loginRequest is the login payload, accepted as JSON or form fields.
type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// Login handles the credential login endpoint.
// POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLogin(w, r)
	if !ok {
		return
	}

	sid := SessionIDFromContext(r.Context())
	sess, err := h.Svc.Login(r.Context(), sid, ports.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		// A rejected login never navigates and never touches the session
		// slot; the message renders inline on the login screen.
		h.writeLoginError(w, r, err)
		return
	}

	if req.RememberMe && h.RememberMeTTL > 0 {
		cfg := h.Cookie
		cfg.TTL = h.RememberMeTTL
		setSessionCookie(w, r, cfg, sid)
	}

	// An explicit redirect_uri (the page that bounced the user to login)
	// wins over the role landing, relative paths only.
	destination := safeRedirectPath(r.URL.Query().Get("redirect_uri"))
	if destination == "/" {
		destination = roleLanding(sess.User.Role)
	}
	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":     domainauth.StatusAuthenticated.String(),
			"user":       json.RawMessage(sess.RawUser),
			"redirectTo": destination,
		})
		return
	}
	http.Redirect(w, r, destination, http.StatusSeeOther)
}

func (h *AuthHandlers) decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, bool) {
	var req loginRequest
	ct := r.Header.Get("Content-Type")
	if strings.Contains(ct, "application/json") {
		if !DecodeJSON(w, r, &req) {
			return req, false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
			return req, false
		}
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
		remember := r.PostFormValue("rememberMe")
		req.RememberMe = remember == "true" || remember == "on" || remember == "1"
	}

	if req.Email == "" || req.Password == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_credentials",
			Err:     errMissingCredentials,
		})
		return req, false
	}
	return req, true
}

func (h *AuthHandlers) writeLoginError(w http.ResponseWriter, r *http.Request, err error) {
	msg := ports.MessageOf(err)
	switch ports.KindOf(err) {
	case ports.KindInvalidCredentials:
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_credentials", "message": msg})
	case ports.KindNetwork:
		WriteJSON(w, http.StatusBadGateway, map[string]string{"error": "backend_unreachable", "message": msg})
	default:
		h.logger().ErrorContext(r.Context(), "login failed", "error", err)
		WriteJSON(w, http.StatusBadGateway, map[string]string{"error": "login_failed", "message": msg})
	}
}

// Logout handles the logout endpoint.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	destination := h.Svc.Logout(r.Context(), sid)
	if destination == "" {
		destination = "/"
	}

	ClearSessionCookie(w, r, h.Cookie)

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":     "signed_out",
			"redirectTo": destination,
		})
		return
	}
	http.Redirect(w, r, destination, http.StatusSeeOther)
}

// Session returns the current authentication status for screens.
// GET /auth/session.
//
// This runs a full verification pass, so an armed expiry redirect is
// delivered (and consumed) here: the response carries redirectTo and message
// for the client to honor.
func (h *AuthHandlers) Session(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	res := h.Svc.Resolve(r.Context(), r.URL.Path, sid)

	body := map[string]any{"status": res.Status.String()}
	if res.Session != nil && len(res.Session.RawUser) > 0 {
		body["user"] = json.RawMessage(res.Session.RawUser)
	}
	if res.Redirect != "" {
		body["redirectTo"] = res.Redirect
	}
	if res.Message != "" {
		body["message"] = res.Message
	}
	WriteJSON(w, http.StatusOK, body)
}

// roleLanding maps a role onto its post-login landing route.
func roleLanding(role domainauth.Role) string {
	switch role {
	case domainauth.RoleAdmin:
		return "/admin"
	case domainauth.RoleInspector, domainauth.RoleSuperInspector:
		return "/inspector"
	default:
		return "/dashboard"
	}
}

// wantsJSON reports whether the client asked for a JSON response rather than
// a navigation.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
