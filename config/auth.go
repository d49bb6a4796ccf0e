package config

import "time"

// AuthConfig groups session cookie and route configuration.
type AuthConfig struct {
	// CookieName is the name of the opaque gateway session cookie.
	CookieName string `env:"AUTH_COOKIE_NAME" envDefault:"pw_session"`

	// CookieDomain is the domain for the session cookie.
	// Leave empty to use the request domain.
	CookieDomain string `env:"AUTH_COOKIE_DOMAIN" envDefault:""`

	// SessionTTL is how long a persisted session lives in the store.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"720h"`

	// RememberMeTTL extends the session cookie when the user asks to stay
	// signed in.
	RememberMeTTL time.Duration `env:"AUTH_REMEMBER_ME_TTL" envDefault:"720h"`

	// LoginPath is the application's login route. Session verification is
	// skipped there to prevent redirect loops.
	LoginPath string `env:"AUTH_LOGIN_PATH" envDefault:"/login"`

	// VerifyEmailPath is where authenticated users with unverified emails
	// are sent.
	VerifyEmailPath string `env:"AUTH_VERIFY_EMAIL_PATH" envDefault:"/verify-email"`

	// DashboardPath is the default landing for authenticated users, and
	// where role-guard denials are sent.
	DashboardPath string `env:"AUTH_DASHBOARD_PATH" envDefault:"/dashboard"`

	// PostLogoutPath is where logout sends the user.
	PostLogoutPath string `env:"AUTH_POST_LOGOUT_PATH" envDefault:"/"`

	// PublicPaths resolve from cache without background confirmation.
	// A trailing "/" marks a prefix.
	PublicPaths []string `env:"AUTH_PUBLIC_PATHS" envDefault:"/;/signup;/verify-email/;/resend-verification" envSeparator:";"`

	// ConfirmTimeout bounds the background session confirmation call.
	ConfirmTimeout time.Duration `env:"AUTH_CONFIRM_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.CookieName == "" {
		a.CookieName = "pw_session"
	}
	if a.SessionTTL <= 0 {
		a.SessionTTL = 720 * time.Hour
	}
	if a.ConfirmTimeout <= 0 {
		a.ConfirmTimeout = 10 * time.Second
	}
	if a.LoginPath == "" {
		a.LoginPath = "/login"
	}
	if a.PostLogoutPath == "" {
		a.PostLogoutPath = "/"
	}
}
