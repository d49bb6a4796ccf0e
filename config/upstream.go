package config

import "time"

// UpstreamConfig describes the black-box report/user backend the gateway
// proxies. Paths default to the backend's documented contract; JMESPath
// expressions let deployments adapt to whatever payload shape their backend
// actually sends without a code change.
type UpstreamConfig struct {
	// BaseURL of the report/user backend, e.g. "https://api.parkwatch.example".
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:9000"`

	LoginPath           string `env:"LOGIN_PATH"            envDefault:"/auth/login"`
	LogoutPath          string `env:"LOGOUT_PATH"           envDefault:"/auth/logout"`
	ProfilePath         string `env:"PROFILE_PATH"          envDefault:"/user/profile"`
	ProfileFallbackPath string `env:"PROFILE_FALLBACK_PATH" envDefault:"/auth/me"`
	ReportsPath         string `env:"REPORTS_PATH"          envDefault:"/reports"`

	// Timeout bounds every backend call.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// JMESPath expressions for extracting the profile from backend-defined
	// payloads.
	UserExpr          string `env:"USER_EXPR"           envDefault:"user || sanitizedUser || @"`
	TokenExpr         string `env:"TOKEN_EXPR"          envDefault:"token"`
	IDExpr            string `env:"ID_EXPR"             envDefault:"id || _id"`
	RoleExpr          string `env:"ROLE_EXPR"           envDefault:"role"`
	EmailVerifiedExpr string `env:"EMAIL_VERIFIED_EXPR" envDefault:"isEmailVerified"`
}

// Sanitize applies guardrails to upstream configuration values.
func (u *UpstreamConfig) Sanitize() {
	if u.Timeout <= 0 {
		u.Timeout = 10 * time.Second
	}
	if u.LoginPath == "" {
		u.LoginPath = "/auth/login"
	}
	if u.LogoutPath == "" {
		u.LogoutPath = "/auth/logout"
	}
	if u.ProfilePath == "" {
		u.ProfilePath = "/user/profile"
	}
}
