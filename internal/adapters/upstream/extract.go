package upstream

import (
	"encoding/json"
	"fmt"
	"strconv"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/ports"
)

// ExtractorConfig holds the JMESPath expressions used to pull the logical
// profile fields out of backend-defined payloads. The backend has shipped
// several envelope shapes over time (user, sanitizedUser, bare object), so
// the expressions are configurable rather than hard-coded field names.
type ExtractorConfig struct {
	// UserExpr selects the user object inside a response envelope.
	UserExpr string
	// TokenExpr selects the bearer token inside a login response, when the
	// backend issues one.
	TokenExpr string
	// IDExpr, RoleExpr, and EmailVerifiedExpr are evaluated against the
	// selected user object.
	IDExpr            string
	RoleExpr          string
	EmailVerifiedExpr string
}

func (c *ExtractorConfig) applyDefaults() {
	if c.UserExpr == "" {
		c.UserExpr = "user || sanitizedUser || @"
	}
	if c.TokenExpr == "" {
		c.TokenExpr = "token"
	}
	if c.IDExpr == "" {
		c.IDExpr = "id || _id"
	}
	if c.RoleExpr == "" {
		c.RoleExpr = "role"
	}
	if c.EmailVerifiedExpr == "" {
		c.EmailVerifiedExpr = "isEmailVerified"
	}
}

// Extractor evaluates the configured expressions against decoded payloads.
type Extractor struct {
	cfg ExtractorConfig
}

// NewExtractor validates the expressions and returns an Extractor.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	cfg.applyDefaults()
	for _, expr := range []string{cfg.UserExpr, cfg.TokenExpr, cfg.IDExpr, cfg.RoleExpr, cfg.EmailVerifiedExpr} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("compile JMESPath %q: %w", expr, err)
		}
	}
	return &Extractor{cfg: cfg}, nil
}

// UserPayload selects the user object out of a response envelope and returns
// it re-serialized. Falls back to the whole payload when the expression
// selects nothing.
func (e *Extractor) UserPayload(raw json.RawMessage) json.RawMessage {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return raw
	}
	selected, err := jmespath.Search(e.cfg.UserExpr, data)
	if err != nil || selected == nil {
		return raw
	}
	out, err := json.Marshal(selected)
	if err != nil {
		return raw
	}
	return out
}

// Token selects the bearer token out of a login response, if present.
func (e *Extractor) Token(raw json.RawMessage) string {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}
	selected, err := jmespath.Search(e.cfg.TokenExpr, data)
	if err != nil {
		return ""
	}
	token, _ := selected.(string)
	return token
}

// Extract pulls the logical profile fields out of a user payload. Missing or
// unrecognized fields degrade to zero values rather than errors: a profile
// with an unresolvable role is still a profile.
func (e *Extractor) Extract(raw json.RawMessage) (domainauth.Profile, error) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return domainauth.Profile{}, fmt.Errorf("decode user payload: %w", err)
	}

	var profile domainauth.Profile
	if id, err := jmespath.Search(e.cfg.IDExpr, data); err == nil {
		profile.ID = stringify(id)
	}
	if role, err := jmespath.Search(e.cfg.RoleExpr, data); err == nil {
		if s, ok := role.(string); ok {
			// Keep the raw value even when unrecognized: such a session is
			// absent for authorization but present for navigation.
			profile.Role = domainauth.Role(s)
		}
	}
	if verified, err := jmespath.Search(e.cfg.EmailVerifiedExpr, data); err == nil {
		profile.IsEmailVerified = truthy(verified)
	}
	return profile, nil
}

// stringify normalizes backend identifiers: some revisions send numeric IDs,
// some send strings.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}

var _ ports.ProfileExtractor = (*Extractor)(nil)
