package upstream

// Package upstream implements the HTTP client for the report/user backend.
// It normalizes responses, classifies authentication failures, and signals
// session expiry on the expiry bus. It never writes the session store; the
// auth controller owns all session mutation.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/ports"
)

const maxResponseBody = 1 << 20

// ClientConfig holds the backend endpoints and timeouts.
type ClientConfig struct {
	BaseURL string
	// Endpoint paths, relative to BaseURL.
	LoginPath           string
	LogoutPath          string
	ProfilePath         string
	ProfileFallbackPath string
	ReportsPath         string
	Timeout             time.Duration
}

func (c *ClientConfig) applyDefaults() {
	if c.LoginPath == "" {
		c.LoginPath = "/auth/login"
	}
	if c.LogoutPath == "" {
		c.LogoutPath = "/auth/logout"
	}
	if c.ProfilePath == "" {
		c.ProfilePath = "/user/profile"
	}
	if c.ProfileFallbackPath == "" {
		c.ProfileFallbackPath = "/auth/me"
	}
	if c.ReportsPath == "" {
		c.ReportsPath = "/reports"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// ClientOptions groups dependencies for NewClient.
type ClientOptions struct {
	Config    ClientConfig
	Extractor *Extractor
	Bus       ports.ExpiryBus
	// HTTPClient is optional; a timeout-bounded default is built from Config.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the report/user backend.
type Client struct {
	cfg       ClientConfig
	http      *http.Client
	extractor *Extractor
	bus       ports.ExpiryBus
	logger    *slog.Logger
}

// NewClient constructs a backend client.
func NewClient(opts ClientOptions) (*Client, error) {
	cfg := opts.Config
	cfg.applyDefaults()
	if cfg.BaseURL == "" {
		return nil, errors.New("upstream base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("parse upstream base URL: %w", err)
	}
	if opts.Extractor == nil {
		return nil, errors.New("profile extractor is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:       cfg,
		http:      httpClient,
		extractor: opts.Extractor,
		bus:       opts.Bus,
		logger:    logger,
	}, nil
}

// Login posts credentials. A 401 here is an initial-auth failure, never a
// session expiry, so the expiry bus is deliberately not fired on this path.
func (c *Client) Login(ctx context.Context, in ports.LoginInput) (domainauth.Session, error) {
	payload := map[string]any{
		"email":      in.Email,
		"password":   in.Password,
		"rememberMe": in.RememberMe,
	}
	resp, err := c.do(ctx, http.MethodPost, c.cfg.LoginPath, "", payload)
	if err != nil {
		return domainauth.Session{}, err
	}
	if resp.status < 200 || resp.status > 299 {
		if resp.status >= 400 && resp.status < 500 {
			return domainauth.Session{}, &ports.BackendError{
				Kind:       ports.KindInvalidCredentials,
				StatusCode: resp.status,
				Message:    resp.messageOr("Invalid email or password."),
			}
		}
		return domainauth.Session{}, resp.serverError()
	}

	rawUser := c.extractor.UserPayload(resp.body)
	profile, err := c.extractor.Extract(rawUser)
	if err != nil {
		return domainauth.Session{}, &ports.BackendError{
			Kind:       ports.KindServer,
			StatusCode: resp.status,
			Message:    "The server returned an unexpected response.",
			Err:        err,
		}
	}

	return domainauth.Session{
		Token:   c.extractor.Token(resp.body),
		RawUser: rawUser,
		User:    profile,
	}, nil
}

// Logout posts the logout request. The response body is ignored; callers
// clear local state regardless of the outcome, so failures here are
// informational.
func (c *Client) Logout(ctx context.Context, token string) error {
	resp, err := c.do(ctx, http.MethodPost, c.cfg.LogoutPath, token, nil)
	if err != nil {
		return err
	}
	if resp.status < 200 || resp.status > 299 {
		return resp.serverError()
	}
	return nil
}

// FetchProfile requests the authoritative current user, falling back to the
// legacy endpoint when the primary one is absent. A 401 on either endpoint is
// classified as session expiry and fires the expiry bus.
func (c *Client) FetchProfile(ctx context.Context, token string) (domainauth.Profile, json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, c.cfg.ProfilePath, token, nil)
	if err != nil {
		return domainauth.Profile{}, nil, err
	}
	if resp.status == http.StatusNotFound {
		resp, err = c.do(ctx, http.MethodGet, c.cfg.ProfileFallbackPath, token, nil)
		if err != nil {
			return domainauth.Profile{}, nil, err
		}
	}
	if expErr := c.classifyAuthenticated(ctx, resp); expErr != nil {
		return domainauth.Profile{}, nil, expErr
	}

	rawUser := c.extractor.UserPayload(resp.body)
	profile, err := c.extractor.Extract(rawUser)
	if err != nil {
		return domainauth.Profile{}, nil, &ports.BackendError{
			Kind:       ports.KindServer,
			StatusCode: resp.status,
			Message:    "The server returned an unexpected response.",
			Err:        err,
		}
	}
	return profile, rawUser, nil
}

// SubmitReport passes a report submission through to the backend.
func (c *Client) SubmitReport(ctx context.Context, token string, body json.RawMessage) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodPost, c.cfg.ReportsPath, token, json.RawMessage(body))
	if err != nil {
		return nil, err
	}
	if expErr := c.classifyAuthenticated(ctx, resp); expErr != nil {
		return nil, expErr
	}
	return resp.body, nil
}

// ListReports fetches reports, narrowed to one reporter when userID is set.
func (c *Client) ListReports(ctx context.Context, token, userID string) (json.RawMessage, error) {
	path := c.cfg.ReportsPath
	if userID != "" {
		path = path + "/" + url.PathEscape(userID)
	}
	resp, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	if expErr := c.classifyAuthenticated(ctx, resp); expErr != nil {
		return nil, expErr
	}
	return resp.body, nil
}

// classifyAuthenticated maps non-2xx responses on post-login endpoints onto
// the failure taxonomy. 401 means the session stopped being valid: the expiry
// bus is fired with the session ID carried in ctx.
func (c *Client) classifyAuthenticated(ctx context.Context, resp *response) error {
	if resp.status >= 200 && resp.status <= 299 {
		return nil
	}
	if resp.status == http.StatusUnauthorized {
		if c.bus != nil {
			if sid, ok := ports.SessionIDFromContext(ctx); ok {
				c.bus.Publish(sid)
			}
		}
		return &ports.BackendError{
			Kind:       ports.KindSessionExpired,
			StatusCode: resp.status,
			Message:    "Your session has expired. Please log in again.",
		}
	}
	return resp.serverError()
}

// response is a normalized backend response. body is always valid JSON: an
// ok response with an empty or unparsable body is treated as success with an
// empty payload.
type response struct {
	status int
	body   json.RawMessage
}

func (r *response) messageOr(fallback string) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.body, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	return fallback
}

func (r *response) serverError() error {
	return &ports.BackendError{
		Kind:       ports.KindServer,
		StatusCode: r.status,
		Message:    r.messageOr("Something went wrong. Please try again."),
	}
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any) (*response, error) {
	var body io.Reader
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		body = bytes.NewReader(p)
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(c.cfg.BaseURL, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Attach the bearer token if present and always forward the browser's
	// cookies so cookie-based and token-based backends both work.
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if cookies := ports.ForwardedCookiesFromContext(ctx); cookies != "" {
		req.Header.Set("Cookie", cookies)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ports.BackendError{
			Kind:    ports.KindNetwork,
			Message: ports.NetworkErrorMessage,
			Err:     err,
		}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.WarnContext(ctx, "close response body failed", "error", cerr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &ports.BackendError{
			Kind:    ports.KindNetwork,
			Message: ports.NetworkErrorMessage,
			Err:     err,
		}
	}

	// Tolerate empty and non-JSON bodies without crashing.
	if len(bytes.TrimSpace(data)) == 0 || !json.Valid(data) {
		data = []byte("{}")
	}

	return &response{status: resp.StatusCode, body: data}, nil
}

var _ ports.BackendClient = (*Client)(nil)
