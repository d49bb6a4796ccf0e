package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/ports"
)

// SessionExpiredMessage is shown when a session is demoted out from under an
// authenticated user.
const SessionExpiredMessage = "Your session has expired. Please log in again."

const defaultConfirmTimeout = 10 * time.Second

// RouteSet is the controller's knowledge of the application's route space.
// Bootstrap populates it from configuration.
type RouteSet struct {
	// Login is the login route. Verification is skipped entirely there to
	// prevent redirect loops.
	Login string
	// Public routes (landing, signup, verify-email variants) resolve from
	// cache without background confirmation. A trailing "/" marks a prefix.
	Public []string
	// PostLogout is where Logout sends the user.
	PostLogout string
}

// IsPublic reports whether route resolves without background confirmation.
func (r RouteSet) IsPublic(route string) bool {
	if route == r.Login {
		return true
	}
	for _, p := range r.Public {
		if strings.HasSuffix(p, "/") && p != "/" {
			if strings.HasPrefix(route, p) || route == strings.TrimSuffix(p, "/") {
				return true
			}
			continue
		}
		if route == p {
			return true
		}
	}
	return false
}

// Resolution is the outcome of one verification pass, consumed by route
// guards. Redirect is non-empty when the pass demands a navigation side
// effect; Message accompanies it.
type Resolution struct {
	Status   domainauth.Status
	Session  *domainauth.Session
	Redirect string
	Message  string
}

// AuthControllerOptions groups dependencies for AuthController.
type AuthControllerOptions struct {
	Store   ports.SessionStore
	Backend ports.BackendClient
	Bus     ports.ExpiryBus
	// Audit is optional; auth events are recorded best-effort.
	Audit  ports.AuthEventRepository
	Routes RouteSet
	// ConfirmTimeout bounds the background confirmation call.
	ConfirmTimeout time.Duration
	Logger         *slog.Logger
}

// AuthController owns current-user state: it runs the verification protocol,
// subscribes to the session expiry bus, and exposes derived authentication
// status to route guards. It is the sole writer of the persisted Session
// slot; guards and screens are read-only consumers. It never returns errors
// to guards; backend failures surface only to the handler that initiated a
// user-facing action.
type AuthController struct {
	store          ports.SessionStore
	backend        ports.BackendClient
	bus            ports.ExpiryBus
	audit          ports.AuthEventRepository
	routes         RouteSet
	confirmTimeout time.Duration
	logger         *slog.Logger

	mu         sync.Mutex
	attemptSeq uint64
	states     map[string]*sessionState

	unsubscribe func()
	confirms    sync.WaitGroup
}

// sessionState tracks one gateway session's verification pass. attempt is the
// monotonic identifier a confirmation captures at spawn; results from
// superseded attempts are discarded. pendingMsg arms exactly one
// redirect-with-message after an expiry.
//
// Entries are transient: they exist only while a confirmation is in flight or
// a message is armed, and are released on commit, consumption, login, and
// logout. Because attempt identifiers are globally monotonic, a released and
// recreated entry (attempt zero) can never match a stale confirmation.
type sessionState struct {
	attempt    uint64
	pendingMsg string
}

// NewAuthController constructs the controller and subscribes it to the
// expiry bus.
func NewAuthController(opts AuthControllerOptions) *AuthController {
	confirmTimeout := opts.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = defaultConfirmTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &AuthController{
		store:          opts.Store,
		backend:        opts.Backend,
		bus:            opts.Bus,
		audit:          opts.Audit,
		routes:         opts.Routes,
		confirmTimeout: confirmTimeout,
		logger:         logger,
		states:         make(map[string]*sessionState),
	}
	if opts.Bus != nil {
		c.unsubscribe = opts.Bus.Subscribe(c.onExpiry)
	}
	return c
}

// Close unsubscribes from the expiry bus and waits for in-flight
// confirmations to finish.
func (c *AuthController) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.confirms.Wait()
}

// Resolve runs one verification pass for the given route and gateway session.
// It returns once the status has left Unknown; the optional background
// confirmation keeps running and only ever demotes, never promotes, the
// optimistic result.
func (c *AuthController) Resolve(ctx context.Context, route, sid string) Resolution {
	// Skip verification entirely on the login route: an expired session on
	// the login page must not keep bouncing the user back to login.
	if route == c.routes.Login {
		return Resolution{Status: domainauth.StatusUnauthenticated}
	}

	// An expiry armed a redirect: deliver it exactly once.
	if msg, armed := c.takePending(sid); armed {
		return Resolution{
			Status:   domainauth.StatusUnauthenticated,
			Redirect: c.routes.Login,
			Message:  msg,
		}
	}

	sess, present := c.readSession(ctx, sid)
	if !present {
		return c.restoreFromCookie(ctx, sid)
	}

	// Optimistic authentication: resolve from cache immediately so the UI
	// does not flash a logged-out state, then confirm in the background
	// unless the route is public.
	if !c.routes.IsPublic(route) {
		attempt := c.beginAttempt(sid)
		c.confirms.Add(1)
		go c.confirm(ctx, sid, attempt, sess)
	}
	return Resolution{Status: domainauth.StatusAuthenticated, Session: &sess}
}

// restoreFromCookie covers a valid server session with no local cache (e.g.
// after the gateway's Redis was flushed): one profile call on the ambient
// cookie, synthesizing and persisting a Session on success.
func (c *AuthController) restoreFromCookie(ctx context.Context, sid string) Resolution {
	profile, rawUser, err := c.backend.FetchProfile(ctx, "")
	if err != nil {
		return Resolution{Status: domainauth.StatusUnauthenticated}
	}

	sess := domainauth.Session{RawUser: rawUser, User: profile}
	if sid != "" {
		if werr := c.store.Write(ctx, sid, sess); werr != nil {
			c.logger.WarnContext(ctx, "persist restored session failed", "error", werr)
		}
	}
	return Resolution{Status: domainauth.StatusAuthenticated, Session: &sess}
}

// confirm validates a cached session against the server. The attempt
// identifier captured at spawn gates every mutation: a slow, stale
// confirmation from a previous route must not demote a freshly authenticated
// session.
func (c *AuthController) confirm(parent context.Context, sid string, attempt uint64, cached domainauth.Session) {
	defer c.confirms.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.confirmTimeout)
	defer cancel()
	ctx = ports.WithSessionID(ctx, sid)
	if cookies := ports.ForwardedCookiesFromContext(parent); cookies != "" {
		ctx = ports.WithForwardedCookies(ctx, cookies)
	}

	profile, rawUser, err := c.backend.FetchProfile(ctx, cached.Token)
	if err != nil {
		if ports.IsSessionExpired(err) {
			// The backend client fires the bus on 401; publishing here again
			// covers clients without a bus. The handler is idempotent, so
			// the double-fire collapses to a single clear and redirect.
			if c.bus != nil {
				c.bus.Publish(sid)
			}
			c.logger.InfoContext(ctx, "session confirmation rejected", "session_id", sid)
			return
		}
		// A transient network blip must not log the user out.
		c.logger.WarnContext(ctx, "session confirmation failed",
			"session_id", sid, "error", err)
		return
	}

	// Role and verification flag are authoritative from the server; other
	// cached fields are preserved.
	merged := cached
	merged.RawUser = mergeRawUser(cached.RawUser, rawUser)
	merged.User.Role = profile.Role
	merged.User.IsEmailVerified = profile.IsEmailVerified
	if merged.User.ID == "" {
		merged.User.ID = profile.ID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[sid]
	if !ok || st.attempt != attempt {
		// Superseded (or released) while in flight; discard.
		return
	}
	if werr := c.store.Write(ctx, sid, merged); werr != nil {
		c.logger.WarnContext(ctx, "persist confirmed session failed", "error", werr)
	}
	// This was the latest attempt and nothing armed a message (arming bumps
	// the attempt), so the entry is no longer needed.
	delete(c.states, sid)
}

// Login authenticates against the backend and persists the session. The
// store is untouched on failure and no expiry event fires: a rejected login
// is an initial-auth failure, not a revocation.
func (c *AuthController) Login(ctx context.Context, sid string, in ports.LoginInput) (domainauth.Session, error) {
	sess, err := c.backend.Login(ctx, in)
	if err != nil {
		c.recordEvent(ctx, sid, domainauth.EventLoginFailure, in.Email, ports.MessageOf(err))
		return domainauth.Session{}, err
	}

	c.mu.Lock()
	// Releasing the entry supersedes confirmations for the prior identity:
	// their captured attempt can never match a recreated state.
	delete(c.states, sid)
	werr := c.store.Write(ctx, sid, sess)
	c.mu.Unlock()
	if werr != nil {
		c.logger.WarnContext(ctx, "persist session after login failed", "error", werr)
	}

	c.recordEvent(ctx, sid, domainauth.EventLoginSuccess, in.Email, "")
	return sess, nil
}

// Logout posts the remote logout best-effort, then clears local state
// regardless of the outcome and returns the post-logout destination. Logout
// must be effective locally even if the server call fails.
func (c *AuthController) Logout(ctx context.Context, sid string) string {
	token := ""
	if sess, present := c.readSession(ctx, sid); present {
		token = sess.Token
	}

	if err := c.backend.Logout(ctx, token); err != nil {
		c.logger.WarnContext(ctx, "remote logout failed; clearing local session anyway",
			"session_id", sid, "error", err)
	}

	c.mu.Lock()
	delete(c.states, sid)
	cerr := c.store.Clear(ctx, sid)
	c.mu.Unlock()
	if cerr != nil {
		c.logger.WarnContext(ctx, "clear session on logout failed", "error", cerr)
	}

	c.recordEvent(ctx, sid, domainauth.EventLogout, "", "")
	return c.routes.PostLogout
}

// onExpiry handles the session-expired event: unconditionally clear state
// and arm exactly one redirect to login with the expiry message. The handler
// is idempotent so a double-fire (bus plus confirmation failure) does not
// double-navigate. Sessions that were never present arm no message: there is
// nothing to expire.
func (c *AuthController) onExpiry(sid string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, present, err := c.store.Read(ctx, sid)
	if err != nil {
		c.logger.WarnContext(ctx, "read session on expiry failed", "session_id", sid, "error", err)
		present = false
	}

	// Supersede in-flight confirmations before clearing so none of them can
	// resurrect the session afterwards.
	c.mu.Lock()
	if present {
		st := c.stateLocked(sid)
		st.attempt = c.nextAttemptLocked()
		if st.pendingMsg == "" {
			st.pendingMsg = SessionExpiredMessage
		}
	} else if st, ok := c.states[sid]; !ok || st.pendingMsg == "" {
		// Nothing to expire and no redirect armed (a double-fire keeps its
		// armed message); releasing the entry still supersedes any in-flight
		// confirmation.
		delete(c.states, sid)
	}
	cerr := c.store.Clear(ctx, sid)
	c.mu.Unlock()
	if cerr != nil {
		c.logger.WarnContext(ctx, "clear session on expiry failed", "session_id", sid, "error", cerr)
	}

	if present {
		c.recordEvent(ctx, sid, domainauth.EventSessionExpired, "", "")
	}
}

func (c *AuthController) readSession(ctx context.Context, sid string) (domainauth.Session, bool) {
	if sid == "" {
		return domainauth.Session{}, false
	}
	sess, present, err := c.store.Read(ctx, sid)
	if err != nil {
		c.logger.WarnContext(ctx, "read session failed", "session_id", sid, "error", err)
		return domainauth.Session{}, false
	}
	return sess, present
}

func (c *AuthController) takePending(sid string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[sid]
	if !ok || st.pendingMsg == "" {
		return "", false
	}
	// Consuming the message is the entry's last duty: arming it already
	// superseded any in-flight confirmation.
	msg := st.pendingMsg
	delete(c.states, sid)
	return msg, true
}

func (c *AuthController) beginAttempt(sid string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stateLocked(sid)
	st.attempt = c.nextAttemptLocked()
	return st.attempt
}

// stateLocked returns the per-session state, creating it if needed.
// Callers hold c.mu.
func (c *AuthController) stateLocked(sid string) *sessionState {
	st, ok := c.states[sid]
	if !ok {
		st = &sessionState{}
		c.states[sid] = st
	}
	return st
}

// nextAttemptLocked hands out globally monotonic attempt identifiers so a
// stale confirmation can never collide with a fresh pass. Callers hold c.mu.
func (c *AuthController) nextAttemptLocked() uint64 {
	c.attemptSeq++
	return c.attemptSeq
}

func (c *AuthController) recordEvent(ctx context.Context, sid string, typ domainauth.EventType, email, detail string) {
	if c.audit == nil {
		return
	}
	e := domainauth.Event{
		SessionID: sid,
		Type:      typ,
		Email:     email,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.audit.Record(context.WithoutCancel(ctx), e); err != nil {
		c.logger.WarnContext(ctx, "record auth event failed", "type", typ, "error", err)
	}
}

// mergeRawUser overlays the server's user payload onto the cached one so
// fields the server stopped sending are preserved.
func mergeRawUser(cached, server json.RawMessage) json.RawMessage {
	var base map[string]json.RawMessage
	if err := json.Unmarshal(cached, &base); err != nil || base == nil {
		return server
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(server, &overlay); err != nil || overlay == nil {
		return cached
	}
	for k, v := range overlay {
		base[k] = v
	}
	out, err := json.Marshal(base)
	if err != nil {
		return server
	}
	return out
}
