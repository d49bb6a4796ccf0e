package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/mocks"
	authmocks "github.com/parkwatch/ui-api/internal/mocks/auth"
	"github.com/parkwatch/ui-api/internal/ports"
	"github.com/parkwatch/ui-api/internal/service/expirybus"
)

const (
	testSID   = "sid-1"
	waitFor   = 2 * time.Second
	checkTick = 5 * time.Millisecond
)

func testRoutes() RouteSet {
	return RouteSet{
		Login:      "/login",
		Public:     []string{"/", "/signup", "/verify-email/", "/resend-verification"},
		PostLogout: "/",
	}
}

func cachedSession() domainauth.Session {
	return domainauth.Session{
		Token:   "t1",
		RawUser: json.RawMessage(`{"id":1,"role":"user","isEmailVerified":true,"name":"Ada"}`),
		User:    domainauth.Profile{ID: "1", Role: domainauth.RoleUser, IsEmailVerified: true},
	}
}

type fixture struct {
	store   *authmocks.MemorySessionStore
	backend *authmocks.MockBackendClient
	bus     *expirybus.Bus
	ctrl    *AuthController
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   authmocks.NewMemorySessionStore(),
		backend: &authmocks.MockBackendClient{},
		bus:     expirybus.New(),
	}
	f.ctrl = NewAuthController(AuthControllerOptions{
		Store:   f.store,
		Backend: f.backend,
		Bus:     f.bus,
		Routes:  testRoutes(),
	})
	t.Cleanup(f.ctrl.Close)
	return f
}

func TestResolve_LoginRoute_SkipsVerification(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())

	res := f.ctrl.Resolve(context.Background(), "/login", testSID)

	assert.Equal(t, domainauth.StatusUnauthenticated, res.Status)
	assert.Empty(t, res.Redirect)
	// Loop prevention: no verification network call on the login route,
	// even while holding a persisted (possibly expired) session.
	assert.Zero(t, f.backend.ProfileCalls())
	assert.True(t, f.store.Has(testSID))
}

func TestResolve_CachedSessionConfirmed(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())
	f.backend.FetchProfileFunc = func(context.Context, string) (domainauth.Profile, json.RawMessage, error) {
		return domainauth.Profile{ID: "1", Role: domainauth.RoleUser, IsEmailVerified: true},
			json.RawMessage(`{"id":1,"role":"user","isEmailVerified":true}`), nil
	}

	res := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)

	require.Equal(t, domainauth.StatusAuthenticated, res.Status)
	require.NotNil(t, res.Session)
	assert.Empty(t, res.Redirect)

	// Confirmation persists the merged session in the background.
	require.Eventually(t, func() bool { return f.store.Writes() > 0 }, waitFor, checkTick)

	// No redirect on a later pass either.
	later := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Equal(t, domainauth.StatusAuthenticated, later.Status)
	assert.Empty(t, later.Redirect)
}

func TestResolve_OptimisticBeforeConfirmation(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())

	release := make(chan struct{})
	f.backend.FetchProfileFunc = func(context.Context, string) (domainauth.Profile, json.RawMessage, error) {
		<-release
		return domainauth.Profile{}, nil, &ports.BackendError{Kind: ports.KindSessionExpired, StatusCode: 401, Message: SessionExpiredMessage}
	}

	// The pass resolves Authenticated immediately; confirmation only ever
	// demotes afterwards.
	res := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Equal(t, domainauth.StatusAuthenticated, res.Status)

	close(release)
	require.Eventually(t, func() bool { return !f.store.Has(testSID) }, waitFor, checkTick)
}

func TestResolve_ConfirmationRejected_ClearsAndRedirectsOnce(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())
	f.backend.FetchProfileFunc = func(ctx context.Context, _ string) (domainauth.Profile, json.RawMessage, error) {
		// The real backend client fires the bus itself on a post-login 401;
		// emulate that so this test exercises the double-fire path (one from
		// the bus, one from the verification failure).
		if sid, ok := ports.SessionIDFromContext(ctx); ok {
			f.bus.Publish(sid)
		}
		return domainauth.Profile{}, nil, &ports.BackendError{Kind: ports.KindSessionExpired, StatusCode: 401, Message: SessionExpiredMessage}
	}

	first := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Equal(t, domainauth.StatusAuthenticated, first.Status)

	require.Eventually(t, func() bool { return !f.store.Has(testSID) }, waitFor, checkTick)
	f.ctrl.Close() // drain the confirmation goroutine

	// Exactly one redirect with the expiry message, not two.
	second := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Equal(t, domainauth.StatusUnauthenticated, second.Status)
	assert.Equal(t, "/login", second.Redirect)
	assert.Equal(t, SessionExpiredMessage, second.Message)

	third := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Empty(t, third.Message)
	assert.Empty(t, third.Redirect)
}

func TestResolve_PublicRoute_NoConfirmation(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())

	res := f.ctrl.Resolve(context.Background(), "/", testSID)

	assert.Equal(t, domainauth.StatusAuthenticated, res.Status)
	f.ctrl.Close()
	assert.Zero(t, f.backend.ProfileCalls())
}

func TestResolve_AbsentSession_RestoredFromCookie(t *testing.T) {
	f := newFixture(t)
	f.backend.FetchProfileFunc = func(context.Context, string) (domainauth.Profile, json.RawMessage, error) {
		return domainauth.Profile{ID: "u-9", Role: domainauth.RoleInspector, IsEmailVerified: true},
			json.RawMessage(`{"id":"u-9","role":"inspector","isEmailVerified":true}`), nil
	}

	res := f.ctrl.Resolve(context.Background(), "/inspector", testSID)

	require.Equal(t, domainauth.StatusAuthenticated, res.Status)
	require.NotNil(t, res.Session)
	assert.Equal(t, domainauth.RoleInspector, res.Session.User.Role)

	// The synthesized session is persisted.
	stored, ok := f.store.Get(testSID)
	require.True(t, ok)
	assert.Equal(t, "u-9", stored.User.ID)
}

func TestResolve_AbsentSession_RestoreFails(t *testing.T) {
	f := newFixture(t)
	f.backend.FetchProfileFunc = func(context.Context, string) (domainauth.Profile, json.RawMessage, error) {
		return domainauth.Profile{}, nil, &ports.BackendError{Kind: ports.KindSessionExpired, StatusCode: 401, Message: SessionExpiredMessage}
	}

	res := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)

	assert.Equal(t, domainauth.StatusUnauthenticated, res.Status)
	assert.Empty(t, res.Redirect)
	assert.False(t, f.store.Has(testSID))

	// A session that was never present arms no expiry message.
	next := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Empty(t, next.Message)
}

func TestResolve_NetworkBlipDoesNotLogOut(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())
	f.backend.FetchProfileFunc = func(context.Context, string) (domainauth.Profile, json.RawMessage, error) {
		return domainauth.Profile{}, nil, &ports.BackendError{Kind: ports.KindNetwork, Message: ports.NetworkErrorMessage}
	}

	res := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Equal(t, domainauth.StatusAuthenticated, res.Status)

	f.ctrl.Close()
	assert.True(t, f.store.Has(testSID), "a transient network blip must not clear a valid session")
}

func TestConfirm_MergesAuthoritativeFields(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())
	f.backend.FetchProfileFunc = func(context.Context, string) (domainauth.Profile, json.RawMessage, error) {
		// Server promoted the user and dropped the cached "name" field.
		return domainauth.Profile{ID: "1", Role: domainauth.RoleInspector, IsEmailVerified: false},
			json.RawMessage(`{"id":1,"role":"inspector","isEmailVerified":false}`), nil
	}

	f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	require.Eventually(t, func() bool { return f.store.Writes() > 0 }, waitFor, checkTick)

	stored, ok := f.store.Get(testSID)
	require.True(t, ok)
	assert.Equal(t, domainauth.RoleInspector, stored.User.Role)
	assert.False(t, stored.User.IsEmailVerified)
	assert.Equal(t, "t1", stored.Token, "cached credential preserved")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(stored.RawUser, &raw))
	assert.Equal(t, "Ada", raw["name"], "cached fields the server stopped sending are preserved")
	assert.Equal(t, "inspector", raw["role"])
}

func TestConfirm_StaleAttemptDiscarded(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.backend.FetchProfileFunc = func(context.Context, string) (domainauth.Profile, json.RawMessage, error) {
		once.Do(func() { close(started) })
		<-release
		// Stale answer from before the re-login: old identity.
		return domainauth.Profile{ID: "1", Role: domainauth.RoleUser, IsEmailVerified: true},
			json.RawMessage(`{"id":1,"role":"user","isEmailVerified":true}`), nil
	}

	f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	<-started

	// The user logs in again while the confirmation is in flight.
	f.backend.LoginFunc = func(context.Context, ports.LoginInput) (domainauth.Session, error) {
		return domainauth.Session{
			Token:   "t2",
			RawUser: json.RawMessage(`{"id":"2","role":"admin","isEmailVerified":true}`),
			User:    domainauth.Profile{ID: "2", Role: domainauth.RoleAdmin, IsEmailVerified: true},
		}, nil
	}
	_, err := f.ctrl.Login(context.Background(), testSID, ports.LoginInput{Email: "b@c.com", Password: "pw"})
	require.NoError(t, err)

	close(release)
	f.ctrl.Close()

	// The stale confirmation from the superseded pass must not have
	// overwritten the fresh session.
	stored, ok := f.store.Get(testSID)
	require.True(t, ok)
	assert.Equal(t, "t2", stored.Token)
	assert.Equal(t, domainauth.RoleAdmin, stored.User.Role)
}

func TestLogin_InvalidCredentials_StoreUntouched(t *testing.T) {
	f := newFixture(t)
	f.backend.LoginFunc = func(context.Context, ports.LoginInput) (domainauth.Session, error) {
		return domainauth.Session{}, &ports.BackendError{
			Kind: ports.KindInvalidCredentials, StatusCode: 401, Message: "Invalid credentials",
		}
	}

	_, err := f.ctrl.Login(context.Background(), testSID, ports.LoginInput{Email: "a@b.com", Password: "wrong"})

	require.Error(t, err)
	assert.True(t, ports.IsInvalidCredentials(err))
	assert.Equal(t, "Invalid credentials", ports.MessageOf(err))
	assert.False(t, f.store.Has(testSID))
	assert.Zero(t, f.store.Writes())
	assert.Zero(t, f.store.Clears())
}

func TestLogin_ClearsPendingExpiryRedirect(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())
	f.bus.Publish(testSID) // session expires

	_, err := f.ctrl.Login(context.Background(), testSID, ports.LoginInput{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	// A fresh login must not be bounced by the stale expiry redirect.
	res := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Equal(t, domainauth.StatusAuthenticated, res.Status)
	assert.Empty(t, res.Redirect)
}

func TestLogout_BestEffort(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())
	f.backend.LogoutFunc = func(context.Context, string) error {
		return &ports.BackendError{Kind: ports.KindNetwork, Message: ports.NetworkErrorMessage}
	}

	dest := f.ctrl.Logout(context.Background(), testSID)

	assert.Equal(t, "/", dest)
	assert.False(t, f.store.Has(testSID), "logout must be effective locally even if the server call fails")

	// Idempotent: logging out again is harmless and lands in the same state.
	dest = f.ctrl.Logout(context.Background(), testSID)
	assert.Equal(t, "/", dest)
	assert.False(t, f.store.Has(testSID))

	res := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Equal(t, domainauth.StatusUnauthenticated, res.Status)
}

func TestOnExpiry_DoubleFire_SingleRedirect(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())

	f.bus.Publish(testSID)
	f.bus.Publish(testSID)

	assert.False(t, f.store.Has(testSID))

	res := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Equal(t, "/login", res.Redirect)
	assert.Equal(t, SessionExpiredMessage, res.Message)

	// Consumed: no second redirect-with-message.
	res = f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Empty(t, res.Redirect)
	assert.Empty(t, res.Message)
}

func trackedStates(c *AuthController) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.states)
}

func TestSessionState_ReleasedAfterLifecycle(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(testSID, cachedSession())
	f.backend.FetchProfileFunc = func(context.Context, string) (domainauth.Profile, json.RawMessage, error) {
		return domainauth.Profile{ID: "1", Role: domainauth.RoleUser, IsEmailVerified: true},
			json.RawMessage(`{"id":1,"role":"user","isEmailVerified":true}`), nil
	}

	// A completed confirmation leaves no tracking entry behind.
	f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	require.Eventually(t, func() bool { return f.store.Writes() > 0 }, waitFor, checkTick)
	require.Eventually(t, func() bool { return trackedStates(f.ctrl) == 0 }, waitFor, checkTick)

	// An expiry holds exactly one entry for the armed redirect; consuming the
	// redirect releases it.
	f.bus.Publish(testSID)
	assert.Equal(t, 1, trackedStates(f.ctrl))
	res := f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	assert.Equal(t, "/login", res.Redirect)
	assert.Zero(t, trackedStates(f.ctrl))

	// Logout releases whatever the session accumulated.
	f.store.Seed(testSID, cachedSession())
	f.ctrl.Resolve(context.Background(), "/dashboard", testSID)
	f.ctrl.Logout(context.Background(), testSID)
	f.ctrl.Close()
	assert.Zero(t, trackedStates(f.ctrl), "a long-lived gateway must not accrete per-session state")
}

func TestAuditTrail_RecordsLoginOutcomes(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	repo := mocks.NewMockAuthEventRepository(mockCtrl)

	store := authmocks.NewMemorySessionStore()
	backend := &authmocks.MockBackendClient{}
	ctrl := NewAuthController(AuthControllerOptions{
		Store:   store,
		Backend: backend,
		Bus:     expirybus.New(),
		Audit:   repo,
		Routes:  testRoutes(),
	})
	defer ctrl.Close()

	repo.EXPECT().Record(gomock.Any(), gomock.Cond(func(e domainauth.Event) bool {
		return e.Type == domainauth.EventLoginSuccess && e.Email == "a@b.com"
	})).Return(nil)
	_, err := ctrl.Login(context.Background(), testSID, ports.LoginInput{Email: "a@b.com", Password: "pw"})
	require.NoError(t, err)

	backend.LoginFunc = func(context.Context, ports.LoginInput) (domainauth.Session, error) {
		return domainauth.Session{}, &ports.BackendError{Kind: ports.KindInvalidCredentials, StatusCode: 401, Message: "Invalid credentials"}
	}
	repo.EXPECT().Record(gomock.Any(), gomock.Cond(func(e domainauth.Event) bool {
		return e.Type == domainauth.EventLoginFailure && e.Detail == "Invalid credentials"
	})).Return(nil)
	_, err = ctrl.Login(context.Background(), testSID, ports.LoginInput{Email: "a@b.com", Password: "nope"})
	require.Error(t, err)

	// Audit failures are swallowed, never surfaced to callers.
	repo.EXPECT().Record(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
	ctrl.Logout(context.Background(), testSID)
}

func TestRouteSet_IsPublic(t *testing.T) {
	routes := testRoutes()

	assert.True(t, routes.IsPublic("/"))
	assert.True(t, routes.IsPublic("/login"))
	assert.True(t, routes.IsPublic("/signup"))
	assert.True(t, routes.IsPublic("/verify-email"))
	assert.True(t, routes.IsPublic("/verify-email/abc123"))
	assert.False(t, routes.IsPublic("/dashboard"))
	assert.False(t, routes.IsPublic("/inspector"))
}
