package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/ports"
)

// recordingBus captures expiry publishes for assertions.
type recordingBus struct {
	mu        sync.Mutex
	published []string
}

func (b *recordingBus) Publish(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, sessionID)
}

func (b *recordingBus) Subscribe(func(string)) func() { return func() {} }

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func newTestClient(t *testing.T, srv *httptest.Server, bus ports.ExpiryBus) *Client {
	t.Helper()
	extractor, err := NewExtractor(ExtractorConfig{})
	require.NoError(t, err)
	client, err := NewClient(ClientOptions{
		Config:    ClientConfig{BaseURL: srv.URL},
		Extractor: extractor,
		Bus:       bus,
	})
	require.NoError(t, err)
	return client
}

func TestLogin_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body["email"])
		assert.Equal(t, true, body["rememberMe"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"t1","user":{"id":1,"role":"user","isEmailVerified":true}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, nil)
	sess, err := client.Login(context.Background(), ports.LoginInput{
		Email: "a@b.com", Password: "secret", RememberMe: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", sess.Token)
	assert.Equal(t, "1", sess.User.ID)
	assert.Equal(t, domainauth.RoleUser, sess.User.Role)
	assert.True(t, sess.User.IsEmailVerified)
}

func TestLogin_InvalidCredentials_NoExpiryEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
	}))
	defer srv.Close()

	bus := &recordingBus{}
	client := newTestClient(t, srv, bus)
	ctx := ports.WithSessionID(context.Background(), "sid-1")

	_, err := client.Login(ctx, ports.LoginInput{Email: "a@b.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, ports.IsInvalidCredentials(err))
	assert.Equal(t, "Invalid credentials", ports.MessageOf(err))
	// A 401 on the login endpoint is an initial-auth failure, not a
	// revocation: the expiry bus must stay silent.
	assert.Zero(t, bus.count())
}

func TestLogin_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, nil)
	_, err := client.Login(context.Background(), ports.LoginInput{Email: "a@b.com", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, ports.KindServer, ports.KindOf(err))
	assert.Equal(t, "Something went wrong. Please try again.", ports.MessageOf(err))
}

func TestLogin_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	client := newTestClient(t, srv, nil)
	_, err := client.Login(context.Background(), ports.LoginInput{Email: "a@b.com", Password: "x"})
	require.Error(t, err)
	assert.True(t, ports.IsNetworkError(err))
	assert.Equal(t, ports.NetworkErrorMessage, ports.MessageOf(err))
}

func TestFetchProfile_Success_AttachesTokenAndCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/profile", r.URL.Path)
		assert.Equal(t, "Bearer t1", r.Header.Get("Authorization"))
		assert.Equal(t, "pw_session=abc; backend=xyz", r.Header.Get("Cookie"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u-1","role":"inspector","isEmailVerified":true}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, nil)
	ctx := ports.WithForwardedCookies(context.Background(), "pw_session=abc; backend=xyz")

	profile, raw, err := client.FetchProfile(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", profile.ID)
	assert.Equal(t, domainauth.RoleInspector, profile.Role)
	assert.NotEmpty(t, raw)
}

func TestFetchProfile_FallsBackToAuthMe(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/user/profile" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"u-1","role":"user","isEmailVerified":false}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, nil)
	profile, _, err := client.FetchProfile(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/user/profile", "/auth/me"}, paths)
	assert.Equal(t, "u-1", profile.ID)
	assert.False(t, profile.IsEmailVerified)
}

func TestFetchProfile_401_FiresExpiryBus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	bus := &recordingBus{}
	client := newTestClient(t, srv, bus)
	ctx := ports.WithSessionID(context.Background(), "sid-42")

	_, _, err := client.FetchProfile(ctx, "stale-token")
	require.Error(t, err)
	assert.True(t, ports.IsSessionExpired(err))
	require.Equal(t, 1, bus.count())
	assert.Equal(t, "sid-42", bus.published[0])
}

func TestLogout_IgnoresBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/logout", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("bye"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, nil)
	require.NoError(t, client.Logout(context.Background(), "t1"))
}

func TestOKWithUnparsableBody_IsSuccessWithEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, nil)
	body, err := client.ListReports(context.Background(), "t1", "")
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(body))
}

func TestListReports_ScopedByUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reports/u-7", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"r-1"}]`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, nil)
	body, err := client.ListReports(context.Background(), "t1", "u-7")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"r-1"}]`, string(body))
}

func TestSubmitReport_401_FiresExpiryBus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	bus := &recordingBus{}
	client := newTestClient(t, srv, bus)
	ctx := ports.WithSessionID(context.Background(), "sid-9")

	_, err := client.SubmitReport(ctx, "t1", json.RawMessage(`{"plate":"ABC123"}`))
	require.Error(t, err)
	assert.True(t, ports.IsSessionExpired(err))
	assert.Equal(t, 1, bus.count())
}
