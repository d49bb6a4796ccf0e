package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/testutil"
)

// staticExtractor is a minimal extractor for store tests; the real JMESPath
// extractor has its own tests in the upstream package.
type staticExtractor struct{}

func (staticExtractor) Extract(raw json.RawMessage) (domainauth.Profile, error) {
	var p domainauth.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return domainauth.Profile{}, err
	}
	return p, nil
}

func setupStore(t *testing.T) (*SessionStore, *redis.Client) {
	t.Helper()
	client := testutil.SetupTestRedis(t)
	store := NewSessionStore(SessionStoreOptions{
		Client:    client,
		Extractor: staticExtractor{},
	})
	return store, client
}

func TestSessionStore_WriteAndRead(t *testing.T) {
	store, client := setupStore(t)
	defer client.Close()
	ctx := context.Background()

	sess := domainauth.Session{
		Token:   "t1",
		RawUser: json.RawMessage(`{"id":"u-1","role":"user","isEmailVerified":true}`),
	}
	require.NoError(t, store.Write(ctx, "sid-1", sess))

	got, ok, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "t1", got.Token)
	assert.Equal(t, domainauth.RoleUser, got.User.Role)
	assert.True(t, got.User.IsEmailVerified)
}

func TestSessionStore_ReadAbsent(t *testing.T) {
	store, client := setupStore(t)
	defer client.Close()

	_, ok, err := store.Read(context.Background(), "never-written")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_ReadEmptyID(t *testing.T) {
	store, client := setupStore(t)
	defer client.Close()

	_, ok, err := store.Read(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_MalformedDataClearedAndAbsent(t *testing.T) {
	store, client := setupStore(t)
	defer client.Close()
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "session:sid-bad", "{not json", 0).Err())

	_, ok, err := store.Read(ctx, "sid-bad")
	require.NoError(t, err)
	assert.False(t, ok)

	// The corrupt entry must be gone.
	exists, err := client.Exists(ctx, "session:sid-bad").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestSessionStore_WriteReplaces(t *testing.T) {
	store, client := setupStore(t)
	defer client.Close()
	ctx := context.Background()

	first := domainauth.Session{Token: "t1", RawUser: json.RawMessage(`{"id":"u-1","role":"user"}`)}
	second := domainauth.Session{Token: "t2", RawUser: json.RawMessage(`{"id":"u-1","role":"inspector"}`)}
	require.NoError(t, store.Write(ctx, "sid-1", first))
	require.NoError(t, store.Write(ctx, "sid-1", second))

	got, ok, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "t2", got.Token)
	assert.Equal(t, domainauth.RoleInspector, got.User.Role)
}

func TestSessionStore_ClearIdempotent(t *testing.T) {
	store, client := setupStore(t)
	defer client.Close()
	ctx := context.Background()

	sess := domainauth.Session{RawUser: json.RawMessage(`{"id":"u-1","role":"user"}`)}
	require.NoError(t, store.Write(ctx, "sid-1", sess))
	require.NoError(t, store.Clear(ctx, "sid-1"))
	require.NoError(t, store.Clear(ctx, "sid-1"))
	require.NoError(t, store.Clear(ctx, ""))

	_, ok, err := store.Read(ctx, "sid-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
