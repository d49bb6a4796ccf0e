package redis

// Package redis provides the Redis-backed session store adapter.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/ports"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// SessionStore persists serialized sessions in Redis, one key per gateway
// session ID. It is pure storage: no network access to the backend, no
// derived logic beyond profile re-extraction on read.
type SessionStore struct {
	client    redis.UniversalClient
	extractor ports.ProfileExtractor
	prefix    string
	ttl       time.Duration
	logger    *slog.Logger
}

// SessionStoreOptions groups dependencies for NewSessionStore.
type SessionStoreOptions struct {
	Client    redis.UniversalClient
	Extractor ports.ProfileExtractor
	// Prefix defaults to "session:".
	Prefix string
	// TTL bounds how long an untouched session survives. Defaults to 30 days.
	TTL    time.Duration
	Logger *slog.Logger
}

// NewSessionStore creates a Redis-backed session store.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "session:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		client:    opts.Client,
		extractor: opts.Extractor,
		prefix:    prefix,
		ttl:       ttl,
		logger:    logger,
	}
}

// Read deserializes the persisted session for id. Malformed data is treated
// as absent and the corrupt entry is cleared; callers never see a parse
// error. The error return is reserved for Redis failures.
func (s *SessionStore) Read(ctx context.Context, id string) (domainauth.Session, bool, error) {
	if id == "" {
		return domainauth.Session{}, false, nil
	}

	data, err := s.client.Get(ctx, s.prefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, false, nil
		}
		return domainauth.Session{}, false, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal([]byte(data), &sess); unmarshalErr != nil {
		s.logger.WarnContext(ctx, "clearing malformed persisted session",
			"session_id", id, "error", unmarshalErr)
		if clearErr := s.Clear(ctx, id); clearErr != nil {
			s.logger.WarnContext(ctx, "clear malformed session failed",
				"session_id", id, "error", clearErr)
		}
		return domainauth.Session{}, false, nil
	}

	// Re-derive the profile; it is never persisted.
	if s.extractor != nil {
		if profile, extractErr := s.extractor.Extract(sess.RawUser); extractErr == nil {
			sess.User = profile
		}
	}

	return sess, true, nil
}

// Write persists the full session, replacing any prior value.
func (s *SessionStore) Write(ctx context.Context, id string, sess domainauth.Session) error {
	if id == "" {
		return errors.New("session ID cannot be empty")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.client.Set(ctx, s.prefix+id, data, s.ttl).Err()
}

// Clear removes the persisted session. Clearing an absent entry is a no-op.
func (s *SessionStore) Clear(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+id).Err()
}

var _ ports.SessionStore = (*SessionStore)(nil)
