package auth

// Package auth contains simple hand-written test doubles for the auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
	"github.com/parkwatch/ui-api/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionStore  = (*MemorySessionStore)(nil)
	_ ports.BackendClient = (*MockBackendClient)(nil)
	_ ports.ExpiryBus     = (*RecordingBus)(nil)
)

// MemorySessionStore is an in-memory session store for tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session

	// Optional overrides for error injection.
	ReadErr  error
	WriteErr error
	ClearErr error

	writes atomic.Int64
	clears atomic.Int64
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domainauth.Session)}
}

func (s *MemorySessionStore) Read(_ context.Context, id string) (domainauth.Session, bool, error) {
	if s.ReadErr != nil {
		return domainauth.Session{}, false, s.ReadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok, nil
}

func (s *MemorySessionStore) Write(_ context.Context, id string, sess domainauth.Session) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.writes.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
	return nil
}

func (s *MemorySessionStore) Clear(_ context.Context, id string) error {
	if s.ClearErr != nil {
		return s.ClearErr
	}
	s.clears.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Seed places a session in the store without counting as a write.
func (s *MemorySessionStore) Seed(id string, sess domainauth.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
}

// Has reports whether a session is present.
func (s *MemorySessionStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Get returns the stored session for assertions.
func (s *MemorySessionStore) Get(id string) (domainauth.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Writes returns how many times Write was called.
func (s *MemorySessionStore) Writes() int64 { return s.writes.Load() }

// Clears returns how many times Clear was called.
func (s *MemorySessionStore) Clears() int64 { return s.clears.Load() }

// MockBackendClient simulates the report/user backend with overridable
// behavior per operation and call counting for loop-prevention assertions.
type MockBackendClient struct {
	LoginFunc        func(ctx context.Context, in ports.LoginInput) (domainauth.Session, error)
	LogoutFunc       func(ctx context.Context, token string) error
	FetchProfileFunc func(ctx context.Context, token string) (domainauth.Profile, json.RawMessage, error)
	SubmitReportFunc func(ctx context.Context, token string, body json.RawMessage) (json.RawMessage, error)
	ListReportsFunc  func(ctx context.Context, token, userID string) (json.RawMessage, error)

	loginCalls   atomic.Int64
	logoutCalls  atomic.Int64
	profileCalls atomic.Int64
}

func (m *MockBackendClient) Login(ctx context.Context, in ports.LoginInput) (domainauth.Session, error) {
	m.loginCalls.Add(1)
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, in)
	}
	return domainauth.Session{
		Token:   "mock-token",
		RawUser: json.RawMessage(`{"id":"mock-user","role":"user","isEmailVerified":true}`),
		User:    domainauth.Profile{ID: "mock-user", Role: domainauth.RoleUser, IsEmailVerified: true},
	}, nil
}

func (m *MockBackendClient) Logout(ctx context.Context, token string) error {
	m.logoutCalls.Add(1)
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

func (m *MockBackendClient) FetchProfile(ctx context.Context, token string) (domainauth.Profile, json.RawMessage, error) {
	m.profileCalls.Add(1)
	if m.FetchProfileFunc != nil {
		return m.FetchProfileFunc(ctx, token)
	}
	return domainauth.Profile{ID: "mock-user", Role: domainauth.RoleUser, IsEmailVerified: true},
		json.RawMessage(`{"id":"mock-user","role":"user","isEmailVerified":true}`), nil
}

func (m *MockBackendClient) SubmitReport(ctx context.Context, token string, body json.RawMessage) (json.RawMessage, error) {
	if m.SubmitReportFunc != nil {
		return m.SubmitReportFunc(ctx, token, body)
	}
	return json.RawMessage(`{}`), nil
}

func (m *MockBackendClient) ListReports(ctx context.Context, token, userID string) (json.RawMessage, error) {
	if m.ListReportsFunc != nil {
		return m.ListReportsFunc(ctx, token, userID)
	}
	return json.RawMessage(`[]`), nil
}

// LoginCalls returns how many times Login was invoked.
func (m *MockBackendClient) LoginCalls() int64 { return m.loginCalls.Load() }

// LogoutCalls returns how many times Logout was invoked.
func (m *MockBackendClient) LogoutCalls() int64 { return m.logoutCalls.Load() }

// ProfileCalls returns how many times FetchProfile was invoked.
func (m *MockBackendClient) ProfileCalls() int64 { return m.profileCalls.Load() }

// RecordingBus is an expiry bus double that records publishes and still fans
// them out to subscribers.
type RecordingBus struct {
	mu        sync.Mutex
	next      int
	subs      map[int]func(string)
	published []string
}

// NewRecordingBus creates an empty recording bus.
func NewRecordingBus() *RecordingBus {
	return &RecordingBus{subs: make(map[int]func(string))}
}

func (b *RecordingBus) Publish(sessionID string) {
	b.mu.Lock()
	b.published = append(b.published, sessionID)
	handlers := make([]func(string), 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(sessionID)
	}
}

func (b *RecordingBus) Subscribe(handler func(string)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = handler
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Published returns the session IDs published so far.
func (b *RecordingBus) Published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.published))
	copy(out, b.published)
	return out
}
