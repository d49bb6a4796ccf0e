package upstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/parkwatch/ui-api/internal/domain/auth"
)

func mustExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(ExtractorConfig{})
	require.NoError(t, err)
	return e
}

func TestNewExtractor_InvalidExpression(t *testing.T) {
	_, err := NewExtractor(ExtractorConfig{RoleExpr: "role["})
	require.Error(t, err)
}

func TestUserPayload_Envelopes(t *testing.T) {
	e := mustExtractor(t)

	cases := map[string]string{
		`{"user":{"id":"u-1"}}`:          `{"id":"u-1"}`,
		`{"sanitizedUser":{"id":"u-2"}}`: `{"id":"u-2"}`,
		`{"id":"u-3"}`:                   `{"id":"u-3"}`,
	}
	for in, want := range cases {
		got := e.UserPayload(json.RawMessage(in))
		assert.JSONEq(t, want, string(got), "input %s", in)
	}
}

func TestExtract_NumericID(t *testing.T) {
	e := mustExtractor(t)
	p, err := e.Extract(json.RawMessage(`{"id":1,"role":"user","isEmailVerified":true}`))
	require.NoError(t, err)
	assert.Equal(t, "1", p.ID)
	assert.Equal(t, domainauth.RoleUser, p.Role)
	assert.True(t, p.IsEmailVerified)
}

func TestExtract_UnresolvableRoleKept(t *testing.T) {
	e := mustExtractor(t)
	p, err := e.Extract(json.RawMessage(`{"id":"u-1","role":"moderator"}`))
	require.NoError(t, err)
	assert.Equal(t, domainauth.Role("moderator"), p.Role)
	assert.False(t, p.Role.Resolvable())
}

func TestExtract_MissingFieldsDegradeToZero(t *testing.T) {
	e := mustExtractor(t)
	p, err := e.Extract(json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Empty(t, p.ID)
	assert.Empty(t, string(p.Role))
	assert.False(t, p.IsEmailVerified)
}

func TestExtract_Garbage(t *testing.T) {
	e := mustExtractor(t)
	_, err := e.Extract(json.RawMessage(`{broken`))
	require.Error(t, err)
}

func TestToken(t *testing.T) {
	e := mustExtractor(t)
	assert.Equal(t, "t1", e.Token(json.RawMessage(`{"token":"t1","user":{}}`)))
	assert.Empty(t, e.Token(json.RawMessage(`{"user":{}}`)))
}
