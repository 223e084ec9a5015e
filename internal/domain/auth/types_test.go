package auth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserID_UnmarshalJSON(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"name":"Jo","email":"jo@x.com","role":"engineer"}`), &u))
	assert.Equal(t, UserID("42"), u.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","role":"user"}`), &u))
	assert.Equal(t, UserID("1"), u.ID)

	assert.Error(t, json.Unmarshal([]byte(`{"id":{"nested":true}}`), &u))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Engineer ")
	assert.True(t, ok)
	assert.Equal(t, RoleEngineer, r)

	_, ok = ParseRole("guest")
	assert.False(t, ok)
}

func TestSession_IsAuthenticatedDerivedFromUser(t *testing.T) {
	assert.False(t, Session{State: StateAuthenticated}.IsAuthenticated())
	assert.True(t, Session{State: StateHydrating, User: &User{ID: "1"}}.IsAuthenticated())
	assert.Equal(t, Role(""), Session{}.Role())
}

func TestNewCredentialRecord_DefaultsAndExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, exp)

	rec := NewCredentialRecord(token, "", User{ID: "1", Role: RoleUser})
	assert.Equal(t, DefaultTokenType, rec.TokenType)
	assert.True(t, rec.IsLoggedIn)
	assert.True(t, rec.Valid())
	assert.True(t, rec.ExpiresAt.Equal(exp))
	assert.False(t, rec.Expired(time.Now()))
	assert.True(t, rec.Expired(exp.Add(time.Second)))

	ttl := rec.TTL(exp.Add(-30*time.Minute), 24*time.Hour)
	assert.Equal(t, 30*time.Minute, ttl)
	assert.Equal(t, time.Minute, rec.TTL(exp.Add(-2*time.Hour), time.Minute))
}

func TestNewCredentialRecord_OpaqueToken(t *testing.T) {
	rec := NewCredentialRecord("opaque-token", "bearer", User{ID: "1"})
	assert.True(t, rec.ExpiresAt.IsZero())
	assert.False(t, rec.Expired(time.Now()))
	assert.Equal(t, 7*24*time.Hour, rec.TTL(time.Now(), 7*24*time.Hour))

	assert.False(t, CredentialRecord{Token: "t", User: User{ID: "1"}}.Valid(), "flag must be set")
	assert.False(t, CredentialRecord{IsLoggedIn: true, User: User{ID: "1"}}.Valid(), "token required")
}

func TestTokenExpiry(t *testing.T) {
	_, err := TokenExpiry("not-a-jwt")
	assert.Error(t, err)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "1"})
	s, err := noExp.SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = TokenExpiry(s)
	assert.Error(t, err)
}

func TestSessionIDContext(t *testing.T) {
	ctx := WithSessionID(t.Context(), "abcdef0123456789")
	sid, ok := SessionIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abcdef0123456789", sid)
	assert.Equal(t, "abcdef01", ShortID(sid))

	_, ok = SessionIDFromContext(t.Context())
	assert.False(t, ok)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}
