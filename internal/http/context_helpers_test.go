package httpx

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
)

func TestGetSessionFromContext(t *testing.T) {
	_, ok := GetSessionFromContext(context.Background())
	assert.False(t, ok)

	sess := domainauth.Session{
		State: domainauth.StateAuthenticated,
		User:  &domainauth.User{ID: "1", Role: domainauth.RoleUser},
	}
	ctx := SetSessionInContext(context.Background(), sess)
	s, ok := GetSessionFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, sess, s)
}

func TestCurrentUserAndSessionID(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Nil(t, CurrentUser(r))
	assert.Empty(t, SessionID(r))

	user := &domainauth.User{ID: "2", Role: domainauth.RoleAdmin}
	ctx := SetSessionInContext(r.Context(), domainauth.Session{State: domainauth.StateAuthenticated, User: user})
	ctx = domainauth.WithSessionID(ctx, "sid-123")
	r = r.WithContext(ctx)

	assert.Equal(t, user, CurrentUser(r))
	assert.Equal(t, "sid-123", SessionID(r))
}
