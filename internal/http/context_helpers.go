package httpx

import (
	"context"
	"net/http"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
)

// sessionKey is an unexported context key type to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same key.
type sessionKey struct{}

// SetSessionInContext returns a child context that carries the given session snapshot.
func SetSessionInContext(ctx context.Context, session domainauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// GetSessionFromContext returns the session snapshot attached by the session middleware.
func GetSessionFromContext(ctx context.Context) (domainauth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domainauth.Session)
	return s, ok
}

// CurrentUser returns the signed-in user for the request, or nil.
func CurrentUser(r *http.Request) *domainauth.User {
	if s, ok := GetSessionFromContext(r.Context()); ok {
		return s.User
	}
	return nil
}

// SessionID returns the browser session id for the request.
func SessionID(r *http.Request) string {
	sid, _ := domainauth.SessionIDFromContext(r.Context())
	return sid
}
