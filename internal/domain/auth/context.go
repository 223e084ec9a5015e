package auth

import "context"

type sessionIDKey struct{}

// WithSessionID returns a child context carrying the browser session id.
func WithSessionID(ctx context.Context, sid string) context.Context {
	if sid == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey{}, sid)
}

// SessionIDFromContext returns the browser session id, if any.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey{}).(string)
	return sid, ok && sid != ""
}

// ShortID truncates a session id for logs.
func ShortID(sid string) string {
	if len(sid) <= 8 {
		return sid
	}
	return sid[:8]
}
