package ports

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

var (
	// ErrAPIUnavailable is returned when no remote API address is configured.
	ErrAPIUnavailable = errors.New("remote API is not configured")
	// ErrSessionExpired matches a 401 received after the stored token was sent.
	ErrSessionExpired = errors.New("session expired")
)

// CredentialMode selects how a request is authorized.
type CredentialMode int

const (
	// CredentialsStored attaches the current browser session's stored token, if any.
	CredentialsStored CredentialMode = iota
	// CredentialsNone sends no Authorization header.
	CredentialsNone
	// CredentialsExplicit attaches APIRequest.Token.
	CredentialsExplicit
)

// APIRequest describes one call to the remote API. Path is relative to the base address.
type APIRequest struct {
	Method      string
	Path        string
	Query       url.Values
	Body        any
	Credentials CredentialMode
	Token       *oauth2.Token
	// Route is a low-cardinality label for metrics; Path is used when empty.
	Route string
}

// APIClient is the single gateway to the remote API.
// A non-nil out is decoded from a 2xx JSON body.
type APIClient interface {
	Do(ctx context.Context, req APIRequest, out any) error
}

// TeardownFunc is invoked when the API rejected the stored token for sid.
// token is the access token that was sent, so a hook can tell a stale
// rejection from one aimed at the record currently stored.
type TeardownFunc func(ctx context.Context, sid, token string)

// StatusError is a non-2xx response from the remote API.
type StatusError struct {
	Method string
	Path   string
	Status int
	// Message is the human readable message extracted from the body, if any.
	Message string
	// FieldErrors maps field names to messages when the body attributed errors.
	FieldErrors map[string]string
	Body        []byte
	// expired is set when the request carried the stored token and got a 401.
	expired bool
}

// NewStatusError builds a StatusError; expired marks stored-token 401s.
func NewStatusError(method, path string, status int, expired bool) *StatusError {
	return &StatusError{Method: method, Path: path, Status: status, expired: expired}
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// SessionExpired reports whether the client tore the session down for this response.
func (e *StatusError) SessionExpired() bool { return e.expired }

// Is lets errors.Is(err, ErrSessionExpired) match torn-down responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrSessionExpired && e.expired
}

// NetworkError is a transport-level failure: refused connection, DNS, timeout, open breaker.
type NetworkError struct {
	Method  string
	Path    string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s %s: timeout: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// IsNetwork reports whether err is a transport-level failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
