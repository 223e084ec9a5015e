package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/target/laptopdoc/internal/ports"
)

// Operation selects the default wording used by ClassifyError.
type Operation int

const (
	OpLogin Operation = iota
	OpRegister
	OpRequest
)

// ErrorKind is the user-facing category of a failed auth or API operation.
type ErrorKind string

const (
	KindNetwork            ErrorKind = "network"
	KindUnavailable        ErrorKind = "unavailable"
	KindSessionExpired     ErrorKind = "session_expired"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindAccessDenied       ErrorKind = "access_denied"
	KindRateLimited        ErrorKind = "rate_limited"
	KindValidation         ErrorKind = "validation"
	KindInProgress         ErrorKind = "in_progress"
	KindFailure            ErrorKind = "failure"
)

// User-facing messages.
const (
	MsgNetwork         = "Network error. Please check your connection."
	MsgUnavailable     = "The service is temporarily unavailable. Please try again later."
	MsgSessionExpired  = "Your session has expired. Please sign in again."
	MsgFixErrors       = "Please fix the errors below."
	MsgLoginInProgress = "A sign-in is already in progress."
)

// AuthError is the page-ready description of a failure.
type AuthError struct {
	Kind        ErrorKind
	Message     string
	FieldErrors map[string]string
	// Status is the remote HTTP status, 0 when none was received.
	Status int
}

func (e *AuthError) Error() string { return e.Message }

type opMessages struct {
	unauthorized string
	accessDenied string
	rateLimited  string
	failure      string
}

var messagesByOp = map[Operation]opMessages{
	OpLogin: {
		unauthorized: "Invalid email or password",
		accessDenied: "Account access denied",
		rateLimited:  "Too many login attempts. Please try again later.",
		failure:      "Login failed. Please try again.",
	},
	OpRegister: {
		unauthorized: "Registration failed. Please try again.",
		accessDenied: "Registration is not allowed for this account",
		rateLimited:  "Too many registration attempts. Please try again later.",
		failure:      "Registration failed. Please try again.",
	},
	OpRequest: {
		unauthorized: MsgSessionExpired,
		accessDenied: "You do not have permission to perform this action",
		rateLimited:  "Too many requests. Please try again later.",
		failure:      "Request failed. Please try again.",
	},
}

// ClassifyError maps any error returned by the API client to an AuthError.
// It is the only place remote failures are translated into user-facing text.
func ClassifyError(op Operation, err error) AuthError {
	msgs, ok := messagesByOp[op]
	if !ok {
		msgs = messagesByOp[OpRequest]
	}

	if errors.Is(err, ports.ErrAPIUnavailable) {
		return AuthError{Kind: KindUnavailable, Message: MsgUnavailable}
	}
	if ports.IsNetwork(err) || errors.Is(err, context.DeadlineExceeded) {
		return AuthError{Kind: KindNetwork, Message: MsgNetwork}
	}

	var se *ports.StatusError
	if !errors.As(err, &se) {
		return AuthError{Kind: KindFailure, Message: msgs.failure}
	}

	if se.SessionExpired() {
		return AuthError{Kind: KindSessionExpired, Message: MsgSessionExpired, Status: se.Status}
	}

	switch se.Status {
	case http.StatusUnauthorized:
		kind := KindInvalidCredentials
		switch op {
		case OpRequest:
			kind = KindSessionExpired
		case OpRegister:
			kind = KindFailure
		}
		return AuthError{Kind: kind, Message: msgs.unauthorized, Status: se.Status}
	case http.StatusForbidden:
		return AuthError{Kind: KindAccessDenied, Message: orDefault(se.Message, msgs.accessDenied), Status: se.Status}
	case http.StatusTooManyRequests:
		return AuthError{Kind: KindRateLimited, Message: msgs.rateLimited, Status: se.Status}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if len(se.FieldErrors) > 0 {
			return AuthError{
				Kind:        KindValidation,
				Message:     MsgFixErrors,
				FieldErrors: copyFields(se.FieldErrors),
				Status:      se.Status,
			}
		}
	}
	return AuthError{Kind: KindFailure, Message: orDefault(se.Message, msgs.failure), Status: se.Status}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func copyFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// retryable reports whether a failed call is worth repeating once.
func retryable(err error) bool {
	if ports.IsNetwork(err) {
		return true
	}
	return ports.StatusCode(err) >= http.StatusInternalServerError
}
