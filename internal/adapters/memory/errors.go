package memory

import "errors"

var (
	errEmptySessionID = errors.New("session ID cannot be empty")
	errExpired        = errors.New("credential record is expired")
)
