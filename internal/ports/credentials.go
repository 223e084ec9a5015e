package ports

// Package ports defines interfaces (hexagonal ports) for session and remote API behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
)

// CredentialStore persists one credential record per browser session.
//
// It is the only component allowed to touch credential persistence.
// "Nothing stored" is the normal default and never an error: Read returns
// (nil, nil) when any field is missing, unparsable or not flagged as logged in.
// Errors are reserved for backend failures.
type CredentialStore interface {
	// Save writes token, token type and user as one unit.
	Save(ctx context.Context, sid string, rec domainauth.CredentialRecord) error
	Read(ctx context.Context, sid string) (*domainauth.CredentialRecord, error)
	// Clear removes the whole record. Clearing an empty store succeeds.
	Clear(ctx context.Context, sid string) error
}
