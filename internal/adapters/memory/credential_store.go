// Package memory provides in-process adapters for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	domainauth "github.com/target/laptopdoc/internal/domain/auth"
)

type storedRecord struct {
	rec      domainauth.CredentialRecord
	deadline time.Time
}

// CredentialStore keeps credential records in memory. Each Save replaces the
// whole record under one lock, so readers never observe a partial write.
type CredentialStore struct {
	mu      sync.RWMutex
	records map[string]storedRecord
	ttl     time.Duration
	now     func() time.Time
}

// NewCredentialStore creates an empty store; ttl <= 0 keeps records until cleared.
func NewCredentialStore(ttl time.Duration) *CredentialStore {
	return &CredentialStore{
		records: make(map[string]storedRecord),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Save stores a copy of rec for sid.
func (s *CredentialStore) Save(_ context.Context, sid string, rec domainauth.CredentialRecord) error {
	if sid == "" {
		return errEmptySessionID
	}
	now := s.now()
	var deadline time.Time
	if ttl := rec.TTL(now, s.ttl); ttl > 0 {
		deadline = now.Add(ttl)
	} else if !rec.ExpiresAt.IsZero() {
		return errExpired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sid] = storedRecord{rec: rec, deadline: deadline}
	return nil
}

// Read returns a copy of the record, or nil when absent, expired or not logged in.
func (s *CredentialStore) Read(_ context.Context, sid string) (*domainauth.CredentialRecord, error) {
	if sid == "" {
		return nil, nil
	}
	s.mu.RLock()
	stored, ok := s.records[sid]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !stored.deadline.IsZero() && !s.now().Before(stored.deadline) {
		s.mu.Lock()
		delete(s.records, sid)
		s.mu.Unlock()
		return nil, nil
	}
	if !stored.rec.Valid() {
		return nil, nil
	}
	rec := stored.rec
	return &rec, nil
}

// Clear removes the record for sid. Clearing an unknown session is a no-op.
func (s *CredentialStore) Clear(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sid)
	return nil
}

// Len returns the number of stored records.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
