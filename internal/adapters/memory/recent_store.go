package memory

import (
	"context"
	"sync"

	"github.com/target/laptopdoc/internal/domain/troubleshoot"
)

// RecentStore remembers recent diagnoses per browser session.
type RecentStore struct {
	mu      sync.Mutex
	entries map[string][]troubleshoot.RecentDiagnosis
}

// NewRecentStore creates an empty RecentStore.
func NewRecentStore() *RecentStore {
	return &RecentStore{entries: make(map[string][]troubleshoot.RecentDiagnosis)}
}

// Push prepends d and trims the list to limit entries.
func (s *RecentStore) Push(_ context.Context, sid string, d troubleshoot.RecentDiagnosis, limit int) error {
	if sid == "" {
		return errEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]troubleshoot.RecentDiagnosis{d}, s.entries[sid]...)
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	s.entries[sid] = list
	return nil
}

// List returns a copy of the entries, newest first.
func (s *RecentStore) List(_ context.Context, sid string) ([]troubleshoot.RecentDiagnosis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]troubleshoot.RecentDiagnosis{}, s.entries[sid]...), nil
}
