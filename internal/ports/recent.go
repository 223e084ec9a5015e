package ports

import (
	"context"

	"github.com/target/laptopdoc/internal/domain/troubleshoot"
)

// RecentDiagnoses remembers the latest diagnoses submitted from a browser session.
type RecentDiagnoses interface {
	// Push records d as the newest entry, keeping at most limit entries.
	Push(ctx context.Context, sid string, d troubleshoot.RecentDiagnosis, limit int) error
	// List returns entries newest first. An unknown session returns an empty slice.
	List(ctx context.Context, sid string) ([]troubleshoot.RecentDiagnosis, error)
}
