package cache

import (
	"context"
	"errors"

	"examscan-backend/internal/analysis"
)

// ErrNotFound indicates no cached record exists for a fingerprint.
var ErrNotFound = errors.New("cache entry not found")

// Repo is the durable fingerprint -> record store consulted before every
// remote call. Put must be synchronously durable before the owning job is
// reported complete, so a rerun over the same folder never re-spends quota.
type Repo interface {
	Get(ctx context.Context, fingerprint string) (analysis.Record, error)
	Put(ctx context.Context, fingerprint string, record analysis.Record) error
}
