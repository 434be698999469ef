package cache

import (
	"context"
	"sync"

	"examscan-backend/internal/analysis"
)

// MemoryRepo stores records in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	entries map[string]analysis.Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{entries: make(map[string]analysis.Record)}
}

// Get returns the cached record for a fingerprint.
func (r *MemoryRepo) Get(ctx context.Context, fingerprint string) (analysis.Record, error) {
	if err := ctx.Err(); err != nil {
		return analysis.Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.entries[fingerprint]
	if !ok {
		return analysis.Record{}, ErrNotFound
	}
	return rec, nil
}

// Put stores a record. The first write for a fingerprint wins; a second
// success for the same fingerprint is a no-op, never a duplicate.
func (r *MemoryRepo) Put(ctx context.Context, fingerprint string, record analysis.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[fingerprint]; ok {
		return nil
	}
	r.entries[fingerprint] = record
	return nil
}

// Len reports the number of cached entries.
func (r *MemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
