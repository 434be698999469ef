package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"examscan-backend/internal/analysis"
)

// PGRepo implements Repo using Postgres. Rows are keyed by fingerprint; the
// idempotent insert protects against two workers completing the same
// fingerprint at the same instant.
type PGRepo struct {
	DB *sql.DB
}

// Get returns the cached record for a fingerprint.
func (r *PGRepo) Get(ctx context.Context, fingerprint string) (analysis.Record, error) {
	const query = `
SELECT record
FROM analysis_cache
WHERE fingerprint = $1
LIMIT 1`
	var payload []byte
	if err := r.DB.QueryRowContext(ctx, query, fingerprint).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return analysis.Record{}, ErrNotFound
		}
		return analysis.Record{}, err
	}
	var rec analysis.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return analysis.Record{}, err
	}
	return rec, nil
}

// Put stores a record, committing before returning. ON CONFLICT DO NOTHING
// keeps the at-most-once-per-fingerprint invariant.
func (r *PGRepo) Put(ctx context.Context, fingerprint string, record analysis.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	const query = `
INSERT INTO analysis_cache (fingerprint, record, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (fingerprint) DO NOTHING`
	_, err = r.DB.ExecContext(ctx, query, fingerprint, payload, time.Now().UTC())
	return err
}

var _ Repo = (*PGRepo)(nil)
