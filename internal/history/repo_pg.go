package history

import (
	"context"
	"database/sql"
)

// PGRepo persists entries in the exam_history table.
type PGRepo struct {
	DB *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db}
}

func (r *PGRepo) Append(ctx context.Context, e Entry) error {
	const q = `
        INSERT INTO exam_history (id, finished_at, label, score, total, accuracy)
        VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, q, e.ID, e.Timestamp, e.Label, e.Score, e.Total, e.Accuracy)
	return err
}

func (r *PGRepo) List(ctx context.Context) ([]Entry, error) {
	const q = `
        SELECT id, finished_at, label, score, total, accuracy
        FROM exam_history
        ORDER BY finished_at DESC`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Label, &e.Score, &e.Total, &e.Accuracy); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PGRepo) Clear(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM exam_history`)
	return err
}
