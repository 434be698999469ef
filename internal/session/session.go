package session

import (
	"time"

	"examscan-backend/internal/analysis"
)

// Question is one successfully analyzed exam question. IDs are process-unique
// and not stable across runs; the fingerprint ties back to the cache entry.
type Question struct {
	ID          string          `json:"id"`
	FileName    string          `json:"fileName"`
	MimeType    string          `json:"mimeType"`
	StorageKey  string          `json:"-"`
	Fingerprint string          `json:"fingerprint"`
	Record      analysis.Record `json:"record"`
}

// Session is the live, growing exam consumed by the interaction layer.
// Questions appear in arrival order, which is nondeterministic relative to
// input order when more than one worker is running; the order is never
// rewritten after insertion.
type Session struct {
	ID           string            `json:"id"`
	Label        string            `json:"label"`
	Questions    []Question        `json:"questions"`
	Cursor       int               `json:"cursor"`
	Score        int               `json:"score"`
	Answers      map[string]string `json:"answers"`
	StillLoading bool              `json:"stillLoading"`
	Started      bool              `json:"started"`
	Finished     bool              `json:"finished"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// Summary is the read-only result of a finalized session.
type Summary struct {
	Label      string    `json:"label"`
	Score      int       `json:"score"`
	Total      int       `json:"total"`
	Accuracy   int       `json:"accuracy"`
	FinishedAt time.Time `json:"finishedAt"`
}
