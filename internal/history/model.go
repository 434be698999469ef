package history

import "time"

// Entry is one finished exam run. Accuracy is stored denormalized so the
// history list never recomputes it from score/total.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	Accuracy  int       `json:"accuracy"`
}
