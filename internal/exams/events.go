package exams

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"examscan-backend/internal/shared/telemetry"
)

// Event is one message on a batch's live feed.
type Event struct {
	Type      string `json:"type"`
	BatchID   string `json:"batchId"`
	Question  any    `json:"question,omitempty"`
	File      string `json:"file,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

const (
	eventQuestion    = "question"
	eventJobFailed   = "job_failed"
	eventRateLimited = "rate_limited"
	eventLoadingDone = "loading_done"
)

// Feed fans batch events out to websocket subscribers. One feed per batch;
// closed when the batch is cancelled or evicted.
type Feed struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	closed  bool
}

func NewFeed() *Feed {
	return &Feed{clients: make(map[*websocket.Conn]bool)}
}

// Register adds a subscriber. The connection is closed immediately when the
// feed is already shut down.
func (f *Feed) Register(conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		conn.Close()
		return
	}
	f.clients[conn] = true
}

// Unregister drops a subscriber and closes its connection.
func (f *Feed) Unregister(conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[conn]; ok {
		delete(f.clients, conn)
		conn.Close()
	}
}

// Broadcast sends one event to every subscriber. Write failures evict the
// subscriber; the feed itself never fails.
func (f *Feed) Broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		telemetry.Error("events.marshal_failed", map[string]any{
			"batch_id": ev.BatchID,
			"type":     ev.Type,
			"error":    err.Error(),
		})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			telemetry.Error("events.write_failed", map[string]any{
				"batch_id": ev.BatchID,
				"error":    err.Error(),
			})
			conn.Close()
			delete(f.clients, conn)
		}
	}
}

// Close disconnects all subscribers and rejects future registrations.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for conn := range f.clients {
		conn.Close()
		delete(f.clients, conn)
	}
}

// SubscriberCount reports the current number of subscribers.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}
