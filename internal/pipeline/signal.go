package pipeline

import "sync/atomic"

// RateLimitSignal is a shared, monotonically-settable flag raised when any
// analysis attempt is classified QuotaExceeded. It never clears mid-batch;
// each new batch gets a fresh signal.
type RateLimitSignal struct {
	hit atomic.Bool
}

// Set raises the flag.
func (s *RateLimitSignal) Set() { s.hit.Store(true) }

// Limited reports whether quota exhaustion was observed this batch.
func (s *RateLimitSignal) Limited() bool { return s.hit.Load() }
