package analysis

import (
	"context"
	"time"

	"examscan-backend/internal/shared/telemetry"
)

const (
	// DefaultMaxAttempts bounds the total calls per job, first attempt included.
	DefaultMaxAttempts = 5
	// DefaultInitialDelay seeds the doubling backoff schedule.
	DefaultInitialDelay = 2 * time.Second
)

// Retrying wraps a Client with the quota-aware backoff policy. QuotaExceeded
// and ServerError are retried; Malformed and Unknown propagate immediately.
// The base delay doubles after every attempt; quota waits are additionally
// scaled by (attemptIndex + 1.5), since quota windows reset on a slower and
// less predictable cadence than generic server hiccups.
type Retrying struct {
	Base         Client
	MaxAttempts  int
	InitialDelay time.Duration

	// OnQuota fires once per quota-classified failure, before any retry
	// decision. Used to raise the batch rate-limit signal.
	OnQuota func()

	// sleep is swapped in tests to observe the schedule without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrying constructs a Retrying wrapper with defaults filled in.
func NewRetrying(base Client, maxAttempts int, initialDelay time.Duration, onQuota func()) *Retrying {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	return &Retrying{
		Base:         base,
		MaxAttempts:  maxAttempts,
		InitialDelay: initialDelay,
		OnQuota:      onQuota,
		sleep:        sleepCtx,
	}
}

// Analyze runs the base client under the retry policy.
func (r *Retrying) Analyze(ctx context.Context, input Input) (Record, error) {
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	delay := r.InitialDelay
	var lastErr error
	for attempt := 0; attempt < r.MaxAttempts; attempt++ {
		rec, err := r.Base.Analyze(ctx, input)
		if err == nil {
			return rec, nil
		}
		lastErr = err

		kind := Classify(err)
		if kind == KindQuotaExceeded && r.OnQuota != nil {
			r.OnQuota()
		}
		if kind != KindQuotaExceeded && kind != KindServerError {
			return Record{}, err
		}
		if attempt == r.MaxAttempts-1 {
			break
		}

		wait := delay
		if kind == KindQuotaExceeded {
			wait = time.Duration(float64(delay) * (float64(attempt) + 1.5))
		}
		telemetry.Info("analysis.retry", map[string]any{
			"file":    input.FileName,
			"attempt": attempt + 1,
			"kind":    string(kind),
			"wait_ms": wait.Milliseconds(),
		})
		if err := sleep(ctx, wait); err != nil {
			return Record{}, &Error{Kind: KindUnknown, Err: err}
		}
		delay *= 2
	}
	return Record{}, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Client = (*Retrying)(nil)
