package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"examscan-backend/internal/analysis"
	"examscan-backend/internal/cache"
)

type fakeClient struct {
	mu          sync.Mutex
	calls       int
	inFlight    int32
	maxInFlight int32
	delay       time.Duration
	failFiles   map[string]error
}

func (f *fakeClient) Analyze(ctx context.Context, input analysis.Input) (analysis.Record, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&f.maxInFlight)
		if cur <= prev || atomic.CompareAndSwapInt32(&f.maxInFlight, prev, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return analysis.Record{}, ctx.Err()
		}
	}
	if err, ok := f.failFiles[input.FileName]; ok {
		return analysis.Record{}, err
	}
	return analysis.Record{
		Question:     analysis.LocalizedText{"en": "q for " + input.FileName},
		Options:      map[string]analysis.LocalizedText{"A": {"en": "a"}, "B": {"en": "b"}},
		CorrectLabel: "A",
		Explanations: []analysis.LocalizedText{{"en": "because"}},
	}, nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testJobs(n int) []Job {
	jobs := make([]Job, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("q%02d.png", i)
		jobs = append(jobs, NewJob(File{
			Name:      name,
			MimeType:  "image/png",
			SizeBytes: int64(100 + i),
			Content:   []byte(name),
		}))
	}
	return jobs
}

func collect(out <-chan Outcome) []Outcome {
	var all []Outcome
	for o := range out {
		all = append(all, o)
	}
	return all
}

func TestPoolProcessesAllJobs(t *testing.T) {
	client := &fakeClient{}
	pool := NewPool(cache.NewMemoryRepo(), client, 2, 0, []string{"en"})

	outcomes := collect(pool.Run(context.Background(), testJobs(5)))
	if len(outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Failed() {
			t.Fatalf("unexpected failure: %v", o.Err)
		}
	}
	if client.callCount() != 5 {
		t.Fatalf("expected 5 remote calls, got %d", client.callCount())
	}
}

func TestPoolConcurrencyBound(t *testing.T) {
	client := &fakeClient{delay: 20 * time.Millisecond}
	pool := NewPool(cache.NewMemoryRepo(), client, 2, 0, []string{"en"})

	collect(pool.Run(context.Background(), testJobs(8)))
	if max := atomic.LoadInt32(&client.maxInFlight); max > 2 {
		t.Fatalf("concurrency bound violated: %d simultaneous calls", max)
	}
}

func TestPoolPartialFailureIsolation(t *testing.T) {
	client := &fakeClient{
		failFiles: map[string]error{
			"q02.png": &analysis.Error{Kind: analysis.KindUnknown, Err: errors.New("boom")},
		},
	}
	pool := NewPool(cache.NewMemoryRepo(), client, 2, 0, []string{"en"})

	outcomes := collect(pool.Run(context.Background(), testJobs(5)))
	if len(outcomes) != 5 {
		t.Fatalf("every job must be accounted for, got %d outcomes", len(outcomes))
	}
	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
			if o.Job.File.Name != "q02.png" {
				t.Fatalf("wrong job failed: %s", o.Job.File.Name)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly 1 failure, got %d", failed)
	}
}

func TestPoolCacheHitsSkipRemoteCalls(t *testing.T) {
	repo := cache.NewMemoryRepo()
	client := &fakeClient{}
	jobs := testJobs(4)

	// Pre-cache two of the four fingerprints.
	for _, job := range jobs[:2] {
		if err := repo.Put(context.Background(), job.Fingerprint, analysis.Record{
			Question:     analysis.LocalizedText{"en": "cached"},
			Options:      map[string]analysis.LocalizedText{"A": {"en": "a"}, "B": {"en": "b"}},
			CorrectLabel: "B",
			Explanations: []analysis.LocalizedText{{"en": "cached"}},
		}); err != nil {
			t.Fatalf("seed cache: %v", err)
		}
	}

	pool := NewPool(repo, client, 2, 0, []string{"en"})
	outcomes := collect(pool.Run(context.Background(), jobs))

	if client.callCount() != 2 {
		t.Fatalf("expected exactly 2 remote calls, got %d", client.callCount())
	}
	if len(outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(outcomes))
	}
	cached := 0
	for _, o := range outcomes {
		if o.FromCache {
			cached++
			if o.Record.CorrectLabel != "B" {
				t.Fatalf("cached record not returned verbatim: %+v", o.Record)
			}
		}
	}
	if cached != 2 {
		t.Fatalf("expected 2 cache hits, got %d", cached)
	}
}

func TestPoolRerunIssuesNoRemoteCalls(t *testing.T) {
	repo := cache.NewMemoryRepo()
	jobs := testJobs(3)

	first := &fakeClient{}
	collect(NewPool(repo, first, 1, 0, []string{"en"}).Run(context.Background(), jobs))
	if first.callCount() != 3 {
		t.Fatalf("first run should call remote 3 times, got %d", first.callCount())
	}

	second := &fakeClient{}
	outcomes := collect(NewPool(repo, second, 1, 0, []string{"en"}).Run(context.Background(), jobs))
	if second.callCount() != 0 {
		t.Fatalf("rerun over cached folder must issue zero remote calls, got %d", second.callCount())
	}
	for _, o := range outcomes {
		if !o.FromCache {
			t.Fatalf("expected all outcomes from cache")
		}
	}
}

func TestPoolSpacingAfterRemoteCallsOnly(t *testing.T) {
	repo := cache.NewMemoryRepo()
	jobs := testJobs(3)
	if err := repo.Put(context.Background(), jobs[0].Fingerprint, analysis.Record{
		Question:     analysis.LocalizedText{"en": "cached"},
		Options:      map[string]analysis.LocalizedText{"A": {"en": "a"}, "B": {"en": "b"}},
		CorrectLabel: "A",
		Explanations: []analysis.LocalizedText{{"en": "cached"}},
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	client := &fakeClient{}
	pool := NewPool(repo, client, 1, 150*time.Millisecond, []string{"en"})
	var waits []time.Duration
	pool.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	collect(pool.Run(context.Background(), jobs))
	// 2 misses pause, 1 hit does not.
	if len(waits) != 2 {
		t.Fatalf("expected 2 spacing pauses, got %d", len(waits))
	}
	for _, d := range waits {
		if d != 150*time.Millisecond {
			t.Fatalf("unexpected spacing %v", d)
		}
	}
}

func TestPoolCancellationDropsInFlightOutcomes(t *testing.T) {
	client := &fakeClient{delay: 50 * time.Millisecond}
	pool := NewPool(cache.NewMemoryRepo(), client, 2, 0, []string{"en"})

	ctx, cancel := context.WithCancel(context.Background())
	out := pool.Run(ctx, testJobs(10))
	time.Sleep(10 * time.Millisecond)
	cancel()

	outcomes := collect(out)
	if len(outcomes) >= 10 {
		t.Fatalf("cancellation should drop remaining outcomes, got %d", len(outcomes))
	}
}

type failingPutRepo struct {
	*cache.MemoryRepo
}

func (r *failingPutRepo) Put(ctx context.Context, fingerprint string, record analysis.Record) error {
	return errors.New("disk full")
}

func TestPoolCacheWriteFailureFailsJob(t *testing.T) {
	repo := &failingPutRepo{MemoryRepo: cache.NewMemoryRepo()}
	client := &fakeClient{}
	pool := NewPool(repo, client, 1, 0, []string{"en"})

	outcomes := collect(pool.Run(context.Background(), testJobs(1)))
	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if !outcomes[0].Failed() {
		t.Fatalf("job must fail when the record cannot be made durable")
	}
	if !strings.Contains(outcomes[0].Err.Error(), "cache put") {
		t.Fatalf("unexpected error: %v", outcomes[0].Err)
	}
	if repo.Len() != 0 {
		t.Fatalf("nothing should be cached, got %d entries", repo.Len())
	}
}

func TestPoolEmptyBatchCompletesImmediately(t *testing.T) {
	pool := NewPool(cache.NewMemoryRepo(), &fakeClient{}, 2, 0, []string{"en"})
	outcomes := collect(pool.Run(context.Background(), nil))
	if len(outcomes) != 0 {
		t.Fatalf("expected no outcomes for empty batch, got %d", len(outcomes))
	}
}
