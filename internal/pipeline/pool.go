package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"examscan-backend/internal/analysis"
	"examscan-backend/internal/cache"
	"examscan-backend/internal/shared/metrics"
	"examscan-backend/internal/shared/telemetry"
)

// Pool drains a job queue across a fixed set of workers. Each worker pops,
// consults the cache, calls the analysis client on a miss, and then observes
// the mandatory spacing before its next pull. Spacing is the primary quota
// defense; the client's own backoff sits underneath it.
type Pool struct {
	Cache       cache.Repo
	Client      analysis.Client
	Concurrency int
	Spacing     time.Duration
	Languages   []string

	// sleep is swapped in tests to observe spacing without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPool constructs a pool. Concurrency below 1 is clamped to 1.
func NewPool(cacheRepo cache.Repo, client analysis.Client, concurrency int, spacing time.Duration, languages []string) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{
		Cache:       cacheRepo,
		Client:      client,
		Concurrency: concurrency,
		Spacing:     spacing,
		Languages:   languages,
		sleep:       sleepCtx,
	}
}

// Run drains jobs and publishes one Outcome per job on the returned channel.
// The channel closes only once every job is accounted for. Cancelling ctx
// stops new pulls and drops outcomes from jobs already in flight.
func (p *Pool) Run(ctx context.Context, jobs []Job) <-chan Outcome {
	out := make(chan Outcome, len(jobs))
	queue := newJobQueue(jobs)

	var wg sync.WaitGroup
	for i := 0; i < p.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx, queue, out)
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

func (p *Pool) workerLoop(ctx context.Context, queue *jobQueue, out chan<- Outcome) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, ok := queue.pop()
		if !ok {
			return
		}

		outcome, remote := p.process(ctx, job)
		if ctx.Err() != nil {
			// Batch was reset while this job was in flight; its outcome
			// must not be applied.
			return
		}
		out <- outcome

		if remote && p.Spacing > 0 {
			if err := p.sleepFn()(ctx, p.Spacing); err != nil {
				return
			}
		}
	}
}

// process resolves one job. The returned bool reports whether a remote call
// was made, which decides if the spacing pause applies.
func (p *Pool) process(ctx context.Context, job Job) (Outcome, bool) {
	if rec, err := p.Cache.Get(ctx, job.Fingerprint); err == nil {
		metrics.IncCacheHits()
		telemetry.Info("pipeline.cache_hit", map[string]any{
			"job_id":      job.ID,
			"file":        job.File.Name,
			"fingerprint": job.Fingerprint,
		})
		return Outcome{Job: job, Record: rec, FromCache: true}, false
	} else if !errors.Is(err, cache.ErrNotFound) {
		telemetry.Error("pipeline.cache_read_failed", map[string]any{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	}

	start := time.Now()
	rec, err := p.Client.Analyze(ctx, analysis.Input{
		FileName:   job.File.Name,
		MimeType:   job.File.MimeType,
		Content:    job.File.Content,
		SourceText: job.File.SourceText,
		Languages:  p.Languages,
	})
	metrics.ObserveJobDurationMs(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.IncJobsFailed()
		telemetry.Error("pipeline.job_failed", map[string]any{
			"job_id": job.ID,
			"file":   job.File.Name,
			"kind":   string(analysis.Classify(err)),
			"error":  err.Error(),
		})
		return Outcome{Job: job, Err: err}, true
	}

	// The record must be durable before the job is reported complete, so a
	// failed put fails the job; a rerun will retry it against the cache.
	if err := p.Cache.Put(ctx, job.Fingerprint, rec); err != nil {
		metrics.IncJobsFailed()
		telemetry.Error("pipeline.cache_write_failed", map[string]any{
			"job_id":      job.ID,
			"fingerprint": job.Fingerprint,
			"error":       err.Error(),
		})
		return Outcome{Job: job, Err: fmt.Errorf("cache put: %w", err)}, true
	}
	metrics.IncJobsCompleted()
	return Outcome{Job: job, Record: rec}, true
}

func (p *Pool) sleepFn() func(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep
	}
	return sleepCtx
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
