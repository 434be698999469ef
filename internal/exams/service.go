package exams

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"examscan-backend/internal/analysis"
	"examscan-backend/internal/cache"
	"examscan-backend/internal/extract"
	"examscan-backend/internal/history"
	"examscan-backend/internal/pipeline"
	"examscan-backend/internal/session"
	"examscan-backend/internal/shared/metrics"
	"examscan-backend/internal/shared/storage/object"
	"examscan-backend/internal/shared/telemetry"
)

// ErrBatchNotFound rejects operations on unknown or evicted batches.
var ErrBatchNotFound = errors.New("batch not found")

// Upload is one file as received from the HTTP surface, already size-checked.
type Upload struct {
	Name     string
	MimeType string
	Content  []byte
}

// Status is a consistent point-in-time view of a batch for the UI.
type Status struct {
	Session     session.Session `json:"session"`
	Processed   int             `json:"processed"`
	Total       int             `json:"total"`
	RateLimited bool            `json:"rateLimited"`
}

// Service owns the in-process batch registry. Each batch gets its own worker
// pool run, assembler, rate-limit signal, and event feed; only the analysis
// cache and the exam history outlive the process.
type Service struct {
	Cache             cache.Repo
	Client            analysis.Client
	Store             object.ObjectStore
	History           history.Repo
	Languages         []string
	Concurrency       int
	Spacing           time.Duration
	RetryInitialDelay time.Duration

	mu      sync.Mutex
	batches map[string]*batch
}

type batch struct {
	id        string
	assembler *session.Assembler
	signal    *pipeline.RateLimitSignal
	feed      *Feed
	cancel    context.CancelFunc
}

// NewService constructs a service around the given collaborators.
func NewService(cacheRepo cache.Repo, client analysis.Client, store object.ObjectStore, historyRepo history.Repo, languages []string, concurrency int, spacing, retryInitialDelay time.Duration) *Service {
	return &Service{
		Cache:             cacheRepo,
		Client:            client,
		Store:             store,
		History:           historyRepo,
		Languages:         languages,
		Concurrency:       concurrency,
		Spacing:           spacing,
		RetryInitialDelay: retryInitialDelay,
		batches:           make(map[string]*batch),
	}
}

// CreateBatch persists the uploads, builds one job per file, and starts the
// pipeline. It returns as soon as the workers are running; progress is
// observed through Status and the event feed. An empty upload list is
// tolerated and yields a batch that finishes loading immediately with an
// empty session; filtering unusable files is the caller's job.
func (s *Service) CreateBatch(ctx context.Context, uploads []Upload) (string, error) {
	batchID := uuid.NewString()
	jobs := make([]pipeline.Job, 0, len(uploads))
	for _, u := range uploads {
		key, size, sniffedMime, err := s.Store.Save(ctx, batchID, u.Name, bytes.NewReader(u.Content))
		if err != nil {
			return "", fmt.Errorf("store %s: %w", u.Name, err)
		}
		mimeType := u.MimeType
		if mimeType == "" {
			mimeType = sniffedMime
		}

		sourceText, err := extract.SourceText(ctx, u.Content, mimeType, u.Name)
		if err != nil {
			// The document bytes go to the model either way; extracted text is
			// only supplemental context, so a missing text layer is not fatal.
			telemetry.Info("exams.source_text_skipped", map[string]any{
				"batch_id": batchID,
				"file":     u.Name,
				"error":    err.Error(),
			})
			sourceText = ""
		}

		jobs = append(jobs, pipeline.NewJob(pipeline.File{
			Name:       u.Name,
			MimeType:   mimeType,
			SizeBytes:  size,
			Content:    u.Content,
			SourceText: sourceText,
			StorageKey: key,
		}))
	}

	signal := &pipeline.RateLimitSignal{}
	feed := NewFeed()
	assembler := session.NewAssembler(batchID, len(jobs))
	client := analysis.NewRetrying(s.Client, 0, s.RetryInitialDelay, func() {
		signal.Set()
		metrics.IncQuotaExhausted()
		feed.Broadcast(Event{Type: eventRateLimited, BatchID: batchID})
	})
	pool := pipeline.NewPool(s.Cache, client, s.Concurrency, s.Spacing, s.Languages)

	runCtx, cancel := context.WithCancel(context.Background())
	b := &batch{
		id:        batchID,
		assembler: assembler,
		signal:    signal,
		feed:      feed,
		cancel:    cancel,
	}

	s.mu.Lock()
	s.batches[batchID] = b
	s.mu.Unlock()

	metrics.IncBatchesStarted()
	telemetry.Info("exams.batch_started", map[string]any{
		"batch_id": batchID,
		"jobs":     len(jobs),
	})

	out := pool.Run(runCtx, jobs)
	go s.consume(runCtx, b, out)
	return batchID, nil
}

// consume drains pool outcomes into the assembler and the event feed. The
// loading flag clears exactly once, when the outcome channel closes without
// the batch having been cancelled.
func (s *Service) consume(ctx context.Context, b *batch, out <-chan pipeline.Outcome) {
	for outcome := range out {
		if ctx.Err() != nil {
			// Cancel already sealed the session; outcomes still buffered in
			// the channel are drained and discarded, never applied.
			continue
		}
		b.assembler.NoteProcessed()
		processed, total := b.assembler.Progress()

		if outcome.Failed() {
			b.feed.Broadcast(Event{
				Type:      eventJobFailed,
				BatchID:   b.id,
				File:      outcome.Job.File.Name,
				ErrorKind: string(analysis.Classify(outcome.Err)),
				Processed: processed,
				Total:     total,
			})
			continue
		}

		q := session.Question{
			ID:          uuid.NewString(),
			FileName:    outcome.Job.File.Name,
			MimeType:    outcome.Job.File.MimeType,
			StorageKey:  outcome.Job.File.StorageKey,
			Fingerprint: outcome.Job.Fingerprint,
			Record:      outcome.Record,
		}
		b.assembler.Append(q)
		b.feed.Broadcast(Event{
			Type:      eventQuestion,
			BatchID:   b.id,
			Question:  q,
			Processed: processed,
			Total:     total,
		})
	}

	if ctx.Err() != nil {
		return
	}
	b.assembler.FinishLoading()
	processed, total := b.assembler.Progress()
	b.feed.Broadcast(Event{
		Type:      eventLoadingDone,
		BatchID:   b.id,
		Processed: processed,
		Total:     total,
	})
	telemetry.Info("exams.batch_loaded", map[string]any{
		"batch_id":  b.id,
		"processed": processed,
		"total":     total,
	})
}

func (s *Service) lookup(batchID string) (*batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return b, nil
}

// Status returns the live snapshot for a batch.
func (s *Service) Status(batchID string) (Status, error) {
	b, err := s.lookup(batchID)
	if err != nil {
		return Status{}, err
	}
	processed, total := b.assembler.Progress()
	return Status{
		Session:     b.assembler.Snapshot(),
		Processed:   processed,
		Total:       total,
		RateLimited: b.signal.Limited(),
	}, nil
}

// Feed returns the batch's event feed for websocket subscription.
func (s *Service) Feed(batchID string) (*Feed, error) {
	b, err := s.lookup(batchID)
	if err != nil {
		return nil, err
	}
	return b.feed, nil
}

// Start begins the exam over the questions loaded so far.
func (s *Service) Start(batchID, label string) error {
	b, err := s.lookup(batchID)
	if err != nil {
		return err
	}
	return b.assembler.Start(label)
}

// Answer records a selected option.
func (s *Service) Answer(batchID, questionID, option string) error {
	b, err := s.lookup(batchID)
	if err != nil {
		return err
	}
	return b.assembler.Answer(questionID, option)
}

// Advance moves to the next question; finished reports whether the exam
// reached its end.
func (s *Service) Advance(batchID string) (finished bool, err error) {
	b, err := s.lookup(batchID)
	if err != nil {
		return false, err
	}
	return b.assembler.Advance()
}

// Finalize closes the exam and appends its result to the history log.
func (s *Service) Finalize(ctx context.Context, batchID string) (history.Entry, error) {
	b, err := s.lookup(batchID)
	if err != nil {
		return history.Entry{}, err
	}
	summary, err := b.assembler.Finalize()
	if err != nil {
		return history.Entry{}, err
	}
	entry := history.Entry{
		ID:        uuid.NewString(),
		Timestamp: summary.FinishedAt,
		Label:     summary.Label,
		Score:     summary.Score,
		Total:     summary.Total,
		Accuracy:  summary.Accuracy,
	}
	if err := s.History.Append(ctx, entry); err != nil {
		return history.Entry{}, fmt.Errorf("append history: %w", err)
	}
	metrics.IncSessionsFinished()
	telemetry.Info("exams.finalized", map[string]any{
		"batch_id": batchID,
		"score":    entry.Score,
		"total":    entry.Total,
		"accuracy": entry.Accuracy,
	})
	return entry, nil
}

// Cancel stops the batch's pipeline. In-flight outcomes are dropped, loading
// is marked complete over whatever already arrived, and the feed is closed.
func (s *Service) Cancel(batchID string) error {
	b, err := s.lookup(batchID)
	if err != nil {
		return err
	}
	b.cancel()
	b.assembler.FinishLoading()
	b.feed.Close()
	telemetry.Info("exams.batch_cancelled", map[string]any{"batch_id": batchID})
	return nil
}

// OpenImage streams a question's stored payload.
func (s *Service) OpenImage(ctx context.Context, batchID, questionID string) (io.ReadCloser, string, error) {
	b, err := s.lookup(batchID)
	if err != nil {
		return nil, "", err
	}
	snap := b.assembler.Snapshot()
	for _, q := range snap.Questions {
		if q.ID == questionID {
			body, err := s.Store.Open(ctx, q.StorageKey)
			if err != nil {
				return nil, "", err
			}
			return body, q.MimeType, nil
		}
	}
	return nil, "", session.ErrUnknownQuestion
}

// ListHistory returns past exam results, newest first.
func (s *Service) ListHistory(ctx context.Context) ([]history.Entry, error) {
	return s.History.List(ctx)
}

// ClearHistory removes all past exam results.
func (s *Service) ClearHistory(ctx context.Context) error {
	return s.History.Clear(ctx)
}
