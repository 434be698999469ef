package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"examscan-backend/internal/analysis"
)

func sampleRecord(answer string) analysis.Record {
	return analysis.Record{
		Question:     analysis.LocalizedText{"en": "q"},
		Options:      map[string]analysis.LocalizedText{"A": {"en": "a"}, "B": {"en": "b"}},
		CorrectLabel: answer,
		Explanations: []analysis.LocalizedText{{"en": "because"}},
	}
}

func TestMemoryRepoGetMiss(t *testing.T) {
	repo := NewMemoryRepo()
	if _, err := repo.Get(context.Background(), "fp-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoPutThenGet(t *testing.T) {
	repo := NewMemoryRepo()
	if err := repo.Put(context.Background(), "fp-1", sampleRecord("A")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec, err := repo.Get(context.Background(), "fp-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.CorrectLabel != "A" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestMemoryRepoPutIsIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	if err := repo.Put(context.Background(), "fp-1", sampleRecord("A")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := repo.Put(context.Background(), "fp-1", sampleRecord("B")); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	rec, err := repo.Get(context.Background(), "fp-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.CorrectLabel != "A" {
		t.Fatalf("first write must win, got %+v", rec)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", repo.Len())
	}
}

func TestMemoryRepoConcurrentWriters(t *testing.T) {
	repo := NewMemoryRepo()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Put(context.Background(), "fp-shared", sampleRecord("A"))
			_, _ = repo.Get(context.Background(), "fp-shared")
		}()
	}
	wg.Wait()
	if repo.Len() != 1 {
		t.Fatalf("expected a single entry after concurrent writes, got %d", repo.Len())
	}
}
