package session

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"examscan-backend/internal/analysis"
)

func question(id, correct string) Question {
	return Question{
		ID:       id,
		FileName: id + ".png",
		Record: analysis.Record{
			Question:     analysis.LocalizedText{"en": "q " + id},
			Options:      map[string]analysis.LocalizedText{"A": {"en": "a"}, "B": {"en": "b"}},
			CorrectLabel: correct,
			Explanations: []analysis.LocalizedText{{"en": "because"}},
		},
	}
}

func loadedAssembler(t *testing.T, n int) *Assembler {
	t.Helper()
	a := NewAssembler("batch-1", n)
	for i := 0; i < n; i++ {
		a.Append(question(fmt.Sprintf("q%d", i), "A"))
		a.NoteProcessed()
	}
	a.FinishLoading()
	return a
}

func TestProgressiveVisibility(t *testing.T) {
	a := NewAssembler("batch-1", 3)
	a.Append(question("q0", "A"))
	a.NoteProcessed()

	snap := a.Snapshot()
	if len(snap.Questions) != 1 {
		t.Fatalf("expected 1 question mid-load, got %d", len(snap.Questions))
	}
	if !snap.StillLoading {
		t.Fatalf("expected stillLoading true mid-load")
	}
	processed, total := a.Progress()
	if processed != 1 || total != 3 {
		t.Fatalf("expected progress 1/3, got %d/%d", processed, total)
	}

	a.NoteProcessed()
	a.NoteProcessed()
	a.FinishLoading()
	if snap := a.Snapshot(); snap.StillLoading {
		t.Fatalf("expected stillLoading cleared after final outcome")
	}
}

func TestStartRequiresQuestions(t *testing.T) {
	a := NewAssembler("batch-1", 0)
	a.FinishLoading()
	if err := a.Start("empty"); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestStartMidLoadKeepsReceivingQuestions(t *testing.T) {
	a := NewAssembler("batch-1", 2)
	a.Append(question("q0", "A"))
	a.NoteProcessed()
	if err := a.Start("morning drill"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	a.Append(question("q1", "B"))
	a.NoteProcessed()
	a.FinishLoading()

	snap := a.Snapshot()
	if len(snap.Questions) != 2 {
		t.Fatalf("expected late arrival appended, got %d questions", len(snap.Questions))
	}
	if snap.Cursor != 0 || snap.Label != "morning drill" {
		t.Fatalf("unexpected session state: %+v", snap)
	}
}

func TestAnswerScoring(t *testing.T) {
	a := loadedAssembler(t, 3)
	if err := a.Start("scored"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Answer("q0", "A"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if err := a.Answer("q1", "B"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if snap := a.Snapshot(); snap.Score != 1 {
		t.Fatalf("expected score 1, got %d", snap.Score)
	}
	// Changing an answer re-scores rather than double counting.
	if err := a.Answer("q1", "A"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if snap := a.Snapshot(); snap.Score != 2 {
		t.Fatalf("expected score 2 after correction, got %d", snap.Score)
	}
	if err := a.Answer("ghost", "A"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
}

func TestAdvanceGateWhileLoading(t *testing.T) {
	a := NewAssembler("batch-1", 2)
	a.Append(question("q0", "A"))
	a.NoteProcessed()
	if err := a.Start("gated"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	finished, err := a.Advance()
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if finished {
		t.Fatalf("advance past last question must be gated while loading")
	}
	if snap := a.Snapshot(); snap.Cursor != 0 {
		t.Fatalf("cursor must be unchanged by gated advance, got %d", snap.Cursor)
	}

	a.Append(question("q1", "A"))
	a.NoteProcessed()
	a.FinishLoading()

	if finished, _ := a.Advance(); finished {
		t.Fatalf("expected move to q1, not finish")
	}
	finished, err = a.Advance()
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if !finished {
		t.Fatalf("expected finish once loading done and last question passed")
	}
}

func TestFinalizeGateAndAccuracy(t *testing.T) {
	a := NewAssembler("batch-1", 9)
	for i := 0; i < 9; i++ {
		a.Append(question(fmt.Sprintf("q%d", i), "A"))
		a.NoteProcessed()
	}
	if err := a.Start("exam"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := a.Finalize(); !errors.Is(err, ErrStillLoading) {
		t.Fatalf("expected ErrStillLoading, got %v", err)
	}

	a.FinishLoading()
	for i := 0; i < 7; i++ {
		if err := a.Answer(fmt.Sprintf("q%d", i), "A"); err != nil {
			t.Fatalf("Answer: %v", err)
		}
	}
	a.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	sum, err := a.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if sum.Score != 7 || sum.Total != 9 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.Accuracy != 78 {
		t.Fatalf("expected accuracy 78, got %d", sum.Accuracy)
	}
	if _, err := a.Finalize(); !errors.Is(err, ErrFinished) {
		t.Fatalf("expected ErrFinished on double finalize, got %v", err)
	}
	if err := a.Answer("q0", "B"); !errors.Is(err, ErrFinished) {
		t.Fatalf("expected ErrFinished after finalize, got %v", err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	a := loadedAssembler(t, 2)
	snap := a.Snapshot()
	snap.Questions[0].ID = "mutated"
	snap.Answers["q0"] = "B"

	fresh := a.Snapshot()
	if fresh.Questions[0].ID != "q0" {
		t.Fatalf("snapshot mutation leaked into assembler")
	}
	if len(fresh.Answers) != 0 {
		t.Fatalf("snapshot answer mutation leaked into assembler")
	}
}
