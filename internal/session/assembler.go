package session

import (
	"errors"
	"math"
	"sync"
	"time"
)

var (
	// ErrNoQuestions rejects starting an exam before any question arrived.
	ErrNoQuestions = errors.New("session has no questions")
	// ErrNotStarted rejects interaction before startExam.
	ErrNotStarted = errors.New("session not started")
	// ErrStillLoading gates finalization until the pipeline drains.
	ErrStillLoading = errors.New("session still loading")
	// ErrFinished rejects interaction after finalization.
	ErrFinished = errors.New("session already finished")
	// ErrUnknownQuestion rejects answers for ids not in the session.
	ErrUnknownQuestion = errors.New("question not in session")
)

// Assembler owns a Session during and after ingestion. The pipeline side only
// appends questions and clears the loading flag; the consumer side only
// mutates cursor, answers, and score. One mutex arbitrates both.
type Assembler struct {
	mu        sync.Mutex
	s         Session
	processed int
	total     int
	now       func() time.Time
}

// NewAssembler constructs an assembler for a fresh batch of total jobs.
func NewAssembler(id string, total int) *Assembler {
	return &Assembler{
		s: Session{
			ID:           id,
			Answers:      make(map[string]string),
			StillLoading: true,
			CreatedAt:    time.Now().UTC(),
		},
		total: total,
		now:   time.Now,
	}
}

// Append adds a question in arrival order. Failed jobs are never appended;
// callers record them only through NoteProcessed.
func (a *Assembler) Append(q Question) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.Questions = append(a.s.Questions, q)
}

// NoteProcessed counts one job outcome, success or permanent failure.
func (a *Assembler) NoteProcessed() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.processed < a.total {
		a.processed++
	}
}

// FinishLoading clears the loading flag. Safe to call more than once.
func (a *Assembler) FinishLoading() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.s.StillLoading = false
}

// Progress reports processed and total job counts.
func (a *Assembler) Progress() (processed, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processed, a.total
}

// Snapshot returns a copy of the session safe to serialize while ingestion
// continues. Question structs are shared (immutable after append).
func (a *Assembler) Snapshot() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.s
	out.Questions = append([]Question(nil), a.s.Questions...)
	out.Answers = make(map[string]string, len(a.s.Answers))
	for k, v := range a.s.Answers {
		out.Answers[k] = v
	}
	return out
}

// Start begins the exam with the given label. Allowed while loading as long
// as at least one question exists; later arrivals keep appending.
func (a *Assembler) Start(label string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.s.Finished {
		return ErrFinished
	}
	if len(a.s.Questions) == 0 {
		return ErrNoQuestions
	}
	a.s.Label = label
	a.s.Started = true
	a.s.Cursor = 0
	return nil
}

// Answer records the selected option for a question and recomputes the score
// so it always equals the count of correct answers.
func (a *Assembler) Answer(questionID, label string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.s.Finished {
		return ErrFinished
	}
	if !a.s.Started {
		return ErrNotStarted
	}
	found := false
	for _, q := range a.s.Questions {
		if q.ID == questionID {
			found = true
			break
		}
	}
	if !found {
		return ErrUnknownQuestion
	}
	a.s.Answers[questionID] = label
	a.recomputeScoreLocked()
	return nil
}

// Advance moves the cursor to the next question. Moving past the last
// question while the pipeline is still loading is a no-op: more questions may
// yet arrive, so the exam cannot end.
func (a *Assembler) Advance() (finished bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.s.Finished {
		return true, ErrFinished
	}
	if !a.s.Started {
		return false, ErrNotStarted
	}
	if a.s.Cursor+1 < len(a.s.Questions) {
		a.s.Cursor++
		return false, nil
	}
	if a.s.StillLoading {
		return false, nil
	}
	a.s.Cursor = len(a.s.Questions)
	return true, nil
}

// Finalize closes the session and produces its summary. Gated on loading
// being complete; the cursor is left untouched when the gate rejects.
func (a *Assembler) Finalize() (Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.s.Finished {
		return Summary{}, ErrFinished
	}
	if !a.s.Started {
		return Summary{}, ErrNotStarted
	}
	if a.s.StillLoading {
		return Summary{}, ErrStillLoading
	}
	a.s.Finished = true
	a.s.Cursor = len(a.s.Questions)
	total := len(a.s.Questions)
	accuracy := 0
	if total > 0 {
		accuracy = int(math.Round(100 * float64(a.s.Score) / float64(total)))
	}
	return Summary{
		Label:      a.s.Label,
		Score:      a.s.Score,
		Total:      total,
		Accuracy:   accuracy,
		FinishedAt: a.now().UTC(),
	}, nil
}

func (a *Assembler) recomputeScoreLocked() {
	score := 0
	for _, q := range a.s.Questions {
		if picked, ok := a.s.Answers[q.ID]; ok && picked == q.Record.CorrectLabel {
			score++
		}
	}
	a.s.Score = score
}
