package quiz

import (
	"errors"
	"sync"
	"testing"
	"time"

	"re2q/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testQuestion(id int64, position int) domain.Question {
	return domain.Question{
		ID:              id,
		Content:         "◯ or ✗?",
		CorrectAnswer:   true,
		DurationSeconds: 10,
		Position:        position,
	}
}

func TestStartQuestionRequiresActiveQuiz(t *testing.T) {
	clock := newFakeClock()
	state := NewSessionStateWithClock(clock.Now)

	if _, err := state.StartQuestion(testQuestion(1, 1)); !errors.Is(err, domain.ErrQuizNotRunning) {
		t.Fatalf("expected ErrQuizNotRunning, got %v", err)
	}
}

func TestStartQuestionMutualExclusion(t *testing.T) {
	clock := newFakeClock()
	state := NewSessionStateWithClock(clock.Now)
	state.StartQuiz()

	if _, err := state.StartQuestion(testQuestion(1, 1)); err != nil {
		t.Fatalf("first start: %v", err)
	}
	// Starting any question, same or different, is rejected while a window is open.
	if _, err := state.StartQuestion(testQuestion(2, 2)); !errors.Is(err, domain.ErrQuestionAlreadyOpen) {
		t.Fatalf("expected ErrQuestionAlreadyOpen, got %v", err)
	}
	if _, err := state.StartQuestion(testQuestion(1, 1)); !errors.Is(err, domain.ErrQuestionAlreadyOpen) {
		t.Fatalf("expected ErrQuestionAlreadyOpen for same question, got %v", err)
	}
}

func TestStartQuestionConcurrentCallsOnlyOneSucceeds(t *testing.T) {
	clock := newFakeClock()
	state := NewSessionStateWithClock(clock.Now)
	state.StartQuiz()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = state.StartQuestion(testQuestion(int64(i+1), i+1))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, domain.ErrQuestionAlreadyOpen) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one StartQuestion to succeed, got %d", succeeded)
	}
}

func TestAcceptingAnswersWindow(t *testing.T) {
	clock := newFakeClock()
	state := NewSessionStateWithClock(clock.Now)
	state.StartQuiz()

	if _, ok := state.AcceptingAnswers(); ok {
		t.Fatal("no question open yet")
	}

	if _, err := state.StartQuestion(testQuestion(1, 1)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if id, ok := state.AcceptingAnswers(); !ok || id != 1 {
		t.Fatalf("expected question 1 accepting, got id=%d ok=%v", id, ok)
	}

	clock.Advance(9 * time.Second)
	if _, ok := state.AcceptingAnswers(); !ok {
		t.Fatal("window should still be open at t=9s")
	}

	// The window is half-open: [startedAt, endsAt).
	clock.Advance(time.Second)
	if _, ok := state.AcceptingAnswers(); ok {
		t.Fatal("window should be closed at t=10s")
	}
}

func TestStopQuestionClosesWindowImmediately(t *testing.T) {
	clock := newFakeClock()
	state := NewSessionStateWithClock(clock.Now)
	state.StartQuiz()

	if _, err := state.StartQuestion(testQuestion(1, 1)); err != nil {
		t.Fatalf("start: %v", err)
	}
	state.StopQuestion()
	if _, ok := state.AcceptingAnswers(); ok {
		t.Fatal("expected window closed after StopQuestion")
	}

	// The question pointer survives a stop; only the drain loop clears it.
	snap := state.Snapshot()
	if snap.ActiveQuestionID == nil || *snap.ActiveQuestionID != 1 {
		t.Fatalf("expected question pointer retained, got %+v", snap)
	}
}

func TestStopQuizDeactivates(t *testing.T) {
	clock := newFakeClock()
	state := NewSessionStateWithClock(clock.Now)
	state.StartQuiz()
	if _, err := state.StartQuestion(testQuestion(1, 1)); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := state.StopQuiz()
	if snap.QuizActive {
		t.Fatal("expected quiz inactive")
	}
	if _, ok := state.AcceptingAnswers(); ok {
		t.Fatal("expected no answers accepted after StopQuiz")
	}
}

func TestClearWindowIfGuardsStalePointer(t *testing.T) {
	clock := newFakeClock()
	state := NewSessionStateWithClock(clock.Now)
	state.StartQuiz()

	if _, err := state.StartQuestion(testQuestion(1, 1)); err != nil {
		t.Fatalf("start q1: %v", err)
	}
	clock.Advance(11 * time.Second)
	if _, err := state.StartQuestion(testQuestion(2, 2)); err != nil {
		t.Fatalf("start q2: %v", err)
	}

	// A drain loop finishing for question 1 must not clear question 2's window.
	if state.clearWindowIf(1) {
		t.Fatal("stale clear should be a no-op")
	}
	if id, ok := state.AcceptingAnswers(); !ok || id != 2 {
		t.Fatalf("question 2 window lost: id=%d ok=%v", id, ok)
	}

	if !state.clearWindowIf(2) {
		t.Fatal("expected matching clear to succeed")
	}
	snap := state.Snapshot()
	if snap.ActiveQuestionID != nil || snap.QuestionStartedAt != nil || snap.QuestionEndsAt != nil {
		t.Fatalf("expected window fields cleared, got %+v", snap)
	}
}

func TestSnapshotRemainingSeconds(t *testing.T) {
	clock := newFakeClock()
	state := NewSessionStateWithClock(clock.Now)
	state.StartQuiz()
	if _, err := state.StartQuestion(testQuestion(1, 1)); err != nil {
		t.Fatalf("start: %v", err)
	}

	if got := state.Snapshot().RemainingSeconds; got != 10 {
		t.Fatalf("expected 10 remaining, got %d", got)
	}
	clock.Advance(4 * time.Second)
	if got := state.Snapshot().RemainingSeconds; got != 6 {
		t.Fatalf("expected 6 remaining, got %d", got)
	}
	clock.Advance(10 * time.Second)
	if got := state.Snapshot().RemainingSeconds; got != 0 {
		t.Fatalf("expected 0 remaining after close, got %d", got)
	}
}
