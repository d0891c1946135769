package quiz

import (
	"sync"
	"time"

	"re2q/internal/domain"
)

// SessionState is the single source of truth for whether the quiz is running,
// which question is open, and when its window closes. Exactly one instance is
// owned by the process; administrative transitions serialize on its mutex so
// that "is a question open" is checked and set atomically. Reads take the
// read lock and may race harmlessly with writers.
//
// The question window is [startedAt, endsAt). Closing a question only moves
// endsAt to now; the drain loop observes the change on its next tick.
type SessionState struct {
	mu  sync.RWMutex
	now func() time.Time

	quizActive      bool
	questionID      *int64
	startedAt       *time.Time
	endsAt          *time.Time
	durationSeconds *int

	// lastOpenedID survives window clearing so StartNextQuestion can find
	// the position to advance from.
	lastOpenedID *int64
}

func NewSessionState() *SessionState {
	return NewSessionStateWithClock(time.Now)
}

// NewSessionStateWithClock allows deterministic timestamps in tests.
func NewSessionStateWithClock(now func() time.Time) *SessionState {
	return &SessionState{now: now}
}

// StartQuiz marks the quiz active. Idempotent.
func (s *SessionState) StartQuiz() domain.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizActive = true
	return s.snapshotLocked()
}

// StartQuestion opens the window for q. It fails if the quiz is inactive or
// another window is currently open; at most one question is open system-wide.
func (s *SessionState) StartQuestion(q domain.Question) (domain.StateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.quizActive {
		return s.snapshotLocked(), domain.ErrQuizNotRunning
	}
	if s.questionActiveLocked() {
		return s.snapshotLocked(), domain.ErrQuestionAlreadyOpen
	}

	now := s.now()
	ends := now.Add(time.Duration(q.DurationSeconds) * time.Second)
	id := q.ID
	duration := q.DurationSeconds
	s.questionID = &id
	s.startedAt = &now
	s.endsAt = &ends
	s.durationSeconds = &duration
	s.lastOpenedID = &id
	return s.snapshotLocked(), nil
}

// StopQuestion force-closes any open window by moving endsAt to now. This is
// the only cancellation primitive; the drain loop detects the new end time on
// its next tick.
func (s *SessionState) StopQuestion() domain.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.questionID != nil {
		now := s.now()
		s.endsAt = &now
	}
	return s.snapshotLocked()
}

// StopQuiz force-closes the open question and deactivates the quiz.
func (s *SessionState) StopQuiz() domain.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.questionID != nil {
		now := s.now()
		s.endsAt = &now
	}
	s.quizActive = false
	return s.snapshotLocked()
}

// Reset returns the state machine to idle, forgetting the last opened question.
func (s *SessionState) Reset() domain.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizActive = false
	s.questionID = nil
	s.startedAt = nil
	s.endsAt = nil
	s.durationSeconds = nil
	s.lastOpenedID = nil
	return s.snapshotLocked()
}

// AcceptingAnswers reports the open question, if any. This predicate is the
// single gate for the submission path and the drain loop's termination check.
func (s *SessionState) AcceptingAnswers() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.questionActiveLocked() {
		return 0, false
	}
	return *s.questionID, true
}

// LastOpenedQuestion returns the most recently opened question ID, whether or
// not its window is still open.
func (s *SessionState) LastOpenedQuestion() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastOpenedID == nil {
		return 0, false
	}
	return *s.lastOpenedID, true
}

// Snapshot returns the current observable state.
func (s *SessionState) Snapshot() domain.StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// clearWindowIf resets the window fields, but only when the open-question
// pointer still equals questionID. A drain loop finishing for a stale
// question must not clobber a newer question's window.
func (s *SessionState) clearWindowIf(questionID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.questionID == nil || *s.questionID != questionID {
		return false
	}
	s.questionID = nil
	s.startedAt = nil
	s.endsAt = nil
	s.durationSeconds = nil
	return true
}

func (s *SessionState) questionActiveLocked() bool {
	if !s.quizActive || s.questionID == nil {
		return false
	}
	if s.startedAt == nil || s.endsAt == nil {
		return false
	}
	now := s.now()
	return !now.Before(*s.startedAt) && now.Before(*s.endsAt)
}

func (s *SessionState) snapshotLocked() domain.StateSnapshot {
	snap := domain.StateSnapshot{
		QuizActive:     s.quizActive,
		QuestionActive: s.questionActiveLocked(),
	}
	if s.questionID != nil {
		id := *s.questionID
		snap.ActiveQuestionID = &id
	}
	if s.startedAt != nil {
		t := *s.startedAt
		snap.QuestionStartedAt = &t
	}
	if s.endsAt != nil {
		t := *s.endsAt
		snap.QuestionEndsAt = &t
	}
	if s.durationSeconds != nil {
		d := *s.durationSeconds
		snap.DurationSeconds = &d
	}
	if snap.QuestionActive {
		remaining := int(s.endsAt.Sub(s.now()) / time.Second)
		if remaining < 0 {
			remaining = 0
		}
		snap.RemainingSeconds = remaining
	}
	return snap
}
