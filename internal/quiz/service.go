package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"re2q/internal/domain"
)

// QuestionCatalog serves the ordered, immutable-during-quiz question list.
type QuestionCatalog interface {
	All(ctx context.Context) ([]domain.Question, error)
	Get(ctx context.Context, id int64) (domain.Question, error)
}

// AnswerBuffer is the fast, ephemeral write-behind store for submissions.
// Put overwrites any prior value for the same (question, participant) pair
// and records the key in the question's pending index; both writes carry a
// bounded TTL as a leak guard. Pending skips expired or missing entries
// silently. Remove deletes entries first and prunes the index after, so an
// interrupted drain re-reads entries instead of losing them.
type AnswerBuffer interface {
	Put(ctx context.Context, answer domain.PendingAnswer) error
	Pending(ctx context.Context, questionID int64) ([]domain.PendingAnswer, error)
	Remove(ctx context.Context, questionID int64, participantIDs []string) error
}

// AnswerLedger is the durable answer store, unique per
// (participant, question) with upsert-on-conflict semantics.
type AnswerLedger interface {
	UpsertAll(ctx context.Context, records []domain.AnswerRecord) error
	Tallies(ctx context.Context) ([]domain.Tally, error)
	ByParticipant(ctx context.Context, participantID string) ([]domain.AnswerRecord, error)
	DeleteAll(ctx context.Context) (int, error)
}

// SnapshotStore persists the final ranking. Replace is atomic
// (delete-all then bulk insert); Load returns nil when no snapshot exists.
type SnapshotStore interface {
	Replace(ctx context.Context, entries []domain.RankingEntry) error
	Load(ctx context.Context) ([]domain.RankingEntry, error)
	Clear(ctx context.Context) error
}

// ParticipantRegistry stores participant identities keyed by opaque UUID.
type ParticipantRegistry interface {
	GetOrCreate(ctx context.Context, id string) (domain.Participant, error)
	DeleteAll(ctx context.Context) (int, error)
}

// Service wires the session state machine, the write-behind buffer, the
// drain loop, and the ranking calculator into the quiz use cases.
type Service struct {
	state        *SessionState
	catalog      QuestionCatalog
	buffer       AnswerBuffer
	ledger       AnswerLedger
	snapshots    SnapshotStore
	participants ParticipantRegistry

	drainInterval time.Duration
	bufferTTL     time.Duration
	now           func() time.Time
	after         func(time.Duration) <-chan time.Time
	rnd           *rand.Rand
	logf          func(format string, args ...any)
}

// Option tweaks Service construction; used mainly by tests to inject clocks.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.state = NewSessionStateWithClock(now)
	}
}

// WithAfter replaces the drain loop's tick wait.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(s *Service) { s.after = after }
}

// WithRand seeds the lottery deterministically.
func WithRand(rnd *rand.Rand) Option {
	return func(s *Service) { s.rnd = rnd }
}

// WithDrainInterval overrides the one-second drain tick.
func WithDrainInterval(d time.Duration) Option {
	return func(s *Service) { s.drainInterval = d }
}

// WithBufferTTL overrides the pending-answer TTL leak guard.
func WithBufferTTL(d time.Duration) Option {
	return func(s *Service) { s.bufferTTL = d }
}

// WithLogf overrides the drain loop's logger.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(s *Service) { s.logf = logf }
}

func NewService(catalog QuestionCatalog, buffer AnswerBuffer, ledger AnswerLedger, snapshots SnapshotStore, participants ParticipantRegistry, opts ...Option) *Service {
	s := &Service{
		state:         NewSessionState(),
		catalog:       catalog,
		buffer:        buffer,
		ledger:        ledger,
		snapshots:     snapshots,
		participants:  participants,
		drainInterval: time.Second,
		bufferTTL:     time.Hour,
		now:           time.Now,
		after:         time.After,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		logf:          func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current session snapshot.
func (s *Service) State() domain.StateSnapshot {
	return s.state.Snapshot()
}

// Participants exposes the registry for the identity middleware.
func (s *Service) Participants() ParticipantRegistry {
	return s.participants
}

// StartQuiz activates the quiz. Idempotent.
func (s *Service) StartQuiz(_ context.Context) (domain.StateSnapshot, error) {
	return s.state.StartQuiz(), nil
}

// StartQuestion opens the window for questionID and schedules its drain loop.
func (s *Service) StartQuestion(ctx context.Context, questionID int64) (domain.StateSnapshot, error) {
	question, err := s.catalog.Get(ctx, questionID)
	if err != nil {
		return s.state.Snapshot(), err
	}
	snap, err := s.state.StartQuestion(question)
	if err != nil {
		return snap, err
	}
	go s.drainLoop(question.ID)
	return snap, nil
}

// StartNextQuestion opens the lowest-position question not yet opened and
// reports whether it is the last of the catalog.
func (s *Service) StartNextQuestion(ctx context.Context) (domain.StateSnapshot, bool, error) {
	questions, err := s.catalog.All(ctx)
	if err != nil {
		return s.state.Snapshot(), false, err
	}
	if len(questions) == 0 {
		return s.state.Snapshot(), false, domain.ErrNoQuestions
	}

	next := -1
	if lastID, ok := s.state.LastOpenedQuestion(); ok {
		lastPos := -1
		for _, q := range questions {
			if q.ID == lastID {
				lastPos = q.Position
				break
			}
		}
		for i, q := range questions {
			if q.Position > lastPos {
				next = i
				break
			}
		}
		if next < 0 {
			return s.state.Snapshot(), false, domain.ErrNoMoreQuestions
		}
	} else {
		next = 0
	}

	snap, err := s.state.StartQuestion(questions[next])
	if err != nil {
		return snap, false, err
	}
	go s.drainLoop(questions[next].ID)
	return snap, next == len(questions)-1, nil
}

// StopQuiz force-closes any open question, deactivates the quiz, and
// persists the lottery-mode final ranking snapshot. The drain loop notices
// the moved end time on its next tick and performs the last flush.
func (s *Service) StopQuiz(ctx context.Context) (domain.StateSnapshot, error) {
	snap := s.state.StopQuiz()

	// Flush whatever is buffered before ranking; the loop's own final drain
	// is idempotent against this one.
	if id := snap.ActiveQuestionID; id != nil {
		if err := s.drainOnce(ctx, *id); err != nil {
			return snap, fmt.Errorf("final drain: %w", err)
		}
	}

	tallies, err := s.ledger.Tallies(ctx)
	if err != nil {
		return snap, fmt.Errorf("aggregate ledger: %w", err)
	}
	entries := Rank(tallies, true, s.rnd)
	if err := s.snapshots.Replace(ctx, entries); err != nil {
		return snap, fmt.Errorf("persist final ranking: %w", err)
	}
	return snap, nil
}

// SubmitAnswer buffers one answer for the open question. The submission path
// never touches the ledger; repeated submissions overwrite in place and the
// last one before the final drain wins.
func (s *Service) SubmitAnswer(ctx context.Context, participantID string, answer bool) error {
	if participantID == "" {
		return domain.ErrParticipantRequired
	}
	questionID, ok := s.state.AcceptingAnswers()
	if !ok {
		return domain.ErrNoActiveQuestion
	}
	pending := domain.PendingAnswer{
		ParticipantID: participantID,
		QuestionID:    questionID,
		Answer:        answer,
		SubmittedAt:   s.now(),
	}
	if err := s.buffer.Put(ctx, pending); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBufferUnavailable, err)
	}
	return nil
}

// Ranking returns the persisted final snapshot when one exists, otherwise
// the live standings without lottery.
func (s *Service) Ranking(ctx context.Context) ([]domain.RankingEntry, error) {
	snapshot, err := s.snapshots.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if len(snapshot) > 0 {
		return snapshot, nil
	}
	tallies, err := s.ledger.Tallies(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger: %w", err)
	}
	return Rank(tallies, false, s.rnd), nil
}

// ExecuteLottery recomputes the standings in lottery mode without stopping
// the quiz or touching the snapshot.
func (s *Service) ExecuteLottery(ctx context.Context) ([]domain.RankingEntry, error) {
	tallies, err := s.ledger.Tallies(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger: %w", err)
	}
	return Rank(tallies, true, s.rnd), nil
}

// AnswersFor returns a participant's durable answer history.
func (s *Service) AnswersFor(ctx context.Context, participantID string) ([]domain.AnswerRecord, error) {
	if participantID == "" {
		return nil, domain.ErrParticipantRequired
	}
	return s.ledger.ByParticipant(ctx, participantID)
}

// ResetQuiz clears answers, participants, and the final ranking snapshot,
// and returns the state machine to idle.
func (s *Service) ResetQuiz(ctx context.Context) (domain.ResetResult, error) {
	answers, err := s.ledger.DeleteAll(ctx)
	if err != nil {
		return domain.ResetResult{}, fmt.Errorf("delete answers: %w", err)
	}
	if err := s.snapshots.Clear(ctx); err != nil {
		return domain.ResetResult{}, fmt.Errorf("clear snapshot: %w", err)
	}
	participants, err := s.participants.DeleteAll(ctx)
	if err != nil {
		return domain.ResetResult{}, fmt.Errorf("delete participants: %w", err)
	}
	s.state.Reset()
	return domain.ResetResult{DeletedAnswers: answers, DeletedParticipants: participants}, nil
}
