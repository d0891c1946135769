package memory

import (
	"context"
	"sync"
	"time"

	"re2q/internal/domain"
)

// AnswerBuffer is an in-memory implementation of quiz.AnswerBuffer, used in
// tests and in no-Redis deployments. The per-question pending index is a set
// guarded by the buffer mutex, so concurrent first-time submissions cannot
// lose updates.
type AnswerBuffer struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	entries map[bufferKey]bufferedAnswer
	index   map[int64]map[string]struct{}
}

type bufferKey struct {
	questionID    int64
	participantID string
}

type bufferedAnswer struct {
	answer    domain.PendingAnswer
	expiresAt time.Time
}

func NewAnswerBuffer(ttl time.Duration) *AnswerBuffer {
	return NewAnswerBufferWithClock(ttl, time.Now)
}

// NewAnswerBufferWithClock allows deterministic expiry in tests.
func NewAnswerBufferWithClock(ttl time.Duration, clock func() time.Time) *AnswerBuffer {
	return &AnswerBuffer{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[bufferKey]bufferedAnswer),
		index:   make(map[int64]map[string]struct{}),
	}
}

func (b *AnswerBuffer) Put(_ context.Context, answer domain.PendingAnswer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := bufferKey{questionID: answer.QuestionID, participantID: answer.ParticipantID}
	b.entries[key] = bufferedAnswer{
		answer:    answer,
		expiresAt: b.clock().Add(b.ttl),
	}
	set, ok := b.index[answer.QuestionID]
	if !ok {
		set = make(map[string]struct{})
		b.index[answer.QuestionID] = set
	}
	set[answer.ParticipantID] = struct{}{}
	return nil
}

func (b *AnswerBuffer) Pending(_ context.Context, questionID int64) ([]domain.PendingAnswer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	var pending []domain.PendingAnswer
	for participantID := range b.index[questionID] {
		key := bufferKey{questionID: questionID, participantID: participantID}
		entry, ok := b.entries[key]
		if !ok || !entry.expiresAt.After(now) {
			continue
		}
		pending = append(pending, entry.answer)
	}
	return pending, nil
}

func (b *AnswerBuffer) Remove(_ context.Context, questionID int64, participantIDs []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, participantID := range participantIDs {
		delete(b.entries, bufferKey{questionID: questionID, participantID: participantID})
	}
	// Index cleanup follows entry deletion.
	if set, ok := b.index[questionID]; ok {
		for _, participantID := range participantIDs {
			delete(set, participantID)
		}
		if len(set) == 0 {
			delete(b.index, questionID)
		}
	}
	return nil
}
