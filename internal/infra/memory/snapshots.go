package memory

import (
	"context"
	"sync"
	"time"

	"re2q/internal/domain"
)

// SnapshotStore keeps the final ranking snapshot in memory. Replace swaps
// the whole slice under the mutex, matching the store contract's
// delete-all-then-insert atomicity.
type SnapshotStore struct {
	mu      sync.RWMutex
	entries []domain.RankingEntry
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

func (s *SnapshotStore) Replace(_ context.Context, entries []domain.RankingEntry) error {
	copied := make([]domain.RankingEntry, len(entries))
	copy(copied, entries)
	s.mu.Lock()
	s.entries = copied
	s.mu.Unlock()
	return nil
}

func (s *SnapshotStore) Load(_ context.Context) ([]domain.RankingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.entries == nil {
		return nil, nil
	}
	out := make([]domain.RankingEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *SnapshotStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
	return nil
}

// ParticipantRegistry is an in-memory implementation of
// quiz.ParticipantRegistry.
type ParticipantRegistry struct {
	mu           sync.Mutex
	participants map[string]domain.Participant
	clock        func() time.Time
}

func NewParticipantRegistry() *ParticipantRegistry {
	return &ParticipantRegistry{
		participants: make(map[string]domain.Participant),
		clock:        time.Now,
	}
}

func (r *ParticipantRegistry) GetOrCreate(_ context.Context, id string) (domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if participant, ok := r.participants[id]; ok {
		return participant, nil
	}
	participant := domain.Participant{ID: id, CreatedAt: r.clock()}
	r.participants[id] = participant
	return participant, nil
}

func (r *ParticipantRegistry) DeleteAll(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := len(r.participants)
	r.participants = make(map[string]domain.Participant)
	return count, nil
}
