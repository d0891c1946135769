package memory

import (
	"context"
	"sort"
	"sync"

	"re2q/internal/domain"
)

// QuestionSource resolves question attributes for tally aggregation.
type QuestionSource interface {
	Get(ctx context.Context, id int64) (domain.Question, error)
}

// Ledger is an in-memory implementation of quiz.AnswerLedger. One record per
// (participant, question); upserts overwrite.
type Ledger struct {
	questions QuestionSource

	mu      sync.RWMutex
	records map[ledgerKey]domain.AnswerRecord
}

type ledgerKey struct {
	participantID string
	questionID    int64
}

func NewLedger(questions QuestionSource) *Ledger {
	return &Ledger{
		questions: questions,
		records:   make(map[ledgerKey]domain.AnswerRecord),
	}
}

func (l *Ledger) UpsertAll(_ context.Context, records []domain.AnswerRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, record := range records {
		key := ledgerKey{participantID: record.ParticipantID, questionID: record.QuestionID}
		l.records[key] = record
	}
	return nil
}

func (l *Ledger) Tallies(ctx context.Context) ([]domain.Tally, error) {
	l.mu.RLock()
	records := make([]domain.AnswerRecord, 0, len(l.records))
	for _, record := range l.records {
		records = append(records, record)
	}
	l.mu.RUnlock()

	byParticipant := make(map[string]*domain.Tally)
	for _, record := range records {
		question, err := l.questions.Get(ctx, record.QuestionID)
		if err != nil {
			return nil, err
		}
		tally, ok := byParticipant[record.ParticipantID]
		if !ok {
			tally = &domain.Tally{
				ParticipantID:   record.ParticipantID,
				ParticipantName: domain.Participant{ID: record.ParticipantID}.Name(),
			}
			byParticipant[record.ParticipantID] = tally
		}
		tally.TotalAnswered++
		if record.Answer == question.CorrectAnswer {
			tally.CorrectCount++
		}
	}

	tallies := make([]domain.Tally, 0, len(byParticipant))
	for _, tally := range byParticipant {
		tallies = append(tallies, *tally)
	}
	sort.Slice(tallies, func(i, j int) bool {
		return tallies[i].ParticipantID < tallies[j].ParticipantID
	})
	return tallies, nil
}

func (l *Ledger) ByParticipant(_ context.Context, participantID string) ([]domain.AnswerRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var records []domain.AnswerRecord
	for key, record := range l.records {
		if key.participantID == participantID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].AnsweredAt.Before(records[j].AnsweredAt)
	})
	return records, nil
}

func (l *Ledger) DeleteAll(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := len(l.records)
	l.records = make(map[ledgerKey]domain.AnswerRecord)
	return count, nil
}
