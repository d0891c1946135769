package quiz

import (
	"context"

	"re2q/internal/domain"
)

// drainLoop empties the write-behind buffer into the ledger for one opened
// question, once per drain interval. It is self-terminating: the only
// stopping condition, checked fresh on every tick, is that the window it was
// tracking is no longer the open one. On termination it performs one last
// flush and clears the window fields, unless a newer question has already
// taken the pointer.
//
// A failed tick is not retried here; the next tick re-attempts drainage from
// current buffer contents, which is safe because draining is idempotent.
func (s *Service) drainLoop(questionID int64) {
	ctx := context.Background()
	for {
		if err := s.drainOnce(ctx, questionID); err != nil {
			s.logf("drain question %d: %v", questionID, err)
		}

		open, ok := s.state.AcceptingAnswers()
		if !ok || open != questionID {
			if err := s.drainOnce(ctx, questionID); err != nil {
				s.logf("final drain question %d: %v", questionID, err)
			}
			s.state.clearWindowIf(questionID)
			return
		}

		<-s.after(s.drainInterval)
	}
}

// drainOnce moves every pending answer for questionID into the ledger and
// deletes the drained buffer entries, index last. Always upserts, never
// skips: a later buffered value supersedes whatever was persisted before.
// Draining an empty or already-drained set is a no-op.
func (s *Service) drainOnce(ctx context.Context, questionID int64) error {
	pending, err := s.buffer.Pending(ctx, questionID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	records := make([]domain.AnswerRecord, 0, len(pending))
	participantIDs := make([]string, 0, len(pending))
	for _, p := range pending {
		records = append(records, domain.AnswerRecord{
			ParticipantID: p.ParticipantID,
			QuestionID:    p.QuestionID,
			Answer:        p.Answer,
			AnsweredAt:    p.SubmittedAt,
		})
		participantIDs = append(participantIDs, p.ParticipantID)
	}

	if err := s.ledger.UpsertAll(ctx, records); err != nil {
		return err
	}
	return s.buffer.Remove(ctx, questionID, participantIDs)
}
