package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"re2q/internal/domain"
)

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ParticipantID string    `bun:"participant_id,pk"`
	QuestionID    int64     `bun:"question_id,pk"`
	AnswerValue   bool      `bun:"answer_value,notnull"`
	AnsweredAt    time.Time `bun:"answered_at,notnull"`
}

type tallyRow struct {
	ParticipantID string `bun:"participant_id"`
	TotalAnswered int    `bun:"total_answered"`
	CorrectCount  int    `bun:"correct_count"`
}

// Ledger is the Postgres-backed durable answer store.
type Ledger struct {
	db *bun.DB
}

func NewLedger(db *bun.DB) *Ledger {
	return &Ledger{db: db}
}

// UpsertAll writes records with last-write-wins semantics on the
// (participant_id, question_id) unique key.
func (l *Ledger) UpsertAll(ctx context.Context, records []domain.AnswerRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]answerRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, answerRow{
			ParticipantID: record.ParticipantID,
			QuestionID:    record.QuestionID,
			AnswerValue:   record.Answer,
			AnsweredAt:    record.AnsweredAt,
		})
	}
	_, err := l.db.NewInsert().
		Model(&rows).
		On("CONFLICT (participant_id, question_id) DO UPDATE").
		Set("answer_value = EXCLUDED.answer_value").
		Set("answered_at = EXCLUDED.answered_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert answers: %w", err)
	}
	return nil
}

// Tallies aggregates the ledger joined with the catalog, ordered by correct
// count descending then total answered ascending.
func (l *Ledger) Tallies(ctx context.Context) ([]domain.Tally, error) {
	var rows []tallyRow
	err := l.db.NewRaw(`
		SELECT a.participant_id,
		       COUNT(*) AS total_answered,
		       SUM(CASE WHEN a.answer_value = q.correct_answer THEN 1 ELSE 0 END) AS correct_count
		FROM answers AS a
		JOIN questions AS q ON q.id = a.question_id
		GROUP BY a.participant_id
		ORDER BY correct_count DESC, total_answered ASC
	`).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("aggregate answers: %w", err)
	}

	tallies := make([]domain.Tally, 0, len(rows))
	for _, row := range rows {
		tallies = append(tallies, domain.Tally{
			ParticipantID:   row.ParticipantID,
			ParticipantName: domain.Participant{ID: row.ParticipantID}.Name(),
			CorrectCount:    row.CorrectCount,
			TotalAnswered:   row.TotalAnswered,
		})
	}
	return tallies, nil
}

func (l *Ledger) ByParticipant(ctx context.Context, participantID string) ([]domain.AnswerRecord, error) {
	var rows []answerRow
	err := l.db.NewSelect().
		Model(&rows).
		Where("participant_id = ?", participantID).
		Order("answered_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	records := make([]domain.AnswerRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.AnswerRecord{
			ParticipantID: row.ParticipantID,
			QuestionID:    row.QuestionID,
			Answer:        row.AnswerValue,
			AnsweredAt:    row.AnsweredAt,
		})
	}
	return records, nil
}

func (l *Ledger) DeleteAll(ctx context.Context) (int, error) {
	res, err := l.db.NewDelete().
		Model((*answerRow)(nil)).
		Where("TRUE").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete answers: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
