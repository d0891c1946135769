package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"re2q/internal/domain"
)

type finalRankingRow struct {
	bun.BaseModel `bun:"table:final_rankings,alias:fr"`

	ParticipantID string `bun:"participant_id,pk"`
	Rank          int    `bun:"rank,notnull"`
	CorrectCount  int    `bun:"correct_count,notnull"`
	TotalAnswered int    `bun:"total_answered,notnull"`
	LotteryScore  int    `bun:"lottery_score,notnull"`
}

// SnapshotStore persists the final ranking in Postgres. Replace runs
// delete-all plus bulk insert in one transaction.
type SnapshotStore struct {
	db *bun.DB
}

func NewSnapshotStore(db *bun.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Replace(ctx context.Context, entries []domain.RankingEntry) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*finalRankingRow)(nil)).Where("TRUE").Exec(ctx); err != nil {
			return fmt.Errorf("clear final ranking: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		rows := make([]finalRankingRow, 0, len(entries))
		for _, entry := range entries {
			rows = append(rows, finalRankingRow{
				ParticipantID: entry.ParticipantID,
				Rank:          entry.Rank,
				CorrectCount:  entry.CorrectCount,
				TotalAnswered: entry.TotalAnswered,
				LotteryScore:  entry.LotteryScore,
			})
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert final ranking: %w", err)
		}
		return nil
	})
}

func (s *SnapshotStore) Load(ctx context.Context) ([]domain.RankingEntry, error) {
	var rows []finalRankingRow
	err := s.db.NewSelect().
		Model(&rows).
		Order("rank ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("load final ranking: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	entries := make([]domain.RankingEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, domain.RankingEntry{
			ParticipantID:   row.ParticipantID,
			ParticipantName: domain.Participant{ID: row.ParticipantID}.Name(),
			CorrectCount:    row.CorrectCount,
			TotalAnswered:   row.TotalAnswered,
			Rank:            row.Rank,
			LotteryScore:    row.LotteryScore,
		})
	}
	return entries, nil
}

func (s *SnapshotStore) Clear(ctx context.Context) error {
	if _, err := s.db.NewDelete().Model((*finalRankingRow)(nil)).Where("TRUE").Exec(ctx); err != nil {
		return fmt.Errorf("clear final ranking: %w", err)
	}
	return nil
}
