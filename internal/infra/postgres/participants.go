package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"re2q/internal/domain"
)

type participantRow struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID        string    `bun:"id,pk"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ParticipantRegistry stores participant identities in Postgres.
type ParticipantRegistry struct {
	db *bun.DB
}

func NewParticipantRegistry(db *bun.DB) *ParticipantRegistry {
	return &ParticipantRegistry{db: db}
}

func (r *ParticipantRegistry) GetOrCreate(ctx context.Context, id string) (domain.Participant, error) {
	row := participantRow{ID: id, CreatedAt: time.Now()}
	_, err := r.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("create participant: %w", err)
	}

	var found participantRow
	err = r.db.NewSelect().
		Model(&found).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("load participant: %w", err)
	}
	return domain.Participant{ID: found.ID, CreatedAt: found.CreatedAt}, nil
}

func (r *ParticipantRegistry) DeleteAll(ctx context.Context) (int, error) {
	res, err := r.db.NewDelete().
		Model((*participantRow)(nil)).
		Where("TRUE").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete participants: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
