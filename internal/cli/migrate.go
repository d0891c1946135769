package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"re2q/internal/config"
	pgmigrations "re2q/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies database migrations and seeds demo questions.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return runMigrationsWithConfig(ctx, cfg)
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	if _, err := migrator.Migrate(ctx); err != nil {
		return err
	}
	log.Printf("migrations applied")

	return seedQuestions(ctx, db)
}

// seedQuestions inserts demo questions when the catalog is empty, so a fresh
// deployment can run a quiz immediately.
func seedQuestions(ctx context.Context, db *bun.DB) error {
	var count int
	if err := db.NewRaw(`SELECT COUNT(*) FROM questions`).Scan(ctx, &count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err := db.Exec(`
		INSERT INTO questions (content, correct_answer, duration_seconds, "position") VALUES
		('Go''s garbage collector is fully concurrent.', TRUE, 10, 1),
		('A Go map is safe for concurrent writes.', FALSE, 10, 2),
		('Redis sets keep insertion order.', FALSE, 10, 3)
	`)
	if err != nil {
		return err
	}
	log.Printf("seeded demo questions")
	return nil
}
