package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"re2q/internal/config"
	"re2q/internal/domain"
	"re2q/internal/infra/memory"
	infrapg "re2q/internal/infra/postgres"
	infraredis "re2q/internal/infra/redis"
	"re2q/internal/quiz"
	transport "re2q/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	bufferTTL := config.TTLDuration(cfg.Quiz.BufferTTL, time.Hour)
	drainInterval := config.TTLDuration(cfg.Quiz.DrainInterval, time.Second)
	catalogTTL := config.TTLDuration(cfg.Quiz.CatalogTTL, 10*time.Minute)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	var bunDB *bun.DB
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB = bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(sampleQuestions())
	if pool != nil {
		loader = infrapg.NewCatalogLoader(pool)
	}
	catalog := memory.NewCatalog(loader, catalogTTL)

	var buffer quiz.AnswerBuffer = memory.NewAnswerBuffer(bufferTTL)
	if redisClient != nil {
		buffer = infraredis.NewAnswerBuffer(redisClient, bufferTTL)
	}

	var ledger quiz.AnswerLedger
	var snapshots quiz.SnapshotStore
	var participants quiz.ParticipantRegistry
	if bunDB != nil {
		ledger = infrapg.NewLedger(bunDB)
		snapshots = infrapg.NewSnapshotStore(bunDB)
		participants = infrapg.NewParticipantRegistry(bunDB)
	} else {
		ledger = memory.NewLedger(catalog)
		snapshots = memory.NewSnapshotStore()
		participants = memory.NewParticipantRegistry()
	}

	service := quiz.NewService(catalog, buffer, ledger, snapshots, participants,
		quiz.WithDrainInterval(drainInterval),
		quiz.WithBufferTTL(bufferTTL),
		quiz.WithLogf(log.Printf),
	)

	admins := transport.NewAdminSessions(cfg.Admin.Username, cfg.Admin.Password)
	handler := transport.NewHandler(service, admins)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting re2q quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions backs the in-memory catalog when Postgres is not configured.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Content: "Go's garbage collector is fully concurrent.", CorrectAnswer: true, DurationSeconds: 10, Position: 1},
		{ID: 2, Content: "A Go map is safe for concurrent writes.", CorrectAnswer: false, DurationSeconds: 10, Position: 2},
		{ID: 3, Content: "Redis sets keep insertion order.", CorrectAnswer: false, DurationSeconds: 10, Position: 3},
	}
}
