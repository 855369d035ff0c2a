package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/vwlab/vwharness/internal/logger"
	"github.com/vwlab/vwharness/internal/storage"
	"github.com/vwlab/vwharness/migrations"
)

func main() {
	var (
		dsn       = flag.String("dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
		direction = flag.String("direction", storage.DirectionUp, "Migration direction: up or down")
		steps     = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
	)
	flag.Parse()

	if err := logger.Init(os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if *dsn == "" {
		slog.Error("POSTGRES_DSN is required")
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.New(ctx, *dsn)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	count, err := storage.Migrate(ctx, store.DB(), migrations.FS, *direction, *steps, slog.Default())
	if err != nil {
		slog.Error("migration failed", "applied", count, "error", err)
		store.Close()
		os.Exit(1)
	}

	if count == 0 {
		slog.Info("no migrations to apply")
	} else {
		slog.Info("migrations complete", "applied", count, "direction", *direction)
	}
}
