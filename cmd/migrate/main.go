// Command migrate applies goose SQL migrations from the migrations/
// directory to the configured metadata store.
//
// Flags:
//
//	--dir   migrations directory (default "migrations")
//	--down  roll back the most recent migration instead of migrating up
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/parlaclarin/pipeline/internal/app"
	"github.com/parlaclarin/pipeline/internal/config"
)

func main() {
	dirFlag := flag.String("dir", "migrations", "migrations directory")
	downFlag := flag.Bool("down", false, "roll back the most recent migration")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("ping database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(*dirFlag))
	if err != nil {
		logger.Error("create migration provider", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *downFlag {
		result, err := provider.Down(ctx)
		if err != nil {
			logger.Error("migrate down", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("rolled back migration", slog.String("source", result.Source.Path))
		return
	}

	results, err := provider.Up(ctx)
	if err != nil {
		logger.Error("migrate up", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Duration("duration", r.Duration),
		)
	}
	logger.Info("migrations complete", slog.Int("applied", len(results)))
}
