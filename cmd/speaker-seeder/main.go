// Command speaker-seeder bulk-loads the metadata store from TSV dumps of a
// corpus release: persons, party affiliations, terms of office, and the
// protocol source index. It is intended to be run offline before the first
// extraction, and again whenever a new release is published.
//
// Flags:
//
//	--phase        comma-separated list of phases to run (default: all)
//	--data-dir     directory holding the TSV dumps (overrides config)
//	--dry-run      parse dumps without writing to the database
//	--seed-config  path to seeding YAML config file
//
// Exit codes: 0 = success, 1 = error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/parlaclarin/pipeline/internal/adapter/postgres"
	"github.com/parlaclarin/pipeline/internal/adapter/postgres/sourceindex"
	"github.com/parlaclarin/pipeline/internal/adapter/postgres/speaker"
	"github.com/parlaclarin/pipeline/internal/app"
	"github.com/parlaclarin/pipeline/internal/app/seed"
	"github.com/parlaclarin/pipeline/internal/config"
)

// Compile-time interface assertions.
var (
	_ seed.SpeakerBulkRepo     = (*speaker.Repo)(nil)
	_ seed.SourceIndexBulkRepo = (*sourceindex.Repo)(nil)
	_ seed.TxRunner            = (*postgres.TxManager)(nil)
)

func main() {
	phaseFlag := flag.String("phase", "", "comma-separated phases to run (default: all)")
	dataDirFlag := flag.String("data-dir", "", "directory holding the TSV dumps (overrides config)")
	dryRunFlag := flag.Bool("dry-run", false, "parse dumps without writing to the database")
	seedConfigFlag := flag.String("seed-config", "", "path to seeding YAML config file")
	flag.Parse()

	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}

	logger := app.NewLogger(appCfg.Log)

	seedCfg, err := loadSeedConfig(*seedConfigFlag)
	if err != nil {
		logger.Error("load seed config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *dataDirFlag != "" {
		seedCfg.DataDir = *dataDirFlag
	}
	if *dryRunFlag {
		seedCfg.DryRun = true
	}
	if seedCfg.DataDir == "" {
		logger.Error("data_dir is required")
		os.Exit(1)
	}

	var phases []string
	if *phaseFlag != "" {
		phases = strings.Split(*phaseFlag, ",")
		for i := range phases {
			phases[i] = strings.TrimSpace(phases[i])
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, appCfg.Database)
	if err != nil {
		logger.Error("connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	pipeline := seed.NewPipeline(
		logger,
		speaker.New(pool),
		sourceindex.New(pool),
		postgres.NewTxManager(pool),
		*seedCfg,
	)
	if err := pipeline.Run(ctx, phases); err != nil {
		logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if pipeline.HasErrors() {
		logger.Warn("seeding completed with errors")
		os.Exit(1)
	}

	logger.Info("seeding completed successfully")
}

func loadSeedConfig(path string) (*seed.Config, error) {
	var cfg seed.Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("seed config: file %s not found", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("seed config: read %s: %w", path, err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("seed config: read env: %w", err)
	}
	return &cfg, nil
}
