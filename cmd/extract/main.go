// Command extract runs a full corpus extraction: it walks a ParlaClarin XML
// tree, explodes protocols into segments at the configured granularity,
// enriches speakers from the metadata store, merges segments into
// temporal/categorical buckets, and writes them in the configured export
// format together with a tab-separated document index.
//
// Flags:
//
//	--extract-config  path to extraction YAML config file
//	--input           corpus root directory (overrides config)
//	--output          export directory (overrides config)
//	--dry-run         run the full pipeline without writing output
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
	"path/filepath"
	"time"

	"github.com/parlaclarin/pipeline/internal/adapter/postgres"
	"github.com/parlaclarin/pipeline/internal/adapter/postgres/sourceindex"
	"github.com/parlaclarin/pipeline/internal/adapter/postgres/speaker"
	"github.com/parlaclarin/pipeline/internal/app"
	"github.com/parlaclarin/pipeline/internal/app/extract"
	"github.com/parlaclarin/pipeline/internal/config"
	"github.com/parlaclarin/pipeline/internal/dispatch"
	"github.com/parlaclarin/pipeline/internal/merge"
	"github.com/parlaclarin/pipeline/internal/parlaclarin"
	"github.com/parlaclarin/pipeline/internal/segment"
	"github.com/parlaclarin/pipeline/internal/service/speakers"
)

func main() {
	extractConfigFlag := flag.String("extract-config", "", "path to extraction YAML config file")
	inputFlag := flag.String("input", "", "corpus root directory (overrides config)")
	outputFlag := flag.String("output", "", "export directory (overrides config)")
	dryRunFlag := flag.Bool("dry-run", false, "run the pipeline without writing output")
	flag.Parse()

	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}

	logger := app.NewLogger(appCfg.Log)
	logger.Info("extract starting", slog.String("version", app.BuildVersion()))

	extractCfg, err := extract.LoadConfig(*extractConfigFlag)
	if err != nil {
		logger.Error("load extract config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *inputFlag != "" {
		extractCfg.InputDir = *inputFlag
	}
	if *outputFlag != "" {
		extractCfg.OutputDir = *outputFlag
	}
	if *dryRunFlag {
		extractCfg.DryRun = true
	}
	if err := extractCfg.Validate(); err != nil {
		logger.Error("invalid extract config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	if err := run(ctx, logger, appCfg, extractCfg); err != nil {
		logger.Error("extraction failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, appCfg *config.Config, cfg *extract.Config) error {
	parser := parlaclarin.NewParser(logger)

	exploder, err := segment.NewExploder(logger, segment.Config{
		Granularity: cfg.GranularityValue(),
		Strategy:    cfg.StrategyValue(),
		MinChars:    cfg.MinChars,
		Tagged:      cfg.Tagged,
	})
	if err != nil {
		return err
	}

	categorizer, err := merge.NewTemporalCategorizer(cfg.TemporalKey)
	if err != nil {
		return err
	}
	hasher, err := merge.NewGroupingHasher(cfg.GroupBy, "")
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, appCfg.Database)
	if err != nil {
		return fmt.Errorf("connect to metadata store: %w", err)
	}
	defer pool.Close()

	records, err := sourceindex.New(pool).LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load source index: %w", err)
	}
	index := merge.SourceIndexMap(records)

	var enricher extract.Enricher
	if !cfg.NoMetadata {
		enricher = speakers.NewService(logger, speaker.New(pool))
	}

	merger, err := merge.NewMerger(logger, categorizer, hasher, index, cfg.GranularityValue())
	if err != nil {
		return err
	}

	dispatcher, err := newDispatcher(cfg, hasher.Attrs())
	if err != nil {
		return err
	}

	pipeline := extract.NewPipeline(logger, *cfg, parser.ParseFile, exploder, enricher, merger, index, dispatcher)
	stats, runErr := pipeline.Run(ctx)

	if err := dispatcher.Close(); err != nil {
		if runErr == nil {
			return fmt.Errorf("close dispatcher: %w", err)
		}
		logger.Warn("close dispatcher", slog.String("error", err.Error()))
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("extraction succeeded",
		slog.Int("files", stats.FilesTotal),
		slog.Int("files_failed", stats.FilesFailed),
		slog.Int("documents", stats.Documents),
	)
	return nil
}

func newDispatcher(cfg *extract.Config, attrs []string) (dispatch.Dispatcher, error) {
	if cfg.DryRun {
		return dispatch.Nop{}, nil
	}
	switch cfg.Format {
	case "text":
		return dispatch.NewTextDispatcher(cfg.OutputDir, attrs)
	case "zip":
		return dispatch.NewZipDispatcher(filepath.Join(cfg.OutputDir, "corpus.zip"), attrs)
	case "csv":
		return dispatch.NewFrameDispatcher(cfg.OutputDir, attrs)
	case "vrt":
		return dispatch.NewVRTDispatcher(cfg.OutputDir, attrs, cfg.Tagged)
	default:
		return nil, fmt.Errorf("unknown export format %q", cfg.Format)
	}
}
