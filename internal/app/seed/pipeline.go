package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/parlaclarin/pipeline/internal/adapter/postgres/speaker"
	"github.com/parlaclarin/pipeline/internal/domain"
)

// allPhases defines the canonical execution order. Persons load before the
// tables that reference them.
var allPhases = []string{"persons", "affiliations", "terms", "source_index"}

// Config holds seeding run settings.
type Config struct {
	// DataDir holds the TSV dumps: persons.tsv, party_affiliations.tsv,
	// terms_of_office.tsv, source_index.tsv. A missing file skips its phase.
	DataDir   string `yaml:"data_dir"   env:"SEED_DATA_DIR"`
	BatchSize int    `yaml:"batch_size" env:"SEED_BATCH_SIZE" env-default:"500"`
	DryRun    bool   `yaml:"dry_run"    env:"SEED_DRY_RUN"`
}

// PhaseResult holds the outcome of a single seeding phase.
type PhaseResult struct {
	Loaded   int
	Skipped  int
	Duration time.Duration
	Err      error
}

// Pipeline orchestrates the metadata-store seeding process.
type Pipeline struct {
	log      *slog.Logger
	speakers SpeakerBulkRepo
	index    SourceIndexBulkRepo
	txm      TxRunner
	cfg      Config
	results  map[string]PhaseResult
}

func NewPipeline(log *slog.Logger, speakers SpeakerBulkRepo, index SourceIndexBulkRepo, txm TxRunner, cfg Config) *Pipeline {
	return &Pipeline{
		log:      log,
		speakers: speakers,
		index:    index,
		txm:      txm,
		cfg:      cfg,
		results:  make(map[string]PhaseResult),
	}
}

// Results returns phase results after Run completes.
func (p *Pipeline) Results() map[string]PhaseResult {
	return p.results
}

// HasErrors returns true if any phase failed.
func (p *Pipeline) HasErrors() bool {
	for _, r := range p.results {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// Run executes the pipeline. If phases is non-empty, only the listed phases
// run. Each phase is its own transaction; a failed phase does not block the
// phases after it.
func (p *Pipeline) Run(ctx context.Context, phases []string) error {
	toRun := allPhases
	if len(phases) > 0 {
		filter := make(map[string]bool, len(phases))
		for _, ph := range phases {
			filter[ph] = true
		}
		var filtered []string
		for _, ph := range allPhases {
			if filter[ph] {
				filtered = append(filtered, ph)
			}
		}
		toRun = filtered
	}

	for _, phase := range toRun {
		start := time.Now()
		p.log.Info("starting phase", slog.String("phase", phase))

		var result PhaseResult
		switch phase {
		case "persons":
			result = p.runPersons(ctx)
		case "affiliations":
			result = p.runAffiliations(ctx)
		case "terms":
			result = p.runTerms(ctx)
		case "source_index":
			result = p.runSourceIndex(ctx)
		}
		result.Duration = time.Since(start)
		p.results[phase] = result

		if result.Err != nil {
			p.log.Warn("phase failed",
				slog.String("phase", phase),
				slog.String("error", result.Err.Error()),
				slog.Duration("duration", result.Duration),
			)
		} else {
			p.log.Info("phase completed",
				slog.String("phase", phase),
				slog.Int("loaded", result.Loaded),
				slog.Int("skipped", result.Skipped),
				slog.Duration("duration", result.Duration),
			)
		}
	}

	p.log.Info("seeding completed", slog.Int("phases_run", len(toRun)))
	return nil
}

// openDump opens one TSV dump, nil file when the dump is absent.
func (p *Pipeline) openDump(name string) (*os.File, error) {
	path := filepath.Join(p.cfg.DataDir, name)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func (p *Pipeline) runPersons(ctx context.Context) PhaseResult {
	f, err := p.openDump("persons.tsv")
	if err != nil {
		return PhaseResult{Err: err}
	}
	if f == nil {
		return PhaseResult{Skipped: 1, Err: fmt.Errorf("persons.tsv not found")}
	}
	defer f.Close()

	persons, err := ParsePersons(f)
	if err != nil {
		return PhaseResult{Err: fmt.Errorf("parse persons: %w", err)}
	}
	if p.cfg.DryRun {
		return PhaseResult{Skipped: len(persons)}
	}

	loaded, err := batchRun(persons, p.cfg.BatchSize, func(batch []speaker.Person) error {
		return p.speakers.UpsertPersons(ctx, batch)
	})
	if err != nil {
		return PhaseResult{Loaded: loaded, Err: fmt.Errorf("upsert persons: %w", err)}
	}
	return PhaseResult{Loaded: loaded}
}

func (p *Pipeline) runAffiliations(ctx context.Context) PhaseResult {
	f, err := p.openDump("party_affiliations.tsv")
	if err != nil {
		return PhaseResult{Err: err}
	}
	if f == nil {
		return PhaseResult{Skipped: 1, Err: fmt.Errorf("party_affiliations.tsv not found")}
	}
	defer f.Close()

	affs, err := ParseAffiliations(f)
	if err != nil {
		return PhaseResult{Err: fmt.Errorf("parse affiliations: %w", err)}
	}
	if p.cfg.DryRun {
		return PhaseResult{Skipped: len(affs)}
	}

	// Replace is delete+insert per person, so the whole dump goes in one
	// transaction to keep lookups consistent mid-load.
	err = p.txm.RunInTx(ctx, func(ctx context.Context) error {
		return p.speakers.ReplaceAffiliations(ctx, affs)
	})
	if err != nil {
		return PhaseResult{Err: fmt.Errorf("replace affiliations: %w", err)}
	}
	return PhaseResult{Loaded: len(affs)}
}

func (p *Pipeline) runTerms(ctx context.Context) PhaseResult {
	f, err := p.openDump("terms_of_office.tsv")
	if err != nil {
		return PhaseResult{Err: err}
	}
	if f == nil {
		return PhaseResult{Skipped: 1, Err: fmt.Errorf("terms_of_office.tsv not found")}
	}
	defer f.Close()

	terms, err := ParseTerms(f)
	if err != nil {
		return PhaseResult{Err: fmt.Errorf("parse terms: %w", err)}
	}
	if p.cfg.DryRun {
		return PhaseResult{Skipped: len(terms)}
	}

	err = p.txm.RunInTx(ctx, func(ctx context.Context) error {
		return p.speakers.ReplaceTerms(ctx, terms)
	})
	if err != nil {
		return PhaseResult{Err: fmt.Errorf("replace terms: %w", err)}
	}
	return PhaseResult{Loaded: len(terms)}
}

func (p *Pipeline) runSourceIndex(ctx context.Context) PhaseResult {
	f, err := p.openDump("source_index.tsv")
	if err != nil {
		return PhaseResult{Err: err}
	}
	if f == nil {
		return PhaseResult{Skipped: 1, Err: fmt.Errorf("source_index.tsv not found")}
	}
	defer f.Close()

	records, err := ParseSourceIndex(f)
	if err != nil {
		return PhaseResult{Err: fmt.Errorf("parse source index: %w", err)}
	}
	if p.cfg.DryRun {
		return PhaseResult{Skipped: len(records)}
	}

	loaded, err := batchRun(records, p.cfg.BatchSize, func(batch []domain.SourceIndexRecord) error {
		return p.index.Upsert(ctx, batch)
	})
	if err != nil {
		return PhaseResult{Loaded: loaded, Err: fmt.Errorf("upsert source index: %w", err)}
	}
	return PhaseResult{Loaded: loaded}
}

// batchRun splits items into batches and loads each via fn.
func batchRun[T any](items []T, batchSize int, fn func([]T) error) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}

	total := 0
	for i := 0; i < len(items); i += batchSize {
		end := min(i+batchSize, len(items))
		if err := fn(items[i:end]); err != nil {
			return total, err
		}
		total += end - i
	}
	return total, nil
}
