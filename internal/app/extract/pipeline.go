// Package extract drives a full corpus extraction run: discover protocol
// files, explode them into segments, enrich speakers from the metadata
// store, merge into temporal/categorical buckets, and hand the buckets to a
// dispatcher.
package extract

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parlaclarin/pipeline/internal/dispatch"
	"github.com/parlaclarin/pipeline/internal/domain"
	"github.com/parlaclarin/pipeline/internal/merge"
	"github.com/parlaclarin/pipeline/internal/segment"
	"github.com/parlaclarin/pipeline/pkg/ctxutil"
)

// Enricher resolves speaker metadata onto segments. The speakers service
// implements it; a nil enricher skips the step.
type Enricher interface {
	Enrich(ctx context.Context, segments []domain.Segment) ([]domain.Segment, error)
}

// Stats summarizes one extraction run.
type Stats struct {
	FilesTotal  int
	FilesFailed int
	Segments    int
	Documents   int
	Duration    time.Duration
}

// Pipeline wires the extraction stages together. Construct the stages from
// config in the command, then hand them in here.
type Pipeline struct {
	log        *slog.Logger
	cfg        Config
	parse      segment.Parser
	exploder   *segment.Exploder
	enricher   Enricher
	merger     *merge.Merger
	index      merge.SourceIndex
	dispatcher dispatch.Dispatcher
}

func NewPipeline(
	log *slog.Logger,
	cfg Config,
	parse segment.Parser,
	exploder *segment.Exploder,
	enricher Enricher,
	merger *merge.Merger,
	index merge.SourceIndex,
	dispatcher dispatch.Dispatcher,
) *Pipeline {
	return &Pipeline{
		log:        log,
		cfg:        cfg,
		parse:      parse,
		exploder:   exploder,
		enricher:   enricher,
		merger:     merger,
		index:      index,
		dispatcher: dispatcher,
	}
}

// Run executes the extraction to completion. A file that fails to parse is
// logged and counted, not fatal; enrichment, merge, and dispatch errors
// abort the run.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats

	runID := uuid.New()
	ctx = ctxutil.WithRunID(ctx, runID)
	p.log = p.log.With(slog.String("run_id", runID.String()))

	// Cancelling on exit releases the exploder pool when feed stops reading
	// results early, e.g. on an enrichment error mid-corpus.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	paths, err := p.discover()
	if err != nil {
		return stats, err
	}
	stats.FilesTotal = len(paths)
	p.sortByYear(paths)
	p.log.Info("extraction started",
		slog.Int("files", len(paths)),
		slog.String("granularity", p.cfg.Granularity),
		slog.String("format", p.cfg.Format),
		slog.Bool("dry_run", p.cfg.DryRun),
	)

	sink := func(ctx context.Context, temporal string, buckets []*domain.DispatchBucket) error {
		stats.Documents += len(buckets)
		if p.cfg.DryRun {
			return nil
		}
		return p.dispatcher.Dispatch(ctx, temporal, buckets)
	}

	segs := make(chan domain.Segment)
	done := make(chan struct{})
	var mergeErr error
	go func() {
		defer close(done)
		mergeErr = p.merger.Run(ctx, segs, sink)
	}()

	// feed returns the first hard error on its own side; a merger that has
	// already exited unblocks the feeder through done.
	feedErr := p.feed(ctx, paths, segs, done, &stats)
	close(segs)
	<-done

	stats.Duration = time.Since(start)
	p.log.Info("extraction finished",
		slog.Int("files", stats.FilesTotal),
		slog.Int("files_failed", stats.FilesFailed),
		slog.Int("segments", stats.Segments),
		slog.Int("documents", stats.Documents),
		slog.Duration("duration", stats.Duration),
	)

	if feedErr != nil {
		return stats, feedErr
	}
	return stats, mergeErr
}

func (p *Pipeline) feed(ctx context.Context, paths []string, segs chan<- domain.Segment, done <-chan struct{}, stats *Stats) error {
	results := p.exploder.ExplodeMany(ctx, p.parse, paths, segment.PoolOptions{
		Workers:       p.cfg.Workers,
		PreserveOrder: true,
	})

	for res := range results {
		if res.Err != nil {
			stats.FilesFailed++
			p.log.Warn("file skipped",
				slog.String("path", res.Path),
				slog.String("error", res.Err.Error()),
			)
			continue
		}

		segments := res.Segments
		if p.enricher != nil {
			var err error
			segments, err = p.enricher.Enrich(ctxutil.WithProtocol(ctx, res.Protocol), segments)
			if err != nil {
				return fmt.Errorf("enrich %s: %w", res.Path, err)
			}
		}

		for _, seg := range segments {
			select {
			case segs <- seg:
				stats.Segments++
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// discover walks the input tree and collects files whose base name matches
// the configured pattern.
func (p *Pipeline) discover() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(p.cfg.InputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(p.cfg.Pattern, d.Name())
		if err != nil {
			return fmt.Errorf("pattern %q: %w", p.cfg.Pattern, err)
		}
		if ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover corpus files: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// sortByYear orders files by source-index year so the merger sees temporal
// buckets in ascending order. Files the index does not know sort by name
// at the end and get skipped downstream with a log line.
func (p *Pipeline) sortByYear(paths []string) {
	year := func(path string) int {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if rec, ok := p.index.Lookup(name); ok {
			return rec.Year
		}
		return int(^uint(0) >> 1)
	}
	sort.SliceStable(paths, func(i, j int) bool {
		yi, yj := year(paths[i]), year(paths[j])
		if yi != yj {
			return yi < yj
		}
		return paths[i] < paths[j]
	})
}
