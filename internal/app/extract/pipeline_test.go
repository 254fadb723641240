package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlaclarin/pipeline/internal/domain"
	"github.com/parlaclarin/pipeline/internal/merge"
	"github.com/parlaclarin/pipeline/internal/segment"
)

type mockDispatcher struct {
	calls  []string
	closed bool
	err    error
}

func (m *mockDispatcher) Dispatch(_ context.Context, temporal string, buckets []*domain.DispatchBucket) error {
	if m.err != nil {
		return m.err
	}
	for range buckets {
		m.calls = append(m.calls, temporal)
	}
	return nil
}

func (m *mockDispatcher) Close() error {
	m.closed = true
	return nil
}

type mockEnricher struct {
	calls int
	err   error
}

func (m *mockEnricher) Enrich(_ context.Context, segs []domain.Segment) ([]domain.Segment, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return segs, nil
}

// fakeParse fabricates a one-utterance protocol from a file name shaped
// like prot-<year>-<suffix>.xml, so the pipeline can run without XML
// fixtures on disk contents.
func fakeParse(_ context.Context, path string) (*domain.Protocol, error) {
	name := filepath.Base(path)
	name = name[:len(name)-len(filepath.Ext(name))]
	if name == "broken" {
		return nil, errors.New("parse failed")
	}
	year, err := strconv.Atoi(strings.Split(name, "-")[1])
	if err != nil {
		return nil, fmt.Errorf("fixture name %s: %w", name, err)
	}
	return &domain.Protocol{
		Name: name,
		Date: time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		Utterances: []domain.Utterance{
			{ID: name + "-u1", SpeakerID: "p-1", Paragraphs: []string{"herr talman jag yrkar bifall"}},
		},
	}, nil
}

func corpusDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	return dir
}

func testPipeline(t *testing.T, cfg Config, disp *mockDispatcher, enr Enricher, index merge.SourceIndexMap) *Pipeline {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	exploder, err := segment.NewExploder(log, segment.Config{
		Granularity: cfg.GranularityValue(),
		Strategy:    cfg.StrategyValue(),
		MinChars:    cfg.MinChars,
	})
	require.NoError(t, err)

	cat, err := merge.NewTemporalCategorizer(cfg.TemporalKey)
	require.NoError(t, err)
	hasher, err := merge.NewGroupingHasher(cfg.GroupBy, "")
	require.NoError(t, err)
	merger, err := merge.NewMerger(log, cat, hasher, index, cfg.GranularityValue())
	require.NoError(t, err)

	return NewPipeline(log, cfg, fakeParse, exploder, enr, merger, index, disp)
}

func testIndex(years map[string]int) merge.SourceIndexMap {
	index := make(merge.SourceIndexMap, len(years))
	for name, year := range years {
		index[name] = domain.SourceIndexRecord{
			ProtocolName: name,
			Year:         year,
			ChamberID:    "ek",
			Filename:     name + ".xml",
		}
	}
	return index
}

func baseConfig(dir string) Config {
	return Config{
		InputDir:    dir,
		Pattern:     "*.xml",
		Format:      "text",
		Granularity: "speech",
		Strategy:    "who_sequence",
		MinChars:    0,
		TemporalKey: "year",
	}
}

func TestPipelineRunEndToEnd(t *testing.T) {
	dir := corpusDir(t, "prot-1974-a.xml", "prot-1975-b.xml", "prot-1974-c.xml", "notes.txt")
	index := testIndex(map[string]int{"prot-1974-a": 1974, "prot-1975-b": 1975, "prot-1974-c": 1974})
	disp := &mockDispatcher{}
	enr := &mockEnricher{}

	p := testPipeline(t, baseConfig(dir), disp, enr, index)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.FilesTotal)
	assert.Equal(t, 0, stats.FilesFailed)
	assert.Equal(t, 3, stats.Segments)
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 3, enr.calls)

	// Both 1974 protocols flush before 1975 regardless of name order.
	assert.Equal(t, []string{"1974", "1974", "1975"}, disp.calls)
}

func TestPipelineCountsFailedFiles(t *testing.T) {
	dir := corpusDir(t, "prot-1974-a.xml", "broken.xml")
	index := testIndex(map[string]int{"prot-1974-a": 1974, "broken": 1974})
	disp := &mockDispatcher{}

	p := testPipeline(t, baseConfig(dir), disp, nil, index)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesTotal)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Equal(t, 1, stats.Segments)
	assert.Equal(t, []string{"1974"}, disp.calls)
}

func TestPipelineDryRunSkipsDispatch(t *testing.T) {
	dir := corpusDir(t, "prot-1974-a.xml")
	index := testIndex(map[string]int{"prot-1974-a": 1974})
	disp := &mockDispatcher{}

	cfg := baseConfig(dir)
	cfg.DryRun = true

	p := testPipeline(t, cfg, disp, nil, index)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Documents)
	assert.Empty(t, disp.calls)
}

func TestPipelineEnrichErrorAborts(t *testing.T) {
	dir := corpusDir(t, "prot-1974-a.xml")
	index := testIndex(map[string]int{"prot-1974-a": 1974})
	enr := &mockEnricher{err: errors.New("metadata store down")}

	p := testPipeline(t, baseConfig(dir), &mockDispatcher{}, enr, index)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata store down")
}

func TestPipelineEnrichErrorReleasesWorkers(t *testing.T) {
	names := make([]string, 0, 12)
	years := make(map[string]int, 12)
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("prot-%d-a", 1950+i)
		names = append(names, name+".xml")
		years[name] = 1950 + i
	}
	dir := corpusDir(t, names...)
	enr := &mockEnricher{err: errors.New("metadata store down")}

	cfg := baseConfig(dir)
	cfg.Workers = 4

	before := runtime.NumGoroutine()
	p := testPipeline(t, cfg, &mockDispatcher{}, enr, testIndex(years))
	_, err := p.Run(context.Background())
	require.Error(t, err)

	// The first enriched file aborts the run with most of the corpus still
	// queued; the exploder pool has to wind down anyway.
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPipelineDispatchErrorPropagates(t *testing.T) {
	dir := corpusDir(t, "prot-1974-a.xml")
	index := testIndex(map[string]int{"prot-1974-a": 1974})
	disp := &mockDispatcher{err: errors.New("disk full")}

	p := testPipeline(t, baseConfig(dir), disp, nil, index)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing input dir", func(c *Config) { c.InputDir = "" }, "input_dir"},
		{"unknown format", func(c *Config) { c.Format = "feather" }, "format"},
		{"unknown granularity", func(c *Config) { c.Granularity = "sentence" }, "granularity"},
		{"unknown strategy", func(c *Config) { c.Strategy = "magic" }, "strategy"},
		{"strategy ignored off speech", func(c *Config) { c.Granularity = "utterance"; c.Strategy = "magic" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig("/corpus")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extract.yaml")
	yaml := fmt.Sprintf("input_dir: %s\nformat: zip\ngranularity: utterance\ngroup_by:\n  - party_id\n  - who\n", dir)
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "zip", cfg.Format)
	assert.Equal(t, domain.GranularityUtterance, cfg.GranularityValue())
	assert.Equal(t, []string{"party_id", "who"}, cfg.GroupBy)
	assert.Equal(t, "year", cfg.TemporalKey)
	assert.Equal(t, "*.xml", cfg.Pattern)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/extract.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
