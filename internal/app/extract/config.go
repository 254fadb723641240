package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/parlaclarin/pipeline/internal/domain"
)

// Config holds extraction run settings.
type Config struct {
	InputDir    string   `yaml:"input_dir"    env:"EXTRACT_INPUT_DIR"`
	Pattern     string   `yaml:"pattern"      env:"EXTRACT_PATTERN"      env-default:"*.xml"`
	OutputDir   string   `yaml:"output_dir"   env:"EXTRACT_OUTPUT_DIR"   env-default:"./export"`
	Format      string   `yaml:"format"       env:"EXTRACT_FORMAT"       env-default:"text"`
	Granularity string   `yaml:"granularity"  env:"EXTRACT_GRANULARITY"  env-default:"speech"`
	Strategy    string   `yaml:"strategy"     env:"EXTRACT_STRATEGY"     env-default:"who_sequence"`
	MinChars    int      `yaml:"min_chars"    env:"EXTRACT_MIN_CHARS"    env-default:"0"`
	Tagged      bool     `yaml:"tagged"       env:"EXTRACT_TAGGED"`
	TemporalKey string   `yaml:"temporal_key" env:"EXTRACT_TEMPORAL_KEY" env-default:"year"`
	GroupBy     []string `yaml:"group_by"     env:"EXTRACT_GROUP_BY"`
	Workers     int      `yaml:"workers"      env:"EXTRACT_WORKERS"`
	DryRun      bool     `yaml:"dry_run"      env:"EXTRACT_DRY_RUN"`
	// NoMetadata skips speaker enrichment entirely, for runs without a
	// reachable metadata store. Grouping by speaker attributes then falls
	// back to placeholder values.
	NoMetadata bool `yaml:"no_metadata" env:"EXTRACT_NO_METADATA"`
}

// knownFormats lists the dispatcher formats cmd/extract can build.
var knownFormats = map[string]bool{"text": true, "zip": true, "csv": true, "vrt": true}

// LoadConfig reads extraction configuration from a YAML file and environment
// variables. Priority: ENV > YAML > defaults (via env-default tags).
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("extract config: file %s not found", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("extract config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("extract config: read env: %w", err)
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("extract config: input_dir is required: %w", domain.ErrValidation)
	}
	if !knownFormats[c.Format] {
		return fmt.Errorf("extract config: unknown format %q: %w", c.Format, domain.ErrValidation)
	}
	if !c.GranularityValue().IsValid() {
		return fmt.Errorf("extract config: unknown granularity %q: %w", c.Granularity, domain.ErrValidation)
	}
	if c.GranularityValue() == domain.GranularitySpeech && !c.StrategyValue().IsValid() {
		return fmt.Errorf("extract config: unknown strategy %q: %w", c.Strategy, domain.ErrValidation)
	}
	return nil
}

// GranularityValue maps the lower-case config spelling onto the domain enum.
func (c *Config) GranularityValue() domain.Granularity {
	return domain.Granularity(strings.ToUpper(c.Granularity))
}

// StrategyValue maps the lower-case config spelling onto the domain enum.
func (c *Config) StrategyValue() domain.MergeStrategy {
	return domain.MergeStrategy(strings.ToUpper(c.Strategy))
}
