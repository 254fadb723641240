package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Corpus   CorpusConfig   `yaml:"corpus"`
}

// DatabaseConfig holds connection settings for the metadata store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// CorpusConfig holds corpus layout settings shared by all commands.
type CorpusConfig struct {
	// Root is the directory containing the ParlaClarin XML tree.
	Root string `yaml:"root" env:"CORPUS_ROOT"`
	// TaggedRoot is the directory containing tagged-frame checkpoints,
	// empty when running on untagged source XML.
	TaggedRoot string `yaml:"tagged_root" env:"CORPUS_TAGGED_ROOT"`
	// Pattern is the glob matching protocol files under Root.
	Pattern string `yaml:"pattern" env:"CORPUS_PATTERN" env-default:"**/*.xml"`
}
