// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for mnemo.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Listen is the ops server bind address.
	Listen string `yaml:"listen"`

	Store     StoreConfig     `yaml:"store"`
	Generator GeneratorConfig `yaml:"generator"`
	Engine    EngineConfig    `yaml:"engine"`
	Sweep     SweepConfig     `yaml:"sweep"`
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" keeps everything
	// in-process, useful for tests and throwaway runs.
	Path string `yaml:"path"`

	// BusyTimeout is passed to SQLite's busy_timeout PRAGMA.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// GeneratorConfig points at an OpenAI-compatible completion endpoint.
// Leaving BaseURL empty disables AI summarization; the deterministic
// fallback then produces every summary.
type GeneratorConfig struct {
	BaseURL string `yaml:"base_url"`

	// APIKey supports ${ENV} expansion so secrets stay out of the file.
	APIKey string `yaml:"api_key"`

	Model string `yaml:"model"`

	// Local marks the endpoint as a local model whose output must pass
	// the summary validation gate before acceptance.
	Local bool `yaml:"local"`

	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// EngineConfig carries the memory engine's tuning knobs. Zero values select
// the engine's own defaults.
type EngineConfig struct {
	Budget           int           `yaml:"budget"`
	RecentLimit      int           `yaml:"recent_limit"`
	PinLimit         int           `yaml:"pin_limit"`
	SummaryLimit     int           `yaml:"summary_limit"`
	SummaryThreshold int           `yaml:"summary_threshold"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	QueueSize        int           `yaml:"queue_size"`
}

// SweepConfig controls the background jobs.
type SweepConfig struct {
	Enabled bool `yaml:"enabled"`

	// SummarySchedule is the cron expression for the summary sweep.
	SummarySchedule string `yaml:"summary_schedule"`

	// ScoreSchedule is the cron expression for the importance backfill.
	ScoreSchedule string `yaml:"score_schedule"`
}

// Configuration defaults.
const (
	DefaultListen          = "127.0.0.1:8750"
	DefaultStorePath       = "mnemo.db"
	DefaultBusyTimeout     = 5 * time.Second
	DefaultGenTimeout      = 30 * time.Second
	DefaultGenMaxTokens    = 512
	DefaultSummarySchedule = "* * * * *"
	DefaultScoreSchedule   = "*/5 * * * *"
)

// WithDefaults returns a copy with every unset field filled in.
func (c Config) WithDefaults() Config {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	if c.Store.BusyTimeout <= 0 {
		c.Store.BusyTimeout = DefaultBusyTimeout
	}
	if c.Generator.Timeout <= 0 {
		c.Generator.Timeout = DefaultGenTimeout
	}
	if c.Generator.MaxTokens <= 0 {
		c.Generator.MaxTokens = DefaultGenMaxTokens
	}
	if c.Sweep.SummarySchedule == "" {
		c.Sweep.SummarySchedule = DefaultSummarySchedule
	}
	if c.Sweep.ScoreSchedule == "" {
		c.Sweep.ScoreSchedule = DefaultScoreSchedule
	}
	return c
}
