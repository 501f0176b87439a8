package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks the structural validity of a Config. All problems are
// reported at once rather than one per run.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if cfg.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
			errs = append(errs, fmt.Errorf("config: listen %q: %w", cfg.Listen, err))
		}
	}

	if cfg.Store.Path == "" {
		errs = append(errs, errors.New("config: store.path is required"))
	}
	if cfg.Store.BusyTimeout < 0 {
		errs = append(errs, errors.New("config: store.busy_timeout must not be negative"))
	}

	errs = append(errs, validateGenerator(cfg.Generator)...)
	errs = append(errs, validateEngine(cfg.Engine)...)
	errs = append(errs, validateSweep(cfg.Sweep)...)

	return errors.Join(errs...)
}

func validateGenerator(gen GeneratorConfig) []error {
	if gen.BaseURL == "" {
		// No generator configured; the remaining fields are ignored.
		return nil
	}

	var errs []error

	u, err := url.Parse(gen.BaseURL)
	if err != nil {
		errs = append(errs, fmt.Errorf("config: generator.base_url: %w", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("config: generator.base_url: unsupported scheme %q", u.Scheme))
	}

	if gen.Model == "" {
		errs = append(errs, errors.New("config: generator.model is required when base_url is set"))
	}
	if gen.MaxTokens < 0 {
		errs = append(errs, errors.New("config: generator.max_tokens must not be negative"))
	}
	if gen.Timeout < 0 {
		errs = append(errs, errors.New("config: generator.timeout must not be negative"))
	}

	return errs
}

func validateEngine(eng EngineConfig) []error {
	var errs []error

	check := func(name string, v int) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("config: engine.%s must not be negative", name))
		}
	}
	check("budget", eng.Budget)
	check("recent_limit", eng.RecentLimit)
	check("pin_limit", eng.PinLimit)
	check("summary_limit", eng.SummaryLimit)
	check("summary_threshold", eng.SummaryThreshold)
	check("queue_size", eng.QueueSize)

	if eng.CacheTTL < 0 {
		errs = append(errs, errors.New("config: engine.cache_ttl must not be negative"))
	}

	return errs
}

func validateSweep(sweep SweepConfig) []error {
	if !sweep.Enabled {
		return nil
	}

	var errs []error
	for name, expr := range map[string]string{
		"summary_schedule": sweep.SummarySchedule,
		"score_schedule":   sweep.ScoreSchedule,
	} {
		if expr == "" {
			continue
		}
		if len(strings.Fields(expr)) != 5 {
			errs = append(errs, fmt.Errorf("config: sweep.%s %q: want 5 cron fields", name, expr))
		}
	}
	return errs
}
