package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := Config{
		Version: "1",
		Store:   StoreConfig{Path: "mnemo.db"},
	}
	cfg = cfg.WithDefaults()
	return &cfg
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingVersion(t *testing.T) {
	cfg := validConfig()
	cfg.Version = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing version")
	}
	if !strings.Contains(err.Error(), "version") {
		t.Errorf("error should mention version: %v", err)
	}
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	cfg := validConfig()
	cfg.Version = "99"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if !strings.Contains(err.Error(), "unsupported version") {
		t.Errorf("error should mention unsupported version: %v", err)
	}
}

func TestValidate_BadListen(t *testing.T) {
	cfg := validConfig()
	cfg.Listen = "not-an-address"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for malformed listen address")
	}
}

func TestValidate_MissingStorePath(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Path = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for missing store path")
	}
	if !strings.Contains(err.Error(), "store.path") {
		t.Errorf("error should mention store.path: %v", err)
	}
}

func TestValidate_GeneratorRequiresModel(t *testing.T) {
	cfg := validConfig()
	cfg.Generator.BaseURL = "https://api.example.com/v1"
	cfg.Generator.Model = ""
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for generator without model")
	}
	if !strings.Contains(err.Error(), "generator.model") {
		t.Errorf("error should mention generator.model: %v", err)
	}
}

func TestValidate_GeneratorBadScheme(t *testing.T) {
	cfg := validConfig()
	cfg.Generator.BaseURL = "ftp://api.example.com"
	cfg.Generator.Model = "test-model"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
}

func TestValidate_GeneratorOptional(t *testing.T) {
	// An empty base_url disables generation; other generator fields are
	// then ignored even when nonsensical.
	cfg := validConfig()
	cfg.Generator.Model = ""
	cfg.Generator.MaxTokens = -5
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NegativeEngineKnobs(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.Budget = -1
	cfg.Engine.CacheTTL = -time.Second
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for negative engine knobs")
	}
	for _, want := range []string{"engine.budget", "engine.cache_ttl"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestValidate_SweepSchedule(t *testing.T) {
	cfg := validConfig()
	cfg.Sweep.Enabled = true
	cfg.Sweep.SummarySchedule = "every minute"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for malformed cron expression")
	}
	if !strings.Contains(err.Error(), "summary_schedule") {
		t.Errorf("error should mention summary_schedule: %v", err)
	}
}

func TestValidate_SweepDisabledSkipsSchedules(t *testing.T) {
	cfg := validConfig()
	cfg.Sweep.Enabled = false
	cfg.Sweep.SummarySchedule = "nonsense"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
