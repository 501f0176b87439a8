package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
version: "1"
store:
  path: /tmp/test.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("Listen = %q, want default %q", cfg.Listen, DefaultListen)
	}
	if cfg.Store.BusyTimeout != DefaultBusyTimeout {
		t.Errorf("BusyTimeout = %v, want default %v", cfg.Store.BusyTimeout, DefaultBusyTimeout)
	}
	if cfg.Sweep.SummarySchedule != DefaultSummarySchedule {
		t.Errorf("SummarySchedule = %q, want default %q", cfg.Sweep.SummarySchedule, DefaultSummarySchedule)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("MNEMO_TEST_KEY", "sk-secret")

	path := writeConfig(t, `
version: "1"
store:
  path: /tmp/test.db
generator:
  base_url: https://api.example.com/v1
  api_key: ${MNEMO_TEST_KEY}
  model: test-model
  timeout: 10s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generator.APIKey != "sk-secret" {
		t.Errorf("APIKey = %q, want expanded secret", cfg.Generator.APIKey)
	}
	if cfg.Generator.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Generator.Timeout)
	}
}

func TestLoad_EnvDefault(t *testing.T) {
	path := writeConfig(t, `
version: "1"
listen: "${MNEMO_TEST_UNSET_LISTEN:-0.0.0.0:9999}"
store:
  path: /tmp/test.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != "0.0.0.0:9999" {
		t.Errorf("Listen = %q, want the inline default", cfg.Listen)
	}
}

func TestLoad_UnresolvedEnv(t *testing.T) {
	path := writeConfig(t, `
version: "1"
store:
  path: /tmp/test.db
generator:
  api_key: ${MNEMO_TEST_DEFINITELY_UNSET}
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unresolved variable")
	}
	if !strings.Contains(err.Error(), "MNEMO_TEST_DEFINITELY_UNSET") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
