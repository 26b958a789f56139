package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "api:\n  port: 0\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("default port: %d", cfg.API.Port)
	}
	if cfg.Memory.Type != "memory" || cfg.Memory.MaxTurns != 100 {
		t.Errorf("memory defaults: %+v", cfg.Memory)
	}
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("retrieval top_k default: %d", cfg.Retrieval.TopK)
	}
	w := cfg.Scoring.Weights
	if w.Similarity != 0.3 || w.Entity != 0.3 || w.Context != 0.2 || w.Practical != 0.1 || w.Specificity != 0.1 {
		t.Errorf("scoring weight defaults: %+v", w)
	}
}

func TestLoadConfig_EnvKeyReplace(t *testing.T) {
	t.Setenv("TEST_NAVIGATOR_KEY", "sk-test")
	path := writeConfig(t, "model:\n  api_key: ${TEST_NAVIGATOR_KEY}\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Model.APIKey != "sk-test" {
		t.Errorf("api_key env replace: %q", cfg.Model.APIKey)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	path := writeConfig(t, "memory:\n  type: postgres\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("postgres without dsn should fail validation")
	}
}

func TestValidate_BadDuration(t *testing.T) {
	path := writeConfig(t, "memory:\n  ttl: not-a-duration\n")
	if _, err := LoadConfig(path); err == nil {
		t.Error("invalid ttl should fail validation")
	}
}

func TestDuration(t *testing.T) {
	if d := Duration("", 3*time.Second); d != 3*time.Second {
		t.Errorf("empty: %v", d)
	}
	if d := Duration("250ms", time.Second); d != 250*time.Millisecond {
		t.Errorf("parse: %v", d)
	}
	if d := Duration("junk", time.Second); d != time.Second {
		t.Errorf("fallback: %v", d)
	}
}
