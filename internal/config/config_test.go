package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSubstitutesEnv(t *testing.T) {
	t.Setenv("REVERIE_TEST_DSN", "postgres://real")

	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
		"server": {"port": 8080, "log_level": "${REVERIE_TEST_LEVEL:info}"},
		"database": {"postgres": {"dsn": "${REVERIE_TEST_DSN}"}},
		"memory": {"retrieval_threshold": 0.7, "dedup_threshold": 0.95}
	}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Postgres.DSN != "postgres://real" {
		t.Errorf("dsn = %q, want env value", cfg.Database.Postgres.DSN)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("log_level = %q, want default", cfg.Server.LogLevel)
	}
	if cfg.Memory.DedupThreshold != 0.95 {
		t.Errorf("dedup_threshold = %v", cfg.Memory.DedupThreshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
