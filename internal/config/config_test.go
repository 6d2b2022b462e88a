package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != DefaultHTTPAddr {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Postgres.Database != DefaultPGDatabase {
		t.Fatalf("database = %q", cfg.Postgres.Database)
	}
	if cfg.Pipeline.HistoryWindow != DefaultHistoryWindow {
		t.Fatalf("history window = %d", cfg.Pipeline.HistoryWindow)
	}
	if cfg.Pipeline.HistoryBudget != DefaultHistoryBudget {
		t.Fatalf("history budget = %d", cfg.Pipeline.HistoryBudget)
	}
	if cfg.LLM.DefaultProvider != "openai" {
		t.Fatalf("default provider = %q", cfg.LLM.DefaultProvider)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[log]
level = "debug"
format = "json"

[server]
addr = ":9090"

[auth]
jwt_secret = "test-secret"

[postgres]
host = "db.internal"
port = 5433
database = "botdesk_test"

[llm]
default_provider = "anthropic"
default_model = "claude-sonnet-4-20250514"

[pipeline]
history_window = 10
history_budget = 4000
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("log config = %+v", cfg.Log)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Fatalf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Postgres.Host != "db.internal" || cfg.Postgres.Port != 5433 {
		t.Fatalf("postgres config = %+v", cfg.Postgres)
	}
	if cfg.LLM.DefaultProvider != "anthropic" {
		t.Fatalf("default provider = %q", cfg.LLM.DefaultProvider)
	}
	if cfg.Pipeline.HistoryWindow != 10 || cfg.Pipeline.HistoryBudget != 4000 {
		t.Fatalf("pipeline config = %+v", cfg.Pipeline)
	}
	// Untouched sections keep their defaults.
	if cfg.Postgres.SSLMode != DefaultPGSSLMode {
		t.Fatalf("sslmode = %q", cfg.Postgres.SSLMode)
	}
	if cfg.Qdrant.Port != DefaultQdrantPort {
		t.Fatalf("qdrant port = %d", cfg.Qdrant.Port)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`[server`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}
