package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfigFile writes YAML content to a temp file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "central.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if !cfg.LLM.Stream {
		t.Error("LLM.Stream = false, want true")
	}
	if cfg.LLM.Timeout != 120*time.Second {
		t.Errorf("LLM.Timeout = %v, want 120s", cfg.LLM.Timeout)
	}
	if cfg.Engine.HelperLabel != "HELPER" {
		t.Errorf("Engine.HelperLabel = %q, want HELPER", cfg.Engine.HelperLabel)
	}
	if cfg.Session.Type != "memory" {
		t.Errorf("Session.Type = %q, want memory", cfg.Session.Type)
	}
	if cfg.Auth.Type != "none" {
		t.Errorf("Auth.Type = %q, want none", cfg.Auth.Type)
	}
	if !cfg.Observability.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
llm:
  url: http://localhost:11434/api/chat
  model: test-model
  temperature: 0.4
  num_ctx: 4096
engine:
  helper_label: INSTRUMENT
  keep_reasoning: true
session:
  type: jsonl
  dir: /var/log/central
server:
  port: 9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.URL != "http://localhost:11434/api/chat" {
		t.Errorf("LLM.URL = %q", cfg.LLM.URL)
	}
	if cfg.LLM.Model != "test-model" {
		t.Errorf("LLM.Model = %q, want test-model", cfg.LLM.Model)
	}
	if cfg.LLM.Temperature == nil || *cfg.LLM.Temperature != 0.4 {
		t.Errorf("LLM.Temperature = %v, want 0.4", cfg.LLM.Temperature)
	}
	if cfg.LLM.NumCtx == nil || *cfg.LLM.NumCtx != 4096 {
		t.Errorf("LLM.NumCtx = %v, want 4096", cfg.LLM.NumCtx)
	}
	if cfg.LLM.MaxTokens != nil {
		t.Errorf("LLM.MaxTokens = %v, want nil (unset stays omitted)", cfg.LLM.MaxTokens)
	}
	if cfg.Engine.HelperLabel != "INSTRUMENT" {
		t.Errorf("HelperLabel = %q, want INSTRUMENT", cfg.Engine.HelperLabel)
	}
	if !cfg.Engine.KeepReasoning {
		t.Error("KeepReasoning = false, want true")
	}
	if cfg.Session.Type != "jsonl" || cfg.Session.Dir != "/var/log/central" {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	// Unset fields keep their defaults.
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want default 30s", cfg.Server.ReadTimeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
llm:
  url: http://file-wins-unless-env:11434/api/generate
  model: file-model
`)

	t.Setenv("CENTRAL_LLM_URL", "http://env-wins:8000/v1/chat/completions")
	t.Setenv("CENTRAL_LLM_MODEL", "env-model")
	t.Setenv("CENTRAL_PORT", "7070")
	t.Setenv("CENTRAL_HELPER_LABEL", "TOOL")
	t.Setenv("CENTRAL_STREAM", "false")
	t.Setenv("CENTRAL_SESSION", "none")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLM.URL != "http://env-wins:8000/v1/chat/completions" {
		t.Errorf("LLM.URL = %q, want env value", cfg.LLM.URL)
	}
	if cfg.LLM.Model != "env-model" {
		t.Errorf("LLM.Model = %q, want env-model", cfg.LLM.Model)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Engine.HelperLabel != "TOOL" {
		t.Errorf("HelperLabel = %q, want TOOL", cfg.Engine.HelperLabel)
	}
	if cfg.LLM.Stream {
		t.Error("Stream = true, want false from env")
	}
	if cfg.Session.Type != "none" {
		t.Errorf("Session.Type = %q, want none", cfg.Session.Type)
	}
}

func TestOpenAIKeyFallback(t *testing.T) {
	path := writeConfigFile(t, `
llm:
  url: https://api.example.com/v1/chat/completions
`)

	t.Setenv("CENTRAL_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-fallback" {
		t.Errorf("APIKey = %q, want OPENAI_API_KEY fallback", cfg.LLM.APIKey)
	}
}

func TestCentralKeyBeatsOpenAIKey(t *testing.T) {
	path := writeConfigFile(t, `
llm:
  url: https://api.example.com/v1/chat/completions
`)

	t.Setenv("CENTRAL_LLM_API_KEY", "central-key")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "central-key" {
		t.Errorf("APIKey = %q, want CENTRAL_LLM_API_KEY to win", cfg.LLM.APIKey)
	}
}

func TestFileReferences(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "api-key")
	if err := os.WriteFile(keyFile, []byte("  secret-key\n"), 0o600); err != nil {
		t.Fatalf("writing key file: %v", err)
	}
	dsnFile := filepath.Join(dir, "dsn")
	if err := os.WriteFile(dsnFile, []byte("postgres://u:p@db/central\n"), 0o600); err != nil {
		t.Fatalf("writing dsn file: %v", err)
	}

	path := writeConfigFile(t, `
llm:
  url: http://localhost:11434/api/chat
  api_key_file: `+keyFile+`
session:
  type: postgres
  postgres:
    dsn_file: `+dsnFile+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.APIKey != "secret-key" {
		t.Errorf("APIKey = %q, want trimmed file content", cfg.LLM.APIKey)
	}
	if cfg.Session.Postgres.DSN != "postgres://u:p@db/central" {
		t.Errorf("DSN = %q, want file content", cfg.Session.Postgres.DSN)
	}
}

func TestFileReferenceMissingFile(t *testing.T) {
	path := writeConfigFile(t, `
llm:
  url: http://localhost:11434/api/chat
  api_key_file: /nonexistent/key
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing secret file")
	}
	if !strings.Contains(err.Error(), "api_key_file") {
		t.Errorf("error = %q, want field path mentioned", err)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing llm url",
			mutate:  func(c *Config) { c.LLM.URL = "" },
			wantErr: "llm.url is required",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "empty helper label",
			mutate:  func(c *Config) { c.Engine.HelperLabel = "" },
			wantErr: "helper_label",
		},
		{
			name:    "unknown session type",
			mutate:  func(c *Config) { c.Session.Type = "redis" },
			wantErr: "session.type",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Session.Type = "postgres" },
			wantErr: "session.postgres.dsn",
		},
		{
			name:    "unknown auth type",
			mutate:  func(c *Config) { c.Auth.Type = "basic" },
			wantErr: "auth.type",
		},
		{
			name:    "jwt without secret",
			mutate:  func(c *Config) { c.Auth.Type = "jwt" },
			wantErr: "auth.jwt.secret",
		},
		{
			name: "unknown instrument kind",
			mutate: func(c *Config) {
				c.Instruments = []InstrumentConfig{{Name: "x", Kind: "pigeon"}}
			},
			wantErr: "instruments[0].kind",
		},
		{
			name: "duplicate instrument name",
			mutate: func(c *Config) {
				c.Instruments = []InstrumentConfig{
					{Name: "x", Kind: "endpoint", URL: "http://a"},
					{Name: "x", Kind: "endpoint", URL: "http://b"},
				}
			},
			wantErr: "duplicate name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.LLM.URL = "http://localhost:11434/api/chat"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidConfigPasses(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.URL = "http://localhost:11434/api/generate"
	cfg.Instruments = []InstrumentConfig{
		{Name: "lookup", Kind: "endpoint", URL: "http://localhost:8000/api/generate"},
		{Name: "kb", Kind: "mcp", URL: "http://localhost:9000/mcp", Tool: "search"},
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed on valid config: %v", err)
	}
}

func TestDiscoverExplicitPathWins(t *testing.T) {
	explicit := writeConfigFile(t, "llm:\n  url: http://explicit/api/chat\n")
	t.Setenv("CENTRAL_CONFIG", "/nonexistent/from-env.yaml")

	cfg, err := Load(explicit)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.URL != "http://explicit/api/chat" {
		t.Errorf("LLM.URL = %q, want explicit file to win", cfg.LLM.URL)
	}
}
