package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("default provider = %q, want ollama", cfg.Embedding.Provider)
	}
	if cfg.Context.DefaultMaxTokens != 4000 {
		t.Errorf("default max tokens = %d, want 4000", cfg.Context.DefaultMaxTokens)
	}
	if cfg.Context.SimilarityThreshold != 0.90 {
		t.Errorf("default similarity threshold = %f, want 0.90", cfg.Context.SimilarityThreshold)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  log_level: debug
embedding:
  provider: gemini
  gemini_api_key: test-key
context:
  default_limit: 25
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Embedding.Provider != "gemini" {
		t.Errorf("provider = %q, want gemini", cfg.Embedding.Provider)
	}
	if cfg.Context.DefaultLimit != 25 {
		t.Errorf("limit = %d, want 25", cfg.Context.DefaultLimit)
	}
	// Untouched fields keep their defaults.
	if cfg.Context.DefaultMaxTokens != 4000 {
		t.Errorf("max tokens = %d, want default 4000", cfg.Context.DefaultMaxTokens)
	}
	if cfg.Embedding.OllamaModel != "embeddinggemma" {
		t.Errorf("ollama model = %q, want default", cfg.Embedding.OllamaModel)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a mapping"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("MNEMO_DB", "/tmp/env.db")
	t.Setenv("MNEMO_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Embedding.GeminiAPIKey != "env-key" {
		t.Errorf("api key = %q, want env override", cfg.Embedding.GeminiAPIKey)
	}
	if cfg.Storage.DatabasePath != "/tmp/env.db" {
		t.Errorf("db path = %q, want env override", cfg.Storage.DatabasePath)
	}
	if cfg.Server.LogLevel != "warn" {
		t.Errorf("log level = %q, want env override", cfg.Server.LogLevel)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, key := range []string{"GEMINI_API_KEY", "OLLAMA_HOST", "MNEMO_DB", "MNEMO_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.LogLevel = "debug"
	cfg.Context.DefaultLimit = 15

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestDedupConfigMapping(t *testing.T) {
	cc := ContextConfig{SimilarityThreshold: 0.85, MaxFuzzyContentLength: 500}
	dc := cc.DedupConfig()
	if dc.SimilarityThreshold != 0.85 || dc.MaxFuzzyContentLength != 500 {
		t.Errorf("DedupConfig() = %+v", dc)
	}

	// Zero values fall back to the engine defaults.
	dc = ContextConfig{}.DedupConfig()
	if dc.SimilarityThreshold != 0.90 || dc.MaxFuzzyContentLength != 1000 {
		t.Errorf("default DedupConfig() = %+v", dc)
	}
}
