// Package config loads mnemo configuration from YAML with environment
// overrides for secrets and paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	appctx "mnemo/internal/context"
	"mnemo/internal/embedding"
)

// Config holds all mnemo configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Embedding embedding.Config `yaml:"embedding"`
	Storage   StorageConfig    `yaml:"storage"`
	Context   ContextConfig    `yaml:"context"`
}

// ServerConfig configures logging and the MCP server identity.
type ServerConfig struct {
	LogLevel  string `yaml:"log_level"` // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // console, json
}

// StorageConfig configures the vector store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ContextConfig configures context assembly defaults and dedup thresholds.
type ContextConfig struct {
	DefaultLimit          int     `yaml:"default_limit"`
	DefaultMaxTokens      int     `yaml:"default_max_tokens"`
	SimilarityThreshold   float64 `yaml:"similarity_threshold"`
	MaxFuzzyContentLength int     `yaml:"max_fuzzy_content_length"`
}

// DedupConfig maps the context settings onto the assembler's knobs.
func (c ContextConfig) DedupConfig() appctx.DedupConfig {
	cfg := appctx.DefaultDedupConfig()
	if c.SimilarityThreshold > 0 {
		cfg.SimilarityThreshold = c.SimilarityThreshold
	}
	if c.MaxFuzzyContentLength > 0 {
		cfg.MaxFuzzyContentLength = c.MaxFuzzyContentLength
	}
	return cfg
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
		Embedding: embedding.DefaultConfig(),
		Storage: StorageConfig{
			DatabasePath: defaultDatabasePath(),
		},
		Context: ContextConfig{
			DefaultLimit:          10,
			DefaultMaxTokens:      4000,
			SimilarityThreshold:   0.90,
			MaxFuzzyContentLength: 1000,
		},
	}
}

// DefaultPath returns the conventional config location,
// ~/.mnemo/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".mnemo", "config.yaml")
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mnemo.db"
	}
	return filepath.Join(home, ".mnemo", "mnemo.db")
}

// Load reads configuration from a YAML file, layering it over defaults. A
// missing file yields the defaults; environment overrides apply last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets secrets and machine-local paths come from the
// environment instead of the file.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GeminiAPIKey = key
	}
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Embedding.OllamaEndpoint = host
	}
	if path := os.Getenv("MNEMO_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if level := os.Getenv("MNEMO_LOG_LEVEL"); level != "" {
		c.Server.LogLevel = level
	}
}
