// Package embedding generates vector embeddings for semantic retrieval.
// Two providers are supported: a local Ollama server and Google's Gemini
// embedding API.
package embedding

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"mnemo/internal/logging"
)

// Engine turns text into fixed-dimension vectors. Implementations must be
// safe for concurrent use; the searcher and the seeding tools share one
// instance.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimensionality. Collections are created
	// with this width, so it must be stable for the life of the store.
	Dimensions() int

	// Name identifies the provider and model for logging.
	Name() string
}

// HealthChecker is implemented by engines that can verify reachability
// before the server starts accepting requests.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config selects and parameterizes the embedding provider.
type Config struct {
	// Provider is "ollama" or "gemini".
	Provider string `yaml:"provider"`

	// Dimensions is the vector width produced by the chosen model.
	Dimensions int `yaml:"dimensions"`

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`
}

// DefaultConfig prefers the local Ollama provider so the server works
// without credentials.
func DefaultConfig() Config {
	return Config{
		Provider:       "ollama",
		Dimensions:     768,
		OllamaEndpoint: "http://localhost:11434",
		OllamaModel:    "embeddinggemma",
		GeminiModel:    "gemini-embedding-001",
	}
}

// New creates the configured engine.
func New(cfg Config) (Engine, error) {
	log := logging.Named("embedding")

	switch cfg.Provider {
	case "ollama", "":
		log.Info("creating ollama embedding engine",
			zap.String("endpoint", cfg.OllamaEndpoint),
			zap.String("model", cfg.OllamaModel),
		)
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel, cfg.Dimensions), nil

	case "gemini":
		log.Info("creating gemini embedding engine",
			zap.String("model", cfg.GeminiModel),
		)
		return NewGeminiEngine(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Dimensions)

	default:
		return nil, fmt.Errorf("unsupported embedding provider %q (use 'ollama' or 'gemini')", cfg.Provider)
	}
}

// CosineSimilarity computes the cosine similarity of two vectors: 1 means
// identical direction, 0 orthogonal. Zero-magnitude vectors yield 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
