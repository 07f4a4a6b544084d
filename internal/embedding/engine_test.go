package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero magnitude", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.Error(t, err)
}

func TestCosineSimilarityScaleInvariant(t *testing.T) {
	a := []float32{0.3, -0.7, 0.2}
	b := []float32{0.6, -1.4, 0.4}
	got, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-6)
}

func TestNewEngineProviders(t *testing.T) {
	eng, err := New(Config{Provider: "ollama", OllamaModel: "embeddinggemma", Dimensions: 768})
	require.NoError(t, err)
	assert.Equal(t, "ollama:embeddinggemma", eng.Name())
	assert.Equal(t, 768, eng.Dimensions())

	_, err = New(Config{Provider: "qdrant"})
	assert.Error(t, err)

	_, err = New(Config{Provider: "gemini"})
	assert.Error(t, err, "gemini without an API key must fail")
}

func TestOllamaEmbed(t *testing.T) {
	var gotModel, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel, gotPrompt = req.Model, req.Prompt
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	eng := NewOllamaEngine(srv.URL, "embeddinggemma", 3)
	vec, err := eng.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "embeddinggemma", gotModel)
	assert.Equal(t, "hello world", gotPrompt)
}

func TestOllamaEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	eng := NewOllamaEngine(srv.URL, "missing", 768)
	_, err := eng.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOllamaEmbedEmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	}))
	defer srv.Close()

	eng := NewOllamaEngine(srv.URL, "m", 768)
	_, err := eng.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestOllamaEmbedBatchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		// Encode the prompt length so ordering is observable.
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{float32(len(req.Prompt))}})
	}))
	defer srv.Close()

	eng := NewOllamaEngine(srv.URL, "m", 1)
	vecs, err := eng.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, vec := range vecs {
		assert.Equal(t, float32(i+1), vec[0])
	}
}

func TestOllamaHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/version" {
			json.NewEncoder(w).Encode(map[string]string{"version": "0.5.0"})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	eng := NewOllamaEngine(srv.URL, "m", 768)
	assert.NoError(t, eng.HealthCheck(context.Background()))

	srv.Close()
	assert.Error(t, eng.HealthCheck(context.Background()))
}

func TestOllamaDefaults(t *testing.T) {
	eng := NewOllamaEngine("", "", 0)
	assert.Equal(t, "ollama:embeddinggemma", eng.Name())
	assert.Equal(t, 768, eng.Dimensions())
	assert.Equal(t, "http://localhost:11434", eng.endpoint)
}

func TestCosineSimilarityNormalized(t *testing.T) {
	// Any unit vector compared with itself is exactly 1 even after float32
	// round-tripping.
	v := []float32{float32(1 / math.Sqrt2), float32(1 / math.Sqrt2)}
	got, err := CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-6)
}
