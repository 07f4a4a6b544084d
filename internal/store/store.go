// Package store persists embedded points in SQLite and answers K-nearest-
// neighbor queries through the sqlite-vec extension.
package store

import "context"

// Point is one embedded record: a stable ID, its vector, and an arbitrary
// JSON-serializable payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchHit is one KNN result. Score is cosine similarity in [-1, 1],
// higher is closer.
type SearchHit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Filter restricts search results to points whose payload fields equal the
// given values. A nil or empty filter matches everything.
type Filter map[string]any

// VectorStore is the persistence capability consumed by the search layer.
type VectorStore interface {
	// EnsureCollection creates the collection if missing. Idempotent; safe
	// to call on every startup.
	EnsureCollection(ctx context.Context, name string, dimensions int) error

	// Insert adds new points, failing with ErrAlreadyExists if any ID is
	// already present.
	Insert(ctx context.Context, collection string, points ...Point) error

	// Upsert adds or replaces points by ID.
	Upsert(ctx context.Context, collection string, points ...Point) error

	// Search returns up to limit nearest neighbors of vector, most similar
	// first, restricted by filter.
	Search(ctx context.Context, collection string, vector []float32, filter Filter, limit int) ([]SearchHit, error)

	// Get fetches one point's payload by ID, without its vector.
	Get(ctx context.Context, collection, id string) (map[string]any, error)

	// Delete removes a point by ID, failing with ErrNotFound when absent.
	Delete(ctx context.Context, collection, id string) error

	// Count returns the number of points in a collection.
	Count(ctx context.Context, collection string) (int, error)

	Close() error
}
