package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureCollection(ctx, "memories", 3))
	require.NoError(t, s.EnsureCollection(ctx, "memories", 3))

	err := s.EnsureCollection(ctx, "memories", 4)
	assert.Error(t, err, "dimension change on an existing collection must fail")
}

func TestEnsureCollectionValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.EnsureCollection(ctx, "bad name!", 3))
	assert.Error(t, s.EnsureCollection(ctx, "points; DROP TABLE x", 3))
	assert.Error(t, s.EnsureCollection(ctx, "memories", 0))
}

func TestInsertAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "memories", 3))

	require.NoError(t, s.Insert(ctx, "memories",
		Point{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]any{"content": "alpha"}},
		Point{ID: "b", Vector: []float32{0, 1, 0}, Payload: map[string]any{"content": "beta"}},
		Point{ID: "c", Vector: []float32{0.9, 0.1, 0}, Payload: map[string]any{"content": "gamma"}},
	))

	hits, err := s.Search(ctx, "memories", []float32{1, 0, 0}, nil, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "c", hits[1].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, "alpha", hits[0].Payload["content"])
}

func TestInsertDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "memories", 3))

	p := Point{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]any{"content": "x"}}
	require.NoError(t, s.Insert(ctx, "memories", p))

	err := s.Insert(ctx, "memories", p)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "memories", 3))

	require.NoError(t, s.Upsert(ctx, "memories",
		Point{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]any{"content": "old"}}))
	require.NoError(t, s.Upsert(ctx, "memories",
		Point{ID: "a", Vector: []float32{0, 1, 0}, Payload: map[string]any{"content": "new"}}))

	payload, err := s.Get(ctx, "memories", "a")
	require.NoError(t, err)
	assert.Equal(t, "new", payload["content"])

	n, err := s.Count(ctx, "memories")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The replaced vector answers for the point now.
	hits, err := s.Search(ctx, "memories", []float32{0, 1, 0}, nil, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestSearchWithFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "ghap_full", 3))

	require.NoError(t, s.Insert(ctx, "ghap_full",
		Point{ID: "e1", Vector: []float32{1, 0, 0}, Payload: map[string]any{"domain": "caching", "outcome_status": "validated"}},
		Point{ID: "e2", Vector: []float32{0.99, 0.01, 0}, Payload: map[string]any{"domain": "caching", "outcome_status": "falsified"}},
		Point{ID: "e3", Vector: []float32{0.98, 0.02, 0}, Payload: map[string]any{"domain": "auth", "outcome_status": "falsified"}},
	))

	hits, err := s.Search(ctx, "ghap_full", []float32{1, 0, 0},
		Filter{"domain": "caching", "outcome_status": "falsified"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "e2", hits[0].ID)
}

func TestSearchUnknownCollection(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Search(context.Background(), "nope", []float32{1, 0, 0}, nil, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "memories", 3))

	_, err := s.Search(ctx, "memories", []float32{1, 0}, nil, 5)
	assert.Error(t, err)
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "memories", 3))

	_, err := s.Get(ctx, "memories", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "memories", 3))

	require.NoError(t, s.Insert(ctx, "memories",
		Point{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]any{"content": "x"}}))

	require.NoError(t, s.Delete(ctx, "memories", "a"))

	_, err := s.Get(ctx, "memories", "a")
	assert.ErrorIs(t, err, ErrNotFound)

	hits, err := s.Search(ctx, "memories", []float32{1, 0, 0}, nil, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	assert.ErrorIs(t, s.Delete(ctx, "memories", "a"), ErrNotFound)
}

func TestInsertVectorDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "memories", 3))

	err := s.Insert(ctx, "memories",
		Point{ID: "a", Vector: []float32{1, 0}, Payload: map[string]any{}})
	assert.Error(t, err)
}

func TestInsertEmptyID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureCollection(ctx, "memories", 3))

	err := s.Insert(ctx, "memories",
		Point{ID: "", Vector: []float32{1, 0, 0}, Payload: map[string]any{}})
	assert.Error(t, err)
}

func TestMatchesFilter(t *testing.T) {
	payload := map[string]any{"domain": "caching", "limit": float64(5)}

	assert.True(t, matchesFilter(payload, nil))
	assert.True(t, matchesFilter(payload, Filter{"domain": "caching"}))
	// JSON decodes numbers as float64; an int filter must still match.
	assert.True(t, matchesFilter(payload, Filter{"limit": 5}))
	assert.False(t, matchesFilter(payload, Filter{"domain": "auth"}))
	assert.False(t, matchesFilter(payload, Filter{"missing": "x"}))
}

func TestEncodeVector(t *testing.T) {
	blob := encodeVector([]float32{1, 2, 3})
	assert.Len(t, blob, 12)
	assert.Empty(t, encodeVector(nil))
}
