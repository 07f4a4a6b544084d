package search

import (
	"context"
	"sync"

	"mnemo/internal/store"
)

// fakeEngine is a deterministic embedding engine for tests: every text
// embeds to a fixed-width vector derived from its length.
type fakeEngine struct {
	dims int

	mu    sync.Mutex
	calls []string
}

func newFakeEngine(dims int) *fakeEngine {
	return &fakeEngine{dims: dims}
}

func (e *fakeEngine) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()

	vec := make([]float32, e.dims)
	for i := range vec {
		vec[i] = float32(len(text)%7) + float32(i)
	}
	return vec, nil
}

func (e *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *fakeEngine) Dimensions() int { return e.dims }
func (e *fakeEngine) Name() string    { return "fake" }

func (e *fakeEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// fakeStore implements store.VectorStore through function fields and
// records search invocations.
type fakeStore struct {
	SearchFunc func(ctx context.Context, collection string, vector []float32, filter store.Filter, limit int) ([]store.SearchHit, error)
	InsertFunc func(ctx context.Context, collection string, points ...store.Point) error
	UpsertFunc func(ctx context.Context, collection string, points ...store.Point) error

	mu       sync.Mutex
	searches []searchCall
	writes   []writeCall
}

type searchCall struct {
	collection string
	filter     store.Filter
	limit      int
}

type writeCall struct {
	collection string
	points     []store.Point
	strict     bool
}

func (f *fakeStore) EnsureCollection(_ context.Context, _ string, _ int) error { return nil }

func (f *fakeStore) Search(ctx context.Context, collection string, vector []float32, filter store.Filter, limit int) ([]store.SearchHit, error) {
	f.mu.Lock()
	f.searches = append(f.searches, searchCall{collection: collection, filter: filter, limit: limit})
	f.mu.Unlock()
	if f.SearchFunc != nil {
		return f.SearchFunc(ctx, collection, vector, filter, limit)
	}
	return nil, nil
}

func (f *fakeStore) Insert(ctx context.Context, collection string, points ...store.Point) error {
	f.mu.Lock()
	f.writes = append(f.writes, writeCall{collection: collection, points: points, strict: true})
	f.mu.Unlock()
	if f.InsertFunc != nil {
		return f.InsertFunc(ctx, collection, points...)
	}
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, collection string, points ...store.Point) error {
	f.mu.Lock()
	f.writes = append(f.writes, writeCall{collection: collection, points: points, strict: false})
	f.mu.Unlock()
	if f.UpsertFunc != nil {
		return f.UpsertFunc(ctx, collection, points...)
	}
	return nil
}

func (f *fakeStore) Get(_ context.Context, _, _ string) (map[string]any, error) {
	return nil, store.ErrNotFound
}

func (f *fakeStore) Delete(_ context.Context, _, _ string) error { return nil }

func (f *fakeStore) Count(_ context.Context, _ string) (int, error) { return 0, nil }

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) searchCalls() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]searchCall, len(f.searches))
	copy(out, f.searches)
	return out
}

func (f *fakeStore) writeCalls() []writeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]writeCall, len(f.writes))
	copy(out, f.writes)
	return out
}
