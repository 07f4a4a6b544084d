package context

import (
	"context"
	"sync"
)

// mockSearcher implements Searcher for testing. Each method delegates to
// its function field when set and returns empty results otherwise. Call
// counts are tracked so tests can assert that retrieval was (not) issued.
type mockSearcher struct {
	SearchMemoriesFunc    func(ctx context.Context, query string, limit int) ([]MemoryResult, error)
	SearchCodeFunc        func(ctx context.Context, query string, limit int) ([]CodeResult, error)
	SearchExperiencesFunc func(ctx context.Context, query string, filter ExperienceFilter, limit int) ([]ExperienceResult, error)
	SearchValuesFunc      func(ctx context.Context, query string, limit int) ([]ValueResult, error)
	SearchCommitsFunc     func(ctx context.Context, query string, limit int) ([]CommitResult, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *mockSearcher) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

func (m *mockSearcher) callCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockSearcher) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

func (m *mockSearcher) SearchMemories(ctx context.Context, query string, limit int) ([]MemoryResult, error) {
	m.record("memories")
	if m.SearchMemoriesFunc != nil {
		return m.SearchMemoriesFunc(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockSearcher) SearchCode(ctx context.Context, query string, limit int) ([]CodeResult, error) {
	m.record("code")
	if m.SearchCodeFunc != nil {
		return m.SearchCodeFunc(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockSearcher) SearchExperiences(ctx context.Context, query string, filter ExperienceFilter, limit int) ([]ExperienceResult, error) {
	m.record("experiences")
	if m.SearchExperiencesFunc != nil {
		return m.SearchExperiencesFunc(ctx, query, filter, limit)
	}
	return nil, nil
}

func (m *mockSearcher) SearchValues(ctx context.Context, query string, limit int) ([]ValueResult, error) {
	m.record("values")
	if m.SearchValuesFunc != nil {
		return m.SearchValuesFunc(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockSearcher) SearchCommits(ctx context.Context, query string, limit int) ([]CommitResult, error) {
	m.record("commits")
	if m.SearchCommitsFunc != nil {
		return m.SearchCommitsFunc(ctx, query, limit)
	}
	return nil, nil
}

// memoryItem builds a bare ContextItem for dedup and selection tests.
func memoryItem(id, content string, relevance float64) ContextItem {
	return ContextItem{
		Source:    SourceMemory,
		Content:   content,
		Relevance: relevance,
		Metadata:  map[string]any{"id": id},
	}
}
