package context

import (
	"strings"
	"testing"
)

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "hello world", "hello world", 1.0},
		{"both empty", "", "", 1.0},
		{"disjoint", "aaaa", "bbbb", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := similarityRatio(tt.a, tt.b); got != tt.want {
				t.Errorf("similarityRatio(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSimilarityRatioNearDuplicate(t *testing.T) {
	a := "Fix null pointer in auth handler"
	b := "Fix null pointer in the auth handler"

	got := similarityRatio(a, b)
	if got < 0.90 {
		t.Errorf("similarityRatio(%q, %q) = %f, want >= 0.90", a, b, got)
	}
}

func TestDeduplicateItemsEmpty(t *testing.T) {
	if got := DeduplicateItems(nil, DefaultDedupConfig()); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestDeduplicateItemsExactKeyKeepsHigherRelevance(t *testing.T) {
	exp := ContextItem{
		Source:    SourceExperience,
		Content:   "**Experience**: api | tdd",
		Relevance: 0.70,
		Metadata:  map[string]any{"id": "exp-1", "ghap_id": "ghap-42"},
	}
	val := ContextItem{
		Source:    SourceValue,
		Content:   "**Value** (strategy): test first",
		Relevance: 0.85,
		Metadata:  map[string]any{"id": "val-1", "ghap_id": "ghap-42"},
	}

	// Items sharing a ghap_id collapse to one regardless of arrival order.
	for _, items := range [][]ContextItem{{exp, val}, {val, exp}} {
		got := DeduplicateItems(items, DefaultDedupConfig())
		if len(got) != 1 {
			t.Fatalf("expected 1 survivor, got %d", len(got))
		}
		if !got[0].Equal(val) {
			t.Errorf("expected higher-relevance value item to survive, got %+v", got[0])
		}
	}
}

func TestDeduplicateItemsEqualRelevanceFirstWins(t *testing.T) {
	first := memoryItem("m-1", "identical content", 0.5)
	second := memoryItem("m-1", "later arrival", 0.5)

	got := DeduplicateItems([]ContextItem{first, second}, DefaultDedupConfig())
	if len(got) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(got))
	}
	if got[0].Content != first.Content {
		t.Errorf("on equal relevance the first item should win, got %q", got[0].Content)
	}
}

func TestDeduplicateItemsFuzzy(t *testing.T) {
	a := memoryItem("m-1", "Fix null pointer in auth handler", 0.6)
	b := memoryItem("m-2", "Fix null pointer in the auth handler", 0.9)

	got := DeduplicateItems([]ContextItem{a, b}, DefaultDedupConfig())
	if len(got) != 1 {
		t.Fatalf("expected fuzzy merge to 1 item, got %d", len(got))
	}
	if got[0].Content != b.Content {
		t.Errorf("higher-relevance near-duplicate should survive, got %q", got[0].Content)
	}
}

func TestDeduplicateItemsFuzzyLowerRelevanceDropped(t *testing.T) {
	a := memoryItem("m-1", "Fix null pointer in auth handler", 0.9)
	b := memoryItem("m-2", "Fix null pointer in the auth handler", 0.6)

	got := DeduplicateItems([]ContextItem{a, b}, DefaultDedupConfig())
	if len(got) != 1 {
		t.Fatalf("expected fuzzy merge to 1 item, got %d", len(got))
	}
	if got[0].Content != a.Content {
		t.Errorf("existing higher-relevance item should be kept, got %q", got[0].Content)
	}
}

func TestDeduplicateItemsLengthPrefilter(t *testing.T) {
	// Same prefix but lengths differ far beyond 20%, so the fuzzy pass
	// never compares them.
	short := memoryItem("m-1", "retry with backoff", 0.8)
	long := memoryItem("m-2", "retry with backoff "+strings.Repeat("and a much longer explanation ", 5), 0.7)

	got := DeduplicateItems([]ContextItem{short, long}, DefaultDedupConfig())
	if len(got) != 2 {
		t.Fatalf("length-divergent items must both survive, got %d", len(got))
	}
}

func TestDeduplicateItemsLongContentExemptFromFuzzy(t *testing.T) {
	base := strings.Repeat("x", 1200)
	a := memoryItem("m-1", base+"a", 0.8)
	b := memoryItem("m-2", base+"b", 0.7)

	got := DeduplicateItems([]ContextItem{a, b}, DefaultDedupConfig())
	if len(got) != 2 {
		t.Fatalf("content above the fuzzy length ceiling must both survive, got %d", len(got))
	}
}

func TestDeduplicateItemsSortedByRelevance(t *testing.T) {
	items := []ContextItem{
		memoryItem("m-1", "first fact", 0.3),
		memoryItem("m-2", "second fact", 0.9),
		memoryItem("m-3", "third fact", 0.6),
	}

	got := DeduplicateItems(items, DefaultDedupConfig())
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Relevance > got[i-1].Relevance {
			t.Errorf("items not sorted by relevance descending: %f before %f",
				got[i-1].Relevance, got[i].Relevance)
		}
	}
}

func TestDedupKeyPriority(t *testing.T) {
	tests := []struct {
		name string
		item ContextItem
		want string
	}{
		{
			"ghap_id beats id",
			ContextItem{Metadata: map[string]any{"ghap_id": "g1", "id": "x"}},
			"ghap:g1",
		},
		{
			"file_path beats id",
			ContextItem{Metadata: map[string]any{"file_path": "a/b.go", "id": "x"}},
			"file:a/b.go",
		},
		{
			"sha beats id",
			ContextItem{Metadata: map[string]any{"sha": "abc123", "id": "x"}},
			"commit:abc123",
		},
		{
			"id fallback",
			ContextItem{Metadata: map[string]any{"id": "m-9"}},
			"memory:m-9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dedupKey(tt.item); got != tt.want {
				t.Errorf("dedupKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDedupKeyContentHashFallback(t *testing.T) {
	a := dedupKey(ContextItem{Content: "alpha"})
	b := dedupKey(ContextItem{Content: "beta"})

	if !strings.HasPrefix(a, "content:") {
		t.Errorf("expected content-hash key, got %q", a)
	}
	if a == b {
		t.Error("distinct content must hash to distinct keys")
	}
	if again := dedupKey(ContextItem{Content: "alpha"}); again != a {
		t.Error("content hash must be stable")
	}
}
