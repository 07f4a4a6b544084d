package context

import (
	"fmt"
	"hash/fnv"
	"sort"
)

// DedupConfig tunes the fuzzy half of deduplication.
type DedupConfig struct {
	// SimilarityThreshold is the minimum normalized text-similarity ratio
	// for two items to be considered duplicates.
	SimilarityThreshold float64

	// MaxFuzzyContentLength exempts long content from fuzzy comparison
	// entirely. Similarity is quadratic in content length, so the ceiling
	// keeps the dedup pass cheap; exact-key dedup still applies.
	MaxFuzzyContentLength int
}

// DefaultDedupConfig returns the standard thresholds.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		SimilarityThreshold:   0.90,
		MaxFuzzyContentLength: 1000,
	}
}

// DeduplicateItems merges items that represent the same underlying fact
// across sources and returns the survivors sorted by relevance descending.
//
// Two passes decide whether an incoming item is a duplicate:
//
//  1. Exact key: a priority-ordered identifier (ghap_id, file_path, commit
//     sha, generic id, finally a hash of the content). Colliding items keep
//     the higher relevance.
//  2. Fuzzy text: items whose key is new are compared against already
//     accepted items by similarity ratio, gated by the length ceiling and a
//     ±20% length pre-filter.
//
// On equal relevance the first-processed item wins. Callers feed items in
// requested-source order (never task completion order), so the outcome is
// deterministic.
func DeduplicateItems(items []ContextItem, cfg DedupConfig) []ContextItem {
	if len(items) == 0 {
		return nil
	}

	byKey := make(map[string]ContextItem, len(items))
	order := make([]string, 0, len(items))

	for _, item := range items {
		key := dedupKey(item)

		if existing, ok := byKey[key]; ok {
			if item.Relevance > existing.Relevance {
				byKey[key] = item
			}
			continue
		}

		if fuzzyKey, found := findFuzzyDuplicate(item, order, byKey, cfg); found {
			if item.Relevance > byKey[fuzzyKey].Relevance {
				delete(byKey, fuzzyKey)
				order = removeKey(order, fuzzyKey)
				byKey[key] = item
				order = append(order, key)
			}
			continue
		}

		byKey[key] = item
		order = append(order, key)
	}

	out := make([]ContextItem, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	return out
}

// dedupKey computes the priority-ordered exact-dedup key for an item.
// ghap_id joins experience and value records derived from the same GHAP;
// file_path joins code units from the same file; sha joins commits; the
// generic id covers memories; content hash is the last resort.
func dedupKey(item ContextItem) string {
	if v := metaString(item.Metadata, "ghap_id"); v != "" {
		return "ghap:" + v
	}
	if v := metaString(item.Metadata, "file_path"); v != "" {
		return "file:" + v
	}
	if v := metaString(item.Metadata, "sha"); v != "" {
		return "commit:" + v
	}
	if v := metaString(item.Metadata, "id"); v != "" {
		return "memory:" + v
	}
	h := fnv.New64a()
	h.Write([]byte(item.Content))
	return fmt.Sprintf("content:%x", h.Sum64())
}

// findFuzzyDuplicate scans already-accepted items for a fuzzy text match.
// Candidates outside ±20% of the item's length are skipped before the
// expensive ratio computation, and anything above the length ceiling is
// exempt on either side.
func findFuzzyDuplicate(item ContextItem, order []string, byKey map[string]ContextItem, cfg DedupConfig) (string, bool) {
	itemLen := len([]rune(item.Content))
	if itemLen > cfg.MaxFuzzyContentLength {
		return "", false
	}

	minLen := int(float64(itemLen) * 0.8)
	maxLen := int(float64(itemLen) * 1.2)

	for _, key := range order {
		candidate := byKey[key]
		candidateLen := len([]rune(candidate.Content))

		if candidateLen < minLen || candidateLen > maxLen {
			continue
		}
		if candidateLen > cfg.MaxFuzzyContentLength {
			continue
		}

		if similarityRatio(item.Content, candidate.Content) >= cfg.SimilarityThreshold {
			return key, true
		}
	}
	return "", false
}

func removeKey(order []string, key string) []string {
	for i, k := range order {
		if k == key {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// similarityRatio computes the Ratcliff/Obershelp similarity of two
// strings: 2*M/T where M is the total matched characters found by
// recursively taking the longest common substring, and T is the combined
// length. Equivalent to Python difflib's SequenceMatcher.ratio().
func similarityRatio(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingRunes(ar, br)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	ai, bi, size := longestCommonRun(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingRunes(a[:ai], b[:bi]) + matchingRunes(a[ai+size:], b[bi+size:])
}

// longestCommonRun finds the longest common substring of a and b using a
// rolling DP row, returning its start offsets and length.
func longestCommonRun(a, b []rune) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			if a[i] != b[j] {
				cur[j+1] = 0
				continue
			}
			cur[j+1] = prev[j] + 1
			if cur[j+1] > size {
				size = cur[j+1]
				ai = i - size + 1
				bi = j - size + 1
			}
		}
		prev, cur = cur, prev
		for j := range cur {
			cur[j] = 0
		}
	}
	return ai, bi, size
}
