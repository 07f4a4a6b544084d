package context

import (
	"fmt"
	"unicode/utf8"
)

// Token estimation is a fixed heuristic calibrated for Claude-family
// tokenizers (~4 characters per token). It never calls a real tokenizer, so
// estimates are deterministic and model-independent.
const charsPerToken = 4

// MaxItemFraction caps how much of a source's budget a single item may
// consume. The cap applies regardless of how much budget is otherwise
// unused, which guarantees diversity within a source.
const MaxItemFraction = 0.25

// MaxTokenBudget is the hard ceiling on max_tokens accepted by the
// allocator.
const MaxTokenBudget = 100000

// sourceWeights reflect the typical verbosity of each source: experiences
// render as multi-line GHAP records, code carries snippets, memories and
// values are short statements.
var sourceWeights = map[string]int{
	TypeMemories:    1,
	TypeCode:        2,
	TypeExperiences: 3,
	TypeValues:      1,
	TypeCommits:     2,
}

// EstimateTokens estimates the token count of text.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / charsPerToken
}

// TruncateToTokens shortens text to approximately maxTokens. It prefers
// cutting at the last newline when that boundary retains at least 80% of
// the target length, keeping whole lines intact; otherwise it hard-cuts at
// the character limit.
func TruncateToTokens(text string, maxTokens int) string {
	maxChars := maxTokens * charsPerToken
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	truncated := runes[:maxChars]

	lastNewline := -1
	for i := len(truncated) - 1; i >= 0; i-- {
		if truncated[i] == '\n' {
			lastNewline = i
			break
		}
	}
	if lastNewline > int(float64(maxChars)*0.8) {
		return string(truncated[:lastNewline])
	}

	return string(truncated)
}

// DistributeBudget splits maxTokens across the requested context types in
// proportion to their fixed weights. Rounding down means the returned
// budgets may sum to strictly less than maxTokens; that slack is accepted,
// not corrected.
func DistributeBudget(contextTypes []string, maxTokens int) (map[string]int, error) {
	totalWeight := 0
	for _, t := range contextTypes {
		w, ok := sourceWeights[t]
		if !ok {
			return nil, &InvalidContextTypeError{Invalid: t, Valid: ValidContextTypes()}
		}
		totalWeight += w
	}

	if maxTokens < 1 {
		return nil, fmt.Errorf("max_tokens must be positive, got %d: %w", maxTokens, ErrInvalidBudget)
	}
	if maxTokens > MaxTokenBudget {
		return nil, fmt.Errorf("max_tokens %d exceeds maximum of %d: %w", maxTokens, MaxTokenBudget, ErrInvalidBudget)
	}

	budgets := make(map[string]int, len(contextTypes))
	for _, t := range contextTypes {
		budgets[t] = maxTokens * sourceWeights[t] / totalWeight
	}
	return budgets, nil
}

// CapItemTokens enforces the per-item cap: an item may consume at most
// MaxItemFraction of its source's budget. Oversized content is truncated
// and suffixed with "..." plus a source-aware note pointing at the full
// original. Returns the (possibly shortened) content and whether it was
// truncated.
func CapItemTokens(content string, sourceBudget int, metadata map[string]any, source string) (string, bool) {
	maxItemTokens := int(float64(sourceBudget) * MaxItemFraction)
	if EstimateTokens(content) <= maxItemTokens {
		return content, false
	}

	truncated := TruncateToTokens(content, maxItemTokens)

	var note string
	switch source {
	case SourceCode:
		note = fmt.Sprintf("\n\n*(truncated, see full at %s:%s)*",
			metaString(metadata, "file_path", "unknown"),
			metaString(metadata, "start_line", "?"))
	case SourceExperience:
		note = fmt.Sprintf("\n\n*(truncated, full experience ID: %s)*",
			metaString(metadata, "id", "unknown"))
	default:
		note = "\n\n*(truncated)*"
	}

	return truncated + "..." + note, true
}

// metaString renders a metadata value as a string, falling back when the
// key is absent or empty.
func metaString(metadata map[string]any, key string, fallback ...string) string {
	fb := ""
	if len(fallback) > 0 {
		fb = fallback[0]
	}
	if metadata == nil {
		return fb
	}
	v, ok := metadata[key]
	if !ok || v == nil {
		return fb
	}
	s := fmt.Sprint(v)
	if s == "" {
		return fb
	}
	return s
}
