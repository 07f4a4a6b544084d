// Package context assembles relevant contextual text from multiple knowledge
// sources (memories, indexed code, experiences, values, git commits) into a
// single markdown document that fits a caller-specified token budget.
//
// The engine performs no I/O of its own beyond calling the injected Searcher:
// it computes nothing persistent, issues no retries, and treats item content
// as opaque display text produced by the per-source renderers.
package context

import (
	"errors"
	"fmt"
	"strings"
)

// Singular source identifiers carried on ContextItem.
const (
	SourceMemory     = "memory"
	SourceCode       = "code"
	SourceExperience = "experience"
	SourceValue      = "value"
	SourceCommit     = "commit"
)

// Plural source identifiers used in retrieval requests and budget maps.
const (
	TypeMemories    = "memories"
	TypeCode        = "code"
	TypeExperiences = "experiences"
	TypeValues      = "values"
	TypeCommits     = "commits"
)

// sourceOrder fixes the iteration order everywhere a per-source map is
// walked. Go maps iterate randomly; a stable order keeps markdown layout,
// budget redistribution, and dedup tie-breaking deterministic across runs.
var sourceOrder = []string{TypeMemories, TypeCode, TypeExperiences, TypeValues, TypeCommits}

var pluralBySingular = map[string]string{
	SourceMemory:     TypeMemories,
	SourceCode:       TypeCode,
	SourceExperience: TypeExperiences,
	SourceValue:      TypeValues,
	SourceCommit:     TypeCommits,
}

// ValidContextTypes returns the plural request names accepted by
// AssembleContext, in canonical order.
func ValidContextTypes() []string {
	out := make([]string, len(sourceOrder))
	copy(out, sourceOrder)
	return out
}

func pluralOf(singular string) string {
	if p, ok := pluralBySingular[singular]; ok {
		return p
	}
	return singular
}

// ContextItem is a single retrieved, display-ready fact from any source.
type ContextItem struct {
	// Source is the singular origin category (memory, code, experience,
	// value, commit).
	Source string

	// Content is the fully rendered display text. The engine treats it as
	// opaque apart from token estimation and truncation.
	Content string

	// Relevance is the similarity score from the search backend. Higher is
	// more relevant; it drives ranking and dedup tie-breaks.
	Relevance float64

	// Metadata carries source-specific fields consumed by the deduplicator
	// (ghap_id, file_path, sha, id) and by truncation-note rendering
	// (file_path, start_line, id).
	Metadata map[string]any
}

// Equal reports whether two items represent the same fact. Identity is
// (source, content) only; metadata never participates.
func (c ContextItem) Equal(other ContextItem) bool {
	return c.Source == other.Source && c.Content == other.Content
}

// FormattedContext is the assembled output returned to the caller.
type FormattedContext struct {
	// Markdown is the complete rendered document.
	Markdown string

	// Items lists the items actually included, in rendered order.
	Items []ContextItem

	// TokenCount is EstimateTokens(Markdown).
	TokenCount int

	// SourcesUsed maps plural source name to the number of included items.
	SourcesUsed map[string]int

	// BudgetExceeded is true when TokenCount exceeds the requested budget.
	// It is computed from the final markdown, so heading overhead can push
	// it true even when every item individually fit its budget.
	BudgetExceeded bool

	// TruncatedItems holds metadata identifiers of items whose content was
	// shortened by the per-item cap.
	TruncatedItems []string
}

// InvalidContextTypeError reports a request for an unknown context type.
type InvalidContextTypeError struct {
	Invalid string
	Valid   []string
}

func (e *InvalidContextTypeError) Error() string {
	return fmt.Sprintf("invalid context type %q, valid types: %s",
		e.Invalid, strings.Join(e.Valid, ", "))
}

// ErrInvalidBudget marks budget parameters outside [1, MaxTokenBudget].
// These are caller programming errors, raised synchronously by the
// allocator, never produced by retrieval.
var ErrInvalidBudget = errors.New("invalid token budget")
