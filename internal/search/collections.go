// Package search implements retrieval over the vector store: it embeds
// queries, runs KNN against the right collection, and decodes payloads into
// the typed results the context assembler consumes. It also owns the write
// path that seeds those collections.
package search

import (
	"context"
	"fmt"

	"mnemo/internal/embedding"
	"mnemo/internal/store"
)

// Collection names. Experiences are indexed once per embedding axis so a
// search can target the facet it cares about.
const (
	CollectionMemories      = "memories"
	CollectionCode          = "code"
	CollectionGHAPFull      = "ghap_full"
	CollectionGHAPStrategy  = "ghap_strategy"
	CollectionGHAPSurprise  = "ghap_surprise"
	CollectionGHAPRootCause = "ghap_root_cause"
	CollectionValues        = "values"
	CollectionCommits       = "commits"
)

// AllCollections lists every collection in creation order.
var AllCollections = []string{
	CollectionMemories,
	CollectionCode,
	CollectionGHAPFull,
	CollectionGHAPStrategy,
	CollectionGHAPSurprise,
	CollectionGHAPRootCause,
	CollectionValues,
	CollectionCommits,
}

var collectionByAxis = map[string]string{
	"full":       CollectionGHAPFull,
	"strategy":   CollectionGHAPStrategy,
	"surprise":   CollectionGHAPSurprise,
	"root_cause": CollectionGHAPRootCause,
}

// InvalidAxisError reports an experience search against an unknown axis.
type InvalidAxisError struct {
	Axis string
}

func (e *InvalidAxisError) Error() string {
	return fmt.Sprintf("invalid experience axis %q (valid: full, strategy, surprise, root_cause)", e.Axis)
}

// AxisCollection resolves an experience axis to its collection. An empty
// axis means the full GHAP space.
func AxisCollection(axis string) (string, error) {
	if axis == "" {
		return CollectionGHAPFull, nil
	}
	c, ok := collectionByAxis[axis]
	if !ok {
		return "", &InvalidAxisError{Axis: axis}
	}
	return c, nil
}

// EnsureCollections creates every collection at the engine's vector width.
// Idempotent; called once at startup.
func EnsureCollections(ctx context.Context, st store.VectorStore, engine embedding.Engine) error {
	dims := engine.Dimensions()
	for _, name := range AllCollections {
		if err := st.EnsureCollection(ctx, name, dims); err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	return nil
}
