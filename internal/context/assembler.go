package context

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mnemo/internal/logging"
)

// valuesSearchLimit caps value-statement retrieval. Values are distilled
// cluster summaries; a handful is always enough.
const valuesSearchLimit = 5

// Assembler gathers context from all requested sources concurrently,
// deduplicates across sources, fits the survivors into a weighted token
// budget, and renders the result as markdown.
type Assembler struct {
	searcher Searcher
	dedup    DedupConfig
	log      *zap.Logger
}

// NewAssembler creates an Assembler with default dedup thresholds.
func NewAssembler(searcher Searcher) *Assembler {
	return NewAssemblerWithConfig(searcher, DefaultDedupConfig())
}

// NewAssemblerWithConfig creates an Assembler with explicit dedup
// thresholds.
func NewAssemblerWithConfig(searcher Searcher, dedup DedupConfig) *Assembler {
	return &Assembler{
		searcher: searcher,
		dedup:    dedup,
		log:      logging.Named("context_assembler"),
	}
}

// AssembleContext gathers, deduplicates, budgets, and formats context for a
// query.
//
// contextTypes is validated against the fixed set before any retrieval; an
// unknown type fails immediately. An empty query short-circuits to an empty
// FormattedContext without contacting the Searcher. Individual source
// failures are logged and contribute zero items; they never abort the call.
func (a *Assembler) AssembleContext(ctx context.Context, query string, contextTypes []string, limit, maxTokens int) (*FormattedContext, error) {
	valid := make(map[string]bool, len(sourceOrder))
	for _, t := range sourceOrder {
		valid[t] = true
	}
	for _, t := range contextTypes {
		if !valid[t] {
			return nil, &InvalidContextTypeError{Invalid: t, Valid: ValidContextTypes()}
		}
	}

	if strings.TrimSpace(query) == "" {
		return &FormattedContext{
			SourcesUsed: map[string]int{},
		}, nil
	}

	a.log.Info("assembling context",
		zap.String("query", query),
		zap.Strings("context_types", contextTypes),
		zap.Int("limit", limit),
		zap.Int("max_tokens", maxTokens),
	)

	itemsBySource := a.querySources(ctx, query, contextTypes, limit)

	var allItems []ContextItem
	for _, items := range itemsBySource {
		allItems = append(allItems, items...)
	}

	deduplicated := DeduplicateItems(allItems, a.dedup)

	a.log.Info("deduplication complete",
		zap.Int("original_count", len(allItems)),
		zap.Int("deduplicated_count", len(deduplicated)),
	)

	budgets, err := DistributeBudget(contextTypes, maxTokens)
	if err != nil {
		return nil, err
	}

	selected, truncatedIDs := selectItems(deduplicated, budgets)

	markdown := assembleMarkdown(selected)
	tokenCount := EstimateTokens(markdown)

	var included []ContextItem
	sourcesUsed := make(map[string]int, len(selected))
	for _, source := range sourceOrder {
		items, ok := selected[source]
		if !ok {
			continue
		}
		included = append(included, items...)
		sourcesUsed[source] = len(items)
	}

	budgetExceeded := tokenCount > maxTokens
	if budgetExceeded {
		a.log.Warn("token budget exceeded",
			zap.Int("budget", maxTokens),
			zap.Int("actual", tokenCount),
		)
	}

	return &FormattedContext{
		Markdown:       markdown,
		Items:          included,
		TokenCount:     tokenCount,
		SourcesUsed:    sourcesUsed,
		BudgetExceeded: budgetExceeded,
		TruncatedItems: truncatedIDs,
	}, nil
}

// querySources fans out one retrieval task per requested type and joins
// them. Each task owns a dedicated result slot, so there is no shared
// mutable state; a failing task logs and leaves its slot empty instead of
// cancelling siblings.
func (a *Assembler) querySources(ctx context.Context, query string, contextTypes []string, limit int) [][]ContextItem {
	slots := make([][]ContextItem, len(contextTypes))

	g, gctx := errgroup.WithContext(ctx)
	for i, source := range contextTypes {
		g.Go(func() error {
			items, err := a.querySource(gctx, source, query, limit)
			if err != nil {
				a.log.Warn("source query partial failure",
					zap.String("source", source),
					zap.Error(err),
				)
				return nil
			}
			slots[i] = items
			return nil
		})
	}
	// Tasks swallow their own errors, so Wait never fails.
	_ = g.Wait()

	return slots
}

func (a *Assembler) querySource(ctx context.Context, source, query string, limit int) ([]ContextItem, error) {
	switch source {
	case TypeMemories:
		results, err := a.searcher.SearchMemories(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		items := make([]ContextItem, 0, len(results))
		for _, r := range results {
			items = append(items, memoryToItem(r))
		}
		return items, nil

	case TypeCode:
		results, err := a.searcher.SearchCode(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		items := make([]ContextItem, 0, len(results))
		for _, r := range results {
			items = append(items, codeToItem(r))
		}
		return items, nil

	case TypeExperiences:
		results, err := a.searcher.SearchExperiences(ctx, query, ExperienceFilter{Axis: "full"}, limit)
		if err != nil {
			return nil, err
		}
		items := make([]ContextItem, 0, len(results))
		for _, r := range results {
			items = append(items, experienceToItem(r, r.Axis))
		}
		return items, nil

	case TypeValues:
		results, err := a.searcher.SearchValues(ctx, query, valuesSearchLimit)
		if err != nil {
			return nil, err
		}
		items := make([]ContextItem, 0, len(results))
		for _, r := range results {
			items = append(items, valueToItem(r))
		}
		return items, nil

	case TypeCommits:
		results, err := a.searcher.SearchCommits(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		items := make([]ContextItem, 0, len(results))
		for _, r := range results {
			items = append(items, commitToItem(r))
		}
		return items, nil
	}

	// Unreachable: contextTypes are validated before fan-out.
	return nil, &InvalidContextTypeError{Invalid: source, Valid: ValidContextTypes()}
}

func memoryToItem(m MemoryResult) ContextItem {
	return ContextItem{
		Source:    SourceMemory,
		Content:   FormatMemory(m),
		Relevance: m.Score,
		Metadata: map[string]any{
			"id":         m.ID,
			"category":   m.Category,
			"importance": m.Importance,
		},
	}
}

func codeToItem(c CodeResult) ContextItem {
	return ContextItem{
		Source:    SourceCode,
		Content:   FormatCode(c),
		Relevance: c.Score,
		Metadata: map[string]any{
			"id":             c.ID,
			"file_path":      c.FilePath,
			"start_line":     c.StartLine,
			"end_line":       c.EndLine,
			"language":       c.Language,
			"unit_type":      c.UnitType,
			"qualified_name": c.QualifiedName,
		},
	}
}

func experienceToItem(e ExperienceResult, axis string) ContextItem {
	return ContextItem{
		Source:    SourceExperience,
		Content:   FormatExperience(e),
		Relevance: e.Score,
		Metadata: map[string]any{
			"id":             e.ID,
			"ghap_id":        e.GHAPID,
			"axis":           axis,
			"domain":         e.Domain,
			"strategy":       e.Strategy,
			"outcome_status": e.OutcomeStatus,
		},
	}
}

func valueToItem(v ValueResult) ContextItem {
	return ContextItem{
		Source:    SourceValue,
		Content:   FormatValue(v),
		Relevance: v.Score,
		Metadata: map[string]any{
			"id":           v.ID,
			"axis":         v.Axis,
			"cluster_id":   v.ClusterID,
			"member_count": v.MemberCount,
		},
	}
}

func commitToItem(c CommitResult) ContextItem {
	return ContextItem{
		Source:    SourceCommit,
		Content:   FormatCommit(c),
		Relevance: c.Score,
		Metadata: map[string]any{
			"id":            c.ID,
			"sha":           c.SHA,
			"author":        c.Author,
			"files_changed": c.FilesChanged,
		},
	}
}

// selectItems runs the two-pass budget selection.
//
// Pass 1 walks each source's items in relevance order, capping each item at
// MaxItemFraction of the source budget, and stops at the first item that
// would overflow the budget (strict prefix, preserving ranking semantics).
//
// Pass 2 pools the budget left unused by pass 1 and splits it evenly across
// "starved" sources, i.e. sources with more ranked candidates than pass 1
// admitted. Each starved source resumes where pass 1 stopped with
// original budget + share as its new ceiling. Exactly two passes: pass 2
// only adds items and there is no further redistribution.
func selectItems(items []ContextItem, budgets map[string]int) (map[string][]ContextItem, []string) {
	bySource := make(map[string][]ContextItem)
	for _, item := range items {
		plural := pluralOf(item.Source)
		bySource[plural] = append(bySource[plural], item)
	}

	selected := make(map[string][]ContextItem)
	var truncatedIDs []string
	unused := make(map[string]int)

	for _, source := range sourceOrder {
		sourceItems, ok := bySource[source]
		if !ok {
			continue
		}
		budget := budgets[source]
		if budget == 0 {
			continue
		}

		selected[source] = []ContextItem{}
		used := 0

		for _, item := range sourceItems {
			capped, wasTruncated := CapItemTokens(item.Content, budget, item.Metadata, item.Source)
			if wasTruncated {
				truncatedIDs = append(truncatedIDs, metaString(item.Metadata, "id", "unknown"))
			}

			itemTokens := EstimateTokens(capped)
			if used+itemTokens > budget {
				break
			}

			chosen := item
			chosen.Content = capped
			selected[source] = append(selected[source], chosen)
			used += itemTokens
		}

		if budget-used > 0 {
			unused[source] = budget - used
		}
	}

	totalUnused := 0
	for _, u := range unused {
		totalUnused += u
	}
	if totalUnused <= 0 {
		return selected, truncatedIDs
	}

	var starved []string
	for _, source := range sourceOrder {
		if _, ok := selected[source]; !ok {
			continue
		}
		if len(bySource[source]) > len(selected[source]) {
			starved = append(starved, source)
		}
	}
	if len(starved) == 0 {
		return selected, truncatedIDs
	}

	extraShare := totalUnused / len(starved)

	for _, source := range starved {
		newBudget := budgets[source] + extraShare

		used := 0
		for _, item := range selected[source] {
			used += EstimateTokens(item.Content)
		}

		remaining := bySource[source][len(selected[source]):]
		for _, item := range remaining {
			capped, wasTruncated := CapItemTokens(item.Content, newBudget, item.Metadata, item.Source)
			if wasTruncated {
				truncatedIDs = append(truncatedIDs, metaString(item.Metadata, "id", "unknown"))
			}

			itemTokens := EstimateTokens(capped)
			if used+itemTokens > newBudget {
				break
			}

			chosen := item
			chosen.Content = capped
			selected[source] = append(selected[source], chosen)
			used += itemTokens
		}
	}

	return selected, truncatedIDs
}
