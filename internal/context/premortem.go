package context

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// premortemBattery holds the settled outcome of each premortem query under
// a stable name. Keying results by field rather than by position means the
// optional strategy query cannot shift any other result's identity.
type premortemBattery struct {
	full      []ExperienceResult
	strategy  []ExperienceResult
	surprise  []ExperienceResult
	rootCause []ExperienceResult
	values    []ValueResult
}

// PremortemContext assembles a "what could go wrong" digest for a domain:
// past falsified experiences, surprising outcomes, recurring root causes,
// and relevant value statements.
//
// This is a narrower mode than AssembleContext: a fixed query battery, no
// deduplication, and no budget allocation - only the per-query limit and a
// final token count. The strategy query joins the battery only when a
// strategy is given. Failed queries are logged and treated as empty; the
// call never aborts on a partial failure.
func (a *Assembler) PremortemContext(ctx context.Context, domain, strategy string, limit, maxTokens int) (*FormattedContext, error) {
	a.log.Info("assembling premortem",
		zap.String("domain", domain),
		zap.String("strategy", strategy),
		zap.Int("limit", limit),
	)

	var battery premortemBattery

	run := func(name string, fn func() error) func() error {
		return func() error {
			if err := fn(); err != nil {
				a.log.Warn("premortem query partial failure",
					zap.String("query", name),
					zap.Error(err),
				)
			}
			return nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(run("full", func() error {
		results, err := a.searcher.SearchExperiences(gctx,
			fmt.Sprintf("failures and issues in %s", domain),
			ExperienceFilter{Axis: "full", Domain: domain, Outcome: "falsified"},
			limit)
		if err != nil {
			return err
		}
		battery.full = results
		return nil
	}))

	if strategy != "" {
		g.Go(run("strategy", func() error {
			results, err := a.searcher.SearchExperiences(gctx,
				fmt.Sprintf("outcomes using %s strategy", strategy),
				ExperienceFilter{Axis: "strategy", Strategy: strategy},
				limit)
			if err != nil {
				return err
			}
			battery.strategy = results
			return nil
		}))
	}

	g.Go(run("surprise", func() error {
		results, err := a.searcher.SearchExperiences(gctx,
			fmt.Sprintf("unexpected outcomes in %s", domain),
			ExperienceFilter{Axis: "surprise", Domain: domain},
			limit)
		if err != nil {
			return err
		}
		battery.surprise = results
		return nil
	}))

	g.Go(run("root_cause", func() error {
		results, err := a.searcher.SearchExperiences(gctx,
			fmt.Sprintf("why hypotheses fail in %s", domain),
			ExperienceFilter{Axis: "root_cause", Domain: domain},
			limit)
		if err != nil {
			return err
		}
		battery.rootCause = results
		return nil
	}))

	g.Go(run("values", func() error {
		query := fmt.Sprintf("principles for %s", domain)
		if strategy != "" {
			query += fmt.Sprintf(" using %s", strategy)
		}
		results, err := a.searcher.SearchValues(gctx, query, valuesSearchLimit)
		if err != nil {
			return err
		}
		battery.values = results
		return nil
	}))

	_ = g.Wait()

	var items []ContextItem
	for _, r := range battery.full {
		items = append(items, experienceToItem(r, "full"))
	}
	for _, r := range battery.strategy {
		items = append(items, experienceToItem(r, "strategy"))
	}
	for _, r := range battery.surprise {
		items = append(items, experienceToItem(r, "surprise"))
	}
	for _, r := range battery.rootCause {
		items = append(items, experienceToItem(r, "root_cause"))
	}
	for _, r := range battery.values {
		items = append(items, valueToItem(r))
	}

	var expItems, valueItems []ContextItem
	for _, item := range items {
		switch item.Source {
		case SourceExperience:
			expItems = append(expItems, item)
		case SourceValue:
			valueItems = append(valueItems, item)
		}
	}

	markdown := assemblePremortemMarkdown(expItems, valueItems, domain, strategy)
	tokenCount := EstimateTokens(markdown)

	return &FormattedContext{
		Markdown:   markdown,
		Items:      items,
		TokenCount: tokenCount,
		SourcesUsed: map[string]int{
			TypeExperiences: len(expItems),
			TypeValues:      len(valueItems),
		},
		BudgetExceeded: tokenCount > maxTokens,
	}, nil
}
