package search

import (
	stdctx "context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appctx "mnemo/internal/context"
	"mnemo/internal/embedding"
	"mnemo/internal/logging"
	"mnemo/internal/store"
)

// Searcher answers the assembler's retrieval requests from the vector
// store. One instance backs all five sources.
type Searcher struct {
	store  store.VectorStore
	engine embedding.Engine
	log    *zap.Logger
}

// NewSearcher creates a Searcher over a store and an embedding engine.
func NewSearcher(st store.VectorStore, engine embedding.Engine) *Searcher {
	return &Searcher{
		store:  st,
		engine: engine,
		log:    logging.Named("search"),
	}
}

var _ appctx.Searcher = (*Searcher)(nil)

// embedQuery turns query text into a vector, short-circuiting blanks.
// Returns (nil, nil) for a blank query; callers answer empty without
// touching the store.
func (s *Searcher) embedQuery(ctx stdctx.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	vec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

// SearchMemories retrieves memory records most similar to query.
func (s *Searcher) SearchMemories(ctx stdctx.Context, query string, limit int) ([]appctx.MemoryResult, error) {
	vec, err := s.embedQuery(ctx, query)
	if err != nil || vec == nil {
		return nil, err
	}

	hits, err := s.store.Search(ctx, CollectionMemories, vec, nil, limit)
	if err != nil {
		return nil, err
	}

	results := make([]appctx.MemoryResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, appctx.MemoryResult{
			ID:         hit.ID,
			Category:   payloadString(hit.Payload, "category"),
			Content:    payloadString(hit.Payload, "content"),
			Score:      hit.Score,
			Importance: payloadFloat(hit.Payload, "importance"),
			Tags:       payloadStrings(hit.Payload, "tags"),
			CreatedAt:  payloadTime(hit.Payload, "created_at"),
		})
	}
	s.log.Debug("memory search", zap.Int("hits", len(results)))
	return results, nil
}

// SearchCode retrieves semantic code units most similar to query.
func (s *Searcher) SearchCode(ctx stdctx.Context, query string, limit int) ([]appctx.CodeResult, error) {
	vec, err := s.embedQuery(ctx, query)
	if err != nil || vec == nil {
		return nil, err
	}

	hits, err := s.store.Search(ctx, CollectionCode, vec, nil, limit)
	if err != nil {
		return nil, err
	}

	results := make([]appctx.CodeResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, appctx.CodeResult{
			ID:            hit.ID,
			Project:       payloadString(hit.Payload, "project"),
			FilePath:      payloadString(hit.Payload, "file_path"),
			Language:      payloadString(hit.Payload, "language"),
			UnitType:      payloadString(hit.Payload, "unit_type"),
			QualifiedName: payloadString(hit.Payload, "qualified_name"),
			Code:          payloadString(hit.Payload, "code"),
			Docstring:     payloadString(hit.Payload, "docstring"),
			Score:         hit.Score,
			StartLine:     payloadInt(hit.Payload, "start_line"),
			EndLine:       payloadInt(hit.Payload, "end_line"),
		})
	}
	s.log.Debug("code search", zap.Int("hits", len(results)))
	return results, nil
}

// SearchExperiences retrieves GHAP records from the axis collection named
// by the filter, applying the remaining fields as payload predicates.
func (s *Searcher) SearchExperiences(ctx stdctx.Context, query string, filter appctx.ExperienceFilter, limit int) ([]appctx.ExperienceResult, error) {
	collection, err := AxisCollection(filter.Axis)
	if err != nil {
		return nil, err
	}

	vec, err := s.embedQuery(ctx, query)
	if err != nil || vec == nil {
		return nil, err
	}

	predicates := store.Filter{}
	if filter.Domain != "" {
		predicates["domain"] = filter.Domain
	}
	if filter.Strategy != "" {
		predicates["strategy"] = filter.Strategy
	}
	if filter.Outcome != "" {
		predicates["outcome_status"] = filter.Outcome
	}

	hits, err := s.store.Search(ctx, collection, vec, predicates, limit)
	if err != nil {
		return nil, err
	}

	results := make([]appctx.ExperienceResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, decodeExperience(hit))
	}
	s.log.Debug("experience search",
		zap.String("collection", collection),
		zap.Int("hits", len(results)),
	)
	return results, nil
}

// SearchValues retrieves distilled value statements most similar to query.
func (s *Searcher) SearchValues(ctx stdctx.Context, query string, limit int) ([]appctx.ValueResult, error) {
	vec, err := s.embedQuery(ctx, query)
	if err != nil || vec == nil {
		return nil, err
	}

	hits, err := s.store.Search(ctx, CollectionValues, vec, nil, limit)
	if err != nil {
		return nil, err
	}

	results := make([]appctx.ValueResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, appctx.ValueResult{
			ID:            hit.ID,
			Axis:          payloadString(hit.Payload, "axis"),
			ClusterID:     payloadString(hit.Payload, "cluster_id"),
			Text:          payloadString(hit.Payload, "text"),
			Score:         hit.Score,
			MemberCount:   payloadInt(hit.Payload, "member_count"),
			AvgConfidence: payloadFloat(hit.Payload, "avg_confidence"),
			CreatedAt:     payloadTime(hit.Payload, "created_at"),
		})
	}
	s.log.Debug("value search", zap.Int("hits", len(results)))
	return results, nil
}

// SearchCommits retrieves indexed commits most similar to query.
func (s *Searcher) SearchCommits(ctx stdctx.Context, query string, limit int) ([]appctx.CommitResult, error) {
	vec, err := s.embedQuery(ctx, query)
	if err != nil || vec == nil {
		return nil, err
	}

	hits, err := s.store.Search(ctx, CollectionCommits, vec, nil, limit)
	if err != nil {
		return nil, err
	}

	results := make([]appctx.CommitResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, appctx.CommitResult{
			ID:           hit.ID,
			SHA:          payloadString(hit.Payload, "sha"),
			Message:      payloadString(hit.Payload, "message"),
			Author:       payloadString(hit.Payload, "author"),
			AuthorEmail:  payloadString(hit.Payload, "author_email"),
			CommittedAt:  payloadTime(hit.Payload, "committed_at"),
			FilesChanged: payloadStrings(hit.Payload, "files_changed"),
			Score:        hit.Score,
		})
	}
	s.log.Debug("commit search", zap.Int("hits", len(results)))
	return results, nil
}

func decodeExperience(hit store.SearchHit) appctx.ExperienceResult {
	result := appctx.ExperienceResult{
		ID:             hit.ID,
		GHAPID:         payloadString(hit.Payload, "ghap_id"),
		Axis:           payloadString(hit.Payload, "axis"),
		Domain:         payloadString(hit.Payload, "domain"),
		Strategy:       payloadString(hit.Payload, "strategy"),
		Goal:           payloadString(hit.Payload, "goal"),
		Hypothesis:     payloadString(hit.Payload, "hypothesis"),
		Action:         payloadString(hit.Payload, "action"),
		Prediction:     payloadString(hit.Payload, "prediction"),
		OutcomeStatus:  payloadString(hit.Payload, "outcome_status"),
		OutcomeResult:  payloadString(hit.Payload, "outcome_result"),
		Surprise:       payloadString(hit.Payload, "surprise"),
		ConfidenceTier: payloadString(hit.Payload, "confidence_tier"),
		IterationCount: payloadInt(hit.Payload, "iteration_count"),
		Score:          hit.Score,
		CreatedAt:      payloadTime(hit.Payload, "created_at"),
	}

	if desc := payloadString(hit.Payload, "root_cause_description"); desc != "" {
		result.RootCause = &appctx.RootCause{
			Category:    payloadString(hit.Payload, "root_cause_category"),
			Description: desc,
		}
	}
	worked := payloadString(hit.Payload, "lesson_what_worked")
	failed := payloadString(hit.Payload, "lesson_what_failed")
	transferable := payloadString(hit.Payload, "lesson_transferable")
	if worked != "" || failed != "" || transferable != "" {
		result.Lesson = &appctx.Lesson{
			WhatWorked:   worked,
			WhatFailed:   failed,
			Transferable: transferable,
		}
	}
	return result
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func payloadFloat(payload map[string]any, key string) float64 {
	switch v := payload[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func payloadStrings(payload map[string]any, key string) []string {
	switch v := payload[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func payloadTime(payload map[string]any, key string) time.Time {
	raw, ok := payload[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
