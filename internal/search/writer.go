package search

import (
	stdctx "context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mnemo/internal/embedding"
	"mnemo/internal/logging"
	"mnemo/internal/store"
)

// Writer owns the seeding path: it embeds incoming records and persists
// them into their collections. Reads happen through Searcher.
type Writer struct {
	store  store.VectorStore
	engine embedding.Engine
	log    *zap.Logger
	now    func() time.Time
}

// NewWriter creates a Writer over a store and an embedding engine.
func NewWriter(st store.VectorStore, engine embedding.Engine) *Writer {
	return &Writer{
		store:  st,
		engine: engine,
		log:    logging.Named("writer"),
		now:    time.Now,
	}
}

// Memory is an incoming memory record.
type Memory struct {
	Content    string
	Category   string
	Importance float64
	Tags       []string
}

// StoreMemory persists a memory and returns its generated ID.
func (w *Writer) StoreMemory(ctx stdctx.Context, m Memory) (string, error) {
	if strings.TrimSpace(m.Content) == "" {
		return "", fmt.Errorf("memory content must not be empty")
	}

	vec, err := w.engine.Embed(ctx, m.Content)
	if err != nil {
		return "", fmt.Errorf("embed memory: %w", err)
	}

	id := uuid.NewString()
	point := store.Point{
		ID:     id,
		Vector: vec,
		Payload: map[string]any{
			"content":    m.Content,
			"category":   m.Category,
			"importance": m.Importance,
			"tags":       m.Tags,
			"created_at": w.now().UTC().Format(time.RFC3339),
		},
	}
	if err := w.store.Upsert(ctx, CollectionMemories, point); err != nil {
		return "", err
	}

	w.log.Info("memory stored", zap.String("id", id), zap.String("category", m.Category))
	return id, nil
}

// Experience is an incoming GHAP record. One call indexes it into every
// axis collection that has material: full always, strategy when a strategy
// is named, surprise and root_cause when those fields are present.
type Experience struct {
	GHAPID         string
	Domain         string
	Strategy       string
	Goal           string
	Hypothesis     string
	Action         string
	Prediction     string
	OutcomeStatus  string
	OutcomeResult  string
	Surprise       string
	RootCauseCategory    string
	RootCauseDescription string
	LessonWhatWorked     string
	LessonWhatFailed     string
	LessonTransferable   string
	ConfidenceTier string
	IterationCount int
}

// StoreExperience persists an experience across its axis collections and
// returns the GHAP ID (generated when absent).
func (w *Writer) StoreExperience(ctx stdctx.Context, e Experience) (string, error) {
	if strings.TrimSpace(e.Goal) == "" {
		return "", fmt.Errorf("experience goal must not be empty")
	}
	if e.GHAPID == "" {
		e.GHAPID = uuid.NewString()
	}

	type axisEntry struct {
		collection string
		axis       string
		text       string
	}
	entries := []axisEntry{
		{CollectionGHAPFull, "full", fullGHAPText(e)},
	}
	if e.Strategy != "" {
		entries = append(entries, axisEntry{
			CollectionGHAPStrategy, "strategy",
			fmt.Sprintf("%s strategy in %s: %s", e.Strategy, e.Domain, e.OutcomeResult),
		})
	}
	if e.Surprise != "" {
		entries = append(entries, axisEntry{CollectionGHAPSurprise, "surprise", e.Surprise})
	}
	if e.RootCauseDescription != "" {
		entries = append(entries, axisEntry{CollectionGHAPRootCause, "root_cause", e.RootCauseDescription})
	}

	texts := make([]string, len(entries))
	for i, entry := range entries {
		texts[i] = entry.text
	}
	vectors, err := w.engine.EmbedBatch(ctx, texts)
	if err != nil {
		return "", fmt.Errorf("embed experience axes: %w", err)
	}

	createdAt := w.now().UTC().Format(time.RFC3339)
	for i, entry := range entries {
		payload := experiencePayload(e, entry.axis, createdAt)
		point := store.Point{ID: uuid.NewString(), Vector: vectors[i], Payload: payload}
		if err := w.store.Upsert(ctx, entry.collection, point); err != nil {
			return "", err
		}
	}

	w.log.Info("experience stored",
		zap.String("ghap_id", e.GHAPID),
		zap.String("domain", e.Domain),
		zap.Int("axes", len(entries)),
	)
	return e.GHAPID, nil
}

// Value is an incoming distilled value statement.
type Value struct {
	Axis          string
	ClusterID     string
	Text          string
	MemberCount   int
	AvgConfidence float64
}

// StoreValue persists a value statement and returns its generated ID.
func (w *Writer) StoreValue(ctx stdctx.Context, v Value) (string, error) {
	if strings.TrimSpace(v.Text) == "" {
		return "", fmt.Errorf("value text must not be empty")
	}

	vec, err := w.engine.Embed(ctx, v.Text)
	if err != nil {
		return "", fmt.Errorf("embed value: %w", err)
	}

	id := uuid.NewString()
	point := store.Point{
		ID:     id,
		Vector: vec,
		Payload: map[string]any{
			"axis":           v.Axis,
			"cluster_id":     v.ClusterID,
			"text":           v.Text,
			"member_count":   v.MemberCount,
			"avg_confidence": v.AvgConfidence,
			"created_at":     w.now().UTC().Format(time.RFC3339),
		},
	}
	if err := w.store.Upsert(ctx, CollectionValues, point); err != nil {
		return "", err
	}

	w.log.Info("value stored", zap.String("id", id), zap.String("axis", v.Axis))
	return id, nil
}

// Commit is an incoming git commit to index.
type Commit struct {
	SHA          string
	Message      string
	Author       string
	AuthorEmail  string
	CommittedAt  time.Time
	FilesChanged []string
}

// IndexCommit persists a commit keyed by its SHA. Indexing the same commit
// twice fails with store.ErrAlreadyExists.
func (w *Writer) IndexCommit(ctx stdctx.Context, c Commit) (string, error) {
	if strings.TrimSpace(c.SHA) == "" {
		return "", fmt.Errorf("commit sha must not be empty")
	}
	if strings.TrimSpace(c.Message) == "" {
		return "", fmt.Errorf("commit message must not be empty")
	}

	text := c.Message
	if len(c.FilesChanged) > 0 {
		text += "\n" + strings.Join(c.FilesChanged, " ")
	}
	vec, err := w.engine.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed commit: %w", err)
	}

	committedAt := ""
	if !c.CommittedAt.IsZero() {
		committedAt = c.CommittedAt.UTC().Format(time.RFC3339)
	}
	point := store.Point{
		ID:     c.SHA,
		Vector: vec,
		Payload: map[string]any{
			"sha":           c.SHA,
			"message":       c.Message,
			"author":        c.Author,
			"author_email":  c.AuthorEmail,
			"committed_at":  committedAt,
			"files_changed": c.FilesChanged,
		},
	}
	if err := w.store.Insert(ctx, CollectionCommits, point); err != nil {
		return "", err
	}

	w.log.Info("commit indexed", zap.String("sha", c.SHA))
	return c.SHA, nil
}

// fullGHAPText is the embedding text for the full axis: the whole record
// narrative, so similar situations retrieve whole experiences.
func fullGHAPText(e Experience) string {
	parts := []string{
		"Domain: " + e.Domain,
		"Goal: " + e.Goal,
		"Hypothesis: " + e.Hypothesis,
		"Action: " + e.Action,
		"Prediction: " + e.Prediction,
	}
	if e.OutcomeStatus != "" {
		parts = append(parts, "Outcome: "+e.OutcomeStatus+" - "+e.OutcomeResult)
	}
	return strings.Join(parts, "\n")
}

func experiencePayload(e Experience, axis, createdAt string) map[string]any {
	return map[string]any{
		"ghap_id":                e.GHAPID,
		"axis":                   axis,
		"domain":                 e.Domain,
		"strategy":               e.Strategy,
		"goal":                   e.Goal,
		"hypothesis":             e.Hypothesis,
		"action":                 e.Action,
		"prediction":             e.Prediction,
		"outcome_status":         e.OutcomeStatus,
		"outcome_result":         e.OutcomeResult,
		"surprise":               e.Surprise,
		"root_cause_category":    e.RootCauseCategory,
		"root_cause_description": e.RootCauseDescription,
		"lesson_what_worked":     e.LessonWhatWorked,
		"lesson_what_failed":     e.LessonWhatFailed,
		"lesson_transferable":    e.LessonTransferable,
		"confidence_tier":        e.ConfidenceTier,
		"iteration_count":        e.IterationCount,
		"created_at":             createdAt,
	}
}
