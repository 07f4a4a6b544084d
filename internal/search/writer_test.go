package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreMemory(t *testing.T) {
	st := &fakeStore{}
	w := NewWriter(st, newFakeEngine(3))

	id, err := w.StoreMemory(context.Background(), Memory{
		Content:    "prefer small diffs",
		Category:   "workflow",
		Importance: 0.7,
		Tags:       []string{"review"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	writes := st.writeCalls()
	require.Len(t, writes, 1)
	assert.Equal(t, CollectionMemories, writes[0].collection)
	assert.False(t, writes[0].strict, "memories are upserted")

	require.Len(t, writes[0].points, 1)
	p := writes[0].points[0]
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "prefer small diffs", p.Payload["content"])
	assert.Equal(t, "workflow", p.Payload["category"])
	assert.NotEmpty(t, p.Payload["created_at"])
	assert.Len(t, p.Vector, 3)
}

func TestStoreMemoryEmptyContent(t *testing.T) {
	w := NewWriter(&fakeStore{}, newFakeEngine(3))
	_, err := w.StoreMemory(context.Background(), Memory{Content: "  "})
	assert.Error(t, err)
}

func TestStoreExperienceAllAxes(t *testing.T) {
	st := &fakeStore{}
	w := NewWriter(st, newFakeEngine(3))

	ghapID, err := w.StoreExperience(context.Background(), Experience{
		Domain:               "caching",
		Strategy:             "incremental",
		Goal:                 "reduce p99",
		Hypothesis:           "cache warmup helps",
		Action:               "added warmer",
		Prediction:           "p99 halves",
		OutcomeStatus:        "falsified",
		OutcomeResult:        "stampede on restart",
		Surprise:             "stampede at low load",
		RootCauseCategory:    "concurrency",
		RootCauseDescription: "missing singleflight",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ghapID)

	writes := st.writeCalls()
	require.Len(t, writes, 4)

	collections := make([]string, len(writes))
	for i, wc := range writes {
		collections[i] = wc.collection
		require.Len(t, wc.points, 1)
		assert.Equal(t, ghapID, wc.points[0].Payload["ghap_id"],
			"every axis point carries the shared ghap_id")
	}
	assert.Equal(t, []string{
		CollectionGHAPFull,
		CollectionGHAPStrategy,
		CollectionGHAPSurprise,
		CollectionGHAPRootCause,
	}, collections)

	// Axis markers follow the target collection.
	assert.Equal(t, "full", writes[0].points[0].Payload["axis"])
	assert.Equal(t, "root_cause", writes[3].points[0].Payload["axis"])
}

func TestStoreExperienceMinimal(t *testing.T) {
	st := &fakeStore{}
	w := NewWriter(st, newFakeEngine(3))

	_, err := w.StoreExperience(context.Background(), Experience{
		Domain:     "api",
		Goal:       "add pagination",
		Hypothesis: "cursor beats offset",
		Action:     "implemented cursors",
		Prediction: "stable latency",
	})
	require.NoError(t, err)

	writes := st.writeCalls()
	require.Len(t, writes, 1, "no strategy/surprise/root_cause means full axis only")
	assert.Equal(t, CollectionGHAPFull, writes[0].collection)
}

func TestStoreExperienceKeepsProvidedGHAPID(t *testing.T) {
	st := &fakeStore{}
	w := NewWriter(st, newFakeEngine(3))

	ghapID, err := w.StoreExperience(context.Background(), Experience{
		GHAPID: "ghap-keep", Domain: "d", Goal: "g",
		Hypothesis: "h", Action: "a", Prediction: "p",
	})
	require.NoError(t, err)
	assert.Equal(t, "ghap-keep", ghapID)
}

func TestStoreExperienceRequiresGoal(t *testing.T) {
	w := NewWriter(&fakeStore{}, newFakeEngine(3))
	_, err := w.StoreExperience(context.Background(), Experience{Domain: "d"})
	assert.Error(t, err)
}

func TestStoreValue(t *testing.T) {
	st := &fakeStore{}
	w := NewWriter(st, newFakeEngine(3))

	id, err := w.StoreValue(context.Background(), Value{
		Axis:        "strategy",
		Text:        "prefer reversible steps",
		MemberCount: 5,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	writes := st.writeCalls()
	require.Len(t, writes, 1)
	assert.Equal(t, CollectionValues, writes[0].collection)
	assert.Equal(t, "prefer reversible steps", writes[0].points[0].Payload["text"])
}

func TestIndexCommit(t *testing.T) {
	st := &fakeStore{}
	w := NewWriter(st, newFakeEngine(3))

	sha, err := w.IndexCommit(context.Background(), Commit{
		SHA:          "0123456789abcdef",
		Message:      "Fix watcher race",
		Author:       "dev",
		FilesChanged: []string{"watcher.go"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef", sha)

	writes := st.writeCalls()
	require.Len(t, writes, 1)
	assert.Equal(t, CollectionCommits, writes[0].collection)
	assert.True(t, writes[0].strict, "commits are strictly inserted, keyed by sha")
	assert.Equal(t, "0123456789abcdef", writes[0].points[0].ID)
}

func TestIndexCommitValidation(t *testing.T) {
	w := NewWriter(&fakeStore{}, newFakeEngine(3))

	_, err := w.IndexCommit(context.Background(), Commit{Message: "m"})
	assert.Error(t, err)

	_, err = w.IndexCommit(context.Background(), Commit{SHA: "abc"})
	assert.Error(t, err)
}
