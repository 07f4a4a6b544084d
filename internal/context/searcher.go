package context

import (
	"context"
	"time"
)

// Searcher is the retrieval capability the assembler consumes. One
// implementation backs all five sources; retry and timeout policy belongs
// to the implementation, never to the assembler.
type Searcher interface {
	SearchMemories(ctx context.Context, query string, limit int) ([]MemoryResult, error)
	SearchCode(ctx context.Context, query string, limit int) ([]CodeResult, error)
	SearchExperiences(ctx context.Context, query string, filter ExperienceFilter, limit int) ([]ExperienceResult, error)
	SearchValues(ctx context.Context, query string, limit int) ([]ValueResult, error)
	SearchCommits(ctx context.Context, query string, limit int) ([]CommitResult, error)
}

// ExperienceFilter narrows an experience search. Axis selects which
// embedding space is queried; the remaining fields are payload filters and
// may be empty.
type ExperienceFilter struct {
	Axis     string
	Domain   string
	Strategy string
	Outcome  string
}

// MemoryResult is one hit from the short-term memory collection.
type MemoryResult struct {
	ID         string
	Category   string
	Content    string
	Score      float64
	Importance float64
	Tags       []string
	CreatedAt  time.Time
}

// CodeResult is one semantic code unit from the code index.
type CodeResult struct {
	ID            string
	Project       string
	FilePath      string
	Language      string
	UnitType      string
	QualifiedName string
	Code          string
	Docstring     string
	Score         float64
	StartLine     int
	EndLine       int
}

// Lesson is the distilled takeaway attached to a resolved experience.
type Lesson struct {
	WhatWorked   string
	WhatFailed   string
	Transferable string
}

// RootCause explains why an experience's prediction failed.
type RootCause struct {
	Category    string
	Description string
}

// ExperienceResult is one structured GHAP (Goal/Hypothesis/Action/
// Prediction) record from an experience collection.
type ExperienceResult struct {
	ID             string
	GHAPID         string
	Axis           string
	Domain         string
	Strategy       string
	Goal           string
	Hypothesis     string
	Action         string
	Prediction     string
	OutcomeStatus  string
	OutcomeResult  string
	Surprise       string
	RootCause      *RootCause
	Lesson         *Lesson
	ConfidenceTier string
	IterationCount int
	Score          float64
	CreatedAt      time.Time
}

// ValueResult is one distilled value statement from the values collection.
type ValueResult struct {
	ID            string
	Axis          string
	ClusterID     string
	Text          string
	Score         float64
	MemberCount   int
	AvgConfidence float64
	CreatedAt     time.Time
}

// CommitResult is one indexed git commit.
type CommitResult struct {
	ID           string
	SHA          string
	Message      string
	Author       string
	AuthorEmail  string
	CommittedAt  time.Time
	FilesChanged []string
	Score        float64
}
