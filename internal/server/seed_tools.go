package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"mnemo/internal/search"
	"mnemo/internal/store"
)

// seeder is the write capability the seeding tools consume.
type seeder interface {
	StoreMemory(ctx context.Context, m search.Memory) (string, error)
	StoreExperience(ctx context.Context, e search.Experience) (string, error)
	StoreValue(ctx context.Context, v search.Value) (string, error)
	IndexCommit(ctx context.Context, c search.Commit) (string, error)
}

// RememberTool handles the remember MCP tool.
type RememberTool struct {
	writer seeder
}

// NewRememberTool creates a RememberTool.
func NewRememberTool(w seeder) *RememberTool {
	return &RememberTool{writer: w}
}

// Definition returns the MCP tool definition for remember.
func (t *RememberTool) Definition() mcp.Tool {
	return mcp.NewTool("remember",
		mcp.WithDescription("Store a memory for later retrieval by assemble_context."),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The fact or observation to remember"),
		),
		mcp.WithString("category",
			mcp.Description("Category, e.g. technical, workflow, preference"),
		),
		mcp.WithNumber("importance",
			mcp.Description("Importance in [0,1] (default: 0.5)"),
		),
	)
}

// Handle processes a remember call.
func (t *RememberTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := req.GetString("content", "")
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("'content' is required"), nil
	}

	importance := floatArg(req, "importance", 0.5)
	if importance < 0 || importance > 1 {
		return mcp.NewToolResultError(fmt.Sprintf("'importance' must be in [0,1], got %g", importance)), nil
	}

	id, err := t.writer.StoreMemory(ctx, search.Memory{
		Content:    content,
		Category:   req.GetString("category", "general"),
		Importance: importance,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Memory stored with ID %s", id)), nil
}

// ExperienceTool handles the record_experience MCP tool.
type ExperienceTool struct {
	writer seeder
}

// NewExperienceTool creates an ExperienceTool.
func NewExperienceTool(w seeder) *ExperienceTool {
	return &ExperienceTool{writer: w}
}

// Definition returns the MCP tool definition for record_experience.
func (t *ExperienceTool) Definition() mcp.Tool {
	return mcp.NewTool("record_experience",
		mcp.WithDescription(
			"Record a completed goal/hypothesis/action/prediction cycle with its "+
				"outcome so future context assembly can learn from it.",
		),
		mcp.WithString("domain", mcp.Required(), mcp.Description("Domain of the work")),
		mcp.WithString("goal", mcp.Required(), mcp.Description("What you set out to do")),
		mcp.WithString("hypothesis", mcp.Required(), mcp.Description("What you believed would work")),
		mcp.WithString("action", mcp.Required(), mcp.Description("What you actually did")),
		mcp.WithString("prediction", mcp.Required(), mcp.Description("What you expected to happen")),
		mcp.WithString("outcome_status",
			mcp.Description("validated, falsified, or inconclusive"),
		),
		mcp.WithString("outcome_result", mcp.Description("What actually happened")),
		mcp.WithString("strategy", mcp.Description("Strategy used, if any")),
		mcp.WithString("surprise", mcp.Description("Anything unexpected, if any")),
		mcp.WithString("root_cause", mcp.Description("Why the prediction failed, if it did")),
		mcp.WithString("lesson", mcp.Description("What worked, for next time")),
	)
}

// Handle processes a record_experience call.
func (t *ExperienceTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	for _, key := range []string{"domain", "goal", "hypothesis", "action", "prediction"} {
		if strings.TrimSpace(req.GetString(key, "")) == "" {
			return mcp.NewToolResultError(fmt.Sprintf("'%s' is required", key)), nil
		}
	}

	ghapID, err := t.writer.StoreExperience(ctx, search.Experience{
		Domain:               req.GetString("domain", ""),
		Strategy:             req.GetString("strategy", ""),
		Goal:                 req.GetString("goal", ""),
		Hypothesis:           req.GetString("hypothesis", ""),
		Action:               req.GetString("action", ""),
		Prediction:           req.GetString("prediction", ""),
		OutcomeStatus:        req.GetString("outcome_status", "inconclusive"),
		OutcomeResult:        req.GetString("outcome_result", ""),
		Surprise:             req.GetString("surprise", ""),
		RootCauseDescription: req.GetString("root_cause", ""),
		LessonWhatWorked:     req.GetString("lesson", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Experience recorded with GHAP ID %s", ghapID)), nil
}

// ValueTool handles the record_value MCP tool.
type ValueTool struct {
	writer seeder
}

// NewValueTool creates a ValueTool.
func NewValueTool(w seeder) *ValueTool {
	return &ValueTool{writer: w}
}

// Definition returns the MCP tool definition for record_value.
func (t *ValueTool) Definition() mcp.Tool {
	return mcp.NewTool("record_value",
		mcp.WithDescription("Record a distilled principle or value statement."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The principle, stated plainly")),
		mcp.WithString("axis", mcp.Description("Facet the principle belongs to, e.g. strategy")),
	)
}

// Handle processes a record_value call.
func (t *ValueTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	id, err := t.writer.StoreValue(ctx, search.Value{
		Text:        text,
		Axis:        req.GetString("axis", "general"),
		MemberCount: 1,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("store failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Value recorded with ID %s", id)), nil
}

// CommitTool handles the index_commit MCP tool.
type CommitTool struct {
	writer seeder
}

// NewCommitTool creates a CommitTool.
func NewCommitTool(w seeder) *CommitTool {
	return &CommitTool{writer: w}
}

// Definition returns the MCP tool definition for index_commit.
func (t *CommitTool) Definition() mcp.Tool {
	return mcp.NewTool("index_commit",
		mcp.WithDescription("Index a git commit for retrieval by assemble_context."),
		mcp.WithString("sha", mcp.Required(), mcp.Description("Full commit SHA")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Commit message")),
		mcp.WithString("author", mcp.Description("Author name")),
		mcp.WithString("committed_at", mcp.Description("Commit timestamp, RFC3339")),
		mcp.WithArray("files_changed",
			mcp.Description("Paths touched by the commit"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// Handle processes an index_commit call.
func (t *CommitTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sha := req.GetString("sha", "")
	message := req.GetString("message", "")
	if strings.TrimSpace(sha) == "" {
		return mcp.NewToolResultError("'sha' is required"), nil
	}
	if strings.TrimSpace(message) == "" {
		return mcp.NewToolResultError("'message' is required"), nil
	}

	var committedAt time.Time
	if raw := req.GetString("committed_at", ""); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("'committed_at' must be RFC3339: %v", err)), nil
		}
		committedAt = parsed
	}

	_, err := t.writer.IndexCommit(ctx, search.Commit{
		SHA:          sha,
		Message:      message,
		Author:       req.GetString("author", ""),
		CommittedAt:  committedAt,
		FilesChanged: stringSliceArg(req, "files_changed", nil),
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return mcp.NewToolResultText(fmt.Sprintf("Commit %s is already indexed", sha)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("index failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Commit %s indexed", sha)), nil
}
