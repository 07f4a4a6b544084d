package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	appctx "mnemo/internal/context"
)

// Tool parameter bounds. Tighter than the engine's own limits: these guard
// the tool surface, the engine guards the math.
const (
	minLimit     = 1
	maxLimit     = 50
	minMaxTokens = 100
	maxMaxTokens = 10000
)

// defaultContextTypes is what an agent gets when it doesn't ask for
// specific sources: distilled principles plus concrete past experiences.
var defaultContextTypes = []string{"values", "experiences"}

// assembler is the engine capability the tools consume.
type assembler interface {
	AssembleContext(ctx context.Context, query string, contextTypes []string, limit, maxTokens int) (*appctx.FormattedContext, error)
	PremortemContext(ctx context.Context, domain, strategy string, limit, maxTokens int) (*appctx.FormattedContext, error)
}

// ContextTool handles the assemble_context MCP tool.
type ContextTool struct {
	assembler    assembler
	defaultLimit int
	defaultMax   int
}

// NewContextTool creates a ContextTool with the configured defaults.
func NewContextTool(a assembler, defaultLimit, defaultMaxTokens int) *ContextTool {
	return &ContextTool{
		assembler:    a,
		defaultLimit: defaultLimit,
		defaultMax:   defaultMaxTokens,
	}
}

// Definition returns the MCP tool definition for assemble_context.
func (t *ContextTool) Definition() mcp.Tool {
	return mcp.NewTool("assemble_context",
		mcp.WithDescription(
			"Assemble relevant context from memories, indexed code, past experiences, "+
				"distilled values, and git commits into a single markdown document that "+
				"fits a token budget. Use before starting work on a task.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What you are about to work on, in natural language"),
		),
		mcp.WithArray("context_types",
			mcp.Description("Sources to draw from: memories, code, experiences, values, commits (default: values, experiences)"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max results per source, %d-%d (default: %d)", minLimit, maxLimit, 10)),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description(fmt.Sprintf("Token budget for the assembled document, %d-%d (default: %d)", minMaxTokens, maxMaxTokens, 4000)),
		),
	)
}

// Handle processes an assemble_context call.
func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	contextTypes := stringSliceArg(req, "context_types", defaultContextTypes)
	limit := intArg(req, "limit", t.defaultLimit)
	maxTokens := intArg(req, "max_tokens", t.defaultMax)

	if limit < minLimit || limit > maxLimit {
		return mcp.NewToolResultError(fmt.Sprintf("'limit' must be between %d and %d, got %d", minLimit, maxLimit, limit)), nil
	}
	if maxTokens < minMaxTokens || maxTokens > maxMaxTokens {
		return mcp.NewToolResultError(fmt.Sprintf("'max_tokens' must be between %d and %d, got %d", minMaxTokens, maxMaxTokens, maxTokens)), nil
	}

	result, err := t.assembler.AssembleContext(ctx, query, contextTypes, limit, maxTokens)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("context assembly failed: %v", err)), nil
	}

	return mcp.NewToolResultText(renderResult(result)), nil
}

// renderResult appends a machine-readable footer to the assembled
// markdown so agents can see what they got without parsing the document.
func renderResult(result *appctx.FormattedContext) string {
	var b strings.Builder
	b.WriteString(result.Markdown)

	fmt.Fprintf(&b, "\n\n<!-- tokens: %d", result.TokenCount)
	if result.BudgetExceeded {
		b.WriteString(", budget exceeded")
	}
	if len(result.TruncatedItems) > 0 {
		fmt.Fprintf(&b, ", truncated: %s", strings.Join(result.TruncatedItems, ", "))
	}
	b.WriteString(" -->")
	return b.String()
}
