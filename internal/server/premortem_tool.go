package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// PremortemTool handles the get_premortem_context MCP tool.
type PremortemTool struct {
	assembler    assembler
	defaultLimit int
	defaultMax   int
}

// NewPremortemTool creates a PremortemTool with the configured defaults.
func NewPremortemTool(a assembler, defaultLimit, defaultMaxTokens int) *PremortemTool {
	return &PremortemTool{
		assembler:    a,
		defaultLimit: defaultLimit,
		defaultMax:   defaultMaxTokens,
	}
}

// Definition returns the MCP tool definition for get_premortem_context.
func (t *PremortemTool) Definition() mcp.Tool {
	return mcp.NewTool("get_premortem_context",
		mcp.WithDescription(
			"Surface what could go wrong before starting work in a domain: past "+
				"falsified experiences, surprising outcomes, recurring root causes, "+
				"and relevant principles.",
		),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Domain of the upcoming work, e.g. 'caching' or 'auth'"),
		),
		mcp.WithString("strategy",
			mcp.Description("Planned strategy; adds a strategy-performance section"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max results per query, %d-%d (default: %d)", minLimit, maxLimit, 10)),
		),
		mcp.WithNumber("max_tokens",
			mcp.Description(fmt.Sprintf("Soft token budget, %d-%d (default: %d)", minMaxTokens, maxMaxTokens, 4000)),
		),
	)
}

// Handle processes a get_premortem_context call.
func (t *PremortemTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domain := req.GetString("domain", "")
	if strings.TrimSpace(domain) == "" {
		return mcp.NewToolResultError("'domain' is required"), nil
	}

	strategy := req.GetString("strategy", "")
	limit := intArg(req, "limit", t.defaultLimit)
	maxTokens := intArg(req, "max_tokens", t.defaultMax)

	if limit < minLimit || limit > maxLimit {
		return mcp.NewToolResultError(fmt.Sprintf("'limit' must be between %d and %d, got %d", minLimit, maxLimit, limit)), nil
	}
	if maxTokens < minMaxTokens || maxTokens > maxMaxTokens {
		return mcp.NewToolResultError(fmt.Sprintf("'max_tokens' must be between %d and %d, got %d", minMaxTokens, maxMaxTokens, maxTokens)), nil
	}

	result, err := t.assembler.PremortemContext(ctx, domain, strategy, limit, maxTokens)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("premortem assembly failed: %v", err)), nil
	}

	return mcp.NewToolResultText(renderResult(result)), nil
}
