// Package server exposes context assembly and collection seeding as MCP
// tools over stdio.
//
// Each tool follows the same pattern: a struct with its dependencies
// injected via constructor, Definition() returning the mcp.Tool schema,
// and Handle() processing the request. Validation failures are returned as
// tool errors, never as Go errors, so the client sees the message.
package server

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers arrive as float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// floatArg extracts a float argument.
func floatArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}

// stringSliceArg extracts a string-array argument, returning defaultVal
// when missing. Non-string elements are skipped.
func stringSliceArg(req mcp.CallToolRequest, key string, defaultVal []string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return defaultVal
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
