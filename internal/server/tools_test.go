package server

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	appctx "mnemo/internal/context"
	"mnemo/internal/search"
	"mnemo/internal/store"
)

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// fakeAssembler records the last call and returns a canned result.
type fakeAssembler struct {
	lastQuery     string
	lastTypes     []string
	lastDomain    string
	lastStrategy  string
	lastLimit     int
	lastMaxTokens int
	result        *appctx.FormattedContext
	err           error
}

func (f *fakeAssembler) AssembleContext(_ context.Context, query string, contextTypes []string, limit, maxTokens int) (*appctx.FormattedContext, error) {
	f.lastQuery = query
	f.lastTypes = contextTypes
	f.lastLimit = limit
	f.lastMaxTokens = maxTokens
	return f.result, f.err
}

func (f *fakeAssembler) PremortemContext(_ context.Context, domain, strategy string, limit, maxTokens int) (*appctx.FormattedContext, error) {
	f.lastDomain = domain
	f.lastStrategy = strategy
	f.lastLimit = limit
	f.lastMaxTokens = maxTokens
	return f.result, f.err
}

// fakeSeeder records one call per method.
type fakeSeeder struct {
	memory     *search.Memory
	experience *search.Experience
	value      *search.Value
	commit     *search.Commit
	err        error
}

func (f *fakeSeeder) StoreMemory(_ context.Context, m search.Memory) (string, error) {
	f.memory = &m
	return "mem-id", f.err
}

func (f *fakeSeeder) StoreExperience(_ context.Context, e search.Experience) (string, error) {
	f.experience = &e
	return "ghap-id", f.err
}

func (f *fakeSeeder) StoreValue(_ context.Context, v search.Value) (string, error) {
	f.value = &v
	return "val-id", f.err
}

func (f *fakeSeeder) IndexCommit(_ context.Context, c search.Commit) (string, error) {
	f.commit = &c
	return c.SHA, f.err
}

func emptyResult() *appctx.FormattedContext {
	return &appctx.FormattedContext{
		Markdown:    "# Context\n",
		SourcesUsed: map[string]int{},
	}
}

func TestContextToolDefinition(t *testing.T) {
	tool := NewContextTool(&fakeAssembler{}, 10, 4000)
	def := tool.Definition()

	if def.Name != "assemble_context" {
		t.Errorf("tool name = %q", def.Name)
	}
	props := def.InputSchema.Properties
	for _, p := range []string{"query", "context_types", "limit", "max_tokens"} {
		if _, ok := props[p]; !ok {
			t.Errorf("missing %q parameter", p)
		}
	}
	if len(def.InputSchema.Required) != 1 || def.InputSchema.Required[0] != "query" {
		t.Errorf("required = %v, want [query]", def.InputSchema.Required)
	}
}

func TestContextToolRequiresQuery(t *testing.T) {
	tool := NewContextTool(&fakeAssembler{result: emptyResult()}, 10, 4000)

	for _, args := range []map[string]any{
		{},
		{"query": "   "},
	} {
		result, err := tool.Handle(context.Background(), makeReq(args))
		if err != nil {
			t.Fatalf("Handle() error: %v", err)
		}
		if !result.IsError {
			t.Error("expected a tool error for a missing query")
		}
	}
}

func TestContextToolDefaults(t *testing.T) {
	fake := &fakeAssembler{result: emptyResult()}
	tool := NewContextTool(fake, 10, 4000)

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"query": "add caching",
	}))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}

	if fake.lastQuery != "add caching" {
		t.Errorf("query = %q", fake.lastQuery)
	}
	if len(fake.lastTypes) != 2 || fake.lastTypes[0] != "values" || fake.lastTypes[1] != "experiences" {
		t.Errorf("default types = %v", fake.lastTypes)
	}
	if fake.lastLimit != 10 || fake.lastMaxTokens != 4000 {
		t.Errorf("defaults: limit=%d max_tokens=%d", fake.lastLimit, fake.lastMaxTokens)
	}
}

func TestContextToolBounds(t *testing.T) {
	tool := NewContextTool(&fakeAssembler{result: emptyResult()}, 10, 4000)

	tests := []map[string]any{
		{"query": "q", "limit": float64(0)},
		{"query": "q", "limit": float64(51)},
		{"query": "q", "max_tokens": float64(99)},
		{"query": "q", "max_tokens": float64(10001)},
	}
	for _, args := range tests {
		result, err := tool.Handle(context.Background(), makeReq(args))
		if err != nil {
			t.Fatalf("Handle() error: %v", err)
		}
		if !result.IsError {
			t.Errorf("expected bounds error for %v", args)
		}
	}
}

func TestContextToolPassesTypes(t *testing.T) {
	fake := &fakeAssembler{result: emptyResult()}
	tool := NewContextTool(fake, 10, 4000)

	_, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"query":         "q",
		"context_types": []any{"memories", "code"},
		"limit":         float64(5),
		"max_tokens":    float64(1000),
	}))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if len(fake.lastTypes) != 2 || fake.lastTypes[0] != "memories" {
		t.Errorf("types = %v", fake.lastTypes)
	}
	if fake.lastLimit != 5 || fake.lastMaxTokens != 1000 {
		t.Errorf("limit=%d max_tokens=%d", fake.lastLimit, fake.lastMaxTokens)
	}
}

func TestContextToolAssemblyError(t *testing.T) {
	tool := NewContextTool(&fakeAssembler{err: errors.New("boom")}, 10, 4000)

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{"query": "q"}))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if !result.IsError {
		t.Error("assembler failure should surface as a tool error")
	}
	if !strings.Contains(resultText(result), "boom") {
		t.Errorf("error text = %q", resultText(result))
	}
}

func TestContextToolRendersFooter(t *testing.T) {
	fake := &fakeAssembler{result: &appctx.FormattedContext{
		Markdown:       "# Context\n\nbody",
		TokenCount:     42,
		BudgetExceeded: true,
		TruncatedItems: []string{"big-1"},
		SourcesUsed:    map[string]int{"memories": 1},
	}}
	tool := NewContextTool(fake, 10, 4000)

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{"query": "q"}))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	text := resultText(result)
	if !strings.HasPrefix(text, "# Context") {
		t.Errorf("markdown missing: %q", text)
	}
	if !strings.Contains(text, "tokens: 42") || !strings.Contains(text, "budget exceeded") {
		t.Errorf("footer missing: %q", text)
	}
	if !strings.Contains(text, "truncated: big-1") {
		t.Errorf("truncation note missing: %q", text)
	}
}

func TestPremortemToolRequiresDomain(t *testing.T) {
	tool := NewPremortemTool(&fakeAssembler{result: emptyResult()}, 10, 4000)

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{}))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if !result.IsError {
		t.Error("expected a tool error for a missing domain")
	}
}

func TestPremortemToolPassesThrough(t *testing.T) {
	fake := &fakeAssembler{result: emptyResult()}
	tool := NewPremortemTool(fake, 10, 4000)

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"domain":   "caching",
		"strategy": "incremental",
		"limit":    float64(7),
	}))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}
	if fake.lastDomain != "caching" || fake.lastStrategy != "incremental" || fake.lastLimit != 7 {
		t.Errorf("passthrough: domain=%q strategy=%q limit=%d",
			fake.lastDomain, fake.lastStrategy, fake.lastLimit)
	}
}

func TestRememberTool(t *testing.T) {
	seeder := &fakeSeeder{}
	tool := NewRememberTool(seeder)

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"content":    "prefer smaller PRs",
		"category":   "workflow",
		"importance": float64(0.8),
	}))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}

	if seeder.memory == nil {
		t.Fatal("memory not stored")
	}
	if seeder.memory.Content != "prefer smaller PRs" || seeder.memory.Importance != 0.8 {
		t.Errorf("stored memory = %+v", seeder.memory)
	}
	if !strings.Contains(resultText(result), "mem-id") {
		t.Errorf("result should name the new ID: %q", resultText(result))
	}
}

func TestRememberToolValidation(t *testing.T) {
	tool := NewRememberTool(&fakeSeeder{})

	result, _ := tool.Handle(context.Background(), makeReq(map[string]any{}))
	if !result.IsError {
		t.Error("expected error for missing content")
	}

	result, _ = tool.Handle(context.Background(), makeReq(map[string]any{
		"content":    "x",
		"importance": float64(1.5),
	}))
	if !result.IsError {
		t.Error("expected error for out-of-range importance")
	}
}

func TestExperienceToolRequiredFields(t *testing.T) {
	tool := NewExperienceTool(&fakeSeeder{})

	result, _ := tool.Handle(context.Background(), makeReq(map[string]any{
		"domain": "caching",
		"goal":   "g",
		// hypothesis, action, prediction missing
	}))
	if !result.IsError {
		t.Error("expected error for missing GHAP fields")
	}
}

func TestExperienceTool(t *testing.T) {
	seeder := &fakeSeeder{}
	tool := NewExperienceTool(seeder)

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"domain":         "caching",
		"goal":           "reduce p99",
		"hypothesis":     "warmup helps",
		"action":         "added warmer",
		"prediction":     "p99 halves",
		"outcome_status": "falsified",
		"surprise":       "stampede",
	}))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}

	if seeder.experience == nil {
		t.Fatal("experience not stored")
	}
	if seeder.experience.OutcomeStatus != "falsified" || seeder.experience.Surprise != "stampede" {
		t.Errorf("stored experience = %+v", seeder.experience)
	}
	if !strings.Contains(resultText(result), "ghap-id") {
		t.Errorf("result should name the GHAP ID: %q", resultText(result))
	}
}

func TestValueTool(t *testing.T) {
	seeder := &fakeSeeder{}
	tool := NewValueTool(seeder)

	result, _ := tool.Handle(context.Background(), makeReq(map[string]any{
		"text": "prefer reversible changes",
		"axis": "strategy",
	}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}
	if seeder.value == nil || seeder.value.Axis != "strategy" {
		t.Errorf("stored value = %+v", seeder.value)
	}

	result, _ = tool.Handle(context.Background(), makeReq(map[string]any{}))
	if !result.IsError {
		t.Error("expected error for missing text")
	}
}

func TestCommitTool(t *testing.T) {
	seeder := &fakeSeeder{}
	tool := NewCommitTool(seeder)

	result, _ := tool.Handle(context.Background(), makeReq(map[string]any{
		"sha":           "0123456789abcdef",
		"message":       "Fix watcher race",
		"committed_at":  "2025-06-01T12:00:00Z",
		"files_changed": []any{"watcher.go"},
	}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(result))
	}

	if seeder.commit == nil {
		t.Fatal("commit not indexed")
	}
	if seeder.commit.CommittedAt.IsZero() {
		t.Error("committed_at not parsed")
	}
	if len(seeder.commit.FilesChanged) != 1 {
		t.Errorf("files = %v", seeder.commit.FilesChanged)
	}
}

func TestCommitToolValidation(t *testing.T) {
	tool := NewCommitTool(&fakeSeeder{})

	result, _ := tool.Handle(context.Background(), makeReq(map[string]any{"message": "m"}))
	if !result.IsError {
		t.Error("expected error for missing sha")
	}

	result, _ = tool.Handle(context.Background(), makeReq(map[string]any{
		"sha": "abc", "message": "m", "committed_at": "yesterday",
	}))
	if !result.IsError {
		t.Error("expected error for a bad timestamp")
	}
}

func TestCommitToolAlreadyIndexed(t *testing.T) {
	seeder := &fakeSeeder{err: store.ErrAlreadyExists}
	tool := NewCommitTool(seeder)

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{
		"sha": "abc", "message": "m",
	}))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if result.IsError {
		t.Error("re-indexing a known commit is not an error")
	}
	if !strings.Contains(resultText(result), "already indexed") {
		t.Errorf("result = %q", resultText(result))
	}
}
