package server

import (
	stdctx "context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"mnemo/internal/config"
	appctx "mnemo/internal/context"
	"mnemo/internal/embedding"
	"mnemo/internal/logging"
	"mnemo/internal/search"
	"mnemo/internal/store"
)

// Version is reported in the MCP handshake and by the CLI.
const Version = "0.3.0"

// New wires the store, embedding engine, searcher, and assembler into an
// MCP server with all tools registered. The returned cleanup function
// closes the store and must be called on shutdown; it is always non-nil.
func New(cfg *config.Config) (*server.MCPServer, func(), error) {
	noop := func() {}
	log := logging.Named("server")

	engine, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, noop, fmt.Errorf("creating embedding engine: %w", err)
	}

	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}
	cleanup := func() { _ = st.Close() }

	if err := search.EnsureCollections(stdctx.Background(), st, engine); err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("ensuring collections: %w", err)
	}

	searcher := search.NewSearcher(st, engine)
	writer := search.NewWriter(st, engine)
	asm := appctx.NewAssemblerWithConfig(searcher, cfg.Context.DedupConfig())

	s := server.NewMCPServer(
		"mnemo",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(
			"mnemo assembles budgeted context from past memories, code, experiences, "+
				"values, and commits. Call assemble_context before starting a task and "+
				"get_premortem_context before risky work; seed collections with "+
				"remember, record_experience, record_value, and index_commit.",
		),
	)

	contextTool := NewContextTool(asm, cfg.Context.DefaultLimit, cfg.Context.DefaultMaxTokens)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	premortemTool := NewPremortemTool(asm, cfg.Context.DefaultLimit, cfg.Context.DefaultMaxTokens)
	s.AddTool(premortemTool.Definition(), premortemTool.Handle)

	rememberTool := NewRememberTool(writer)
	s.AddTool(rememberTool.Definition(), rememberTool.Handle)

	experienceTool := NewExperienceTool(writer)
	s.AddTool(experienceTool.Definition(), experienceTool.Handle)

	valueTool := NewValueTool(writer)
	s.AddTool(valueTool.Definition(), valueTool.Handle)

	commitTool := NewCommitTool(writer)
	s.AddTool(commitTool.Definition(), commitTool.Handle)

	log.Info("mcp server ready",
		zap.String("version", Version),
		zap.String("embedding", engine.Name()),
		zap.String("database", cfg.Storage.DatabasePath),
	)
	return s, cleanup, nil
}

// ServeStdio runs the server on stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
