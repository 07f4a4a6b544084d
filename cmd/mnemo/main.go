package main

import (
	stdctx "context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mnemo/internal/config"
	appctx "mnemo/internal/context"
	"mnemo/internal/embedding"
	"mnemo/internal/logging"
	"mnemo/internal/search"
	"mnemo/internal/server"
	"mnemo/internal/store"
)

var (
	// Global flags
	configPath string
	logLevel   string
	jsonLogs   bool

	// Per-command flags
	contextTypes []string
	strategy     string
	limit        int
	maxTokens    int

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "mnemo - context assembly engine for coding agents",
	Long: `mnemo retrieves memories, indexed code, past experiences, distilled
values, and git commits relevant to a task, deduplicates them across
sources, and packs them into a token-budgeted markdown document.

Run 'mnemo serve' to expose the engine as an MCP server on stdio, or
use 'mnemo context' and 'mnemo premortem' for one-shot queries.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Server.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		if err := logging.Init(level, jsonLogs || cfg.Server.LogFormat == "json"); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// serveCmd runs the MCP server on stdio
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over MCP on stdin/stdout",
	Long: `Starts an MCP server speaking JSON-RPC on stdio, exposing
assemble_context, get_premortem_context, remember, record_experience,
record_value, and index_commit. Logs go to stderr.`,
	RunE: runServe,
}

// contextCmd assembles context for a query and prints the markdown
var contextCmd = &cobra.Command{
	Use:   "context [query]",
	Short: "Assemble budgeted context for a task and print it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runContext,
}

// premortemCmd surfaces failure modes for a domain
var premortemCmd = &cobra.Command{
	Use:   "premortem [domain]",
	Short: "Surface past failures and principles for a domain",
	Long: `Queries falsified experiences, surprising outcomes, recurring root
causes, and relevant principles for the given domain, and prints them
as a premortem briefing.`,
	Args: cobra.ExactArgs(1),
	RunE: runPremortem,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mnemo version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mnemo", server.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: ~/.mnemo/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit logs as JSON")

	contextCmd.Flags().StringSliceVar(&contextTypes, "types", []string{"values", "experiences"},
		"sources to draw from: memories, code, experiences, values, commits")
	contextCmd.Flags().IntVar(&limit, "limit", 0, "max results per source (default from config)")
	contextCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "token budget (default from config)")

	premortemCmd.Flags().StringVar(&strategy, "strategy", "", "planned strategy, adds a strategy-performance section")
	premortemCmd.Flags().IntVar(&limit, "limit", 0, "max results per query (default from config)")
	premortemCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "token budget (default from config)")

	rootCmd.AddCommand(serveCmd, contextCmd, premortemCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	s, cleanup, err := server.New(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// ServeStdio returns when the client disconnects; SIGINT/SIGTERM also
	// end the process, so make sure the store is closed on the way out.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cleanup()
		logging.Sync()
		os.Exit(0)
	}()

	return server.ServeStdio(s)
}

// newAssembler wires the retrieval stack for one-shot commands.
func newAssembler() (*appctx.Assembler, func(), error) {
	engine, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedding engine: %w", err)
	}
	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	cleanup := func() { _ = st.Close() }

	if err := search.EnsureCollections(stdctx.Background(), st, engine); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("ensuring collections: %w", err)
	}

	searcher := search.NewSearcher(st, engine)
	return appctx.NewAssemblerWithConfig(searcher, cfg.Context.DedupConfig()), cleanup, nil
}

func effectiveLimits() (int, int) {
	l, m := cfg.Context.DefaultLimit, cfg.Context.DefaultMaxTokens
	if limit > 0 {
		l = limit
	}
	if maxTokens > 0 {
		m = maxTokens
	}
	return l, m
}

func runContext(cmd *cobra.Command, args []string) error {
	asm, cleanup, err := newAssembler()
	if err != nil {
		return err
	}
	defer cleanup()

	l, m := effectiveLimits()
	result, err := asm.AssembleContext(cmd.Context(), strings.Join(args, " "), contextTypes, l, m)
	if err != nil {
		return err
	}

	fmt.Println(result.Markdown)
	if result.BudgetExceeded {
		fmt.Fprintf(os.Stderr, "note: budget exceeded, %d item(s) truncated\n", len(result.TruncatedItems))
	}
	return nil
}

func runPremortem(cmd *cobra.Command, args []string) error {
	asm, cleanup, err := newAssembler()
	if err != nil {
		return err
	}
	defer cleanup()

	l, m := effectiveLimits()
	result, err := asm.PremortemContext(cmd.Context(), args[0], strategy, l, m)
	if err != nil {
		return err
	}

	fmt.Println(result.Markdown)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
