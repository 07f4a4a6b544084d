// Package logging owns the process-wide structured logger for mnemo.
// Components obtain named child loggers via Named; until Init is called
// every logger is a no-op, which keeps library use (and tests) silent.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Init configures the global logger. level is one of debug/info/warn/error.
// When jsonFormat is false, output uses the human-readable console encoder.
func Init(level string, jsonFormat bool) error {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info", "":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	cfg := zap.NewProductionConfig()
	if !jsonFormat {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	// MCP servers speak JSON-RPC on stdout; logs must stay on stderr.
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	mu.Lock()
	root = logger
	mu.Unlock()
	return nil
}

// L returns the global logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// Named returns a child logger tagged with the component name.
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Sync flushes buffered log entries. Safe to call on a no-op logger.
func Sync() {
	_ = L().Sync()
}
