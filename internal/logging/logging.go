// Package logging configures the process-wide structured logger.
//
// Components take a *log.Logger from For at construction time. All loggers
// share one output that can be redirected later (log file, MCP mode) without
// rebuilding them.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// EnvDebug forces debug level when set to "1" or "true".
const EnvDebug = "SNIPDEX_DEBUG"

// Options controls Configure.
type Options struct {
	Level   string // debug, info, warn, error
	File    string // append to this file instead of stderr
	MCPMode bool   // stdout/stderr belong to the protocol; log only to File
}

type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

var (
	out     = &switchWriter{w: os.Stderr}
	mu      sync.Mutex
	root    = newRoot(initialLevel())
	logFile *os.File
	mcpMode bool
)

func newRoot(level log.Level) *log.Logger {
	return log.NewWithOptions(out, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
}

func initialLevel() log.Level {
	switch os.Getenv(EnvDebug) {
	case "1", "true":
		return log.DebugLevel
	}
	return log.InfoLevel
}

// For returns a logger whose lines carry the component prefix.
func For(component string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return root.WithPrefix(component)
}

// Root returns the unprefixed process logger.
func Root() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return root
}

// Configure applies level and destination. Loggers handed out afterwards use
// the new level; all loggers share the new destination immediately.
func Configure(opts Options) error {
	level := initialLevel()
	if opts.Level != "" && level != log.DebugLevel {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	mu.Lock()
	defer mu.Unlock()

	if err := closeFileLocked(); err != nil {
		return err
	}

	mcpMode = opts.MCPMode
	switch {
	case opts.File != "":
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		out.set(f)
	case opts.MCPMode:
		out.set(io.Discard)
	default:
		out.set(os.Stderr)
	}

	root.SetLevel(level)
	return nil
}

// SetOutput redirects every logger to w. Intended for tests.
func SetOutput(w io.Writer) {
	out.set(w)
}

// IsMCPMode reports whether Configure was called with MCPMode.
func IsMCPMode() bool {
	mu.Lock()
	defer mu.Unlock()
	return mcpMode
}

// Close releases the log file, if any, and restores stderr output.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	err := closeFileLocked()
	if mcpMode {
		out.set(io.Discard)
	} else {
		out.set(os.Stderr)
	}
	return err
}

func closeFileLocked() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}
