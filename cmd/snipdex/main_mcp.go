package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/snipdex/internal/logging"
	"github.com/standardbeagle/snipdex/internal/mcp"
)

// mcpCommand serves MCP on stdio. The workspace watches the project so the
// view stays current for the life of the session.
func mcpCommand(c *cli.Context) error {
	logger := logging.For("mcp")

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws, err := openWorkspace(c, true)
	if err != nil {
		return fmt.Errorf("failed to open workspace: %w", err)
	}
	defer ws.Close()

	err = mcp.NewServer(ws).Run(ctx)
	if err != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("MCP server error: %w", err)
	}
	logger.Info("MCP session ended")
	return nil
}
