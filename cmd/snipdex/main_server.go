package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/snipdex/internal/server"
)

// serverCommand runs the workspace with watchers enabled and serves it on the
// project's unix socket until a signal or a shutdown request arrives.
func serverCommand(c *cli.Context) error {
	out := c.App.Writer

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws, err := openWorkspace(c, true)
	if err != nil {
		return err
	}
	defer ws.Close()

	srv := server.New(ws)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	fmt.Fprintf(out, "snipdex server started\n")
	fmt.Fprintf(out, "Socket: %s\n", srv.SocketPath())
	fmt.Fprintf(out, "Root: %s\n", ws.Config().Project.Root)
	fmt.Fprintf(out, "\nUse 'snipdex shutdown' to stop the server\n")

	select {
	case <-ctx.Done():
		fmt.Fprintln(out, "\nReceived signal, shutting down...")
	case <-srv.Done():
		fmt.Fprintln(out, "Server shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	fmt.Fprintln(out, "Server shut down cleanly")
	return nil
}

// shutdownCommand sends a shutdown request to the running server
func shutdownCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	client := runningServer(cfg)
	if client == nil {
		return fmt.Errorf("no server is running for root: %s", cfg.Project.Root)
	}
	defer client.Close()

	fmt.Fprintf(c.App.Writer, "Shutting down server for root: %s\n", cfg.Project.Root)
	if err := client.Shutdown(c.Context, c.Bool("force")); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for client.IsServerRunning() {
		if time.Now().After(deadline) {
			return fmt.Errorf("server did not shut down")
		}
		time.Sleep(50 * time.Millisecond)
	}

	fmt.Fprintln(c.App.Writer, "Server shut down successfully")
	return nil
}
