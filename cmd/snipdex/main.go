package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/snipdex/internal/config"
	"github.com/standardbeagle/snipdex/internal/logging"
	"github.com/standardbeagle/snipdex/internal/server"
	"github.com/standardbeagle/snipdex/internal/version"
	"github.com/standardbeagle/snipdex/internal/workspace"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	rootFlag := c.String("root")

	// With --root and the default config name, look for the config in that root
	if rootFlag != "" && configPath == config.ConfigFileName {
		configPath = filepath.Join(rootFlag, config.ConfigFileName)
	}

	cfg, err := config.LoadWithRoot(configPath, rootFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %s: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
		cfg.Project.Name = filepath.Base(absRoot)
	}
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if file := c.String("log-file"); file != "" {
		cfg.Log.File = file
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := logging.Configure(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		MCPMode: logging.IsMCPMode(),
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openWorkspace loads the configuration and runs the initial scan. watch keeps
// the corpus and catalog watchers running until the workspace is closed.
func openWorkspace(c *cli.Context, watch bool) (*workspace.Workspace, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := ws.Start(c.Context, watch); err != nil {
		ws.Close()
		return nil, fmt.Errorf("initial scan failed: %w", err)
	}
	return ws, nil
}

// runningServer returns a client for the server serving the configured root,
// or nil when none answers.
func runningServer(cfg *config.Config) *server.Client {
	socketPath := cfg.Server.SocketPath
	if socketPath == "" {
		socketPath = server.GetSocketPathForRoot(cfg.Project.Root)
	}
	client := server.NewClientWithSocket(socketPath)
	if !client.IsServerRunning() {
		client.Close()
		return nil
	}
	return client
}

// configureLogging applies the flag settings before any config is read. On
// stdio MCP, stdout carries the protocol so logs are discarded unless a file
// is named.
func configureLogging(c *cli.Context, mcpMode bool) error {
	return logging.Configure(logging.Options{
		Level:   c.String("log-level"),
		File:    c.String("log-file"),
		MCPMode: mcpMode,
	})
}

func newApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:                   "snipdex",
		Usage:                  "Snippet catalog and usage report for Lua projects",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Writer:                 out,
		ErrWriter:              errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file",
				Value:   config.ConfigFileName,
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Corpus glob patterns (replace the configured ones)",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Additional exclusion glob patterns",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"SNIPDEX_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to this file instead of stderr",
			},
			&cli.BoolFlag{
				Name:  "color",
				Usage: "Style terminal output",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "report",
				Aliases: []string{"r"},
				Usage:   "Show snippet usage grouped by module",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
					&cli.BoolFlag{Name: "compact", Usage: "One line per module"},
					&cli.IntFlag{Name: "max-entries", Aliases: []string{"m"}, Usage: "Entries per module (0 = all)"},
					&cli.BoolFlag{Name: "descriptions", Aliases: []string{"d"}, Usage: "Show snippet descriptions"},
					&cli.BoolFlag{Name: "local", Usage: "Scan in-process even if a server is running"},
				},
				Action: reportCommand,
			},
			{
				Name:      "usages",
				Aliases:   []string{"u"},
				Usage:     "List every occurrence of a snippet key",
				ArgsUsage: "<key>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-results", Aliases: []string{"n"}, Usage: "Maximum locations (0 = all)"},
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
					&cli.BoolFlag{Name: "local", Usage: "Scan in-process even if a server is running"},
				},
				Action: usagesCommand,
			},
			snippetCommand(),
			{
				Name:   "serve",
				Usage:  "Keep the workspace warm and answer clients over a unix socket",
				Action: serverCommand,
			},
			{
				Name:   "shutdown",
				Usage:  "Stop the server for this project",
				Action: shutdownCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Force shutdown even if operations are in progress",
					},
				},
			},
			{
				Name:  "status",
				Usage: "Show workspace status",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
				},
				Action: statusCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the usage view and catalog over MCP on stdio",
				Action: mcpCommand,
			},
		},
		Before: func(c *cli.Context) error {
			return configureLogging(c, c.Args().First() == "mcp")
		},
		After: func(c *cli.Context) error {
			return logging.Close()
		},
	}
}

func main() {
	app := newApp(os.Stdout, os.Stderr)
	if err := app.RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
