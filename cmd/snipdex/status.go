package main

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/snipdex/internal/version"
	"github.com/standardbeagle/snipdex/internal/workspace"
)

// StatusReport is the JSON form of the status command
type StatusReport struct {
	Timestamp time.Time        `json:"timestamp"`
	Source    string           `json:"source"` // "server" or "local"
	Version   string           `json:"version"`
	BuildID   string           `json:"build_id"`
	Status    workspace.Status `json:"status"`
}

// statusCommand reports on the running server for this root, or on a fresh
// in-process scan when no server is running.
func statusCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	report := StatusReport{
		Timestamp: time.Now(),
		Version:   version.Version,
		BuildID:   version.BuildID(),
	}

	if client := runningServer(cfg); client != nil {
		defer client.Close()
		ping, err := client.Ping(c.Context)
		if err != nil {
			return fmt.Errorf("failed to ping server: %w", err)
		}
		st, err := client.Status(c.Context)
		if err != nil {
			return fmt.Errorf("failed to get server status: %w", err)
		}
		report.Source = "server"
		report.Version = ping.Version
		report.BuildID = ping.BuildID
		report.Status = *st
	} else {
		ws, err := openWorkspace(c, false)
		if err != nil {
			return err
		}
		defer ws.Close()
		report.Source = "local"
		report.Status = ws.Status()
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, report)
	}
	outputStatusHuman(c.App.Writer, report)
	return nil
}

func outputStatusHuman(w io.Writer, r StatusReport) {
	st := r.Status
	fmt.Fprintf(w, "snipdex %s (%s, %s)\n", r.Version, r.Source, runtime.Version())
	fmt.Fprintf(w, "Root:        %s\n", st.Root)
	fmt.Fprintf(w, "State:       %s\n", st.State)
	if st.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", st.Error)
	}
	fmt.Fprintf(w, "Files:       %d\n", st.Files)
	fmt.Fprintf(w, "Catalog:     %d entries (version %d)\n", st.CatalogEntries, st.CatalogVersion)
	fmt.Fprintf(w, "Used:        %d snippets\n", st.UsedSnippets)
	fmt.Fprintf(w, "Generation:  %d (revision %d)\n", st.Generation, st.Revision)
	fmt.Fprintf(w, "Rescans:     %d, updates %d, superseded %d\n", st.Usage.Rescans, st.Usage.Updates, st.Usage.Superseded)
	if st.Watching {
		fmt.Fprintf(w, "Watching:    yes (%d events, %d errors)\n", st.Watch.EventsProcessed, st.Watch.ErrorCount)
	} else {
		fmt.Fprintf(w, "Watching:    no\n")
	}
	if r.Source == "server" {
		fmt.Fprintf(w, "Uptime:      %s\n", st.Uptime.Round(time.Second))
	}
}
