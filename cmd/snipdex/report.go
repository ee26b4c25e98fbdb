package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/snipdex/internal/display"
	"github.com/standardbeagle/snipdex/internal/usage"
)

func reportFormat(c *cli.Context) string {
	switch {
	case c.Bool("json"):
		return "json"
	case c.Bool("compact"):
		return "compact"
	default:
		return "text"
	}
}

// reportCommand prints the usage view. A running server for the same root
// answers from its warm state; otherwise the project is scanned in-process.
func reportCommand(c *cli.Context) error {
	out := c.App.Writer
	format := reportFormat(c)

	if !c.Bool("local") && c.Int("max-entries") == 0 && !c.Bool("descriptions") {
		cfg, err := loadConfigWithOverrides(c)
		if err != nil {
			return err
		}
		if client := runningServer(cfg); client != nil {
			defer client.Close()
			resp, err := client.View(c.Context, format)
			if err != nil {
				return fmt.Errorf("server view: %w", err)
			}
			fmt.Fprintln(out, resp.Rendered)
			return nil
		}
	}

	ws, err := openWorkspace(c, false)
	if err != nil {
		return err
	}
	defer ws.Close()

	formatter := display.NewTreeFormatter(display.FormatterOptions{
		Format:           format,
		Color:            c.Bool("color"),
		ShowDescriptions: c.Bool("descriptions"),
		MaxEntries:       c.Int("max-entries"),
	})
	fmt.Fprintln(out, formatter.Format(ws.View()))
	return nil
}

type usagesReport struct {
	Key       string           `json:"key"`
	Total     int              `json:"total"`
	Locations []usage.Location `json:"locations"`
}

func usagesCommand(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		return fmt.Errorf("usages requires a snippet key")
	}
	maxResults := c.Int("max-results")

	var (
		locs  []usage.Location
		total int
	)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	client := runningServer(cfg)
	if client != nil && !c.Bool("local") {
		defer client.Close()
		locs, total, err = client.FindUsages(c.Context, key, maxResults)
		if err != nil {
			return err
		}
	} else {
		if client != nil {
			client.Close()
		}
		ws, err := openWorkspace(c, false)
		if err != nil {
			return err
		}
		defer ws.Close()
		locs, err = ws.FindUsages(c.Context, key)
		if err != nil {
			return err
		}
		total = len(locs)
		if maxResults > 0 && len(locs) > maxResults {
			locs = locs[:maxResults]
		}
	}

	if locs == nil {
		locs = []usage.Location{}
	}
	if c.Bool("json") {
		return writeJSON(c.App.Writer, usagesReport{Key: key, Total: total, Locations: locs})
	}
	fmt.Fprint(c.App.Writer, display.FormatLocations(key, locs, c.Bool("color")))
	if len(locs) < total {
		fmt.Fprintf(c.App.Writer, "(showing %d of %d)\n", len(locs), total)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
