package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/display"
)

func snippetCommand() *cli.Command {
	jsonFlag := &cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"}
	return &cli.Command{
		Name:    "snippet",
		Aliases: []string{"sn"},
		Usage:   "Inspect and edit the snippet catalog",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List catalog entries",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "module", Aliases: []string{"m"}, Usage: "Only entries of this module"},
				},
				Action: snippetListCommand,
			},
			{
				Name:      "search",
				Usage:     "Rank catalog entries against a query",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results", Value: 20},
				},
				Action: snippetSearchCommand,
			},
			{
				Name:      "show",
				Usage:     "Show one entry",
				ArgsUsage: "<key>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    snippetShowCommand,
			},
			{
				Name:      "add",
				Usage:     "Create or replace an entry in the custom layer",
				ArgsUsage: "<key>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "module", Aliases: []string{"m"}, Usage: "Module the entry is grouped under"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "What the snippet does"},
					&cli.StringFlag{Name: "params", Usage: "Parameter notes"},
					&cli.StringFlag{Name: "returns", Usage: "Return value notes"},
					&cli.StringSliceFlag{Name: "body", Aliases: []string{"b"}, Usage: "Body line (repeatable)"},
				},
				Action: snippetAddCommand,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete an entry from the custom layer",
				ArgsUsage: "<key>",
				Action:    snippetDeleteCommand,
			},
			{
				Name:      "import",
				Usage:     "Replace the base layer with a JSON or TOML document",
				ArgsUsage: "<file>",
				Action:    snippetImportCommand,
			},
			{
				Name:   "completions",
				Usage:  "Print editor completion items for the merged catalog",
				Action: snippetCompletionsCommand,
			},
		},
	}
}

func openCatalog(c *cli.Context) (*catalog.Repository, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	return catalog.OpenRepository(cfg.BasePath(), cfg.CustomPath()), nil
}

func requireArg(c *cli.Context, name string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", fmt.Errorf("%s requires a %s", c.Command.FullName(), name)
	}
	return arg, nil
}

func snippetListCommand(c *cli.Context) error {
	repo, err := openCatalog(c)
	if err != nil {
		return err
	}
	module := c.String("module")
	var snippets []catalog.Snippet
	for _, sn := range repo.Store().Enumerate() {
		if module == "" || sn.Module == module {
			snippets = append(snippets, sn)
		}
	}
	if c.Bool("json") {
		if snippets == nil {
			snippets = []catalog.Snippet{}
		}
		return writeJSON(c.App.Writer, snippets)
	}
	fmt.Fprint(c.App.Writer, display.FormatSnippetList(snippets, c.Bool("color")))
	return nil
}

func snippetSearchCommand(c *cli.Context) error {
	query, err := requireArg(c, "query")
	if err != nil {
		return err
	}
	repo, err := openCatalog(c)
	if err != nil {
		return err
	}
	results := catalog.Search(repo.Store().Snapshot(), query, c.Int("limit"))
	if c.Bool("json") {
		if results == nil {
			results = []catalog.SearchResult{}
		}
		return writeJSON(c.App.Writer, results)
	}
	fmt.Fprint(c.App.Writer, display.FormatSearchResults(results, c.Bool("color")))
	return nil
}

func snippetShowCommand(c *cli.Context) error {
	key, err := requireArg(c, "key")
	if err != nil {
		return err
	}
	repo, err := openCatalog(c)
	if err != nil {
		return err
	}
	snap := repo.Store().Snapshot()
	sn, ok := snap.Get(key)
	if !ok {
		return fmt.Errorf("unknown snippet %q", key)
	}
	layer, _ := snap.Layer(key)
	if c.Bool("json") {
		return writeJSON(c.App.Writer, map[string]any{"snippet": sn, "layer": layer.String()})
	}
	fmt.Fprint(c.App.Writer, display.FormatSnippet(sn, layer, c.Bool("color")))
	return nil
}

// snippetAddCommand writes through a running server when there is one so its
// view picks the entry up at once; otherwise it edits the custom document.
func snippetAddCommand(c *cli.Context) error {
	key, err := requireArg(c, "key")
	if err != nil {
		return err
	}
	sn := catalog.Snippet{
		Key:         key,
		Module:      c.String("module"),
		Description: c.String("description"),
		ParamsDoc:   c.String("params"),
		ReturnDoc:   c.String("returns"),
		Body:        c.StringSlice("body"),
	}

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	if client := runningServer(cfg); client != nil {
		defer client.Close()
		if err := client.PutSnippet(c.Context, key, sn); err != nil {
			return err
		}
	} else {
		repo := catalog.OpenRepository(cfg.BasePath(), cfg.CustomPath())
		if err := repo.Put(key, sn); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.App.Writer, "Saved %s to %s\n", key, cfg.CustomPath())
	return nil
}

func snippetDeleteCommand(c *cli.Context) error {
	key, err := requireArg(c, "key")
	if err != nil {
		return err
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	var deleted bool
	if client := runningServer(cfg); client != nil {
		defer client.Close()
		deleted, err = client.DeleteSnippet(c.Context, key)
	} else {
		deleted, err = catalog.OpenRepository(cfg.BasePath(), cfg.CustomPath()).Delete(key)
	}
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintf(c.App.Writer, "%s is not in the custom layer\n", key)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", key)
	return nil
}

func snippetImportCommand(c *cli.Context) error {
	path, err := requireArg(c, "file")
	if err != nil {
		return err
	}
	repo, err := openCatalog(c)
	if err != nil {
		return err
	}
	n, err := repo.Import(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Imported %d snippets into %s\n", n, repo.Path(catalog.LayerBase))
	return nil
}

func snippetCompletionsCommand(c *cli.Context) error {
	repo, err := openCatalog(c)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, catalog.Completions(repo.Store().Snapshot()))
}
