package display

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/standardbeagle/snipdex/internal/view"
)

// TreeFormatter renders a usage view for the terminal or for machines.
type TreeFormatter struct {
	options FormatterOptions
}

// FormatterOptions controls tree formatting
type FormatterOptions struct {
	Format           string // "text", "json", "compact"
	Color            bool   // style labels with the node colors
	ShowDescriptions bool   // append snippet descriptions to entries
	MaxEntries       int    // entries shown per group; 0 = all
	Indent           string // Indentation string
}

// NewTreeFormatter creates a new tree formatter
func NewTreeFormatter(options FormatterOptions) *TreeFormatter {
	if options.Indent == "" {
		options.Indent = "  "
	}
	return &TreeFormatter{options: options}
}

// Format formats a view for display
func (tf *TreeFormatter) Format(v *view.View) string {
	if v == nil || v.Tree == nil {
		return "No view data available"
	}

	switch tf.options.Format {
	case "json":
		return tf.formatJSON(v)
	case "compact":
		return tf.formatCompact(v)
	default:
		return tf.formatText(v)
	}
}

func (tf *TreeFormatter) style(color string, bold bool) lipgloss.Style {
	s := lipgloss.NewStyle()
	if !tf.options.Color {
		return s
	}
	return s.Foreground(lipgloss.Color(color)).Bold(bold)
}

// formatText formats the view as an ASCII tree
func (tf *TreeFormatter) formatText(v *view.View) string {
	var sb strings.Builder

	if v.Tree.Empty() {
		sb.WriteString(tf.style(view.EmptyColor, true).Render(view.EmptyLabel))
		sb.WriteString("\n")
		sb.WriteString(view.EmptyDescription)
		sb.WriteString("\n")
		return sb.String()
	}

	used, total := 0, 0
	for _, g := range v.Tree.Groups {
		used += len(g.Entries)
		total += g.Total
	}
	sb.WriteString(fmt.Sprintf("Snippet usage: %d snippets, %d uses, %d modules (generation %d)\n\n",
		used, total, len(v.Tree.Groups), v.Generation))

	dim := tf.style("#808080", false)
	for gi, g := range v.Tree.Groups {
		lastGroup := gi == len(v.Tree.Groups)-1
		branch, childPrefix := "├─ ", "│"+tf.options.Indent
		if lastGroup {
			branch, childPrefix = "└─ ", " "+tf.options.Indent
		}
		sb.WriteString(branch)
		sb.WriteString(tf.style(g.Color, true).Render(g.Label))
		sb.WriteString("  ")
		sb.WriteString(dim.Render(g.Description))
		sb.WriteString("\n")

		children := v.Tree.Children(g.ID)
		shown := len(children)
		if tf.options.MaxEntries > 0 && shown > tf.options.MaxEntries {
			shown = tf.options.MaxEntries
		}
		for ei, e := range children[:shown] {
			last := ei == shown-1 && shown == len(children)
			leaf := "├─ "
			if last {
				leaf = "└─ "
			}
			sb.WriteString(childPrefix)
			sb.WriteString(leaf)
			sb.WriteString(tf.style(e.Color, false).Render(e.Label))
			if tf.options.ShowDescriptions && e.Description != "" {
				sb.WriteString("  ")
				sb.WriteString(dim.Render(firstLine(e.Description)))
			}
			sb.WriteString("\n")
		}
		if hidden := len(children) - shown; hidden > 0 {
			sb.WriteString(childPrefix)
			sb.WriteString(fmt.Sprintf("└─ (+%d more)\n", hidden))
		}
	}
	return sb.String()
}

// formatCompact formats the view on a single line
func (tf *TreeFormatter) formatCompact(v *view.View) string {
	if v.Tree.Empty() {
		return view.EmptyLabel
	}
	parts := make([]string, 0, len(v.Groups))
	for _, g := range v.Groups {
		entries := make([]string, 0, len(g.Entries))
		for _, e := range g.Entries {
			entries = append(entries, fmt.Sprintf("%s=%d", e.Key, e.Count))
		}
		parts = append(parts, fmt.Sprintf("%s=%d [%s]", g.Module, g.Total, strings.Join(entries, " ")))
	}
	return strings.Join(parts, "; ")
}

type jsonView struct {
	Generation     uint64             `json:"generation"`
	Revision       uint64             `json:"revision"`
	CatalogVersion uint64             `json:"catalog_version"`
	Empty          bool               `json:"empty"`
	Groups         []view.ModuleGroup `json:"groups"`
}

// formatJSON formats the view as indented JSON
func (tf *TreeFormatter) formatJSON(v *view.View) string {
	groups := v.Groups
	if groups == nil {
		groups = []view.ModuleGroup{}
	}
	data, err := json.MarshalIndent(jsonView{
		Generation:     v.Generation,
		Revision:       v.Revision,
		CatalogVersion: v.CatalogVersion,
		Empty:          v.Empty(),
		Groups:         groups,
	}, "", tf.options.Indent)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
