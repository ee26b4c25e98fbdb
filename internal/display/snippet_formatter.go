package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/usage"
)

var (
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	pathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func render(s lipgloss.Style, color bool, text string) string {
	if !color {
		return text
	}
	return s.Render(text)
}

// FormatSnippet renders one catalog entry with its layer.
func FormatSnippet(sn catalog.Snippet, layer catalog.LayerKind, color bool) string {
	var sb strings.Builder
	sb.WriteString(render(keyStyle, color, sn.Key))
	sb.WriteString(fmt.Sprintf(" [%s]\n", layer))

	field := func(name, value, fallback string) {
		if value == "" {
			value = fallback
		}
		sb.WriteString(render(labelStyle, color, name+":"))
		if strings.Contains(value, "\n") {
			sb.WriteString("\n")
			for _, line := range strings.Split(value, "\n") {
				sb.WriteString("  " + line + "\n")
			}
			return
		}
		sb.WriteString(" " + value + "\n")
	}
	field("Module", sn.Module, "uncategorized")
	field("Description", sn.Description, "No description")
	field("Parameters", sn.ParamsDoc, "No parameter notes")
	field("Returns", sn.ReturnDoc, "No return notes")
	if len(sn.Body) > 0 {
		sb.WriteString(render(labelStyle, color, "Example:"))
		sb.WriteString("\n")
		for _, line := range sn.Body {
			sb.WriteString("  " + line + "\n")
		}
	}
	return sb.String()
}

// FormatSnippetList renders one line per snippet: key, module, description.
func FormatSnippetList(snippets []catalog.Snippet, color bool) string {
	if len(snippets) == 0 {
		return "No snippets in catalog\n"
	}
	width := 0
	for _, sn := range snippets {
		width = max(width, len(sn.Key))
	}
	var sb strings.Builder
	for _, sn := range snippets {
		module := sn.Module
		if module == "" {
			module = "uncategorized"
		}
		key := sn.Key + strings.Repeat(" ", width-len(sn.Key))
		sb.WriteString(fmt.Sprintf("%s  %s  %s\n", render(keyStyle, color, key), render(pathStyle, color, module), firstLine(sn.Description)))
	}
	return sb.String()
}

// FormatSearchResults renders ranked search hits.
func FormatSearchResults(results []catalog.SearchResult, color bool) string {
	if len(results) == 0 {
		return "No matching snippets\n"
	}
	var sb strings.Builder
	for _, r := range results {
		sb.WriteString(fmt.Sprintf("%.2f  %s  (%s)  %s\n",
			r.Score, render(keyStyle, color, r.Snippet.Key), r.Reason, firstLine(r.Snippet.Description)))
	}
	return sb.String()
}

// FormatLocations renders find-usages output as path:line:column: text.
func FormatLocations(key string, locs []usage.Location, color bool) string {
	if len(locs) == 0 {
		return fmt.Sprintf("No usages of %s found\n", key)
	}
	var sb strings.Builder
	files := make(map[string]struct{})
	for _, l := range locs {
		files[l.Path] = struct{}{}
		pos := fmt.Sprintf("%s:%d:%d:", l.Path, l.Line, l.Column)
		sb.WriteString(render(pathStyle, color, pos))
		sb.WriteString(" ")
		sb.WriteString(strings.TrimSpace(l.LineText))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("\n%d usages of %s in %d files\n", len(locs), key, len(files)))
	return sb.String()
}
