package catalog

import (
	"strings"
)

const (
	noDescription = "No description"
	noParams      = "No parameter notes"
	noReturn      = "No return notes"
)

// CompletionItem is an editor completion entry derived from the merged catalog.
type CompletionItem struct {
	Label         string    `json:"label"`
	Module        string    `json:"module"`
	Detail        string    `json:"detail"`
	InsertText    string    `json:"insertText"`
	Documentation string    `json:"documentation"`
	Layer         LayerKind `json:"-"`
}

// Completions builds one item per merged entry, ordered by key.
func Completions(snap *Snapshot) []CompletionItem {
	items := make([]CompletionItem, 0, snap.Len())
	for _, sn := range snap.Enumerate() {
		layer, _ := snap.Layer(sn.Key)
		items = append(items, CompletionItem{
			Label:         sn.Key,
			Module:        sn.Module,
			Detail:        orDefault(sn.Description, noDescription),
			InsertText:    sn.BodyText(),
			Documentation: Documentation(sn),
			Layer:         layer,
		})
	}
	return items
}

// Documentation renders the markdown hover text for a snippet. Single
// newlines inside the docs become hard line breaks.
func Documentation(sn Snippet) string {
	var b strings.Builder
	b.WriteString("### Module: ")
	b.WriteString(orDefault(sn.Module, "uncategorized"))
	b.WriteString("\n\n### Parameters:\n")
	b.WriteString(hardBreaks(orDefault(sn.ParamsDoc, noParams)))
	b.WriteString("\n\n### Returns:\n")
	b.WriteString(hardBreaks(orDefault(sn.ReturnDoc, noReturn)))
	return b.String()
}

func hardBreaks(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\n", "  \n")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
