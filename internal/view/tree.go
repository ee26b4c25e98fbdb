package view

import "fmt"

// Display colors cycle per group and per entry position within a group.
var (
	GroupPalette = []string{"#569cd6", "#f14c4c", "#4ec9b0", "#d7ba7d", "#c586c0", "#9cdcfe", "#ce9178", "#4fc1ff"}
	EntryPalette = []string{"#a0d4f4", "#f8a5a5", "#86d6c2", "#e4d2a3", "#dab0d8", "#c2e6ff", "#e1c2b2", "#a3e0ff"}
)

const (
	EmptyLabel       = "No usage statistics"
	EmptyDescription = "No catalog snippets are used in this project"
	EmptyColor       = "#6c757d"
)

// GroupNode is a module row. Entries holds indices into Tree.Entries.
type GroupNode struct {
	ID          int    `json:"id"`
	Module      string `json:"module"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Total       int    `json:"total"`
	Entries     []int  `json:"entries"`
}

// EntryNode is an identifier row under Group.
type EntryNode struct {
	ID          int     `json:"id"`
	Group       int     `json:"group"`
	Key         string  `json:"key"`
	Count       int     `json:"count"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	Color       string  `json:"color"`
	Command     Command `json:"-"`
}

// Tree is an arena of view nodes. IDs are slice indices and stay valid for
// the lifetime of the Tree.
type Tree struct {
	Groups  []GroupNode `json:"groups"`
	Entries []EntryNode `json:"entries"`
}

// NewTree lays out groups as an arena. Selecting an entry shows its snippet.
func NewTree(groups []ModuleGroup) *Tree {
	t := &Tree{Groups: make([]GroupNode, 0, len(groups))}
	for gi, g := range groups {
		gn := GroupNode{
			ID:          gi,
			Module:      g.Module,
			Label:       fmt.Sprintf("%s (total: %d)", g.Module, g.Total),
			Description: fmt.Sprintf("%d used snippets", len(g.Entries)),
			Color:       GroupPalette[gi%len(GroupPalette)],
			Total:       g.Total,
			Entries:     make([]int, 0, len(g.Entries)),
		}
		for ei, e := range g.Entries {
			id := len(t.Entries)
			t.Entries = append(t.Entries, EntryNode{
				ID:          id,
				Group:       gi,
				Key:         e.Key,
				Count:       e.Count,
				Label:       fmt.Sprintf("%s (%d)", e.Key, e.Count),
				Description: e.Description,
				Color:       EntryPalette[ei%len(EntryPalette)],
				Command:     ShowSnippet{Key: e.Key},
			})
			gn.Entries = append(gn.Entries, id)
		}
		t.Groups = append(t.Groups, gn)
	}
	return t
}

// Empty reports the explicit "no usage" state.
func (t *Tree) Empty() bool { return len(t.Groups) == 0 }

// Children returns the entries of group id.
func (t *Tree) Children(id int) []EntryNode {
	if id < 0 || id >= len(t.Groups) {
		return nil
	}
	out := make([]EntryNode, 0, len(t.Groups[id].Entries))
	for _, eid := range t.Groups[id].Entries {
		out = append(out, t.Entries[eid])
	}
	return out
}

// Entry returns the entry with id.
func (t *Tree) Entry(id int) (EntryNode, bool) {
	if id < 0 || id >= len(t.Entries) {
		return EntryNode{}, false
	}
	return t.Entries[id], true
}

// FindEntry returns the entry for key.
func (t *Tree) FindEntry(key string) (EntryNode, bool) {
	for _, e := range t.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return EntryNode{}, false
}
