// Package view derives the grouped usage summary shown to users from the
// aggregate counts and catalog metadata.
package view

import (
	"sort"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/matcher"
)

// Uncategorized is the module of identifiers without catalog metadata.
const Uncategorized = "uncategorized"

// Lookup resolves catalog metadata. *catalog.Snapshot and *catalog.Store satisfy it.
type Lookup interface {
	Get(key string) (catalog.Snippet, bool)
}

type Entry struct {
	Key         string `json:"key"`
	Count       int    `json:"count"`
	Description string `json:"description,omitempty"`
}

type ModuleGroup struct {
	Module  string  `json:"module"`
	Total   int     `json:"total"`
	Entries []Entry `json:"entries"`
}

// BuildView groups positive counts by catalog module. Groups are ordered by
// total descending, then module name; entries by count descending, then key.
// An empty result means no catalog identifier is used anywhere.
func BuildView(counts matcher.Counts, lookup Lookup) []ModuleGroup {
	byModule := make(map[string]*ModuleGroup)
	for key, n := range counts {
		if n <= 0 {
			continue
		}
		module, description := Uncategorized, ""
		if lookup != nil {
			if sn, ok := lookup.Get(key); ok {
				if sn.Module != "" {
					module = sn.Module
				}
				description = sn.Description
			}
		}
		g := byModule[module]
		if g == nil {
			g = &ModuleGroup{Module: module}
			byModule[module] = g
		}
		g.Total += n
		g.Entries = append(g.Entries, Entry{Key: key, Count: n, Description: description})
	}

	groups := make([]ModuleGroup, 0, len(byModule))
	for _, g := range byModule {
		sort.Slice(g.Entries, func(i, j int) bool {
			a, b := g.Entries[i], g.Entries[j]
			if a.Count != b.Count {
				return a.Count > b.Count
			}
			return a.Key < b.Key
		})
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Total != groups[j].Total {
			return groups[i].Total > groups[j].Total
		}
		return groups[i].Module < groups[j].Module
	})
	return groups
}
