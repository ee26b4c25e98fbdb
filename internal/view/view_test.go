package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/matcher"
)

func actorCatalog() *catalog.Snapshot {
	return catalog.NewStore(
		catalog.Layer{"getHP": {Module: "actor", Description: "read hp"}, "unusedFn": {Module: "misc"}},
		catalog.Layer{"setHP": {Module: "actor", Description: "write hp"}},
	).Snapshot()
}

func TestBuildView_EndToEndScenario(t *testing.T) {
	groups := BuildView(matcher.Counts{"getHP": 2, "setHP": 1}, actorCatalog())

	require.Len(t, groups, 1)
	assert.Equal(t, ModuleGroup{
		Module: "actor",
		Total:  3,
		Entries: []Entry{
			{Key: "getHP", Count: 2, Description: "read hp"},
			{Key: "setHP", Count: 1, Description: "write hp"},
		},
	}, groups[0])
}

func TestBuildView_ZeroFilter(t *testing.T) {
	groups := BuildView(matcher.Counts{"getHP": 1, "unusedFn": 0}, actorCatalog())
	require.Len(t, groups, 1)
	assert.Equal(t, "actor", groups[0].Module)

	assert.Empty(t, BuildView(matcher.Counts{"unusedFn": 0}, actorCatalog()))
	assert.Empty(t, BuildView(nil, actorCatalog()))
}

func TestBuildView_Ordering(t *testing.T) {
	counts := matcher.Counts{
		"b.one": 3, "b.two": 3, "a.one": 1, "a.two": 5, "ghost": 6, "c.one": 6,
	}
	lookup := catalog.NewStore(catalog.Layer{
		"a.one": {Module: "alpha"}, "a.two": {Module: "alpha"},
		"b.one": {Module: "beta"}, "b.two": {Module: "beta"},
		"c.one": {Module: "gamma"},
	}, nil)

	groups := BuildView(counts, lookup)
	var modules []string
	for _, g := range groups {
		modules = append(modules, g.Module)
	}
	// alpha and beta tie on 6 with gamma and uncategorized: name order breaks ties.
	assert.Equal(t, []string{"alpha", "beta", "gamma", Uncategorized}, modules)
	assert.Equal(t, []Entry{{Key: "a.two", Count: 5}, {Key: "a.one", Count: 1}}, groups[0].Entries)
	assert.Equal(t, []Entry{{Key: "b.one", Count: 3}, {Key: "b.two", Count: 3}}, groups[1].Entries)
}

func TestBuildView_TotalsDescending(t *testing.T) {
	groups := BuildView(matcher.Counts{"x": 1, "y": 9}, catalog.NewStore(catalog.Layer{
		"x": {Module: "a"}, "y": {Module: "z"},
	}, nil))
	require.Len(t, groups, 2)
	assert.Equal(t, "z", groups[0].Module)
	assert.Equal(t, "a", groups[1].Module)
}

func TestBuildView_UnknownModule(t *testing.T) {
	groups := BuildView(matcher.Counts{"orphan": 2, "blank": 1}, catalog.NewStore(catalog.Layer{"blank": {}}, nil))
	require.Len(t, groups, 1)
	assert.Equal(t, Uncategorized, groups[0].Module)
	assert.Equal(t, 3, groups[0].Total)

	assert.Equal(t, Uncategorized, BuildView(matcher.Counts{"k": 1}, nil)[0].Module)
}

func TestBuildView_Deterministic(t *testing.T) {
	counts := matcher.Counts{}
	layer := catalog.Layer{}
	for i, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		counts[k] = i%3 + 1
		layer[k] = catalog.Snippet{Module: []string{"m1", "m2"}[i%2]}
	}
	lookup := catalog.NewStore(layer, nil).Snapshot()

	first := BuildView(counts, lookup)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, BuildView(counts, lookup))
	}
}
