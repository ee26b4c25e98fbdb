package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTree(t *testing.T) {
	groups := make([]ModuleGroup, 0, 9)
	for i := 0; i < 9; i++ {
		groups = append(groups, ModuleGroup{Module: string(rune('a' + i)), Total: 10 - i, Entries: []Entry{{Key: "k" + string(rune('a'+i)), Count: 10 - i}}})
	}
	groups[0].Entries = append(groups[0].Entries, Entry{Key: "second", Count: 0})

	tree := NewTree(groups)
	require.Len(t, tree.Groups, 9)
	require.Len(t, tree.Entries, 10)
	assert.False(t, tree.Empty())

	g0 := tree.Groups[0]
	assert.Equal(t, "a (total: 10)", g0.Label)
	assert.Equal(t, "2 used snippets", g0.Description)
	assert.Equal(t, GroupPalette[0], g0.Color)
	assert.Equal(t, []int{0, 1}, g0.Entries)
	assert.Equal(t, GroupPalette[0], tree.Groups[8].Color, "palette cycles")

	children := tree.Children(0)
	require.Len(t, children, 2)
	assert.Equal(t, "ka (10)", children[0].Label)
	assert.Equal(t, EntryPalette[0], children[0].Color)
	assert.Equal(t, EntryPalette[1], children[1].Color)
	assert.Equal(t, ShowSnippet{Key: "ka"}, children[0].Command)

	e, ok := tree.Entry(2)
	require.True(t, ok)
	assert.Equal(t, 1, e.Group)
	assert.Equal(t, "kb", e.Key)

	_, ok = tree.Entry(99)
	assert.False(t, ok)
	assert.Nil(t, tree.Children(-1))

	found, ok := tree.FindEntry("ki")
	require.True(t, ok)
	assert.Equal(t, 8, found.Group)
}

func TestNewTree_Empty(t *testing.T) {
	tree := NewTree(nil)
	assert.True(t, tree.Empty())
	assert.Empty(t, tree.Entries)
}
