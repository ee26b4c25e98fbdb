package usage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/corpus"
	"github.com/standardbeagle/snipdex/internal/matcher"
)

func startTracker(t *testing.T, store *catalog.Store, idx corpus.Index) *Tracker {
	t.Helper()
	tr := NewTracker(store, idx, NewAggregator(idx, Options{Workers: 2, Cache: matcher.NewCache(4)}))
	require.NoError(t, tr.Start(context.Background()))
	t.Cleanup(tr.Close)
	return tr
}

func syncTracker(t *testing.T, tr *Tracker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, tr.Sync(ctx))
}

func countsOf(tr *Tracker) matcher.Counts {
	return tr.Aggregator().Snapshot().Counts
}

func TestTracker_EndToEnd(t *testing.T) {
	store := catalog.NewStore(catalog.Layer{
		"Player.GetHp": {Module: "player"},
		"Item.Use":     {Module: "item"},
	}, nil)
	idx := corpus.NewMemoryIndex(map[string]string{
		"a.lua": "Player.GetHp(1) Item.Use(2)",
		"b.lua": "Item.Use(3) Bag.Open()",
	})
	defer idx.Close()
	tr := startTracker(t, store, idx)

	assert.Equal(t, matcher.Counts{"Player.GetHp": 1, "Item.Use": 2}, countsOf(tr))

	// A new custom key triggers a rescan that finds existing usages.
	store.Put("Bag.Open", catalog.Snippet{Module: "bag"})
	syncTracker(t, tr)
	assert.Equal(t, 1, countsOf(tr)["Bag.Open"])

	// Corpus edits arrive as events.
	idx.Set("b.lua", "Bag.Open() Bag.Open()")
	require.Eventually(t, func() bool {
		c := countsOf(tr)
		return c["Bag.Open"] == 2 && c["Item.Use"] == 1
	}, 3*time.Second, 10*time.Millisecond)

	idx.Remove("a.lua")
	require.Eventually(t, func() bool {
		_, ok := countsOf(tr)["Player.GetHp"]
		return !ok
	}, 3*time.Second, 10*time.Millisecond)

	// Deleting the custom key drops it from the aggregate.
	require.True(t, store.Delete("Bag.Open"))
	syncTracker(t, tr)
	assert.NotContains(t, countsOf(tr), "Bag.Open")
}

func TestTracker_MetadataChangeDoesNotRescan(t *testing.T) {
	store := catalog.NewStore(catalog.Layer{"GetHp": {Module: "player"}}, nil)
	idx := corpus.NewMemoryIndex(map[string]string{"a.lua": "GetHp()"})
	defer idx.Close()
	tr := startTracker(t, store, idx)
	before := tr.Aggregator().Stats().Rescans

	// Shadowing an existing key changes metadata only.
	store.Put("GetHp", catalog.Snippet{Module: "custom"})
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, before, tr.Aggregator().Stats().Rescans)
	assert.Equal(t, 1, countsOf(tr)["GetHp"])
}

func TestTracker_ShadowDeleteRestoresBase(t *testing.T) {
	store := catalog.NewStore(catalog.Layer{"GetHp": {Module: "player"}}, nil)
	idx := corpus.NewMemoryIndex(map[string]string{"a.lua": "GetHp()"})
	defer idx.Close()
	tr := startTracker(t, store, idx)

	store.Put("GetHp", catalog.Snippet{Module: "custom"})
	require.True(t, store.Delete("GetHp"))
	syncTracker(t, tr)

	assert.Equal(t, 1, countsOf(tr)["GetHp"])
	got, ok := store.Get("GetHp")
	require.True(t, ok)
	assert.Equal(t, "player", got.Module)
}

func TestTracker_ReplaceBase(t *testing.T) {
	store := catalog.NewStore(catalog.Layer{"GetHp": {}}, nil)
	idx := corpus.NewMemoryIndex(map[string]string{"a.lua": "GetHp() Item.Use()"})
	defer idx.Close()
	tr := startTracker(t, store, idx)

	store.ReplaceBase(catalog.Layer{"Item.Use": {}})
	syncTracker(t, tr)
	assert.Equal(t, matcher.Counts{"Item.Use": 1}, countsOf(tr))
}

func TestTracker_StartTwice(t *testing.T) {
	store := catalog.NewStore(nil, nil)
	idx := corpus.NewMemoryIndex(nil)
	defer idx.Close()
	tr := startTracker(t, store, idx)

	assert.Error(t, tr.Start(context.Background()))
}

func TestTracker_StartFailure(t *testing.T) {
	tr := NewTracker(catalog.NewStore(nil, nil), failingIndex{}, NewAggregator(failingIndex{}, Options{}))
	require.Error(t, tr.Start(context.Background()))
	tr.Close()
}

func TestTracker_IgnoresPathsOutsideCorpus(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.lua"), []byte("getHP()"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("getHP getHP getHP"), 0o644))
	idx, err := corpus.NewFSIndex(corpus.Options{Root: root, Include: []string{"**/*.lua"}})
	require.NoError(t, err)
	defer idx.Close()
	store := catalog.NewStore(catalog.Layer{"getHP": {Module: "actor"}}, nil)
	tr := startTracker(t, store, idx)
	ctx := context.Background()

	require.NoError(t, idx.Activate("notes.txt"))
	require.NoError(t, idx.Edit("README.md", "getHP"))
	require.NoError(t, idx.Edit("a.lua", "getHP() getHP()"))
	require.Eventually(t, func() bool {
		return countsOf(tr)["getHP"] == 2
	}, 3*time.Second, 10*time.Millisecond)

	// A direct update for a non-corpus path is a removal, not a new file.
	require.NoError(t, tr.Aggregator().UpdateFile(ctx, "notes.txt"))
	_, ok := tr.Aggregator().FileCounts("notes.txt")
	assert.False(t, ok)

	fresh := NewAggregator(idx, Options{})
	require.NoError(t, fresh.Rescan(ctx, store.Keys()))
	assert.Equal(t, fresh.Snapshot().Counts, countsOf(tr))
	assert.Equal(t, 1, tr.Aggregator().Snapshot().Files)
}

func TestTracker_ConcurrentCatalogChurn(t *testing.T) {
	const writers, puts = 4, 30
	var text strings.Builder
	for w := 0; w < writers; w++ {
		for i := 0; i < puts; i += 7 {
			fmt.Fprintf(&text, "Key%dx%d() ", w, i)
		}
	}
	store := catalog.NewStore(catalog.Layer{"Base": {}}, nil)
	idx := corpus.NewMemoryIndex(map[string]string{"a.lua": text.String() + "Base()"})
	defer idx.Close()
	tr := startTracker(t, store, idx)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < puts; i++ {
				store.Put(fmt.Sprintf("Key%dx%d", w, i), catalog.Snippet{Module: "churn"})
			}
		}()
	}
	wg.Wait()
	syncTracker(t, tr)

	u := tr.Aggregator().Snapshot()
	assert.Equal(t, matcher.Fingerprint(store.Keys()), u.Fingerprint)
	require.NotNil(t, u.Catalog)
	assert.Equal(t, store.Keys(), u.Catalog.Keys())

	fresh := NewAggregator(idx, Options{})
	require.NoError(t, fresh.Rescan(context.Background(), store.Keys()))
	assert.Equal(t, fresh.Snapshot().Counts, u.Counts)
	assert.Equal(t, 1, u.Counts["Key3x28"])
	assert.Equal(t, 1, u.Counts["Base"])
}
