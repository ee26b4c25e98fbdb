package view

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/corpus"
	"github.com/standardbeagle/snipdex/internal/usage"
)

func presenterFixture(t *testing.T) (*Presenter, *usage.Aggregator, *catalog.Store) {
	t.Helper()
	store := catalog.NewStore(
		catalog.Layer{"getHP": {Module: "actor"}},
		catalog.Layer{"setHP": {Module: "actor"}},
	)
	idx := corpus.NewMemoryIndex(map[string]string{
		"fileA.lua": "local x = getHP() getHP()",
		"fileB.lua": "setHP(1)",
	})
	agg := usage.NewAggregator(idx, usage.Options{})
	require.NoError(t, agg.Rescan(context.Background(), store.Keys()))
	return NewPresenter(agg, store), agg, store
}

func TestPresenter_GetViewCaches(t *testing.T) {
	p, _, _ := presenterFixture(t)

	v1 := p.GetView()
	require.Len(t, v1.Groups, 1)
	assert.Equal(t, 3, v1.Groups[0].Total)
	assert.Equal(t, uint64(1), v1.Generation)
	assert.False(t, v1.Empty())
	assert.Equal(t, "actor (total: 3)", v1.Tree.Groups[0].Label)

	v2 := p.GetView()
	assert.Same(t, v1, v2)
	assert.Equal(t, uint64(1), p.Derivations())
}

func TestPresenter_RederivesOnChange(t *testing.T) {
	p, agg, store := presenterFixture(t)
	v1 := p.GetView()

	require.True(t, agg.ApplyText("fileB.lua", ""))
	v2 := p.GetView()
	assert.NotSame(t, v1, v2)
	assert.Equal(t, 2, v2.Groups[0].Total)

	// Metadata-only change: same keys, new module.
	store.Put("getHP", catalog.Snippet{Module: "hero"})
	v3 := p.GetView()
	require.Len(t, v3.Groups, 1)
	assert.Equal(t, "hero", v3.Groups[0].Module)
	assert.Equal(t, uint64(3), p.Derivations())
}

func TestPresenter_Refresh(t *testing.T) {
	p, _, _ := presenterFixture(t)
	v1 := p.GetView()
	v2 := p.Refresh()

	assert.NotSame(t, v1, v2)
	assert.Equal(t, v1.Groups, v2.Groups)
	assert.Equal(t, uint64(2), p.Derivations())
}

func TestPresenter_EmptyState(t *testing.T) {
	store := catalog.NewStore(catalog.Layer{"unusedFn": {}}, nil)
	idx := corpus.NewMemoryIndex(map[string]string{"a.lua": "nothing"})
	agg := usage.NewAggregator(idx, usage.Options{})
	require.NoError(t, agg.Rescan(context.Background(), store.Keys()))

	v := NewPresenter(agg, store).GetView()
	assert.True(t, v.Empty())
	assert.True(t, v.Tree.Empty())
}

func TestPresenter_RunPushesUpdates(t *testing.T) {
	p, agg, _ := presenterFixture(t)
	views, cancel := p.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	defer func() {
		stop()
		<-done
	}()

	waitTotal := func(want int) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case v := <-views:
				if len(v.Groups) == 1 && v.Groups[0].Total == want {
					return
				}
			case <-deadline:
				t.Fatalf("no view with total %d", want)
			}
		}
	}

	waitTotal(3)
	require.True(t, agg.ApplyText("fileC.lua", "setHP setHP"))
	waitTotal(5)
}

// pausingIndex blocks reads between pause and resume.
type pausingIndex struct {
	*corpus.MemoryIndex
	mu      sync.Mutex
	gate    chan struct{}
	entered chan struct{}
	once    *sync.Once
}

func newPausingIndex(files map[string]string) *pausingIndex {
	return &pausingIndex{MemoryIndex: corpus.NewMemoryIndex(files)}
}

// pause makes subsequent reads block. The returned channel closes when the
// first of them starts.
func (x *pausingIndex) pause() <-chan struct{} {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.gate = make(chan struct{})
	x.entered = make(chan struct{})
	x.once = &sync.Once{}
	return x.entered
}

func (x *pausingIndex) resume() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.gate != nil {
		close(x.gate)
		x.gate = nil
	}
}

func (x *pausingIndex) ReadText(ctx context.Context, path string) (string, error) {
	x.mu.Lock()
	gate, entered, once := x.gate, x.entered, x.once
	x.mu.Unlock()
	if gate != nil {
		once.Do(func() { close(entered) })
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return x.MemoryIndex.ReadText(ctx, path)
}

func TestPresenter_KeySetChangeInFlight(t *testing.T) {
	store := catalog.NewStore(
		catalog.Layer{"getHP": {Module: "actor"}},
		catalog.Layer{"setHP": {Module: "actor"}},
	)
	idx := newPausingIndex(map[string]string{
		"fileA.lua": "local x = getHP() getHP()",
		"fileB.lua": "setHP(1)",
	})
	defer idx.Close()
	agg := usage.NewAggregator(idx, usage.Options{Workers: 1})
	tr := usage.NewTracker(store, idx, agg)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Close()
	p := NewPresenter(agg, store)

	entered := idx.pause()
	require.True(t, store.Delete("setHP"))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("rescan for the new key set did not start")
	}

	// Generation 1 still counts setHP; it keeps the metadata it was built with.
	v := p.GetView()
	assert.Equal(t, uint64(1), v.Generation)
	assert.Equal(t, uint64(0), v.CatalogVersion)
	require.Len(t, v.Groups, 1)
	assert.Equal(t, "actor", v.Groups[0].Module)
	assert.Equal(t, 3, v.Groups[0].Total)
	for _, g := range v.Groups {
		assert.NotEqual(t, Uncategorized, g.Module)
	}

	idx.resume()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, tr.Sync(ctx))

	v = p.GetView()
	assert.Equal(t, uint64(2), v.Generation)
	assert.Equal(t, uint64(1), v.CatalogVersion)
	require.Len(t, v.Groups, 1)
	assert.Equal(t, []Entry{{Key: "getHP", Count: 2}}, v.Groups[0].Entries)

	// Metadata-only edits apply to the live generation at once.
	store.Put("getHP", catalog.Snippet{Module: "hero"})
	v = p.GetView()
	assert.Equal(t, uint64(2), v.Generation)
	assert.Equal(t, uint64(2), v.CatalogVersion)
	require.Len(t, v.Groups, 1)
	assert.Equal(t, "hero", v.Groups[0].Module)
}
