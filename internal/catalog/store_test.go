package catalog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snip(module, desc string, body ...string) Snippet {
	return Snippet{Module: module, Description: desc, Body: body}
}

func TestStore_CustomShadowsBase(t *testing.T) {
	s := NewStore(
		Layer{"Player.GetHp": snip("player", "base hp"), "Item.Use": snip("item", "use")},
		Layer{"Player.GetHp": snip("player", "custom hp")},
	)

	got, ok := s.Get("Player.GetHp")
	require.True(t, ok)
	assert.Equal(t, "custom hp", got.Description)
	assert.Equal(t, "Player.GetHp", got.Key)

	layer, ok := s.Snapshot().Layer("Player.GetHp")
	require.True(t, ok)
	assert.Equal(t, LayerCustom, layer)

	assert.Equal(t, []string{"Item.Use", "Player.GetHp"}, s.Keys())
}

func TestStore_DeleteRevealsBase(t *testing.T) {
	s := NewStore(Layer{"k": snip("m", "base")}, nil)
	s.Put("k", snip("m", "custom"))

	got, _ := s.Get("k")
	assert.Equal(t, "custom", got.Description)

	assert.True(t, s.Delete("k"))
	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "base", got.Description)

	layer, _ := s.Snapshot().Layer("k")
	assert.Equal(t, LayerBase, layer)
}

func TestStore_DeleteAbsentIsNoop(t *testing.T) {
	s := NewStore(Layer{"k": snip("m", "base")}, nil)
	v := s.Version()

	assert.False(t, s.Delete("k"), "base entries are not deletable")
	assert.False(t, s.Delete("missing"))
	assert.Equal(t, v, s.Version())
	_, ok := s.Get("k")
	assert.True(t, ok)
}

func TestStore_VersionIncrementsPerMutation(t *testing.T) {
	s := NewStore(nil, nil)
	assert.Equal(t, uint64(0), s.Version())

	s.Put("a", snip("m", ""))
	s.Put("a", snip("m", "again"))
	s.ReplaceBase(Layer{"b": snip("m", "")})
	s.Delete("a")
	s.ReplaceCustom(Layer{})

	assert.Equal(t, uint64(5), s.Version())
}

func TestStore_EnumerateIsPointInTime(t *testing.T) {
	s := NewStore(nil, Layer{"a": snip("m", "", "line1")})
	snap := s.Enumerate()

	s.Put("b", snip("m", ""))
	s.Delete("a")
	snap[0].Body[0] = "mutated by caller"

	require.Len(t, snap, 1)
	assert.Equal(t, "a", snap[0].Key)
	assert.Equal(t, []string{"b"}, s.Keys())

	// Caller mutation does not leak into the store.
	s.Put("a", snip("m", "", "fresh"))
	got, _ := s.Get("a")
	assert.Equal(t, []string{"fresh"}, got.Body)
}

func TestStore_PutStoresCopy(t *testing.T) {
	s := NewStore(nil, nil)
	body := []string{"x"}
	s.Put("k", Snippet{Body: body})
	body[0] = "changed"

	got, _ := s.Get("k")
	assert.Equal(t, []string{"x"}, got.Body)
}

func TestStore_SubscribeKeysChanged(t *testing.T) {
	s := NewStore(Layer{"a": snip("m", "")}, nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Put("a", snip("m", "metadata only"))
	c := <-ch
	assert.Equal(t, uint64(1), c.Version)
	assert.False(t, c.KeysChanged)

	s.Put("b", snip("m", ""))
	c = <-ch
	assert.True(t, c.KeysChanged)

	s.Delete("a") // base entry stays visible
	c = <-ch
	assert.False(t, c.KeysChanged)

	s.Delete("b")
	c = <-ch
	assert.True(t, c.KeysChanged)

	s.ReplaceBase(Layer{"a": snip("other", "")})
	c = <-ch
	assert.False(t, c.KeysChanged)
}

func TestStore_SubscribeCoalesces(t *testing.T) {
	s := NewStore(nil, nil)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Put("a", snip("m", "")) // keys changed
	s.Put("a", snip("m", "x"))
	s.Put("a", snip("m", "y"))

	c := <-ch
	assert.Equal(t, uint64(3), c.Version)
	assert.True(t, c.KeysChanged, "missed key change is carried forward")

	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra notification %+v", extra)
	default:
	}
}

func TestStore_CancelStopsDelivery(t *testing.T) {
	s := NewStore(nil, nil)
	ch, cancel := s.Subscribe()
	cancel()
	cancel()

	s.Put("a", snip("m", ""))
	select {
	case c := <-ch:
		t.Fatalf("cancelled subscriber received %+v", c)
	default:
	}
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := NewStore(nil, nil)
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := string(rune('a' + w))
				s.Put(key, snip("m", ""))
				s.Delete(key)
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := s.Snapshot()
				assert.Len(t, snap.Enumerate(), snap.Len())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(4*200*2), s.Version())
	assert.Empty(t, s.Keys())
}
