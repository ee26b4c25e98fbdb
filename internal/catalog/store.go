package catalog

import (
	"slices"
	"sort"
	"sync"
	"sync/atomic"
)

// Change is published after every catalog mutation.
type Change struct {
	Version     uint64
	KeysChanged bool // the merged key set differs from the previous version
}

// Snapshot is an immutable, point-in-time view of the merged catalog.
type Snapshot struct {
	version uint64
	base    Layer
	custom  Layer
	merged  map[string]Snippet
	keys    []string
}

func newSnapshot(version uint64, base, custom Layer) *Snapshot {
	merged := make(map[string]Snippet, len(base)+len(custom))
	for k, s := range base {
		merged[k] = s
	}
	for k, s := range custom {
		merged[k] = s
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Snapshot{version: version, base: base, custom: custom, merged: merged, keys: keys}
}

// Version returns the catalog version this snapshot was taken at.
func (s *Snapshot) Version() uint64 { return s.version }

// Len returns the number of merged entries.
func (s *Snapshot) Len() int { return len(s.keys) }

// Get returns the merged entry for key.
func (s *Snapshot) Get(key string) (Snippet, bool) {
	sn, ok := s.merged[key]
	if !ok {
		return Snippet{}, false
	}
	return sn.clone(), true
}

// Layer reports which layer supplies the merged entry for key.
func (s *Snapshot) Layer(key string) (LayerKind, bool) {
	if _, ok := s.custom[key]; ok {
		return LayerCustom, true
	}
	if _, ok := s.base[key]; ok {
		return LayerBase, true
	}
	return 0, false
}

// Keys returns the merged keys, sorted.
func (s *Snapshot) Keys() []string {
	return slices.Clone(s.keys)
}

// Enumerate returns all merged entries ordered by key.
func (s *Snapshot) Enumerate() []Snippet {
	out := make([]Snippet, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.merged[k].clone())
	}
	return out
}

// Base returns a copy of the base layer.
func (s *Snapshot) Base() Layer { return s.base.clone() }

// Custom returns a copy of the custom layer.
func (s *Snapshot) Custom() Layer { return s.custom.clone() }

// Store is the mutable catalog. Reads load an atomic snapshot and never
// block; writers copy on write under mu.
type Store struct {
	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]

	subMu   sync.Mutex
	subs    map[int]chan Change
	nextSub int
}

// NewStore creates a store with the given layers. Nil layers are empty.
func NewStore(base, custom Layer) *Store {
	s := &Store{subs: make(map[int]chan Change)}
	s.snap.Store(newSnapshot(0, base.clone(), custom.clone()))
	return s
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Version returns the current catalog version.
func (s *Store) Version() uint64 {
	return s.snap.Load().version
}

// Get returns the merged entry for key.
func (s *Store) Get(key string) (Snippet, bool) {
	return s.snap.Load().Get(key)
}

// Enumerate returns a point-in-time copy of all merged entries ordered by key.
func (s *Store) Enumerate() []Snippet {
	return s.snap.Load().Enumerate()
}

// Keys returns the merged keys, sorted.
func (s *Store) Keys() []string {
	return s.snap.Load().Keys()
}

// Put writes key into the custom layer, overwriting any custom entry.
func (s *Store) Put(key string, sn Snippet) {
	sn = sn.clone()
	sn.Key = key

	s.mu.Lock()
	cur := s.snap.Load()
	custom := cur.custom.clone()
	custom[key] = sn
	_, existed := cur.merged[key]
	next := newSnapshot(cur.version+1, cur.base, custom)
	s.snap.Store(next)
	s.publish(Change{Version: next.version, KeysChanged: !existed})
	s.mu.Unlock()
}

// Delete removes key from the custom layer only. A base entry with the same
// key becomes visible again. Returns false, without a version bump, when the
// custom layer has no such key.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	cur := s.snap.Load()
	if _, ok := cur.custom[key]; !ok {
		s.mu.Unlock()
		return false
	}
	custom := cur.custom.clone()
	delete(custom, key)
	_, stillVisible := cur.base[key]
	next := newSnapshot(cur.version+1, cur.base, custom)
	s.snap.Store(next)
	s.publish(Change{Version: next.version, KeysChanged: !stillVisible})
	s.mu.Unlock()
	return true
}

// ReplaceBase atomically swaps the whole base layer.
func (s *Store) ReplaceBase(base Layer) {
	s.replace(func(cur *Snapshot) *Snapshot {
		return newSnapshot(cur.version+1, base.clone(), cur.custom)
	})
}

// ReplaceCustom atomically swaps the whole custom layer.
func (s *Store) ReplaceCustom(custom Layer) {
	s.replace(func(cur *Snapshot) *Snapshot {
		return newSnapshot(cur.version+1, cur.base, custom.clone())
	})
}

func (s *Store) replace(build func(*Snapshot) *Snapshot) {
	s.mu.Lock()
	cur := s.snap.Load()
	next := build(cur)
	s.snap.Store(next)
	s.publish(Change{Version: next.version, KeysChanged: !slices.Equal(cur.keys, next.keys)})
	s.mu.Unlock()
}

// Subscribe returns a channel of change notifications and a cancel func.
// Notifications coalesce: a slow reader sees the latest change, with
// KeysChanged accumulated across the ones it missed.
func (s *Store) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// publish runs under mu, so notifications leave in version order. It never
// blocks: each channel has room for one pending change and only publish sends.
func (s *Store) publish(c Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		msg := c
		select {
		case old := <-ch:
			msg.KeysChanged = msg.KeysChanged || old.KeysChanged
		default:
		}
		ch <- msg
	}
}
