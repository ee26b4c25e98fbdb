package matcher

import (
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache keeps recently built automata keyed by identifier-set fingerprint, so
// flipping a catalog back to an earlier key set does not rebuild.
type Cache struct {
	mu     sync.Mutex
	lru    *lru.Cache[uint64, *Automaton]
	hits   uint64
	builds uint64
}

// NewCache returns a cache holding up to size automata. size <= 0 disables caching.
func NewCache(size int) *Cache {
	c := &Cache{}
	if size > 0 {
		// lru.New only fails for non-positive sizes.
		c.lru, _ = lru.New[uint64, *Automaton](size)
	}
	return c
}

// Get returns an automaton for keys, building it on a miss.
func (c *Cache) Get(keys []string) *Automaton {
	sorted := NormalizeKeys(keys)
	fp := fingerprintSorted(sorted)

	if c.lru != nil {
		if a, ok := c.lru.Get(fp); ok && slices.Equal(a.keys, sorted) {
			c.mu.Lock()
			c.hits++
			c.mu.Unlock()
			return a
		}
	}

	a := Build(sorted)
	c.mu.Lock()
	c.builds++
	c.mu.Unlock()
	if c.lru != nil {
		c.lru.Add(fp, a)
	}
	return a
}

// Stats returns cache hits and automaton builds so far.
func (c *Cache) Stats() (hits, builds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.builds
}
