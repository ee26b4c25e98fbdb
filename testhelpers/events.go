package testhelpers

import (
	"testing"
	"time"

	"github.com/standardbeagle/snipdex/internal/catalog"
)

// CatalogChanges records the change notifications of a catalog store so tests
// can wait on a specific version instead of sleeping.
type CatalogChanges struct {
	t       *testing.T
	changes <-chan catalog.Change
}

// WatchCatalog subscribes to store for the rest of the test.
func WatchCatalog(t *testing.T, store *catalog.Store) *CatalogChanges {
	t.Helper()
	ch, cancel := store.Subscribe()
	t.Cleanup(cancel)
	return &CatalogChanges{t: t, changes: ch}
}

// WaitFor blocks until a change satisfies match and returns it. The test
// fails if none arrives within timeout.
func (c *CatalogChanges) WaitFor(timeout time.Duration, match func(catalog.Change) bool) catalog.Change {
	c.t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case change, ok := <-c.changes:
			if !ok {
				c.t.Fatalf("catalog subscription closed while waiting")
				return catalog.Change{}
			}
			if match == nil || match(change) {
				return change
			}
		case <-deadline.C:
			c.t.Fatalf("no matching catalog change within %s", timeout)
			return catalog.Change{}
		}
	}
}

// WaitForVersion waits until the store reaches at least version.
func (c *CatalogChanges) WaitForVersion(version uint64, timeout time.Duration) catalog.Change {
	c.t.Helper()
	return c.WaitFor(timeout, func(ch catalog.Change) bool { return ch.Version >= version })
}
