package catalog

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures no goroutines leak from the store's subscribers or the
// document watcher.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}
