// Package version identifies the snipdex build.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cespare/xxhash/v2"
)

var (
	Version   = "0.3.0"
	GitCommit = "" // set with -ldflags; falls back to the VCS stamp
)

// FullInfo returns the version line reported by status.
func FullInfo() string {
	if c := commit(); c != "" {
		return fmt.Sprintf("snipdex %s (%s)", Version, c)
	}
	return "snipdex " + Version
}

func commit() string {
	if GitCommit != "" {
		return GitCommit
	}
	rev, dirty := vcsStamp()
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}

func vcsStamp() (rev string, dirty bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return rev, dirty
}

// BuildID fingerprints the running binary. The CLI compares it with the
// server's to spot a server left over from an older build.
var BuildID = sync.OnceValue(func() string {
	h := xxhash.New()
	h.WriteString(Version)
	h.WriteString(commit())
	if info, ok := debug.ReadBuildInfo(); ok {
		h.WriteString(info.GoVersion)
		h.WriteString(info.Main.Version)
	}
	return fmt.Sprintf("%016x", h.Sum64())
})
