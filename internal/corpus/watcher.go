package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/snipdex/pkg/pathutil"
)

const defaultDebounce = 300 * time.Millisecond

// WatchStats contains statistics about file watching operations
type WatchStats struct {
	EventsProcessed int64
	ErrorCount      int64
	LastEventTime   time.Time
	IsActive        bool
}

// WatchStats returns current watch mode statistics.
func (x *FSIndex) WatchStats() WatchStats {
	x.statsMu.Lock()
	defer x.statsMu.Unlock()
	return x.stats
}

func (x *FSIndex) recordStats(events, errs int64, active bool) {
	x.statsMu.Lock()
	defer x.statsMu.Unlock()
	x.stats.EventsProcessed += events
	x.stats.ErrorCount += errs
	if events > 0 {
		x.stats.LastEventTime = time.Now()
	}
	x.stats.IsActive = active
}

// Watch monitors the corpus root and publishes debounced FileChanged and
// FileRemoved events until ctx is cancelled. Events pending at shutdown are
// dropped.
func (x *FSIndex) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	w := &watcher{
		index: x,
		fsw:   fsw,
		dirs:  make(map[string]struct{}),
	}
	if err := w.addWatches(x.root); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", x.root, err)
	}

	debounce := x.opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	d := newEventDebouncer(debounce)
	defer d.stop()

	x.recordStats(0, 0, true)
	defer x.recordStats(0, 0, false)
	x.logger.Debug("file watcher started", "root", x.root, "dirs", len(w.dirs))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, d)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			x.recordStats(0, 1, true)
			x.logger.Warn("file watcher error", "err", err)

		case <-d.C():
			w.flush(d.drain())
		}
	}
}

type watcher struct {
	index *FSIndex
	fsw   *fsnotify.Watcher
	dirs  map[string]struct{} // watched directories, corpus-relative ("" is the root)
}

// addWatches recursively adds watches to all directories that are not excluded.
func (w *watcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return filepath.SkipDir
		}
		if visited[resolved] {
			return filepath.SkipDir
		}
		visited[resolved] = true

		rel := ""
		if path != w.index.root {
			var ok bool
			if rel, ok = pathutil.ToCorpusPath(path, w.index.root); !ok {
				return filepath.SkipDir
			}
			if w.index.excluded(rel, true) {
				return filepath.SkipDir
			}
		}
		if err := w.fsw.Add(path); err != nil {
			w.index.logger.Warn("failed to add watch", "path", path, "err", err)
			return nil
		}
		w.dirs[rel] = struct{}{}
		return nil
	})
}

func (w *watcher) handleEvent(event fsnotify.Event, d *eventDebouncer) {
	rel, ok := pathutil.ToCorpusPath(event.Name, w.index.root)
	if !ok {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
			return
		}
		if _, wasDir := w.dirs[rel]; wasDir {
			delete(w.dirs, rel)
			d.add(rel, FileRemoved)
			return
		}
		if w.index.Matches(rel) {
			d.add(rel, FileRemoved)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create == 0 || w.index.excluded(rel, true) {
			return
		}
		// Files written before the watch was registered would otherwise be missed.
		if err := w.addWatches(event.Name); err != nil {
			w.index.logger.Warn("failed to watch new directory", "path", rel, "err", err)
		}
		_ = filepath.WalkDir(event.Name, func(path string, e fs.DirEntry, err error) error {
			if err != nil || e.IsDir() {
				return nil
			}
			if sub, ok := pathutil.ToCorpusPath(path, w.index.root); ok && w.index.Matches(sub) {
				d.add(sub, FileChanged)
			}
			return nil
		})
		return
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	if !w.index.Matches(rel) {
		return
	}
	d.add(rel, FileChanged)
}

// flush publishes a batch: removals first, then changes.
func (w *watcher) flush(batch map[string]EventKind) {
	if len(batch) == 0 {
		return
	}
	start := time.Now()

	var removes, changes []string
	for path, kind := range batch {
		if kind == FileRemoved {
			removes = append(removes, path)
		} else {
			changes = append(changes, path)
		}
	}
	for _, path := range removes {
		w.index.hub.publish(Event{Kind: FileRemoved, Path: path})
	}
	for _, path := range changes {
		w.index.hub.publish(Event{Kind: FileChanged, Path: path})
	}

	w.index.recordStats(int64(len(batch)), 0, true)
	w.index.logger.Debug("processed debounced file events",
		"count", len(batch), "removed", len(removes), "duration", time.Since(start))
}

// eventDebouncer batches file events per path; the latest kind for a path wins.
// It is driven from the Watch loop, so it needs no locking.
type eventDebouncer struct {
	events   map[string]EventKind
	debounce time.Duration
	timer    *time.Timer
}

func newEventDebouncer(debounce time.Duration) *eventDebouncer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &eventDebouncer{
		events:   make(map[string]EventKind),
		debounce: debounce,
		timer:    t,
	}
}

func (d *eventDebouncer) add(path string, kind EventKind) {
	d.events[path] = kind
	d.timer.Reset(d.debounce)
}

// C fires once the batching window has passed without new events.
func (d *eventDebouncer) C() <-chan time.Time {
	return d.timer.C
}

func (d *eventDebouncer) drain() map[string]EventKind {
	events := d.events
	d.events = make(map[string]EventKind)
	return events
}

func (d *eventDebouncer) stop() {
	d.timer.Stop()
}
