package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/snipdex/internal/logging"
)

const reloadDebounce = 150 * time.Millisecond

// Repository binds a Store to its two layer documents: mutations are written
// back, and external edits to the documents are loaded in.
type Repository struct {
	store  *Store
	paths  map[LayerKind]string
	logger *log.Logger

	mu      sync.Mutex
	digests map[LayerKind]uint64
}

// OpenRepository loads both layers. Missing documents are empty layers;
// malformed ones are logged and treated as empty.
func OpenRepository(basePath, customPath string) *Repository {
	r := &Repository{
		paths: map[LayerKind]string{
			LayerBase:   basePath,
			LayerCustom: customPath,
		},
		logger:  logging.For("catalog"),
		digests: make(map[LayerKind]uint64),
	}

	base, _ := r.readLocked(LayerBase)
	custom, _ := r.readLocked(LayerCustom)
	r.store = NewStore(base, custom)

	snap := r.store.Snapshot()
	r.logger.Info("catalog loaded", "entries", snap.Len(), "base", len(base), "custom", len(custom))
	return r
}

// Store returns the underlying catalog store.
func (r *Repository) Store() *Store {
	return r.store
}

// Path returns the document path backing a layer.
func (r *Repository) Path(kind LayerKind) string {
	return r.paths[kind]
}

// readLocked loads a layer and records its digest. The returned bool reports
// whether the document differs from the last one read or written. Callers
// hold mu, except during construction.
func (r *Repository) readLocked(kind LayerKind) (Layer, bool) {
	path := r.paths[kind]
	if path == "" {
		return Layer{}, false
	}

	data, err := os.ReadFile(path)
	var digest uint64
	if err == nil {
		digest = xxhash.Sum64(data)
	}

	prev, seen := r.digests[kind]
	r.digests[kind] = digest
	if seen && prev == digest {
		return nil, false
	}

	layer, lerr := decodeLayerFile(kind, path, data, err)
	if lerr != nil {
		r.logger.Warn("catalog layer unusable, treating as empty", "layer", kind, "err", lerr)
	}
	return layer, true
}

// Reload re-reads one layer document and swaps it in when its content changed.
func (r *Repository) Reload(kind LayerKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	layer, changed := r.readLocked(kind)
	if !changed {
		return false
	}
	switch kind {
	case LayerBase:
		r.store.ReplaceBase(layer)
	case LayerCustom:
		r.store.ReplaceCustom(layer)
	}
	r.logger.Info("catalog layer reloaded", "layer", kind, "entries", len(layer), "version", r.store.Version())
	return true
}

// Put stores a custom entry and persists the custom layer. If the layer
// cannot be written the entry is reverted, so memory never runs ahead of disk.
func (r *Repository) Put(key string, sn Snippet) error {
	if key == "" {
		return fmt.Errorf("snippet key must not be empty")
	}
	prev, had := r.store.Snapshot().custom[key]
	r.store.Put(key, sn)
	if err := r.save(LayerCustom); err != nil {
		r.revertCustom(key, prev, had)
		return fmt.Errorf("snippet %s not saved: %w", key, err)
	}
	return nil
}

// Delete removes a custom entry and persists the custom layer. Deleting a
// key absent from the custom layer is a no-op. A failed write restores the
// entry.
func (r *Repository) Delete(key string) (bool, error) {
	prev, had := r.store.Snapshot().custom[key]
	if !r.store.Delete(key) {
		return false, nil
	}
	if err := r.save(LayerCustom); err != nil {
		r.revertCustom(key, prev, had)
		return false, fmt.Errorf("snippet %s not deleted: %w", key, err)
	}
	return true, nil
}

func (r *Repository) revertCustom(key string, prev Snippet, had bool) {
	if had {
		r.store.Put(key, prev)
	} else {
		r.store.Delete(key)
	}
	r.logger.Warn("custom layer write failed, change reverted", "key", key)
}

// Import replaces the base layer with the contents of a bulk document and
// persists it. Returns the number of imported entries. The previous base
// layer is restored when the document cannot be written.
func (r *Repository) Import(path string) (int, error) {
	layer, err := ImportFile(path)
	if err != nil {
		return 0, err
	}
	prev := r.store.Snapshot().base
	r.store.ReplaceBase(layer)
	if err := r.save(LayerBase); err != nil {
		r.store.ReplaceBase(prev)
		return 0, fmt.Errorf("import of %s not saved: %w", path, err)
	}
	r.logger.Info("base layer imported", "source", path, "entries", len(layer))
	return len(layer), nil
}

// save writes the store's current copy of a layer. Saves are serialized so
// the last writer always persists the latest layer.
func (r *Repository) save(kind LayerKind) error {
	path := r.paths[kind]
	if path == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.store.Snapshot()
	layer := snap.Custom()
	if kind == LayerBase {
		layer = snap.Base()
	}
	data, err := SaveLayerFile(kind, path, layer)
	if err != nil {
		return err
	}
	r.digests[kind] = xxhash.Sum64(data)
	return nil
}

// Watch reloads layers edited on disk until ctx is done. Writes made by this
// repository are recognised by digest and do not trigger a reload.
func (r *Repository) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	defer w.Close()

	byPath := make(map[string]LayerKind, len(r.paths))
	dirs := make(map[string]bool)
	for kind, p := range r.paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		byPath[abs] = kind
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create catalog directory: %w", err)
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	pending := make(map[LayerKind]bool)
	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			kind, ok := byPath[filepath.Clean(ev.Name)]
			if !ok || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[kind] = true
			timer.Reset(reloadDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("catalog watcher error", "err", err)
		case <-timer.C:
			for kind := range pending {
				r.Reload(kind)
			}
			clear(pending)
		}
	}
}
