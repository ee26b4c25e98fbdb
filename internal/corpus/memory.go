package corpus

import (
	"context"
	"io/fs"
	"sort"
	"sync"

	sderrors "github.com/standardbeagle/snipdex/internal/errors"
)

// MemoryIndex is an Index over an in-memory set of files.
type MemoryIndex struct {
	mu    sync.RWMutex
	files map[string]string
	fail  map[string]error
	hub   *hub
}

func NewMemoryIndex(files map[string]string) *MemoryIndex {
	m := &MemoryIndex{
		files: make(map[string]string, len(files)),
		fail:  make(map[string]error),
		hub:   newHub(),
	}
	for p, text := range files {
		m.files[p] = text
	}
	return m
}

func (m *MemoryIndex) ListFiles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *MemoryIndex) ReadText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.fail[path]; ok {
		return "", sderrors.NewFileError("read", path, err)
	}
	text, ok := m.files[path]
	if !ok {
		return "", sderrors.NewFileError("read", path, fs.ErrNotExist)
	}
	return text, nil
}

func (m *MemoryIndex) Subscribe() (<-chan Event, func()) {
	return m.hub.subscribe()
}

// Set stores text for path and publishes FileChanged.
func (m *MemoryIndex) Set(path, text string) {
	m.mu.Lock()
	m.files[path] = text
	m.mu.Unlock()
	m.hub.publish(Event{Kind: FileChanged, Path: path})
}

// Remove deletes path and publishes FileRemoved.
func (m *MemoryIndex) Remove(path string) {
	m.mu.Lock()
	delete(m.files, path)
	m.mu.Unlock()
	m.hub.publish(Event{Kind: FileRemoved, Path: path})
}

// FailReads makes ReadText of path return err until cleared with a nil err.
func (m *MemoryIndex) FailReads(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, path)
		return
	}
	m.fail[path] = err
}

// Notify publishes an arbitrary event without changing content.
func (m *MemoryIndex) Notify(ev Event) {
	m.hub.publish(ev)
}

// Close cancels all subscriptions.
func (m *MemoryIndex) Close() {
	m.hub.closeAll()
}
