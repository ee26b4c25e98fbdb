// Package corpus provides the set of text files usage is counted over and
// the notifications emitted when they change.
//
// Files are identified by slash-separated paths relative to the corpus root.
// Two implementations exist: FSIndex (a directory on disk with editor
// overlays and an fsnotify watcher) and MemoryIndex (tests and embedding).
package corpus

import (
	"context"
	"sync"
)

// EventKind classifies a corpus notification.
type EventKind int

const (
	// FileChanged: the text of a file changed (unsaved edit or on-disk write).
	FileChanged EventKind = iota
	// FileSaved: an editor buffer was written; disk is authoritative again.
	FileSaved
	// ActiveFileChanged: the focused file switched.
	ActiveFileChanged
	// FileRemoved: the file is gone or no longer matches the corpus filter.
	FileRemoved
)

func (k EventKind) String() string {
	switch k {
	case FileChanged:
		return "changed"
	case FileSaved:
		return "saved"
	case ActiveFileChanged:
		return "active"
	case FileRemoved:
		return "removed"
	}
	return "unknown"
}

type Event struct {
	Kind EventKind
	Path string
}

// Index is the corpus as seen by the aggregator.
type Index interface {
	// ListFiles returns every corpus path, sorted.
	ListFiles(ctx context.Context) ([]string, error)
	// ReadText returns the current text of path, preferring unsaved buffers.
	ReadText(ctx context.Context, path string) (string, error)
	// Subscribe delivers events until cancel is called.
	Subscribe() (<-chan Event, func())
}

// hub fans events out to subscribers. Each subscriber has its own pending
// queue; events for a path already queued replace the queued kind in place,
// so a slow consumer sees every path that changed but not every intermediate
// state.
type hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	mu      sync.Mutex
	order   []string
	pending map[string]EventKind
	wake    chan struct{}
	out     chan Event
	done    chan struct{}
	once    sync.Once
	stopped sync.WaitGroup
}

func newHub() *hub {
	return &hub{subs: make(map[*subscriber]struct{})}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	s := &subscriber{
		pending: make(map[string]EventKind),
		wake:    make(chan struct{}, 1),
		out:     make(chan Event),
		done:    make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	s.stopped.Add(1)
	go s.pump()

	return s.out, func() {
		h.mu.Lock()
		delete(h.subs, s)
		h.mu.Unlock()
		s.stop()
	}
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.enqueue(ev)
	}
}

// closeAll cancels every subscription.
func (h *hub) closeAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for s := range subs {
		s.stop()
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
	s.stopped.Wait()
}

func (s *subscriber) enqueue(ev Event) {
	s.mu.Lock()
	if _, queued := s.pending[ev.Path]; !queued {
		s.order = append(s.order, ev.Path)
	}
	s.pending[ev.Path] = ev.Kind
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return Event{}, false
	}
	path := s.order[0]
	s.order = s.order[1:]
	kind := s.pending[path]
	delete(s.pending, path)
	return Event{Kind: kind, Path: path}, true
}

func (s *subscriber) pump() {
	defer s.stopped.Done()
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			ev, ok := s.next()
			if !ok {
				break
			}
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
	}
}
