// Package workspace assembles the catalog, the corpus, the usage tracker and
// the presenter for one project root, and owns their background loops.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/config"
	"github.com/standardbeagle/snipdex/internal/corpus"
	"github.com/standardbeagle/snipdex/internal/logging"
	"github.com/standardbeagle/snipdex/internal/matcher"
	"github.com/standardbeagle/snipdex/internal/usage"
	"github.com/standardbeagle/snipdex/internal/view"
)

// Lifecycle states reported by Status.
const (
	StateIdle     = "idle"
	StateScanning = "scanning"
	StateReady    = "ready"
	StateFailed   = "failed"
	StateClosed   = "closed"
)

// Status is a point-in-time summary of the workspace.
type Status struct {
	State          string            `json:"state"`
	Root           string            `json:"root"`
	Error          string            `json:"error,omitempty"`
	Generation     uint64            `json:"generation"`
	Revision       uint64            `json:"revision"`
	CatalogVersion uint64            `json:"catalog_version"`
	CatalogEntries int               `json:"catalog_entries"`
	Files          int               `json:"files"`
	UsedSnippets   int               `json:"used_snippets"`
	Watching       bool              `json:"watching"`
	Uptime         time.Duration     `json:"uptime_ns"`
	Usage          usage.Stats       `json:"usage"`
	Watch          corpus.WatchStats `json:"watch"`
}

// Workspace is the running engine for one project.
type Workspace struct {
	cfg       *config.Config
	repo      *catalog.Repository
	corpus    *corpus.FSIndex
	agg       *usage.Aggregator
	tracker   *usage.Tracker
	presenter *view.Presenter
	logger    *log.Logger
	started   time.Time

	mu     sync.Mutex
	state  string
	err    error
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open builds the components described by cfg. Nothing runs until Start.
func Open(cfg *config.Config) (*Workspace, error) {
	if cfg == nil {
		return nil, errors.New("workspace: nil config")
	}
	idx, err := corpus.NewFSIndex(corpus.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	repo := catalog.OpenRepository(cfg.BasePath(), cfg.CustomPath())
	agg := usage.NewAggregator(idx, usage.Options{
		Workers: cfg.Performance.EffectiveScanWorkers(),
		Cache:   matcher.NewCache(cfg.Performance.AutomatonCacheSize),
	})

	return &Workspace{
		cfg:       cfg,
		repo:      repo,
		corpus:    idx,
		agg:       agg,
		tracker:   usage.NewTracker(repo.Store(), idx, agg),
		presenter: view.NewPresenter(agg, repo.Store()),
		logger:    logging.For("workspace"),
		started:   time.Now(),
		state:     StateIdle,
	}, nil
}

func (w *Workspace) Config() *config.Config { return w.cfg }
func (w *Workspace) Catalog() *catalog.Repository { return w.repo }
func (w *Workspace) Corpus() *corpus.FSIndex { return w.corpus }
func (w *Workspace) Aggregator() *usage.Aggregator { return w.agg }
func (w *Workspace) Presenter() *view.Presenter { return w.presenter }
func (w *Workspace) Tracker() *usage.Tracker { return w.tracker }

// Start runs the initial scan and then, when watch is true and the
// configuration allows it, follows the corpus and catalog documents on disk.
func (w *Workspace) Start(ctx context.Context, watch bool) error {
	w.mu.Lock()
	if w.state != StateIdle {
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("workspace is %s", state)
	}
	w.state = StateScanning
	w.err = nil
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.mu.Unlock()

	// Watchers start first so edits made during the initial scan are queued.
	if watch && w.cfg.Watch.Enabled {
		w.goLoop("corpus watcher", func() error { return w.corpus.Watch(ctx) })
	}
	if watch && w.cfg.Catalog.WatchFiles {
		w.goLoop("catalog watcher", func() error { return w.repo.Watch(ctx) })
	}

	begin := time.Now()
	if err := w.tracker.Start(ctx); err != nil {
		cancel()
		w.wg.Wait()
		w.setState(StateFailed, err)
		return fmt.Errorf("initial scan failed: %w", err)
	}
	u := w.agg.Snapshot()
	w.logger.Info("initial scan complete",
		"files", u.Files, "keys", u.Keys, "generation", u.Generation, "took", time.Since(begin))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.presenter.Run(ctx)
	}()

	w.setState(StateReady, nil)
	return nil
}

func (w *Workspace) goLoop(name string, run func() error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := run(); err != nil {
			w.logger.Error(name+" stopped", "err", err)
		}
	}()
}

func (w *Workspace) setState(state string, err error) {
	w.mu.Lock()
	w.state = state
	w.err = err
	w.mu.Unlock()
}

// Close stops every background loop and releases the corpus subscribers.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.state == StateClosed {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.state = StateClosed
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.tracker.Close()
	w.wg.Wait()
	w.corpus.Close()
}

// Ready reports whether the initial scan has completed.
func (w *Workspace) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == StateReady
}

// View returns the current usage view.
func (w *Workspace) View() *view.View {
	return w.presenter.GetView()
}

// Refresh waits for the live generation to cover the current catalog keys
// and re-derives the view.
func (w *Workspace) Refresh(ctx context.Context) (*view.View, error) {
	if w.Ready() {
		if err := w.tracker.Sync(ctx); err != nil {
			return nil, err
		}
	}
	return w.presenter.Refresh(), nil
}

// FindUsages locates every whole-word occurrence of key in the corpus.
func (w *Workspace) FindUsages(ctx context.Context, key string) ([]usage.Location, error) {
	if _, ok := w.repo.Store().Get(key); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSnippet, key)
	}
	return usage.FindUsages(ctx, w.corpus, key)
}

// ErrUnknownSnippet is returned for keys absent from the merged catalog.
var ErrUnknownSnippet = errors.New("unknown snippet")

// Status summarizes the engine state.
func (w *Workspace) Status() Status {
	w.mu.Lock()
	state, err := w.state, w.err
	w.mu.Unlock()

	u := w.agg.Snapshot()
	snap := w.repo.Store().Snapshot()
	watch := w.corpus.WatchStats()
	st := Status{
		State:          state,
		Root:           w.corpus.Root(),
		Generation:     u.Generation,
		Revision:       u.Revision,
		CatalogVersion: snap.Version(),
		CatalogEntries: snap.Len(),
		Files:          u.Files,
		UsedSnippets:   len(u.Counts),
		Watching:       watch.IsActive,
		Uptime:         time.Since(w.started),
		Usage:          w.agg.Stats(),
		Watch:          watch,
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}
