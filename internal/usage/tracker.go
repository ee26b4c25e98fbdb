package usage

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/corpus"
	"github.com/standardbeagle/snipdex/internal/logging"
	"github.com/standardbeagle/snipdex/internal/matcher"
)

// Tracker keeps an Aggregator in step with a catalog store and a corpus.
// Key-set changes trigger a full rescan; metadata-only changes do not touch
// the aggregate. Corpus events become incremental updates.
type Tracker struct {
	store  *catalog.Store
	corpus corpus.Index
	agg    *Aggregator
	logger *log.Logger

	mu        sync.Mutex
	requested uint64 // fingerprint of the key set most recently sent to Rescan
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewTracker(store *catalog.Store, idx corpus.Index, agg *Aggregator) *Tracker {
	return &Tracker{
		store:  store,
		corpus: idx,
		agg:    agg,
		logger: logging.For("tracker"),
	}
}

// Aggregator returns the tracked aggregator.
func (t *Tracker) Aggregator() *Aggregator { return t.agg }

// Start runs the initial rescan, then follows catalog and corpus changes in
// the background until Close or ctx cancellation.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return errors.New("tracker already started")
	}
	t.started = true
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	// Subscribe first so nothing between the initial rescan and the loops is missed.
	changes, cancelChanges := t.store.Subscribe()
	events, cancelEvents := t.corpus.Subscribe()

	if err := t.rescan(ctx, true); err != nil {
		cancelChanges()
		cancelEvents()
		cancel()
		return err
	}

	t.wg.Add(2)
	go func() {
		defer t.wg.Done()
		defer cancelChanges()
		t.followCatalog(ctx, changes)
	}()
	go func() {
		defer t.wg.Done()
		defer cancelEvents()
		t.followCorpus(ctx, events)
	}()
	return nil
}

func (t *Tracker) followCatalog(ctx context.Context, changes <-chan catalog.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-changes:
			if !c.KeysChanged {
				t.logger.Debug("catalog metadata changed", "version", c.Version)
				continue
			}
			t.wg.Add(1)
			go func() {
				defer t.wg.Done()
				if err := t.rescan(ctx, false); err != nil {
					t.logger.Error("rescan failed", "version", c.Version, "err", err)
				}
			}()
		}
	}
}

func (t *Tracker) followCorpus(ctx context.Context, events <-chan corpus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.handle(ctx, ev)
		}
	}
}

func (t *Tracker) handle(ctx context.Context, ev corpus.Event) {
	switch ev.Kind {
	case corpus.FileRemoved:
		t.agg.RemoveFile(ev.Path)
	case corpus.FileChanged, corpus.FileSaved, corpus.ActiveFileChanged:
		if err := t.agg.UpdateFile(ctx, ev.Path); err != nil && ctx.Err() == nil {
			t.logger.Warn("incremental update failed", "path", ev.Path, "event", ev.Kind, "err", err)
		}
	}
}

// rescan starts a rescan for the current catalog keys unless the same key
// set is already live or requested. The catalog is read and the generation
// allocated under mu, so a later notification always gets a later generation.
func (t *Tracker) rescan(ctx context.Context, force bool) error {
	t.mu.Lock()
	snap := t.store.Snapshot()
	keys := snap.Keys()
	fp := matcher.Fingerprint(keys)
	if !force && fp == t.requested {
		t.mu.Unlock()
		return nil
	}
	t.requested = fp
	job := t.agg.begin(ctx, keys, snap)
	t.mu.Unlock()

	err := t.agg.run(job)
	switch {
	case err == nil, errors.Is(err, ErrSuperseded):
		return nil
	}
	// Let the next notification retry the same key set.
	t.mu.Lock()
	if t.requested == fp {
		t.requested = 0
	}
	t.mu.Unlock()
	return err
}

// Sync waits until the live generation reflects the catalog's current key set.
func (t *Tracker) Sync(ctx context.Context) error {
	return t.agg.WaitFingerprint(ctx, matcher.Fingerprint(t.store.Keys()))
}

// Close stops the background loops and waits for in-flight rescans to finish.
func (t *Tracker) Close() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
}
