// Package usage maintains per-identifier usage counts over a corpus while the
// catalog and the corpus change underneath it.
//
// The Aggregator keeps one count table per file and a global sum. A full
// rescan builds a new generation off to the side and swaps it in atomically;
// incremental updates are tagged with the generation they were computed
// against and are dropped when that generation is no longer live.
package usage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/corpus"
	sderrors "github.com/standardbeagle/snipdex/internal/errors"
	"github.com/standardbeagle/snipdex/internal/logging"
	"github.com/standardbeagle/snipdex/internal/matcher"
)

// ErrSuperseded is returned by Rescan when a newer rescan started or the
// context was cancelled before the result could be installed. Nothing changed.
var ErrSuperseded = errors.New("rescan superseded")

// Options configures an Aggregator.
type Options struct {
	Workers int            // concurrent file scans during a rescan; <= 0 uses NumCPU
	Cache   *matcher.Cache // shared automaton cache; nil builds without caching
}

type fileTable struct {
	hash     uint64
	readable bool
	counts   matcher.Counts
}

func (t fileTable) same(o fileTable) bool {
	return t.readable == o.readable && t.hash == o.hash
}

// Usage is a point-in-time copy of the aggregate.
type Usage struct {
	Generation  uint64
	Revision    uint64 // bumps on every visible change to Counts
	Counts      matcher.Counts
	Files       int
	Keys        int
	Fingerprint uint64            // identifier set of the live generation
	Catalog     *catalog.Snapshot // catalog the generation was built from, if known
}

// Stats counts aggregator activity since creation.
type Stats struct {
	Generation  uint64
	Files       int
	Rescans     uint64
	Superseded  uint64
	Updates     uint64
	Unchanged   uint64
	Dropped     uint64
	Reissued    uint64
	Removed     uint64
	CacheHits   uint64
	CacheBuilds uint64
}

// Aggregator owns the live generation. All state changes happen under mu.
type Aggregator struct {
	corpus  corpus.Index
	cache   *matcher.Cache
	workers int
	logger  *log.Logger

	mu         sync.RWMutex
	gen        uint64
	wanted     uint64
	automaton  *matcher.Automaton
	source     *catalog.Snapshot // catalog the live generation was built from; nil for bare keys
	files      map[string]fileTable
	total      matcher.Counts
	revision   uint64
	cancelScan context.CancelFunc
	dirty      map[string]bool // path -> removed; non-nil while a rescan is in flight
	installed  chan struct{}   // closed and replaced on every install
	stats      Stats

	subMu   sync.Mutex
	subs    map[int]chan uint64
	nextSub int
}

// NewAggregator returns an Aggregator at generation 0 with an empty identifier set.
func NewAggregator(idx corpus.Index, opts Options) *Aggregator {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	cache := opts.Cache
	if cache == nil {
		cache = matcher.NewCache(0)
	}
	return &Aggregator{
		corpus:    idx,
		cache:     cache,
		workers:   workers,
		logger:    logging.For("usage"),
		automaton: matcher.Build(nil),
		files:     make(map[string]fileTable),
		total:     make(matcher.Counts),
		installed: make(chan struct{}),
		subs:      make(map[int]chan uint64),
	}
}

// Rescan recomputes every file table against keys and installs the result as
// a new generation. Any rescan still in flight is cancelled.
func (a *Aggregator) Rescan(ctx context.Context, keys []string) error {
	return a.run(a.begin(ctx, keys, nil))
}

// RescanCatalog is Rescan over the keys of snap. The installed generation
// remembers snap as the catalog it was built from.
func (a *Aggregator) RescanCatalog(ctx context.Context, snap *catalog.Snapshot) error {
	return a.run(a.begin(ctx, snap.Keys(), snap))
}

// rescanJob is a rescan whose generation is already allocated.
type rescanJob struct {
	g      uint64
	ctx    context.Context // caller context, used for the dirty replay
	scan   context.Context
	cancel context.CancelFunc
	keys   []string
	source *catalog.Snapshot
}

// begin allocates the next generation and cancels the rescan in flight.
// Generations are ordered by begin calls, not by when scanning finishes.
func (a *Aggregator) begin(ctx context.Context, keys []string, source *catalog.Snapshot) *rescanJob {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.wanted++
	if a.cancelScan != nil {
		a.cancelScan()
	}
	scanCtx, cancel := context.WithCancel(ctx)
	a.cancelScan = cancel
	if a.dirty == nil {
		a.dirty = make(map[string]bool)
	}
	a.stats.Rescans++
	return &rescanJob{g: a.wanted, ctx: ctx, scan: scanCtx, cancel: cancel, keys: keys, source: source}
}

func (a *Aggregator) run(job *rescanJob) error {
	defer job.cancel()
	g, scanCtx := job.g, job.scan

	aut := a.cache.Get(job.keys)
	a.logger.Debug("rescan started", "generation", g, "keys", aut.Len())

	files, err := a.corpus.ListFiles(scanCtx)
	if err != nil {
		if scanCtx.Err() != nil {
			return a.superseded(g)
		}
		a.abandon(g)
		return fmt.Errorf("failed to list corpus files: %w", err)
	}

	tables := make([]fileTable, len(files))
	eg, egCtx := errgroup.WithContext(scanCtx)
	eg.SetLimit(a.workers)
	for i, path := range files {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			t, err := a.scanFile(egCtx, g, aut, path)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := eg.Wait(); err != nil || scanCtx.Err() != nil {
		return a.superseded(g)
	}

	fileMap := make(map[string]fileTable, len(files))
	total := make(matcher.Counts)
	for i, path := range files {
		fileMap[path] = tables[i]
		for k, n := range tables[i].counts {
			total[k] += n
		}
	}

	a.mu.Lock()
	if a.wanted != g {
		a.mu.Unlock()
		return a.superseded(g)
	}
	a.gen = g
	a.automaton = aut
	a.source = job.source
	a.files = fileMap
	a.total = total
	a.revision++
	dirty := a.dirty
	a.dirty = nil
	a.cancelScan = nil
	close(a.installed)
	a.installed = make(chan struct{})
	rev := a.revision
	a.mu.Unlock()

	a.logger.Info("generation installed", "generation", g, "files", len(files), "keys", aut.Len(), "dirty", len(dirty))
	a.notify(rev)

	// Edits that raced the rescan were applied to the old generation.
	ctx := job.ctx
	for path, removed := range dirty {
		if removed {
			a.RemoveFile(path)
			continue
		}
		if err := a.UpdateFile(ctx, path); err != nil && ctx.Err() == nil {
			a.logger.Warn("failed to refresh file after rescan", "path", path, "err", err)
		}
	}
	return nil
}

// scanFile reads and scans one file. Read failures yield an empty table; only
// cancellation is returned as an error.
func (a *Aggregator) scanFile(ctx context.Context, g uint64, aut *matcher.Automaton, path string) (fileTable, error) {
	text, err := a.corpus.ReadText(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return fileTable{}, ctx.Err()
		}
		a.logger.Warn("corpus file unreadable", "err", sderrors.NewScanError(path, g, err))
		return fileTable{counts: matcher.Counts{}}, nil
	}
	return fileTable{hash: xxhash.Sum64String(text), readable: true, counts: aut.Scan(text)}, nil
}

func (a *Aggregator) superseded(g uint64) error {
	a.mu.Lock()
	a.stats.Superseded++
	a.mu.Unlock()
	a.abandon(g)
	a.logger.Debug("rescan superseded", "generation", g)
	return ErrSuperseded
}

// abandon clears in-flight state after a failed rescan if no newer one took over.
func (a *Aggregator) abandon(g uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.wanted == g {
		a.dirty = nil
		a.cancelScan = nil
	}
}

// Update is a file table computed against a specific generation.
type Update struct {
	Generation uint64
	Path       string
	table      fileTable
}

// Prepare scans text against the live automaton.
func (a *Aggregator) Prepare(path, text string) Update {
	a.mu.RLock()
	g, aut := a.gen, a.automaton
	a.mu.RUnlock()
	return Update{
		Generation: g,
		Path:       path,
		table:      fileTable{hash: xxhash.Sum64String(text), readable: true, counts: aut.Scan(text)},
	}
}

// Apply installs u if its generation is still live. It reports false when
// the update was stale and dropped.
func (a *Aggregator) Apply(u Update) bool {
	a.mu.Lock()
	if a.gen != u.Generation {
		a.stats.Dropped++
		a.mu.Unlock()
		return false
	}
	if a.dirty != nil {
		a.dirty[u.Path] = false
	}
	changed := a.replaceLocked(u.Path, u.table)
	rev := a.revision
	a.mu.Unlock()

	if changed {
		a.notify(rev)
	}
	return true
}

// ApplyText scans text for path against the live generation and applies the
// resulting delta. It reports false if a rescan installed in between.
func (a *Aggregator) ApplyText(path, text string) bool {
	return a.Apply(a.Prepare(path, text))
}

// replaceLocked swaps the table for path and adjusts the aggregate by the
// difference. It reports whether anything visible changed.
func (a *Aggregator) replaceLocked(path string, t fileTable) bool {
	a.stats.Updates++
	old, had := a.files[path]
	if had && old.same(t) {
		a.stats.Unchanged++
		return false
	}
	a.files[path] = t

	delta := false
	for k, n := range old.counts {
		if d := t.counts[k] - n; d != 0 {
			a.addLocked(k, d)
			delta = true
		}
	}
	for k, n := range t.counts {
		if _, seen := old.counts[k]; !seen {
			a.addLocked(k, n)
			delta = true
		}
	}
	if delta {
		a.revision++
	}
	return delta
}

func (a *Aggregator) addLocked(key string, d int) {
	n := a.total[key] + d
	if n <= 0 {
		delete(a.total, key)
		return
	}
	a.total[key] = n
}

// UpdateFile re-reads path and applies its new table. An update that loses a
// race with a rescan is recomputed against the new generation. Missing files
// are removed; other read failures store an empty table.
func (a *Aggregator) UpdateFile(ctx context.Context, path string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.mu.RLock()
		g, aut := a.gen, a.automaton
		a.mu.RUnlock()

		text, err := a.corpus.ReadText(ctx, path)
		var t fileTable
		switch {
		case err == nil:
			t = fileTable{hash: xxhash.Sum64String(text), readable: true}
			if a.unchanged(g, path, t) {
				return nil
			}
			t.counts = aut.Scan(text)
		case errors.Is(err, fs.ErrNotExist):
			a.RemoveFile(path)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			a.logger.Warn("corpus file unreadable", "err", sderrors.NewScanError(path, g, err))
			t = fileTable{counts: matcher.Counts{}}
		}

		if a.Apply(Update{Generation: g, Path: path, table: t}) {
			return nil
		}
		a.mu.Lock()
		a.stats.Reissued++
		a.mu.Unlock()
	}
}

// unchanged reports whether path already holds a table for identical text in
// generation g. In that case a rescan in flight is still told about the edit.
func (a *Aggregator) unchanged(g uint64, path string, t fileTable) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	old, ok := a.files[path]
	if a.gen != g || !ok || !old.same(t) {
		return false
	}
	if a.dirty != nil {
		a.dirty[path] = false
	}
	a.stats.Updates++
	a.stats.Unchanged++
	return true
}

// RemoveFile drops the table for path. When path names a directory, every
// file below it is dropped too.
func (a *Aggregator) RemoveFile(path string) {
	prefix := strings.TrimSuffix(path, "/") + "/"

	a.mu.Lock()
	if a.dirty != nil {
		a.dirty[path] = true
	}
	changed := false
	for p, t := range a.files {
		if p != path && !strings.HasPrefix(p, prefix) {
			continue
		}
		delete(a.files, p)
		a.stats.Removed++
		for k, n := range t.counts {
			a.addLocked(k, -n)
			changed = true
		}
	}
	if changed {
		a.revision++
	}
	rev := a.revision
	a.mu.Unlock()

	if changed {
		a.notify(rev)
	}
}

// Snapshot returns a copy of the aggregate.
func (a *Aggregator) Snapshot() Usage {
	a.mu.RLock()
	defer a.mu.RUnlock()
	counts := make(matcher.Counts, len(a.total))
	for k, n := range a.total {
		counts[k] = n
	}
	return Usage{
		Generation:  a.gen,
		Revision:    a.revision,
		Counts:      counts,
		Files:       len(a.files),
		Keys:        a.automaton.Len(),
		Fingerprint: a.automaton.Fingerprint(),
		Catalog:     a.source,
	}
}

// FileCounts returns a copy of the stored table for path.
func (a *Aggregator) FileCounts(path string) (matcher.Counts, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.files[path]
	if !ok {
		return nil, false
	}
	out := make(matcher.Counts, len(t.counts))
	for k, n := range t.counts {
		out[k] = n
	}
	return out, true
}

// Generation returns the live generation.
func (a *Aggregator) Generation() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gen
}

// Fingerprint returns the identifier-set fingerprint of the live generation.
func (a *Aggregator) Fingerprint() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.automaton.Fingerprint()
}

// WaitGeneration blocks until the live generation is at least g.
func (a *Aggregator) WaitGeneration(ctx context.Context, g uint64) error {
	return a.waitUntil(ctx, func() bool { return a.gen >= g })
}

// WaitFingerprint blocks until a generation built from the identifier set
// with fingerprint fp is live.
func (a *Aggregator) WaitFingerprint(ctx context.Context, fp uint64) error {
	return a.waitUntil(ctx, func() bool { return a.automaton.Fingerprint() == fp })
}

// waitUntil evaluates cond under the read lock after every install.
func (a *Aggregator) waitUntil(ctx context.Context, cond func() bool) error {
	for {
		a.mu.RLock()
		ok := cond()
		ch := a.installed
		a.mu.RUnlock()
		if ok {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats returns activity counters.
func (a *Aggregator) Stats() Stats {
	hits, builds := a.cache.Stats()
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.stats
	s.Generation = a.gen
	s.Files = len(a.files)
	s.CacheHits = hits
	s.CacheBuilds = builds
	return s
}

// Subscribe delivers the aggregate revision after visible changes. A slow
// reader only ever misses intermediate revisions.
func (a *Aggregator) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)
	a.subMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	a.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subMu.Lock()
			delete(a.subs, id)
			a.subMu.Unlock()
		})
	}
}

func (a *Aggregator) notify(rev uint64) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		msg := rev
		select {
		case old := <-ch:
			msg = max(msg, old)
		default:
		}
		ch <- msg
	}
}
