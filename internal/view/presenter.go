package view

import (
	"context"
	"sync"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/matcher"
	"github.com/standardbeagle/snipdex/internal/usage"
)

// Aggregate is the usage source. *usage.Aggregator satisfies it.
type Aggregate interface {
	Snapshot() usage.Usage
	Subscribe() (<-chan uint64, func())
}

// Catalog is the metadata source. *catalog.Store satisfies it.
type Catalog interface {
	Snapshot() *catalog.Snapshot
	Subscribe() (<-chan catalog.Change, func())
}

// View is one derived presentation. It is never modified after creation.
type View struct {
	Generation     uint64        `json:"generation"`
	Revision       uint64        `json:"revision"`
	CatalogVersion uint64        `json:"catalog_version"`
	Groups         []ModuleGroup `json:"groups"`
	Tree           *Tree         `json:"-"`
}

// Empty reports the explicit "no usage" state.
func (v *View) Empty() bool { return len(v.Groups) == 0 }

// Presenter caches the derived view and re-derives it when the aggregate
// revision or the catalog version moves.
type Presenter struct {
	agg     Aggregate
	catalog Catalog

	mu          sync.Mutex
	current     *View
	seen        uint64 // live catalog version current was derived at
	derivations uint64
	fpSnap      *catalog.Snapshot // snapshot liveFP was computed for
	liveFP      uint64

	subMu   sync.Mutex
	subs    map[int]chan *View
	nextSub int
}

func NewPresenter(agg Aggregate, cat Catalog) *Presenter {
	return &Presenter{agg: agg, catalog: cat, subs: make(map[int]chan *View)}
}

// GetView returns the current view, deriving it only if its inputs changed.
func (p *Presenter) GetView() *View {
	return p.get(false)
}

// Refresh re-derives the view from the current aggregate and catalog. It
// does not rescan the corpus.
func (p *Presenter) Refresh() *View {
	return p.get(true)
}

func (p *Presenter) get(force bool) *View {
	u := p.agg.Snapshot()
	live := p.catalog.Snapshot()

	p.mu.Lock()
	cur := p.current
	if !force && cur != nil && cur.Generation == u.Generation &&
		cur.Revision == u.Revision && p.seen == live.Version() {
		p.mu.Unlock()
		return cur
	}
	meta := p.metadataLocked(u, live)
	groups := BuildView(u.Counts, meta)
	v := &View{
		Generation:     u.Generation,
		Revision:       u.Revision,
		CatalogVersion: meta.Version(),
		Groups:         groups,
		Tree:           NewTree(groups),
	}
	p.current = v
	p.seen = live.Version()
	p.derivations++
	// publish never blocks; holding mu keeps views in derivation order.
	if cur == nil || force || !sameGroups(cur.Groups, v.Groups) {
		p.publish(v)
	}
	p.mu.Unlock()
	return v
}

// metadataLocked picks the catalog the view is labelled from. Counts and
// metadata must describe the same key set: while a rescan for a new key set
// is in flight the live generation is labelled from the catalog it was built
// from. Metadata-only edits keep the key set, so the live catalog serves.
func (p *Presenter) metadataLocked(u usage.Usage, live *catalog.Snapshot) *catalog.Snapshot {
	if u.Catalog == nil || u.Catalog.Version() == live.Version() {
		return live
	}
	if p.fpSnap != live {
		p.liveFP = matcher.Fingerprint(live.Keys())
		p.fpSnap = live
	}
	if p.liveFP == u.Fingerprint {
		return live
	}
	return u.Catalog
}

// Derivations returns how many times the view has been built.
func (p *Presenter) Derivations() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.derivations
}

// Subscribe delivers views whose content changed. A slow reader only sees
// the most recent one.
func (p *Presenter) Subscribe() (<-chan *View, func()) {
	ch := make(chan *View, 1)
	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
		})
	}
}

func (p *Presenter) publish(v *View) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Run re-derives the view whenever the aggregate or the catalog changes,
// so subscribers are pushed updates. It returns when ctx is done.
func (p *Presenter) Run(ctx context.Context) {
	revisions, cancelAgg := p.agg.Subscribe()
	defer cancelAgg()
	changes, cancelCat := p.catalog.Subscribe()
	defer cancelCat()

	p.GetView()
	for {
		select {
		case <-ctx.Done():
			return
		case <-revisions:
		case <-changes:
		}
		p.GetView()
	}
}

func sameGroups(a, b []ModuleGroup) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Module != b[i].Module || a[i].Total != b[i].Total || len(a[i].Entries) != len(b[i].Entries) {
			return false
		}
		for j := range a[i].Entries {
			if a[i].Entries[j] != b[i].Entries[j] {
				return false
			}
		}
	}
	return true
}
