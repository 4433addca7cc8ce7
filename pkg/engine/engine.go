// Package engine schedules incremental layout cycles over one document.
// All mutation enters through the inbox and is applied only at cycle
// start, so a cycle always sees a frozen document. A successful cycle ends
// with the dirty set cleared; a failed one leaves it intact and the next
// cycle retries from the same state.
package engine

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"vireo/pkg/boxtree"
	"vireo/pkg/dom"
	"vireo/pkg/layout"
	"vireo/pkg/style"
	"vireo/pkg/text"
)

// Mutation is a document edit applied between cycles. It runs on the
// engine goroutine; the closure must not retain the document.
type Mutation func(*dom.Document) error

// Arrival is an asynchronously produced content descriptor, typically a
// decoded image. Arrivals tagged with a superseded generation are dropped.
type Arrival struct {
	Node       dom.NodeID
	Content    dom.Content
	Generation uint64
}

type event struct {
	mutate  Mutation
	arrival *Arrival
}

// Config carries the engine's collaborators. Zero values get working
// defaults: a nop logger, a fixed-advance measurer, a cascade built from
// the document's own stylesheets, and a 256-slot inbox.
type Config struct {
	ViewportWidth  float64
	ViewportHeight float64
	InboxSize      int
	Measurer       text.Measurer
	Resolver       style.Resolver
	Logger         *zap.Logger
}

// Engine owns the document, box tree, and derived state. RunCycle and
// Navigate must be called from a single goroutine; Post, PostArrival, and
// Generation are safe from any goroutine.
type Engine struct {
	doc      *dom.Document
	tree     *boxtree.Tree
	resolver style.Resolver
	measure  text.Measurer
	log      *zap.Logger

	viewportW float64
	viewportH float64

	inbox      chan event
	generation atomic.Uint64

	pageHeight float64
	selection  []boxtree.BoxID
	laidOut    bool

	// ownResolver is set when the resolver was built from the document's
	// stylesheets rather than supplied in the config; only then does
	// Navigate rebuild it for the new page.
	ownResolver bool
}

func New(doc *dom.Document, cfg Config) (*Engine, error) {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Measurer == nil {
		cfg.Measurer = text.FixedMeasurer{Advance: 8}
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 800
	}
	e := &Engine{
		doc:       doc,
		tree:      boxtree.NewTree(),
		resolver:  cfg.Resolver,
		measure:   cfg.Measurer,
		log:       cfg.Logger,
		viewportW: cfg.ViewportWidth,
		viewportH: cfg.ViewportHeight,
		inbox:     make(chan event, cfg.InboxSize),
	}
	if e.resolver == nil {
		res, err := style.NewCascade(doc.Stylesheets...)
		if err != nil {
			return nil, fmt.Errorf("engine: document stylesheets: %w", err)
		}
		e.resolver = res
		e.ownResolver = true
	}
	return e, nil
}

// Post queues a mutation for the next cycle. It never blocks; a full inbox
// rejects the event and the caller decides whether to retry.
func (e *Engine) Post(m Mutation) bool {
	select {
	case e.inbox <- event{mutate: m}:
		return true
	default:
		return false
	}
}

// PostArrival queues a content arrival tagged with the generation the
// producer was started under.
func (e *Engine) PostArrival(a Arrival) bool {
	select {
	case e.inbox <- event{arrival: &a}:
		return true
	default:
		return false
	}
}

// Generation identifies the current page. Producers snapshot it when they
// start so their arrivals can be matched against later navigations.
func (e *Engine) Generation() uint64 { return e.generation.Load() }

// Navigate replaces the document, discards the old box tree, and bumps the
// generation so in-flight arrivals for the old page are dropped at the
// inbox. When the config supplied no resolver a fresh cascade is built
// from the new document's stylesheets.
func (e *Engine) Navigate(doc *dom.Document) error {
	e.generation.Add(1)
	if e.ownResolver {
		res, err := style.NewCascade(doc.Stylesheets...)
		if err != nil {
			return fmt.Errorf("engine: document stylesheets: %w", err)
		}
		e.resolver = res
	}
	e.doc = doc
	e.tree = boxtree.NewTree()
	e.pageHeight = 0
	e.selection = nil
	e.laidOut = false
	e.doc.MarkDirty(e.doc.Root())
	return nil
}

// Resize changes the viewport and forces a relayout on the next cycle.
func (e *Engine) Resize(w, h float64) {
	e.viewportW = w
	e.viewportH = h
	e.doc.MarkDirty(e.doc.Root())
}

// Pending reports whether another cycle would do work: queued events or an
// uncleared dirty set.
func (e *Engine) Pending() bool {
	return len(e.inbox) > 0 || e.doc.HasDirty()
}

// Document exposes the live document for same-goroutine callers such as
// script bindings. Mutations made through it are picked up on the next
// cycle via the dirty flags the arena sets.
func (e *Engine) Document() *dom.Document { return e.doc }

// RunCycle drains the inbox, rebuilds the stale part of the box tree, runs
// a full layout pass, and recomputes the derived state. The dirty snapshot
// taken before the rebuild is cleared only after everything succeeded, so
// a failed cycle retries the same work.
func (e *Engine) RunCycle() error {
	e.drain()
	if !e.doc.HasDirty() && e.laidOut {
		return nil
	}
	if err := e.doc.CheckIntegrity(); err != nil {
		e.log.Error("document integrity check failed", zap.Error(err))
		return err
	}

	snapshot := e.doc.DirtyNodes()
	e.tree.MarkStale(snapshot)

	if err := e.tree.Build(e.doc, e.resolver); err != nil {
		e.log.Error("box tree rebuild failed, dirty set retained", zap.Error(err))
		return err
	}
	h, err := layout.Layout(e.tree, e.measure, e.viewportW)
	if err != nil {
		e.log.Error("layout failed, dirty set retained", zap.Error(err))
		return err
	}

	e.pageHeight = h
	e.selection = e.tree.ContentBoxes()
	e.doc.ClearDirty(snapshot)
	e.laidOut = true
	e.log.Debug("cycle complete",
		zap.Int("dirty", len(snapshot)),
		zap.Float64("page_height", h))
	return nil
}

// drain applies every queued event. A failing mutation is logged and
// skipped; it must not poison the events behind it.
func (e *Engine) drain() {
	for {
		select {
		case ev := <-e.inbox:
			if ev.mutate != nil {
				if err := ev.mutate(e.doc); err != nil {
					e.log.Warn("mutation rejected", zap.Error(err))
				}
			}
			if ev.arrival != nil {
				e.applyArrival(ev.arrival)
			}
		default:
			return
		}
	}
}

func (e *Engine) applyArrival(a *Arrival) {
	if a.Generation != e.generation.Load() {
		e.log.Debug("dropping arrival from superseded page",
			zap.Uint64("arrival_generation", a.Generation))
		return
	}
	if err := e.doc.SetContent(a.Node, a.Content); err != nil {
		e.log.Warn("content arrival for dead node", zap.Error(err))
	}
}

// Frame is the paint port handoff: a consistent view of the laid-out page.
// Valid only after a successful cycle and until the next RunCycle.
type Frame struct {
	Tree       *boxtree.Tree
	PageHeight float64
	ViewportW  float64
	ViewportH  float64

	// Selection is the pre-order sequence of text and image leaves, the
	// order a caret or find-in-page walks the content.
	Selection []boxtree.BoxID
}

func (e *Engine) Frame() (Frame, bool) {
	if !e.laidOut {
		return Frame{}, false
	}
	return Frame{
		Tree:       e.tree,
		PageHeight: e.pageHeight,
		ViewportW:  e.viewportW,
		ViewportH:  e.viewportH,
		Selection:  e.selection,
	}, true
}

// ScrollRange is how far the page can scroll past the viewport.
func (f Frame) ScrollRange() float64 {
	if f.PageHeight <= f.ViewportH {
		return 0
	}
	return f.PageHeight - f.ViewportH
}
