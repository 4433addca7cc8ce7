// Package boxtree derives and incrementally maintains the box tree: the
// layout counterpart of the document tree. Boxes live in an arena keyed by
// BoxID; the link back to the originating document node is a plain NodeID,
// never a pointer. The Builder rebuilds exactly the subtrees rooted at
// dirty document nodes and reattaches clean subtrees unchanged.
package boxtree

import (
	"errors"
	"fmt"
	"image"

	"vireo/pkg/dom"
	"vireo/pkg/style"
)

// BoxID identifies a box in a Tree's arena. Zero means "no box".
type BoxID int32

const None BoxID = 0

// FormattingContext tags how a box's children are sized and positioned.
// The set is closed: every dispatch site switches exhaustively over it.
type FormattingContext uint8

const (
	Block FormattingContext = iota
	Inline
	TableWrapper
	TableRow
	TableCell
	Flex
)

func (fc FormattingContext) String() string {
	switch fc {
	case Block:
		return "block"
	case Inline:
		return "inline"
	case TableWrapper:
		return "table"
	case TableRow:
		return "table-row"
	case TableCell:
		return "table-cell"
	case Flex:
		return "flex"
	}
	return "unknown"
}

// Rect is box geometry in the shared page coordinate space. Undefined
// until a layout pass has completed.
type Rect struct {
	X, Y, Width, Height float64
}

// State tracks a box across frames: Unbuilt -> BuiltClean -> BuiltStale on
// dirtying -> BuiltClean again after a successful rebuild+relayout. The
// paint port must never observe BuiltStale; the engine enforces that.
type State uint8

const (
	Unbuilt State = iota
	BuiltClean
	BuiltStale
)

// Box is one node of the box tree. The formatting-context tag is fixed at
// build time; changing it means rebuilding the box.
type Box struct {
	Context  FormattingContext
	Children []BoxID
	Parent   BoxID

	// Node is the originating document node, or dom.None for anonymous
	// boxes. Relation and lookup only, never ownership. Tag is the
	// element tag snapshot ("" for text runs and anonymous boxes).
	Node dom.NodeID
	Tag  string

	// Style is the computed style fetched when the box was built.
	Style *style.Computed

	// Content snapshot taken at build time. Text is the raw run (inline
	// layout collapses whitespace later); Image is nil until pixels have
	// arrived. ContentVersion pins the snapshot against the document
	// node's descriptor version.
	Text           string
	Image          image.Image
	ContentVersion uint64

	// Grid is set on TableWrapper boxes only. Span holds a cell's slot
	// claim on TableCell boxes only.
	Grid *TableGrid
	Span *CellSpan

	Geom Rect

	// Fragments are the per-line pieces of a wrapped text run, produced by
	// the inline engine. Geom is their bounding box.
	Fragments []TextFragment

	state State
	alive bool
}

// TextFragment is one line-box slice of a text run.
type TextFragment struct {
	Text string
	Rect Rect
}

func (b *Box) State() State { return b.state }

// IsText reports whether this box is a text run leaf.
func (b *Box) IsText() bool { return b.Text != "" }

// CellSpan records the rectangular slot claim of a table cell.
type CellSpan struct {
	Col, Row         int
	ColSpan, RowSpan int
}

// Tree owns the box arena. One Tree persists across cycles so that clean
// subtrees keep their identity between rebuilds.
type Tree struct {
	boxes  []Box
	free   []BoxID
	root   BoxID
	byNode map[dom.NodeID]BoxID
}

func NewTree() *Tree {
	return &Tree{
		boxes:  make([]Box, 1), // slot 0 is the None sentinel
		byNode: make(map[dom.NodeID]BoxID),
	}
}

func (t *Tree) Root() BoxID { return t.root }

// Box returns the arena slot for id, or nil. Pointers are transient: valid
// only until the next allocation.
func (t *Tree) Box(id BoxID) *Box {
	if id <= None || int(id) >= len(t.boxes) {
		return nil
	}
	b := &t.boxes[id]
	if !b.alive {
		return nil
	}
	return b
}

// ByNode returns the box built for a document node, if any.
func (t *Tree) ByNode(id dom.NodeID) BoxID {
	return t.byNode[id]
}

func (t *Tree) alloc(b Box) BoxID {
	b.alive = true
	if len(t.free) > 0 {
		id := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.boxes[id] = b
		return id
	}
	t.boxes = append(t.boxes, b)
	return BoxID(len(t.boxes) - 1)
}

// MarkStale flags the boxes of the given document nodes (and their
// ancestor chain of boxes) as stale ahead of a rebuild.
func (t *Tree) MarkStale(ids []dom.NodeID) {
	for _, nid := range ids {
		bid := t.byNode[nid]
		for bid != None {
			b := t.Box(bid)
			if b == nil || b.state == BuiltStale {
				break
			}
			b.state = BuiltStale
			bid = b.Parent
		}
	}
}

// Stale reports whether any live box is currently BuiltStale.
func (t *Tree) Stale() bool {
	for i := 1; i < len(t.boxes); i++ {
		if t.boxes[i].alive && t.boxes[i].state == BuiltStale {
			return true
		}
	}
	return false
}

// Walk visits the tree pre-order, depth-first.
func (t *Tree) Walk(visit func(BoxID, *Box)) {
	var rec func(id BoxID)
	rec = func(id BoxID) {
		b := t.Box(id)
		if b == nil {
			return
		}
		visit(id, b)
		for _, c := range b.Children {
			rec(c)
		}
	}
	if t.root != None {
		rec(t.root)
	}
}

// ContentBoxes returns the text and image leaves in pre-order walk order.
// The engine recomputes this after layout as the selection order.
func (t *Tree) ContentBoxes() []BoxID {
	var out []BoxID
	t.Walk(func(id BoxID, b *Box) {
		if b.IsText() || b.Image != nil {
			out = append(out, id)
		}
	})
	return out
}

var ErrCorrupt = errors.New("boxtree: structural corruption")

func corrupt(id BoxID, detail string) error {
	return fmt.Errorf("%w: box %d: %s", ErrCorrupt, id, detail)
}
