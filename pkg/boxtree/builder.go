package boxtree

import (
	"vireo/pkg/dom"
	"vireo/pkg/style"
)

// Build re-derives the box tree from the document. Subtrees rooted at
// non-dirty nodes whose content-descriptor is unchanged are reattached
// as-is; everything else is rebuilt, its computed style re-fetched. On any
// error the previous tree is left in place (still stale) so the next cycle
// can retry.
func (t *Tree) Build(d *dom.Document, res style.Resolver) error {
	b := &builder{tree: t, doc: d, res: res, styles: make(map[dom.NodeID]*style.Computed)}
	root, err := b.build(d.Root(), None)
	if err != nil {
		return err
	}
	if root == None {
		return corrupt(None, "document root produced no box")
	}
	t.root = root
	t.sweep()
	return nil
}

// builder carries the per-cycle style context so each node resolves at most
// once per rebuild.
type builder struct {
	tree   *Tree
	doc    *dom.Document
	res    style.Resolver
	styles map[dom.NodeID]*style.Computed
}

func (b *builder) styleFor(id dom.NodeID) (*style.Computed, error) {
	if cs, ok := b.styles[id]; ok {
		return cs, nil
	}
	cs, err := b.res.Resolve(b.doc, id)
	if err != nil {
		return nil, err
	}
	b.styles[id] = cs
	return cs, nil
}

// build returns the box for a document node, either reused or fresh, or
// None when the node generates no box (display:none, comments).
func (b *builder) build(id dom.NodeID, parent BoxID) (BoxID, error) {
	n := b.doc.Node(id)
	if n == nil {
		return None, corrupt(None, "dangling document node reference")
	}
	if n.Kind == dom.CommentNode {
		return None, nil
	}

	if existing := b.tree.byNode[id]; existing != None && !n.Dirty {
		eb := b.tree.Box(existing)
		if eb != nil && eb.ContentVersion == n.ContentVersion {
			eb.Parent = parent
			return existing, nil
		}
	}

	cs, err := b.styleFor(id)
	if err != nil {
		return None, err
	}
	if cs.Display == style.DisplayNone {
		return None, nil
	}

	fc := contextFor(n, cs)
	if fc == TableWrapper {
		return b.buildTable(id, n, cs, parent)
	}

	box := Box{
		Context:        fc,
		Parent:         parent,
		Node:           id,
		Tag:            n.Tag,
		Style:          cs,
		ContentVersion: n.ContentVersion,
		state:          BuiltClean,
	}
	if n.Kind == dom.TextNode {
		box.Text = n.Content.Text
	}
	if n.Content.Kind == dom.ContentImage {
		box.Image = n.Content.Image
	}
	bid := b.tree.alloc(box)

	kids, err := b.doc.ChildrenOf(id)
	if err != nil {
		return None, err
	}
	var children []BoxID
	for _, cid := range kids {
		child, err := b.build(cid, bid)
		if err != nil {
			return None, err
		}
		if child != None {
			children = append(children, child)
		}
	}
	b.tree.boxes[bid].Children = children
	b.tree.byNode[id] = bid
	return bid, nil
}

// contextFor selects the formatting-context tag from the display property,
// the node kind, and the table element kinds.
func contextFor(n *dom.Node, cs *style.Computed) FormattingContext {
	if n.Kind == dom.TextNode {
		return Inline
	}
	switch cs.Display {
	case style.DisplayInline:
		return Inline
	case style.DisplayFlex:
		return Flex
	case style.DisplayTable:
		return TableWrapper
	case style.DisplayTableRow:
		return TableRow
	case style.DisplayTableCell:
		return TableCell
	default:
		return Block
	}
}

// sweep frees every box no longer reachable from the root and rebuilds the
// node index from the live tree. Boxes discarded by a rebuild, and boxes of
// removed document nodes, are collected here.
func (t *Tree) sweep() {
	reachable := make(map[BoxID]bool, len(t.boxes))
	t.Walk(func(id BoxID, _ *Box) { reachable[id] = true })

	t.byNode = make(map[dom.NodeID]BoxID, len(reachable))
	for i := 1; i < len(t.boxes); i++ {
		id := BoxID(i)
		if !t.boxes[i].alive {
			continue
		}
		if !reachable[id] {
			t.boxes[i] = Box{}
			t.free = append(t.free, id)
			continue
		}
		if t.boxes[i].Node != dom.None {
			t.byNode[t.boxes[i].Node] = id
		}
	}
}
