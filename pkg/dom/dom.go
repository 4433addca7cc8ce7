// Package dom implements the mutable document tree and its dirty-tracking
// protocol. Nodes live in an arena owned by the Document; all parent, child
// and cross-tree references are NodeID indices into that arena, never
// pointers, so subtrees can be destroyed and rebuilt without aliasing
// hazards.
package dom

import (
	"errors"
	"fmt"
	"image"
)

// NodeID identifies a node inside a Document's arena. The zero value means
// "no node".
type NodeID int32

// None is the null NodeID.
const None NodeID = 0

type NodeKind uint8

const (
	ElementNode NodeKind = iota
	TextNode
	CommentNode
)

// Attr is one attribute key/value pair. Attribute order is preserved.
type Attr struct {
	Key   string
	Value string
}

// ContentKind tags the drawable payload of a node.
type ContentKind uint8

const (
	ContentNone ContentKind = iota
	ContentText
	ContentImage
	ContentControl
)

// Content is a node's content-descriptor: the drawable payload that can
// change without any structural mutation, for example image pixels arriving
// after first layout replaced a placeholder.
type Content struct {
	Kind  ContentKind
	Text  string
	Image image.Image
	Value string // form control state
}

// Node is one element, text run or comment in the document tree. Fields are
// exported for the box-tree builder; mutation must go through Document
// methods so dirty flags stay consistent.
type Node struct {
	Kind     NodeKind
	Tag      string
	Text     string
	Attrs    []Attr
	Children []NodeID
	Parent   NodeID
	Dirty    bool

	// dirtiedAt is the document's dirty serial when the flag was last
	// set, so ClearDirty can skip nodes re-dirtied after a snapshot.
	dirtiedAt uint64

	// Content and ContentVersion form the content-descriptor. The version
	// increments on every descriptor change so the box-tree builder can
	// detect late-arriving content against its build-time snapshot.
	Content        Content
	ContentVersion uint64

	alive bool
}

func (n *Node) Attribute(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// IntAttribute returns an attribute parsed as a positive integer, or def if
// the attribute is absent or malformed.
func (n *Node) IntAttribute(key string, def int) int {
	v, ok := n.Attribute(key)
	if !ok {
		return def
	}
	var parsed int
	if _, err := fmt.Sscanf(v, "%d", &parsed); err != nil || parsed < 1 {
		return def
	}
	return parsed
}

// Document owns the node arena. The root is created at construction and is
// never destroyed. A Document must only be mutated from the engine
// goroutine; asynchronous producers deliver changes through the engine
// inbox instead of touching the tree directly.
type Document struct {
	nodes []Node
	free  []NodeID
	root  NodeID

	// Stylesheets and Scripts collect the text of <style> and <script>
	// elements found while the document was parsed.
	Stylesheets []string
	Scripts     []string

	// dirtySerial advances on every MarkDirty; snapSerial records its
	// value at the last DirtyNodes snapshot.
	dirtySerial uint64
	snapSerial  uint64
}

func NewDocument() *Document {
	d := &Document{
		nodes: make([]Node, 1), // index 0 is the None sentinel
	}
	d.root = d.alloc(Node{Kind: ElementNode, Tag: "document", alive: true})
	return d
}

func (d *Document) Root() NodeID { return d.root }

func (d *Document) alloc(n Node) NodeID {
	if len(d.free) > 0 {
		id := d.free[len(d.free)-1]
		d.free = d.free[:len(d.free)-1]
		d.nodes[id] = n
		return id
	}
	d.nodes = append(d.nodes, n)
	return NodeID(len(d.nodes) - 1)
}

// Node returns the arena slot for id. The pointer is only valid until the
// next node allocation; callers must not retain it. Returns nil for None or
// a destroyed node.
func (d *Document) Node(id NodeID) *Node {
	if id <= None || int(id) >= len(d.nodes) {
		return nil
	}
	n := &d.nodes[id]
	if !n.alive {
		return nil
	}
	return n
}

// Alive reports whether id names a live node in this document.
func (d *Document) Alive(id NodeID) bool { return d.Node(id) != nil }

func (d *Document) CreateElement(tag string) NodeID {
	return d.alloc(Node{Kind: ElementNode, Tag: tag, alive: true})
}

func (d *Document) CreateText(text string) NodeID {
	return d.alloc(Node{
		Kind:    TextNode,
		Text:    text,
		Content: Content{Kind: ContentText, Text: text},
		alive:   true,
	})
}

func (d *Document) CreateComment(text string) NodeID {
	return d.alloc(Node{Kind: CommentNode, Text: text, alive: true})
}

// Parent returns the parent of id, or None for the root.
func (d *Document) Parent(id NodeID) (NodeID, error) {
	n := d.Node(id)
	if n == nil {
		return None, corrupt(id, "parent lookup on dead node")
	}
	return n.Parent, nil
}

// ChildrenOf returns the ordered child sequence of id. The returned slice
// is the document's own; callers must treat it as read-only.
func (d *Document) ChildrenOf(id NodeID) ([]NodeID, error) {
	n := d.Node(id)
	if n == nil {
		return nil, corrupt(id, "children lookup on dead node")
	}
	return n.Children, nil
}

// AppendChild attaches a detached node as the last child of parent and
// dirties the parent chain.
func (d *Document) AppendChild(parent, child NodeID) error {
	return d.InsertChild(parent, child, -1)
}

// InsertChild attaches a detached node at index idx of parent's child
// sequence (idx < 0 or past the end appends).
func (d *Document) InsertChild(parent, child NodeID, idx int) error {
	p := d.Node(parent)
	if p == nil {
		return corrupt(parent, "insert into dead node")
	}
	c := d.Node(child)
	if c == nil {
		return corrupt(child, "insert of dead node")
	}
	if c.Parent != None {
		return fmt.Errorf("dom: node %d already attached", child)
	}
	if child == d.root {
		return fmt.Errorf("dom: cannot attach the root")
	}
	for anc := parent; anc != None; {
		if anc == child {
			return corrupt(child, "insert would create a cycle")
		}
		anc = d.nodes[anc].Parent
	}
	c.Parent = parent
	if idx < 0 || idx >= len(p.Children) {
		p.Children = append(p.Children, child)
	} else {
		p.Children = append(p.Children, None)
		copy(p.Children[idx+1:], p.Children[idx:])
		p.Children[idx] = child
	}
	d.MarkDirty(parent)
	d.markSubtreeDirty(child)
	return nil
}

// RemoveChild detaches child from parent and destroys its whole subtree.
// The freed IDs may be reused by later allocations.
func (d *Document) RemoveChild(parent, child NodeID) error {
	p := d.Node(parent)
	if p == nil {
		return corrupt(parent, "remove from dead node")
	}
	c := d.Node(child)
	if c == nil || c.Parent != parent {
		return corrupt(child, "remove of a node that is not a child")
	}
	for i, id := range p.Children {
		if id == child {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			d.destroy(child)
			d.MarkDirty(parent)
			return nil
		}
	}
	return corrupt(child, "parent back-reference does not match child sequence")
}

func (d *Document) destroy(id NodeID) {
	n := &d.nodes[id]
	for _, c := range n.Children {
		d.destroy(c)
	}
	d.nodes[id] = Node{}
	d.free = append(d.free, id)
}

// SetAttribute sets or replaces an attribute, preserving attribute order,
// and dirties the node.
func (d *Document) SetAttribute(id NodeID, key, value string) error {
	n := d.Node(id)
	if n == nil {
		return corrupt(id, "attribute set on dead node")
	}
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs[i].Value = value
			d.MarkDirty(id)
			return nil
		}
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Value: value})
	d.MarkDirty(id)
	return nil
}

func (d *Document) RemoveAttribute(id NodeID, key string) error {
	n := d.Node(id)
	if n == nil {
		return corrupt(id, "attribute removal on dead node")
	}
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			d.MarkDirty(id)
			return nil
		}
	}
	return nil
}

// SetText replaces a text node's run and its text content-descriptor.
func (d *Document) SetText(id NodeID, text string) error {
	n := d.Node(id)
	if n == nil {
		return corrupt(id, "text set on dead node")
	}
	n.Text = text
	return d.SetContent(id, Content{Kind: ContentText, Text: text})
}

// SetContent replaces the node's content-descriptor. This is itself a
// dirtying event: a descriptor change with no structural mutation must
// still force the node's box to be rebuilt on the next cycle.
func (d *Document) SetContent(id NodeID, c Content) error {
	n := d.Node(id)
	if n == nil {
		return corrupt(id, "content set on dead node")
	}
	n.Content = c
	n.ContentVersion++
	d.MarkDirty(id)
	return nil
}

// MarkDirty sets the dirty flag on id and every ancestor. Propagation is
// monotonic: nothing clears flags until the engine finishes a cycle.
func (d *Document) MarkDirty(id NodeID) {
	d.dirtySerial++
	steps := 0
	for id != None {
		n := d.Node(id)
		if n == nil {
			return
		}
		n.Dirty = true
		n.dirtiedAt = d.dirtySerial
		id = n.Parent
		if steps++; steps > len(d.nodes) {
			// Cycle in the parent chain; integrity checking will report it.
			return
		}
	}
}

func (d *Document) markSubtreeDirty(id NodeID) {
	n := d.Node(id)
	if n == nil {
		return
	}
	d.MarkDirty(id)
	for _, c := range n.Children {
		d.markSubtreeDirty(c)
	}
}

// DirtyNodes returns every currently dirty live node in pre-order. The
// engine snapshots this at the start of a cycle and clears exactly this set
// once rebuild and layout both succeed.
func (d *Document) DirtyNodes() []NodeID {
	d.snapSerial = d.dirtySerial
	var out []NodeID
	w := d.Walk()
	for id, ok := w.Next(); ok; id, ok = w.Next() {
		if d.nodes[id].Dirty {
			out = append(out, id)
		}
	}
	return out
}

// ClearDirty clears the dirty flag on exactly the nodes of a DirtyNodes
// snapshot. Nodes destroyed or re-dirtied since the snapshot are skipped.
func (d *Document) ClearDirty(ids []NodeID) {
	for _, id := range ids {
		if n := d.Node(id); n != nil && n.dirtiedAt <= d.snapSerial {
			n.Dirty = false
		}
	}
}

// HasDirty reports whether any live node is dirty.
func (d *Document) HasDirty() bool {
	w := d.Walk()
	for id, ok := w.Next(); ok; id, ok = w.Next() {
		if d.nodes[id].Dirty {
			return true
		}
	}
	return false
}

var ErrStructuralCorruption = errors.New("dom: structural corruption")

// CorruptionError reports a fatal inconsistency in the tree: a cycle, a
// dangling reference, or a dead node reached through a live sequence. It is
// never a normal runtime condition; the engine aborts the cycle and retries.
type CorruptionError struct {
	Node   NodeID
	Detail string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("dom: structural corruption at node %d: %s", e.Node, e.Detail)
}

func (e *CorruptionError) Unwrap() error { return ErrStructuralCorruption }

func corrupt(id NodeID, detail string) error {
	return &CorruptionError{Node: id, Detail: detail}
}

// CheckIntegrity verifies the structural invariants: the tree is acyclic,
// every child is alive, and every child's parent back-reference names the
// node owning it.
func (d *Document) CheckIntegrity() error {
	seen := make(map[NodeID]bool, len(d.nodes))
	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		if seen[id] {
			return corrupt(id, "node reachable twice (cycle or shared child)")
		}
		seen[id] = true
		n := d.Node(id)
		if n == nil {
			return corrupt(id, "dead node in a live child sequence")
		}
		for _, c := range n.Children {
			cn := d.Node(c)
			if cn == nil {
				return corrupt(c, "dead child")
			}
			if cn.Parent != id {
				return corrupt(c, "parent back-reference mismatch")
			}
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(d.root)
}
