package dom

// Walker is a lazy pre-order traversal over a Document. It is read-only and
// restartable; mutating the tree mid-walk invalidates it.
type Walker struct {
	doc   *Document
	stack []NodeID
}

// Walk starts a pre-order traversal at the root.
func (d *Document) Walk() *Walker {
	return &Walker{doc: d, stack: []NodeID{d.root}}
}

// WalkFrom starts a pre-order traversal at an arbitrary subtree root.
func (d *Document) WalkFrom(id NodeID) *Walker {
	return &Walker{doc: d, stack: []NodeID{id}}
}

// Next yields the next node in pre-order, or false when the traversal is
// exhausted. Dead nodes are skipped.
func (w *Walker) Next() (NodeID, bool) {
	for len(w.stack) > 0 {
		id := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		n := w.doc.Node(id)
		if n == nil {
			continue
		}
		// Push children reversed so they pop in document order.
		for i := len(n.Children) - 1; i >= 0; i-- {
			w.stack = append(w.stack, n.Children[i])
		}
		return id, true
	}
	return None, false
}

// Restart rewinds the walker to the document root.
func (w *Walker) Restart() {
	w.stack = w.stack[:0]
	w.stack = append(w.stack, w.doc.root)
}
