package boxtree

import (
	"strings"

	"vireo/pkg/dom"
	"vireo/pkg/style"
)

var rowGroupTags = map[string]bool{"tbody": true, "thead": true, "tfoot": true}

// buildTable materializes a TableWrapper box and its grid. Row groups are
// flattened, stray cells get an anonymous row, and stray non-cell children
// get an anonymous row and cell, so the wrapper's children are always
// TableRow boxes and a row's children are always TableCell boxes.
func (b *builder) buildTable(id dom.NodeID, n *dom.Node, cs *style.Computed, parent BoxID) (BoxID, error) {
	grid := NewTableGrid()
	bid := b.tree.alloc(Box{
		Context:        TableWrapper,
		Parent:         parent,
		Node:           id,
		Style:          cs,
		ContentVersion: n.ContentVersion,
		Grid:           grid,
		state:          BuiltClean,
	})

	items, err := b.tableItems(id)
	if err != nil {
		return None, err
	}

	var rows []BoxID
	rowIdx := 0
	anonRow := None // open anonymous row collecting stray cells

	for _, cid := range items {
		ccs, err := b.styleFor(cid)
		if err != nil {
			return None, err
		}
		switch ccs.Display {
		case style.DisplayNone:
			continue
		case style.DisplayTableRow:
			anonRow = None
			rid, err := b.buildRow(cid, bid, grid, rowIdx)
			if err != nil {
				return None, err
			}
			if rid != None {
				rows = append(rows, rid)
				rowIdx++
			}
		case style.DisplayTableCell:
			// Consecutive stray cells share one anonymous row.
			if anonRow == None {
				anonRow = b.allocAnonymous(TableRow, bid, cs)
				rows = append(rows, anonRow)
				rowIdx++
			}
			cellID, err := b.buildCell(cid, anonRow, grid, rowIdx-1)
			if err != nil {
				return None, err
			}
			b.appendChild(anonRow, cellID)
		default:
			anonRow = None
			rid := b.allocAnonymous(TableRow, bid, cs)
			rows = append(rows, rid)
			cellID := b.allocAnonymous(TableCell, rid, cs)
			span := grid.PlaceCell(cellID, rowIdx, 1, 1)
			b.tree.boxes[cellID].Span = &span
			inner, err := b.build(cid, cellID)
			if err != nil {
				return None, err
			}
			if inner != None {
				b.appendChild(cellID, inner)
			}
			b.appendChild(rid, cellID)
			rowIdx++
		}
	}

	// Declared dimensions beyond the occupied cell set leave legal
	// unoccupied slots.
	grid.Grow(n.IntAttribute("cols", 0), n.IntAttribute("rows", 0))

	b.tree.boxes[bid].Children = rows
	b.tree.byNode[id] = bid
	return bid, nil
}

// tableItems returns the table's row-level children in document order with
// row groups flattened and inter-row whitespace dropped.
func (b *builder) tableItems(table dom.NodeID) ([]dom.NodeID, error) {
	kids, err := b.doc.ChildrenOf(table)
	if err != nil {
		return nil, err
	}
	var items []dom.NodeID
	for _, cid := range kids {
		cn := b.doc.Node(cid)
		if cn == nil {
			return nil, corrupt(None, "dangling table child")
		}
		if cn.Kind == dom.CommentNode {
			continue
		}
		if cn.Kind == dom.TextNode && strings.TrimSpace(cn.Text) == "" {
			continue
		}
		if cn.Kind == dom.ElementNode && rowGroupTags[cn.Tag] {
			groupKids, err := b.doc.ChildrenOf(cid)
			if err != nil {
				return nil, err
			}
			for _, gid := range groupKids {
				gn := b.doc.Node(gid)
				if gn == nil {
					return nil, corrupt(None, "dangling row-group child")
				}
				if gn.Kind == dom.ElementNode {
					items = append(items, gid)
				}
			}
			continue
		}
		items = append(items, cid)
	}
	return items, nil
}

// buildRow builds or reuses one TableRow box, claiming grid slots for its
// cells at rowIdx. A reused row still re-places its cells, since the grid
// belongs to the freshly rebuilt wrapper; placement is deterministic so the
// claims land on the same slots.
func (b *builder) buildRow(id dom.NodeID, table BoxID, grid *TableGrid, rowIdx int) (BoxID, error) {
	n := b.doc.Node(id)
	if n == nil {
		return None, corrupt(None, "dangling row node")
	}

	if existing := b.tree.byNode[id]; existing != None && !n.Dirty {
		eb := b.tree.Box(existing)
		if eb != nil && eb.ContentVersion == n.ContentVersion {
			eb.Parent = table
			b.replaceCells(existing, grid, rowIdx)
			return existing, nil
		}
	}

	cs, err := b.styleFor(id)
	if err != nil {
		return None, err
	}
	rid := b.tree.alloc(Box{
		Context:        TableRow,
		Parent:         table,
		Node:           id,
		Style:          cs,
		ContentVersion: n.ContentVersion,
		state:          BuiltClean,
	})

	kids, err := b.doc.ChildrenOf(id)
	if err != nil {
		return None, err
	}
	var cells []BoxID
	for _, cid := range kids {
		cn := b.doc.Node(cid)
		if cn == nil {
			return None, corrupt(rid, "dangling cell node")
		}
		if cn.Kind == dom.CommentNode {
			continue
		}
		if cn.Kind == dom.TextNode && strings.TrimSpace(cn.Text) == "" {
			continue
		}
		ccs, err := b.styleFor(cid)
		if err != nil {
			return None, err
		}
		if ccs.Display == style.DisplayNone {
			continue
		}
		if ccs.Display == style.DisplayTableCell {
			cellID, err := b.buildCell(cid, rid, grid, rowIdx)
			if err != nil {
				return None, err
			}
			cells = append(cells, cellID)
			continue
		}
		// Anything else inside a row wraps into an anonymous cell.
		cellID := b.allocAnonymous(TableCell, rid, cs)
		span := grid.PlaceCell(cellID, rowIdx, 1, 1)
		b.tree.boxes[cellID].Span = &span
		inner, err := b.build(cid, cellID)
		if err != nil {
			return None, err
		}
		if inner != None {
			b.appendChild(cellID, inner)
		}
		cells = append(cells, cellID)
	}
	b.tree.boxes[rid].Children = cells
	b.tree.byNode[id] = rid
	return rid, nil
}

// buildCell builds or reuses one TableCell box and claims its slots.
func (b *builder) buildCell(id dom.NodeID, row BoxID, grid *TableGrid, rowIdx int) (BoxID, error) {
	n := b.doc.Node(id)
	if n == nil {
		return None, corrupt(None, "dangling cell node")
	}
	colSpan := n.IntAttribute("colspan", 1)
	rowSpan := n.IntAttribute("rowspan", 1)

	if existing := b.tree.byNode[id]; existing != None && !n.Dirty {
		eb := b.tree.Box(existing)
		if eb != nil && eb.ContentVersion == n.ContentVersion {
			eb.Parent = row
			span := grid.PlaceCell(existing, rowIdx, colSpan, rowSpan)
			eb.Span = &span
			return existing, nil
		}
	}

	cs, err := b.styleFor(id)
	if err != nil {
		return None, err
	}
	cellID := b.tree.alloc(Box{
		Context:        TableCell,
		Parent:         row,
		Node:           id,
		Style:          cs,
		ContentVersion: n.ContentVersion,
		state:          BuiltClean,
	})
	span := grid.PlaceCell(cellID, rowIdx, colSpan, rowSpan)
	b.tree.boxes[cellID].Span = &span

	kids, err := b.doc.ChildrenOf(id)
	if err != nil {
		return None, err
	}
	var children []BoxID
	for _, cid := range kids {
		child, err := b.build(cid, cellID)
		if err != nil {
			return None, err
		}
		if child != None {
			children = append(children, child)
		}
	}
	b.tree.boxes[cellID].Children = children
	b.tree.byNode[id] = cellID
	return cellID, nil
}

// replaceCells re-claims grid slots for the cells of a reused row.
func (b *builder) replaceCells(row BoxID, grid *TableGrid, rowIdx int) {
	rb := b.tree.Box(row)
	if rb == nil {
		return
	}
	children := append([]BoxID(nil), rb.Children...)
	for _, cellID := range children {
		cb := b.tree.Box(cellID)
		if cb == nil || cb.Span == nil {
			continue
		}
		span := grid.PlaceCell(cellID, rowIdx, cb.Span.ColSpan, cb.Span.RowSpan)
		b.tree.boxes[cellID].Span = &span
	}
}

// allocAnonymous creates a box with no originating node, inheriting just
// enough style from the wrapper for its own (zero) edges.
func (b *builder) allocAnonymous(fc FormattingContext, parent BoxID, from *style.Computed) BoxID {
	return b.tree.alloc(Box{
		Context: fc,
		Parent:  parent,
		Node:    dom.None,
		Style: &style.Computed{
			Display:  style.DisplayBlock,
			FontSize: from.FontSize,
			Color:    from.Color,
		},
		state: BuiltClean,
	})
}

func (b *builder) appendChild(parent, child BoxID) {
	b.tree.boxes[parent].Children = append(b.tree.boxes[parent].Children, child)
}
