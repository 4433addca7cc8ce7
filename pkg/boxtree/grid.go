package boxtree

// TableGrid is the sparse slot map owned by a TableWrapper box. Every cell,
// spans included, claims a rectangular contiguous block of slots; no two
// cells may claim the same slot. Unoccupied slots are legal and are simply
// skipped during iteration.
type TableGrid struct {
	Cols, Rows int

	occupancy map[gridSlot]BoxID

	// Width and offset accumulators, reset and filled by the table engine
	// on every layout pass. ColMin/ColOpt are the running per-column
	// {minimum, optimal} widths; RowStart is the minimum starting y-offset
	// per row (relative to the table top) imposed by row-spanning cells.
	ColMin, ColOpt []float64
	RowStart       []float64
}

type gridSlot struct {
	Col, Row int
}

func NewTableGrid() *TableGrid {
	return &TableGrid{occupancy: make(map[gridSlot]BoxID)}
}

// At returns the cell occupying a slot, anchor or spanned, or None. Out of
// range slots are simply unoccupied.
func (g *TableGrid) At(col, row int) BoxID {
	return g.occupancy[gridSlot{col, row}]
}

func (g *TableGrid) free(col, row, colSpan, rowSpan int) bool {
	for c := col; c < col+colSpan; c++ {
		for r := row; r < row+rowSpan; r++ {
			if g.occupancy[gridSlot{c, r}] != None {
				return false
			}
		}
	}
	return true
}

// PlaceCell claims the first free rectangular block of colSpan x rowSpan
// slots in the given row, scanning left to right past already-claimed
// slots. The grid grows as needed, so a span reaching past the current
// bounds is recovered, never fatal.
func (g *TableGrid) PlaceCell(cell BoxID, row, colSpan, rowSpan int) CellSpan {
	if colSpan < 1 {
		colSpan = 1
	}
	if rowSpan < 1 {
		rowSpan = 1
	}
	col := 0
	for !g.free(col, row, colSpan, rowSpan) {
		col++
	}
	for c := col; c < col+colSpan; c++ {
		for r := row; r < row+rowSpan; r++ {
			g.occupancy[gridSlot{c, r}] = cell
		}
	}
	if col+colSpan > g.Cols {
		g.Cols = col + colSpan
	}
	if row+rowSpan > g.Rows {
		g.Rows = row + rowSpan
	}
	return CellSpan{Col: col, Row: row, ColSpan: colSpan, RowSpan: rowSpan}
}

// Grow declares the grid to be at least cols x rows, leaving the new slots
// unoccupied. Used when the document declares dimensions larger than the
// occupied cell set.
func (g *TableGrid) Grow(cols, rows int) {
	if cols > g.Cols {
		g.Cols = cols
	}
	if rows > g.Rows {
		g.Rows = rows
	}
}

// ResetAccumulators sizes and zeroes the width/offset accumulators for a
// fresh layout pass.
func (g *TableGrid) ResetAccumulators() {
	g.ColMin = make([]float64, g.Cols)
	g.ColOpt = make([]float64, g.Cols)
	g.RowStart = make([]float64, g.Rows+1)
}

// CheckIntegrity verifies that every claimed slot lies inside the declared
// bounds. A slot claimed twice cannot be constructed through PlaceCell, but
// a grid mutated out from under the tree is a fatal corruption.
func (g *TableGrid) CheckIntegrity(owner BoxID) error {
	for s := range g.occupancy {
		if s.Col < 0 || s.Row < 0 || s.Col >= g.Cols || s.Row >= g.Rows {
			return corrupt(owner, "grid slot claimed outside declared bounds")
		}
	}
	return nil
}
