package layout

import (
	"fmt"

	"vireo/pkg/boxtree"
)

// layoutTable sizes a TableWrapper: a two-pass column-width resolution
// over the grid's {minimum, optimal} accumulators, then one height pass
// that lays every cell out at its resolved column width. Row-spanning
// cells impose minimum starting offsets on the rows below them; a row's
// final y is assigned only after every spanning cell above it has been
// laid out. Unoccupied grid slots are skipped throughout.
func (ctx *Context) layoutTable(id boxtree.BoxID, availWidth, x, y float64) (float64, error) {
	b := ctx.tree.Box(id)
	cs := b.Style
	grid := b.Grid
	if grid == nil {
		return 0, fmt.Errorf("%w: table box %d has no grid", boxtree.ErrCorrupt, id)
	}
	if err := grid.CheckIntegrity(id); err != nil {
		return 0, err
	}

	colMin, colOpt, err := ctx.tableColumnBounds(id)
	if err != nil {
		return 0, err
	}
	grid.ResetAccumulators()
	copy(grid.ColMin, colMin)
	copy(grid.ColOpt, colOpt)

	// Resolve final column widths against the available content width.
	avail := availWidth - cs.ContentInsetsH()
	if cs.HasWidth {
		avail = cs.Width
	}
	colWidths := resolveColumnWidths(colMin, colOpt, avail)

	contentX := x + cs.Border.Left + cs.Padding.Left
	contentTop := y + cs.Border.Top + cs.Padding.Top
	tableContentW := 0.0
	for _, w := range colWidths {
		tableContentW += w
	}

	cursorY := contentTop
	for r, rowID := range b.Children {
		row := ctx.tree.Box(rowID)
		if row == nil {
			return 0, corruptChild(id, rowID)
		}
		if r < len(grid.RowStart) && contentTop+grid.RowStart[r] > cursorY {
			cursorY = contentTop + grid.RowStart[r]
		}
		rowTop := cursorY
		rowH := 0.0

		for _, cellID := range row.Children {
			cell := ctx.tree.Box(cellID)
			if cell == nil {
				return 0, corruptChild(rowID, cellID)
			}
			span := cell.Span
			if span == nil {
				return 0, fmt.Errorf("%w: cell box %d has no slot claim", boxtree.ErrCorrupt, cellID)
			}
			cellX := contentX
			for c := 0; c < span.Col && c < len(colWidths); c++ {
				cellX += colWidths[c]
			}
			cellW := 0.0
			for c := span.Col; c < span.Col+span.ColSpan && c < len(colWidths); c++ {
				cellW += colWidths[c]
			}

			h, err := ctx.layoutBox(cellID, cellW, cellX, rowTop)
			if err != nil {
				return 0, err
			}
			if span.RowSpan == 1 {
				if h > rowH {
					rowH = h
				}
			} else {
				// A spanning cell pushes down the first row below it.
				below := span.Row + span.RowSpan
				end := rowTop + h - contentTop
				if below < len(grid.RowStart) && end > grid.RowStart[below] {
					grid.RowStart[below] = end
				}
			}
		}

		row.Geom = boxtree.Rect{X: contentX, Y: rowTop, Width: tableContentW, Height: rowH}
		cursorY = rowTop + rowH
	}

	// A row span reaching past the last row still extends the table.
	if len(grid.RowStart) > 0 {
		last := contentTop + grid.RowStart[len(grid.RowStart)-1]
		if last > cursorY {
			cursorY = last
		}
	}

	contentH := cursorY - contentTop
	if cs.HasHeight && cs.Height > contentH {
		contentH = cs.Height
	}
	height := contentH + cs.ContentInsetsV()
	b = ctx.tree.Box(id)
	b.Geom = boxtree.Rect{X: x, Y: y, Width: tableContentW + cs.ContentInsetsH(), Height: height}
	return height, nil
}

// tableColumnBounds runs the two width passes. Pass 1 accumulates
// per-column {minimum, optimal} widths from single-column cells only.
// Pass 2 revisits spanning cells: when a spanning cell needs more than the
// sum of its columns, the shortfall is distributed evenly across the
// spanned columns. A column's optimal is then clamped up to its own
// minimum — minimums always win over the even split.
func (ctx *Context) tableColumnBounds(id boxtree.BoxID) (colMin, colOpt []float64, err error) {
	b := ctx.tree.Box(id)
	grid := b.Grid
	colMin = make([]float64, grid.Cols)
	colOpt = make([]float64, grid.Cols)

	type spanned struct {
		cell boxtree.BoxID
		span boxtree.CellSpan
	}
	var spanning []spanned

	for _, rowID := range b.Children {
		row := ctx.tree.Box(rowID)
		if row == nil {
			return nil, nil, corruptChild(id, rowID)
		}
		for _, cellID := range row.Children {
			cell := ctx.tree.Box(cellID)
			if cell == nil || cell.Span == nil {
				return nil, nil, corruptChild(rowID, cellID)
			}
			if cell.Span.ColSpan > 1 {
				spanning = append(spanning, spanned{cellID, *cell.Span})
				continue
			}
			min, err := ctx.minContentWidth(cellID)
			if err != nil {
				return nil, nil, err
			}
			opt, err := ctx.maxContentWidth(cellID)
			if err != nil {
				return nil, nil, err
			}
			c := cell.Span.Col
			if c < grid.Cols {
				if min > colMin[c] {
					colMin[c] = min
				}
				if opt > colOpt[c] {
					colOpt[c] = opt
				}
			}
		}
	}

	for _, s := range spanning {
		min, err := ctx.minContentWidth(s.cell)
		if err != nil {
			return nil, nil, err
		}
		opt, err := ctx.maxContentWidth(s.cell)
		if err != nil {
			return nil, nil, err
		}
		distributeShortfall(colMin, s.span, min)
		distributeShortfall(colOpt, s.span, opt)
	}
	for c := range colOpt {
		if colOpt[c] < colMin[c] {
			colOpt[c] = colMin[c]
		}
	}
	return colMin, colOpt, nil
}

// distributeShortfall grows the spanned columns evenly until their sum
// covers the spanning cell's requirement.
func distributeShortfall(cols []float64, span boxtree.CellSpan, need float64) {
	lo, hi := span.Col, span.Col+span.ColSpan
	if hi > len(cols) {
		hi = len(cols)
	}
	if lo >= hi {
		return
	}
	sum := 0.0
	for c := lo; c < hi; c++ {
		sum += cols[c]
	}
	if need <= sum {
		return
	}
	share := (need - sum) / float64(hi-lo)
	for c := lo; c < hi; c++ {
		cols[c] += share
	}
}

// resolveColumnWidths picks final widths: optimal when it fits, minimum
// when even that overflows, and otherwise each column's minimum plus a
// uniform fraction of its stretch to optimal.
func resolveColumnWidths(colMin, colOpt []float64, avail float64) []float64 {
	totalMin, totalOpt := 0.0, 0.0
	for i := range colMin {
		totalMin += colMin[i]
		totalOpt += colOpt[i]
	}
	widths := make([]float64, len(colMin))
	switch {
	case totalOpt <= avail:
		copy(widths, colOpt)
	case totalMin >= avail:
		copy(widths, colMin)
	default:
		factor := (avail - totalMin) / (totalOpt - totalMin)
		for i := range widths {
			widths[i] = colMin[i] + (colOpt[i]-colMin[i])*factor
		}
	}
	return widths
}
