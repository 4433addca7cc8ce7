package layout

import (
	"fmt"

	"vireo/pkg/boxtree"
)

// layoutBlock stacks children vertically inside the content box. Children
// receive the content width minus their own horizontal margins as
// available width; each child's returned height advances the cursor.
// Vertical margins between adjacent in-flow block siblings collapse.
// Consecutive inline children form a run handed to the inline engine as a
// unit; runs carry no margins of their own.
func (ctx *Context) layoutBlock(id boxtree.BoxID, availWidth, x, y float64) (float64, error) {
	b := ctx.tree.Box(id)
	cs := b.Style

	width := borderBoxWidth(b, availWidth)
	contentX := x + cs.Border.Left + cs.Padding.Left
	contentTop := y + cs.Border.Top + cs.Padding.Top
	contentW := width - cs.ContentInsetsH()
	if contentW < 0 {
		contentW = 0
	}

	cursorY := contentTop
	prevBottomMargin := 0.0
	first := true

	children := b.Children
	for i := 0; i < len(children); {
		child := ctx.tree.Box(children[i])
		if child == nil {
			return 0, corruptChild(id, children[i])
		}
		if isInline(child) {
			// Gather the whole run of adjacent inline children.
			j := i
			for j < len(children) {
				cb := ctx.tree.Box(children[j])
				if cb == nil || !isInline(cb) {
					break
				}
				j++
			}
			run := children[i:j]
			if !ctx.runHasContent(run) {
				// Whitespace between block siblings collapses away and
				// must not interrupt margin collapsing.
				ctx.resetInline(run)
				i = j
				continue
			}
			h, err := ctx.layoutInlineRun(run, contentW, contentX, cursorY)
			if err != nil {
				return 0, err
			}
			cursorY += h
			prevBottomMargin = 0
			first = false
			i = j
			continue
		}

		m := child.Style.Margin
		if first {
			cursorY += m.Top
		} else {
			cursorY += CollapseMargins(prevBottomMargin, m.Top)
		}
		childAvail := contentW - m.Horizontal()
		if childAvail < 0 {
			childAvail = 0
		}
		h, err := ctx.layoutBox(children[i], childAvail, contentX+m.Left, cursorY)
		if err != nil {
			return 0, err
		}
		cursorY += h
		prevBottomMargin = m.Bottom
		first = false
		i++
	}

	contentH := cursorY - contentTop
	if cs.HasHeight {
		contentH = cs.Height
	}
	height := contentH + cs.ContentInsetsV()

	// Geometry is derived from the children's extents only after all of
	// them have returned: height flows bottom-up.
	b = ctx.tree.Box(id)
	b.Geom = boxtree.Rect{X: x, Y: y, Width: width, Height: height}
	return height, nil
}

// CollapseMargins returns the collapsed value of two adjoining vertical
// margins: same sign collapses to the one farther from zero, mixed signs
// sum.
func CollapseMargins(a, bm float64) float64 {
	if a >= 0 && bm >= 0 {
		if a > bm {
			return a
		}
		return bm
	}
	if a < 0 && bm < 0 {
		if a < bm {
			return a
		}
		return bm
	}
	return a + bm
}

func corruptChild(parent, child boxtree.BoxID) error {
	return fmt.Errorf("%w: box %d references freed child %d", boxtree.ErrCorrupt, parent, child)
}
