package layout

import (
	"vireo/pkg/boxtree"
)

// layoutFlex sizes a single-row flex container. Children get their base
// width (explicit width, else max-content), leftover space is handed out
// in proportion to flex-grow, and the row's cross-axis height is the
// tallest child. Rows never wrap.
func (ctx *Context) layoutFlex(id boxtree.BoxID, availWidth, x, y float64) (float64, error) {
	b := ctx.tree.Box(id)
	cs := b.Style
	width := borderBoxWidth(b, availWidth)
	contentX := x + cs.Border.Left + cs.Padding.Left
	contentTop := y + cs.Border.Top + cs.Padding.Top
	contentW := width - cs.ContentInsetsH()

	base := make([]float64, len(b.Children))
	grow := make([]float64, len(b.Children))
	used, totalGrow := 0.0, 0.0
	for i, childID := range b.Children {
		child := ctx.tree.Box(childID)
		if child == nil {
			return 0, corruptChild(id, childID)
		}
		w, err := ctx.maxContentWidth(childID)
		if err != nil {
			return 0, err
		}
		m := child.Style.Margin
		base[i] = w
		grow[i] = child.Style.FlexGrow
		used += w + m.Horizontal()
		totalGrow += grow[i]
	}

	// Distribute leftover main-axis space by flex-grow weight.
	if leftover := contentW - used; leftover > 0 && totalGrow > 0 {
		for i := range base {
			base[i] += leftover * grow[i] / totalGrow
		}
	}

	cursorX := contentX
	tallest := 0.0
	for i, childID := range b.Children {
		child := ctx.tree.Box(childID)
		m := child.Style.Margin
		cursorX += m.Left
		h, err := ctx.layoutBox(childID, base[i], cursorX, contentTop+m.Top)
		if err != nil {
			return 0, err
		}
		if extent := m.Top + h + m.Bottom; extent > tallest {
			tallest = extent
		}
		cursorX += base[i] + m.Right
	}

	contentH := tallest
	if cs.HasHeight {
		contentH = cs.Height
	}
	height := contentH + cs.ContentInsetsV()
	b = ctx.tree.Box(id)
	b.Geom = boxtree.Rect{X: x, Y: y, Width: width, Height: height}
	return height, nil
}
