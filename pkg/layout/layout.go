// Package layout positions and sizes the box tree. One pass walks the
// tree top-down handing each box its available width, and bottom-up
// returning each box's used height; a box never consults its own previous
// height to decide a width. The four formatting engines are a closed set
// dispatched on the box's formatting-context tag.
package layout

import (
	"fmt"

	"vireo/pkg/boxtree"
	"vireo/pkg/text"
)

// Context carries the per-cycle measurement state threaded through every
// engine call. It is built at the start of a cycle and discarded after, so
// tests can substitute a deterministic measurer with no global state.
type Context struct {
	tree    *boxtree.Tree
	measure text.Measurer
}

// Layout runs a full top-down/bottom-up pass over the tree with the
// viewport width as the root's available width. It returns the laid-out
// page height. Measurement failures degrade to fallback metrics; only
// structural corruption aborts.
func Layout(tree *boxtree.Tree, m text.Measurer, viewportWidth float64) (float64, error) {
	root := tree.Box(tree.Root())
	if root == nil {
		return 0, fmt.Errorf("layout: no box tree root")
	}
	ctx := &Context{tree: tree, measure: text.WithFallback(m)}
	return ctx.layoutBox(tree.Root(), viewportWidth, 0, 0)
}

// layoutBox positions one box with its top-left border-box corner at
// (x, y), given availWidth of horizontal space, and returns the used
// border-box height. Geometry is set on the box and all its descendants.
func (ctx *Context) layoutBox(id boxtree.BoxID, availWidth, x, y float64) (float64, error) {
	b := ctx.tree.Box(id)
	if b == nil {
		return 0, fmt.Errorf("%w: layout reached a freed box %d", boxtree.ErrCorrupt, id)
	}
	switch b.Context {
	case boxtree.Block, boxtree.TableCell:
		return ctx.layoutBlock(id, availWidth, x, y)
	case boxtree.Inline:
		// A lone inline child dispatched directly forms a run of one.
		return ctx.layoutInlineRun([]boxtree.BoxID{id}, availWidth, x, y)
	case boxtree.TableWrapper:
		return ctx.layoutTable(id, availWidth, x, y)
	case boxtree.TableRow:
		// Rows are positioned by the table engine; an orphan row degrades
		// to block stacking.
		return ctx.layoutBlock(id, availWidth, x, y)
	case boxtree.Flex:
		return ctx.layoutFlex(id, availWidth, x, y)
	}
	panic(fmt.Sprintf("layout: unknown formatting context %d", b.Context))
}

// borderBoxWidth resolves a box's border-box width from its style and the
// available width. An explicit CSS width is a content width; everything
// else fills what the parent handed down.
func borderBoxWidth(b *boxtree.Box, availWidth float64) float64 {
	if b.Style != nil && b.Style.HasWidth {
		return b.Style.Width + b.Style.ContentInsetsH()
	}
	return availWidth
}

func isInline(b *boxtree.Box) bool {
	return b.Context == boxtree.Inline
}
