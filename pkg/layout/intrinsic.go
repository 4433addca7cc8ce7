package layout

import (
	"strings"

	"vireo/pkg/boxtree"
)

// minContentWidth is the narrowest border-box width the box can take
// without overflowing: the widest unbreakable unit (a single word, or an
// atomic image) plus the box's own insets and the margins of whichever
// descendant carries that unit.
func (ctx *Context) minContentWidth(id boxtree.BoxID) (float64, error) {
	b := ctx.tree.Box(id)
	if b == nil {
		return 0, corruptChild(boxtree.None, id)
	}
	cs := b.Style
	if cs.HasWidth {
		return cs.Width + cs.ContentInsetsH(), nil
	}

	switch b.Context {
	case boxtree.Inline:
		switch {
		case b.Image != nil || b.Tag == "img":
			w, _ := imageExtent(b)
			return w, nil
		case b.Tag == "br":
			return 0, nil
		case b.Tag == "":
			return ctx.widestWord(b)
		default:
			return ctx.maxChild(b, ctx.minContentWidth)
		}
	case boxtree.Flex:
		// A single flex row cannot wrap; its members sit side by side.
		sum, err := ctx.sumChildren(b, ctx.minContentWidth)
		return sum + cs.ContentInsetsH(), err
	case boxtree.TableWrapper:
		colMin, _, err := ctx.tableColumnBounds(id)
		if err != nil {
			return 0, err
		}
		total := 0.0
		for _, w := range colMin {
			total += w
		}
		return total + cs.ContentInsetsH(), nil
	default:
		w, err := ctx.blockIntrinsic(b, ctx.minContentWidth, false)
		return w + cs.ContentInsetsH(), err
	}
}

// maxContentWidth is the width the box would take with no wrapping at
// all: every text run on one line, block children at their own widest.
func (ctx *Context) maxContentWidth(id boxtree.BoxID) (float64, error) {
	b := ctx.tree.Box(id)
	if b == nil {
		return 0, corruptChild(boxtree.None, id)
	}
	cs := b.Style
	if cs.HasWidth {
		return cs.Width + cs.ContentInsetsH(), nil
	}

	switch b.Context {
	case boxtree.Inline:
		switch {
		case b.Image != nil || b.Tag == "img":
			w, _ := imageExtent(b)
			return w, nil
		case b.Tag == "br":
			return 0, nil
		case b.Tag == "":
			words := strings.Fields(b.Text)
			if len(words) == 0 {
				return 0, nil
			}
			m, err := ctx.measure.MeasureText(strings.Join(words, " "), cs)
			return m.Width, err
		default:
			return ctx.sumChildren(b, ctx.maxContentWidth)
		}
	case boxtree.Flex:
		sum, err := ctx.sumChildren(b, ctx.maxContentWidth)
		return sum + cs.ContentInsetsH(), err
	case boxtree.TableWrapper:
		_, colOpt, err := ctx.tableColumnBounds(id)
		if err != nil {
			return 0, err
		}
		total := 0.0
		for _, w := range colOpt {
			total += w
		}
		return total + cs.ContentInsetsH(), nil
	default:
		w, err := ctx.blockIntrinsic(b, ctx.maxContentWidth, true)
		return w + cs.ContentInsetsH(), err
	}
}

// widestWord measures every whitespace-delimited word and returns the
// largest advance.
func (ctx *Context) widestWord(b *boxtree.Box) (float64, error) {
	widest := 0.0
	for _, word := range strings.Fields(b.Text) {
		m, err := ctx.measure.MeasureText(word, b.Style)
		if err != nil {
			return 0, err
		}
		if m.Width > widest {
			widest = m.Width
		}
	}
	return widest, nil
}

// maxChild takes the maximum of fn over the children.
func (ctx *Context) maxChild(b *boxtree.Box, fn func(boxtree.BoxID) (float64, error)) (float64, error) {
	widest := 0.0
	for _, childID := range b.Children {
		w, err := fn(childID)
		if err != nil {
			return 0, err
		}
		if w > widest {
			widest = w
		}
	}
	return widest, nil
}

func (ctx *Context) sumChildren(b *boxtree.Box, fn func(boxtree.BoxID) (float64, error)) (float64, error) {
	total := 0.0
	for _, childID := range b.Children {
		w, err := fn(childID)
		if err != nil {
			return 0, err
		}
		total += w
	}
	return total, nil
}

// blockIntrinsic walks a block's children the way layoutBlock partitions
// them: consecutive inline children form one run whose widths add up,
// block children stand alone.
func (ctx *Context) blockIntrinsic(b *boxtree.Box, fn func(boxtree.BoxID) (float64, error), joinRuns bool) (float64, error) {
	widest := 0.0
	run := 0.0
	flush := func() {
		if run > widest {
			widest = run
		}
		run = 0
	}
	for _, childID := range b.Children {
		child := ctx.tree.Box(childID)
		if child == nil {
			return 0, corruptChild(boxtree.None, childID)
		}
		w, err := fn(childID)
		if err != nil {
			return 0, err
		}
		if isInline(child) {
			if joinRuns {
				run += w
			} else if w > widest {
				widest = w
			}
			continue
		}
		flush()
		w += child.Style.Margin.Horizontal()
		if w > widest {
			widest = w
		}
	}
	flush()
	return widest, nil
}
