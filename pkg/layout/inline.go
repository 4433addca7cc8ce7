package layout

import (
	"strings"
	"unicode"

	"vireo/pkg/boxtree"
	"vireo/pkg/style"
)

// layoutInlineRun packs a flat run of inline-level boxes into line boxes of
// at most availWidth, breaking only at whitespace boundaries. Runs of
// whitespace collapse to a single space; leading and trailing whitespace at
// a line boundary is dropped. A line box is as tall as the largest
// ascent+descent it contains; successive line boxes stack vertically. The
// run's used height is returned to the caller.
func (ctx *Context) layoutInlineRun(run []boxtree.BoxID, availWidth, x, y float64) (float64, error) {
	ctx.resetInline(run)

	st := &lineState{ctx: ctx, left: x, top: y, availWidth: availWidth}
	for _, id := range run {
		if err := ctx.flattenInline(st, id); err != nil {
			return 0, err
		}
	}
	st.flushLine()

	for _, id := range run {
		ctx.finishInlineGeom(id, x, y)
	}
	return st.totalHeight, nil
}

// runHasContent reports whether an inline run would place anything on a
// line: a word, a forced break, or an atomic. Whitespace-only text runs do
// not count.
func (ctx *Context) runHasContent(run []boxtree.BoxID) bool {
	for _, id := range run {
		b := ctx.tree.Box(id)
		if b == nil {
			continue
		}
		switch {
		case b.Tag == "br":
			return true
		case b.Image != nil || b.Tag == "img":
			return true
		case b.Tag == "":
			if strings.TrimSpace(b.Text) != "" {
				return true
			}
		default:
			if ctx.runHasContent(b.Children) {
				return true
			}
		}
	}
	return false
}

// resetInline clears geometry derived by any earlier pass over this run.
func (ctx *Context) resetInline(run []boxtree.BoxID) {
	for _, id := range run {
		b := ctx.tree.Box(id)
		if b == nil {
			continue
		}
		b.Fragments = nil
		b.Geom = boxtree.Rect{}
		ctx.resetInline(b.Children)
	}
}

// inlineItem is one unbreakable piece on the current line: a word or an
// atomic inline such as an image.
type inlineItem struct {
	box            boxtree.BoxID
	text           string // empty for atomics
	x              float64
	width          float64
	ascent         float64
	descent        float64
	mergedFromPrev bool // continues the previous item's fragment
}

type lineState struct {
	ctx        *Context
	left, top  float64
	availWidth float64

	cursorX      float64 // relative to left
	items        []inlineItem
	totalHeight  float64
	pendingSpace bool
	spaceStyle   *style.Computed // style of the run that produced the space
}

// flattenInline walks an inline subtree emitting words and atomics in
// document order. Nested inline elements contribute their leaves; their
// own geometry is derived afterwards as the union of what was placed.
func (ctx *Context) flattenInline(st *lineState, id boxtree.BoxID) error {
	b := ctx.tree.Box(id)
	if b == nil {
		return corruptChild(boxtree.None, id)
	}
	switch {
	case b.Tag == "br":
		st.forceBreak(b.Style)
	case b.Image != nil || b.Tag == "img":
		w, h := imageExtent(b)
		st.place(inlineItem{box: id, width: w, ascent: h}, b.Style)
	case b.Tag == "":
		// Text run; an empty one contributes nothing, not even a space.
		st.emitText(id, b.Text, b.Style)
	default:
		for _, c := range b.Children {
			if err := ctx.flattenInline(st, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitText splits a raw text run into words, tracking collapsed whitespace
// across run boundaries.
func (st *lineState) emitText(id boxtree.BoxID, raw string, cs *style.Computed) {
	if raw == "" {
		return
	}
	leading := unicode.IsSpace(rune(raw[0]))
	trailing := unicode.IsSpace(rune(raw[len(raw)-1]))
	words := strings.Fields(raw)

	if leading && len(words) > 0 || len(words) == 0 {
		st.pendingSpace = true
		st.spaceStyle = cs
	}
	for i, w := range words {
		if i > 0 {
			st.pendingSpace = true
			st.spaceStyle = cs
		}
		m, _ := st.ctx.measure.MeasureText(w, cs)
		st.place(inlineItem{
			box:     id,
			text:    w,
			width:   m.Width,
			ascent:  m.Ascent,
			descent: m.Descent,
		}, cs)
	}
	if trailing && len(words) > 0 {
		st.pendingSpace = true
		st.spaceStyle = cs
	}
}

// place appends an item to the current line, materializing a pending
// collapsed space first and breaking to a new line when the item does not
// fit. A break swallows the pending space: leading whitespace never starts
// a line.
func (st *lineState) place(it inlineItem, cs *style.Computed) {
	space := 0.0
	if st.pendingSpace && len(st.items) > 0 {
		sm, _ := st.ctx.measure.MeasureText(" ", st.spaceOrItemStyle(cs))
		space = sm.Width
	}
	if len(st.items) > 0 && st.cursorX+space+it.width > st.availWidth {
		st.flushLine()
		space = 0
	}
	if space > 0 && len(st.items) > 0 {
		prev := &st.items[len(st.items)-1]
		if prev.box == it.box && prev.text != "" && it.text != "" {
			it.mergedFromPrev = true
		}
	}
	it.x = st.cursorX + space
	st.cursorX = it.x + it.width
	st.items = append(st.items, it)
	st.pendingSpace = false
}

func (st *lineState) spaceOrItemStyle(cs *style.Computed) *style.Computed {
	if st.spaceStyle != nil {
		return st.spaceStyle
	}
	return cs
}

// forceBreak ends the current line. An empty line still advances by one
// line height at the break element's font size.
func (st *lineState) forceBreak(cs *style.Computed) {
	if len(st.items) > 0 {
		st.flushLine()
		return
	}
	m, _ := st.ctx.measure.MeasureText(" ", cs)
	st.totalHeight += m.Height()
	st.pendingSpace = false
}

// flushLine fixes the vertical position of everything on the current line.
// The line height is the maximum ascent+descent of its contents; items sit
// on a shared baseline at the maximum ascent.
func (st *lineState) flushLine() {
	if len(st.items) == 0 {
		return
	}
	maxAsc, maxDesc := 0.0, 0.0
	for _, it := range st.items {
		if it.ascent > maxAsc {
			maxAsc = it.ascent
		}
		if it.descent > maxDesc {
			maxDesc = it.descent
		}
	}
	lineTop := st.top + st.totalHeight

	for _, it := range st.items {
		b := st.ctx.tree.Box(it.box)
		if b == nil {
			continue
		}
		rect := boxtree.Rect{
			X:      st.left + it.x,
			Y:      lineTop + maxAsc - it.ascent,
			Width:  it.width,
			Height: it.ascent + it.descent,
		}
		if it.text == "" {
			b.Geom = rect
			continue
		}
		if it.mergedFromPrev && len(b.Fragments) > 0 {
			last := &b.Fragments[len(b.Fragments)-1]
			last.Text += " " + it.text
			last.Rect.Width = rect.X + rect.Width - last.Rect.X
			continue
		}
		b.Fragments = append(b.Fragments, boxtree.TextFragment{Text: it.text, Rect: rect})
	}

	st.totalHeight += maxAsc + maxDesc
	st.cursorX = 0
	st.items = st.items[:0]
	st.pendingSpace = false
}

// finishInlineGeom derives each inline box's geometry bottom-up as the
// bounding box of its fragments and children. Boxes that placed nothing
// get a zero-size rect at the run origin, never an undefined one.
func (ctx *Context) finishInlineGeom(id boxtree.BoxID, x, y float64) (boxtree.Rect, bool) {
	b := ctx.tree.Box(id)
	if b == nil {
		return boxtree.Rect{}, false
	}
	var minX, minY, maxX, maxY float64
	any := false
	accumulate := func(r boxtree.Rect) {
		if !any {
			minX, minY, maxX, maxY = r.X, r.Y, r.X+r.Width, r.Y+r.Height
			any = true
			return
		}
		if r.X < minX {
			minX = r.X
		}
		if r.Y < minY {
			minY = r.Y
		}
		if r.X+r.Width > maxX {
			maxX = r.X + r.Width
		}
		if r.Y+r.Height > maxY {
			maxY = r.Y + r.Height
		}
	}

	if len(b.Fragments) > 0 {
		for _, f := range b.Fragments {
			accumulate(f.Rect)
		}
	} else if b.Image != nil || b.Tag == "img" {
		if b.Geom.Width > 0 || b.Geom.Height > 0 {
			accumulate(b.Geom)
		}
	}
	for _, c := range b.Children {
		if r, ok := ctx.finishInlineGeom(c, x, y); ok {
			accumulate(r)
		}
	}

	if !any {
		b.Geom = boxtree.Rect{X: x, Y: y}
		return b.Geom, false
	}
	b.Geom = boxtree.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
	return b.Geom, true
}

// imageExtent resolves an image box's display size: explicit style sizes
// win, then intrinsic pixel dimensions, else a zero-sized placeholder
// until the content arrives.
func imageExtent(b *boxtree.Box) (w, h float64) {
	if b.Style != nil {
		if b.Style.HasWidth {
			w = b.Style.Width
		}
		if b.Style.HasHeight {
			h = b.Style.Height
		}
	}
	if b.Image != nil {
		bounds := b.Image.Bounds()
		if w == 0 {
			w = float64(bounds.Dx())
		}
		if h == 0 {
			h = float64(bounds.Dy())
		}
	}
	return w, h
}
