package layout

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vireo/pkg/boxtree"
	"vireo/pkg/dom"
	"vireo/pkg/style"
	"vireo/pkg/text"
)

// fixed advance of 8px per rune at the default 16px font size keeps every
// expected coordinate a round number.
var measurer = text.FixedMeasurer{Advance: 8}

func layoutDoc(t *testing.T, d *dom.Document, viewport float64, sheets ...string) (*boxtree.Tree, float64) {
	t.Helper()
	res, err := style.NewCascade(sheets...)
	require.NoError(t, err)
	tr := boxtree.NewTree()
	require.NoError(t, tr.Build(d, res))
	h, err := Layout(tr, measurer, viewport)
	require.NoError(t, err)
	return tr, h
}

func geom(t *testing.T, tr *boxtree.Tree, id dom.NodeID) boxtree.Rect {
	t.Helper()
	bid := tr.ByNode(id)
	require.NotEqual(t, boxtree.None, bid)
	return tr.Box(bid).Geom
}

func el(t *testing.T, d *dom.Document, parent dom.NodeID, tag, styleAttr string) dom.NodeID {
	t.Helper()
	id := d.CreateElement(tag)
	require.NoError(t, d.AppendChild(parent, id))
	if styleAttr != "" {
		require.NoError(t, d.SetAttribute(id, "style", styleAttr))
	}
	return id
}

func textEl(t *testing.T, d *dom.Document, parent dom.NodeID, s string) dom.NodeID {
	t.Helper()
	id := d.CreateText(s)
	require.NoError(t, d.AppendChild(parent, id))
	return id
}

func TestBlockStackingCollapsesMargins(t *testing.T) {
	d := dom.NewDocument()
	a := el(t, d, d.Root(), "div", "height: 50px; margin-bottom: 10px")
	b := el(t, d, d.Root(), "div", "height: 80px; margin-top: 20px")

	tr, h := layoutDoc(t, d, 300)

	ga := geom(t, tr, a)
	gb := geom(t, tr, b)
	assert.Equal(t, 0.0, ga.Y)
	assert.Equal(t, 50.0, ga.Height)
	// Same-sign margins collapse to the larger: max(10, 20) = 20.
	assert.Equal(t, 70.0, gb.Y)
	assert.Equal(t, 150.0, h)
}

func TestWhitespaceBetweenBlocksDoesNotBreakCollapse(t *testing.T) {
	d := dom.NewDocument()
	el(t, d, d.Root(), "div", "height: 50px; margin-bottom: 30px")
	textEl(t, d, d.Root(), "\n  ")
	b := el(t, d, d.Root(), "div", "height: 80px; margin-top: 20px")

	tr, h := layoutDoc(t, d, 300)

	// Source whitespace between the siblings collapses to nothing, so the
	// margins still collapse: max(30, 20) = 30.
	assert.Equal(t, 80.0, geom(t, tr, b).Y)
	assert.Equal(t, 160.0, h)
}

func TestMixedSignMarginsSum(t *testing.T) {
	d := dom.NewDocument()
	el(t, d, d.Root(), "div", "height: 50px; margin-bottom: -10px")
	b := el(t, d, d.Root(), "div", "height: 80px; margin-top: 20px")

	tr, h := layoutDoc(t, d, 300)

	// Mixed signs sum: -10 + 20 = 10, so the second box starts at 60 and
	// the page is 140 tall.
	assert.Equal(t, 60.0, geom(t, tr, b).Y)
	assert.Equal(t, 140.0, h)
}

func TestSameSignNegativeMarginsCollapseFartherFromZero(t *testing.T) {
	assert.Equal(t, -20.0, CollapseMargins(-10, -20))
	assert.Equal(t, 20.0, CollapseMargins(10, 20))
	assert.Equal(t, 10.0, CollapseMargins(-10, 20))
	assert.Equal(t, 5.0, CollapseMargins(15, -10))
}

func TestExplicitWidthIsContentWidth(t *testing.T) {
	d := dom.NewDocument()
	a := el(t, d, d.Root(), "div", "width: 100px; padding: 5px; border: 2px solid black; height: 10px")

	tr, _ := layoutDoc(t, d, 300)

	// Border-box width is the declared content width plus padding and
	// border on both sides.
	assert.Equal(t, 114.0, geom(t, tr, a).Width)
}

func TestWidthFlowsTopDown(t *testing.T) {
	d := dom.NewDocument()
	parent := el(t, d, d.Root(), "div", "width: 200px; padding: 10px")
	child := el(t, d, parent, "div", "height: 30px")

	tr, _ := layoutDoc(t, d, 500)

	g := geom(t, tr, child)
	assert.Equal(t, 180.0, g.Width)
	assert.Equal(t, 10.0, g.X)
	assert.Equal(t, 10.0, g.Y)
}

func TestInlineWrappingAtWordBoundaries(t *testing.T) {
	d := dom.NewDocument()
	div := el(t, d, d.Root(), "div", "width: 100px")
	txt := textEl(t, d, div, "aaaa bbbb cccc")

	tr, _ := layoutDoc(t, d, 300)

	tb := tr.Box(tr.ByNode(txt))
	require.Len(t, tb.Fragments, 2)
	assert.Equal(t, "aaaa bbbb", tb.Fragments[0].Text)
	assert.Equal(t, boxtree.Rect{X: 0, Y: 0, Width: 72, Height: 16}, tb.Fragments[0].Rect)
	assert.Equal(t, "cccc", tb.Fragments[1].Text)
	assert.Equal(t, boxtree.Rect{X: 0, Y: 16, Width: 32, Height: 16}, tb.Fragments[1].Rect)

	// The text box's geometry is the union of its fragments.
	assert.Equal(t, boxtree.Rect{X: 0, Y: 0, Width: 72, Height: 32}, tb.Geom)
	assert.Equal(t, 32.0, geom(t, tr, div).Height)
}

func TestWhitespaceCollapsesAcrossRunBoundaries(t *testing.T) {
	d := dom.NewDocument()
	div := el(t, d, d.Root(), "div", "")
	textEl(t, d, div, "hello ")
	world := textEl(t, d, div, " world")

	tr, _ := layoutDoc(t, d, 300)

	wb := tr.Box(tr.ByNode(world))
	require.Len(t, wb.Fragments, 1)
	// One collapsed space between the runs: "hello" is 40 wide, the space 8.
	assert.Equal(t, 48.0, wb.Fragments[0].Rect.X)
	assert.Equal(t, "world", wb.Fragments[0].Text)
}

func TestForcedBreakStartsNewLine(t *testing.T) {
	d := dom.NewDocument()
	div := el(t, d, d.Root(), "div", "")
	textEl(t, d, div, "a")
	el(t, d, div, "br", "")
	b := textEl(t, d, div, "b")

	tr, _ := layoutDoc(t, d, 300)

	bb := tr.Box(tr.ByNode(b))
	require.Len(t, bb.Fragments, 1)
	assert.Equal(t, 16.0, bb.Fragments[0].Rect.Y)
	assert.Equal(t, 0.0, bb.Fragments[0].Rect.X)
}

func TestNestedInlineGeometryIsFragmentUnion(t *testing.T) {
	d := dom.NewDocument()
	div := el(t, d, d.Root(), "div", "")
	textEl(t, d, div, "plain")
	span := el(t, d, div, "span", "")
	textEl(t, d, span, "styled text")

	tr, _ := layoutDoc(t, d, 500)

	g := geom(t, tr, span)
	// "plain" is 40 wide; the span starts past the collapsed space.
	assert.Equal(t, 48.0, g.X)
	assert.Equal(t, 88.0, g.Width)
	assert.Equal(t, 16.0, g.Height)
}

func TestTableSpanningCellGrowsColumnsEvenly(t *testing.T) {
	d := dom.NewDocument()
	table := el(t, d, d.Root(), "table", "")
	r1 := el(t, d, table, "tr", "")
	el(t, d, r1, "td", "width: 40px; height: 10px")
	c2 := el(t, d, r1, "td", "width: 40px; height: 10px")
	r2 := el(t, d, table, "tr", "")
	wide := el(t, d, r2, "td", "width: 100px; height: 10px")
	require.NoError(t, d.SetAttribute(wide, "colspan", "2"))

	tr, _ := layoutDoc(t, d, 300)

	// The spanning cell needs 100 across columns that resolved to {40, 40};
	// the 20px shortfall is split evenly, so both columns become 50 and the
	// second cell starts at x=50.
	assert.Equal(t, 50.0, geom(t, tr, c2).X)
	assert.Equal(t, 100.0, geom(t, tr, r1).Width)
	assert.Equal(t, 100.0, geom(t, tr, wide).Width)
}

func TestTableShrinksColumnsBetweenMinAndOptimal(t *testing.T) {
	d := dom.NewDocument()
	table := el(t, d, d.Root(), "table", "")
	row := el(t, d, table, "tr", "")
	c1 := el(t, d, row, "td", "")
	textEl(t, d, c1, "aaaa aaaa")
	c2 := el(t, d, row, "td", "")
	textEl(t, d, c2, "bbbb bbbb")

	tr, _ := layoutDoc(t, d, 104)

	// Each column: min 32 (one word), optimal 72 (unwrapped). Available 104
	// sits halfway through the stretch, so both columns get 32 + 20 = 52.
	g1 := geom(t, tr, c1)
	g2 := geom(t, tr, c2)
	assert.Equal(t, 52.0, g1.Width)
	assert.Equal(t, 52.0, g2.X)
	assert.Equal(t, 52.0, g2.Width)
}

func TestTableRowSpanPushesLaterRowsDown(t *testing.T) {
	d := dom.NewDocument()
	table := el(t, d, d.Root(), "table", "")
	r1 := el(t, d, table, "tr", "")
	tall := el(t, d, r1, "td", "height: 60px; width: 30px")
	require.NoError(t, d.SetAttribute(tall, "rowspan", "2"))
	el(t, d, r1, "td", "height: 20px; width: 30px")
	r2 := el(t, d, table, "tr", "")
	el(t, d, r2, "td", "height: 25px; width: 30px")
	r3 := el(t, d, table, "tr", "")
	el(t, d, r3, "td", "height: 10px; width: 30px")

	tr, _ := layoutDoc(t, d, 300)

	// Rows 1 and 2 occupy 20 + 25 = 45, but the spanning cell reaches 60,
	// so the third row cannot start before that.
	assert.Equal(t, 20.0, geom(t, tr, r2).Y)
	assert.Equal(t, 60.0, geom(t, tr, r3).Y)
}

func TestTableToleratesUnoccupiedSlots(t *testing.T) {
	d := dom.NewDocument()
	table := el(t, d, d.Root(), "table", "")
	require.NoError(t, d.SetAttribute(table, "cols", "3"))
	row := el(t, d, table, "tr", "")
	el(t, d, row, "td", "width: 30px; height: 10px")

	tr, h := layoutDoc(t, d, 300)

	// Columns 2 and 3 have no cells; they resolve to zero width and layout
	// completes normally.
	assert.Equal(t, 30.0, geom(t, tr, table).Width)
	assert.Equal(t, 10.0, h)
}

func TestFlexDistributesLeftoverByGrowWeight(t *testing.T) {
	d := dom.NewDocument()
	fl := el(t, d, d.Root(), "div", "display: flex; width: 300px")
	a := el(t, d, fl, "div", "flex-grow: 1; height: 40px")
	b := el(t, d, fl, "div", "flex-grow: 2; height: 25px")
	c := el(t, d, fl, "div", "flex-grow: 1; height: 10px")

	tr, _ := layoutDoc(t, d, 500)

	ga := geom(t, tr, a)
	gb := geom(t, tr, b)
	gc := geom(t, tr, c)
	assert.Equal(t, 75.0, ga.Width)
	assert.Equal(t, 150.0, gb.Width)
	assert.Equal(t, 75.0, gc.Width)
	assert.Equal(t, 75.0, gb.X)
	assert.Equal(t, 225.0, gc.X)

	// Cross axis is the tallest member.
	assert.Equal(t, 40.0, geom(t, tr, fl).Height)
}

func TestIntrinsicWidthsOfText(t *testing.T) {
	d := dom.NewDocument()
	div := el(t, d, d.Root(), "div", "")
	txt := textEl(t, d, div, "hello world")

	res, err := style.NewCascade()
	require.NoError(t, err)
	tr := boxtree.NewTree()
	require.NoError(t, tr.Build(d, res))

	ctx := &Context{tree: tr, measure: measurer}
	min, err := ctx.minContentWidth(tr.ByNode(txt))
	require.NoError(t, err)
	max, err := ctx.maxContentWidth(tr.ByNode(txt))
	require.NoError(t, err)
	// min is the widest single word, max the whole unwrapped run.
	assert.Equal(t, 40.0, min)
	assert.Equal(t, 88.0, max)
}

func TestLayoutIsIdempotent(t *testing.T) {
	d := dom.NewDocument()
	div := el(t, d, d.Root(), "div", "width: 120px; padding: 4px")
	textEl(t, d, div, "the quick brown fox jumps over the lazy dog")
	table := el(t, d, d.Root(), "table", "")
	row := el(t, d, table, "tr", "")
	c := el(t, d, row, "td", "")
	textEl(t, d, c, "cell")

	tr, h1 := layoutDoc(t, d, 300)
	first := snapshotGeometry(tr)

	h2, err := Layout(tr, measurer, 300)
	require.NoError(t, err)
	second := snapshotGeometry(tr)

	assert.Equal(t, h1, h2)
	assert.True(t, reflect.DeepEqual(first, second), "geometry changed on a re-run over unchanged input")
}

type geomSnapshot struct {
	Geom      boxtree.Rect
	Fragments []boxtree.TextFragment
}

func snapshotGeometry(tr *boxtree.Tree) map[boxtree.BoxID]geomSnapshot {
	out := make(map[boxtree.BoxID]geomSnapshot)
	tr.Walk(func(id boxtree.BoxID, b *boxtree.Box) {
		out[id] = geomSnapshot{
			Geom:      b.Geom,
			Fragments: append([]boxtree.TextFragment(nil), b.Fragments...),
		}
	})
	return out
}
