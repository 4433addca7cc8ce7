package engine

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vireo/pkg/boxtree"
	"vireo/pkg/dom"
	"vireo/pkg/style"
)

func newEngine(t *testing.T, d *dom.Document) *Engine {
	t.Helper()
	e, err := New(d, Config{ViewportWidth: 300, ViewportHeight: 200})
	require.NoError(t, err)
	return e
}

func addDiv(t *testing.T, d *dom.Document, parent dom.NodeID, styleAttr string) dom.NodeID {
	t.Helper()
	id := d.CreateElement("div")
	require.NoError(t, d.AppendChild(parent, id))
	if styleAttr != "" {
		require.NoError(t, d.SetAttribute(id, "style", styleAttr))
	}
	return id
}

func TestCycleClearsDirtySet(t *testing.T) {
	d := dom.NewDocument()
	addDiv(t, d, d.Root(), "height: 40px")
	e := newEngine(t, d)

	require.True(t, e.Pending())
	require.NoError(t, e.RunCycle())
	assert.False(t, e.Pending())

	f, ok := e.Frame()
	require.True(t, ok)
	assert.Equal(t, 40.0, f.PageHeight)
}

func TestRepeatedCyclesAreIdempotent(t *testing.T) {
	d := dom.NewDocument()
	div := addDiv(t, d, d.Root(), "width: 100px")
	txt := d.CreateText("some text to lay out")
	require.NoError(t, d.AppendChild(div, txt))
	e := newEngine(t, d)

	require.NoError(t, e.RunCycle())
	f1, ok := e.Frame()
	require.True(t, ok)
	first := f1.Tree.Box(f1.Tree.ByNode(txt)).Geom

	// Nothing changed, so the second cycle is a no-op and geometry is
	// byte-identical.
	require.NoError(t, e.RunCycle())
	f2, _ := e.Frame()
	assert.Equal(t, first, f2.Tree.Box(f2.Tree.ByNode(txt)).Geom)
}

func TestMutationOnlyRebuildsDirtySubtree(t *testing.T) {
	d := dom.NewDocument()
	left := addDiv(t, d, d.Root(), "height: 10px")
	right := addDiv(t, d, d.Root(), "")
	e := newEngine(t, d)
	require.NoError(t, e.RunCycle())

	f, _ := e.Frame()
	leftBox := f.Tree.ByNode(left)

	require.True(t, e.Post(func(doc *dom.Document) error {
		child := doc.CreateElement("p")
		return doc.AppendChild(right, child)
	}))
	require.NoError(t, e.RunCycle())

	// The untouched sibling keeps its box identity across the rebuild.
	f, _ = e.Frame()
	assert.Equal(t, leftBox, f.Tree.ByNode(left))
}

func TestContentArrivalTriggersRelayout(t *testing.T) {
	d := dom.NewDocument()
	img := d.CreateElement("img")
	require.NoError(t, d.AppendChild(d.Root(), img))
	e := newEngine(t, d)
	require.NoError(t, e.RunCycle())

	f, _ := e.Frame()
	require.Equal(t, 0.0, f.PageHeight)

	pix := image.NewRGBA(image.Rect(0, 0, 20, 30))
	require.True(t, e.PostArrival(Arrival{
		Node:       img,
		Content:    dom.Content{Kind: dom.ContentImage, Image: pix},
		Generation: e.Generation(),
	}))
	require.True(t, e.Pending())
	require.NoError(t, e.RunCycle())

	f, _ = e.Frame()
	assert.Equal(t, 30.0, f.PageHeight)
	assert.NotEqual(t, boxtree.None, f.Tree.ByNode(img))
}

func TestStaleGenerationArrivalIsDropped(t *testing.T) {
	d := dom.NewDocument()
	img := d.CreateElement("img")
	require.NoError(t, d.AppendChild(d.Root(), img))
	e := newEngine(t, d)
	require.NoError(t, e.RunCycle())
	oldGen := e.Generation()

	next := dom.NewDocument()
	img2 := next.CreateElement("img")
	require.NoError(t, next.AppendChild(next.Root(), img2))
	require.NoError(t, e.Navigate(next))

	pix := image.NewRGBA(image.Rect(0, 0, 20, 30))
	require.True(t, e.PostArrival(Arrival{
		Node:       img2,
		Content:    dom.Content{Kind: dom.ContentImage, Image: pix},
		Generation: oldGen,
	}))
	require.NoError(t, e.RunCycle())

	f, _ := e.Frame()
	assert.Equal(t, 0.0, f.PageHeight, "arrival from the superseded page must not land")
}

func TestNavigateKeepsConfiguredResolver(t *testing.T) {
	d := dom.NewDocument()
	addDiv(t, d, d.Root(), "")
	cascade, err := style.NewCascade("div { height: 40px }")
	require.NoError(t, err)
	e, err := New(d, Config{ViewportWidth: 300, Resolver: cascade})
	require.NoError(t, err)
	require.NoError(t, e.RunCycle())

	next := dom.NewDocument()
	div := next.CreateElement("div")
	require.NoError(t, next.AppendChild(next.Root(), div))
	next.Stylesheets = append(next.Stylesheets, "div { height: 90px }")
	require.NoError(t, e.Navigate(next))
	require.NoError(t, e.RunCycle())

	f, ok := e.Frame()
	require.True(t, ok)
	assert.Equal(t, 40.0, f.PageHeight, "a caller-supplied resolver survives navigation")
}

type flakyResolver struct {
	inner    style.Resolver
	failures int
}

func (f *flakyResolver) Resolve(d *dom.Document, id dom.NodeID) (*style.Computed, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("transient style miss")
	}
	return f.inner.Resolve(d, id)
}

func TestFailedCycleRetainsDirtySetForRetry(t *testing.T) {
	d := dom.NewDocument()
	addDiv(t, d, d.Root(), "height: 40px")
	cascade, err := style.NewCascade()
	require.NoError(t, err)
	e, err := New(d, Config{
		ViewportWidth: 300,
		Resolver:      &flakyResolver{inner: cascade, failures: 1},
	})
	require.NoError(t, err)

	require.Error(t, e.RunCycle())
	assert.True(t, e.Pending(), "a failed cycle must leave the dirty set for retry")

	require.NoError(t, e.RunCycle())
	assert.False(t, e.Pending())
	f, ok := e.Frame()
	require.True(t, ok)
	assert.Equal(t, 40.0, f.PageHeight)
}

func TestResizeForcesRelayout(t *testing.T) {
	d := dom.NewDocument()
	div := addDiv(t, d, d.Root(), "")
	txt := d.CreateText("aaaa bbbb cccc dddd")
	require.NoError(t, d.AppendChild(div, txt))
	e := newEngine(t, d)
	require.NoError(t, e.RunCycle())
	f, _ := e.Frame()
	wide := f.PageHeight

	e.Resize(80, 200)
	require.NoError(t, e.RunCycle())
	f, _ = e.Frame()
	assert.Greater(t, f.PageHeight, wide, "narrower viewport wraps onto more lines")
}

func TestScrollRange(t *testing.T) {
	assert.Equal(t, 0.0, Frame{PageHeight: 100, ViewportH: 200}.ScrollRange())
	assert.Equal(t, 300.0, Frame{PageHeight: 500, ViewportH: 200}.ScrollRange())
}

func TestSelectionOrderIsPreOrder(t *testing.T) {
	d := dom.NewDocument()
	div := addDiv(t, d, d.Root(), "")
	first := d.CreateText("first")
	require.NoError(t, d.AppendChild(div, first))
	second := d.CreateText("second")
	require.NoError(t, d.AppendChild(d.Root(), second))
	e := newEngine(t, d)
	require.NoError(t, e.RunCycle())

	f, _ := e.Frame()
	require.Len(t, f.Selection, 2)
	assert.Equal(t, f.Tree.ByNode(first), f.Selection[0])
	assert.Equal(t, f.Tree.ByNode(second), f.Selection[1])
}
