package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSmallTree(t *testing.T) (*Document, NodeID, NodeID, NodeID) {
	t.Helper()
	d := NewDocument()
	div := d.CreateElement("div")
	require.NoError(t, d.AppendChild(d.Root(), div))
	span := d.CreateElement("span")
	require.NoError(t, d.AppendChild(div, span))
	text := d.CreateText("hello")
	require.NoError(t, d.AppendChild(span, text))
	return d, div, span, text
}

func TestAppendChildSetsParentAndOrder(t *testing.T) {
	d := NewDocument()
	a := d.CreateElement("p")
	b := d.CreateElement("p")
	require.NoError(t, d.AppendChild(d.Root(), a))
	require.NoError(t, d.AppendChild(d.Root(), b))

	kids, err := d.ChildrenOf(d.Root())
	require.NoError(t, err)
	assert.Equal(t, []NodeID{a, b}, kids)

	parent, err := d.Parent(b)
	require.NoError(t, err)
	assert.Equal(t, d.Root(), parent)
}

func TestInsertChildAtIndex(t *testing.T) {
	d := NewDocument()
	a := d.CreateElement("a")
	c := d.CreateElement("c")
	require.NoError(t, d.AppendChild(d.Root(), a))
	require.NoError(t, d.AppendChild(d.Root(), c))
	b := d.CreateElement("b")
	require.NoError(t, d.InsertChild(d.Root(), b, 1))

	kids, _ := d.ChildrenOf(d.Root())
	assert.Equal(t, []NodeID{a, b, c}, kids)
}

func TestDirtyPropagatesToEveryAncestor(t *testing.T) {
	d, div, span, text := buildSmallTree(t)
	d.ClearDirty(d.DirtyNodes())
	require.False(t, d.HasDirty())

	require.NoError(t, d.SetText(text, "changed"))

	for _, id := range []NodeID{text, span, div, d.Root()} {
		assert.True(t, d.Node(id).Dirty, "node %d should be dirty", id)
	}
}

func TestContentDescriptorChangeDirtiesAndBumpsVersion(t *testing.T) {
	d, _, _, text := buildSmallTree(t)
	d.ClearDirty(d.DirtyNodes())
	v := d.Node(text).ContentVersion

	require.NoError(t, d.SetContent(text, Content{Kind: ContentText, Text: "late"}))

	assert.Equal(t, v+1, d.Node(text).ContentVersion)
	assert.True(t, d.Node(text).Dirty)
	assert.True(t, d.Node(d.Root()).Dirty, "descriptor change must dirty ancestors too")
}

func TestRemoveChildDestroysSubtree(t *testing.T) {
	d, div, span, text := buildSmallTree(t)
	require.NoError(t, d.RemoveChild(d.Root(), div))

	assert.False(t, d.Alive(div))
	assert.False(t, d.Alive(span))
	assert.False(t, d.Alive(text))
	assert.True(t, d.Node(d.Root()).Dirty)
}

func TestRemoveChildRejectsNonChild(t *testing.T) {
	d, _, span, _ := buildSmallTree(t)
	err := d.RemoveChild(d.Root(), span)
	assert.ErrorIs(t, err, ErrStructuralCorruption)
}

func TestAttributeOrderPreserved(t *testing.T) {
	d := NewDocument()
	n := d.CreateElement("td")
	require.NoError(t, d.AppendChild(d.Root(), n))
	require.NoError(t, d.SetAttribute(n, "colspan", "2"))
	require.NoError(t, d.SetAttribute(n, "class", "wide"))
	require.NoError(t, d.SetAttribute(n, "colspan", "3"))

	assert.Equal(t, []Attr{{"colspan", "3"}, {"class", "wide"}}, d.Node(n).Attrs)
	assert.Equal(t, 3, d.Node(n).IntAttribute("colspan", 1))
	assert.Equal(t, 1, d.Node(n).IntAttribute("rowspan", 1))
}

func TestWalkPreOrderAndRestart(t *testing.T) {
	d, div, span, text := buildSmallTree(t)
	sib := d.CreateElement("p")
	require.NoError(t, d.AppendChild(d.Root(), sib))

	var order []NodeID
	w := d.Walk()
	for id, ok := w.Next(); ok; id, ok = w.Next() {
		order = append(order, id)
	}
	assert.Equal(t, []NodeID{d.Root(), div, span, text, sib}, order)

	w.Restart()
	first, ok := w.Next()
	require.True(t, ok)
	assert.Equal(t, d.Root(), first)
}

func TestClearDirtyClearsExactlyTheSnapshot(t *testing.T) {
	d, div, _, text := buildSmallTree(t)
	snapshot := d.DirtyNodes()

	// A later mutation that is not part of the snapshot must survive the
	// clear, mirroring the engine's cycle-boundary rule.
	d.ClearDirty(snapshot)
	require.False(t, d.HasDirty())

	require.NoError(t, d.SetText(text, "next frame"))
	d.ClearDirty(snapshot) // stale snapshot, no longer dirty in it
	assert.True(t, d.Node(text).Dirty)
	assert.True(t, d.Node(div).Dirty)
}

func TestInsertChildRejectsCycle(t *testing.T) {
	d, div, span, _ := buildSmallTree(t)
	// Detach span's subtree bookkeeping by hand to attempt the illegal edge.
	err := d.InsertChild(span, div, -1)
	assert.Error(t, err)
}

func TestCheckIntegrityDetectsBackReferenceMismatch(t *testing.T) {
	d, _, span, _ := buildSmallTree(t)
	require.NoError(t, d.CheckIntegrity())

	d.nodes[span].Parent = d.Root() // corrupt the back-reference
	err := d.CheckIntegrity()
	assert.ErrorIs(t, err, ErrStructuralCorruption)
}

func TestCheckIntegrityDetectsSharedChild(t *testing.T) {
	d, div, span, _ := buildSmallTree(t)
	d.nodes[d.Root()].Children = append(d.nodes[d.Root()].Children, span)
	_ = div
	err := d.CheckIntegrity()
	assert.ErrorIs(t, err, ErrStructuralCorruption)
}
