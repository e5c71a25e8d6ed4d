package graph

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNodeCountersPerTag(t *testing.T) {
	g := New()
	a := g.CreateNode("Class")
	b := g.CreateNodeTagged('L', "Method")
	c := g.CreateNode("Class")

	assert.Equal(t, UID{Tag: 'N', Num: 1}, a.UID())
	assert.Equal(t, UID{Tag: 'L', Num: 1}, b.UID())
	assert.Equal(t, UID{Tag: 'N', Num: 2}, c.UID())
	assert.Equal(t, "L1", b.UID().String())
	assert.Equal(t, 3, g.NodeCount())
}

func TestCreateNodeWithUIDAdvancesCounter(t *testing.T) {
	g := New()
	_, err := g.CreateNodeWithUID(UID{Tag: 'L', Num: 100}, "Class")
	require.NoError(t, err)

	_, err = g.CreateNodeWithUID(UID{Tag: 'L', Num: 100}, "Class")
	assert.ErrorIs(t, err, ErrNodeExists)

	_, err = g.CreateNodeWithUID(UID{Tag: '1', Num: 1}, "Class")
	assert.ErrorIs(t, err, ErrInvalidTag)

	n := g.CreateNodeTagged('L', "Class")
	assert.Equal(t, uint64(101), n.UID().Num)
}

func TestCreateNodeTaggedPanicsOnBadTag(t *testing.T) {
	g := New()
	assert.Panics(t, func() { g.CreateNodeTagged(0, "X") })
}

func TestFindNodeMissReturnsInvalid(t *testing.T) {
	g := New()
	n := g.FindNode(UID{Tag: 'N', Num: 42})
	assert.Nil(t, n)
	assert.False(t, n.Valid())
	assert.Empty(t, slices.Collect(g.FindNodes("Unknown")))
}

func TestFindNodesCreationOrderAndFilter(t *testing.T) {
	g := New()
	c1 := g.CreateNode("Class")
	g.CreateNode("Method")
	c2 := g.CreateNode("Class")
	c3 := g.CreateNode("Class")

	assert.Equal(t, []*Node{c1, c2, c3}, slices.Collect(g.FindNodes("Class")))

	g.SetFilter(func(n *Node) bool { return n != c2 })
	assert.Equal(t, []*Node{c1, c3}, slices.Collect(g.FindNodes("Class")))
	assert.Len(t, slices.Collect(g.Nodes()), 3)

	g.SetFilter(nil)
	assert.Len(t, slices.Collect(g.Nodes()), 4)
}

func TestFindNodesSeesTypesCreatedLater(t *testing.T) {
	g := New()
	seq := g.FindNodes("Interface")
	assert.Empty(t, slices.Collect(seq))

	i := g.CreateNode("Interface")
	assert.Equal(t, []*Node{i}, slices.Collect(seq))
}

func TestMultiValuedAttributes(t *testing.T) {
	g := New()
	n := g.CreateNode("Class")
	n.AddAttribute(g.NewInt("Tag", "", 1))
	n.AddAttribute(g.NewInt("Tag", "", 2))
	n.AddAttribute(g.NewString("Name", "", "Foo"))

	tags := slices.Collect(n.FindAttributes("Tag"))
	require.Len(t, tags, 2)
	assert.Equal(t, int32(1), MustInt(tags[0]).Value)
	assert.Equal(t, int32(2), MustInt(tags[1]).Value)
	assert.Empty(t, slices.Collect(n.FindAttributes("Never")))
	assert.Nil(t, n.Attribute("Never"))
	assert.Equal(t, "Foo", g.StringValue(MustString(n.Attribute("Name"))))
}

func TestKindErrors(t *testing.T) {
	g := New()
	a := g.NewString("Name", "", "x")

	_, err := AsInt(a)
	var ke *KindError
	require.True(t, errors.As(err, &ke))
	assert.Equal(t, KindInt, ke.Want)
	assert.Equal(t, KindString, ke.Got)

	assert.Panics(t, func() { MustComposite(a) })

	_, ok := NumericValue(a)
	assert.False(t, ok)
	v, ok := NumericValue(g.NewFloat("X", "", 1.5))
	assert.True(t, ok)
	assert.InDelta(t, 1.5, v, 1e-9)
}

func TestCompositeNesting(t *testing.T) {
	g := New()
	pos := g.NewComposite("Position", "",
		g.NewString("Path", "", "a.go"),
		g.NewInt("Line", "", 3),
	)
	outer := g.NewComposite("Outer", "", pos)
	inner := MustComposite(outer.Attrs.At(0))
	assert.Equal(t, 2, inner.Attrs.Len())

	cp := Clone(outer, nil)
	assert.True(t, Equal(outer, cp))
	MustComposite(MustComposite(cp).Attrs.At(0)).Attrs.Add(g.NewInt("Column", "", 1))
	assert.False(t, Equal(outer, cp))
}

func TestEdgesDirectedWithReverse(t *testing.T) {
	g := New()
	parent := g.CreateNode("Class")
	child := g.CreateNode("Method")
	fwd, rev := g.AddDirectedEdge(parent, child, "Contains", true)
	require.NotNil(t, rev)

	et := g.EdgeTypeOf("Contains", Directional)
	assert.Equal(t, []*Edge{fwd}, slices.Collect(g.OutEdges(parent, et)))
	assert.Equal(t, []*Edge{fwd}, slices.Collect(g.InEdges(child, et)))
	assert.Equal(t, []*Edge{rev}, slices.Collect(g.OutEdges(child, et.Reversed())))
	assert.Equal(t, Reverse, rev.Type().Dir)
	assert.Equal(t, 2, g.EdgeCount())
}

func TestBidirectionalEdgeVisibleFromBothEnds(t *testing.T) {
	g := New()
	a := g.CreateNode("File")
	b := g.CreateNode("File")
	e := g.AddBidirectedEdge(a, b, "Clone")
	et := e.Type()

	assert.Equal(t, []*Edge{e}, slices.Collect(g.OutEdges(a, et)))
	assert.Equal(t, []*Edge{e}, slices.Collect(g.OutEdges(b, et)))
	assert.Equal(t, []*Edge{e}, slices.Collect(g.InEdges(a, et)))
	assert.Same(t, b, e.Other(a))
	assert.Same(t, a, e.Other(b))
}

func TestCycleOnNonContainmentEdge(t *testing.T) {
	g := New()
	a := g.CreateNode("Method")
	b := g.CreateNode("Method")
	g.AddDirectedEdge(a, b, "Calls", false)
	g.AddDirectedEdge(b, a, "Calls", false)
	assert.Equal(t, 2, g.EdgeCount())
}

func TestAddEdgeForeignNodePanics(t *testing.T) {
	g := New()
	other := New()
	a := g.CreateNode("X")
	b := other.CreateNode("X")
	assert.PanicsWithError(t, "invalid node: N1:X", func() {
		g.AddEdge(a, b, g.EdgeTypeOf("E", Directional))
	})
}

func TestDeleteNodeRemovesIncidentEdgesAndRetiresUID(t *testing.T) {
	g := New()
	a := g.CreateNode("X")
	b := g.CreateNode("X")
	c := g.CreateNode("X")
	g.AddDirectedEdge(a, b, "E", true)
	g.AddDirectedEdge(b, c, "E", false)

	g.DeleteNode(b)
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.False(t, g.FindNode(b.UID()).Valid())
	assert.Empty(t, slices.Collect(g.AllOutEdges(a)))

	d := g.CreateNode("X")
	assert.NotEqual(t, b.UID(), d.UID())
	assert.Equal(t, uint64(4), d.UID().Num)
}

func TestHeader(t *testing.T) {
	g := New()
	g.SetHeaderInfo("tool", "sagraph")
	g.SetHeaderInfo("mode", "build")
	assert.Equal(t, "sagraph", g.HeaderInfo("tool"))
	assert.Equal(t, "", g.HeaderInfo("missing"))
	assert.Equal(t, []string{"mode", "tool"}, g.HeaderKeys())

	h := g.Header()
	h["tool"] = "changed"
	assert.Equal(t, "sagraph", g.HeaderInfo("tool"))
}

func TestParseUID(t *testing.T) {
	u, err := ParseUID("L1024")
	require.NoError(t, err)
	assert.Equal(t, UID{Tag: 'L', Num: 1024}, u)

	for _, bad := range []string{"", "L", "1024", "L-1", "LL1"} {
		_, err := ParseUID(bad)
		assert.Error(t, err, bad)
	}
}

func TestMergeRemapsKeysAndDeduplicates(t *testing.T) {
	dst := New()
	// shift dst's keys so that equal keys across tables would be a bug
	dst.Key("padding-a")
	dst.Key("padding-b")
	shared := dst.CreateNode("Class")
	shared.AddAttribute(dst.NewString("Name", "", "Foo"))
	dst.SetHeaderInfo("tool", "dst")

	src := New()
	sn, err := src.CreateNodeWithUID(shared.UID(), "Class")
	require.NoError(t, err)
	sn.AddAttribute(src.NewString("Name", "", "Foo"))
	sn.AddAttribute(src.NewInt("LOC", "", 10))
	extra, err := src.CreateNodeWithUID(UID{Tag: 'L', Num: 7}, "Method")
	require.NoError(t, err)
	src.AddDirectedEdge(sn, extra, "Contains", true)
	src.SetHeaderInfo("tool", "src")
	src.SetHeaderInfo("root", "/src")

	require.NoError(t, dst.Merge(src))
	require.NoError(t, dst.Merge(src))

	assert.Equal(t, 2, dst.NodeCount())
	assert.Equal(t, 2, dst.EdgeCount())
	got := dst.FindNode(shared.UID())
	assert.Equal(t, 2, got.Attributes().Len())
	assert.Equal(t, "Foo", dst.StringValue(MustString(got.Attribute("Name"))))
	assert.Equal(t, int32(10), MustInt(got.Attribute("LOC")).Value)

	m := dst.FindNode(UID{Tag: 'L', Num: 7})
	require.True(t, m.Valid())
	assert.Equal(t, "Method", m.TypeName())
	assert.Equal(t, "dst", dst.HeaderInfo("tool"))
	assert.Equal(t, "/src", dst.HeaderInfo("root"))
	assert.Equal(t, uint64(8), dst.CreateNodeTagged('L', "X").UID().Num)
}

func TestMergeTypeConflictLeavesDestinationUntouched(t *testing.T) {
	dst := New()
	a := dst.CreateNode("Class")
	b := dst.CreateNode("Class")
	strs := dst.Table().Len()

	src := New()
	sa, err := src.CreateNodeWithUID(a.UID(), "Class")
	require.NoError(t, err)
	sa.AddAttribute(src.NewString("Name", "", "only in src"))
	_, err = src.CreateNodeWithUID(b.UID(), "Method")
	require.NoError(t, err)
	_, err = src.CreateNodeWithUID(UID{Tag: 'N', Num: 50}, "Field")
	require.NoError(t, err)

	assert.Error(t, dst.Merge(src))
	assert.Equal(t, 0, a.Attributes().Len())
	assert.Equal(t, 2, dst.NodeCount())
	assert.Equal(t, strs, dst.Table().Len())
	_, ok := dst.Table().Lookup("only in src")
	assert.False(t, ok)
}

func TestMergeKeepsDuplicatesFromSource(t *testing.T) {
	src := New()
	fn := src.CreateNode("Function")
	fn.AddAttribute(src.NewInt("Hit", "", 1))
	fn.AddAttribute(src.NewInt("Hit", "", 1))
	callee := src.CreateNode("Function")
	src.AddDirectedEdge(fn, callee, "Calls", false)
	src.AddDirectedEdge(fn, callee, "Calls", false)

	dst := New()
	require.NoError(t, dst.Merge(src))
	assert.Equal(t, 2, dst.FindNode(fn.UID()).Attributes().Len())
	assert.Equal(t, 2, dst.EdgeCount())

	require.NoError(t, dst.Merge(src))
	assert.Equal(t, 2, dst.FindNode(fn.UID()).Attributes().Len())
	assert.Equal(t, 2, dst.EdgeCount())
}

func TestMergeKeepsRetiredUIDsRetired(t *testing.T) {
	dst := New()
	keep := dst.CreateNode("Class")
	gone := dst.CreateNode("Class")
	dst.DeleteNode(gone)

	src := New()
	sk, err := src.CreateNodeWithUID(keep.UID(), "Class")
	require.NoError(t, err)
	sg, err := src.CreateNodeWithUID(gone.UID(), "Class")
	require.NoError(t, err)
	src.AddBidirectedEdge(sk, sg, "Uses")

	require.NoError(t, dst.Merge(src))
	assert.False(t, dst.FindNode(gone.UID()).Valid())
	assert.Equal(t, 1, dst.NodeCount())
	assert.Equal(t, 0, dst.EdgeCount())
}

func TestAttributeListRemove(t *testing.T) {
	g := New()
	n := g.CreateNode("X")
	n.AddAttribute(g.NewInt("A", "", 1))
	n.AddAttribute(g.NewInt("A", "cumulative", 2))
	n.AddAttribute(g.NewInt("B", "cumulative", 3))

	ctx := g.Key("cumulative")
	removed := n.Attributes().Remove(func(a Attribute) bool { return a.Context() == ctx })
	assert.Equal(t, 2, removed)
	var names []string
	for a := range n.Attributes().All() {
		names = append(names, g.Str(a.Name()))
	}
	assert.Equal(t, []string{"A"}, names)
}
