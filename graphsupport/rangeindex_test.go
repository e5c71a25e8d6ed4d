package graphsupport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagraph/graph"
)

func addPosition(g *graph.Graph, n *graph.Node, path string, line, col, endLine, endCol int32) {
	n.AddAttribute(g.NewComposite(AttrPosition, "",
		g.NewString(AttrPath, "", path),
		g.NewInt(AttrLine, "", line),
		g.NewInt(AttrColumn, "", col),
		g.NewInt(AttrEndLine, "", endLine),
		g.NewInt(AttrEndColumn, "", endCol),
	))
}

func TestFindNodesByRangeSingleNode(t *testing.T) {
	g := graph.New()
	n := g.CreateNode("Class")
	n.AddAttribute(g.NewComposite(AttrPosition, "",
		g.NewString(AttrPath, "", "src/a/B.cs"),
		g.NewInt(AttrLine, "", 10),
		g.NewInt(AttrEndLine, "", 12),
	))

	idx := NewRangeIndex()
	idx.TurnOn(g)
	got := idx.FindNodesByRange(g, "src/a/B.cs", 11, MinColumn, 11, MaxColumn)
	assert.Equal(t, []*graph.Node{n}, got)

	assert.Empty(t, idx.FindNodesByRange(g, "src/a/B.cs", 13, MinColumn, 20, MaxColumn))
	assert.Empty(t, idx.FindNodesByRange(g, "src/a/Other.cs", 11, MinColumn, 11, MaxColumn))
}

func TestFindNodesByRangeOverlapNotContainment(t *testing.T) {
	g := graph.New()
	a := g.CreateNode("Method")
	addPosition(g, a, "f.go", 1, 1, 10, 2)
	b := g.CreateNode("Method")
	addPosition(g, b, "f.go", 8, 1, 20, 2)
	c := g.CreateNode("Method")
	addPosition(g, c, "f.go", 30, 1, 40, 2)

	idx := NewRangeIndex()
	idx.TurnOn(g)
	assert.Equal(t, []*graph.Node{a, b}, idx.FindNodesByRange(g, "f.go", 9, 0, 25, 0))
	assert.Equal(t, []*graph.Node{b, c}, idx.FindNodesByRange(g, "f.go", 15, 0, 35, 0))
	assert.Empty(t, idx.FindNodesByRange(g, "f.go", 21, 0, 29, MaxColumn))
}

func TestFindNodesByRangeColumns(t *testing.T) {
	g := graph.New()
	left := g.CreateNode("Expr")
	addPosition(g, left, "f.go", 5, 1, 5, 10)
	right := g.CreateNode("Expr")
	addPosition(g, right, "f.go", 5, 20, 5, 30)

	idx := NewRangeIndex()
	idx.TurnOn(g)
	assert.Equal(t, []*graph.Node{right}, idx.FindNodesByRange(g, "f.go", 5, 15, 5, 25))
	assert.Equal(t, []*graph.Node{left, right}, idx.FindNodesByRange(g, "f.go", 5, MinColumn, 5, MaxColumn))
}

func TestEveryIndexedNodeIsFound(t *testing.T) {
	g := graph.New()
	var nodes []*graph.Node
	for i := range int32(200) {
		n := g.CreateNode("Method")
		start := (i * 7) % 500
		addPosition(g, n, "big.go", start+1, 1, start+1+(i%13), 80)
		nodes = append(nodes, n)
	}
	idx := NewRangeIndex()
	idx.TurnOn(g)
	assert.Equal(t, 200, idx.Len())

	for _, n := range nodes {
		pos := graph.MustComposite(n.Attribute(AttrPosition))
		line := graph.MustInt(pos.Attrs.At(1)).Value
		end := graph.MustInt(pos.Attrs.At(3)).Value
		got := idx.FindNodesByRange(g, "big.go", int(line), MinColumn, int(end), MaxColumn)
		assert.Contains(t, got, n)
	}
}

func TestMultiplePositionsReturnNodeOnce(t *testing.T) {
	g := graph.New()
	n := g.CreateNode("Class")
	addPosition(g, n, "p.cs", 1, 1, 5, 1)
	addPosition(g, n, "p.cs", 3, 1, 9, 1)

	idx := NewRangeIndex()
	idx.TurnOn(g)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, []*graph.Node{n}, idx.FindNodesByRange(g, "p.cs", 4, 0, 4, MaxColumn))
}

func TestBestMatchTieBreakFirstDiscovered(t *testing.T) {
	g := graph.New()
	first := g.CreateNode("Method")
	addPosition(g, first, "t.go", 10, 1, 20, 1)
	second := g.CreateNode("Method")
	addPosition(g, second, "t.go", 10, 1, 20, 1)
	wide := g.CreateNode("Class")
	addPosition(g, wide, "t.go", 1, 1, 100, 1)

	idx := NewRangeIndex()
	idx.TurnOn(g)
	for range 5 {
		got, ok := idx.BestMatch(g, "t.go", 12, 0, 18, 0)
		require.True(t, ok)
		assert.Same(t, first, got)
	}
}

func TestBestMatchPrefersClosestLines(t *testing.T) {
	g := graph.New()
	class := g.CreateNode("Class")
	addPosition(g, class, "t.go", 1, 1, 100, 1)
	method := g.CreateNode("Method")
	addPosition(g, method, "t.go", 40, 1, 50, 1)

	idx := NewRangeIndex()
	idx.TurnOn(g)
	got, ok := idx.BestMatch(g, "t.go", 41, 0, 41, 0)
	require.True(t, ok)
	assert.Same(t, method, got)

	_, ok = idx.BestMatch(g, "t.go", 200, 0, 200, 0)
	assert.False(t, ok)
}

func TestResolvePathBySuffix(t *testing.T) {
	g := graph.New()
	n := g.CreateNode("File")
	addPosition(g, n, "/home/ci/src/a/B.cs", 1, 1, 10, 1)
	m := g.CreateNode("File")
	addPosition(g, m, "/home/ci/src/b/B.cs", 1, 1, 10, 1)

	idx := NewRangeIndex()
	idx.TurnOn(g)

	p, ok := idx.ResolvePath("src/a/B.cs")
	require.True(t, ok)
	assert.Equal(t, "/home/ci/src/a/B.cs", p)

	_, ok = idx.ResolvePath("B.cs")
	assert.False(t, ok, "ambiguous suffix")

	assert.Equal(t, []*graph.Node{n}, idx.FindNodesByRange(g, "a/B.cs", 2, 0, 2, 0))
}

func TestResolveRelativeIndexAbsoluteQuery(t *testing.T) {
	g := graph.New()
	n := g.CreateNode("File")
	addPosition(g, n, "pkg/x.go", 1, 1, 10, 1)

	idx := NewRangeIndex()
	idx.TurnOn(g)
	p, ok := idx.ResolvePath("/abs/root/pkg/x.go")
	require.True(t, ok)
	assert.Equal(t, "pkg/x.go", p)
}

func TestResolvePathNeedsMatchingDirectories(t *testing.T) {
	g := graph.New()
	n := g.CreateNode("File")
	addPosition(g, n, "src/x/B.cs", 1, 1, 10, 1)
	util := g.CreateNode("File")
	addPosition(g, util, "util.go", 1, 1, 10, 1)

	idx := NewRangeIndex()
	idx.TurnOn(g)

	_, ok := idx.ResolvePath("a/B.cs")
	assert.False(t, ok, "same base name in another directory")
	assert.Empty(t, idx.FindNodesByRange(g, "other/module/a/B.cs", 5, MinColumn, 5, MaxColumn))

	p, ok := idx.ResolvePath("x/B.cs")
	require.True(t, ok)
	assert.Equal(t, "src/x/B.cs", p)

	p, ok = idx.ResolvePath("/ci/repo/src/x/B.cs")
	require.True(t, ok)
	assert.Equal(t, "src/x/B.cs", p)

	// a root-level file still matches a query that ends with it
	p, ok = idx.ResolvePath("/ci/repo/util.go")
	require.True(t, ok)
	assert.Equal(t, "util.go", p)
}

func TestTurnOffAndRebuild(t *testing.T) {
	g := graph.New()
	n := g.CreateNode("Method")
	addPosition(g, n, "f.go", 1, 1, 2, 1)

	idx := NewRangeIndex()
	assert.Empty(t, idx.FindNodesByRange(g, "f.go", 1, 0, 1, MaxColumn))

	idx.TurnOn(g)
	assert.True(t, idx.On())
	assert.Len(t, idx.FindNodesByRange(g, "f.go", 1, 0, 1, MaxColumn), 1)

	// added after indexing: invisible until rebuilt
	late := g.CreateNode("Method")
	addPosition(g, late, "f.go", 1, 1, 2, 1)
	assert.Len(t, idx.FindNodesByRange(g, "f.go", 1, 0, 1, MaxColumn), 1)
	idx.TurnOn(g)
	assert.Len(t, idx.FindNodesByRange(g, "f.go", 1, 0, 1, MaxColumn), 2)

	idx.TurnOff()
	assert.False(t, idx.On())
	assert.Empty(t, idx.FindNodesByRange(g, "f.go", 1, 0, 1, MaxColumn))
}

func TestMalformedPositionsAreSkipped(t *testing.T) {
	g := graph.New()
	n := g.CreateNode("Method")
	n.AddAttribute(g.NewString(AttrPosition, "", "not a composite"))
	n.AddAttribute(g.NewComposite(AttrPosition, "", g.NewString(AttrPath, "", "f.go")))
	addPosition(g, n, "f.go", 9, 1, 3, 1)

	idx := NewRangeIndex()
	idx.TurnOn(g)
	assert.Equal(t, 0, idx.Len())
}
