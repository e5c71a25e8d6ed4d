// Package graph is an in-memory property graph for static analysis results:
// typed nodes and edges carrying typed, possibly nested attributes, with all
// strings interned in one strtable.Table.
//
// A Graph has a single owner. It is built in bulk, optionally pruned, then
// saved; nothing in this package locks.
package graph

import (
	"fmt"
	"iter"
	"maps"
	"slices"

	"sagraph/strtable"
)

// Graph owns its nodes, edges and their attributes.
type Graph struct {
	strs     *strtable.Table
	nodes    map[UID]*Node
	order    []*Node
	edges    []*Edge
	counters map[byte]uint64
	header   map[string]string
	filter   func(*Node) bool

	liveNodes int
	liveEdges int
}

// New returns an empty graph with its own string table.
func New() *Graph {
	return NewWithTable(strtable.New(0))
}

// NewWithTable returns an empty graph interning into strs.
func NewWithTable(strs *strtable.Table) *Graph {
	return &Graph{
		strs:     strs,
		nodes:    make(map[UID]*Node),
		counters: make(map[byte]uint64),
		header:   make(map[string]string),
	}
}

func (g *Graph) Table() *strtable.Table { return g.strs }

// Key interns s.
func (g *Graph) Key(s string) strtable.Key { return g.strs.Set(s) }

// Str resolves k.
func (g *Graph) Str(k strtable.Key) string { return g.strs.Get(k) }

// CreateNode allocates a node with a fresh DefaultTag UID.
func (g *Graph) CreateNode(nodeType string) *Node {
	return g.CreateNodeTagged(DefaultTag, nodeType)
}

// CreateNodeTagged allocates a node with the next free number for tag.
func (g *Graph) CreateNodeTagged(tag byte, nodeType string) *Node {
	if !isTag(tag) {
		panic(fmt.Errorf("%w: %q", ErrInvalidTag, tag))
	}
	g.counters[tag]++
	uid := UID{Tag: tag, Num: g.counters[tag]}
	return g.insert(uid, g.strs.Set(nodeType))
}

// CreateNodeWithUID creates a node under a caller-chosen UID, e.g. one
// derived from an external model. Later automatic numbering for the same
// tag continues above uid.Num.
func (g *Graph) CreateNodeWithUID(uid UID, nodeType string) (*Node, error) {
	if !isTag(uid.Tag) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTag, uid.Tag)
	}
	if _, exists := g.nodes[uid]; exists {
		return nil, fmt.Errorf("%w: %s", ErrNodeExists, uid)
	}
	if uid.Num > g.counters[uid.Tag] {
		g.counters[uid.Tag] = uid.Num
	}
	return g.insert(uid, g.strs.Set(nodeType)), nil
}

func (g *Graph) insert(uid UID, typ strtable.Key) *Node {
	n := &Node{g: g, uid: uid, typ: typ}
	g.nodes[uid] = n
	g.order = append(g.order, n)
	g.liveNodes++
	return n
}

// FindNode returns the node with uid, or Invalid. Deleted nodes stay
// unresolvable; their UIDs are not handed out again.
func (g *Graph) FindNode(uid UID) *Node {
	n, ok := g.nodes[uid]
	if !ok || n.deleted {
		return Invalid
	}
	return n
}

// SetFilter installs a predicate; nodes for which keep returns false are
// skipped by FindNodes, Nodes and the text exports. Pass nil to clear.
func (g *Graph) SetFilter(keep func(*Node) bool) { g.filter = keep }

func (g *Graph) visible(n *Node) bool {
	return !n.deleted && (g.filter == nil || g.filter(n))
}

// FindNodes yields the visible nodes of nodeType in creation order.
func (g *Graph) FindNodes(nodeType string) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		k, ok := g.strs.Lookup(nodeType)
		if !ok {
			return
		}
		for i := 0; i < len(g.order); i++ {
			n := g.order[i]
			if n.typ == k && g.visible(n) && !yield(n) {
				return
			}
		}
	}
}

// Nodes yields every visible node in creation order.
func (g *Graph) Nodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for i := 0; i < len(g.order); i++ {
			if n := g.order[i]; g.visible(n) && !yield(n) {
				return
			}
		}
	}
}

// allNodes ignores the filter; the binary codec always writes everything.
func (g *Graph) allNodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, n := range g.order {
			if !n.deleted && !yield(n) {
				return
			}
		}
	}
}

// Edges yields every live edge in creation order.
func (g *Graph) Edges() iter.Seq[*Edge] {
	return func(yield func(*Edge) bool) {
		for i := 0; i < len(g.edges); i++ {
			if e := g.edges[i]; !e.deleted && !yield(e) {
				return
			}
		}
	}
}

func (g *Graph) NodeCount() int { return g.liveNodes }

func (g *Graph) EdgeCount() int { return g.liveEdges }

func (g *Graph) mustOwn(n *Node) {
	if n == nil || n.g != g || n.deleted {
		panic(fmt.Errorf("%w: %v", ErrInvalidNode, n))
	}
}

// EdgeTypeOf interns name and returns the edge type.
func (g *Graph) EdgeTypeOf(name string, dir Direction) EdgeType {
	return EdgeType{Name: g.strs.Set(name), Dir: dir}
}

// AddEdge connects from and to. Both must be live nodes of g.
func (g *Graph) AddEdge(from, to *Node, et EdgeType) *Edge {
	g.mustOwn(from)
	g.mustOwn(to)
	e := &Edge{from: from, to: to, typ: et}
	g.edges = append(g.edges, e)
	g.liveEdges++
	from.out = append(from.out, e)
	to.in = append(to.in, e)
	if et.Dir == Bidirectional && from != to {
		to.out = append(to.out, e)
		from.in = append(from.in, e)
	}
	return e
}

// AddDirectedEdge adds a Directional edge and, with withReverse, its
// Reverse companion from to back to from.
func (g *Graph) AddDirectedEdge(from, to *Node, name string, withReverse bool) (fwd, rev *Edge) {
	et := g.EdgeTypeOf(name, Directional)
	fwd = g.AddEdge(from, to, et)
	if withReverse {
		rev = g.AddEdge(to, from, et.Reversed())
	}
	return fwd, rev
}

// AddBidirectedEdge adds a single edge visible from both endpoints.
func (g *Graph) AddBidirectedEdge(a, b *Node, name string) *Edge {
	return g.AddEdge(a, b, g.EdgeTypeOf(name, Bidirectional))
}

func matchEdges(list []*Edge, et EdgeType) iter.Seq[*Edge] {
	return func(yield func(*Edge) bool) {
		for i := 0; i < len(list); i++ {
			if e := list[i]; !e.deleted && e.typ == et && !yield(e) {
				return
			}
		}
	}
}

// OutEdges yields the edges of type et leaving n.
func (g *Graph) OutEdges(n *Node, et EdgeType) iter.Seq[*Edge] {
	if !n.Valid() {
		return matchEdges(nil, et)
	}
	return matchEdges(n.out, et)
}

// InEdges yields the edges of type et entering n.
func (g *Graph) InEdges(n *Node, et EdgeType) iter.Seq[*Edge] {
	if !n.Valid() {
		return matchEdges(nil, et)
	}
	return matchEdges(n.in, et)
}

// AllOutEdges yields every edge leaving n regardless of type.
func (g *Graph) AllOutEdges(n *Node) iter.Seq[*Edge] {
	return func(yield func(*Edge) bool) {
		if !n.Valid() {
			return
		}
		for _, e := range n.out {
			if !e.deleted && !yield(e) {
				return
			}
		}
	}
}

func unlink(list []*Edge, e *Edge) []*Edge {
	return slices.DeleteFunc(list, func(x *Edge) bool { return x == e })
}

// DeleteEdge removes e from both endpoints.
func (g *Graph) DeleteEdge(e *Edge) {
	if !e.Valid() {
		return
	}
	e.deleted = true
	g.liveEdges--
	e.from.out = unlink(e.from.out, e)
	e.to.in = unlink(e.to.in, e)
	if e.typ.Dir == Bidirectional {
		e.to.out = unlink(e.to.out, e)
		e.from.in = unlink(e.from.in, e)
	}
}

// DeleteNode removes n and every incident edge. Its UID is retired.
func (g *Graph) DeleteNode(n *Node) {
	g.mustOwn(n)
	for _, e := range slices.Clone(n.out) {
		g.DeleteEdge(e)
	}
	for _, e := range slices.Clone(n.in) {
		g.DeleteEdge(e)
	}
	n.deleted = true
	g.liveNodes--
}

// SetHeaderInfo stores provenance metadata saved with the graph.
func (g *Graph) SetHeaderInfo(key, value string) { g.header[key] = value }

// HeaderInfo returns the value for key, "" if unset.
func (g *Graph) HeaderInfo(key string) string { return g.header[key] }

// Header returns a copy of the header.
func (g *Graph) Header() map[string]string { return maps.Clone(g.header) }

// HeaderKeys returns the header keys sorted.
func (g *Graph) HeaderKeys() []string {
	return slices.Sorted(maps.Keys(g.header))
}

// NewInt builds an int attribute, interning name and context.
func (g *Graph) NewInt(name, context string, v int32) *IntAttribute {
	return &IntAttribute{attrHeader: g.attrHeader(name, context), Value: v}
}

func (g *Graph) NewFloat(name, context string, v float32) *FloatAttribute {
	return &FloatAttribute{attrHeader: g.attrHeader(name, context), Value: v}
}

func (g *Graph) NewString(name, context, value string) *StringAttribute {
	return &StringAttribute{attrHeader: g.attrHeader(name, context), Value: g.strs.Set(value)}
}

// NewStringTyped is NewString with the value interned as typ. A value
// already in the table keeps its type.
func (g *Graph) NewStringTyped(name, context, value string, typ strtable.StrType) *StringAttribute {
	return &StringAttribute{attrHeader: g.attrHeader(name, context), Value: g.strs.Set(value, typ)}
}

func (g *Graph) NewComposite(name, context string, children ...Attribute) *CompositeAttribute {
	c := &CompositeAttribute{attrHeader: g.attrHeader(name, context)}
	for _, a := range children {
		c.Attrs.Add(a)
	}
	return c
}

func (g *Graph) attrHeader(name, context string) attrHeader {
	return attrHeader{name: g.strs.Set(name), context: g.strs.Set(context)}
}

// StringValue resolves a string attribute's value.
func (g *Graph) StringValue(a *StringAttribute) string { return g.strs.Get(a.Value) }
