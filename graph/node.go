package graph

import (
	"iter"

	"sagraph/strtable"
)

// Node is a typed vertex. Hierarchy is expressed only through edges.
type Node struct {
	g       *Graph
	uid     UID
	typ     strtable.Key
	attrs   AttributeList
	out     []*Edge
	in      []*Edge
	deleted bool
}

// Invalid is the sentinel returned by lookups that find nothing.
var Invalid *Node

// Valid reports whether n is a live node.
func (n *Node) Valid() bool { return n != nil && !n.deleted }

func (n *Node) UID() UID { return n.uid }

func (n *Node) Type() strtable.Key { return n.typ }

// TypeName resolves the node type through the owning graph.
func (n *Node) TypeName() string { return n.g.strs.Get(n.typ) }

func (n *Node) Attributes() *AttributeList { return &n.attrs }

func (n *Node) AddAttribute(a Attribute) { n.attrs.Add(a) }

// FindAttributes yields every attribute with the given name. A name that was
// never interned yields nothing.
func (n *Node) FindAttributes(name string) iter.Seq[Attribute] {
	k, ok := n.g.strs.Lookup(name)
	if !ok {
		return func(func(Attribute) bool) {}
	}
	return n.attrs.FindByName(k)
}

// Attribute returns the first attribute called name, or nil.
func (n *Node) Attribute(name string) Attribute {
	k, ok := n.g.strs.Lookup(name)
	if !ok {
		return nil
	}
	return n.attrs.First(k)
}

func (n *Node) String() string {
	if n == nil {
		return "<invalid>"
	}
	return n.uid.String() + ":" + n.TypeName()
}
