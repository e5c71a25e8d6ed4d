package graph

import (
	"fmt"

	"sagraph/strtable"
)

// Direction classifies an edge type.
type Direction uint8

const (
	Directional Direction = iota + 1
	// Reverse is the declared companion of a Directional type.
	Reverse
	// Bidirectional edges are visible as out- and in-edges of both ends.
	Bidirectional
)

func (d Direction) String() string {
	switch d {
	case Directional:
		return "directional"
	case Reverse:
		return "reverse"
	case Bidirectional:
		return "bidirectional"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// ParseDirection accepts the names produced by Direction.String.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "directional":
		return Directional, nil
	case "reverse":
		return Reverse, nil
	case "bidirectional":
		return Bidirectional, nil
	}
	return 0, fmt.Errorf("unknown edge direction %q", s)
}

// EdgeType pairs a type name with its directionality.
type EdgeType struct {
	Name strtable.Key
	Dir  Direction
}

// Reversed returns the declared companion type.
func (t EdgeType) Reversed() EdgeType {
	switch t.Dir {
	case Directional:
		return EdgeType{Name: t.Name, Dir: Reverse}
	case Reverse:
		return EdgeType{Name: t.Name, Dir: Directional}
	}
	return t
}

// Edge connects two nodes of the same graph. Several edges of one type may
// join the same pair when they carry different attributes.
type Edge struct {
	from, to *Node
	typ      EdgeType
	attrs    AttributeList
	deleted  bool
}

func (e *Edge) From() *Node { return e.from }

func (e *Edge) To() *Node { return e.to }

func (e *Edge) Type() EdgeType { return e.typ }

func (e *Edge) Attributes() *AttributeList { return &e.attrs }

func (e *Edge) AddAttribute(a Attribute) { e.attrs.Add(a) }

// Other returns the endpoint that is not n. For a bidirectional edge seen
// from either side this is the neighbour.
func (e *Edge) Other(n *Node) *Node {
	if e.from == n {
		return e.to
	}
	return e.from
}

func (e *Edge) Valid() bool { return e != nil && !e.deleted }
