package graph

import "errors"

var (
	// ErrFormat marks a graph file that is corrupt or of an incompatible
	// version. Load never returns a partially populated graph with it.
	ErrFormat = errors.New("corrupt or incompatible graph file")

	ErrNodeExists = errors.New("node already exists")

	// ErrInvalidNode is the panic value for write operations on a node that
	// does not belong to the graph.
	ErrInvalidNode = errors.New("invalid node")

	ErrInvalidTag = errors.New("invalid uid tag")
)
