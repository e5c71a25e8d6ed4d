package graphsupport

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"sagraph/graph"
	"sagraph/strtable"
)

var (
	// ErrCycle is returned when the summation edges of a pass form a cycle.
	ErrCycle = errors.New("cycle along summation edges")

	// ErrSameContext is returned when a pass would read its own output.
	ErrSameContext = errors.New("input and output context are equal")
)

// SumPass describes one roll-up along an edge type.
type SumPass struct {
	// EdgeType names a directional edge type.
	EdgeType string
	// Forward sums the sources of a node's incoming edges into it, as for
	// child-to-parent edges. Otherwise the targets of outgoing edges are
	// summed, as for parent-to-child edges such as Contains.
	Forward bool
	// Metrics restricts the pass to these attribute names. Empty means every
	// numeric attribute in InputContext.
	Metrics []string
	// InputContext selects the attributes summed. Earlier passes are chained
	// by reading their OutputContext here.
	InputContext string
	// OutputContext receives the totals; defaults to "cumulative".
	OutputContext string
}

type total struct {
	sum    float64
	isum   int64
	allInt bool
}

func (t *total) add(o total) {
	t.sum += o.sum
	t.isum += o.isum
	t.allInt = t.allInt && o.allInt
}

// sums maps an attribute name to its running total on one node.
type sums map[strtable.Key]*total

func (s sums) add(name strtable.Key, o total) {
	t, ok := s[name]
	if !ok {
		t = &total{allInt: true}
		s[name] = t
	}
	t.add(o)
}

const (
	white = iota
	gray
	black
)

// CumulativeSum writes, for every node and metric, the node's own value plus
// the totals of all its children under p. Previous output of the same
// metrics in OutputContext is removed first, so running a pass twice gives
// the same result. Totals that stay integral and fit in int32 are written as
// ints, all others as floats. On ErrCycle the graph is left unchanged.
func CumulativeSum(g *graph.Graph, p SumPass) error {
	if p.OutputContext == "" {
		p.OutputContext = ContextCumulative
	}
	if p.OutputContext == p.InputContext {
		return fmt.Errorf("%w: %q", ErrSameContext, p.OutputContext)
	}

	strs := g.Table()
	inCtx := strs.Set(p.InputContext)
	outCtx := strs.Set(p.OutputContext)
	var filter map[strtable.Key]bool
	if len(p.Metrics) > 0 {
		filter = make(map[strtable.Key]bool, len(p.Metrics))
		for _, m := range p.Metrics {
			filter[strs.Set(m)] = true
		}
	}
	want := func(a graph.Attribute, ctx strtable.Key) bool {
		if a.Context() != ctx {
			return false
		}
		if filter != nil && !filter[a.Name()] {
			return false
		}
		_, numeric := graph.NumericValue(a)
		return numeric
	}
	et := g.EdgeTypeOf(p.EdgeType, graph.Directional)
	children := func(n *graph.Node) []*graph.Node {
		var out []*graph.Node
		if p.Forward {
			for e := range g.InEdges(n, et) {
				out = append(out, e.From())
			}
		} else {
			for e := range g.OutEdges(n, et) {
				out = append(out, e.To())
			}
		}
		return out
	}

	totals := make(map[*graph.Node]sums)
	state := make(map[*graph.Node]int)

	type frame struct {
		n    *graph.Node
		kids []*graph.Node
		next int
	}
	visit := func(root *graph.Node) error {
		stack := []frame{{n: root, kids: children(root)}}
		state[root] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.kids) {
				c := top.kids[top.next]
				top.next++
				switch state[c] {
				case gray:
					return fmt.Errorf("%w: %s reached again from %s", ErrCycle, c.UID(), top.n.UID())
				case white:
					state[c] = gray
					stack = append(stack, frame{n: c, kids: children(c)})
				}
				continue
			}
			n := top.n
			s := make(sums)
			for a := range n.Attributes().All() {
				if !want(a, inCtx) {
					continue
				}
				v, _ := graph.NumericValue(a)
				t := total{sum: v, allInt: a.Kind() == graph.KindInt}
				if t.allInt {
					t.isum = int64(v)
				}
				s.add(a.Name(), t)
			}
			for _, c := range top.kids {
				for name, t := range totals[c] {
					s.add(name, *t)
				}
			}
			if len(s) > 0 {
				totals[n] = s
			}
			state[n] = black
			stack = stack[:len(stack)-1]
		}
		return nil
	}

	var nodes []*graph.Node
	for n := range g.Nodes() {
		nodes = append(nodes, n)
	}
	for _, n := range nodes {
		if state[n] == white {
			if err := visit(n); err != nil {
				return err
			}
		}
	}

	for _, n := range nodes {
		n.Attributes().Remove(func(a graph.Attribute) bool { return want(a, outCtx) })
		s := totals[n]
		if len(s) == 0 {
			continue
		}
		names := make([]strtable.Key, 0, len(s))
		for k := range s {
			names = append(names, k)
		}
		slices.SortFunc(names, func(a, b strtable.Key) int {
			return cmp.Compare(strs.Get(a), strs.Get(b))
		})
		for _, k := range names {
			t := s[k]
			name := strs.Get(k)
			if t.allInt && t.isum >= math.MinInt32 && t.isum <= math.MaxInt32 {
				n.AddAttribute(g.NewInt(name, p.OutputContext, int32(t.isum)))
			} else {
				n.AddAttribute(g.NewFloat(name, p.OutputContext, float32(t.sum)))
			}
		}
	}
	return nil
}
