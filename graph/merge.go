package graph

import (
	"fmt"

	"sagraph/strtable"
)

// Merge unions src into g. Every key of src is re-interned into g's table
// first; keys of the two tables are never compared directly.
//
// Nodes are matched by UID. A node already present keeps its type; a node
// type conflict is an error and leaves g untouched. A UID deleted in g stays
// deleted, its source node and the edges touching it are dropped.
//
// Attributes and edges are merged as multisets: each one of src is matched
// against at most one equal attribute or edge g held before the merge and
// added when none is left. Duplicates within src therefore survive, and
// merging the same src twice adds nothing the second time. Header entries of
// g win over those of src.
func (g *Graph) Merge(src *Graph) error {
	for sn := range src.allNodes() {
		if dn, ok := g.nodes[sn.uid]; ok && !dn.deleted && g.Str(dn.typ) != src.Str(sn.typ) {
			return fmt.Errorf("merge %s: type %q conflicts with %q", sn.uid, src.Str(sn.typ), g.Str(dn.typ))
		}
	}

	m, err := g.strs.Remap(src.strs)
	if err != nil {
		return fmt.Errorf("merge string tables: %w", err)
	}
	remap := func(k strtable.Key) strtable.Key { return m[k] }

	for sn := range src.allNodes() {
		dn, ok := g.nodes[sn.uid]
		switch {
		case !ok:
			dn = g.insert(sn.uid, remap(sn.typ))
			if sn.uid.Num > g.counters[sn.uid.Tag] {
				g.counters[sn.uid.Tag] = sn.uid.Num
			}
		case dn.deleted:
			continue
		}
		mergeAttrs(&dn.attrs, &sn.attrs, remap)
	}

	matched := make(map[*Edge]bool)
	for se := range src.Edges() {
		from := g.FindNode(se.from.uid)
		to := g.FindNode(se.to.uid)
		if !from.Valid() || !to.Valid() {
			continue
		}
		et := EdgeType{Name: remap(se.typ.Name), Dir: se.typ.Dir}
		var attrs AttributeList
		for _, a := range se.attrs.items {
			attrs.Add(Clone(a, remap))
		}
		if e := g.unmatchedEdge(from, to, et, &attrs, matched); e != nil {
			matched[e] = true
			continue
		}
		e := g.AddEdge(from, to, et)
		e.attrs = attrs
		// added edges are not candidates for later src edges
		matched[e] = true
	}

	for k, v := range src.header {
		if _, ok := g.header[k]; !ok {
			g.header[k] = v
		}
	}
	return nil
}

// mergeAttrs adds the attributes of src to dst, each equal attribute dst
// held on entry absorbing one of them.
func mergeAttrs(dst, src *AttributeList, remap func(strtable.Key) strtable.Key) {
	n := len(dst.items)
	used := make([]bool, n)
next:
	for _, a := range src.items {
		ca := Clone(a, remap)
		for i := range n {
			if !used[i] && Equal(dst.items[i], ca) {
				used[i] = true
				continue next
			}
		}
		dst.Add(ca)
	}
}

func (g *Graph) unmatchedEdge(from, to *Node, et EdgeType, attrs *AttributeList, matched map[*Edge]bool) *Edge {
	for e := range g.OutEdges(from, et) {
		if !matched[e] && e.from == from && e.to == to && e.attrs.Equal(attrs) {
			return e
		}
	}
	return nil
}
