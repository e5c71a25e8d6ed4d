package goasg

import (
	"go.uber.org/zap"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// calls builds a VTA call graph over SSA and emits one Calls relation per
// distinct caller and callee pair inside the module. FANIN and FANOUT count
// distinct callers and callees.
func (b *builder) calls() {
	ssaProg, ssaPkgs := ssautil.AllPackages(b.prog.pkgs, ssa.InstantiateGenerics)
	var failed int
	for _, sp := range ssaPkgs {
		if sp == nil {
			failed++
		}
	}
	if failed > 0 {
		b.log.Warn("packages failed SSA construction", zap.Int("count", failed))
	}
	ssaProg.Build()

	cg := vta.CallGraph(ssautil.AllFunctions(ssaProg), nil)
	cg.DeleteSyntheticNodes()

	type pair struct{ from, to *Decl }
	seen := make(map[pair]bool)
	fanIn := make(map[*Decl]int)
	fanOut := make(map[*Decl]int)
	var total int

	_ = callgraph.GraphVisitEdges(cg, func(edge *callgraph.Edge) error {
		total++
		caller := b.ssaDecl(edge.Caller.Func)
		callee := b.ssaDecl(edge.Callee.Func)
		if caller == nil || callee == nil {
			return nil
		}
		p := pair{caller, callee}
		if seen[p] {
			return nil
		}
		seen[p] = true
		b.relate(caller, callee, RelCalls)
		fanOut[caller]++
		fanIn[callee]++
		return nil
	})

	for d, n := range fanIn {
		d.setMetric(MetricFanIn, float64(n))
	}
	for d, n := range fanOut {
		d.setMetric(MetricFanOut, float64(n))
	}
	b.log.Info("call graph", zap.Int("edges", total), zap.Int("module_calls", len(seen)))
}

// ssaDecl maps an SSA function to its declaration. Closures belong to the
// function declaring them; generic instances to their origin.
func (b *builder) ssaDecl(fn *ssa.Function) *Decl {
	for fn != nil && fn.Parent() != nil {
		fn = fn.Parent()
	}
	if fn == nil {
		return nil
	}
	if o := fn.Origin(); o != nil {
		fn = o
	}
	obj := fn.Object()
	if obj == nil {
		return nil
	}
	return b.prog.objs[obj]
}
