package graphsupport

import (
	"sagraph/graph"
	"sagraph/rul"
	"sagraph/strtable"
)

// Names of the per-priority warning counters.
var priorityAttr = map[string]string{
	rul.Blocker:  "WarningBlocker",
	rul.Critical: "WarningCritical",
	rul.Major:    "WarningMajor",
	rul.Minor:    "WarningMinor",
	rul.Info:     "WarningInfo",
}

// PriorityAttribute returns the counter name for a rule priority.
func PriorityAttribute(priority string) string { return priorityAttr[priority] }

// warningRules returns the rule ids of the placed warnings on n.
func warningRules(n *graph.Node, warnCtx strtable.Key, strs *strtable.Table) []string {
	var ids []string
	for a := range n.Attributes().All() {
		if a.Context() == warnCtx && a.Kind() == graph.KindComposite {
			ids = append(ids, strs.Get(a.Name()))
		}
	}
	return ids
}

func removeSums(n *graph.Node, sumCtx strtable.Key, names map[strtable.Key]bool) {
	n.Attributes().Remove(func(a graph.Attribute) bool {
		return a.Context() == sumCtx && names[a.Name()]
	})
}

// SummarizeWarningsByPriority counts the placed warnings of each node by the
// priority of their rule and writes the five Warning<Priority> ints in the
// warningsum context on every node with at least one counted warning.
// Warnings of rules unknown to rules are not counted. Earlier counters are
// replaced.
func SummarizeWarningsByPriority(g *graph.Graph, rules rul.RuleSet) {
	strs := g.Table()
	warnCtx := strs.Set(ContextWarning)
	sumCtx := strs.Set(ContextWarningSum)
	names := make(map[strtable.Key]bool, len(priorityAttr))
	for _, name := range priorityAttr {
		names[strs.Set(name)] = true
	}

	for n := range g.Nodes() {
		removeSums(n, sumCtx, names)
		counts := make(map[string]int32, len(rul.Priorities))
		found := false
		for _, id := range warningRules(n, warnCtx, strs) {
			r, ok := rules.Lookup(id)
			if !ok || !r.IsDefined() {
				continue
			}
			counts[r.Priority()]++
			found = true
		}
		if !found {
			continue
		}
		for _, p := range rul.Priorities {
			n.AddAttribute(g.NewInt(priorityAttr[p], ContextWarningSum, counts[p]))
		}
	}
}

// CreateGroupMetrics writes, for every enabled rule of group type
// "summarized", an int named by the group id counting the warnings of its
// member rules. It is written in the warningsum context on nodes whose type
// the group is calculated for and that carry at least one member warning.
func CreateGroupMetrics(g *graph.Graph, rules rul.RuleSet) {
	strs := g.Table()
	warnCtx := strs.Set(ContextWarning)
	sumCtx := strs.Set(ContextWarningSum)

	var groups []rul.Rule
	names := make(map[strtable.Key]bool)
	for _, r := range rules.Rules() {
		if r.IsDefined() && r.Enabled && r.GroupType == rul.GroupSummarized {
			groups = append(groups, r)
			names[strs.Set(r.ID)] = true
		}
	}
	if len(groups) == 0 {
		return
	}

	for n := range g.Nodes() {
		removeSums(n, sumCtx, names)
		ids := warningRules(n, warnCtx, strs)
		if len(ids) == 0 {
			continue
		}
		typ := n.TypeName()
		for _, grp := range groups {
			if !grp.CalculatedForType(typ) {
				continue
			}
			var count int32
			for _, id := range ids {
				if r, ok := rules.Lookup(id); ok && r.InGroup(grp.ID) {
					count++
				}
			}
			if count > 0 {
				n.AddAttribute(g.NewInt(grp.ID, ContextWarningSum, count))
			}
		}
	}
}
