package graphsupport

import (
	"go.uber.org/zap"

	"sagraph/graph"
	"sagraph/rul"
	"sagraph/strtable"
)

// Attribute contexts written by this package.
const (
	ContextWarning    = "warning"
	ContextWarningSum = "warningsum"
	ContextCumulative = "cumulative"

	AttrWarningText = "WarningText"
)

// Warning is one finding reported by an external tool.
type Warning struct {
	Path      string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
	RuleID    string
	Text      string
}

// normalized fills the open ends of a warning that only names a line.
func (w Warning) normalized() Warning {
	if w.EndLine < w.Line {
		w.EndLine = w.Line
	}
	if w.EndColumn == 0 {
		w.EndColumn = MaxColumn
	}
	return w
}

// AddWarning attaches w to n as a composite named by the rule id.
func AddWarning(g *graph.Graph, n *graph.Node, w Warning) {
	n.AddAttribute(g.NewComposite(w.RuleID, ContextWarning,
		g.NewString(AttrPath, "", w.Path),
		g.NewInt(AttrLine, "", int32(w.Line)),
		g.NewInt(AttrColumn, "", int32(w.Column)),
		g.NewInt(AttrEndLine, "", int32(w.EndLine)),
		g.NewInt(AttrEndColumn, "", int32(min(w.EndColumn, MaxColumn))),
		g.NewStringTyped(AttrWarningText, "", w.Text, strtable.Temporary),
	))
}

// Warnings returns the rule ids of the warning attributes on n, once per
// placed warning.
func Warnings(g *graph.Graph, n *graph.Node) []string {
	ctx, ok := g.Table().Lookup(ContextWarning)
	if !ok {
		return nil
	}
	return warningRules(n, ctx, g.Table())
}

// PlacementStats counts the outcome of PlaceWarnings.
type PlacementStats struct {
	Placed   int
	Unplaced int
	// Skipped counts warnings of undefined or disabled rules.
	Skipped int
}

// PlaceWarnings attaches each warning to the best matching node of idx.
// Warnings whose rule is unknown or disabled are skipped; rules may be nil
// to accept every id. Misses are logged, never returned.
func PlaceWarnings(g *graph.Graph, idx *RangeIndex, rules rul.RuleSet, ws []Warning) PlacementStats {
	var st PlacementStats
	for _, w := range ws {
		if rules != nil {
			r, ok := rules.Lookup(w.RuleID)
			if !ok || !r.IsDefined() || !r.Enabled {
				st.Skipped++
				continue
			}
		}
		w = w.normalized()
		n, ok := idx.BestMatch(g, w.Path, w.Line, w.Column, w.EndLine, w.EndColumn)
		if !ok {
			st.Unplaced++
			idx.log.Warn("no node for warning",
				zap.String("rule", w.RuleID),
				zap.String("path", w.Path),
				zap.Int("line", w.Line),
			)
			continue
		}
		AddWarning(g, n, w)
		st.Placed++
	}
	idx.log.Info("warnings placed",
		zap.Int("placed", st.Placed),
		zap.Int("unplaced", st.Unplaced),
		zap.Int("skipped", st.Skipped),
	)
	return st
}
