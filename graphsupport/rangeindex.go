// Package graphsupport holds the algorithms that run over a populated graph:
// the source range index used to place warnings, warning records and the
// metric roll-ups.
//
// A build runs Populated, Indexed, WarningsPlaced, Aggregated, then
// Persisted. Nothing enforces that order; in particular a RangeIndex does
// not notice graph mutations and must be rebuilt with TurnOn after any.
package graphsupport

import (
	"cmp"
	"math"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"sagraph/graph"
)

// Column bounds for queries that only care about lines.
const (
	MinColumn = 0
	MaxColumn = math.MaxInt32
)

// Position attribute layout.
const (
	AttrPosition  = "Position"
	AttrPath      = "Path"
	AttrLine      = "Line"
	AttrColumn    = "Column"
	AttrEndLine   = "EndLine"
	AttrEndColumn = "EndColumn"
)

type point struct {
	line, col int32
}

func (p point) compare(o point) int {
	if c := cmp.Compare(p.line, o.line); c != 0 {
		return c
	}
	return cmp.Compare(p.col, o.col)
}

func maxPoint(a, b point) point {
	if a.compare(b) >= 0 {
		return a
	}
	return b
}

type entry struct {
	node       *graph.Node
	start, end point
	seq        int // discovery order
}

// fileIndex is an implicit augmented interval tree: entries sorted by start,
// the root of [lo,hi) at its midpoint, and maxEnd[i] the largest end in the
// subtree rooted at i.
type fileIndex struct {
	entries []entry
	maxEnd  []point
}

func (f *fileIndex) build() {
	slices.SortStableFunc(f.entries, func(a, b entry) int {
		if c := a.start.compare(b.start); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	f.maxEnd = make([]point, len(f.entries))
	f.augment(0, len(f.entries))
}

func (f *fileIndex) augment(lo, hi int) point {
	mid := (lo + hi) / 2
	m := f.entries[mid].end
	if lo < mid {
		m = maxPoint(m, f.augment(lo, mid))
	}
	if mid+1 < hi {
		m = maxPoint(m, f.augment(mid+1, hi))
	}
	f.maxEnd[mid] = m
	return m
}

func (f *fileIndex) overlapping(qs, qe point, out []entry) []entry {
	if len(f.entries) == 0 {
		return out
	}
	return f.query(0, len(f.entries), qs, qe, out)
}

func (f *fileIndex) query(lo, hi int, qs, qe point, out []entry) []entry {
	mid := (lo + hi) / 2
	if f.maxEnd[mid].compare(qs) < 0 {
		return out
	}
	if lo < mid {
		out = f.query(lo, mid, qs, qe, out)
	}
	e := f.entries[mid]
	if e.start.compare(qe) > 0 {
		// everything right of mid starts later still
		return out
	}
	if e.end.compare(qs) >= 0 {
		out = append(out, e)
	}
	if mid+1 < hi {
		out = f.query(mid+1, hi, qs, qe, out)
	}
	return out
}

// Option configures a RangeIndex.
type Option func(*RangeIndex)

// WithLogger routes index diagnostics to log.
func WithLogger(log *zap.Logger) Option {
	return func(idx *RangeIndex) {
		if log != nil {
			idx.log = log
		}
	}
}

// WithPathNormalizer replaces the default normaliser, which cleans the
// path and converts it to forward slashes.
func WithPathNormalizer(fn func(string) string) Option {
	return func(idx *RangeIndex) { idx.normalize = fn }
}

// NormalizePath is the default path normaliser.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(filepath.ToSlash(p))
}

// RangeIndex answers which nodes cover a source range. It is a disposable
// cache over the nodes present at the last TurnOn and holds no ownership of
// them.
type RangeIndex struct {
	log       *zap.Logger
	normalize func(string) string

	g       *graph.Graph
	files   map[string]*fileIndex
	entries int

	suffixes map[string][]string
	resolved map[string]string
}

// NewRangeIndex returns an index that is off until TurnOn.
func NewRangeIndex(opts ...Option) *RangeIndex {
	idx := &RangeIndex{log: zap.NewNop(), normalize: NormalizePath}
	for _, o := range opts {
		o(idx)
	}
	return idx
}

// On reports whether the index has been built.
func (idx *RangeIndex) On() bool { return idx.files != nil }

// Files returns the number of indexed paths.
func (idx *RangeIndex) Files() int { return len(idx.files) }

// Len returns the number of indexed positions.
func (idx *RangeIndex) Len() int { return idx.entries }

// TurnOn rebuilds the index from every Position attribute of every visible
// node of g. A node with several positions is indexed once per position.
func (idx *RangeIndex) TurnOn(g *graph.Graph) {
	idx.g = g
	idx.files = make(map[string]*fileIndex)
	idx.entries = 0
	idx.suffixes = nil
	idx.resolved = nil

	posKey, ok := g.Table().Lookup(AttrPosition)
	skipped := 0
	seq := 0
	if ok {
		for n := range g.Nodes() {
			for a := range n.Attributes().FindByName(posKey) {
				c, isComposite := a.(*graph.CompositeAttribute)
				if !isComposite {
					skipped++
					continue
				}
				p, start, end, valid := readPosition(g, &c.Attrs)
				if !valid {
					skipped++
					continue
				}
				p = idx.normalize(p)
				fi := idx.files[p]
				if fi == nil {
					fi = &fileIndex{}
					idx.files[p] = fi
				}
				fi.entries = append(fi.entries, entry{node: n, start: start, end: end, seq: seq})
				seq++
				idx.entries++
			}
		}
	}
	for _, fi := range idx.files {
		fi.build()
	}
	idx.log.Info("range index built",
		zap.Int("files", len(idx.files)),
		zap.Int("positions", idx.entries),
		zap.Int("skipped", skipped),
	)
}

// TurnOff drops the index. Queries return nothing until the next TurnOn.
func (idx *RangeIndex) TurnOff() {
	idx.g = nil
	idx.files = nil
	idx.entries = 0
	idx.suffixes = nil
	idx.resolved = nil
}

func intChild(g *graph.Graph, l *graph.AttributeList, name string) (int32, bool) {
	k, ok := g.Table().Lookup(name)
	if !ok {
		return 0, false
	}
	if a, ok := l.First(k).(*graph.IntAttribute); ok {
		return a.Value, true
	}
	return 0, false
}

// readPosition decodes a Position composite. Line is required; EndLine
// defaults to Line and missing columns span the whole line.
func readPosition(g *graph.Graph, l *graph.AttributeList) (p string, start, end point, ok bool) {
	pk, found := g.Table().Lookup(AttrPath)
	if !found {
		return "", start, end, false
	}
	ps, isString := l.First(pk).(*graph.StringAttribute)
	if !isString {
		return "", start, end, false
	}
	line, found := intChild(g, l, AttrLine)
	if !found {
		return "", start, end, false
	}
	endLine, found := intChild(g, l, AttrEndLine)
	if !found {
		endLine = line
	}
	col, found := intChild(g, l, AttrColumn)
	if !found {
		col = MinColumn
	}
	endCol, found := intChild(g, l, AttrEndColumn)
	if !found {
		endCol = MaxColumn
	}
	start = point{line, col}
	end = point{endLine, endCol}
	if end.compare(start) < 0 {
		return "", start, end, false
	}
	return g.StringValue(ps), start, end, true
}

// ResolvePath maps a query path to an indexed path. An exact match wins.
// Otherwise the query is either a trailing run of segments of exactly one
// indexed path, or it ends with an indexed path, the longest one winning.
// Sharing only a base name is not a match. Results are memoised until the
// next TurnOn.
func (idx *RangeIndex) ResolvePath(p string) (string, bool) {
	if idx.files == nil {
		return "", false
	}
	p = idx.normalize(p)
	if _, ok := idx.files[p]; ok {
		return p, true
	}
	if r, ok := idx.resolved[p]; ok {
		return r, r != ""
	}
	if idx.suffixes == nil {
		idx.buildSuffixes()
	}
	r := ""
	q := strings.TrimPrefix(p, "/")
	switch cands := idx.suffixes[q]; {
	case len(cands) == 1:
		r = cands[0]
	case len(cands) > 1:
		idx.log.Debug("ambiguous path", zap.String("path", p), zap.Strings("candidates", cands))
	default:
		// the query may carry a longer root than the indexed paths
		for q = dropFirstSegment(q); q != ""; q = dropFirstSegment(q) {
			if _, ok := idx.files[q]; ok {
				r = q
				break
			}
		}
	}
	idx.resolved[p] = r
	return r, r != ""
}

func dropFirstSegment(p string) string {
	_, rest, ok := strings.Cut(p, "/")
	if !ok {
		return ""
	}
	return rest
}

func (idx *RangeIndex) buildSuffixes() {
	idx.suffixes = make(map[string][]string)
	idx.resolved = make(map[string]string)
	paths := make([]string, 0, len(idx.files))
	for p := range idx.files {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	for _, full := range paths {
		for q := strings.TrimPrefix(full, "/"); q != ""; q = dropFirstSegment(q) {
			idx.suffixes[q] = append(idx.suffixes[q], full)
		}
	}
}

// Range is a lexicographic (line, column) source range, inclusive.
type Range struct {
	Line, Column, EndLine, EndColumn int
}

func clamp(v int) int32 {
	return int32(min(max(v, math.MinInt32), math.MaxInt32))
}

func (r Range) points() (point, point) {
	return point{clamp(r.Line), clamp(r.Column)}, point{clamp(r.EndLine), clamp(r.EndColumn)}
}

// hits returns every overlapping entry in discovery order.
func (idx *RangeIndex) hits(g *graph.Graph, p string, r Range) []entry {
	if idx.files == nil || g != idx.g {
		idx.log.Warn("range index queried before TurnOn for this graph", zap.String("path", p))
		return nil
	}
	resolved, ok := idx.ResolvePath(p)
	if !ok {
		return nil
	}
	qs, qe := r.points()
	if qe.compare(qs) < 0 {
		return nil
	}
	out := idx.files[resolved].overlapping(qs, qe, nil)
	slices.SortFunc(out, func(a, b entry) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// FindNodesByRange returns every node with a position in path overlapping
// [line:col, endLine:endCol], each once, in discovery order. No match is a
// normal outcome and yields nil.
func (idx *RangeIndex) FindNodesByRange(g *graph.Graph, path string, line, col, endLine, endCol int) []*graph.Node {
	hs := idx.hits(g, path, Range{line, col, endLine, endCol})
	var out []*graph.Node
	seen := make(map[*graph.Node]bool, len(hs))
	for _, h := range hs {
		if !h.node.Valid() || seen[h.node] {
			continue
		}
		seen[h.node] = true
		out = append(out, h.node)
	}
	return out
}

// BestMatch picks among the overlapping positions the one minimising
// |line-nodeLine| + |endLine-nodeEndLine|. On a tie the position discovered
// first wins, so repeated queries always agree.
func (idx *RangeIndex) BestMatch(g *graph.Graph, path string, line, col, endLine, endCol int) (*graph.Node, bool) {
	var best *graph.Node
	bestScore := int64(math.MaxInt64)
	for _, h := range idx.hits(g, path, Range{line, col, endLine, endCol}) {
		if !h.node.Valid() {
			continue
		}
		score := abs64(int64(line)-int64(h.start.line)) + abs64(int64(endLine)-int64(h.end.line))
		if score < bestScore {
			best, bestScore = h.node, score
		}
	}
	return best, best != nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
