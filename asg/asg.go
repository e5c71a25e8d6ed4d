// Package asg describes the abstract semantic graph a language front-end
// hands to sagraph, and copies it into a property graph.
//
// A front-end exposes its program as a forest of Entity values. Populate
// walks that forest once, creating one node per entity, "Contains" edges
// from every parent to its children and one edge per Relation.
package asg

import (
	"errors"
	"fmt"
	"math"
	"slices"

	ignore "github.com/sabhiram/go-gitignore"
	"go.uber.org/zap"

	"sagraph/graph"
	"sagraph/graphsupport"
)

// Position is a source range of an entity. Lines and columns are 1-based;
// a zero Column or EndColumn means "whole line".
type Position struct {
	Path      string
	Line      int
	Column    int
	EndLine   int
	EndColumn int
}

// Entity is one element of a program: a package, file, type, function.
type Entity interface {
	// MangledName identifies the entity uniquely within its program.
	MangledName() string
	// Name is the short display name.
	Name() string
	// Kind becomes the node type.
	Kind() string
	Positions() []Position
	Parent() Entity
	Children() []Entity
	// Metrics are copied to the node as Int attributes when integral,
	// Float otherwise.
	Metrics() map[string]float64
}

// Relation is a typed, directed link between two entities that is not
// containment, such as a call.
type Relation struct {
	From, To Entity
	Kind     string
}

// Relations is implemented by front-ends that know non-containment links.
type Relations interface {
	Relations() []Relation
}

// Edge and attribute names written by Populate.
const (
	EdgeContains = "Contains"
	AttrName     = "Name"
)

// ErrDuplicate is returned when two entities share a mangled name.
var ErrDuplicate = errors.New("duplicate mangled name")

// Find returns the entity named mangled in the tree under root, or nil.
func Find(root Entity, mangled string) Entity {
	if root == nil {
		return nil
	}
	stack := []Entity{root}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.MangledName() == mangled {
			return e
		}
		kids := e.Children()
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return nil
}

// Options controls Populate.
type Options struct {
	// Exclude holds gitignore-style patterns. An entity whose position
	// path matches is skipped along with everything below it.
	Exclude []string
	// Tag of the node UIDs; defaults to 'L'.
	Tag    byte
	Logger *zap.Logger
}

// ExcludeMatcher reports whether a path matches one of the gitignore-style
// patterns. No patterns match nothing.
func ExcludeMatcher(patterns []string) func(path string) bool {
	if len(patterns) == 0 {
		return func(string) bool { return false }
	}
	gi := ignore.CompileIgnoreLines(patterns...)
	return gi.MatchesPath
}

// Mapping connects the mangled names of populated entities to node UIDs.
type Mapping struct {
	byName map[string]graph.UID
	byUID  map[graph.UID]string
}

func newMapping() *Mapping {
	return &Mapping{
		byName: make(map[string]graph.UID),
		byUID:  make(map[graph.UID]string),
	}
}

// UID returns the node created for the entity with the mangled name.
func (m *Mapping) UID(mangled string) (graph.UID, bool) {
	u, ok := m.byName[mangled]
	return u, ok
}

// Name returns the mangled name of the entity behind uid.
func (m *Mapping) Name(uid graph.UID) (string, bool) {
	s, ok := m.byUID[uid]
	return s, ok
}

func (m *Mapping) Len() int { return len(m.byName) }

type populator struct {
	g       *graph.Graph
	tag     byte
	log     *zap.Logger
	exclude *ignore.GitIgnore
	m       *Mapping
	nodes   map[Entity]*graph.Node
	skipped int
}

// Populate copies the entity trees under roots into g. Roots implementing
// Relations also contribute their relations; relations touching a skipped
// entity are dropped.
func Populate(g *graph.Graph, roots []Entity, opts Options) (*Mapping, error) {
	p := &populator{
		g:     g,
		tag:   opts.Tag,
		log:   opts.Logger,
		m:     newMapping(),
		nodes: make(map[Entity]*graph.Node),
	}
	if p.tag == 0 {
		p.tag = 'L'
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if len(opts.Exclude) > 0 {
		p.exclude = ignore.CompileIgnoreLines(opts.Exclude...)
	}

	for _, root := range roots {
		if err := p.tree(root); err != nil {
			return nil, err
		}
	}

	var relations, dropped int
	for _, root := range roots {
		rs, ok := root.(Relations)
		if !ok {
			continue
		}
		for _, r := range rs.Relations() {
			from, to := p.nodes[r.From], p.nodes[r.To]
			if from == nil || to == nil {
				dropped++
				continue
			}
			g.AddDirectedEdge(from, to, r.Kind, false)
			relations++
		}
	}

	p.log.Info("populated graph",
		zap.Int("nodes", p.m.Len()),
		zap.Int("relations", relations),
		zap.Int("excluded", p.skipped),
		zap.Int("dropped_relations", dropped))
	return p.m, nil
}

func (p *populator) excluded(e Entity) bool {
	if p.exclude == nil {
		return false
	}
	for _, pos := range e.Positions() {
		if pos.Path != "" && p.exclude.MatchesPath(pos.Path) {
			return true
		}
	}
	return false
}

// tree creates the nodes of the subtree under root in pre-order, so parents
// always have smaller UIDs than their children.
func (p *populator) tree(root Entity) error {
	type item struct {
		e      Entity
		parent *graph.Node
	}
	stack := []item{{e: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.excluded(it.e) {
			p.skipped++
			p.log.Debug("excluded entity", zap.String("entity", it.e.MangledName()))
			continue
		}
		n, err := p.node(it.e)
		if err != nil {
			return err
		}
		if it.parent != nil {
			p.g.AddDirectedEdge(it.parent, n, EdgeContains, true)
		}
		kids := it.e.Children()
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, item{e: kids[i], parent: n})
		}
	}
	return nil
}

func (p *populator) node(e Entity) (*graph.Node, error) {
	name := e.MangledName()
	if _, dup := p.m.byName[name]; dup {
		return nil, fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	g := p.g
	n := g.CreateNodeTagged(p.tag, e.Kind())
	p.m.byName[name] = n.UID()
	p.m.byUID[n.UID()] = name
	p.nodes[e] = n

	n.AddAttribute(g.NewString(AttrName, "", e.Name()))
	for _, pos := range e.Positions() {
		n.AddAttribute(PositionAttribute(g, pos))
	}
	metrics := e.Metrics()
	names := make([]string, 0, len(metrics))
	for k := range metrics {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, k := range names {
		n.AddAttribute(MetricAttribute(g, k, metrics[k]))
	}
	return n, nil
}

// PositionAttribute builds the Position composite the range index reads.
// Zero Column, EndLine and EndColumn are left out so the index falls back
// to whole lines.
func PositionAttribute(g *graph.Graph, pos Position) *graph.CompositeAttribute {
	kids := []graph.Attribute{
		g.NewString(graphsupport.AttrPath, "", pos.Path),
		g.NewInt(graphsupport.AttrLine, "", int32(pos.Line)),
	}
	if pos.Column > 0 {
		kids = append(kids, g.NewInt(graphsupport.AttrColumn, "", int32(pos.Column)))
	}
	if pos.EndLine > 0 {
		kids = append(kids, g.NewInt(graphsupport.AttrEndLine, "", int32(pos.EndLine)))
	}
	if pos.EndColumn > 0 {
		kids = append(kids, g.NewInt(graphsupport.AttrEndColumn, "", int32(pos.EndColumn)))
	}
	return g.NewComposite(graphsupport.AttrPosition, "", kids...)
}

// MetricAttribute stores v as an Int when it is integral and fits,
// otherwise as a Float.
func MetricAttribute(g *graph.Graph, name string, v float64) graph.Attribute {
	if v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32 {
		return g.NewInt(name, "", int32(v))
	}
	return g.NewFloat(name, "", float32(v))
}
