package goasg

import "sagraph/asg"

// Entity kinds produced by Load.
const (
	KindModule    = "Module"
	KindPackage   = "Package"
	KindFile      = "File"
	KindType      = "Type"
	KindInterface = "Interface"
	KindFunction  = "Function"
	KindMethod    = "Method"
)

// Relation kinds produced by Load.
const (
	RelCalls      = "Calls"
	RelImplements = "Implements"
	RelEmbeds     = "Embeds"
	RelAliasOf    = "AliasOf"
	RelHasMethod  = "HasMethod"
	RelImports    = "Imports"
)

// Metric names.
const (
	MetricLOC        = "LOC"
	MetricMcCC       = "McCC"
	MetricNumPar     = "NUMPAR"
	MetricFanIn      = "FANIN"
	MetricFanOut     = "FANOUT"
	MetricCommits    = "COMMITS"
	MetricAuthors    = "AUTHORS"
	MetricInsertions = "INSERTIONS"
	MetricDeletions  = "DELETIONS"
)

// Decl is one declaration of a loaded Go program. It implements asg.Entity.
type Decl struct {
	name     string
	mangled  string
	kind     string
	pos      []asg.Position
	parent   *Decl
	children []*Decl
	metrics  map[string]float64
	rels     []asg.Relation
}

func (d *Decl) MangledName() string         { return d.mangled }
func (d *Decl) Name() string                { return d.name }
func (d *Decl) Kind() string                { return d.kind }
func (d *Decl) Positions() []asg.Position   { return d.pos }
func (d *Decl) Metrics() map[string]float64 { return d.metrics }

func (d *Decl) Parent() asg.Entity {
	if d.parent == nil {
		return nil
	}
	return d.parent
}

func (d *Decl) Children() []asg.Entity {
	out := make([]asg.Entity, len(d.children))
	for i, c := range d.children {
		out[i] = c
	}
	return out
}

// Relations is non-empty only on the module root.
func (d *Decl) Relations() []asg.Relation { return d.rels }

// Metric returns a metric value and whether it is set.
func (d *Decl) Metric(name string) (float64, bool) {
	v, ok := d.metrics[name]
	return v, ok
}

func (d *Decl) setMetric(name string, v float64) {
	if d.metrics == nil {
		d.metrics = make(map[string]float64)
	}
	d.metrics[name] = v
}

func (d *Decl) add(c *Decl) *Decl {
	c.parent = d
	d.children = append(d.children, c)
	return c
}
