package graph

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"sagraph/strtable"
)

// ExportOptions configures the one-way text exports.
type ExportOptions struct {
	// Separator is the CSV field separator. Zero means ','.
	Separator rune
	// DecimalMark replaces '.' in every exported float. Zero means '.'.
	DecimalMark rune
	// NodeColumns lists the attribute columns of the nodes CSV. A column is
	// either "Name", matching attributes with an empty context, or
	// "Name@context". Empty means every non-composite attribute found.
	NodeColumns []string
	// NodeTypes restricts both exports to these node types. Empty means all.
	NodeTypes []string
}

func (o ExportOptions) separator() rune {
	if o.Separator == 0 {
		return ','
	}
	return o.Separator
}

// FormatFloat renders v the way every export does, with mark as the decimal
// separator.
func FormatFloat(v float32, mark rune) string {
	s := strconv.FormatFloat(float64(v), 'f', -1, 32)
	if mark == 0 || mark == '.' {
		return s
	}
	return strings.Replace(s, ".", string(mark), 1)
}

// exportNodes yields the nodes selected by the graph filter and opts.
func exportNodes(g *Graph, opts ExportOptions) []*Node {
	var out []*Node
	for n := range g.Nodes() {
		if len(opts.NodeTypes) > 0 && !slices.Contains(opts.NodeTypes, n.TypeName()) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// scalarText renders a non-composite attribute value.
func scalarText(g *Graph, a Attribute, mark rune) string {
	switch a := a.(type) {
	case *IntAttribute:
		return strconv.FormatInt(int64(a.Value), 10)
	case *FloatAttribute:
		return FormatFloat(a.Value, mark)
	case *StringAttribute:
		return g.strs.Get(a.Value)
	case *CompositeAttribute:
		return ""
	}
	return ""
}

type xmlInfo struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlAttr struct {
	Name    string    `xml:"name,attr"`
	Type    string    `xml:"type,attr"`
	Context string    `xml:"context,attr,omitempty"`
	Value   string    `xml:"value,attr,omitempty"`
	Attrs   []xmlAttr `xml:"attribute"`
}

type xmlEdge struct {
	To        string    `xml:"to,attr"`
	Type      string    `xml:"type,attr"`
	Direction string    `xml:"direction,attr"`
	Attrs     []xmlAttr `xml:"attribute"`
}

type xmlNode struct {
	XMLName xml.Name  `xml:"node"`
	ID      string    `xml:"id,attr"`
	Type    string    `xml:"type,attr"`
	Attrs   []xmlAttr `xml:"attribute"`
	Edges   []xmlEdge `xml:"edge"`
}

func toXMLAttrs(g *Graph, l *AttributeList, mark rune) []xmlAttr {
	out := make([]xmlAttr, 0, len(l.items))
	for _, a := range l.items {
		x := xmlAttr{
			Name:    g.strs.Get(a.Name()),
			Type:    a.Kind().String(),
			Context: g.strs.Get(a.Context()),
		}
		if c, ok := a.(*CompositeAttribute); ok {
			x.Attrs = toXMLAttrs(g, &c.Attrs, mark)
		} else {
			x.Value = scalarText(g, a, mark)
		}
		out = append(out, x)
	}
	return out
}

// ExportXML writes g as <graph><header/><data/></graph>. Each node carries
// its attributes and its outgoing edges whose target is exported too.
// Nodes are streamed one at a time.
func ExportXML(w io.Writer, g *Graph, opts ExportOptions) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "graph"}}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	hdr := struct {
		XMLName xml.Name  `xml:"header"`
		Info    []xmlInfo `xml:"info"`
	}{}
	for _, k := range g.HeaderKeys() {
		hdr.Info = append(hdr.Info, xmlInfo{Name: k, Value: g.header[k]})
	}
	if err := enc.Encode(hdr); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	nodes := exportNodes(g, opts)
	selected := make(map[*Node]bool, len(nodes))
	for _, n := range nodes {
		selected[n] = true
	}

	data := xml.StartElement{Name: xml.Name{Local: "data"}}
	if err := enc.EncodeToken(data); err != nil {
		return err
	}
	for _, n := range nodes {
		xn := xmlNode{
			ID:    n.uid.String(),
			Type:  n.TypeName(),
			Attrs: toXMLAttrs(g, &n.attrs, opts.DecimalMark),
		}
		for _, e := range n.out {
			if e.deleted || e.from != n || !selected[e.to] {
				continue
			}
			xn.Edges = append(xn.Edges, xmlEdge{
				To:        e.to.uid.String(),
				Type:      g.strs.Get(e.typ.Name),
				Direction: e.typ.Dir.String(),
				Attrs:     toXMLAttrs(g, &e.attrs, opts.DecimalMark),
			})
		}
		if err := enc.Encode(xn); err != nil {
			return fmt.Errorf("encode node %s: %w", n.uid, err)
		}
	}
	if err := enc.EncodeToken(data.End()); err != nil {
		return err
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	return enc.Flush()
}

type column struct {
	title   string
	name    string
	context string
}

func parseColumn(s string) column {
	name, ctx, _ := strings.Cut(s, "@")
	return column{title: s, name: name, context: ctx}
}

// discoverColumns lists every scalar attribute (name, context) pair in
// discovery order.
func discoverColumns(g *Graph, nodes []*Node) []column {
	var cols []column
	seen := make(map[[2]string]bool)
	for _, n := range nodes {
		for _, a := range n.attrs.items {
			if a.Kind() == KindComposite {
				continue
			}
			c := column{name: g.strs.Get(a.Name()), context: g.strs.Get(a.Context())}
			key := [2]string{c.name, c.context}
			if seen[key] {
				continue
			}
			seen[key] = true
			c.title = c.name
			if c.context != "" {
				c.title += "@" + c.context
			}
			cols = append(cols, c)
		}
	}
	return cols
}

// cell renders the values of every attribute matching c. Multi-valued
// attributes are joined with '|'.
func (c column) cell(g *Graph, n *Node, mark rune) string {
	name, ok := g.strs.Lookup(c.name)
	if !ok {
		return ""
	}
	ctx := strtable.Empty
	if c.context != "" {
		if ctx, ok = g.strs.Lookup(c.context); !ok {
			return ""
		}
	}
	var vals []string
	for a := range n.attrs.FindByNameContext(name, ctx) {
		if a.Kind() != KindComposite {
			vals = append(vals, scalarText(g, a, mark))
		}
	}
	return strings.Join(vals, "|")
}

// ExportNodesCSV writes one row per exported node: UID, type, then the
// configured attribute columns.
func ExportNodesCSV(w io.Writer, g *Graph, opts ExportOptions) error {
	nodes := exportNodes(g, opts)
	var cols []column
	if len(opts.NodeColumns) > 0 {
		for _, s := range opts.NodeColumns {
			cols = append(cols, parseColumn(s))
		}
	} else {
		cols = discoverColumns(g, nodes)
	}

	cw := csv.NewWriter(w)
	cw.Comma = opts.separator()
	head := []string{"UID", "Type"}
	for _, c := range cols {
		head = append(head, c.title)
	}
	if err := cw.Write(head); err != nil {
		return err
	}
	row := make([]string, len(head))
	for _, n := range nodes {
		row[0] = n.uid.String()
		row[1] = n.TypeName()
		for i, c := range cols {
			row[i+2] = c.cell(g, n, opts.DecimalMark)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write node %s: %w", n.uid, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportEdgesCSV writes one row per live edge between exported nodes.
func ExportEdgesCSV(w io.Writer, g *Graph, opts ExportOptions) error {
	selected := make(map[*Node]bool)
	for _, n := range exportNodes(g, opts) {
		selected[n] = true
	}
	cw := csv.NewWriter(w)
	cw.Comma = opts.separator()
	if err := cw.Write([]string{"From", "To", "Type", "Direction", "Attributes"}); err != nil {
		return err
	}
	for e := range g.Edges() {
		if !selected[e.from] || !selected[e.to] {
			continue
		}
		row := []string{
			e.from.uid.String(),
			e.to.uid.String(),
			g.strs.Get(e.typ.Name),
			e.typ.Dir.String(),
			strconv.Itoa(e.attrs.Len()),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
