package graph

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/cespare/xxhash/v2"

	"sagraph/internal/binio"
	"sagraph/strtable"
)

const (
	magic   = "SAGRAPH\x00"
	endMark = "END\x00"

	// Version is the binary format version written by Encode. Files of
	// another version are rejected.
	Version uint32 = 1

	maxCount = 1 << 30
)

// Save writes g to path. A failed save leaves the file in an unknown state;
// callers are expected to rerun rather than trust it.
func (g *Graph) Save(path string) error {
	return g.SaveWith(path, strtable.SaveAll)
}

// SaveWith is Save with a string save mode; see EncodeWith.
func (g *Graph) SaveWith(path string, mode strtable.SaveMode) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(f, 1<<16)
	if err := g.EncodeWith(bw, mode); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Load reads a graph written by Save.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	g, err := Decode(bufio.NewReaderSize(f, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return g, nil
}

// Encode writes the binary form of g: magic, version, header, string table,
// nodes, edges, then an end mark and an xxhash64 of everything before it.
func (g *Graph) Encode(out io.Writer) error {
	return g.EncodeWith(out, strtable.SaveAll)
}

// EncodeWith writes g keeping only the strings mode accepts. String
// attributes whose value is dropped are left out, composites keep their
// other children. Names, contexts and types are always written. String
// types are not part of the format; a decoded table is all Default.
func (g *Graph) EncodeWith(out io.Writer, mode strtable.SaveMode) error {
	keepValue := func(strtable.Key) bool { return true }
	if mode != strtable.SaveAll {
		keepValue = func(k strtable.Key) bool { return mode.Keeps(g.strs.Type(k)) }
	}
	used := make(map[strtable.Key]bool)
	var mark func(l *AttributeList)
	mark = func(l *AttributeList) {
		for _, a := range l.items {
			if s, ok := a.(*StringAttribute); ok && !keepValue(s.Value) {
				continue
			}
			used[a.Name()], used[a.Context()] = true, true
			switch a := a.(type) {
			case *StringAttribute:
				used[a.Value] = true
			case *CompositeAttribute:
				mark(&a.Attrs)
			}
		}
	}
	if mode != strtable.SaveAll {
		for n := range g.allNodes() {
			used[n.typ] = true
			mark(&n.attrs)
		}
		for e := range g.Edges() {
			used[e.typ.Name] = true
			mark(&e.attrs)
		}
	}

	d := xxhash.New()
	w := binio.NewWriter(io.MultiWriter(out, d))

	w.Raw([]byte(magic))
	w.U32(Version)

	keys := g.HeaderKeys()
	w.U32(uint32(len(keys)))
	for _, k := range keys {
		w.String(k)
		w.String(g.header[k])
	}

	g.strs.EncodeFunc(w, func(k strtable.Key, typ strtable.StrType) bool {
		return mode.Keeps(typ) || used[k]
	})

	w.U32(uint32(g.liveNodes))
	for n := range g.allNodes() {
		writeUID(w, n.uid)
		w.U32(uint32(n.typ))
		writeAttrs(w, &n.attrs, keepValue)
	}

	w.U32(uint32(g.liveEdges))
	for e := range g.Edges() {
		writeUID(w, e.from.uid)
		writeUID(w, e.to.uid)
		w.U32(uint32(e.typ.Name))
		w.U8(uint8(e.typ.Dir))
		writeAttrs(w, &e.attrs, keepValue)
	}

	w.Raw([]byte(endMark))
	if err := w.Err(); err != nil {
		return err
	}
	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], d.Sum64())
	_, err := out.Write(sum[:])
	return err
}

func writeUID(w *binio.Writer, u UID) {
	w.U8(u.Tag)
	w.U64(u.Num)
}

func writeAttrs(w *binio.Writer, l *AttributeList, keepValue func(strtable.Key) bool) {
	kept := l.items
	if slices.ContainsFunc(l.items, func(a Attribute) bool { return dropped(a, keepValue) }) {
		kept = slices.DeleteFunc(slices.Clone(l.items), func(a Attribute) bool { return dropped(a, keepValue) })
	}
	w.U32(uint32(len(kept)))
	for _, a := range kept {
		w.U8(uint8(a.Kind()))
		w.U32(uint32(a.Name()))
		w.U32(uint32(a.Context()))
		switch a := a.(type) {
		case *IntAttribute:
			w.I32(a.Value)
		case *FloatAttribute:
			w.F32(a.Value)
		case *StringAttribute:
			w.U32(uint32(a.Value))
		case *CompositeAttribute:
			writeAttrs(w, &a.Attrs, keepValue)
		}
	}
}

func dropped(a Attribute, keepValue func(strtable.Key) bool) bool {
	s, ok := a.(*StringAttribute)
	return ok && !keepValue(s.Value)
}

// Decode reads the binary form written by Encode. Any malformed, truncated
// or mismatching input yields an error wrapping ErrFormat and no graph.
func Decode(in io.Reader) (*Graph, error) {
	d := xxhash.New()
	r := binio.NewReader(io.TeeReader(in, d))

	if m := r.Raw(len(magic)); r.Err() != nil || !bytes.Equal(m, []byte(magic)) {
		return nil, formatErr("bad magic", r.Err())
	}
	if v := r.U32(); r.Err() != nil || v != Version {
		return nil, formatErr(fmt.Sprintf("unsupported version %d", v), r.Err())
	}

	g := New()
	nh := r.U32()
	if nh > maxCount {
		return nil, formatErr("header count", nil)
	}
	for i := uint32(0); i < nh && r.Err() == nil; i++ {
		k := r.String()
		g.header[k] = r.String()
	}

	if err := g.strs.Decode(r); err != nil {
		return nil, formatErr("string table", err)
	}

	dec := decoder{r: r, g: g}
	nn := r.U32()
	if nn > maxCount {
		return nil, formatErr("node count", nil)
	}
	for i := uint32(0); i < nn && r.Err() == nil; i++ {
		uid := dec.uid()
		typ := dec.key()
		if r.Err() != nil {
			break
		}
		if !isTag(uid.Tag) {
			return nil, formatErr(fmt.Sprintf("node %d has tag %#x", i, uid.Tag), nil)
		}
		if _, dup := g.nodes[uid]; dup {
			return nil, formatErr(fmt.Sprintf("duplicate node %s", uid), nil)
		}
		n := g.insert(uid, typ)
		if uid.Num > g.counters[uid.Tag] {
			g.counters[uid.Tag] = uid.Num
		}
		dec.attrs(&n.attrs, 0)
	}

	ne := r.U32()
	if ne > maxCount {
		return nil, formatErr("edge count", nil)
	}
	for i := uint32(0); i < ne && r.Err() == nil; i++ {
		from := g.nodes[dec.uid()]
		to := g.nodes[dec.uid()]
		et := EdgeType{Name: dec.key(), Dir: Direction(r.U8())}
		if r.Err() != nil {
			break
		}
		if from == nil || to == nil {
			return nil, formatErr(fmt.Sprintf("edge %d references unknown node", i), nil)
		}
		if et.Dir < Directional || et.Dir > Bidirectional {
			return nil, formatErr(fmt.Sprintf("edge %d has direction %d", i, et.Dir), nil)
		}
		e := g.AddEdge(from, to, et)
		dec.attrs(&e.attrs, 0)
	}

	if m := r.Raw(len(endMark)); r.Err() == nil && !bytes.Equal(m, []byte(endMark)) {
		return nil, formatErr("missing end mark", nil)
	}
	if err := r.Err(); err != nil {
		return nil, formatErr("truncated", err)
	}
	want := d.Sum64()
	var sum [8]byte
	if _, err := io.ReadFull(in, sum[:]); err != nil {
		return nil, formatErr("missing checksum", err)
	}
	if binary.LittleEndian.Uint64(sum[:]) != want {
		return nil, formatErr("checksum mismatch", nil)
	}
	return g, nil
}

func formatErr(what string, cause error) error {
	if cause == nil || errors.Is(cause, ErrFormat) {
		return fmt.Errorf("%w: %s", ErrFormat, what)
	}
	return fmt.Errorf("%w: %s: %v", ErrFormat, what, cause)
}

type decoder struct {
	r *binio.Reader
	g *Graph
}

func (d *decoder) uid() UID {
	return UID{Tag: d.r.U8(), Num: d.r.U64()}
}

// key reads a string key and checks that the table knows it.
func (d *decoder) key() strtable.Key {
	k := strtable.Key(d.r.U32())
	if d.r.Err() == nil && k != strtable.Empty && !d.g.strs.Has(k) {
		d.r.Fail(fmt.Errorf("unknown string key %#x", uint32(k)))
	}
	return k
}

const maxDepth = 64

func (d *decoder) attrs(l *AttributeList, depth int) {
	if depth > maxDepth {
		d.r.Fail(errors.New("attribute nesting too deep"))
		return
	}
	n := d.r.U32()
	if n > maxCount {
		d.r.Fail(errors.New("attribute count"))
		return
	}
	for i := uint32(0); i < n && d.r.Err() == nil; i++ {
		kind := Kind(d.r.U8())
		h := attrHeader{name: d.key(), context: d.key()}
		switch kind {
		case KindInt:
			l.Add(&IntAttribute{attrHeader: h, Value: d.r.I32()})
		case KindFloat:
			l.Add(&FloatAttribute{attrHeader: h, Value: d.r.F32()})
		case KindString:
			l.Add(&StringAttribute{attrHeader: h, Value: d.key()})
		case KindComposite:
			c := &CompositeAttribute{attrHeader: h}
			d.attrs(&c.Attrs, depth+1)
			l.Add(c)
		default:
			d.r.Fail(fmt.Errorf("unknown attribute kind %d", kind))
		}
	}
}
