// Package sqlitedb exports a property graph to a SQLite database for ad-hoc
// SQL and the read-only browser.
package sqlitedb

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"sagraph/graph"
	"sagraph/graphsupport"
	"sagraph/strtable"
)

// Owner kinds of the attributes table.
const (
	OwnerNode = "node"
	OwnerEdge = "edge"
)

const schema = `
CREATE TABLE header (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE nodes (
    uid TEXT PRIMARY KEY,
    type TEXT NOT NULL
);

CREATE TABLE attributes (
    owner TEXT NOT NULL,
    owner_kind TEXT NOT NULL,
    seq INTEGER NOT NULL,
    parent_seq INTEGER,
    name TEXT NOT NULL,
    context TEXT,
    kind TEXT NOT NULL,
    int_value INTEGER,
    real_value REAL,
    text_value TEXT
);

CREATE TABLE edges (
    seq INTEGER PRIMARY KEY,
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    type TEXT NOT NULL,
    direction TEXT NOT NULL
);

CREATE TABLE positions (
    uid TEXT NOT NULL,
    path TEXT NOT NULL,
    line INTEGER NOT NULL,
    col INTEGER,
    end_line INTEGER,
    end_col INTEGER
);
`

const indexes = `
CREATE INDEX idx_nodes_type ON nodes(type);
CREATE INDEX idx_attributes_owner ON attributes(owner_kind, owner);
CREATE INDEX idx_attributes_name ON attributes(name, context);
CREATE INDEX idx_edges_source ON edges(source, type);
CREATE INDEX idx_edges_target ON edges(target, type);
CREATE INDEX idx_positions_path ON positions(path, line);
CREATE INDEX idx_positions_uid ON positions(uid);
`

// Write replaces the database at path with the contents of g. Rows are
// inserted in one immediate transaction; indexes are created afterwards.
func Write(path string, g *graph.Graph, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("writing sqlite", zap.String("path", path))

	_ = os.Remove(path) // ignore if doesn't exist

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = conn.Close() }()

	for _, pragma := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA journal_mode = WAL",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	if err := insertAll(conn, g, log); err != nil {
		return err
	}
	if err := sqlitex.ExecuteScript(conn, indexes, nil); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	if err := validate(conn, log); err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil {
		log.Info("wrote sqlite", zap.String("path", path), zap.String("size", humanize.Bytes(uint64(info.Size()))))
	}
	return nil
}

func insertAll(conn *sqlite.Conn, g *graph.Graph, log *zap.Logger) (err error) {
	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	w, err := newWriter(conn, g)
	if err != nil {
		return err
	}
	defer w.finalize()

	for _, k := range g.HeaderKeys() {
		if err := w.step(w.header, k, g.HeaderInfo(k)); err != nil {
			return fmt.Errorf("insert header %s: %w", k, err)
		}
	}
	var nodes, edges int
	for n := range g.Nodes() {
		if err := w.node(n); err != nil {
			return fmt.Errorf("insert node %s: %w", n.UID(), err)
		}
		nodes++
	}
	for e := range g.Edges() {
		edges++
		if err := w.edge(int64(edges), e); err != nil {
			return fmt.Errorf("insert edge %s->%s: %w", e.From().UID(), e.To().UID(), err)
		}
	}
	log.Info("inserted rows", zap.Int("nodes", nodes), zap.Int("edges", edges), zap.Int("attributes", w.attrs))
	return nil
}

type writer struct {
	g                                   *graph.Graph
	header, nodes, attr, edges, posStmt *sqlite.Stmt
	attrs                               int
}

func newWriter(conn *sqlite.Conn, g *graph.Graph) (*writer, error) {
	w := &writer{g: g}
	for _, p := range []struct {
		stmt **sqlite.Stmt
		sql  string
	}{
		{&w.header, `INSERT INTO header (key, value) VALUES (?, ?)`},
		{&w.nodes, `INSERT INTO nodes (uid, type) VALUES (?, ?)`},
		{&w.attr, `INSERT INTO attributes (owner, owner_kind, seq, parent_seq, name, context, kind, int_value, real_value, text_value) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`},
		{&w.edges, `INSERT INTO edges (seq, source, target, type, direction) VALUES (?, ?, ?, ?, ?)`},
		{&w.posStmt, `INSERT INTO positions (uid, path, line, col, end_line, end_col) VALUES (?, ?, ?, ?, ?, ?)`},
	} {
		s, err := conn.Prepare(p.sql)
		if err != nil {
			w.finalize()
			return nil, fmt.Errorf("prepare %q: %w", p.sql, err)
		}
		*p.stmt = s
	}
	return w, nil
}

func (w *writer) finalize() {
	for _, s := range []*sqlite.Stmt{w.header, w.nodes, w.attr, w.edges, w.posStmt} {
		if s != nil {
			_ = s.Finalize()
		}
	}
}

// step binds args in order and executes stmt once. Nil binds NULL.
func (w *writer) step(stmt *sqlite.Stmt, args ...any) error {
	for i, a := range args {
		param := i + 1
		switch v := a.(type) {
		case nil:
			stmt.BindNull(param)
		case string:
			stmt.BindText(param, v)
		case int64:
			stmt.BindInt64(param, v)
		case int32:
			stmt.BindInt64(param, int64(v))
		case float64:
			stmt.BindFloat(param, v)
		default:
			panic(fmt.Sprintf("sqlitedb: cannot bind %T", a))
		}
	}
	_, err := stmt.Step()
	_ = stmt.Reset()
	return err
}

// key looks name up without interning it; 0 matches nothing.
func (w *writer) key(name string) strtable.Key {
	k, _ := w.g.Table().Lookup(name)
	return k
}

func (w *writer) node(n *graph.Node) error {
	uid := n.UID().String()
	if err := w.step(w.nodes, uid, n.TypeName()); err != nil {
		return err
	}
	seq := int64(0)
	if err := w.attributes(uid, OwnerNode, n.Attributes(), nil, &seq); err != nil {
		return err
	}
	for a := range n.Attributes().FindByName(w.key(graphsupport.AttrPosition)) {
		c, ok := a.(*graph.CompositeAttribute)
		if !ok {
			continue
		}
		if err := w.position(uid, c); err != nil {
			return err
		}
	}
	return nil
}

// position writes the flat row of a Position composite. Positions without a
// path or line are left to the attributes table only.
func (w *writer) position(uid string, c *graph.CompositeAttribute) error {
	child := func(name string) any {
		switch a := c.Attrs.First(w.key(name)).(type) {
		case *graph.IntAttribute:
			return a.Value
		case *graph.StringAttribute:
			return w.g.StringValue(a)
		}
		return nil
	}
	path, line := child(graphsupport.AttrPath), child(graphsupport.AttrLine)
	if _, ok := path.(string); !ok {
		return nil
	}
	if _, ok := line.(int32); !ok {
		return nil
	}
	return w.step(w.posStmt, uid, path, line,
		child(graphsupport.AttrColumn), child(graphsupport.AttrEndLine), child(graphsupport.AttrEndColumn))
}

// attributes writes l in pre-order. seq numbers the rows of one owner;
// composite children point at their parent's seq.
func (w *writer) attributes(owner, ownerKind string, l *graph.AttributeList, parent any, seq *int64) error {
	for a := range l.All() {
		*seq++
		mySeq := *seq
		var ctx any
		if a.Context() != 0 {
			ctx = w.g.Str(a.Context())
		}
		var iv, rv, tv any
		switch v := a.(type) {
		case *graph.IntAttribute:
			iv = v.Value
		case *graph.FloatAttribute:
			rv = float64(v.Value)
		case *graph.StringAttribute:
			tv = w.g.StringValue(v)
		case *graph.CompositeAttribute:
		}
		if err := w.step(w.attr, owner, ownerKind, mySeq, parent, w.g.Str(a.Name()), ctx, a.Kind().String(), iv, rv, tv); err != nil {
			return err
		}
		w.attrs++
		if c, ok := a.(*graph.CompositeAttribute); ok {
			if err := w.attributes(owner, ownerKind, &c.Attrs, mySeq, seq); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *writer) edge(seq int64, e *graph.Edge) error {
	et := e.Type()
	if err := w.step(w.edges, seq, e.From().UID().String(), e.To().UID().String(), w.g.Str(et.Name), et.Dir.String()); err != nil {
		return err
	}
	if e.Attributes().Len() == 0 {
		return nil
	}
	attrSeq := int64(0)
	return w.attributes(strconv.FormatInt(seq, 10), OwnerEdge, e.Attributes(), nil, &attrSeq)
}

// validate logs orphan edges and per-type row counts.
func validate(conn *sqlite.Conn, log *zap.Logger) error {
	var orphans int64
	if err := sqlitex.ExecuteTransient(conn,
		`SELECT COUNT(*) FROM edges WHERE source NOT IN (SELECT uid FROM nodes) OR target NOT IN (SELECT uid FROM nodes)`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				orphans = stmt.ColumnInt64(0)
				return nil
			},
		}); err != nil {
		return fmt.Errorf("orphan edge check: %w", err)
	}
	if orphans > 0 {
		log.Warn("orphan edges", zap.Int64("count", orphans))
	}

	for _, q := range []struct{ what, sql string }{
		{"nodes", `SELECT type, COUNT(*) FROM nodes GROUP BY type ORDER BY COUNT(*) DESC`},
		{"edges", `SELECT type, COUNT(*) FROM edges GROUP BY type ORDER BY COUNT(*) DESC`},
	} {
		if err := sqlitex.ExecuteTransient(conn, q.sql, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				log.Debug(q.what, zap.String("type", stmt.ColumnText(0)), zap.Int64("count", stmt.ColumnInt64(1)))
				return nil
			},
		}); err != nil {
			return fmt.Errorf("count %s: %w", q.what, err)
		}
	}
	return nil
}
