package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// nullStringJSON marshals as string or null.
type nullStringJSON struct{ sql.NullString }

func (n nullStringJSON) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.String)
}

func (n *nullStringJSON) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		n.Valid = false
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.String, n.Valid = s, true
	return nil
}

// nullInt64JSON marshals as number or null.
type nullInt64JSON struct{ sql.NullInt64 }

func (n nullInt64JSON) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Int64)
}

func (n *nullInt64JSON) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		n.Valid = false
		return nil
	}
	var i int64
	if err := json.Unmarshal(data, &i); err != nil {
		return err
	}
	n.Int64, n.Valid = i, true
	return nil
}

// DB wraps *sql.DB and provides graph query helpers.
type DB struct {
	*sql.DB
}

// NewDB returns a DB wrapper.
func NewDB(db *sql.DB) *DB {
	return &DB{DB: db}
}

// Node is a graph node for API responses.
type Node struct {
	UID  string         `json:"uid"`
	Type string         `json:"type"`
	Name nullStringJSON `json:"name"`
}

// Attribute is one row of a node's attribute tree. Parent is the seq of the
// enclosing composite.
type Attribute struct {
	Seq     int64          `json:"seq"`
	Parent  nullInt64JSON  `json:"parent"`
	Name    string         `json:"name"`
	Context nullStringJSON `json:"context"`
	Kind    string         `json:"kind"`
	Value   any            `json:"value,omitempty"`
}

// Edge is a graph edge for API responses.
type Edge struct {
	Seq       int64  `json:"seq"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Type      string `json:"type"`
	Direction string `json:"direction"`
}

// NodeDetail is a node with its attributes and incident edges.
type NodeDetail struct {
	Node
	Attributes []Attribute `json:"attributes"`
	Out        []Edge      `json:"out"`
	In         []Edge      `json:"in"`
}

// RangeMatch is a node whose position overlaps a queried line range.
type RangeMatch struct {
	UID       string        `json:"uid"`
	Type      string        `json:"type"`
	Path      string        `json:"path"`
	Line      int64         `json:"line"`
	Column    nullInt64JSON `json:"column"`
	EndLine   nullInt64JSON `json:"end_line"`
	EndColumn nullInt64JSON `json:"end_column"`
}

// Header returns the key/value provenance of the export.
func (db *DB) Header(ctx context.Context) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, queryHeader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Nodes lists nodes in creation order, optionally of one type only.
func (db *DB) Nodes(ctx context.Context, typ string, limit int) ([]Node, error) {
	if limit <= 0 || limit > maxNodeLimit {
		limit = defaultNodeLimit
	}
	rows, err := db.QueryContext(ctx, queryNodes, typ, typ, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Node{}
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.UID, &n.Type, &n.Name.NullString); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Node returns one node with its attributes and edges. An unknown uid yields
// sql.ErrNoRows.
func (db *DB) Node(ctx context.Context, uid string) (*NodeDetail, error) {
	d := &NodeDetail{Attributes: []Attribute{}}
	err := db.QueryRowContext(ctx, queryNode, uid).Scan(&d.UID, &d.Type, &d.Name.NullString)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, queryNodeAttributes, uid)
	if err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a Attribute
		var iv sql.NullInt64
		var rv sql.NullFloat64
		var tv sql.NullString
		if err := rows.Scan(&a.Seq, &a.Parent.NullInt64, &a.Name, &a.Context.NullString, &a.Kind, &iv, &rv, &tv); err != nil {
			return nil, err
		}
		switch {
		case iv.Valid:
			a.Value = iv.Int64
		case rv.Valid:
			a.Value = rv.Float64
		case tv.Valid:
			a.Value = tv.String
		}
		d.Attributes = append(d.Attributes, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if d.Out, err = db.edges(ctx, queryOutEdges, uid); err != nil {
		return nil, fmt.Errorf("out edges: %w", err)
	}
	if d.In, err = db.edges(ctx, queryInEdges, uid); err != nil {
		return nil, fmt.Errorf("in edges: %w", err)
	}
	return d, nil
}

func (db *DB) edges(ctx context.Context, query, uid string) ([]Edge, error) {
	rows, err := db.QueryContext(ctx, query, uid, maxEdges)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Edge{}
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Seq, &e.Source, &e.Target, &e.Type, &e.Direction); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Range returns the nodes whose positions in path overlap [line, endLine],
// narrowest first.
func (db *DB) Range(ctx context.Context, path string, line, endLine int) ([]RangeMatch, error) {
	if endLine < line {
		endLine = line
	}
	rows, err := db.QueryContext(ctx, queryRange, path, endLine, line, maxRangeMatches)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []RangeMatch{}
	for rows.Next() {
		var m RangeMatch
		if err := rows.Scan(&m.UID, &m.Type, &m.Path, &m.Line, &m.Column.NullInt64, &m.EndLine.NullInt64, &m.EndColumn.NullInt64); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
