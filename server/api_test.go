package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"sagraph/graph"
	"sagraph/graphsupport"
	"sagraph/sqlitedb"
)

func position(g *graph.Graph, path string, line, col, endLine int32) *graph.CompositeAttribute {
	children := []graph.Attribute{
		g.NewString(graphsupport.AttrPath, "", path),
		g.NewInt(graphsupport.AttrLine, "", line),
	}
	if col > 0 {
		children = append(children, g.NewInt(graphsupport.AttrColumn, "", col))
	}
	children = append(children, g.NewInt(graphsupport.AttrEndLine, "", endLine))
	return g.NewComposite(graphsupport.AttrPosition, "", children...)
}

// setupTestDB exports a small graph and opens it the way serve does.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	g := graph.New()
	g.SetHeaderInfo("tool", "sagraph")
	g.SetHeaderInfo("mode", "build")

	pkg := g.CreateNodeTagged('L', "Package")
	pkg.AddAttribute(g.NewString("Name", "", "demo"))
	file := g.CreateNodeTagged('L', "File")
	file.AddAttribute(g.NewString("Name", "", "run.go"))
	file.AddAttribute(position(g, "demo/run.go", 1, 0, 40))
	fn := g.CreateNodeTagged('L', "Function")
	fn.AddAttribute(g.NewString("Name", "", "run"))
	fn.AddAttribute(g.NewInt("LOC", "", 30))
	fn.AddAttribute(g.NewFloat("LOC", "cumulative", 0.5))
	fn.AddAttribute(position(g, "demo/run.go", 3, 1, 32))

	g.AddDirectedEdge(pkg, file, "Contains", true)
	g.AddDirectedEdge(file, fn, "Contains", true)

	path := filepath.Join(t.TempDir(), "graph.db")
	require.NoError(t, sqlitedb.Write(path, g, nil))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func get(t *testing.T, app *App, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestAPI_Header(t *testing.T) {
	app := NewApp(setupTestDB(t), nil)
	rec := get(t, app, "/api/header")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"tool": "sagraph", "mode": "build"}, decode[map[string]string](t, rec))
}

func TestAPI_Nodes(t *testing.T) {
	app := NewApp(setupTestDB(t), nil)

	rec := get(t, app, "/api/nodes")
	require.Equal(t, http.StatusOK, rec.Code)
	nodes := decode[[]Node](t, rec)
	require.Len(t, nodes, 3)
	assert.Equal(t, "L1", nodes[0].UID)
	assert.Equal(t, "demo", nodes[0].Name.String)

	nodes = decode[[]Node](t, get(t, app, "/api/nodes?type=Function"))
	require.Len(t, nodes, 1)
	assert.Equal(t, "L3", nodes[0].UID)
	assert.Equal(t, "run", nodes[0].Name.String)

	assert.Len(t, decode[[]Node](t, get(t, app, "/api/nodes?limit=2")), 2)
	assert.Len(t, decode[[]Node](t, get(t, app, "/api/nodes?limit=abc")), 3)
	assert.Empty(t, decode[[]Node](t, get(t, app, "/api/nodes?type=Method")))
}

func TestAPI_Node(t *testing.T) {
	app := NewApp(setupTestDB(t), nil)

	rec := get(t, app, "/api/nodes/L3")
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[NodeDetail](t, rec)
	assert.Equal(t, "Function", d.Type)
	// Name, LOC, cumulative LOC, Position with Path, Line, Column, EndLine
	require.Len(t, d.Attributes, 8)
	assert.Equal(t, "LOC", d.Attributes[2].Name)
	assert.Equal(t, "cumulative", d.Attributes[2].Context.String)
	assert.Equal(t, 0.5, d.Attributes[2].Value)
	assert.Equal(t, "Position", d.Attributes[3].Name)
	assert.False(t, d.Attributes[3].Parent.Valid)
	assert.Equal(t, int64(4), d.Attributes[4].Parent.Int64)

	// Contains from the file plus the reverse companion out to it
	require.Len(t, d.In, 1)
	assert.Equal(t, "L2", d.In[0].Source)
	assert.Equal(t, "directional", d.In[0].Direction)
	require.Len(t, d.Out, 1)
	assert.Equal(t, "reverse", d.Out[0].Direction)
}

func TestAPI_Node_NotFound(t *testing.T) {
	app := NewApp(setupTestDB(t), nil)
	assert.Equal(t, http.StatusNotFound, get(t, app, "/api/nodes/L99").Code)
}

func TestAPI_Range(t *testing.T) {
	app := NewApp(setupTestDB(t), nil)

	rec := get(t, app, "/api/range?path=demo/run.go&line=5")
	require.Equal(t, http.StatusOK, rec.Code)
	ms := decode[[]RangeMatch](t, rec)
	require.Len(t, ms, 2)
	assert.Equal(t, "L3", ms[0].UID, "narrowest first")
	assert.Equal(t, int64(1), ms[0].Column.Int64)
	assert.Equal(t, "L2", ms[1].UID)
	assert.False(t, ms[1].Column.Valid)

	ms = decode[[]RangeMatch](t, get(t, app, "/api/range?path=demo/run.go&line=33&end_line=45"))
	require.Len(t, ms, 1)
	assert.Equal(t, "L2", ms[0].UID)

	assert.Empty(t, decode[[]RangeMatch](t, get(t, app, "/api/range?path=other.go&line=5")))
}

func TestAPI_Range_BadParams(t *testing.T) {
	app := NewApp(setupTestDB(t), nil)
	for _, target := range []string{
		"/api/range?line=5",
		"/api/range?path=a.go",
		"/api/range?path=a.go&line=0",
		"/api/range?path=a.go&line=1&end_line=x",
	} {
		assert.Equal(t, http.StatusBadRequest, get(t, app, target).Code, target)
	}
}

func TestAPI_CORSPreflight(t *testing.T) {
	app := NewApp(setupTestDB(t), nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/header", nil)
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
