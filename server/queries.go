package server

// SQL over the tables written by sqlitedb.Write.

const queryHeader = `SELECT key, value FROM header ORDER BY key`

// Top-level Name attribute, if any, is the display name of a node.
const queryNodes = `
SELECT n.uid, n.type, a.text_value
FROM nodes n
LEFT JOIN attributes a ON a.owner = n.uid AND a.owner_kind = 'node' AND a.name = 'Name' AND a.parent_seq IS NULL
WHERE (? = '' OR n.type = ?)
ORDER BY n.rowid
LIMIT ?
`

const queryNode = `
SELECT n.uid, n.type, a.text_value
FROM nodes n
LEFT JOIN attributes a ON a.owner = n.uid AND a.owner_kind = 'node' AND a.name = 'Name' AND a.parent_seq IS NULL
WHERE n.uid = ?
`

const queryNodeAttributes = `
SELECT seq, parent_seq, name, context, kind, int_value, real_value, text_value
FROM attributes
WHERE owner_kind = 'node' AND owner = ?
ORDER BY seq
`

const queryOutEdges = `SELECT seq, source, target, type, direction FROM edges WHERE source = ? ORDER BY seq LIMIT ?`
const queryInEdges = `SELECT seq, source, target, type, direction FROM edges WHERE target = ? ORDER BY seq LIMIT ?`

// A missing end_line means the position covers its start line only.
const queryRange = `
SELECT p.uid, n.type, p.path, p.line, p.col, p.end_line, p.end_col
FROM positions p JOIN nodes n ON n.uid = p.uid
WHERE p.path = ? AND p.line <= ? AND COALESCE(p.end_line, p.line) >= ?
ORDER BY COALESCE(p.end_line, p.line) - p.line, p.line DESC, n.rowid
LIMIT ?
`

const (
	defaultNodeLimit = 100
	maxNodeLimit     = 1000
	maxEdges         = 500
	maxRangeMatches  = 200
)
