package gcdiag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagraph/graphsupport"
	"sagraph/rul"
)

const output = `# example.com/demo
./demo.go:12:6: can inline helper
./demo.go:20:14: leaking param: s
./demo.go:21:2: moved to heap: buf
./demo.go:22:13: ... argument escapes to heap
pkg/x.go:5:10: s does not escape
./demo.go:30:7: inlining call to helper
not a diagnostic
`

func TestParse(t *testing.T) {
	ws, err := Parse(strings.NewReader(output), "")
	require.NoError(t, err)
	require.Len(t, ws, 5)

	assert.Equal(t, graphsupport.Warning{
		Path: "demo.go", Line: 12, Column: 6, EndLine: 12, EndColumn: graphsupport.MaxColumn,
		RuleID: RuleInlineable, Text: "can inline helper",
	}, ws[0])
	var ids []string
	for _, w := range ws {
		ids = append(ids, w.RuleID)
	}
	assert.Equal(t, []string{RuleInlineable, RuleLeakingParam, RuleMovedToHeap, RuleEscape, RuleNoEscape}, ids)
	assert.Equal(t, "pkg/x.go", ws[4].Path)
}

func TestParseSkipsOutOfRangePositions(t *testing.T) {
	in := "./a.go:99999999999999999999:1: moved to heap: x\n" +
		"./a.go:3:99999999999999999999: moved to heap: y\n" +
		"./a.go:4:2: moved to heap: z\n"
	ws, err := Parse(strings.NewReader(in), "")
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, 4, ws[0].Line)
	assert.Equal(t, "moved to heap: z", ws[0].Text)
}

func TestParsePrefix(t *testing.T) {
	ws, err := Parse(strings.NewReader("./a.go:1:1: moved to heap: x\n"), "sub/mod")
	require.NoError(t, err)
	require.Len(t, ws, 1)
	assert.Equal(t, "sub/mod/a.go", ws[0].Path)
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	esc, ok := rules.Lookup(RuleEscape)
	require.True(t, ok)
	assert.True(t, esc.Enabled)
	assert.Equal(t, rul.Major, esc.Priority())
	assert.True(t, esc.InGroup(GroupAlloc))

	noEsc, ok := rules.Lookup(RuleNoEscape)
	require.True(t, ok)
	assert.False(t, noEsc.Enabled)

	grp, ok := rules.Lookup(GroupAlloc)
	require.True(t, ok)
	assert.Equal(t, rul.GroupSummarized, grp.GroupType)
	assert.True(t, grp.CalculatedForType("Method"))
	assert.False(t, grp.CalculatedForType("File"))
}

func TestReplaceEnv(t *testing.T) {
	env := replaceEnv([]string{"A=1", "GOFLAGS=-mod=vendor", "B=2"}, "GOFLAGS", "-buildvcs=false")
	assert.Equal(t, []string{"A=1", "B=2", "GOFLAGS=-buildvcs=false"}, env)
}
