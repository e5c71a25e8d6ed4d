// Package gcdiag turns the Go compiler's optimisation diagnostics
// (go build -gcflags=-m) into warnings that can be placed on graph nodes.
package gcdiag

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"regexp"
	"strconv"
	"strings"

	"sagraph/graphsupport"
	"sagraph/rul"
)

// Rule ids of the diagnostics.
const (
	RuleEscape       = "GC_ESCAPE"
	RuleMovedToHeap  = "GC_MOVED_TO_HEAP"
	RuleLeakingParam = "GC_LEAKING_PARAM"
	RuleInlineable   = "GC_INLINEABLE"
	RuleNoEscape     = "GC_NO_ESCAPE"
	// GroupAlloc sums the heap related rules.
	GroupAlloc = "GC_ALLOC"
)

//go:embed rules.yaml
var defaultRules []byte

// DefaultRules returns the metadata of the diagnostic rules.
func DefaultRules() *rul.Store {
	s, err := rul.Load(bytes.NewReader(defaultRules))
	if err != nil {
		panic(fmt.Sprintf("gcdiag: bad embedded rules: %v", err))
	}
	return s
}

var lineRe = regexp.MustCompile(`^(?:\./)?([^:]+):(\d+):(\d+): (.+)$`)

// Run builds the packages under dir with -gcflags=-m and parses the
// diagnostics. Paths are prefixed with prefix. Compilation errors end the
// build early; whatever was reported until then is returned along with the
// error.
func Run(ctx context.Context, dir, prefix string) ([]graphsupport.Warning, error) {
	cmd := exec.CommandContext(ctx, "go", "build", "-gcflags=-m", "-o", os.DevNull, "./...")
	cmd.Dir = dir
	cmd.Env = replaceEnv(os.Environ(), "GOFLAGS", "-buildvcs=false")

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start go build: %w", err)
	}
	ws, perr := Parse(stderr, prefix)
	if err := cmd.Wait(); err != nil {
		return ws, fmt.Errorf("go build -gcflags=-m: %w", err)
	}
	return ws, perr
}

// Parse reads compiler diagnostics from r. Lines that are not diagnostics of
// a known kind are ignored.
func Parse(r io.Reader, prefix string) ([]graphsupport.Warning, error) {
	var ws []graphsupport.Warning
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		text := sc.Text()
		if strings.HasPrefix(text, "#") {
			continue
		}
		m := lineRe.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		rule := classify(m[4])
		if rule == "" {
			continue
		}
		line, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		col, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		file := m[1]
		if prefix != "" {
			file = path.Join(prefix, file)
		}
		ws = append(ws, graphsupport.Warning{
			Path:    file,
			Line:    line,
			Column:  col,
			EndLine: line,
			// the compiler reports a point; cover the rest of the line
			EndColumn: graphsupport.MaxColumn,
			RuleID:    rule,
			Text:      m[4],
		})
	}
	if err := sc.Err(); err != nil {
		return ws, fmt.Errorf("read diagnostics: %w", err)
	}
	return ws, nil
}

func classify(msg string) string {
	switch {
	case strings.Contains(msg, "leaking param"):
		return RuleLeakingParam
	case strings.Contains(msg, "moved to heap:"):
		return RuleMovedToHeap
	case strings.Contains(msg, "escapes to heap"):
		return RuleEscape
	case strings.Contains(msg, "does not escape"):
		return RuleNoEscape
	case strings.HasPrefix(msg, "can inline "):
		return RuleInlineable
	}
	return ""
}

// replaceEnv returns a copy of environ with key set to val, replacing any
// existing entry for key.
func replaceEnv(environ []string, key, val string) []string {
	prefix := key + "="
	result := make([]string, 0, len(environ)+1)
	for _, e := range environ {
		if !strings.HasPrefix(e, prefix) {
			result = append(result, e)
		}
	}
	return append(result, prefix+val)
}
