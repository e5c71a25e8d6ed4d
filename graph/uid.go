package graph

import (
	"fmt"
	"strconv"
)

// UID identifies a node for the lifetime of a graph. Tag is a one-letter
// origin class (e.g. 'L' for nodes built from a language model) and Num a
// counter within that class; together they are never reused.
type UID struct {
	Tag byte
	Num uint64
}

// InvalidUID is the zero UID; no node ever has it.
var InvalidUID UID

// DefaultTag is used by CreateNode.
const DefaultTag byte = 'N'

func (u UID) Valid() bool { return u.Tag != 0 }

// String renders the external form, e.g. "L1024".
func (u UID) String() string {
	if !u.Valid() {
		return "<invalid>"
	}
	return string(rune(u.Tag)) + strconv.FormatUint(u.Num, 10)
}

// ParseUID parses the external form produced by String.
func ParseUID(s string) (UID, error) {
	if len(s) < 2 || !isTag(s[0]) {
		return InvalidUID, fmt.Errorf("invalid uid %q", s)
	}
	n, err := strconv.ParseUint(s[1:], 10, 64)
	if err != nil {
		return InvalidUID, fmt.Errorf("invalid uid %q: %w", s, err)
	}
	return UID{Tag: s[0], Num: n}, nil
}

func isTag(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
