// Package strtable interns strings behind small integer keys.
//
// Strings are spread over a fixed number of buckets by a 16-bit Pearson
// hash. A key is the hash in the upper half and the bucket-local sequence
// number in the lower half, so a key can be resolved to its bucket without
// any lookup. Keys are only meaningful within the table that issued them;
// use Remap to move references between tables.
package strtable

import (
	"errors"
	"fmt"
)

// Key identifies an interned string. The zero key is the empty string.
type Key uint32

// Empty is the reserved key of the empty string.
const Empty Key = 0

// DefaultBuckets is the bucket count used by New when none is given.
const DefaultBuckets = 4999

// StrType classifies a string for selective saving.
type StrType uint8

const (
	Default StrType = iota
	Temporary
	ToSave
)

func (t StrType) String() string {
	switch t {
	case Default:
		return "default"
	case Temporary:
		return "temporary"
	case ToSave:
		return "to-save"
	default:
		return fmt.Sprintf("StrType(%d)", uint8(t))
	}
}

// ErrCapacity reports a bucket that ran out of sequence numbers.
var ErrCapacity = errors.New("string table bucket capacity exceeded")

// CapacityError carries the bucket that overflowed.
type CapacityError struct {
	Bucket int
	Value  string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("string table: bucket %d full while interning %q", e.Bucket, e.Value)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }

const maxSeq = 0xFFFF

type entry struct {
	key Key
	s   string
	typ StrType
}

type bucket struct {
	counter uint16
	entries []entry
	byKey   map[Key]int
}

func (b *bucket) find(s string) int {
	for i := range b.entries {
		if b.entries[i].s == s {
			return i
		}
	}
	return -1
}

// Table is a string interner. It is not safe for concurrent use.
type Table struct {
	buckets []bucket
	size    int
}

// New returns an empty table with n buckets (DefaultBuckets if n <= 0).
func New(n int) *Table {
	if n <= 0 {
		n = DefaultBuckets
	}
	return &Table{buckets: make([]bucket, n)}
}

func (t *Table) bucketOf(h uint16) int {
	return int(h) % len(t.buckets)
}

// TrySet interns s and returns its key. An existing string keeps its key and
// type. The only error is a *CapacityError.
func (t *Table) TrySet(s string, typ StrType) (Key, error) {
	if s == "" {
		return Empty, nil
	}
	h := hash16(s)
	bi := t.bucketOf(h)
	b := &t.buckets[bi]
	if i := b.find(s); i >= 0 {
		return b.entries[i].key, nil
	}
	if b.counter == maxSeq {
		return Empty, &CapacityError{Bucket: bi, Value: s}
	}
	b.counter++
	k := Key(uint32(h)<<16 | uint32(b.counter))
	if b.byKey == nil {
		b.byKey = make(map[Key]int)
	}
	b.byKey[k] = len(b.entries)
	b.entries = append(b.entries, entry{key: k, s: s, typ: typ})
	t.size++
	return k, nil
}

// Set interns s. A full bucket cannot be recovered from mid-build, so Set
// panics with the *CapacityError; use TrySet to handle it as an error.
func (t *Table) Set(s string, typ ...StrType) Key {
	st := Default
	if len(typ) > 0 {
		st = typ[0]
	}
	k, err := t.TrySet(s, st)
	if err != nil {
		panic(err)
	}
	return k
}

// Lookup returns the key of s without interning it.
func (t *Table) Lookup(s string) (Key, bool) {
	if s == "" {
		return Empty, true
	}
	b := &t.buckets[t.bucketOf(hash16(s))]
	if i := b.find(s); i >= 0 {
		return b.entries[i].key, true
	}
	return Empty, false
}

func (t *Table) locate(k Key) (*bucket, int) {
	if k == Empty {
		return nil, -1
	}
	b := &t.buckets[t.bucketOf(uint16(k>>16))]
	i, ok := b.byKey[k]
	if !ok {
		return nil, -1
	}
	return b, i
}

// Get resolves k. Unknown keys and Empty resolve to "".
func (t *Table) Get(k Key) string {
	b, i := t.locate(k)
	if b == nil {
		return ""
	}
	return b.entries[i].s
}

// Has reports whether k was issued by this table.
func (t *Table) Has(k Key) bool {
	b, _ := t.locate(k)
	return b != nil
}

// Type returns the classification of k, Default for unknown keys.
func (t *Table) Type(k Key) StrType {
	b, i := t.locate(k)
	if b == nil {
		return Default
	}
	return b.entries[i].typ
}

// SetType reclassifies an interned string without changing its key.
// It reports false when k is unknown.
func (t *Table) SetType(k Key, typ StrType) bool {
	b, i := t.locate(k)
	if b == nil {
		return false
	}
	b.entries[i].typ = typ
	return true
}

// SetTypeOf reclassifies s if it is interned.
func (t *Table) SetTypeOf(s string, typ StrType) bool {
	k, ok := t.Lookup(s)
	if !ok || k == Empty {
		return false
	}
	return t.SetType(k, typ)
}

// Len returns the number of interned non-empty strings.
func (t *Table) Len() int { return t.size }

// Buckets returns the bucket count.
func (t *Table) Buckets() int { return len(t.buckets) }

// Each calls fn for every entry in bucket order, then insertion order.
func (t *Table) Each(fn func(k Key, s string, typ StrType)) {
	for bi := range t.buckets {
		for _, e := range t.buckets[bi].entries {
			fn(e.key, e.s, e.typ)
		}
	}
}

// Clone returns a deep copy with identical keys.
func (t *Table) Clone() *Table {
	c := &Table{buckets: make([]bucket, len(t.buckets)), size: t.size}
	for i, b := range t.buckets {
		nb := bucket{counter: b.counter}
		if len(b.entries) > 0 {
			nb.entries = append([]entry(nil), b.entries...)
			nb.byKey = make(map[Key]int, len(b.byKey))
			for k, v := range b.byKey {
				nb.byKey[k] = v
			}
		}
		c.buckets[i] = nb
	}
	return c
}

// Remap interns every string of src into t and returns the translation from
// src keys to t keys. Empty always maps to Empty.
func (t *Table) Remap(src *Table) (map[Key]Key, error) {
	m := make(map[Key]Key, src.Len()+1)
	m[Empty] = Empty
	var err error
	src.Each(func(k Key, s string, typ StrType) {
		if err != nil {
			return
		}
		var nk Key
		nk, err = t.TrySet(s, typ)
		m[k] = nk
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
