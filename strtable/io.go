package strtable

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"sagraph/internal/binio"
)

// SaveMode selects which entries are written.
type SaveMode uint8

const (
	SaveAll SaveMode = iota
	// SaveSkipTemporary drops Temporary entries.
	SaveSkipTemporary
	// SaveOnlyToSave keeps ToSave entries only.
	SaveOnlyToSave
)

// Keeps reports whether entries of typ are written under m.
func (m SaveMode) Keeps(typ StrType) bool {
	switch m {
	case SaveSkipTemporary:
		return typ != Temporary
	case SaveOnlyToSave:
		return typ == ToSave
	default:
		return true
	}
}

// ErrCorrupt is returned by Decode and Load for malformed input.
var ErrCorrupt = errors.New("corrupt string table")

const fileMagic = "STRTABLE"

// Encode writes the table block: bucket count, per-bucket counters, then
// (key, length, bytes) records terminated by a zero key.
func (t *Table) Encode(w *binio.Writer, mode SaveMode) {
	t.EncodeFunc(w, func(_ Key, typ StrType) bool { return mode.Keeps(typ) })
}

// EncodeFunc writes the table block with the entries keep accepts. Bucket
// counters are written in full so dropped keys are never handed out again.
func (t *Table) EncodeFunc(w *binio.Writer, keep func(Key, StrType) bool) {
	w.U32(uint32(len(t.buckets)))
	for i := range t.buckets {
		w.U16(t.buckets[i].counter)
	}
	t.Each(func(k Key, s string, typ StrType) {
		if !keep(k, typ) {
			return
		}
		w.U32(uint32(k))
		w.String(s)
	})
	w.U32(0)
}

// Decode replaces the contents of t with a block written by Encode. Decoded
// strings are typed Default.
func (t *Table) Decode(r *binio.Reader) error {
	n := r.U32()
	if err := r.Err(); err != nil {
		return err
	}
	if n == 0 || n > 1<<20 {
		return fmt.Errorf("%w: bucket count %d", ErrCorrupt, n)
	}
	nt := New(int(n))
	for i := range nt.buckets {
		nt.buckets[i].counter = r.U16()
	}
	for {
		k := Key(r.U32())
		if r.Err() != nil || k == Empty {
			break
		}
		s := r.String()
		if r.Err() != nil {
			break
		}
		bi := nt.bucketOf(uint16(k >> 16))
		b := &nt.buckets[bi]
		switch {
		case s == "":
			return fmt.Errorf("%w: key %#x has empty value", ErrCorrupt, uint32(k))
		case hash16(s) != uint16(k>>16):
			return fmt.Errorf("%w: key %#x does not hash %q", ErrCorrupt, uint32(k), s)
		case uint16(k) == 0 || uint16(k) > b.counter:
			return fmt.Errorf("%w: key %#x beyond bucket %d counter", ErrCorrupt, uint32(k), bi)
		}
		if _, dup := b.byKey[k]; dup {
			return fmt.Errorf("%w: duplicate key %#x", ErrCorrupt, uint32(k))
		}
		if b.byKey == nil {
			b.byKey = make(map[Key]int)
		}
		b.byKey[k] = len(b.entries)
		b.entries = append(b.entries, entry{key: k, s: s})
		nt.size++
	}
	if err := r.Err(); err != nil {
		return err
	}
	*t = *nt
	return nil
}

// Save writes the table to path in its own small container format.
func (t *Table) Save(path string, mode SaveMode) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	w := binio.NewWriter(bw)
	w.Raw([]byte(fileMagic))
	t.Encode(w, mode)
	if err := w.Err(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// Load reads a table written by Save, replacing the contents of t.
func (t *Table) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	r := binio.NewReader(bufio.NewReader(f))
	if magic := r.Raw(len(fileMagic)); string(magic) != fileMagic {
		if r.Err() != nil && !errors.Is(r.Err(), io.ErrUnexpectedEOF) {
			return r.Err()
		}
		return fmt.Errorf("%w: bad magic in %s", ErrCorrupt, path)
	}
	if err := t.Decode(r); err != nil {
		if errors.Is(err, ErrCorrupt) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}
