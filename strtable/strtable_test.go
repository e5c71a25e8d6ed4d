package strtable

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sagraph/internal/binio"
)

func TestTable_SetIsIdempotent(t *testing.T) {
	tbl := New(0)

	foo := tbl.Set("Foo")
	bar := tbl.Set("Bar")

	assert.NotEqual(t, foo, bar)
	assert.Equal(t, foo, tbl.Set("Foo"), "second Set must return the original key")
	assert.Equal(t, "Foo", tbl.Get(foo))
	assert.Equal(t, "Bar", tbl.Get(bar))
	assert.Equal(t, 2, tbl.Len())
}

func TestTable_EmptyAndUnknown(t *testing.T) {
	tbl := New(17)

	assert.Equal(t, Empty, tbl.Set(""))
	assert.Equal(t, "", tbl.Get(Empty))
	assert.Equal(t, "", tbl.Get(Key(0xDEAD0001)))
	assert.False(t, tbl.Has(Key(0xDEAD0001)))
	assert.Equal(t, 0, tbl.Len())
}

func TestTable_ManyStringsRoundTripThroughGet(t *testing.T) {
	tbl := New(7)
	keys := make(map[string]Key)
	for i := 0; i < 5000; i++ {
		s := fmt.Sprintf("node-%d", i)
		keys[s] = tbl.Set(s)
	}
	seen := make(map[Key]string)
	for s, k := range keys {
		assert.Equal(t, s, tbl.Get(k))
		assert.Equal(t, k, tbl.Set(s))
		if prev, dup := seen[k]; dup {
			t.Fatalf("key %#x issued for %q and %q", uint32(k), prev, s)
		}
		seen[k] = s
	}
}

func TestTable_SetTypeKeepsKey(t *testing.T) {
	tbl := New(0)
	k := tbl.Set("Position", Temporary)
	assert.Equal(t, Temporary, tbl.Type(k))

	require.True(t, tbl.SetType(k, ToSave))
	assert.Equal(t, ToSave, tbl.Type(k))
	assert.Equal(t, k, tbl.Set("Position"))

	require.True(t, tbl.SetTypeOf("Position", Default))
	assert.Equal(t, Default, tbl.Type(k))
	assert.False(t, tbl.SetTypeOf("missing", Default))
}

func TestTable_CapacityError(t *testing.T) {
	tbl := New(1)
	tbl.buckets[0].counter = maxSeq - 1

	_, err := tbl.TrySet("last-slot", Default)
	require.NoError(t, err)
	_, err = tbl.TrySet("overflow", Default)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacity))
	var ce *CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 0, ce.Bucket)

	assert.Panics(t, func() { tbl.Set("one-more-for-the-road") })
}

func TestTable_CloneIsDeep(t *testing.T) {
	tbl := New(0)
	k := tbl.Set("Class")
	c := tbl.Clone()

	c.Set("Method")
	c.SetType(k, ToSave)

	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, Default, tbl.Type(k))
	assert.Equal(t, "Class", c.Get(k))
}

func TestTable_Remap(t *testing.T) {
	dst := New(0)
	dst.Set("Shared")
	src := New(13)
	a := src.Set("Shared")
	b := src.Set("OnlyInSource")

	m, err := dst.Remap(src)
	require.NoError(t, err)
	assert.Equal(t, "Shared", dst.Get(m[a]))
	assert.Equal(t, "OnlyInSource", dst.Get(m[b]))
	assert.Equal(t, Empty, m[Empty])
	assert.Equal(t, 2, dst.Len())
}

func TestTable_EncodeModes(t *testing.T) {
	tbl := New(0)
	def := tbl.Set("default")
	tmp := tbl.Set("temporary", Temporary)
	keep := tbl.Set("keep", ToSave)

	decode := func(mode SaveMode) *Table {
		var buf bytes.Buffer
		w := binio.NewWriter(&buf)
		tbl.Encode(w, mode)
		require.NoError(t, w.Err())
		out := New(0)
		require.NoError(t, out.Decode(binio.NewReader(&buf)))
		return out
	}

	all := decode(SaveAll)
	assert.Equal(t, 3, all.Len())
	assert.Equal(t, "temporary", all.Get(tmp))

	noTemp := decode(SaveSkipTemporary)
	assert.Equal(t, "default", noTemp.Get(def))
	assert.Equal(t, "", noTemp.Get(tmp))

	only := decode(SaveOnlyToSave)
	assert.Equal(t, 1, only.Len())
	assert.Equal(t, "keep", only.Get(keep))

	// counters survive, so new strings never collide with dropped keys
	fresh := only.Set("temporary")
	assert.NotEqual(t, Empty, fresh)
	assert.Equal(t, "keep", only.Get(keep))
}

func TestTable_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.str")
	tbl := New(31)
	k := tbl.Set("ComponentTree")
	require.NoError(t, tbl.Save(path, SaveAll))

	loaded := New(0)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 31, loaded.Buckets())
	assert.Equal(t, "ComponentTree", loaded.Get(k))
	assert.Equal(t, k, loaded.Set("ComponentTree"))
}

func TestTable_LoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.str")
	require.NoError(t, os.WriteFile(path, []byte("NOTATABLE and then some"), 0o644))

	err := New(0).Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))
}
