package ordered

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_PreservesInsertionOrder(t *testing.T) {
	m := New()
	m.Set("z", 1)
	m.Set("a", 2)
	m.Set("m", 3)

	assert.Equal(t, []string{"z", "a", "m"}, m.Keys())
	assert.Equal(t, 3, m.Len())
}

func TestMap_ResetKeepsPosition(t *testing.T) {
	m := New()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 3)

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestMap_NilValueIsPresent(t *testing.T) {
	m := New()
	m.Set("a", nil)

	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.True(t, m.Has("a"))
	assert.False(t, m.Has("b"))
}

func TestMap_Delete(t *testing.T) {
	m := New()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	m.Delete("b")
	m.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, m.Keys())
	assert.False(t, m.Has("b"))
}

func TestFromMap_SortsKeys(t *testing.T) {
	m := FromMap(map[string]any{"c": 3, "a": 1, "b": 2})
	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())
}

func TestMap_CloneIsIndependent(t *testing.T) {
	m := New()
	m.Set("a", 1)

	c := m.Clone()
	c.Set("b", 2)
	c.Set("a", 9)

	assert.Equal(t, []string{"a"}, m.Keys())
	v, _ := m.Get("a")
	assert.Equal(t, 1, v)
	assert.True(t, c.Has("b"))
}

func TestMap_RangeStops(t *testing.T) {
	m := New()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	var seen []string
	m.Range(func(k string, _ any) bool {
		seen = append(seen, k)
		return k != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestMap_MergeAndEqual(t *testing.T) {
	a := New()
	a.Set("x", 1)

	b := New()
	b.Set("y", 2)
	b.Set("x", 3)

	a.Merge(b)
	assert.Equal(t, []string{"x", "y"}, a.Keys())

	want := New()
	want.Set("x", 3)
	want.Set("y", 2)
	assert.True(t, a.Equal(want))

	want.Set("z", nil)
	assert.False(t, a.Equal(want))
}

func TestMap_ToMap(t *testing.T) {
	m := New()
	m.Set("a", 1)
	m.Set("b", "x")
	assert.Equal(t, map[string]any{"a": 1, "b": "x"}, m.ToMap())
}
