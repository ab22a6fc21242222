package exprcache

import (
	"errors"
	"testing"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_PutGet(t *testing.T) {
	c := New(2)
	program, err := expr.Compile("1 == 1", expr.AsBool())
	require.NoError(t, err)

	c.Put("a", program)
	got, found := c.Get("a")
	assert.True(t, found)
	assert.Same(t, program, got)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	pa, _ := expr.Compile("1", expr.AsFloat64())
	pb, _ := expr.Compile("2", expr.AsFloat64())
	pc, _ := expr.Compile("3", expr.AsFloat64())

	c.Put("a", pa)
	c.Put("b", pb)
	c.Get("a") // touch a, making b the LRU entry
	c.Put("c", pc)

	_, foundA := c.Get("a")
	_, foundB := c.Get("b")
	_, foundC := c.Get("c")

	assert.True(t, foundA)
	assert.False(t, foundB)
	assert.True(t, foundC)
	assert.Equal(t, 2, c.Len())
}

func TestCache_CompileAndCache_CompilesOnce(t *testing.T) {
	c := New(10)
	calls := 0
	compile := func() (*vm.Program, error) {
		calls++
		return expr.Compile("1 + 1", expr.AsFloat64())
	}

	_, err := c.CompileAndCache("expr", compile)
	require.NoError(t, err)
	_, err = c.CompileAndCache("expr", compile)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestCache_Clear(t *testing.T) {
	c := New(10)
	p, _ := expr.Compile("true", expr.AsBool())
	c.Put("a", p)
	require.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())

	_, found := c.Get("a")
	assert.False(t, found)
}

func TestCache_CompileAndCache_PropagatesCompileError(t *testing.T) {
	c := New(10)
	_, err := c.CompileAndCache("bad", func() (*vm.Program, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)
}
