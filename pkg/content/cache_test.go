package content

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUValidationCache_PutGet(t *testing.T) {
	c := NewLRUValidationCache(2)
	result := Result{Normalized: &NormalizedPack{Engine: 1}}
	c.Put("fp1", result)

	got, ok := c.Get("fp1")
	assert.True(t, ok)
	assert.Equal(t, 1, got.Normalized.Engine)
}

func TestLRUValidationCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUValidationCache(2)
	c.Put("a", Result{Normalized: &NormalizedPack{Engine: 1}})
	c.Put("b", Result{Normalized: &NormalizedPack{Engine: 2}})
	c.Get("a")
	c.Put("c", Result{Normalized: &NormalizedPack{Engine: 3}})

	_, foundA := c.Get("a")
	_, foundB := c.Get("b")
	_, foundC := c.Get("c")

	assert.True(t, foundA)
	assert.False(t, foundB)
	assert.True(t, foundC)
}

func TestLRUValidationCache_GetOrValidate_DedupesConcurrentCalls(t *testing.T) {
	c := NewLRUValidationCache(10)
	var calls int64

	validate := func() Result {
		atomic.AddInt64(&calls, 1)
		return Result{Normalized: &NormalizedPack{Engine: 7}}
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetOrValidate("fp", validate)
		}()
	}
	wg.Wait()

	result, ok := c.Get("fp")
	assert.True(t, ok)
	assert.Equal(t, 7, result.Normalized.Engine)
}
