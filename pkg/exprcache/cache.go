// Package exprcache provides a thread-safe LRU cache of compiled
// expr-lang programs, used by the formula evaluator so a user-authored
// expression is compiled once for as long as it stays cached.
package exprcache

import (
	"container/list"
	"sync"

	"github.com/expr-lang/expr/vm"
)

// Cache is a thread-safe LRU cache of compiled expr-lang programs.
type Cache struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
	mu       sync.RWMutex
}

type cacheEntry struct {
	key     string
	program *vm.Program
}

// New creates a cache with the given capacity. A non-positive capacity
// falls back to a sensible default.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 256
	}

	return &Cache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

// Get retrieves a compiled program from the cache.
func (c *Cache) Get(key string) (*vm.Program, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, found := c.cache[key]; found {
		c.lruList.MoveToFront(element)
		entry := element.Value.(*cacheEntry)
		return entry.program, true
	}

	return nil, false
}

// Put stores a compiled program in the cache, evicting the least recently
// used entry if the capacity is exceeded.
func (c *Cache) Put(key string, program *vm.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, found := c.cache[key]; found {
		c.lruList.MoveToFront(element)
		element.Value.(*cacheEntry).program = program
		return
	}

	entry := &cacheEntry{key: key, program: program}
	element := c.lruList.PushFront(entry)
	c.cache[key] = element

	if c.lruList.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	oldest := c.lruList.Back()
	if oldest == nil {
		return
	}
	c.lruList.Remove(oldest)
	entry := oldest.Value.(*cacheEntry)
	delete(c.cache, entry.key)
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lruList.Len()
}

// Clear removes every cached program.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lruList = list.New()
}

// CompileAndCache returns the cached program for key, compiling it with
// compile and caching the result on a miss.
func (c *Cache) CompileAndCache(key string, compile func() (*vm.Program, error)) (*vm.Program, error) {
	if program, found := c.Get(key); found {
		return program, nil
	}

	program, err := compile()
	if err != nil {
		return nil, err
	}

	c.Put(key, program)
	return program, nil
}
