package content

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

// Result is the outcome of validating a raw pack: either a normalized pack
// plus any warnings, or a non-empty Errors list.
type Result struct {
	Normalized *NormalizedPack
	Errors     simerrors.ValidationErrors
	Warnings   simerrors.ValidationErrors
}

// Valid reports whether the pack can be used (no errors, warnings allowed).
func (r Result) Valid() bool {
	return len(r.Errors) == 0 && r.Normalized != nil
}

// ValidationCache maps a content-pack fingerprint (a hash over canonicalized
// input bytes) to a previously computed Result, letting a host skip
// re-validating packs it has already seen.
type ValidationCache interface {
	Get(fingerprint string) (Result, bool)
	Put(fingerprint string, result Result)
}

// Fingerprint hashes canonicalized input bytes into the cache key the
// ValidationCache implementations use.
func Fingerprint(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// LRUValidationCache is an in-process ValidationCache bounded by capacity.
// Concurrent calls for the same fingerprint are deduplicated via
// singleflight so a burst of identical parse() calls triggers only one
// underlying validation.
type LRUValidationCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	group    singleflight.Group
}

type lruCacheEntry struct {
	key    string
	result Result
}

// NewLRUValidationCache builds an in-process ValidationCache. capacity <= 0
// defaults to 128.
func NewLRUValidationCache(capacity int) *LRUValidationCache {
	if capacity <= 0 {
		capacity = 128
	}
	return &LRUValidationCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns a cached Result for fingerprint, if present.
func (c *LRUValidationCache) Get(fingerprint string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[fingerprint]
	if !ok {
		return Result{}, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruCacheEntry).result, true
}

// Put stores result under fingerprint, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *LRUValidationCache) Put(fingerprint string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[fingerprint]; ok {
		elem.Value.(*lruCacheEntry).result = result
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&lruCacheEntry{key: fingerprint, result: result})
	c.entries[fingerprint] = elem

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*lruCacheEntry).key)
		}
	}
}

// GetOrValidate returns the cached Result for fingerprint, or runs validate
// exactly once across concurrent callers sharing the same fingerprint and
// caches its outcome.
func (c *LRUValidationCache) GetOrValidate(fingerprint string, validate func() Result) Result {
	if result, ok := c.Get(fingerprint); ok {
		return result
	}

	value, _, _ := c.group.Do(fingerprint, func() (any, error) {
		result := validate()
		c.Put(fingerprint, result)
		return result, nil
	})

	return value.(Result)
}
