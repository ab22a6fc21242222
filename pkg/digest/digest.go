// Package digest computes the stable content-identity hash shared by the
// content validator, the resource state engine's hydration check, and the
// migration registry's version keying.
package digest

import "fmt"

const (
	offsetBasis uint32 = 0x811C9DC5
	prime       uint32 = 0x01000193
)

// ComputeStable hashes an ordered sequence of ids with FNV-1a, folding in a
// 0xFF separator after each id so that ["ab"] and ["a","b"] hash
// differently. Pure function of its input: same ids in the same order
// always produce the same hash, on any platform or Go version.
func ComputeStable(ids []string) string {
	h := offsetBasis
	for _, id := range ids {
		for i := 0; i < len(id); i++ {
			h ^= uint32(id[i])
			h *= prime
		}
		h ^= 0xFF
		h *= prime
	}
	return fmt.Sprintf("fnv1a-%08x", h)
}
