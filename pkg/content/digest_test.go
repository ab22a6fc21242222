package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeStableDigest_Deterministic(t *testing.T) {
	d1 := computeStableDigest([]string{"gold", "wood"})
	d2 := computeStableDigest([]string{"gold", "wood"})
	assert.Equal(t, d1.Hash, d2.Hash)
	assert.Equal(t, 2, d1.Version)
}

func TestComputeStableDigest_DistinguishesConcatenation(t *testing.T) {
	combined := computeStableDigest([]string{"ab"})
	split := computeStableDigest([]string{"a", "b"})
	assert.NotEqual(t, combined.Hash, split.Hash)
}

func TestComputeStableDigest_OrderSensitive(t *testing.T) {
	a := computeStableDigest([]string{"gold", "wood"})
	b := computeStableDigest([]string{"wood", "gold"})
	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestComputeStableDigest_HashFormat(t *testing.T) {
	d := computeStableDigest([]string{"gold"})
	assert.Regexp(t, `^fnv1a-[0-9a-f]{8}$`, d.Hash)
}
