package content

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simconfig "github.com/hansjm10/idle-simcore/internal/config"
	simcache "github.com/hansjm10/idle-simcore/internal/infrastructure/cache"
	"github.com/hansjm10/idle-simcore/pkg/simerrors"
)

func setupRedisValidationCache(t *testing.T) *RedisValidationCache {
	t.Helper()
	s := miniredis.RunT(t)
	t.Cleanup(s.Close)

	redisCache, err := simcache.NewRedisCache(simconfig.RedisConfig{
		URL:      "redis://" + s.Addr(),
		DB:       0,
		PoolSize: 10,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisCache.Close() })

	return NewRedisValidationCache(redisCache, time.Minute)
}

func TestRedisValidationCache_PutGet(t *testing.T) {
	c := setupRedisValidationCache(t)
	result := Result{Normalized: &NormalizedPack{Engine: 3, Digest: ResourceDefinitionDigest{IDs: []string{"gold"}, Version: 1, Hash: "fnv1a-deadbeef"}}}

	c.Put("fp-1", result)

	got, ok := c.Get("fp-1")
	require.True(t, ok)
	assert.Equal(t, 3, got.Normalized.Engine)
	assert.Equal(t, "fnv1a-deadbeef", got.Normalized.Digest.Hash)
}

func TestRedisValidationCache_MissReturnsFalse(t *testing.T) {
	c := setupRedisValidationCache(t)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestRedisValidationCache_RoundTripsWarnings(t *testing.T) {
	c := setupRedisValidationCache(t)
	result := Result{
		Normalized: &NormalizedPack{Engine: 1},
		Warnings: simerrors.ValidationErrors{
			{Code: "localization.coverageGap", Path: "resources[gold].name", Message: "missing fr variant", Severity: simerrors.SeverityWarning},
		},
	}

	c.Put("fp-warn", result)
	got, ok := c.Get("fp-warn")
	require.True(t, ok)
	require.Len(t, got.Warnings, 1)
	assert.Equal(t, "localization.coverageGap", got.Warnings[0].Code)
}
