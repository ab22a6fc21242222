package managers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricManager_IncrementAndSet(t *testing.T) {
	mm := NewMetricManager([]string{"clicks"})

	v, ok := mm.Value("clicks")
	require := assert.New(t)
	require.True(ok)
	require.Equal(0.0, v)

	mm.Increment("clicks", 3)
	mm.Increment("clicks", 2)
	v, _ = mm.Value("clicks")
	require.Equal(5.0, v)

	mm.Set("clicks", 100)
	v, _ = mm.Value("clicks")
	require.Equal(100.0, v)

	_, ok = mm.Value("undeclared")
	require.False(ok, "undeclared metric without a counter or aggregate is unknown")
}

func TestMetricManager_AggregateTakesPrecedenceOverCounter(t *testing.T) {
	mm := NewMetricManager([]string{"totalOwned"})
	mm.Set("totalOwned", 7)
	mm.RegisterAggregate("totalOwned", func() float64 { return 42 })

	v, ok := mm.Value("totalOwned")
	assert.True(t, ok)
	assert.Equal(t, 42.0, v, "a registered aggregate must win over the plain counter")
}
