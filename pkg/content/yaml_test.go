package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYAML_DecodesMinimalPack(t *testing.T) {
	v := NewValidator(Options{})
	raw := []byte(`
engine: 1
resources:
  - id: gold
    name:
      default: Gold
    category: primary
    tier: 1
`)

	result, err := v.ParseYAML(raw)
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	require.NotNil(t, result.Normalized)
	assert.Equal(t, []string{"gold"}, result.Normalized.Digest.IDs)
}

func TestParseYAML_InvalidYamlIsError(t *testing.T) {
	v := NewValidator(Options{})
	_, err := v.ParseYAML([]byte("not: [valid: yaml"))
	assert.Error(t, err)
}
