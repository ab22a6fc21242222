package content

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML-encoded content pack and runs it through Parse.
// The cache key is Fingerprint(raw), the fingerprint of the raw bytes.
func (v *Validator) ParseYAML(raw []byte) (Result, error) {
	var pack Pack
	if err := yaml.Unmarshal(raw, &pack); err != nil {
		return Result{}, fmt.Errorf("decode content pack yaml: %w", err)
	}

	return v.Parse(pack, Fingerprint(raw)), nil
}
