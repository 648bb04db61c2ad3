// Package params decodes the opaque `params:` blocks of a scenario file into
// typed structs.
package params

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Map is an untyped parameter block as it appears in YAML.
type Map map[string]any

// Decode re-encodes raw as YAML and strictly decodes it into out. Keys that do
// not map onto a field of out are reported as errors so typos surface before
// a run starts.
func Decode(raw Map, out any) error {
	if len(raw) == 0 {
		return nil
	}
	data, err := yaml.Marshal(map[string]any(raw))
	if err != nil {
		return fmt.Errorf("params: encode: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("params: %w", err)
	}
	return nil
}
