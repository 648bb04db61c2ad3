package main

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/acta/internal/params"
)

// keyValueFlag collects repeatable key=value overrides.
type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("override key is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = val
	return nil
}

func (kv *keyValueFlag) Type() string { return "key=value" }

// apply writes the overrides into dst. Values are parsed as YAML scalars so
// numbers and booleans keep their type.
func (kv keyValueFlag) apply(dst params.Map) error {
	for key, raw := range kv {
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		dst[key] = v
	}
	return nil
}
