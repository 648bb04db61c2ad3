package batch

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cast"
)

// ParseSeeds expands a seed list such as "0-4,9,12-13" into ascending,
// de-duplicated seeds.
func ParseSeeds(list string) ([]uint64, error) {
	var out []uint64
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := cast.ToUint64E(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("batch: seed %q: %w", part, err)
		}
		last := first
		if isRange {
			if last, err = cast.ToUint64E(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("batch: seed %q: %w", part, err)
			}
			if last < first {
				return nil, fmt.Errorf("batch: seed range %q is descending", part)
			}
		}
		for s := first; ; s++ {
			out = append(out, s)
			if s == last {
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("batch: no seeds in %q", list)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
