package task

import (
	"fmt"
	"strings"
)

// ConflictPolicy decides how workers that pursue a task claimed by someone
// else (a stale claim from a disconnected component) are reconciled.
type ConflictPolicy string

const (
	// FirstCompletion lets every pursuer keep working; the worker that
	// completes the task is credited and the others release it once they
	// learn of the completion.
	FirstCompletion ConflictPolicy = "first_completion"
	// YieldOnContact makes a contender drop the task as soon as it is in
	// direct contact with the claimant.
	YieldOnContact ConflictPolicy = "yield_on_contact"
)

// ParseConflictPolicy validates a policy name. Empty selects FirstCompletion.
func ParseConflictPolicy(v string) (ConflictPolicy, error) {
	switch p := ConflictPolicy(strings.ToLower(strings.TrimSpace(v))); p {
	case "":
		return FirstCompletion, nil
	case FirstCompletion, YieldOnContact:
		return p, nil
	default:
		return "", fmt.Errorf("task: unknown conflict policy %q", v)
	}
}
