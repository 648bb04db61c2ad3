// Package task holds task positions, remaining work and claim state.
package task

import (
	"github.com/kingrea/acta/internal/geom"
)

// Status enumerates task claim states.
type Status string

const (
	Unclaimed Status = "unclaimed"
	Claimed   Status = "claimed"
	Completed Status = "completed"
)

// NoWorker marks the absence of a claimant.
const NoWorker = -1

// Task is a fixed-position unit of work.
type Task struct {
	ID        int
	Pos       geom.Point
	Total     float64
	Remaining float64
	Status    Status
	// Claimant is the single worker holding the claim while Status is
	// Claimed, and the completing worker once Completed.
	Claimant int
	// Contenders are workers pursuing the task without holding the claim.
	// They appear only after a conflict between disjoint parts of the
	// communication graph.
	Contenders []int
	// CompletedAt is the tick at which remaining work reached zero, or -1.
	CompletedAt int
}

// New returns an unclaimed task.
func New(id int, pos geom.Point, total, remaining float64) *Task {
	t := &Task{
		ID:          id,
		Pos:         pos,
		Total:       total,
		Remaining:   remaining,
		Status:      Unclaimed,
		Claimant:    NoWorker,
		CompletedAt: -1,
	}
	if t.Remaining <= 0 {
		t.Remaining = 0
		t.Status = Completed
		t.CompletedAt = 0
	}
	return t
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	c := *t
	c.Contenders = append([]int(nil), t.Contenders...)
	return &c
}

// Done reports whether the task is completed.
func (t *Task) Done() bool { return t.Status == Completed }

// Pursued reports whether worker holds the claim or contends for the task.
func (t *Task) Pursued(worker int) bool {
	if t.Claimant == worker && t.Status == Claimed {
		return true
	}
	for _, c := range t.Contenders {
		if c == worker {
			return true
		}
	}
	return false
}
