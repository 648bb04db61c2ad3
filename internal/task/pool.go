package task

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/kingrea/acta/internal/geom"
)

var (
	// ErrUnknownTask is returned for ids that are not in the pool.
	ErrUnknownTask = errors.New("task: unknown task")
	// ErrCompleted is returned when claiming a completed task.
	ErrCompleted = errors.New("task: task already completed")
	// ErrClaimConflict is returned when a task is already claimed by another
	// worker. The requesting worker is recorded as a contender.
	ErrClaimConflict = errors.New("task: claimed by another worker")
)

// Pool owns every task of a run.
type Pool struct {
	tasks map[int]*Task
	ids   []int
}

// NewPool builds a pool. Task ids must be unique.
func NewPool(tasks []*Task) (*Pool, error) {
	p := &Pool{tasks: make(map[int]*Task, len(tasks))}
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if _, dup := p.tasks[t.ID]; dup {
			return nil, fmt.Errorf("task: duplicate id %d", t.ID)
		}
		p.tasks[t.ID] = t
		p.ids = append(p.ids, t.ID)
	}
	sort.Ints(p.ids)
	return p, nil
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	c := &Pool{tasks: make(map[int]*Task, len(p.tasks)), ids: slices.Clone(p.ids)}
	for id, t := range p.tasks {
		c.tasks[id] = t.Clone()
	}
	return c
}

// Len returns the number of tasks.
func (p *Pool) Len() int { return len(p.ids) }

// IDs returns task ids in ascending order.
func (p *Pool) IDs() []int { return slices.Clone(p.ids) }

// Get returns a task by id.
func (p *Pool) Get(id int) (*Task, bool) {
	t, ok := p.tasks[id]
	return t, ok
}

// Tasks returns every task in ascending id order.
func (p *Pool) Tasks() []*Task {
	out := make([]*Task, 0, len(p.ids))
	for _, id := range p.ids {
		out = append(out, p.tasks[id])
	}
	return out
}

// Open returns not-completed tasks in ascending id order.
func (p *Pool) Open() []*Task {
	var out []*Task
	for _, id := range p.ids {
		if t := p.tasks[id]; !t.Done() {
			out = append(out, t)
		}
	}
	return out
}

// AllCompleted reports whether every task is completed.
func (p *Pool) AllCompleted() bool {
	for _, t := range p.tasks {
		if !t.Done() {
			return false
		}
	}
	return true
}

// Position implements worker.TaskView.
func (p *Pool) Position(id int) (geom.Point, bool) {
	t, ok := p.tasks[id]
	if !ok {
		return geom.Point{}, false
	}
	return t.Pos, true
}

// Remaining implements worker.TaskView.
func (p *Pool) Remaining(id int) float64 {
	if t, ok := p.tasks[id]; ok {
		return t.Remaining
	}
	return 0
}

// Claim reserves id for worker. Claiming a task the worker already holds is
// a no-op. If another worker holds the claim the requester becomes a
// contender and ErrClaimConflict is returned.
func (p *Pool) Claim(id, worker int) error {
	t, ok := p.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTask, id)
	}
	switch t.Status {
	case Completed:
		return fmt.Errorf("%w: %d", ErrCompleted, id)
	case Unclaimed:
		t.Status = Claimed
		t.Claimant = worker
		return nil
	}
	if t.Claimant == worker {
		return nil
	}
	if !slices.Contains(t.Contenders, worker) {
		t.Contenders = append(t.Contenders, worker)
		sort.Ints(t.Contenders)
	}
	return fmt.Errorf("%w: task %d held by worker %d", ErrClaimConflict, id, t.Claimant)
}

// Release drops worker's interest in id. When the claimant releases, the
// lowest-id contender is promoted; with no contenders the task returns to
// Unclaimed.
func (p *Pool) Release(id, worker int) {
	t, ok := p.tasks[id]
	if !ok || t.Done() {
		return
	}
	t.Contenders = slices.DeleteFunc(t.Contenders, func(c int) bool { return c == worker })
	if t.Status != Claimed || t.Claimant != worker {
		return
	}
	if len(t.Contenders) > 0 {
		t.Claimant = t.Contenders[0]
		t.Contenders = t.Contenders[1:]
		return
	}
	t.Status = Unclaimed
	t.Claimant = NoWorker
}

// ReleaseWorker drops every claim and contention held by worker and returns
// the affected task ids.
func (p *Pool) ReleaseWorker(worker int) []int {
	var released []int
	for _, id := range p.ids {
		if p.tasks[id].Pursued(worker) {
			p.Release(id, worker)
			released = append(released, id)
		}
	}
	return released
}

// ClaimsOf returns the ids of tasks whose claim worker holds.
func (p *Pool) ClaimsOf(worker int) []int {
	var out []int
	for _, id := range p.ids {
		t := p.tasks[id]
		if t.Status == Claimed && t.Claimant == worker {
			out = append(out, id)
		}
	}
	return out
}

// ApplyWork consumes amount of remaining work on id on behalf of worker. It
// reports whether this call completed the task; the completing worker is
// credited as claimant.
func (p *Pool) ApplyWork(id, worker int, amount float64, tick int) bool {
	t, ok := p.tasks[id]
	if !ok || t.Done() || amount <= 0 {
		return false
	}
	t.Remaining -= amount
	if t.Remaining > 1e-9 {
		return false
	}
	t.Remaining = 0
	t.Status = Completed
	t.Claimant = worker
	t.Contenders = nil
	t.CompletedAt = tick
	return true
}

// LastCompletion returns the largest completion tick, or -1 when some task
// is still open.
func (p *Pool) LastCompletion() int {
	last := 0
	for _, t := range p.tasks {
		if !t.Done() {
			return -1
		}
		if t.CompletedAt > last {
			last = t.CompletedAt
		}
	}
	return last
}

// TotalRemaining sums remaining work over all tasks.
func (p *Pool) TotalRemaining() float64 {
	total := 0.0
	for _, id := range p.ids {
		total += p.tasks[id].Remaining
	}
	return total
}
