// Package worker implements the per-worker health and assignment lifecycle:
// movement, work, fatigue accrual, failure and repair.
//
// Health follows an explicit state machine:
//
//	Operational -> Degraded   fatigue crossed the soft threshold
//	Operational -> Failed     failure draw or hard fatigue ceiling
//	Operational -> Repairing  planned maintenance, only after SendToRepair
//	Degraded    -> Failed
//	Degraded    -> Repairing  arrived at the depot (repair mode)
//	Failed      -> Repairing  arrived at the depot
//	Repairing   -> Operational repair duration elapsed
//
// Every other transition is rejected with ErrTransition.
package worker

import (
	"errors"
	"fmt"
	"slices"

	"github.com/kingrea/acta/internal/geom"
)

// Health enumerates worker health states.
type Health string

const (
	Operational Health = "operational"
	Degraded    Health = "degraded"
	Failed      Health = "failed"
	Repairing   Health = "repairing"
)

// ErrTransition is returned for transitions the state machine forbids.
var ErrTransition = errors.New("worker: disallowed transition")

// NoTask marks the absence of a task id.
const NoTask = -1

func isAllowedTransition(from, to Health) bool {
	switch from {
	case Operational:
		return to == Degraded || to == Failed
	case Degraded:
		return to == Failed || to == Repairing
	case Failed:
		return to == Repairing
	case Repairing:
		return to == Operational
	default:
		return false
	}
}

// Worker is one mobile agent.
type Worker struct {
	ID    int
	Pos   geom.Point
	Speed float64
	Rate  float64

	Fatigue float64
	Health  Health
	// Route is the ordered list of task ids the worker is assigned. Route[0]
	// is the current target.
	Route []int
	// SeekingRepair is set while the worker heads to (or waits at) the depot.
	SeekingRepair bool
	AtDepot       bool

	RepairLeft      int
	RepairStartedAt int

	// WorkedOn is the task the worker has already put work into, or NoTask.
	WorkedOn int

	Distance float64
	WorkDone float64
	Failures int

	// exposed is the fatigue level already covered by failure draws.
	exposed float64
}

// New returns an operational worker with no assignment.
func New(id int, pos geom.Point, speed, rate, fatigue float64) *Worker {
	return &Worker{
		ID:       id,
		Pos:      pos,
		Speed:    speed,
		Rate:     rate,
		Fatigue:  fatigue,
		Health:   Operational,
		WorkedOn: NoTask,
		exposed:  fatigue,
	}
}

// Clone returns a deep copy.
func (w *Worker) Clone() *Worker {
	c := *w
	c.Route = slices.Clone(w.Route)
	return &c
}

// Transition moves the worker to a new health state if the state machine
// allows it.
func (w *Worker) Transition(to Health) error {
	if !isAllowedTransition(w.Health, to) && !w.maintenance(to) {
		return fmt.Errorf("%w: worker %d %s -> %s", ErrTransition, w.ID, w.Health, to)
	}
	w.Health = to
	return nil
}

// maintenance reports whether to is the planned repair of an operational
// worker that was sent to the depot.
func (w *Worker) maintenance(to Health) bool {
	return w.Health == Operational && to == Repairing && w.SeekingRepair
}

// Available reports whether the worker can take and perform work.
func (w *Worker) Available() bool {
	switch w.Health {
	case Operational, Degraded:
		return !w.SeekingRepair
	default:
		return false
	}
}

// Target returns the current target task.
func (w *Worker) Target() (int, bool) {
	if len(w.Route) == 0 {
		return NoTask, false
	}
	return w.Route[0], true
}

// Committed returns the current target if the worker has already performed
// work on it.
func (w *Worker) Committed() (int, bool) {
	id, ok := w.Target()
	if !ok || id != w.WorkedOn {
		return NoTask, false
	}
	return id, true
}

// Assign replaces the route.
func (w *Worker) Assign(route []int) {
	w.Route = slices.Clone(route)
	if id, ok := w.Target(); !ok || id != w.WorkedOn {
		w.WorkedOn = NoTask
	}
}

// Drop removes id from the route.
func (w *Worker) Drop(id int) {
	w.Route = slices.DeleteFunc(w.Route, func(v int) bool { return v == id })
	if w.WorkedOn == id {
		w.WorkedOn = NoTask
	}
}

// Clear removes every assignment.
func (w *Worker) Clear() {
	w.Route = nil
	w.WorkedOn = NoTask
}

// Exposure returns the fatigue interval not yet covered by a failure draw.
func (w *Worker) Exposure() (h, dh float64) {
	return w.exposed, w.Fatigue - w.exposed
}

// MarkExposed records that a failure draw covered all fatigue so far.
func (w *Worker) MarkExposed() {
	w.exposed = w.Fatigue
}

// Fail transitions the worker to Failed, dropping its assignment and any
// in-progress work. The worker heads for the repair depot from now on.
func (w *Worker) Fail() error {
	if err := w.Transition(Failed); err != nil {
		return err
	}
	w.Clear()
	w.SeekingRepair = true
	w.Failures++
	return nil
}

// SendToRepair drops the assignment of an available worker and sends it to
// the depot for planned maintenance.
func (w *Worker) SendToRepair() error {
	if !w.Available() {
		return fmt.Errorf("%w: worker %d is %s and cannot be sent to repair", ErrTransition, w.ID, w.Health)
	}
	w.Clear()
	w.SeekingRepair = true
	return nil
}

// Degrade transitions the worker to Degraded. When seekRepair is set the
// worker drops its assignment and heads to the depot.
func (w *Worker) Degrade(seekRepair bool) error {
	if err := w.Transition(Degraded); err != nil {
		return err
	}
	if seekRepair {
		w.Clear()
		w.SeekingRepair = true
	}
	return nil
}

// BeginRepair starts the repair countdown. A zero duration completes the
// repair immediately.
func (w *Worker) BeginRepair(tick, duration int, reset float64) error {
	if err := w.Transition(Repairing); err != nil {
		return err
	}
	w.Clear()
	w.RepairStartedAt = tick
	w.RepairLeft = duration
	if duration <= 0 {
		return w.finishRepair(reset)
	}
	return nil
}

// TickRepair decrements the repair countdown and reports whether the worker
// returned to Operational.
func (w *Worker) TickRepair(reset float64) (bool, error) {
	if w.Health != Repairing {
		return false, nil
	}
	if w.RepairLeft > 0 {
		w.RepairLeft--
	}
	if w.RepairLeft > 0 {
		return false, nil
	}
	return true, w.finishRepair(reset)
}

func (w *Worker) finishRepair(reset float64) error {
	if err := w.Transition(Operational); err != nil {
		return err
	}
	w.Fatigue *= 1 - reset
	if w.Fatigue < 0 {
		w.Fatigue = 0
	}
	w.exposed = w.Fatigue
	w.RepairLeft = 0
	w.SeekingRepair = false
	w.AtDepot = false
	w.Clear()
	return nil
}
