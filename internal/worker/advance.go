package worker

import (
	"math"

	"github.com/kingrea/acta/internal/geom"
)

// DegradedMode selects what a degraded worker does.
type DegradedMode string

const (
	// DegradedRepair drops the assignment and heads to the repair depot.
	DegradedRepair DegradedMode = "repair"
	// DegradedWork keeps working at reduced throughput until it fails.
	DegradedWork DegradedMode = "work"
)

// Params configures fatigue accrual and health thresholds. Zero thresholds
// are treated as disabled.
type Params struct {
	FatigueMove        float64
	FatigueWork        float64
	DegradedThreshold  float64
	FailureThreshold   float64
	DegradedThroughput float64
	FailedSpeed        float64
	FatigueReset       float64
	DegradedMode       DegradedMode
}

// DefaultParams mirrors the scenario defaults.
func DefaultParams() Params {
	return Params{
		FatigueMove:        1,
		FatigueWork:        1,
		DegradedThroughput: 0.5,
		FailedSpeed:        0.5,
		FatigueReset:       1,
		DegradedMode:       DegradedRepair,
	}
}

func threshold(v float64) float64 {
	if v <= 0 {
		return math.Inf(1)
	}
	return v
}

// EffectiveSpeed returns the movement speed for the current health.
func (w *Worker) EffectiveSpeed(p Params) float64 {
	if w.Health == Failed {
		return w.Speed * p.FailedSpeed
	}
	return w.Speed
}

// EffectiveRate returns the processing rate for the current health.
func (w *Worker) EffectiveRate(p Params) float64 {
	switch w.Health {
	case Operational:
		return w.Rate
	case Degraded:
		return w.Rate * p.DegradedThroughput
	default:
		return 0
	}
}

// TaskView exposes the start-of-tick task state a worker may act on.
type TaskView interface {
	Position(id int) (geom.Point, bool)
	Remaining(id int) float64
}

// Outcome reports what a single Advance did so the caller can batch the
// effects on shared state.
type Outcome struct {
	Task     int
	Work     float64
	Moved    float64
	Arrived  bool
	AtDepot  bool
	Degraded bool
	Failed   bool
	Repaired bool
}

// Advance moves the worker forward by one tick of length dt. It mutates only
// the receiver; work performed on tasks is reported in the Outcome.
func (w *Worker) Advance(dt float64, p Params, depot geom.Point, tasks TaskView) Outcome {
	out := Outcome{Task: NoTask}
	switch {
	case w.Health == Repairing:
		done, _ := w.TickRepair(p.FatigueReset)
		out.Repaired = done
		return out
	case w.SeekingRepair:
		w.moveTo(depot, w.EffectiveSpeed(p)*dt, &out)
		if w.Pos.Equal(depot) {
			w.AtDepot = true
			out.AtDepot = true
		}
		return out
	case !w.Available():
		return out
	}

	target, ok := w.Target()
	if !ok {
		return out
	}
	pos, known := tasks.Position(target)
	if !known {
		return out
	}
	speed := w.EffectiveSpeed(p)
	covered := w.moveTo(pos, speed*dt, &out)
	moveTime := 0.0
	if speed > 0 {
		moveTime = covered / speed
	}
	workTime := 0.0
	if out.Arrived {
		left := dt - moveTime
		rate := w.EffectiveRate(p)
		remaining := tasks.Remaining(target)
		if left > geom.Epsilon && rate > 0 && remaining > 0 {
			work := math.Min(rate*left, remaining)
			workTime = work / rate
			out.Task = target
			out.Work = work
			w.WorkDone += work
			w.WorkedOn = target
		}
	}
	w.Fatigue += p.FatigueMove*moveTime + p.FatigueWork*workTime

	switch {
	case w.Fatigue >= threshold(p.FailureThreshold):
		if w.Fail() == nil {
			out.Failed = true
		}
	case w.Health == Operational && w.Fatigue >= threshold(p.DegradedThreshold):
		if w.Degrade(p.DegradedMode != DegradedWork) == nil {
			out.Degraded = true
		}
	}
	return out
}

func (w *Worker) moveTo(target geom.Point, maxDist float64, out *Outcome) float64 {
	next, covered, arrived := geom.MoveToward(w.Pos, target, maxDist)
	w.Pos = next
	w.Distance += covered
	out.Moved += covered
	out.Arrived = arrived
	return covered
}
