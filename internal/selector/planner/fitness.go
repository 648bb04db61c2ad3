package planner

import (
	"math"
	"sort"

	"github.com/kingrea/acta/internal/failure"
	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/selector"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

// completionWeight scales the sum of route completion times so that makespan
// dominates and total time breaks ties. Each planned repair costs the same
// weight, so a repair that saves nothing loses the tie.
const completionWeight = 1e-3

// ceilingFactor inflates a leg that ends past the hard fatigue ceiling, where
// the worker is certain to fail.
const ceilingFactor = 1e3

// slot is one eligible worker as seen by the optimizer.
type slot struct {
	worker  int
	pos     geom.Point
	speed   float64
	rate    float64
	fatigue float64
	// pinned is the task the worker has already put work into, or -1.
	pinned int
}

type site struct {
	pos       geom.Point
	remaining float64
}

// problem is one planning instance.
type problem struct {
	slots   []slot
	free    []int
	sites   map[int]site
	lmax    int
	penalty float64
	model   failure.Model
	params  worker.Params

	depot      geom.Point
	repairTime float64
	repairProb float64
}

// newProblem snapshots the eligible workers and open tasks of ctx. Workers
// keep a committed task pinned at the head of their route.
func newProblem(ctx *selector.Context, lmax int, penalty, repairProb float64) *problem {
	pr := &problem{
		sites:      map[int]site{},
		lmax:       lmax,
		penalty:    penalty,
		model:      ctx.Failure,
		params:     ctx.WorkerParams,
		depot:      ctx.Depot,
		repairTime: float64(max(ctx.RepairDuration, 0)) * ctx.DT,
		repairProb: repairProb,
	}
	for _, t := range ctx.Pool.Open() {
		pr.sites[t.ID] = site{pos: t.Pos, remaining: t.Remaining}
	}
	pinned := map[int]bool{}
	for _, w := range ctx.Workers {
		if !w.Available() {
			continue
		}
		s := slot{
			worker:  w.ID,
			pos:     w.Pos,
			speed:   w.EffectiveSpeed(ctx.WorkerParams),
			rate:    w.EffectiveRate(ctx.WorkerParams),
			fatigue: w.Fatigue,
			pinned:  -1,
		}
		if id, ok := w.Committed(); ok && !pinned[id] {
			if t, open := ctx.Pool.Get(id); open && !t.Done() && t.Status != task.Unclaimed {
				s.pinned = id
				pinned[id] = true
			}
		}
		pr.slots = append(pr.slots, s)
	}
	for _, t := range ctx.Pool.Open() {
		if !pinned[t.ID] {
			pr.free = append(pr.free, t.ID)
		}
	}
	sort.Ints(pr.free)
	return pr
}

func (pr *problem) fixedPrefix(slot int) int {
	if pr.slots[slot].pinned >= 0 {
		return 1
	}
	return 0
}

// evaluate rolls every route out deterministically and returns
// makespan + completionWeight*(sum(route completion) + repairs) +
// penalty*unassigned.
func (pr *problem) evaluate(ind *Individual) float64 {
	makespan, total, repairs := 0.0, 0.0, 0
	for i, route := range ind.Routes {
		done, n := pr.routeTime(ind, i, route)
		total += done
		repairs += n
		makespan = math.Max(makespan, done)
	}
	return makespan + completionWeight*(total+float64(repairs)) + pr.penalty*float64(len(ind.Unassigned))
}

// routeTime returns the expected completion time of route for slot i and the
// number of repairs it plans. A repair flag on a worker without fatigue is
// ignored since there is nothing to reset.
func (pr *problem) routeTime(ind *Individual, i int, route []int) (float64, int) {
	s := pr.slots[i]
	pos, h, elapsed, repairs := s.pos, s.fatigue, 0.0, 0
	ceiling := pr.params.FailureThreshold
	for k, id := range route {
		if ind.repairBefore(i, k) && h > 0 {
			elapsed += pr.detour(s, pos) + pr.repairTime
			h *= 1 - pr.params.FatigueReset
			pos = pr.depot
			repairs++
		}
		st := pr.sites[id]
		e := selector.EstimateLeg(selector.Leg{
			From:      pos,
			To:        st.pos,
			Remaining: st.remaining,
			Speed:     s.speed,
			Rate:      s.rate,
			Fatigue:   h,
		}, pr.model, pr.params)
		if ceiling > 0 && e.Fatigue >= ceiling {
			e.Time *= ceilingFactor
		}
		elapsed += e.Time
		h = e.Fatigue
		pos = st.pos
	}
	return elapsed, repairs
}

// detour is the travel time from pos to the depot.
func (pr *problem) detour(s slot, pos geom.Point) float64 {
	dist := pos.Dist(pr.depot)
	if dist <= geom.Epsilon {
		return 0
	}
	if s.speed <= 0 {
		return math.Inf(1)
	}
	return dist / s.speed
}
