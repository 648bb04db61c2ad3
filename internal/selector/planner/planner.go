// Package planner implements the centralized route planner. On planning
// ticks it runs a genetic algorithm over per-worker routes using ground
// truth and publishes the best plan; between planning ticks it walks every
// worker along its stored route.
package planner

import (
	"fmt"
	"math"
	"slices"

	"github.com/kingrea/acta/internal/params"
	"github.com/kingrea/acta/internal/rng"
	"github.com/kingrea/acta/internal/selector"
	"github.com/kingrea/acta/internal/worker"
)

// Params configures the planner.
type Params struct {
	Interval       int     `yaml:"interval"`
	PopSize        int     `yaml:"pop_size"`
	Generations    int     `yaml:"generations"`
	ElitismRate    float64 `yaml:"elitism_rate"`
	Seed           uint64  `yaml:"seed"`
	LMax           int     `yaml:"L_max"`
	Trials         int     `yaml:"trials"`
	MutationRate   float64 `yaml:"mutation_rate"`
	TournamentSize int     `yaml:"tournament_size"`
	// Penalty is the fitness cost of one unassigned task.
	Penalty float64 `yaml:"penalty"`
	// RepairProb seeds the repair flags of the initial population. It
	// defaults to 1/L_max; zero disables planned repairs.
	RepairProb *float64 `yaml:"repair_prob,omitempty"`
}

// DefaultParams returns the parameters used when a key is omitted.
func DefaultParams() Params {
	return Params{
		Interval:       50,
		PopSize:        100,
		Generations:    100,
		ElitismRate:    0.1,
		LMax:           5,
		Trials:         1,
		MutationRate:   0.2,
		TournamentSize: 2,
		Penalty:        1e6,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.Interval < 1:
		return fmt.Errorf("planner: interval must be >= 1, got %d", p.Interval)
	case p.PopSize < 2:
		return fmt.Errorf("planner: pop_size must be >= 2, got %d", p.PopSize)
	case p.Generations < 0:
		return fmt.Errorf("planner: generations must be >= 0, got %d", p.Generations)
	case p.ElitismRate < 0 || p.ElitismRate > 1:
		return fmt.Errorf("planner: elitism_rate must be in [0,1], got %v", p.ElitismRate)
	case p.LMax < 1:
		return fmt.Errorf("planner: L_max must be >= 1, got %d", p.LMax)
	case p.Trials < 1:
		return fmt.Errorf("planner: trials must be >= 1, got %d", p.Trials)
	case p.MutationRate < 0 || p.MutationRate > 1:
		return fmt.Errorf("planner: mutation_rate must be in [0,1], got %v", p.MutationRate)
	case p.TournamentSize < 1:
		return fmt.Errorf("planner: tournament_size must be >= 1, got %d", p.TournamentSize)
	case p.Penalty <= 0:
		return fmt.Errorf("planner: penalty must be > 0, got %v", p.Penalty)
	case p.RepairProb != nil && (*p.RepairProb < 0 || *p.RepairProb > 1 || math.IsNaN(*p.RepairProb)):
		return fmt.Errorf("planner: repair_prob must be in [0,1], got %v", *p.RepairProb)
	}
	return nil
}

func (p Params) repairProb() float64 {
	if p.RepairProb != nil {
		return *p.RepairProb
	}
	return 1 / float64(p.LMax)
}

func (p Params) eliteCount() int {
	k := int(math.Floor(float64(p.PopSize) * p.ElitismRate))
	return min(max(1, k), p.PopSize)
}

// Planner is the centralized GA selector.
type Planner struct {
	params Params
	cycles int
	plan   map[int][]int
	// repairs marks, per worker, the planned tasks preceded by a depot visit.
	repairs map[int]map[int]bool
	last    []float64
}

// New builds a planner from scenario parameters.
func New(raw params.Map) (selector.Selector, error) {
	p := DefaultParams()
	if err := params.Decode(raw, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Planner{params: p, plan: map[int][]int{}, repairs: map[int]map[int]bool{}}, nil
}

// Name implements selector.Selector.
func (pl *Planner) Name() string { return "central_planner" }

// History returns the best-fitness trace of the winning trial of the most
// recent planning cycle.
func (pl *Planner) History() []float64 { return slices.Clone(pl.last) }

// PlanningTick reports whether tick triggers a new plan.
func (pl *Planner) PlanningTick(tick int) bool {
	return tick >= 1 && (tick-1)%pl.params.Interval == 0
}

// Select implements selector.Selector.
func (pl *Planner) Select(ctx *selector.Context) selector.Assignment {
	var out selector.Assignment
	if pl.PlanningTick(ctx.Tick) {
		pl.replan(ctx, &out)
	}
	for _, w := range ctx.Workers {
		if !w.Available() {
			// A worker on planned maintenance resumes its route afterwards.
			if w.Health == worker.Failed || w.Health == worker.Degraded {
				delete(pl.plan, w.ID)
				delete(pl.repairs, w.ID)
			}
			continue
		}
		route := slices.DeleteFunc(slices.Clone(pl.plan[w.ID]), func(id int) bool {
			t, ok := ctx.Pool.Get(id)
			return !ok || t.Done()
		})
		pl.plan[w.ID] = route
		if pl.repairDue(w, route) {
			out.Repair(w.ID)
			continue
		}
		if slices.Equal(route, w.Route) {
			continue
		}
		if len(route) == 0 {
			out.Idle(w.ID)
			continue
		}
		out.Assign(w.ID, route)
	}
	return out
}

// repairDue consumes the repair mark of the next task on route and reports
// whether w should visit the depot first. Workers without fatigue or already
// working on that task skip the visit.
func (pl *Planner) repairDue(w *worker.Worker, route []int) bool {
	if len(route) == 0 || !pl.repairs[w.ID][route[0]] {
		return false
	}
	delete(pl.repairs[w.ID], route[0])
	return w.Fatigue > 0 && w.WorkedOn != route[0]
}

func (pl *Planner) replan(ctx *selector.Context, out *selector.Assignment) {
	pr := newProblem(ctx, pl.params.LMax, pl.params.Penalty, pl.params.repairProb())
	if len(pr.slots) == 0 || len(pr.sites) == 0 {
		return
	}
	cfg := gaConfig{
		popSize:        pl.params.PopSize,
		generations:    pl.params.Generations,
		eliteCount:     pl.params.eliteCount(),
		mutationRate:   pl.params.MutationRate,
		tournamentSize: pl.params.TournamentSize,
	}
	base := rng.Seed(ctx.Seed, rng.StreamPlanner, pl.params.Seed)
	var best Result
	for trial := range pl.params.Trials {
		index := uint64(pl.cycles*pl.params.Trials + trial)
		res := run(pr, cfg, rng.New(base, rng.StreamPlanner, index))
		if best.Best == nil || res.Best.Fitness < best.Best.Fitness {
			best = res
		}
	}
	pl.cycles++
	pl.last = best.History

	pl.plan = make(map[int][]int, len(pr.slots))
	pl.repairs = make(map[int]map[int]bool, len(pr.slots))
	for i, s := range pr.slots {
		route := best.Best.Routes[i]
		pl.plan[s.worker] = slices.Clone(route)
		marks := map[int]bool{}
		for k, id := range route {
			if best.Best.repairBefore(i, k) {
				marks[id] = true
			}
		}
		pl.repairs[s.worker] = marks
	}
	for _, id := range best.Best.Unassigned {
		out.Note(selector.NoteInfeasible, -1, id, "no route capacity (L_max=%d)", pl.params.LMax)
	}
}

// Register installs the planner under its class names.
func Register(reg *selector.Registry) {
	reg.MustRegister("central_planner", New)
	reg.Alias("ga", "central_planner")
	reg.Alias("GABasedTaskSelector", "central_planner")
}
