package selector

import (
	"fmt"
	"math"

	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/params"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

// Visibility selects which view of the task pool a selector reads.
type Visibility string

const (
	VisibilityGlobal Visibility = "global"
	VisibilityLocal  Visibility = "local"
)

// NearestParams configures the nearest selector.
type NearestParams struct {
	Visibility Visibility `yaml:"visibility"`
}

// Nearest sends every idle worker to the closest unclaimed task.
type Nearest struct {
	visibility Visibility
}

// NewNearest builds a nearest selector from scenario parameters.
func NewNearest(p params.Map) (Selector, error) {
	np := NearestParams{Visibility: VisibilityGlobal}
	if err := params.Decode(p, &np); err != nil {
		return nil, err
	}
	switch np.Visibility {
	case "":
		np.Visibility = VisibilityGlobal
	case VisibilityGlobal, VisibilityLocal:
	default:
		return nil, fmt.Errorf("nearest: unknown visibility %q", np.Visibility)
	}
	return &Nearest{visibility: np.Visibility}, nil
}

// Name implements Selector.
func (n *Nearest) Name() string { return "nearest" }

type candidate struct {
	id  int
	pos geom.Point
}

// Select implements Selector.
func (n *Nearest) Select(ctx *Context) Assignment {
	var out Assignment
	taken := map[int]bool{}
	for _, w := range ctx.Workers {
		if !w.Available() {
			continue
		}
		if n.liveTarget(ctx, w) {
			continue
		}
		best, bestDist := worker.NoTask, math.Inf(1)
		for _, c := range n.candidates(ctx, w) {
			if taken[c.id] {
				continue
			}
			d := w.Pos.Dist(c.pos)
			if d < bestDist {
				best, bestDist = c.id, d
			}
		}
		if best == worker.NoTask {
			if len(w.Route) > 0 {
				out.Idle(w.ID)
			}
			continue
		}
		taken[best] = true
		out.Assign(w.ID, []int{best})
	}
	return out
}

func (n *Nearest) liveTarget(ctx *Context, w *worker.Worker) bool {
	id, ok := w.Target()
	if !ok {
		return false
	}
	if n.visibility == VisibilityLocal {
		rec, known := ctx.KnowledgeOf(w.ID).Task(id)
		return known && rec.Status != task.Completed
	}
	t, known := ctx.Pool.Get(id)
	return known && !t.Done()
}

// candidates are returned in ascending id order so distance ties resolve to
// the lowest task id.
func (n *Nearest) candidates(ctx *Context, w *worker.Worker) []candidate {
	var out []candidate
	if n.visibility == VisibilityLocal {
		snap := ctx.KnowledgeOf(w.ID)
		for _, id := range ctx.Pool.IDs() {
			rec, ok := snap.Task(id)
			if !ok || rec.Status == task.Completed {
				continue
			}
			if rec.Status == task.Claimed && rec.Claimant != w.ID {
				continue
			}
			out = append(out, candidate{id: id, pos: rec.Pos})
		}
		return out
	}
	for _, t := range ctx.Pool.Open() {
		if t.Status == task.Claimed && t.Claimant != w.ID {
			continue
		}
		out = append(out, candidate{id: t.ID, pos: t.Pos})
	}
	return out
}

// RegisterNearest installs the nearest selector under its class names.
func RegisterNearest(reg *Registry) {
	reg.MustRegister("nearest", NewNearest)
	reg.Alias("NearestIncompleteTaskSelector", "nearest")
}
