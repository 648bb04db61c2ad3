// Package consensus implements the decentralized allocator. Idle workers bid
// on tasks from their own knowledge and agree on winners by max-consensus
// over the bid tables of their communication neighbours. Agreement is local
// to a connected component; conflicts across components are left to the
// simulation's conflict policy.
package consensus

import (
	"fmt"
	"math"

	"github.com/kingrea/acta/internal/comms"
	"github.com/kingrea/acta/internal/params"
	"github.com/kingrea/acta/internal/selector"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

// LossPolicy decides what a worker that was outbid does next.
type LossPolicy string

const (
	// Rebid moves on to the next best candidate in the following round.
	Rebid LossPolicy = "rebid"
	// Hold stops bidding for the rest of the tick.
	Hold LossPolicy = "hold"
)

// Fallback is applied to workers whose bid was still contested when the
// round budget ran out.
type Fallback string

const (
	FallbackIdle Fallback = "idle"
	FallbackKeep Fallback = "keep"
)

// Params configures the selector.
type Params struct {
	AlphaRisk float64    `yaml:"alpha_risk"`
	MaxRounds int        `yaml:"max_rounds"`
	OnLoss    LossPolicy `yaml:"on_loss"`
	Fallback  Fallback   `yaml:"fallback"`
}

// DefaultParams returns the parameters used when a key is omitted.
func DefaultParams() Params {
	return Params{AlphaRisk: 1, MaxRounds: 5, OnLoss: Rebid, Fallback: FallbackIdle}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.AlphaRisk < 0 || math.IsNaN(p.AlphaRisk) {
		return fmt.Errorf("consensus: alpha_risk must be >= 0, got %v", p.AlphaRisk)
	}
	if p.MaxRounds < 1 {
		return fmt.Errorf("consensus: max_rounds must be >= 1, got %d", p.MaxRounds)
	}
	switch p.OnLoss {
	case Rebid, Hold:
	default:
		return fmt.Errorf("consensus: unknown on_loss %q", p.OnLoss)
	}
	switch p.Fallback {
	case FallbackIdle, FallbackKeep:
	default:
		return fmt.Errorf("consensus: unknown fallback %q", p.Fallback)
	}
	return nil
}

// Selector is the consensus-based allocator.
type Selector struct {
	params Params
	rounds int
}

// New builds the selector from scenario parameters.
func New(raw params.Map) (selector.Selector, error) {
	p := DefaultParams()
	if err := params.Decode(raw, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Selector{params: p}, nil
}

// Name implements selector.Selector.
func (s *Selector) Name() string { return "consensus" }

// Rounds returns the number of rounds the most recent Select used.
func (s *Selector) Rounds() int { return s.rounds }

// Select implements selector.Selector.
func (s *Selector) Select(ctx *selector.Context) selector.Assignment {
	var out selector.Assignment
	g := ctx.Graph
	if g == nil {
		g = isolated(ctx.Workers)
	}
	a := newAuction(ctx, g, s.params)
	if len(a.triggered) == 0 {
		s.rounds = 0
		return out
	}
	s.rounds = a.run()

	for _, w := range a.triggered {
		if id := a.bid[w.ID]; id >= 0 && a.agreed(w.ID, id) {
			out.Assign(w.ID, []int{id})
			continue
		}
		if !a.converged[g.Component(w.ID)] {
			out.Note(selector.NoteExhaustedRounds, w.ID, -1, "bid unresolved after %d rounds", s.params.MaxRounds)
			if s.params.Fallback == FallbackKeep {
				out.Keep(w.ID)
			} else if len(w.Route) > 0 {
				out.Idle(w.ID)
			}
			continue
		}
		if len(w.Route) > 0 {
			out.Idle(w.ID)
		}
	}
	return out
}

// triggered reports whether w should look for new work this tick: it has no
// target, or it believes its target is already completed.
func triggered(ctx *selector.Context, w *worker.Worker) bool {
	if !w.Available() {
		return false
	}
	id, ok := w.Target()
	if !ok {
		return true
	}
	rec, known := ctx.KnowledgeOf(w.ID).Task(id)
	return known && rec.Status == task.Completed
}

func isolated(workers []*worker.Worker) *comms.Graph {
	nodes := make([]comms.Node, 0, len(workers))
	for _, w := range workers {
		nodes = append(nodes, comms.Node{ID: w.ID, Pos: w.Pos})
	}
	return comms.Build(nodes, -1)
}

// Register installs the selector under its class names.
func Register(reg *selector.Registry) {
	reg.MustRegister("consensus", New)
	reg.Alias("ads", "consensus")
	reg.Alias("ADSBaseSelector", "consensus")
}
