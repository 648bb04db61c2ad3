package consensus

import (
	"math"

	"github.com/kingrea/acta/internal/comms"
	"github.com/kingrea/acta/internal/knowledge"
	"github.com/kingrea/acta/internal/selector"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

// held is the score a busy worker places on its current task.
var held = math.Inf(1)

// bid is one entry of a bid table.
type bid struct {
	Worker int
	Score  float64
}

// beats orders bids: higher score wins, ties go to the lower worker id.
func (b bid) beats(o bid) bool {
	if b.Score != o.Score {
		return b.Score > o.Score
	}
	return b.Worker < o.Worker
}

// table maps task id to the best bid a node has heard of.
type table map[int]bid

func (t table) clone() table {
	c := make(table, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

func (t table) winner(id int) int {
	if b, ok := t[id]; ok {
		return b.Worker
	}
	return -1
}

// merge folds other into t and reports whether t changed.
func (t table) merge(other table) bool {
	changed := false
	for id, b := range other {
		if mine, ok := t[id]; !ok || b.beats(mine) {
			t[id] = b
			changed = true
		}
	}
	return changed
}

type option struct {
	task  int
	score float64
}

// auction is the per-tick state of the consensus rounds.
type auction struct {
	ctx    *selector.Context
	graph  *comms.Graph
	params Params

	tables    map[int]table
	triggered []*worker.Worker
	options   map[int][]option
	bid       map[int]int
	stopped   map[int]bool
	converged map[int]bool
}

func newAuction(ctx *selector.Context, g *comms.Graph, p Params) *auction {
	a := &auction{
		ctx:       ctx,
		graph:     g,
		params:    p,
		tables:    map[int]table{},
		options:   map[int][]option{},
		bid:       map[int]int{},
		stopped:   map[int]bool{},
		converged: map[int]bool{},
	}
	for _, id := range g.IDs() {
		a.tables[id] = table{}
	}
	for _, w := range ctx.Workers {
		if _, ok := a.tables[w.ID]; !ok {
			continue
		}
		if triggered(ctx, w) {
			a.triggered = append(a.triggered, w)
			a.bid[w.ID] = -1
			a.options[w.ID] = a.candidates(w)
			continue
		}
		if id, ok := w.Target(); ok && w.Available() {
			a.tables[w.ID][id] = bid{Worker: w.ID, Score: held}
		}
	}
	return a
}

// candidates lists the tasks w believes it may take, scored.
func (a *auction) candidates(w *worker.Worker) []option {
	snap := a.ctx.KnowledgeOf(w.ID)
	var out []option
	for _, id := range a.ctx.Pool.IDs() {
		rec, ok := snap.Task(id)
		if !ok || rec.Status == task.Completed {
			continue
		}
		if rec.Status == task.Claimed && rec.Claimant != w.ID && !a.believedDown(snap.Workers, rec.Claimant) {
			continue
		}
		e := selector.EstimateLeg(selector.LegFor(w, a.ctx.WorkerParams, rec.Pos, rec.Remaining), a.ctx.Failure, a.ctx.WorkerParams)
		if math.IsInf(e.Time, 1) {
			continue
		}
		risk := e.FailProb*e.Time + float64(a.ctx.InfoAge(w.ID, id))*a.ctx.DT
		out = append(out, option{task: id, score: -(e.Time + a.params.AlphaRisk*risk)})
	}
	return out
}

func (a *auction) believedDown(workers map[int]knowledge.WorkerRecord, id int) bool {
	rec, ok := workers[id]
	return ok && (rec.Health == worker.Failed || rec.Health == worker.Repairing)
}

// run performs bidding and consensus rounds until every component converges
// or the round budget is spent. It returns the number of rounds used.
func (a *auction) run() int {
	comps := a.graph.Components()
	for round := 1; round <= a.params.MaxRounds; round++ {
		changed := map[int]bool{}
		for _, w := range a.triggered {
			if a.placeBid(w) {
				changed[a.graph.Component(w.ID)] = true
			}
		}
		before := make(map[int]table, len(a.tables))
		for id, t := range a.tables {
			before[id] = t.clone()
		}
		for _, id := range a.graph.IDs() {
			for _, nb := range a.graph.Neighbors(id) {
				if a.tables[id].merge(before[nb]) {
					changed[a.graph.Component(id)] = true
				}
			}
		}
		done := true
		for i := range comps {
			if !changed[i] {
				a.converged[i] = true
			}
			done = done && a.converged[i]
		}
		if done {
			return round
		}
	}
	return a.params.MaxRounds
}

// agreed reports whether every table in the component of worker that has
// heard of task names worker as its winner. Tables that never heard of the
// task cannot hold a competing bid, since a bidder always records its own bid.
func (a *auction) agreed(worker, task int) bool {
	if a.tables[worker].winner(task) != worker {
		return false
	}
	for id, t := range a.tables {
		if !a.graph.Connected(id, worker) {
			continue
		}
		if b, ok := t[task]; ok && b.Worker != worker {
			return false
		}
	}
	return true
}

// placeBid lets an undecided worker bid on the best task it can still win.
func (a *auction) placeBid(w *worker.Worker) bool {
	if a.stopped[w.ID] {
		return false
	}
	t := a.tables[w.ID]
	if cur := a.bid[w.ID]; cur >= 0 {
		if t.winner(cur) == w.ID {
			return false
		}
		a.bid[w.ID] = -1
		if a.params.OnLoss == Hold {
			a.stopped[w.ID] = true
			return false
		}
	}
	best := option{task: -1}
	for _, o := range a.options[w.ID] {
		mine := bid{Worker: w.ID, Score: o.score}
		if cur, ok := t[o.task]; ok && !mine.beats(cur) {
			continue
		}
		if best.task < 0 || o.score > best.score {
			best = o
		}
	}
	if best.task < 0 {
		return false
	}
	t[best.task] = bid{Worker: w.ID, Score: best.score}
	a.bid[w.ID] = best.task
	return true
}
