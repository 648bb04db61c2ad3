package sim

import (
	"errors"
	"maps"
	"slices"

	"github.com/kingrea/acta/internal/comms"
	"github.com/kingrea/acta/internal/knowledge"
	"github.com/kingrea/acta/internal/selector"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

// commit applies everything decided during tick in a fixed order: worker
// states, work, releases of unavailable workers, depot admission, selector
// directives, conflict reconciliation, then sensing and knowledge exchange.
func (s *Sim) commit(tick int, g *comms.Graph, next []*worker.Worker, outcomes []worker.Outcome, failed map[int]bool, plan selector.Assignment) {
	s.workers = next
	s.reindex()

	for i, w := range s.workers {
		o := outcomes[i]
		switch {
		case failed[w.ID]:
			s.stats.Failures++
			s.log.Warn("worker %d failed at fatigue %.3f", w.ID, w.Fatigue)
		case o.Failed:
			s.stats.Failures++
			s.log.Warn("worker %d failed: fatigue %.3f reached the failure threshold", w.ID, w.Fatigue)
		case o.Degraded:
			s.log.Info("worker %d degraded at fatigue %.3f", w.ID, w.Fatigue)
		case o.Repaired:
			s.stats.Repairs++
			s.log.Info("worker %d repaired", w.ID)
		}
		if o.Work > 0 && s.pool.ApplyWork(o.Task, w.ID, o.Work, tick) {
			s.log.Info("task %d completed by worker %d", o.Task, w.ID)
		}
	}

	for _, w := range s.workers {
		if w.Available() {
			continue
		}
		if released := s.pool.ReleaseWorker(w.ID); len(released) > 0 {
			s.log.Warn("worker %d is %s mid-task; task(s) %v returned to the pool", w.ID, w.Health, released)
		}
	}

	for _, w := range s.workers {
		if s.depot.arrive(w, tick) {
			s.log.Info("worker %d reached the repair depot", w.ID)
		}
	}
	for _, id := range s.depot.admit(s.index, tick) {
		w := s.index[id]
		if w.Health == worker.Operational {
			s.stats.Repairs++
			s.log.Info("worker %d repaired", id)
			continue
		}
		s.log.Info("worker %d under repair for %d ticks", id, w.RepairLeft)
	}

	s.applyDirectives(plan)
	for _, n := range plan.Notes {
		s.note(n)
	}
	if s.policy == task.YieldOnContact {
		s.yieldOnContact(g)
	}
	s.exchange(tick, g)
}

// applyDirectives validates and applies the selector's directives. Releases
// happen before claims so a task handed from one worker to another within a
// tick is not reported as a conflict.
func (s *Sim) applyDirectives(plan selector.Assignment) {
	var routes []selector.Directive
	for _, d := range plan.Ordered() {
		w, ok := s.index[d.Worker]
		if !ok || d.Kind == selector.Keep {
			continue
		}
		if !w.Available() {
			s.log.Info("dropped %s directive for worker %d: %s", d.Kind, d.Worker, w.Health)
			continue
		}
		switch d.Kind {
		case selector.Idle:
			s.pool.ReleaseWorker(w.ID)
			w.Clear()
		case selector.Repair:
			released := s.pool.ReleaseWorker(w.ID)
			if err := w.SendToRepair(); err != nil {
				continue
			}
			s.stats.PlannedRepairs++
			s.log.Info("worker %d sent to the depot for planned maintenance at fatigue %.3f, released %v", w.ID, w.Fatigue, released)
		case selector.Route:
			route := s.openRoute(d.Route)
			s.releaseExcept(w.ID, route)
			if len(route) == 0 {
				w.Clear()
				continue
			}
			w.Assign(route)
			routes = append(routes, selector.Directive{Worker: w.ID, Kind: selector.Route, Route: route})
		}
	}
	for _, d := range routes {
		for _, id := range d.Route {
			if err := s.pool.Claim(id, d.Worker); errors.Is(err, task.ErrClaimConflict) {
				s.conflict(d.Worker, id, err)
			}
		}
	}
}

// openRoute drops unknown, completed and repeated tasks.
func (s *Sim) openRoute(route []int) []int {
	out := make([]int, 0, len(route))
	for _, id := range route {
		t, ok := s.pool.Get(id)
		if !ok || t.Done() || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (s *Sim) releaseExcept(workerID int, keep []int) {
	for _, t := range s.pool.Tasks() {
		if t.Pursued(workerID) && !slices.Contains(keep, t.ID) {
			s.pool.Release(t.ID, workerID)
		}
	}
}

func (s *Sim) conflict(workerID, taskID int, err error) {
	key := [2]int{taskID, workerID}
	if s.conflicted[key] {
		return
	}
	s.conflicted[key] = true
	s.note(selector.Note{Code: selector.NoteConflict, Worker: workerID, Task: taskID, Detail: err.Error()})
}

func (s *Sim) note(n selector.Note) {
	switch n.Code {
	case selector.NoteExhaustedRounds:
		s.stats.ExhaustedRounds++
	case selector.NoteInfeasible:
		s.stats.Infeasible++
	case selector.NoteConflict:
		s.stats.Conflicts++
	}
	s.log.Warn("%s", n)
}

// yieldOnContact makes every contender that can hear the claimant give the
// task up.
func (s *Sim) yieldOnContact(g *comms.Graph) {
	for _, t := range s.pool.Tasks() {
		if t.Status != task.Claimed || len(t.Contenders) == 0 {
			continue
		}
		claimant := t.Claimant
		for _, c := range slices.Clone(t.Contenders) {
			if !g.Adjacent(c, claimant) {
				continue
			}
			s.pool.Release(t.ID, c)
			if w, ok := s.index[c]; ok {
				w.Drop(t.ID)
			}
			s.stats.Yields++
			s.log.Info("worker %d yields task %d to worker %d", c, t.ID, claimant)
		}
	}
}

// exchange lets every worker sense what lies within range, then spreads
// snapshots over the graph. The center only learns through Communicate.
func (s *Sim) exchange(tick int, g *comms.Graph) {
	tasks := s.pool.Tasks()
	for _, w := range s.workers {
		snap := s.knowledge[w.ID]
		snap.ObserveWorker(w, tick)
		for _, t := range tasks {
			if w.Pos.Within(t.Pos, s.commRange) {
				snap.ObserveTask(t, tick)
			}
		}
	}
	snaps := make(map[int]*knowledge.Snapshot, len(s.knowledge)+1)
	maps.Copy(snaps, s.knowledge)
	view := s.center.Snapshot()
	snaps[comms.CenterID] = view
	knowledge.Exchange(g, snaps, s.relay)
	s.center.Communicate(view)
}
