package sim

import (
	"github.com/google/uuid"

	"github.com/kingrea/acta/internal/worker"
)

// WorkerSummary is the end-of-run state of one worker.
type WorkerSummary struct {
	ID       int
	Health   worker.Health
	Fatigue  float64
	Distance float64
	WorkDone float64
	Failures int
}

// Result summarizes a run.
type Result struct {
	RunID    uuid.UUID
	Scenario string
	Seed     uint64
	Selector string

	Steps        int
	Tasks        int
	Completed    int
	AllCompleted bool
	// Makespan is the completion time of the last task, or the horizon when
	// some task is still open.
	Makespan   float64
	Distance   float64
	InfoAgeSum int

	Stats   Stats
	Workers []WorkerSummary
}

// Result summarizes the run so far.
func (s *Sim) Result() Result {
	res := Result{
		RunID:      RunID(s.name, s.seed),
		Scenario:   s.name,
		Seed:       s.seed,
		Selector:   s.selector.Name(),
		Steps:      s.tick,
		Tasks:      s.pool.Len(),
		Completed:  s.completed(),
		InfoAgeSum: s.center.AgeSum(s.tick),
		Stats:      s.stats,
	}
	res.AllCompleted = res.Completed == res.Tasks
	if last := s.pool.LastCompletion(); last >= 0 {
		res.Makespan = float64(last) * s.dt
	} else {
		res.Makespan = float64(s.maxSteps) * s.dt
	}
	for _, w := range s.workers {
		res.Distance += w.Distance
		res.Workers = append(res.Workers, WorkerSummary{
			ID:       w.ID,
			Health:   w.Health,
			Fatigue:  w.Fatigue,
			Distance: w.Distance,
			WorkDone: w.WorkDone,
			Failures: w.Failures,
		})
	}
	return res
}
