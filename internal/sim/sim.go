// Package sim runs one scenario for one seed. Every tick reads a single
// start-of-tick snapshot (communication graph, failure draws, worker advance,
// selector) and applies the resulting mutations in one commit, so the order in
// which workers are visited never changes the outcome.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/kingrea/acta/internal/command"
	"github.com/kingrea/acta/internal/comms"
	"github.com/kingrea/acta/internal/config"
	"github.com/kingrea/acta/internal/failure"
	"github.com/kingrea/acta/internal/knowledge"
	"github.com/kingrea/acta/internal/logbook"
	"github.com/kingrea/acta/internal/rng"
	"github.com/kingrea/acta/internal/selector"
	"github.com/kingrea/acta/internal/selectors"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
	"github.com/kingrea/acta/plugins"
)

// Recorder receives the state of every step, including step 0.
type Recorder interface {
	Record(step int, ages []knowledge.Age, pool *task.Pool, workers []*worker.Worker) error
}

// Progress is reported to observers after every step.
type Progress struct {
	Tick      int
	MaxSteps  int
	Completed int
	Tasks     int
}

// Option customizes a simulation.
type Option func(*Sim)

// WithLogbook routes soft conditions into lb.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(s *Sim) {
		if lb != nil {
			s.log = lb
		}
	}
}

// WithRecorder streams every step to rec.
func WithRecorder(rec Recorder) Option {
	return func(s *Sim) { s.rec = rec }
}

// WithSelectors resolves the task selector from reg instead of the built-ins.
func WithSelectors(reg *selector.Registry) Option {
	return func(s *Sim) { s.selectors = reg }
}

// WithFailureModels resolves the failure model from reg instead of the
// built-ins.
func WithFailureModels(reg *failure.Registry) Option {
	return func(s *Sim) { s.failures = reg }
}

// WithObserver calls fn after every step.
func WithObserver(fn func(Progress)) Option {
	return func(s *Sim) { s.observe = fn }
}

// Sim is a single-threaded simulation of one scenario and seed.
type Sim struct {
	name      string
	seed      uint64
	dt        float64
	maxSteps  int
	commRange float64
	relay     knowledge.Relay
	policy    task.ConflictPolicy
	params    worker.Params

	tick    int
	started bool

	workers   []*worker.Worker
	index     map[int]*worker.Worker
	pool      *task.Pool
	center    *command.Center
	knowledge map[int]*knowledge.Snapshot
	depot     *depot
	draws     map[int]*rand.Rand

	model    failure.Model
	selector selector.Selector

	selectors  *selector.Registry
	failures   *failure.Registry
	log        *logbook.Logbook
	rec        Recorder
	observe    func(Progress)
	conflicted map[[2]int]bool
	stats      Stats
}

// Stats counts the soft conditions of a run.
type Stats struct {
	Failures        int
	Repairs         int
	PlannedRepairs  int
	Conflicts       int
	Yields          int
	ExhaustedRounds int
	Infeasible      int
}

// New prepares a run of sc with seed. Unknown failure or selector classes
// and invalid class parameters are reported as *config.ConfigurationError.
func New(sc *config.Scenario, seed uint64, opts ...Option) (*Sim, error) {
	if sc == nil {
		return nil, fmt.Errorf("sim: scenario is required")
	}
	s := &Sim{
		name:       sc.Name,
		seed:       seed,
		dt:         sc.Sim.TimeStep,
		maxSteps:   sc.Sim.MaxSteps,
		commRange:  sc.Range(),
		relay:      sc.Relay(),
		policy:     sc.ConflictPolicy(),
		params:     sc.WorkerParams(),
		knowledge:  map[int]*knowledge.Snapshot{},
		draws:      map[int]*rand.Rand{},
		conflicted: map[[2]int]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.failures == nil {
		s.failures = failure.DefaultRegistry()
		plugins.RegisterFailureScript(s.failures)
	}
	if s.selectors == nil {
		s.selectors = selectors.Default()
	}

	model, err := s.failures.Resolve(sc.FailureModel.Class, sc.FailureModel.Params, sc.BaseDir)
	if err != nil {
		return nil, config.Wrap("failure_model", err)
	}
	sel, err := s.selectors.Resolve(sc.TaskSelection.Class, sc.TaskSelection.Params)
	if err != nil {
		return nil, config.Wrap("task_selection", err)
	}
	s.model, s.selector = model, sel

	pool, err := sc.BuildPool()
	if err != nil {
		return nil, err
	}
	s.pool = pool
	s.workers = sc.BuildWorkers()
	s.reindex()
	s.center = command.New(sc.CommandCenter.Position.Point())
	s.depot = newDepot(sc.RepairDepot.Position.Point(), sc.RepairDepot.RepairDuration, sc.RepairDepot.Capacity, s.params.FatigueReset)

	// Everyone starts with full information.
	full := knowledge.New()
	for _, t := range s.pool.Tasks() {
		full.ObserveTask(t, 0)
	}
	for _, w := range s.workers {
		full.ObserveWorker(w, 0)
	}
	for _, w := range s.workers {
		s.knowledge[w.ID] = full.Clone()
		s.draws[w.ID] = rng.New(seed, rng.StreamFailure, uint64(w.ID))
	}
	s.center.Communicate(full)
	return s, nil
}

// Name returns the scenario name.
func (s *Sim) Name() string { return s.name }

// Seed returns the run seed.
func (s *Sim) Seed() uint64 { return s.seed }

// Selector returns the resolved selector.
func (s *Sim) Selector() selector.Selector { return s.selector }

// Tick returns the number of completed ticks.
func (s *Sim) Tick() int { return s.tick }

// Workers returns the live workers in ascending id order.
func (s *Sim) Workers() []*worker.Worker { return append([]*worker.Worker(nil), s.workers...) }

// Worker returns the live worker with id.
func (s *Sim) Worker(id int) (*worker.Worker, bool) {
	w, ok := s.index[id]
	return w, ok
}

// Pool returns the live task pool.
func (s *Sim) Pool() *task.Pool { return s.pool }

// Center returns the command center.
func (s *Sim) Center() *command.Center { return s.center }

// Knowledge returns worker id's snapshot.
func (s *Sim) Knowledge(id int) (*knowledge.Snapshot, bool) {
	snap, ok := s.knowledge[id]
	return snap, ok
}

// Stats returns the soft condition counters so far.
func (s *Sim) Stats() Stats { return s.stats }

// Done reports whether the run reached max_steps or completed every task.
func (s *Sim) Done() bool {
	return s.tick >= s.maxSteps || s.pool.AllCompleted()
}

// Run steps until Done or ctx is cancelled.
func (s *Sim) Run(ctx context.Context) (Result, error) {
	if err := s.start(); err != nil {
		return s.Result(), err
	}
	for !s.Done() {
		if err := ctx.Err(); err != nil {
			return s.Result(), err
		}
		if err := s.Step(); err != nil {
			return s.Result(), err
		}
	}
	res := s.Result()
	s.log.Info("run finished: %d/%d tasks completed, makespan %g", res.Completed, res.Tasks, res.Makespan)
	return res, nil
}

// Step advances the simulation by one tick.
func (s *Sim) Step() error {
	if err := s.start(); err != nil {
		return err
	}
	if s.Done() {
		return nil
	}
	s.tick++
	tick := s.tick
	s.log.SetTick(tick)

	g := s.graph()
	startWorkers := cloneWorkers(s.workers)
	startPool := s.pool.Clone()

	next := cloneWorkers(s.workers)
	failed := s.drawFailures(next)
	outcomes := make([]worker.Outcome, len(next))
	for i, w := range next {
		outcomes[i] = w.Advance(s.dt, s.params, s.depot.pos, startPool)
	}

	plan := s.selector.Select(&selector.Context{
		Tick:         tick,
		DT:           s.dt,
		Seed:         s.seed,
		Workers:      startWorkers,
		Pool:         startPool,
		Graph:        g,
		Failure:      s.model,
		WorkerParams: s.params,
		Depot:        s.depot.pos,
		Knowledge:    s.knowledge,

		RepairDuration: s.depot.duration,
	})

	s.commit(tick, g, next, outcomes, failed, plan)
	return s.record(tick)
}

func (s *Sim) start() error {
	if s.started {
		return nil
	}
	s.started = true
	s.log.SetTick(0)
	s.log.Info("run %s seed %d: %d workers, %d tasks, selector %s", s.name, s.seed, len(s.workers), s.pool.Len(), s.selector.Name())
	return s.record(0)
}

// graph builds the communication graph over workers and the center.
func (s *Sim) graph() *comms.Graph {
	nodes := make([]comms.Node, 0, len(s.workers)+1)
	nodes = append(nodes, s.center.Node())
	for _, w := range s.workers {
		nodes = append(nodes, comms.Node{ID: w.ID, Pos: w.Pos})
	}
	return comms.Build(nodes, s.commRange)
}

// drawFailures evaluates the failure model for every worker that can fail,
// over the fatigue accrued since its previous draw.
func (s *Sim) drawFailures(ws []*worker.Worker) map[int]bool {
	failed := map[int]bool{}
	for _, w := range ws {
		if w.Health != worker.Operational && w.Health != worker.Degraded {
			continue
		}
		h, dh := w.Exposure()
		p := s.model.Probability(h, dh)
		w.MarkExposed()
		if p <= 0 {
			continue
		}
		if s.draws[w.ID].Float64() < p && w.Fail() == nil {
			failed[w.ID] = true
		}
	}
	return failed
}

func (s *Sim) record(tick int) error {
	if s.rec != nil {
		if err := s.rec.Record(tick, s.center.InformationAge(tick), s.pool, s.workers); err != nil {
			return fmt.Errorf("sim: record step %d: %w", tick, err)
		}
	}
	if s.observe != nil {
		s.observe(Progress{Tick: tick, MaxSteps: s.maxSteps, Completed: s.completed(), Tasks: s.pool.Len()})
	}
	return nil
}

func (s *Sim) completed() int {
	n := 0
	for _, t := range s.pool.Tasks() {
		if t.Done() {
			n++
		}
	}
	return n
}

func (s *Sim) reindex() {
	s.index = make(map[int]*worker.Worker, len(s.workers))
	for _, w := range s.workers {
		s.index[w.ID] = w
	}
}

func cloneWorkers(ws []*worker.Worker) []*worker.Worker {
	out := make([]*worker.Worker, len(ws))
	for i, w := range ws {
		out[i] = w.Clone()
	}
	return out
}

// RunID derives a stable identifier for a scenario and seed.
func RunID(scenario string, seed uint64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("acta:%s/seed%04d", scenario, seed)))
}
