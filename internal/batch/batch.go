// Package batch runs one scenario over many seeds. Each seed is an
// independent single-threaded simulation; seeds run concurrently up to the
// configured parallelism and write their own output streams and logbook.
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kingrea/acta/internal/config"
	"github.com/kingrea/acta/internal/logbook"
	"github.com/kingrea/acta/internal/output"
	"github.com/kingrea/acta/internal/sim"
)

// Phase is the lifecycle stage reported in an Event.
type Phase string

const (
	PhaseStarted  Phase = "started"
	PhaseProgress Phase = "progress"
	PhaseFinished Phase = "finished"
	PhaseFailed   Phase = "failed"
)

// Event reports the progress of one seed. Events of different seeds may be
// delivered concurrently.
type Event struct {
	RunID    uuid.UUID
	Seed     uint64
	Phase    Phase
	Progress sim.Progress
	Result   *sim.Result
	Err      error
}

// Options configures a batch.
type Options struct {
	Seeds []uint64
	// Parallel caps concurrent seeds; zero uses GOMAXPROCS.
	Parallel int
	// OutputDir overrides the scenario's output_dir.
	OutputDir string
	// OnEvent, when set, must be safe for concurrent use.
	OnEvent func(Event)
	// Progress controls how often progress events are emitted, in ticks.
	// Zero reports only when a task completes.
	Progress int
}

// Report is the outcome of a batch, ordered by seed.
type Report struct {
	Scenario string
	Dir      string
	Results  []sim.Result
}

// OutputDir resolves where the streams of sc are written.
func OutputDir(sc *config.Scenario, override string) string {
	dir := override
	if dir == "" {
		dir = sc.OutputDir
	}
	if !filepath.IsAbs(dir) && sc.BaseDir != "" {
		dir = filepath.Join(sc.BaseDir, dir)
	}
	return filepath.Clean(dir)
}

// Run executes every seed. The first failing seed cancels the others.
func Run(ctx context.Context, sc *config.Scenario, opts Options) (Report, error) {
	if len(opts.Seeds) == 0 {
		return Report{}, fmt.Errorf("batch: no seeds")
	}
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	dir := OutputDir(sc, opts.OutputDir)
	report := Report{Scenario: sc.Name, Dir: dir}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	limiter := semaphore.NewWeighted(int64(parallel))
	for _, seed := range opts.Seeds {
		if err := limiter.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer limiter.Release(1)
			res, err := RunSeed(gctx, sc, seed, dir, opts.OnEvent, opts.Progress)
			if err != nil {
				return err
			}
			mu.Lock()
			report.Results = append(report.Results, res)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].Seed < report.Results[j].Seed })
	if err != nil {
		return report, err
	}
	return report, ctx.Err()
}

// RunSeed runs one seed, writing its streams and logbook under dir.
func RunSeed(ctx context.Context, sc *config.Scenario, seed uint64, dir string, onEvent func(Event), every int) (sim.Result, error) {
	id := sim.RunID(sc.Name, seed)
	emit := func(e Event) {
		if onEvent != nil {
			e.RunID, e.Seed = id, seed
			onEvent(e)
		}
	}
	fail := func(err error) (sim.Result, error) {
		err = fmt.Errorf("batch: seed %d: %w", seed, err)
		emit(Event{Phase: PhaseFailed, Err: err})
		return sim.Result{}, err
	}

	rec, err := output.Create(dir, sc.Name, seed)
	if err != nil {
		return fail(err)
	}
	defer rec.Close()
	lb, err := logbook.New(filepath.Join(dir, "logs", fmt.Sprintf("%s_seed%04d.log", sc.Name, seed)))
	if err != nil {
		return fail(err)
	}
	defer lb.Close()

	completed := 0
	s, err := sim.New(sc, seed,
		sim.WithRecorder(rec),
		sim.WithLogbook(lb),
		sim.WithObserver(func(p sim.Progress) {
			if p.Completed != completed || (every > 0 && p.Tick%every == 0) {
				completed = p.Completed
				emit(Event{Phase: PhaseProgress, Progress: p})
			}
		}),
	)
	if err != nil {
		return fail(err)
	}
	emit(Event{Phase: PhaseStarted, Progress: sim.Progress{MaxSteps: sc.Sim.MaxSteps, Tasks: len(sc.Tasks)}})
	res, err := s.Run(ctx)
	if err != nil {
		return fail(err)
	}
	if err := rec.Close(); err != nil {
		return fail(err)
	}
	emit(Event{Phase: PhaseFinished, Progress: sim.Progress{Tick: res.Steps, MaxSteps: sc.Sim.MaxSteps, Completed: res.Completed, Tasks: res.Tasks}, Result: &res})
	return res, nil
}
