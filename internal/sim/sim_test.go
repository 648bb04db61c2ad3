package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/acta/internal/config"
	"github.com/kingrea/acta/internal/logbook"
	"github.com/kingrea/acta/internal/output"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

func scenario(t *testing.T, doc string) *config.Scenario {
	t.Helper()
	sc, err := config.Parse([]byte(doc), t.TempDir())
	require.NoError(t, err)
	return sc
}

const repairScenario = `
scenario_name: repair
space: {width: 10, height: 10}
sim: {max_steps: 40}
communication: {range: 20}
command_center: {position: [0, 0]}
repair_depot: {position: [0, 0], repair_duration: 4, capacity: 1}
task_selection: {class: nearest}
worker_model: {failure_threshold: 0.5}
workers:
  - {id: 0, x: 0, y: 0, speed: 1, service_rate: 1}
tasks:
  - {id: 1, x: 0, y: 0, total_work: 100}
`

func TestRepairLastsExactlyRepairDuration(t *testing.T) {
	s, err := New(scenario(t, repairScenario), 1)
	require.NoError(t, err)

	start := -1
	for start < 0 && !s.Done() {
		require.NoError(t, s.Step())
		w, _ := s.Worker(0)
		if w.Health == worker.Repairing {
			start = s.Tick()
			assert.Equal(t, start, w.RepairStartedAt)
		}
	}
	if start < 0 {
		t.Fatalf("worker never entered repair")
	}
	for s.Tick() < start+4 {
		w, _ := s.Worker(0)
		if w.Health != worker.Repairing {
			t.Fatalf("tick %d: expected repairing, got %s", s.Tick(), w.Health)
		}
		require.NoError(t, s.Step())
	}
	w, _ := s.Worker(0)
	assert.Equal(t, worker.Operational, w.Health)
	assert.Zero(t, w.Fatigue, "fatigue_reset defaults to a full reset")
	assert.Equal(t, 1, s.Stats().Failures)
	assert.Equal(t, 1, s.Stats().Repairs)
}

func TestFailedWorkerReleasesItsTask(t *testing.T) {
	s, err := New(scenario(t, repairScenario), 1)
	require.NoError(t, err)
	require.NoError(t, s.Step())
	tk, _ := s.Pool().Get(1)
	assert.Equal(t, task.Claimed, tk.Status)

	require.NoError(t, s.Step())
	w, _ := s.Worker(0)
	assert.Equal(t, worker.Failed, w.Health)
	assert.Empty(t, w.Route)
	tk, _ = s.Pool().Get(1)
	assert.Equal(t, task.Unclaimed, tk.Status)
	assert.Equal(t, 99.0, tk.Remaining)
}

const smallConsensus = `
scenario_name: small
space: {width: 30, height: 30}
sim: {max_steps: 200}
communication: {range: 100}
command_center: {position: [0, 0]}
repair_depot: {position: [0, 0]}
task_selection:
  class: consensus
  params: {max_rounds: 5, alpha_risk: 0}
workers:
  - {id: 0, x: 0, y: 0, speed: 1, service_rate: 1}
  - {id: 1, x: 10, y: 0, speed: 1, service_rate: 1}
tasks:
  - {id: 1, x: 5, y: 5, total_work: 2}
  - {id: 2, x: 20, y: 0, total_work: 2}
  - {id: 3, x: 0, y: 20, total_work: 2}
`

func TestConsensusCompletesWithoutDuplicateClaims(t *testing.T) {
	run := func() (Result, string) {
		var c, tk, w bytes.Buffer
		rec := output.New("small", 0, output.Writers{Commander: &c, Tasks: &tk, Workers: &w})
		s, err := New(scenario(t, smallConsensus), 0, WithRecorder(rec))
		require.NoError(t, err)
		for !s.Done() {
			require.NoError(t, s.Step())
			for _, tsk := range s.Pool().Tasks() {
				if len(tsk.Contenders) > 0 {
					t.Fatalf("tick %d: task %d has contenders %v", s.Tick(), tsk.ID, tsk.Contenders)
				}
			}
			targets := map[int]int{}
			for _, wk := range s.Workers() {
				if id, ok := wk.Target(); ok {
					if tsk, _ := s.Pool().Get(id); !tsk.Done() {
						if other, dup := targets[id]; dup {
							t.Fatalf("tick %d: workers %d and %d both pursue task %d", s.Tick(), other, wk.ID, id)
						}
						targets[id] = wk.ID
					}
				}
			}
		}
		require.NoError(t, rec.Flush())
		return s.Result(), c.String() + tk.String() + w.String()
	}

	first, firstOut := run()
	assert.True(t, first.AllCompleted)
	assert.Equal(t, 3, first.Completed)
	assert.Zero(t, first.Stats.Conflicts)
	assert.Zero(t, first.Stats.ExhaustedRounds)
	// Worker 0 wins task 1 on the tie and then task 3; that chain of travel
	// and work is the critical path. Each leg starts one tick after the
	// decision that assigns it.
	toTask1 := math.Hypot(5, 5) + 2
	toTask3 := math.Hypot(5, 15) + 2
	assert.GreaterOrEqual(t, first.Steps, int(math.Ceil(toTask1+toTask3)))
	assert.LessOrEqual(t, first.Steps, 1+int(math.Ceil(toTask1))+1+int(math.Ceil(toTask3)))

	second, secondOut := run()
	assert.Equal(t, first, second)
	assert.Equal(t, firstOut, secondOut)
}

const chain = `
scenario_name: chain
space: {width: 40, height: 10}
sim: {max_steps: 200}
communication: {range: 5}
command_center: {position: [0, 0]}
repair_depot: {position: [0, 0]}
task_selection:
  class: consensus
  params: {max_rounds: 5, alpha_risk: 0}
workers:
  - {id: 0, x: 0, y: 0, speed: 1, service_rate: 1}
  - {id: 1, x: 4, y: 0, speed: 1, service_rate: 1}
  - {id: 2, x: 8, y: 0, speed: 1, service_rate: 1}
  - {id: 3, x: 12, y: 0, speed: 1, service_rate: 1}
  - {id: 4, x: 16, y: 0, speed: 1, service_rate: 1}
  - {id: 5, x: 20, y: 0, speed: 1, service_rate: 1}
  - {id: 6, x: 24, y: 0, speed: 1, service_rate: 1}
  - {id: 7, x: 28, y: 0, speed: 1, service_rate: 1}
tasks:
  - {id: 1, x: 0, y: 1, total_work: 2}
  - {id: 2, x: 4, y: 1, total_work: 2}
  - {id: 3, x: 8, y: 1, total_work: 2}
  - {id: 4, x: 12, y: 1, total_work: 2}
  - {id: 5, x: 16, y: 1, total_work: 2}
  - {id: 6, x: 20, y: 1, total_work: 2}
  - {id: 7, x: 24, y: 1, total_work: 2}
  - {id: 8, x: 28, y: 1, total_work: 2}
`

func TestConsensusAssignsAcrossAChainWiderThanMaxRounds(t *testing.T) {
	s, err := New(scenario(t, chain), 0)
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.AllCompleted)
	assert.Equal(t, 8, res.Completed)
	assert.Zero(t, res.Stats.ExhaustedRounds)
	assert.Zero(t, res.Stats.Conflicts)
	// One decision tick, then one unit of travel and two of work.
	assert.LessOrEqual(t, res.Steps, 1+3)
	for _, w := range res.Workers {
		assert.InDelta(t, 2.0, w.WorkDone, 1e-9, "worker %d works only its own task", w.ID)
	}
}

const stochastic = `
scenario_name: stochastic
space: {width: 40, height: 40}
sim: {max_steps: 120, time_step: 1}
communication: {range: 12, relay: direct}
command_center: {position: [20, 20]}
repair_depot: {position: [0, 0], repair_duration: 3, capacity: 1}
failure_model:
  class: WeibullFailureModel
  params: {k: 2, lam: 6}
worker_model: {degraded_threshold: 4, degraded_mode: work}
workers:
  - {id: 0, x: 0, y: 0, speed: 2, service_rate: 1}
  - {id: 1, x: 40, y: 0, speed: 2, service_rate: 1}
  - {id: 2, x: 20, y: 40, speed: 1.5, service_rate: 2}
tasks:
  - {id: 1, x: 5, y: 30, total_work: 3}
  - {id: 2, x: 35, y: 10, total_work: 2}
  - {id: 3, x: 18, y: 18, total_work: 4}
  - {id: 4, x: 30, y: 35, total_work: 1}
  - {id: 5, x: 10, y: 5, total_work: 2}
`

func TestSameSeedProducesIdenticalStreams(t *testing.T) {
	selectors := map[string]string{
		"nearest":   "task_selection: {class: nearest, params: {visibility: local}}\n",
		"planner":   "task_selection: {class: central_planner, params: {interval: 10, pop_size: 16, generations: 8, L_max: 3}}\n",
		"consensus": "task_selection: {class: ads, params: {alpha_risk: 1, max_rounds: 4}}\n",
	}
	for name, sel := range selectors {
		t.Run(name, func(t *testing.T) {
			run := func(seed uint64) (Result, string, []logbook.Entry) {
				var c, tk, w bytes.Buffer
				rec := output.New("stochastic", seed, output.Writers{Commander: &c, Tasks: &tk, Workers: &w})
				lb := logbook.NewWriter(nil)
				s, err := New(scenario(t, stochastic+sel), seed, WithRecorder(rec), WithLogbook(lb))
				require.NoError(t, err)
				res, err := s.Run(context.Background())
				require.NoError(t, err)
				require.NoError(t, rec.Flush())
				return res, c.String() + tk.String() + w.String(), lb.Entries()
			}
			a, aOut, aLog := run(7)
			b, bOut, bLog := run(7)
			assert.Equal(t, a, b)
			assert.Equal(t, aOut, bOut)
			assert.Equal(t, aLog, bLog)
			assert.Equal(t, RunID("stochastic", 7), a.RunID)
		})
	}
}

const contested = `
scenario_name: contested
space: {width: 100, height: 100}
sim: {max_steps: 50}
communication: {range: 2.5, conflict_policy: %s}
command_center: {position: [50, 50]}
repair_depot: {position: [50, 90]}
task_selection: {class: consensus}
workers:
  - {id: 0, x: 0, y: 0, speed: 1, service_rate: 1}
  - {id: 1, x: 10, y: 0, speed: 1, service_rate: 1}
tasks:
  - {id: 7, x: 5, y: 0, total_work: 10}
`

func TestDisconnectedWorkersConflict(t *testing.T) {
	for _, tc := range []struct {
		policy     string
		yields     int
		contenders int
		route      int
	}{
		{policy: "first_completion", yields: 0, contenders: 1, route: 1},
		{policy: "yield_on_contact", yields: 1, contenders: 0, route: 0},
	} {
		t.Run(tc.policy, func(t *testing.T) {
			s, err := New(scenario(t, fmt.Sprintf(contested, tc.policy)), 3)
			require.NoError(t, err)

			require.NoError(t, s.Step())
			assert.Equal(t, 1, s.Stats().Conflicts)
			tk, _ := s.Pool().Get(7)
			assert.Equal(t, 0, tk.Claimant)
			assert.Equal(t, []int{1}, tk.Contenders)

			// The workers close in on the task and first hear each other at
			// the start of tick 6.
			for range 5 {
				require.NoError(t, s.Step())
			}
			assert.Equal(t, tc.yields, s.Stats().Yields)
			tk, _ = s.Pool().Get(7)
			assert.Len(t, tk.Contenders, tc.contenders)
			w1, _ := s.Worker(1)
			assert.Len(t, w1.Route, tc.route)
			assert.Equal(t, 1, s.Stats().Conflicts, "a conflict is reported once")

			res, err := s.Run(context.Background())
			require.NoError(t, err)
			assert.True(t, res.AllCompleted)
		})
	}
}

func TestUnknownSelectorIsAConfigurationError(t *testing.T) {
	sc := scenario(t, smallConsensus)
	sc.TaskSelection.Class = "nearset"
	_, err := New(sc, 0)
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Equal(t, "task_selection", cfgErr.Field)
	assert.Contains(t, err.Error(), `did you mean "nearest"`)
}

func TestRunHonoursCancellation(t *testing.T) {
	s, err := New(scenario(t, smallConsensus), 0)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Steps)
	assert.False(t, res.AllCompleted)
	assert.Equal(t, 200.0, res.Makespan)
}

func TestObserverSeesEveryStep(t *testing.T) {
	var ticks []int
	s, err := New(scenario(t, smallConsensus), 0, WithObserver(func(p Progress) {
		ticks = append(ticks, p.Tick)
		assert.Equal(t, 3, p.Tasks)
	}))
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, ticks, res.Steps+1)
	assert.Equal(t, 0, ticks[0])
	assert.Equal(t, res.Steps, ticks[len(ticks)-1])
}
