package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/acta/internal/knowledge"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

const scenarioYAML = `
scenario_name: toy
space: {width: 100, height: 100}
sim: {max_steps: 50}
command_center: {position: [50, 50]}
repair_depot: {position: [0, 0], repair_duration: 4}
communication: {range: 30}
failure_model:
  module: acta.sim.failure_models
  class: WeibullFailureModel
  params: {k: 1.5, lam: 200}
task_selection:
  class: nearest
workers_csv: tables/workers.csv
tasks_csv: tables/tasks.csv
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "tables"), 0755); err != nil {
		t.Fatal(err)
	}
	workers := "id,x,y,speed,service_rate,initial_H\n0,1,1,2,1,0.5\n1,2,2,2,1,\n"
	tasks := "id,x,y,total_work,remaining_work\n0,10,10,5,5\n1,20,20,4,\n"
	if err := os.WriteFile(filepath.Join(dir, "tables", "workers.csv"), []byte(workers), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "tables", "tasks.csv"), []byte(tasks), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(body)), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadResolvesTablesAndDefaults(t *testing.T) {
	sc, err := Load(writeScenario(t, scenarioYAML))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if sc.Sim.TimeStep != 1 {
		t.Fatalf("expected default time_step 1, got %v", sc.Sim.TimeStep)
	}
	if sc.OutputDir != "results" {
		t.Fatalf("expected default output dir, got %q", sc.OutputDir)
	}
	if !strings.HasPrefix(sc.WorkersCSV, filepath.Dir(sc.Path)) {
		t.Fatalf("expected workers_csv resolved next to scenario, got %s", sc.WorkersCSV)
	}
	if len(sc.Workers) != 2 || len(sc.Tasks) != 2 {
		t.Fatalf("expected 2 workers and 2 tasks, got %d and %d", len(sc.Workers), len(sc.Tasks))
	}
	if sc.Workers[0].InitialH != 0.5 || sc.Workers[1].InitialH != 0 {
		t.Fatalf("unexpected initial fatigue %v, %v", sc.Workers[0].InitialH, sc.Workers[1].InitialH)
	}
	if got := sc.Tasks[1].Remaining(); got != 4 {
		t.Fatalf("expected remaining work to default to total 4, got %v", got)
	}
	if sc.Relay() != knowledge.RelayMultiHop {
		t.Fatalf("expected default relay multi_hop, got %v", sc.Relay())
	}
	if sc.ConflictPolicy() != task.FirstCompletion {
		t.Fatalf("expected default conflict policy, got %v", sc.ConflictPolicy())
	}
	if sc.Range() != 30 {
		t.Fatalf("expected range 30, got %v", sc.Range())
	}
	if p := sc.WorkerParams(); p != worker.DefaultParams() {
		t.Fatalf("expected default worker params, got %+v", p)
	}

	pool, err := sc.BuildPool()
	if err != nil {
		t.Fatalf("BuildPool returned error: %v", err)
	}
	if pool.Len() != 2 {
		t.Fatalf("expected 2 pooled tasks, got %d", pool.Len())
	}
	if ws := sc.BuildWorkers(); ws[0].ID != 0 {
		t.Fatalf("expected first worker id 0, got %d", ws[0].ID)
	}
}

func TestParseInlineTablesAndWorkerModel(t *testing.T) {
	sc, err := Parse([]byte(`
scenario_name: inline
space: {width: 10, height: 10, range: 3}
sim: {max_steps: 5, time_step: 0.5}
communication: {relay: direct, conflict_policy: yield_on_contact}
task_selection: {class: consensus, params: {alpha_risk: 0}}
worker_model:
  fatigue_move: 2
  degraded_threshold: 10
  failure_threshold: .inf
  degraded_mode: work
  fatigue_reset: 0.5
workers:
  - {id: 3, x: 1, y: 1, speed: 1, service_rate: 1}
tasks:
  - {id: 1, x: 2, y: 2, total_work: 3, remaining_work: 1}
`), t.TempDir())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if sc.Range() != 3 {
		t.Fatalf("expected space.range fallback 3, got %v", sc.Range())
	}
	if sc.Relay() != knowledge.RelayDirect || sc.ConflictPolicy() != task.YieldOnContact {
		t.Fatalf("unexpected communication settings %v, %v", sc.Relay(), sc.ConflictPolicy())
	}
	if sc.FailureModel.Class != "none" {
		t.Fatalf("expected default failure class none, got %q", sc.FailureModel.Class)
	}

	p := sc.WorkerParams()
	if p.FatigueMove != 2 || p.FatigueWork != 1 || p.DegradedThreshold != 10 || p.FatigueReset != 0.5 {
		t.Fatalf("unexpected worker params %+v", p)
	}
	if p.DegradedMode != worker.DegradedWork {
		t.Fatalf("expected degraded mode work, got %v", p.DegradedMode)
	}
	if got := sc.Tasks[0].Remaining(); got != 1 {
		t.Fatalf("expected remaining work 1, got %v", got)
	}
}

func TestValidationFailures(t *testing.T) {
	base := func(mutate string) string {
		return `
scenario_name: bad
space: {width: 10, height: 10}
sim: {max_steps: 5}
communication: {range: 3}
task_selection: {class: nearest}
workers: [{id: 0, x: 1, y: 1, speed: 1, service_rate: 1}]
tasks: [{id: 0, x: 1, y: 1, total_work: 1}]
` + mutate
	}
	cases := map[string]struct {
		yaml  string
		field string
	}{
		"unknown key":      {base("colour: red"), "scenario"},
		"bad relay":        {strings.Replace(base(""), "range: 3", "range: 3, relay: carrier_pigeon", 1), "communication.relay"},
		"bad policy":       {strings.Replace(base(""), "range: 3", "range: 3, conflict_policy: duel", 1), "communication.conflict_policy"},
		"negative range":   {strings.Replace(base(""), "range: 3", "range: -1", 1), "communication.range"},
		"no steps":         {strings.Replace(base(""), "max_steps: 5", "max_steps: 0", 1), "sim.max_steps"},
		"no selector":      {strings.Replace(base(""), "class: nearest", "class: ''", 1), "task_selection.class"},
		"duplicate worker": {strings.Replace(base(""), "workers: [", "workers: [{id: 0, x: 2, y: 2, speed: 1, service_rate: 1}, ", 1), "workers[1]"},
		"slow worker":      {strings.Replace(base(""), "speed: 1,", "speed: 0,", 1), "workers[0]"},
		"outside space":    {strings.Replace(base(""), "x: 1, y: 1, total_work", "x: 11, y: 1, total_work", 1), "tasks[0]"},
		"overfull task":    {strings.Replace(base(""), "total_work: 1}", "total_work: 1, remaining_work: 2}", 1), "tasks[0]"},
		"bad throughput":   {base("worker_model: {degraded_throughput: 0}"), "worker_model.degraded_throughput"},
		"bad mode":         {base("worker_model: {degraded_mode: nap}"), "worker_model.degraded_mode"},
		"stranded failure": {base("worker_model: {failed_speed: 0}"), "worker_model.failed_speed"},
		"fast failure":     {base("worker_model: {failed_speed: 1.5}"), "worker_model.failed_speed"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), t.TempDir())
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q (%v)", tc.field, cfgErr.Field, err)
			}
		})
	}
}

func TestMissingTableFile(t *testing.T) {
	_, err := Parse([]byte(`
scenario_name: x
space: {width: 10, height: 10}
sim: {max_steps: 5}
communication: {range: 3}
task_selection: {class: nearest}
workers_csv: nowhere.csv
`), t.TempDir())
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Field != "workers_csv" {
		t.Fatalf("expected field workers_csv, got %q", cfgErr.Field)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a missing file error, got %v", err)
	}
}

func TestReadTablesRejectMissingColumns(t *testing.T) {
	_, err := ReadWorkers(strings.NewReader("id,x,y,speed\n0,1,1,1\n"))
	if err == nil || !strings.Contains(err.Error(), "service_rate") {
		t.Fatalf("expected missing service_rate error, got %v", err)
	}
	if _, err := ReadTasks(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for an empty table")
	}
	_, err = ReadTasks(strings.NewReader("id,x,y,total_work\n1.5,0,0,1\n"))
	if err == nil || !strings.Contains(err.Error(), "not an integer") {
		t.Fatalf("expected non-integer id error, got %v", err)
	}
}

func TestReadTasksIgnoresColumnOrderAndComments(t *testing.T) {
	ts, err := ReadTasks(strings.NewReader("# generated\ntotal_work,Y,X,ID\n3,2,1,7\n"))
	if err != nil {
		t.Fatalf("ReadTasks returned error: %v", err)
	}
	if len(ts) != 1 {
		t.Fatalf("expected 1 task, got %d", len(ts))
	}
	if want := (TaskSpec{ID: 7, X: 1, Y: 2, TotalWork: 3}); ts[0] != want {
		t.Fatalf("expected %+v, got %+v", want, ts[0])
	}
}
