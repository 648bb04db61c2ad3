// Package config loads scenario files. A scenario names the world, the
// fleet, the task set, the failure model and the allocation strategy; worker
// and task tables may be inlined or referenced as CSV files next to the
// scenario.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/knowledge"
	"github.com/kingrea/acta/internal/params"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

const (
	defaultOutputDir = "results"
	defaultTimeStep  = 1.0
)

// Position is an [x, y] pair.
type Position [2]float64

// Point converts p to a geom.Point.
func (p Position) Point() geom.Point { return geom.Pt(p[0], p[1]) }

// Space is the rectangular world.
type Space struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	// Range is accepted as a fallback for communication.range.
	Range *float64 `yaml:"range,omitempty"`
}

// Sim holds the run horizon.
type Sim struct {
	MaxSteps int     `yaml:"max_steps"`
	TimeStep float64 `yaml:"time_step"`
}

// CommandCenter places the command center.
type CommandCenter struct {
	Position Position `yaml:"position"`
}

// RepairDepot places the depot and configures repairs.
type RepairDepot struct {
	Position       Position `yaml:"position"`
	RepairDuration int      `yaml:"repair_duration"`
	// Capacity bounds concurrent repairs; 0 means unlimited.
	Capacity int `yaml:"capacity"`
}

// Communication configures the range-gated graph.
type Communication struct {
	Range          *float64 `yaml:"range,omitempty"`
	Relay          string   `yaml:"relay"`
	ConflictPolicy string   `yaml:"conflict_policy"`
}

// ClassSpec names a pluggable component and its opaque parameters.
type ClassSpec struct {
	// Module is kept for compatibility with older scenario files and ignored.
	Module string     `yaml:"module,omitempty"`
	Class  string     `yaml:"class"`
	Params params.Map `yaml:"params,omitempty"`
}

// WorkerModel configures fatigue accrual and health thresholds. A zero
// threshold disables it.
type WorkerModel struct {
	FatigueMove        *float64 `yaml:"fatigue_move,omitempty"`
	FatigueWork        *float64 `yaml:"fatigue_work,omitempty"`
	DegradedThreshold  float64  `yaml:"degraded_threshold"`
	FailureThreshold   float64  `yaml:"failure_threshold"`
	DegradedThroughput *float64 `yaml:"degraded_throughput,omitempty"`
	FailedSpeed        *float64 `yaml:"failed_speed,omitempty"`
	FatigueReset       *float64 `yaml:"fatigue_reset,omitempty"`
	DegradedMode       string   `yaml:"degraded_mode"`
}

// WorkerSpec is one row of the worker table.
type WorkerSpec struct {
	ID          int     `yaml:"id"`
	X           float64 `yaml:"x"`
	Y           float64 `yaml:"y"`
	Speed       float64 `yaml:"speed"`
	ServiceRate float64 `yaml:"service_rate"`
	InitialH    float64 `yaml:"initial_h"`
}

// TaskSpec is one row of the task table. A nil RemainingWork means the task
// is untouched.
type TaskSpec struct {
	ID            int      `yaml:"id"`
	X             float64  `yaml:"x"`
	Y             float64  `yaml:"y"`
	TotalWork     float64  `yaml:"total_work"`
	RemainingWork *float64 `yaml:"remaining_work,omitempty"`
}

// Remaining returns the starting remaining work.
func (t TaskSpec) Remaining() float64 {
	if t.RemainingWork == nil {
		return t.TotalWork
	}
	return *t.RemainingWork
}

// Scenario models a scenario YAML file.
type Scenario struct {
	Name          string        `yaml:"scenario_name"`
	OutputDir     string        `yaml:"output_dir"`
	Space         Space         `yaml:"space"`
	Sim           Sim           `yaml:"sim"`
	CommandCenter CommandCenter `yaml:"command_center"`
	RepairDepot   RepairDepot   `yaml:"repair_depot"`
	Communication Communication `yaml:"communication"`
	FailureModel  ClassSpec     `yaml:"failure_model"`
	TaskSelection ClassSpec     `yaml:"task_selection"`
	WorkerModel   WorkerModel   `yaml:"worker_model"`

	WorkersCSV string       `yaml:"workers_csv,omitempty"`
	TasksCSV   string       `yaml:"tasks_csv,omitempty"`
	Workers    []WorkerSpec `yaml:"workers,omitempty"`
	Tasks      []TaskSpec   `yaml:"tasks,omitempty"`

	// Path is the file the scenario was loaded from, BaseDir its directory.
	Path    string `yaml:"-"`
	BaseDir string `yaml:"-"`

	relay  knowledge.Relay
	policy task.ConflictPolicy
}

// Load reads, defaults, normalizes and validates the scenario at path.
// Problems with the content are reported as *ConfigurationError.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sc, err := Parse(data, filepath.Dir(abs))
	if err != nil {
		return nil, err
	}
	sc.Path = abs
	return sc, nil
}

// Parse decodes scenario YAML. Relative table paths resolve against baseDir.
func Parse(data []byte, baseDir string) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ConfigurationError{Field: "scenario", Reason: "parse", Err: err}
	}
	sc.BaseDir = baseDir
	sc.applyDefaults()
	sc.normalize(baseDir)
	if err := sc.loadTables(); err != nil {
		return nil, err
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) applyDefaults() {
	if strings.TrimSpace(sc.OutputDir) == "" {
		sc.OutputDir = defaultOutputDir
	}
	if sc.Sim.TimeStep == 0 {
		sc.Sim.TimeStep = defaultTimeStep
	}
	if sc.Communication.Range == nil && sc.Space.Range != nil {
		r := *sc.Space.Range
		sc.Communication.Range = &r
	}
	if strings.TrimSpace(sc.FailureModel.Class) == "" {
		sc.FailureModel.Class = "none"
	}
}

func (sc *Scenario) normalize(base string) {
	sc.Name = strings.TrimSpace(sc.Name)
	sc.FailureModel.normalize()
	sc.TaskSelection.normalize()
	sc.WorkerModel.DegradedMode = normalizeName(sc.WorkerModel.DegradedMode)
	sc.Communication.Relay = normalizeName(sc.Communication.Relay)
	sc.Communication.ConflictPolicy = normalizeName(sc.Communication.ConflictPolicy)
	sc.WorkersCSV = resolvePath(base, sc.WorkersCSV)
	sc.TasksCSV = resolvePath(base, sc.TasksCSV)
}

func (cs *ClassSpec) normalize() {
	cs.Class = strings.TrimSpace(cs.Class)
	if cs.Params == nil {
		cs.Params = params.Map{}
	}
}

func (sc *Scenario) loadTables() error {
	if sc.WorkersCSV != "" {
		if len(sc.Workers) > 0 {
			return invalid("workers", "set either workers or workers_csv, not both")
		}
		ws, err := LoadWorkers(sc.WorkersCSV)
		if err != nil {
			return &ConfigurationError{Field: "workers_csv", Reason: "load", Err: err}
		}
		sc.Workers = ws
	}
	if sc.TasksCSV != "" {
		if len(sc.Tasks) > 0 {
			return invalid("tasks", "set either tasks or tasks_csv, not both")
		}
		ts, err := LoadTasks(sc.TasksCSV)
		if err != nil {
			return &ConfigurationError{Field: "tasks_csv", Reason: "load", Err: err}
		}
		sc.Tasks = ts
	}
	return nil
}

func (sc *Scenario) validate() error {
	if sc.Name == "" {
		return invalid("scenario_name", "is required")
	}
	if strings.ContainsAny(sc.Name, `/\`) {
		return invalid("scenario_name", "must not contain path separators")
	}
	if !(sc.Space.Width > 0) || !(sc.Space.Height > 0) {
		return invalid("space", "width and height must be > 0")
	}
	if sc.Sim.MaxSteps < 1 {
		return invalid("sim.max_steps", "must be >= 1, got %d", sc.Sim.MaxSteps)
	}
	if !(sc.Sim.TimeStep > 0) || math.IsInf(sc.Sim.TimeStep, 1) {
		return invalid("sim.time_step", "must be a positive number, got %v", sc.Sim.TimeStep)
	}
	if sc.Communication.Range == nil {
		return invalid("communication.range", "is required")
	}
	if r := *sc.Communication.Range; r < 0 || math.IsNaN(r) {
		return invalid("communication.range", "must be >= 0, got %v", r)
	}
	relay, err := knowledge.ParseRelay(sc.Communication.Relay)
	if err != nil {
		return invalid("communication.relay", "must be multi_hop or direct, got %q", sc.Communication.Relay)
	}
	sc.relay = relay
	policy, err := task.ParseConflictPolicy(sc.Communication.ConflictPolicy)
	if err != nil {
		return invalid("communication.conflict_policy", "must be first_completion or yield_on_contact, got %q", sc.Communication.ConflictPolicy)
	}
	sc.policy = policy
	if sc.RepairDepot.RepairDuration < 0 {
		return invalid("repair_depot.repair_duration", "must be >= 0, got %d", sc.RepairDepot.RepairDuration)
	}
	if sc.RepairDepot.Capacity < 0 {
		return invalid("repair_depot.capacity", "must be >= 0, got %d", sc.RepairDepot.Capacity)
	}
	if sc.TaskSelection.Class == "" {
		return invalid("task_selection.class", "is required")
	}
	if err := sc.WorkerModel.validate(); err != nil {
		return err
	}
	if err := sc.validateWorkers(); err != nil {
		return err
	}
	return sc.validateTasks()
}

func (wm WorkerModel) validate() error {
	for name, v := range map[string]float64{
		"worker_model.degraded_threshold": wm.DegradedThreshold,
		"worker_model.failure_threshold":  wm.FailureThreshold,
	} {
		if v < 0 || math.IsNaN(v) {
			return invalid(name, "must be >= 0, got %v", v)
		}
	}
	for name, v := range map[string]*float64{
		"worker_model.fatigue_move": wm.FatigueMove,
		"worker_model.fatigue_work": wm.FatigueWork,
	} {
		if v != nil && (*v < 0 || math.IsNaN(*v)) {
			return invalid(name, "must be >= 0, got %v", *v)
		}
	}
	if v := wm.DegradedThroughput; v != nil && !(*v > 0 && *v <= 1) {
		return invalid("worker_model.degraded_throughput", "must be in (0,1], got %v", *v)
	}
	if v := wm.FailedSpeed; v != nil && !(*v > 0 && *v <= 1) {
		return invalid("worker_model.failed_speed", "must be in (0,1], got %v", *v)
	}
	if v := wm.FatigueReset; v != nil && !(*v >= 0 && *v <= 1) {
		return invalid("worker_model.fatigue_reset", "must be in [0,1], got %v", *v)
	}
	switch worker.DegradedMode(wm.DegradedMode) {
	case "", worker.DegradedRepair, worker.DegradedWork:
	default:
		return invalid("worker_model.degraded_mode", "must be repair or work, got %q", wm.DegradedMode)
	}
	return nil
}

func (sc *Scenario) validateWorkers() error {
	if len(sc.Workers) == 0 {
		return invalid("workers", "at least one worker is required")
	}
	bounds := sc.Bounds()
	seen := map[int]bool{}
	for i, w := range sc.Workers {
		field := fmt.Sprintf("workers[%d]", i)
		switch {
		case w.ID < 0:
			return invalid(field, "id must be >= 0, got %d", w.ID)
		case seen[w.ID]:
			return invalid(field, "duplicate id %d", w.ID)
		case !(w.Speed > 0):
			return invalid(field, "speed must be > 0, got %v", w.Speed)
		case !(w.ServiceRate > 0):
			return invalid(field, "service_rate must be > 0, got %v", w.ServiceRate)
		case w.InitialH < 0 || math.IsNaN(w.InitialH):
			return invalid(field, "initial_h must be >= 0, got %v", w.InitialH)
		case !bounds.Contains(geom.Pt(w.X, w.Y)):
			return invalid(field, "position (%v, %v) is outside the space", w.X, w.Y)
		}
		seen[w.ID] = true
	}
	return nil
}

func (sc *Scenario) validateTasks() error {
	if len(sc.Tasks) == 0 {
		return invalid("tasks", "at least one task is required")
	}
	bounds := sc.Bounds()
	seen := map[int]bool{}
	for i, t := range sc.Tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		switch rem := t.Remaining(); {
		case seen[t.ID]:
			return invalid(field, "duplicate id %d", t.ID)
		case !(t.TotalWork > 0):
			return invalid(field, "total_work must be > 0, got %v", t.TotalWork)
		case rem < 0 || rem > t.TotalWork || math.IsNaN(rem):
			return invalid(field, "remaining_work must be in [0, total_work], got %v", rem)
		case !bounds.Contains(geom.Pt(t.X, t.Y)):
			return invalid(field, "position (%v, %v) is outside the space", t.X, t.Y)
		}
		seen[t.ID] = true
	}
	return nil
}

// Bounds returns the world rectangle.
func (sc *Scenario) Bounds() geom.Bounds {
	return geom.Bounds{Width: sc.Space.Width, Height: sc.Space.Height}
}

// Range returns the communication range.
func (sc *Scenario) Range() float64 {
	if sc.Communication.Range == nil {
		return 0
	}
	return *sc.Communication.Range
}

// Relay returns the validated knowledge relay mode.
func (sc *Scenario) Relay() knowledge.Relay {
	if sc.relay == "" {
		return knowledge.RelayMultiHop
	}
	return sc.relay
}

// ConflictPolicy returns the validated conflict policy.
func (sc *Scenario) ConflictPolicy() task.ConflictPolicy {
	if sc.policy == "" {
		return task.FirstCompletion
	}
	return sc.policy
}

// WorkerParams converts the worker model into worker.Params.
func (sc *Scenario) WorkerParams() worker.Params {
	p := worker.DefaultParams()
	wm := sc.WorkerModel
	setIf(&p.FatigueMove, wm.FatigueMove)
	setIf(&p.FatigueWork, wm.FatigueWork)
	setIf(&p.DegradedThroughput, wm.DegradedThroughput)
	setIf(&p.FailedSpeed, wm.FailedSpeed)
	setIf(&p.FatigueReset, wm.FatigueReset)
	p.DegradedThreshold = wm.DegradedThreshold
	p.FailureThreshold = wm.FailureThreshold
	if wm.DegradedMode != "" {
		p.DegradedMode = worker.DegradedMode(wm.DegradedMode)
	}
	return p
}

// BuildWorkers returns fresh workers in ascending id order.
func (sc *Scenario) BuildWorkers() []*worker.Worker {
	out := make([]*worker.Worker, 0, len(sc.Workers))
	for _, w := range sc.Workers {
		out = append(out, worker.New(w.ID, geom.Pt(w.X, w.Y), w.Speed, w.ServiceRate, w.InitialH))
	}
	sortWorkers(out)
	return out
}

// BuildPool returns a fresh task pool.
func (sc *Scenario) BuildPool() (*task.Pool, error) {
	tasks := make([]*task.Task, 0, len(sc.Tasks))
	for _, t := range sc.Tasks {
		tasks = append(tasks, task.New(t.ID, geom.Pt(t.X, t.Y), t.TotalWork, t.Remaining()))
	}
	pool, err := task.NewPool(tasks)
	if err != nil {
		return nil, Wrap("tasks", err)
	}
	return pool, nil
}

func setIf(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func normalizeName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}
