package selector

import (
	"fmt"
	"slices"
	"sort"

	"github.com/kingrea/acta/internal/comms"
	"github.com/kingrea/acta/internal/failure"
	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/knowledge"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

// Selector is an allocation strategy.
type Selector interface {
	Name() string
	Select(ctx *Context) Assignment
}

// Context is the read-only view a selector decides on.
type Context struct {
	Tick int
	DT   float64
	// Seed is the run seed. Stochastic selectors derive their streams from it.
	Seed uint64

	// Workers is the start-of-tick worker state in ascending id order.
	Workers []*worker.Worker
	// Pool is the start-of-tick ground truth.
	Pool  *task.Pool
	Graph *comms.Graph

	Failure      failure.Model
	WorkerParams worker.Params
	Depot        geom.Point

	// RepairDuration is the depot's repair time in ticks.
	RepairDuration int

	// Knowledge holds each worker's local snapshot keyed by worker id.
	Knowledge map[int]*knowledge.Snapshot
}

// Worker returns the worker with the given id.
func (c *Context) Worker(id int) (*worker.Worker, bool) {
	i := sort.Search(len(c.Workers), func(i int) bool { return c.Workers[i].ID >= id })
	if i < len(c.Workers) && c.Workers[i].ID == id {
		return c.Workers[i], true
	}
	return nil, false
}

// KnowledgeOf returns the snapshot of worker id, or an empty one.
func (c *Context) KnowledgeOf(id int) *knowledge.Snapshot {
	if s, ok := c.Knowledge[id]; ok && s != nil {
		return s
	}
	return knowledge.New()
}

// InfoAge returns how many ticks old worker id's record of task is. Tasks the
// worker has never heard of report the current tick.
func (c *Context) InfoAge(workerID, taskID int) int {
	rec, ok := c.KnowledgeOf(workerID).Task(taskID)
	if !ok || rec.Tick > c.Tick {
		return c.Tick
	}
	return c.Tick - rec.Tick
}

// DirectiveKind enumerates what a directive asks of a worker.
type DirectiveKind string

const (
	// Keep leaves the worker's route untouched.
	Keep DirectiveKind = "keep"
	// Idle clears the route and releases every claim.
	Idle DirectiveKind = "idle"
	// Route replaces the route.
	Route DirectiveKind = "route"
	// Repair releases every claim and sends the worker to the depot for
	// planned maintenance.
	Repair DirectiveKind = "repair"
)

// Directive is the decision for one worker.
type Directive struct {
	Worker int
	Kind   DirectiveKind
	Route  []int
}

// Assignment is a selector's decision for one tick. Workers without a
// directive keep their route.
type Assignment struct {
	Directives map[int]Directive
	Notes      []Note
}

// NoteCode enumerates soft conditions a selector reports.
type NoteCode string

const (
	NoteExhaustedRounds NoteCode = "exhausted-rounds"
	NoteInfeasible      NoteCode = "infeasible"
	NoteConflict        NoteCode = "stale-claim-conflict"
)

// Note explains a soft condition. Worker and Task are -1 when not relevant.
type Note struct {
	Code   NoteCode
	Worker int
	Task   int
	Detail string
}

func (n Note) String() string {
	return fmt.Sprintf("%s worker=%d task=%d %s", n.Code, n.Worker, n.Task, n.Detail)
}

// Assign records a route directive.
func (a *Assignment) Assign(workerID int, route []int) {
	a.set(Directive{Worker: workerID, Kind: Route, Route: slices.Clone(route)})
}

// Idle records an idle directive.
func (a *Assignment) Idle(workerID int) {
	a.set(Directive{Worker: workerID, Kind: Idle})
}

// Repair records a planned maintenance directive.
func (a *Assignment) Repair(workerID int) {
	a.set(Directive{Worker: workerID, Kind: Repair})
}

// Keep records an explicit keep directive.
func (a *Assignment) Keep(workerID int) {
	a.set(Directive{Worker: workerID, Kind: Keep})
}

// Note appends a note.
func (a *Assignment) Note(code NoteCode, workerID, taskID int, format string, args ...any) {
	a.Notes = append(a.Notes, Note{Code: code, Worker: workerID, Task: taskID, Detail: fmt.Sprintf(format, args...)})
}

// Directive returns the directive for workerID, defaulting to Keep.
func (a Assignment) Directive(workerID int) Directive {
	if d, ok := a.Directives[workerID]; ok {
		return d
	}
	return Directive{Worker: workerID, Kind: Keep}
}

// Ordered returns the directives in ascending worker id order.
func (a Assignment) Ordered() []Directive {
	out := make([]Directive, 0, len(a.Directives))
	for _, d := range a.Directives {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Worker < out[j].Worker })
	return out
}

func (a *Assignment) set(d Directive) {
	if a.Directives == nil {
		a.Directives = make(map[int]Directive)
	}
	a.Directives[d.Worker] = d
}

// Claimed returns the task each worker is routed to first, keyed by task id.
// Used to check that no task is handed to two workers.
func (a Assignment) Claimed() map[int][]int {
	out := map[int][]int{}
	for _, d := range a.Ordered() {
		if d.Kind == Route && len(d.Route) > 0 {
			out[d.Route[0]] = append(out[d.Route[0]], d.Worker)
		}
	}
	return out
}
