// Package knowledge models what a participant believes about tasks and
// workers. Every record carries the tick at which it was observed; merging two
// snapshots keeps the fresher record per id (last writer wins).
package knowledge

import (
	"sort"

	"github.com/kingrea/acta/internal/geom"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

// TaskRecord is a remembered view of one task.
type TaskRecord struct {
	Pos       geom.Point
	Remaining float64
	Status    task.Status
	Claimant  int
	Tick      int
}

// WorkerRecord is a remembered view of one worker.
type WorkerRecord struct {
	Pos     geom.Point
	Fatigue float64
	Health  worker.Health
	Target  int
	Tick    int
}

// Snapshot is a set of timestamped records.
type Snapshot struct {
	Tasks   map[int]TaskRecord
	Workers map[int]WorkerRecord
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{Tasks: map[int]TaskRecord{}, Workers: map[int]WorkerRecord{}}
}

// Clone returns a copy that shares nothing with s.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Tasks:   make(map[int]TaskRecord, len(s.Tasks)),
		Workers: make(map[int]WorkerRecord, len(s.Workers)),
	}
	for id, r := range s.Tasks {
		c.Tasks[id] = r
	}
	for id, r := range s.Workers {
		c.Workers[id] = r
	}
	return c
}

// ObserveTask records ground truth about t at tick.
func (s *Snapshot) ObserveTask(t *task.Task, tick int) {
	s.Tasks[t.ID] = TaskRecord{
		Pos:       t.Pos,
		Remaining: t.Remaining,
		Status:    t.Status,
		Claimant:  t.Claimant,
		Tick:      tick,
	}
}

// ObserveWorker records ground truth about w at tick.
func (s *Snapshot) ObserveWorker(w *worker.Worker, tick int) {
	target, _ := w.Target()
	s.Workers[w.ID] = WorkerRecord{
		Pos:     w.Pos,
		Fatigue: w.Fatigue,
		Health:  w.Health,
		Target:  target,
		Tick:    tick,
	}
}

// Merge folds other into s, keeping the fresher record per id. Equal ticks
// keep the existing record. It reports whether anything changed.
func (s *Snapshot) Merge(other *Snapshot) bool {
	if other == nil {
		return false
	}
	changed := false
	for id, r := range other.Tasks {
		if mine, ok := s.Tasks[id]; !ok || r.Tick > mine.Tick {
			s.Tasks[id] = r
			changed = true
		}
	}
	for id, r := range other.Workers {
		if mine, ok := s.Workers[id]; !ok || r.Tick > mine.Tick {
			s.Workers[id] = r
			changed = true
		}
	}
	return changed
}

// Task returns the record for id.
func (s *Snapshot) Task(id int) (TaskRecord, bool) {
	r, ok := s.Tasks[id]
	return r, ok
}

// Worker returns the record for id.
func (s *Snapshot) Worker(id int) (WorkerRecord, bool) {
	r, ok := s.Workers[id]
	return r, ok
}

// Kind distinguishes task and worker records in age reports.
type Kind string

const (
	KindTask   Kind = "task"
	KindWorker Kind = "worker"
)

// Age is the information age of one record.
type Age struct {
	Kind Kind
	ID   int
	Age  int
}

// Ages returns the information age of every record at tick, tasks first,
// each group in ascending id order.
func (s *Snapshot) Ages(tick int) []Age {
	out := make([]Age, 0, len(s.Tasks)+len(s.Workers))
	for _, id := range sortedKeys(s.Tasks) {
		out = append(out, Age{Kind: KindTask, ID: id, Age: age(tick, s.Tasks[id].Tick)})
	}
	for _, id := range sortedKeys(s.Workers) {
		out = append(out, Age{Kind: KindWorker, ID: id, Age: age(tick, s.Workers[id].Tick)})
	}
	return out
}

// AgeSum returns the summed information age at tick.
func (s *Snapshot) AgeSum(tick int) int {
	total := 0
	for _, a := range s.Ages(tick) {
		total += a.Age
	}
	return total
}

func age(now, then int) int {
	if now < then {
		return 0
	}
	return now - then
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
