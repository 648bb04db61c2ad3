// Package output writes the per-run CSV streams: the command center's
// information age, the task table and the worker table, one row per entity
// per step. Values are formatted deterministically so identical runs produce
// byte-identical files.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/kingrea/acta/internal/knowledge"
	"github.com/kingrea/acta/internal/task"
	"github.com/kingrea/acta/internal/worker"
)

// Stream names.
const (
	StreamCommander = "commander"
	StreamTasks     = "tasks"
	StreamWorkers   = "workers"
)

// KindSum marks the per-step information age total in the commander stream.
const KindSum = "sum"

var (
	commanderHeader = []string{"scenario", "seed", "step", "kind", "id", "info_age"}
	taskHeader      = []string{"scenario", "seed", "step", "task_id", "remaining_work", "status", "claimant", "finished_step"}
	workerHeader    = []string{"scenario", "seed", "step", "worker_id", "x", "y", "fatigue", "health", "cum_distance", "target"}
)

// FileName returns the file name of stream for scenario and seed.
func FileName(scenario string, seed uint64, stream string) string {
	return fmt.Sprintf("%s_seed%04d_%s.csv", scenario, seed, stream)
}

// Writers are the destinations of the three streams.
type Writers struct {
	Commander io.Writer
	Tasks     io.Writer
	Workers   io.Writer
}

// Recorder appends rows to the three streams.
type Recorder struct {
	scenario string
	seed     string

	commander *csv.Writer
	tasks     *csv.Writer
	workers   *csv.Writer
	closers   []io.Closer
	paths     []string
	err       error
}

// New returns a recorder over ws and writes the headers.
func New(scenario string, seed uint64, ws Writers) *Recorder {
	r := &Recorder{
		scenario:  scenario,
		seed:      strconv.FormatUint(seed, 10),
		commander: csv.NewWriter(ws.Commander),
		tasks:     csv.NewWriter(ws.Tasks),
		workers:   csv.NewWriter(ws.Workers),
	}
	r.write(r.commander, commanderHeader)
	r.write(r.tasks, taskHeader)
	r.write(r.workers, workerHeader)
	return r
}

// Create opens the three stream files under dir.
func Create(dir, scenario string, seed uint64) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: ensure %s: %w", dir, err)
	}
	var files []*os.File
	open := func(stream string) (*os.File, error) {
		f, err := os.Create(filepath.Join(dir, FileName(scenario, seed, stream)))
		if err != nil {
			for _, prev := range files {
				prev.Close()
			}
			return nil, fmt.Errorf("output: %w", err)
		}
		files = append(files, f)
		return f, nil
	}
	c, err := open(StreamCommander)
	if err != nil {
		return nil, err
	}
	t, err := open(StreamTasks)
	if err != nil {
		return nil, err
	}
	w, err := open(StreamWorkers)
	if err != nil {
		return nil, err
	}
	r := New(scenario, seed, Writers{Commander: c, Tasks: t, Workers: w})
	for _, f := range files {
		r.closers = append(r.closers, f)
		r.paths = append(r.paths, f.Name())
	}
	return r, nil
}

// Paths returns the files written by a recorder made with Create.
func (r *Recorder) Paths() []string { return append([]string(nil), r.paths...) }

// Record appends the rows of one step.
func (r *Recorder) Record(step int, ages []knowledge.Age, pool *task.Pool, workers []*worker.Worker) error {
	st := strconv.Itoa(step)
	sum := 0
	for _, a := range ages {
		sum += a.Age
		r.write(r.commander, []string{r.scenario, r.seed, st, string(a.Kind), strconv.Itoa(a.ID), strconv.Itoa(a.Age)})
	}
	r.write(r.commander, []string{r.scenario, r.seed, st, KindSum, "", strconv.Itoa(sum)})

	for _, t := range pool.Tasks() {
		finished := ""
		if t.Done() {
			finished = strconv.Itoa(t.CompletedAt)
		}
		r.write(r.tasks, []string{
			r.scenario, r.seed, st,
			strconv.Itoa(t.ID),
			formatFloat(t.Remaining),
			string(t.Status),
			optionalID(t.Claimant),
			finished,
		})
	}

	for _, w := range workers {
		target, _ := w.Target()
		r.write(r.workers, []string{
			r.scenario, r.seed, st,
			strconv.Itoa(w.ID),
			formatFloat(w.Pos.X),
			formatFloat(w.Pos.Y),
			formatFloat(w.Fatigue),
			string(w.Health),
			formatFloat(w.Distance),
			optionalID(target),
		})
	}
	return r.err
}

// Flush flushes every stream.
func (r *Recorder) Flush() error {
	for _, w := range []*csv.Writer{r.commander, r.tasks, r.workers} {
		w.Flush()
		if err := w.Error(); err != nil && r.err == nil {
			r.err = fmt.Errorf("output: flush: %w", err)
		}
	}
	return r.err
}

// Close flushes and closes the underlying files.
func (r *Recorder) Close() error {
	errs := []error{r.Flush()}
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Recorder) write(w *csv.Writer, row []string) {
	if r.err != nil {
		return
	}
	if err := w.Write(row); err != nil {
		r.err = fmt.Errorf("output: write: %w", err)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalID(id int) string {
	if id < 0 {
		return ""
	}
	return strconv.Itoa(id)
}
