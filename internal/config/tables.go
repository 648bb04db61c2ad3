package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/kingrea/acta/internal/worker"
)

var (
	workerColumns = []string{"id", "x", "y", "speed", "service_rate"}
	taskColumns   = []string{"id", "x", "y", "total_work"}
)

// LoadWorkers reads a worker table from path.
func LoadWorkers(path string) ([]WorkerSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadWorkers(f)
}

// LoadTasks reads a task table from path.
func LoadTasks(path string) ([]TaskSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTasks(f)
}

// ReadWorkers parses `id,x,y,speed,service_rate[,initial_h]` rows. Column
// order follows the header; header names are case-insensitive.
func ReadWorkers(r io.Reader) ([]WorkerSpec, error) {
	var out []WorkerSpec
	err := readTable(r, workerColumns, func(row record) error {
		w := WorkerSpec{}
		var err error
		if w.ID, err = row.int("id"); err != nil {
			return err
		}
		if w.X, err = row.float("x"); err != nil {
			return err
		}
		if w.Y, err = row.float("y"); err != nil {
			return err
		}
		if w.Speed, err = row.float("speed"); err != nil {
			return err
		}
		if w.ServiceRate, err = row.float("service_rate"); err != nil {
			return err
		}
		if row.has("initial_h") {
			if w.InitialH, err = row.float("initial_h"); err != nil {
				return err
			}
		}
		out = append(out, w)
		return nil
	})
	return out, err
}

// ReadTasks parses `id,x,y,total_work[,remaining_work]` rows.
func ReadTasks(r io.Reader) ([]TaskSpec, error) {
	var out []TaskSpec
	err := readTable(r, taskColumns, func(row record) error {
		t := TaskSpec{}
		var err error
		if t.ID, err = row.int("id"); err != nil {
			return err
		}
		if t.X, err = row.float("x"); err != nil {
			return err
		}
		if t.Y, err = row.float("y"); err != nil {
			return err
		}
		if t.TotalWork, err = row.float("total_work"); err != nil {
			return err
		}
		if row.has("remaining_work") {
			rem, err := row.float("remaining_work")
			if err != nil {
				return err
			}
			t.RemainingWork = &rem
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

type record struct {
	line   int
	index  map[string]int
	fields []string
}

func (r record) has(col string) bool {
	i, ok := r.index[col]
	return ok && i < len(r.fields) && strings.TrimSpace(r.fields[i]) != ""
}

func (r record) raw(col string) (string, error) {
	i, ok := r.index[col]
	if !ok || i >= len(r.fields) {
		return "", fmt.Errorf("line %d: missing %s", r.line, col)
	}
	return strings.TrimSpace(r.fields[i]), nil
}

func (r record) float(col string) (float64, error) {
	s, err := r.raw(col)
	if err != nil {
		return 0, err
	}
	v, err := cast.ToFloat64E(s)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", r.line, col, err)
	}
	return v, nil
}

// int accepts integral floats such as "3.0", which spreadsheet exports emit.
func (r record) int(col string) (int, error) {
	v, err := r.float(col)
	if err != nil {
		return 0, err
	}
	if v != float64(int(v)) {
		return 0, fmt.Errorf("line %d: %s: %v is not an integer", r.line, col, v)
	}
	return int(v), nil
}

func readTable(r io.Reader, required []string, fn func(record) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("empty table")
	}
	if err != nil {
		return err
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("header is missing column %q", col)
		}
	}
	line := 1
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line++
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		if err := fn(record{line: line, index: index, fields: fields}); err != nil {
			return err
		}
	}
}

func sortWorkers(ws []*worker.Worker) {
	sort.Slice(ws, func(i, j int) bool { return ws[i].ID < ws[j].ID })
}
