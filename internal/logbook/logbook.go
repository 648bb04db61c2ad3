// Package logbook records the soft conditions of a run (failures, repairs,
// claim conflicts, exhausted consensus rounds, infeasible plans). Entries are
// stamped with the simulation tick rather than wall-clock time, so two runs
// of the same scenario and seed produce identical logbooks.
package logbook

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Entry is one logbook line.
type Entry struct {
	Tick    int
	Level   Level
	Message string
}

func (e Entry) String() string {
	return fmt.Sprintf("t=%04d %-5s %s", e.Tick, string(e.Level), e.Message)
}

// Logbook keeps entries in memory and mirrors them to an optional writer.
type Logbook struct {
	mu      sync.Mutex
	path    string
	w       io.Writer
	closer  io.Closer
	tick    int
	entries []Entry
	counts  map[Level]int
}

// New creates a logbook that also writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return &Logbook{path: path, w: f, closer: f, counts: map[Level]int{}}, nil
}

// NewWriter creates a logbook mirrored to w. A nil w keeps entries in
// memory only.
func NewWriter(w io.Writer) *Logbook {
	return &Logbook{w: w, counts: map[Level]int{}}
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// SetTick sets the tick stamped on subsequent entries.
func (l *Logbook) SetTick(tick int) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.tick = tick
	l.mu.Unlock()
}

// Append writes a single entry to the logbook.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	e := Entry{Tick: l.tick, Level: level, Message: strings.TrimSpace(message)}
	l.entries = append(l.entries, e)
	l.counts[level]++
	if l.w != nil {
		_, _ = io.WriteString(l.w, e.String()+"\n")
	}
}

// Tail returns up to maxLines of the most recent entries along with the total
// number of entries.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	total := len(l.entries)
	if maxLines <= 0 || total == 0 {
		return nil, total
	}
	start := max(0, total-maxLines)
	lines := make([]string, 0, total-start)
	for _, e := range l.entries[start:] {
		lines = append(lines, e.String())
	}
	return lines, total
}

// Entries returns a copy of every entry.
func (l *Logbook) Entries() []Entry {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Count returns how many entries of level were appended.
func (l *Logbook) Count(level Level) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[level]
}

// Close releases the backing file, if any.
func (l *Logbook) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
