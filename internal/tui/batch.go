// Package tui renders batch progress with bubbletea, following The Elm
// Architecture:
//
// 1. Model: per-seed run state plus an event log
// 2. Update: batch events and key presses produce a new model
// 3. View: the model rendered to a string
//
// Simulations run outside the program and report through Program.Send.
package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/kingrea/acta/internal/batch"
	"github.com/kingrea/acta/internal/logbook"
	"github.com/kingrea/acta/internal/sim"
)

// EventMsg carries a batch event into the program.
type EventMsg batch.Event

// DoneMsg ends the program once the batch returns.
type DoneMsg struct {
	Report batch.Report
	Err    error
}

type runState struct {
	seed     uint64
	progress sim.Progress
	phase    batch.Phase
	err      error
}

// Model is the batch progress view.
type Model struct {
	scenario string
	runs     map[uint64]*runState
	spinner  spinner.Model
	bar      progress.Model
	log      *logbook.Logbook
	cancel   func()

	width  int
	done   bool
	report batch.Report
	err    error
}

// New returns a model tracking seeds. cancel is called when the user quits
// before the batch finishes.
func New(scenario string, seeds []uint64, cancel func()) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	m := &Model{
		scenario: scenario,
		runs:     make(map[uint64]*runState, len(seeds)),
		spinner:  sp,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		log:      logbook.NewWriter(nil),
		cancel:   cancel,
	}
	for _, s := range seeds {
		m.runs[s] = &runState{seed: s}
	}
	return m
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles batch events, window changes and quitting.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-24))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.done && m.cancel != nil {
				m.cancel()
				m.log.Warn("batch cancelled")
			}
			return m, tea.Quit
		}
		return m, nil

	case EventMsg:
		m.apply(batch.Event(msg))
		return m, nil

	case DoneMsg:
		m.done = true
		m.report = msg.Report
		m.err = msg.Err
		if msg.Err != nil {
			m.log.Error("%v", msg.Err)
		} else {
			m.log.Info("batch finished: %d run(s) in %s", len(msg.Report.Results), msg.Report.Dir)
		}
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(e batch.Event) {
	r, ok := m.runs[e.Seed]
	if !ok {
		r = &runState{seed: e.Seed}
		m.runs[e.Seed] = r
	}
	r.phase = e.Phase
	if e.Progress.MaxSteps > 0 {
		r.progress = e.Progress
	}
	m.log.SetTick(e.Progress.Tick)
	switch e.Phase {
	case batch.PhaseStarted:
		m.log.Info("seed %d started (run %s)", e.Seed, e.RunID.String()[:8])
	case batch.PhaseFinished:
		m.log.Info("seed %d finished: %d/%d tasks", e.Seed, e.Progress.Completed, e.Progress.Tasks)
	case batch.PhaseFailed:
		r.err = e.Err
		m.log.Error("seed %d failed: %v", e.Seed, e.Err)
	}
}

// Fraction returns overall progress in [0, 1].
func (m *Model) Fraction() float64 {
	if len(m.runs) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range m.runs {
		total += r.fraction()
	}
	return total / float64(len(m.runs))
}

func (r *runState) fraction() float64 {
	switch r.phase {
	case batch.PhaseFinished, batch.PhaseFailed:
		return 1
	}
	if r.progress.MaxSteps <= 0 {
		return 0
	}
	return min(1, float64(r.progress.Tick)/float64(r.progress.MaxSteps))
}

// Report returns the batch outcome once DoneMsg arrived.
func (m *Model) Report() (batch.Report, error) { return m.report, m.err }

// View renders the model.
func (m *Model) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⬡ ACTA · " + m.scenario)

	seeds := make([]uint64, 0, len(m.runs))
	for s := range m.runs {
		seeds = append(seeds, s)
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i] < seeds[j] })
	lines := make([]string, 0, len(seeds))
	for _, s := range seeds {
		lines = append(lines, m.runLine(m.runs[s], max(20, width-6)))
	}
	body := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))

	sections := []string{header, body, m.bar.ViewAs(m.Fraction())}
	if panel := m.renderLogPanel(width); panel != "" {
		sections = append(sections, panel)
	}
	footer := "q to cancel"
	if m.done {
		footer = "done"
	}
	sections = append(sections, lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1).Render(footer))
	return strings.Join(sections, "\n")
}

func (m *Model) runLine(r *runState, width int) string {
	mark := m.spinner.View()
	switch r.phase {
	case "":
		mark = "·"
	case batch.PhaseFinished:
		mark = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD787")).Render("✓")
	case batch.PhaseFailed:
		mark = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render("✗")
	}
	line := fmt.Sprintf("%s seed %04d  tick %d/%d  tasks %d/%d", mark, r.seed, r.progress.Tick, r.progress.MaxSteps, r.progress.Completed, r.progress.Tasks)
	line = truncate.StringWithTail(line, uint(width), "…")
	if r.err != nil {
		line += "\n" + wordwrap.String("  "+r.err.Error(), width)
	}
	return line
}

func (m *Model) renderLogPanel(width int) string {
	lines, total := m.log.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %d event(s)", total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(wordwrap.String(strings.Join(lines, "\n"), max(20, width-4)))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(head + "\n" + body)
}
