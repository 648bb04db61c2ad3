package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kingrea/acta/internal/sim"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	openStyle   = cellStyle.Foreground(lipgloss.Color("#FF6B6B"))
)

// Summary renders one row per run.
func Summary(results []sim.Result) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))).
		Headers("seed", "selector", "steps", "done", "makespan", "failures", "repairs", "conflicts", "distance", "info age")
	incomplete := map[int]bool{}
	for i, r := range results {
		if !r.AllCompleted {
			incomplete[i] = true
		}
		t.Row(
			strconv.FormatUint(r.Seed, 10),
			r.Selector,
			strconv.Itoa(r.Steps),
			fmt.Sprintf("%d/%d", r.Completed, r.Tasks),
			strconv.FormatFloat(r.Makespan, 'f', -1, 64),
			strconv.Itoa(r.Stats.Failures),
			strconv.Itoa(r.Stats.Repairs),
			strconv.Itoa(r.Stats.Conflicts),
			strconv.FormatFloat(r.Distance, 'f', 2, 64),
			strconv.Itoa(r.InfoAgeSum),
		)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case col == 3 && incomplete[row]:
			return openStyle
		default:
			return cellStyle
		}
	})
	return t.String()
}

// Workers renders the end-of-run state of every worker of r.
func Workers(r sim.Result) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))).
		Headers("worker", "health", "fatigue", "distance", "work", "failures").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, w := range r.Workers {
		t.Row(
			strconv.Itoa(w.ID),
			string(w.Health),
			strconv.FormatFloat(w.Fatigue, 'f', 2, 64),
			strconv.FormatFloat(w.Distance, 'f', 2, 64),
			strconv.FormatFloat(w.WorkDone, 'f', 2, 64),
			strconv.Itoa(w.Failures),
		)
	}
	return t.String()
}
