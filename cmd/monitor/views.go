package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"github.com/rxtech-lab/argo-backfill/internal/types"
)

// taskRow is one finished chunk task shown in the dashboard table.
type taskRow struct {
	completedAt time.Time
	task        types.BackfillTask
	candles     int
	err         error
}

// NewSymbolInput creates the text input for the symbol edit screen.
func NewSymbolInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "BTCUSDT,ETHUSDT"
	ti.Prompt = "> "
	ti.CharLimit = 120
	ti.Width = 60
	ti.Focus()

	return ti
}

// ParseSymbols splits a comma-separated symbol list, trimming whitespace and
// uppercasing each entry. Empty entries are dropped.
func ParseSymbols(input string) []string {
	parts := strings.Split(input, ",")
	symbols := make([]string, 0, len(parts))

	for _, part := range parts {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol == "" {
			continue
		}

		symbols = append(symbols, symbol)
	}

	return symbols
}

// FormatWindow formats a task window as a compact date range.
func FormatWindow(window types.TimeRange) string {
	return fmt.Sprintf("%s -> %s",
		window.Start.Format("2006-01-02 15:04"),
		window.End.Format("2006-01-02 15:04"))
}

// NewTaskTable creates a new table for displaying finished chunk tasks.
func NewTaskTable() table.Model {
	columns := []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Symbol", Width: 10},
		{Title: "Granularity", Width: 12},
		{Title: "Window", Width: 38},
		{Title: "Candles", Width: 8},
		{Title: "Status", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)

	t.SetStyles(s)

	return t
}

// UpdateTaskRows updates the table with the latest finished tasks, newest
// first.
func UpdateTaskRows(t table.Model, taskRows []taskRow) table.Model {
	rows := make([]table.Row, 0, len(taskRows))

	for _, row := range taskRows {
		status := "ok"
		if row.err != nil {
			status = "failed"
		}

		rows = append(rows, table.Row{
			row.completedAt.Format("15:04:05"),
			row.task.Symbol,
			string(row.task.Granularity),
			FormatWindow(row.task.Window),
			fmt.Sprintf("%d", row.candles),
			status,
		})
	}

	t.SetRows(rows)

	return t
}
