package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/rxtech-lab/argo-backfill/internal/types"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	// stateColors maps each engine state to its dashboard badge color.
	stateColors = map[types.EngineState]lipgloss.Color{
		types.EngineStateIdle:             lipgloss.Color("240"),
		types.EngineStateInitialLoading:   lipgloss.Color("214"),
		types.EngineStateBackgroundActive: lipgloss.Color("42"),
		types.EngineStateStopped:          lipgloss.Color("196"),
	}
)

// RenderState colors the engine state for the dashboard header. Unknown
// states render unstyled.
func RenderState(state types.EngineState) string {
	color, ok := stateColors[state]
	if !ok {
		return string(state)
	}

	return lipgloss.NewStyle().Foreground(color).Render(string(state))
}

// FormatCandleCount formats a counter with a growth indicator based on the
// previous snapshot.
func FormatCandleCount(current, previous int64) string {
	countStr := fmt.Sprintf("%d", current)

	if previous == 0 {
		return countStr
	}

	if current > previous {
		return countStr + " ▲"
	}

	return countStr
}
