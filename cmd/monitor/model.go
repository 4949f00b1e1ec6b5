package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rxtech-lab/argo-backfill/internal/backfill/engine"
	"github.com/rxtech-lab/argo-backfill/internal/types"
)

// Application states.
const (
	StateSymbolEdit = iota
	StateDashboard
)

// maxTaskRows caps how many finished tasks the dashboard remembers.
const maxTaskRows = 50

// statsInterval is how often the dashboard polls the engine for counters.
const statsInterval = time.Second

// EngineFactory builds a backfill engine for the symbols entered in the UI.
// The dashboard rebuilds the engine whenever the symbol list changes.
type EngineFactory func(symbols []string) (engine.BackfillEngine, error)

// Model is the main Bubble Tea model for the backfill dashboard.
type Model struct {
	state       int
	symbolInput textinput.Model
	taskTable   table.Model
	taskRows    []taskRow
	stats       types.BackfillStats
	engineState types.EngineState
	prevCandles int64
	symbols     []string
	notice      string
	err         error
	width       int
	height      int

	// Engine control
	newEngine    EngineFactory
	eng          engine.BackfillEngine
	engineCancel context.CancelFunc
	program      *tea.Program
}

// NewModel creates a new Model with the symbol input prefilled from the
// configuration.
func NewModel(newEngine EngineFactory, symbols []string) Model {
	symbolInput := NewSymbolInput()
	symbolInput.SetValue(strings.Join(symbols, ","))

	return Model{
		state:       StateSymbolEdit,
		symbolInput: symbolInput,
		taskTable:   NewTaskTable(),
		engineState: types.EngineStateIdle,
		newEngine:   newEngine,
	}
}

// SetProgram sets the tea.Program reference for sending messages from goroutines.
func (m *Model) SetProgram(p *tea.Program) {
	m.program = p
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.stopEngine()
			return m, tea.Quit
		case "q":
			// Only quit on 'q' if not in text input mode
			if m.state != StateSymbolEdit {
				m.stopEngine()
				return m, tea.Quit
			}
		case "esc":
			return m.handleEsc()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.taskTable.SetWidth(msg.Width)
		m.taskTable.SetHeight(msg.Height - 10)
		return m, nil

	case EngineStartedMsg:
		m.notice = "Loading initial history..."
		return m, nil

	case StateChangedMsg:
		m.engineState = msg.New
		return m, nil

	case TaskCompletedMsg:
		m.taskRows = append([]taskRow{{
			completedAt: time.Now(),
			task:        msg.Task,
			candles:     msg.Candles,
			err:         msg.Err,
		}}, m.taskRows...)
		if len(m.taskRows) > maxTaskRows {
			m.taskRows = m.taskRows[:maxTaskRows]
		}
		m.taskTable = UpdateTaskRows(m.taskTable, m.taskRows)
		return m, nil

	case PassCompletedMsg:
		m.stats = msg.Stats
		m.notice = fmt.Sprintf("Progressive pass %d complete", msg.Stats.PassesCompleted)
		return m, nil

	case LatestUpdatedMsg:
		if msg.Err != nil {
			m.notice = fmt.Sprintf("Latest update failed for %s: %v", msg.Symbol, msg.Err)
		} else {
			m.notice = fmt.Sprintf("Latest candles refreshed for %s", msg.Symbol)
		}
		return m, nil

	case EngineErrorMsg:
		// A cancelled start can report after the dashboard was left.
		if m.state == StateDashboard {
			m.err = msg.Err
		}
		return m, nil

	case StatsTickMsg:
		if m.state == StateDashboard && m.eng != nil {
			m.prevCandles = m.stats.CandlesStored
			m.stats = m.eng.Stats()
			m.engineState = m.stats.State
			return m, tickCmd()
		}
		return m, nil
	}

	// Delegate to state-specific update
	switch m.state {
	case StateSymbolEdit:
		return m.updateSymbolEdit(msg)
	case StateDashboard:
		return m.updateDashboard(msg)
	}

	return m, nil
}

func (m *Model) stopEngine() {
	if m.engineCancel != nil {
		m.engineCancel()
		m.engineCancel = nil
	}

	if m.eng != nil {
		m.eng.Stop()
		m.eng = nil
	}
}

func (m Model) handleEsc() (tea.Model, tea.Cmd) {
	if m.state == StateDashboard {
		// Stop the engine and go back to symbol editing. Cached candles
		// survive, so the next run resumes where this one stopped.
		m.stopEngine()
		m.taskRows = nil
		m.taskTable = UpdateTaskRows(m.taskTable, nil)
		m.stats = types.BackfillStats{}
		m.engineState = types.EngineStateIdle
		m.prevCandles = 0
		m.notice = ""
		m.err = nil
		m.symbolInput.Focus()
		m.state = StateSymbolEdit
		return m, textinput.Blink
	}

	return m, nil
}

func (m Model) updateSymbolEdit(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			symbols := ParseSymbols(m.symbolInput.Value())
			if len(symbols) == 0 {
				return m, nil
			}

			eng, err := m.newEngine(symbols)
			if err != nil {
				m.err = err
				return m, nil
			}

			ctx, cancel := context.WithCancel(context.Background())
			m.eng = eng
			m.engineCancel = cancel
			m.symbols = symbols
			m.err = nil
			m.state = StateDashboard
			m.symbolInput.Blur()
			return m, tea.Batch(m.startEngine(ctx), tickCmd())
		}
	}

	var cmd tea.Cmd
	m.symbolInput, cmd = m.symbolInput.Update(msg)
	return m, cmd
}

func (m Model) updateDashboard(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "u":
			if m.eng != nil {
				m.notice = "Refreshing latest candles..."
				return m, m.updateLatestCmd()
			}
		}
	}

	var cmd tea.Cmd
	m.taskTable, cmd = m.taskTable.Update(msg)
	return m, cmd
}

// startEngine returns a command that launches the engine in the background.
func (m Model) startEngine(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		if m.program == nil {
			return EngineErrorMsg{Err: fmt.Errorf("program not set")}
		}

		go runEngine(m.program, ctx, m.eng)

		return EngineStartedMsg{}
	}
}

// updateLatestCmd returns a command that refreshes the newest candle for
// every watched symbol.
func (m Model) updateLatestCmd() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.symbols))

	for _, symbol := range m.symbols {
		cmds = append(cmds, func() tea.Msg {
			return LatestUpdatedMsg{Symbol: symbol, Err: m.eng.UpdateLatest(context.Background(), symbol)}
		})
	}

	return tea.Batch(cmds...)
}

// tickCmd schedules the next stats refresh.
func tickCmd() tea.Cmd {
	return tea.Tick(statsInterval, func(time.Time) tea.Msg {
		return StatsTickMsg{}
	})
}

// runEngine runs the backfill engine and forwards its lifecycle callbacks to
// the program as messages.
func runEngine(p *tea.Program, ctx context.Context, eng engine.BackfillEngine) {
	onStateChange := engine.OnStateChangeCallback(func(oldState, newState types.EngineState) {
		p.Send(StateChangedMsg{Old: oldState, New: newState})
	})
	onTaskComplete := engine.OnTaskCompleteCallback(func(task types.BackfillTask, candles int, err error) {
		p.Send(TaskCompletedMsg{Task: task, Candles: candles, Err: err})
	})
	onPassComplete := engine.OnPassCompleteCallback(func(stats types.BackfillStats) {
		p.Send(PassCompletedMsg{Stats: stats})
	})

	callbacks := engine.BackfillCallbacks{
		OnStateChange:  &onStateChange,
		OnTaskStart:    nil,
		OnTaskComplete: &onTaskComplete,
		OnPassComplete: &onPassComplete,
	}

	if err := eng.Start(ctx, callbacks); err != nil {
		p.Send(EngineErrorMsg{Err: err})
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var s strings.Builder

	switch m.state {
	case StateSymbolEdit:
		s.WriteString(TitleStyle.Render("Backfill Symbols"))
		s.WriteString("\n\n")
		s.WriteString("Enter comma-separated symbols (e.g., BTCUSDT,ETHUSDT):\n\n")
		s.WriteString(m.symbolInput.View())
		s.WriteString("\n\n")

		if m.err != nil {
			s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			s.WriteString("\n\n")
		}

		s.WriteString(HelpStyle.Render("Press Enter to start backfilling, Ctrl+C to quit"))

	case StateDashboard:
		s.WriteString(TitleStyle.Render(fmt.Sprintf("Backfill Monitor (%s)", strings.Join(m.symbols, ", "))))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("State: %s | Passes: %d\n", RenderState(m.engineState), m.stats.PassesCompleted))
		s.WriteString(fmt.Sprintf("Succeeded: %d  Failed: %d  Skipped: %d  Candles: %s\n\n",
			m.stats.TasksSucceeded, m.stats.TasksFailed, m.stats.TasksSkipped,
			FormatCandleCount(m.stats.CandlesStored, m.prevCandles)))

		if m.err != nil {
			s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			s.WriteString("\n\n")
		}

		if m.notice != "" {
			s.WriteString(m.notice)
			s.WriteString("\n\n")
		}

		if len(m.taskRows) == 0 {
			s.WriteString("Waiting for tasks...\n")
		} else {
			s.WriteString(m.taskTable.View())
		}

		s.WriteString("\n")
		s.WriteString(HelpStyle.Render("q: quit | Esc: stop and edit symbols | u: refresh latest"))
	}

	return s.String()
}
