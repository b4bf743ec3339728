package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/grindloop/grind/pkg/models"
)

// RunLogEntry represents one line in the activity log.
type RunLogEntry struct {
	Timestamp time.Time
	Kind      string
	Message   string
}

// RunLogMsg is sent when a log entry should be added.
type RunLogMsg struct {
	Timestamp time.Time
	Kind      string
	Message   string
}

// RunDoneMsg is sent when the loop reaches a terminal outcome.
type RunDoneMsg struct {
	Outcome models.Outcome
}

// SteerHandler is a callback invoked with a submitted steer directive.
// It returns an error if the directive could not be delivered.
type SteerHandler func(directive string) error

// PauseHandler is a callback invoked when the user toggles pause.
type PauseHandler func(paused bool) error

// RunApp is the main bubbletea model for the run command TUI.
type RunApp struct {
	view     *RunView
	steer    *SteerField
	logs     []RunLogEntry
	width    int
	height   int
	paused   bool
	quitting bool
	done     bool
	outcome  models.Outcome

	onSteer SteerHandler
	onPause PauseHandler

	// Styles
	logStyle     lipgloss.Style
	logTimeStyle lipgloss.Style
	logKindStyle lipgloss.Style
	errorStyle   lipgloss.Style
	doneStyle    lipgloss.Style
	warnStyle    lipgloss.Style
	helpStyle    lipgloss.Style
}

// NewRunApp creates a new RunApp instance.
func NewRunApp() *RunApp {
	return &RunApp{
		view:  NewRunView(),
		steer: NewSteerField(),
		logs:  make([]RunLogEntry, 0),

		logStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		logTimeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		logKindStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Width(20),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),

		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// SetSteerHandler sets the callback for steer directives.
func (a *RunApp) SetSteerHandler(handler SteerHandler) {
	a.onSteer = handler
}

// SetPauseHandler sets the callback for pause toggles.
func (a *RunApp) SetPauseHandler(handler PauseHandler) {
	a.onPause = handler
}

// Init implements tea.Model.
func (a *RunApp) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (a *RunApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Ctrl+C always quits, focus or not
		if msg.String() == "ctrl+c" {
			a.quitting = true
			return a, tea.Quit
		}

		if a.steer.Focused() {
			switch msg.String() {
			case "esc":
				a.steer.Blur()
				return a, nil
			default:
				var cmd tea.Cmd
				a.steer, cmd = a.steer.Update(msg)
				return a, cmd
			}
		}

		switch msg.String() {
		case "q":
			a.quitting = true
			return a, tea.Quit
		case "p":
			if !a.done {
				a.togglePause()
			}
			return a, nil
		case "s":
			if !a.done {
				return a, a.steer.Focus()
			}
			return a, nil
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.view.SetSize(msg.Width, msg.Height)
		a.steer.SetWidth(msg.Width)

	case RunUpdateMsg:
		a.view.SetState(msg.State)

	case RunLogMsg:
		a.logs = append(a.logs, RunLogEntry{
			Timestamp: msg.Timestamp,
			Kind:      msg.Kind,
			Message:   msg.Message,
		})

	case SteerSubmittedMsg:
		a.steer.Blur()
		a.handleSteer(msg.Directive)

	case RunDoneMsg:
		a.done = true
		a.outcome = msg.Outcome
		// Don't quit immediately - let user see final state
	}

	return a, nil
}

// togglePause flips the pause state and notifies the handler.
func (a *RunApp) togglePause() {
	a.paused = !a.paused
	if a.onPause != nil {
		if err := a.onPause(a.paused); err != nil {
			a.paused = !a.paused
			a.logs = append(a.logs, RunLogEntry{
				Timestamp: time.Now(),
				Kind:      "error",
				Message:   fmt.Sprintf("pause failed: %v", err),
			})
			return
		}
	}
	state := "paused"
	if !a.paused {
		state = "resumed"
	}
	a.logs = append(a.logs, RunLogEntry{
		Timestamp: time.Now(),
		Kind:      "signal",
		Message:   state,
	})
}

// handleSteer delivers the directive and logs the result.
func (a *RunApp) handleSteer(directive string) {
	if a.onSteer == nil {
		return
	}
	if err := a.onSteer(directive); err != nil {
		a.logs = append(a.logs, RunLogEntry{
			Timestamp: time.Now(),
			Kind:      "error",
			Message:   fmt.Sprintf("steer failed: %v", err),
		})
		return
	}
	a.logs = append(a.logs, RunLogEntry{
		Timestamp: time.Now(),
		Kind:      "signal",
		Message:   fmt.Sprintf("steer sent: %s", directive),
	})
}

// View implements tea.Model.
func (a *RunApp) View() string {
	if a.quitting {
		if a.done {
			return ""
		}
		return "Stopping run...\n"
	}

	var b strings.Builder

	// Header
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Render("=== grind run ===")
	b.WriteString(header)
	b.WriteString("\n\n")

	// Progress view
	b.WriteString(a.view.View())
	b.WriteString("\n")

	// Logs section
	b.WriteString(a.renderLogs())

	// Steer input
	b.WriteString("\n")
	b.WriteString(a.steer.View())
	b.WriteString("\n")

	// Status footer
	b.WriteString(a.renderStatus())
	b.WriteString("\n")

	return b.String()
}

// renderStatus renders the footer line.
func (a *RunApp) renderStatus() string {
	if a.done {
		label := strings.ReplaceAll(string(a.outcome.Kind), "_", " ")
		switch a.outcome.Kind {
		case models.OutcomeCompleted:
			return a.doneStyle.Render("Run completed! Press q to exit.")
		case models.OutcomeFailed:
			msg := fmt.Sprintf("Run failed: %v", a.outcome.Err)
			if a.outcome.Err == nil {
				msg = "Run failed"
			}
			return a.errorStyle.Render(msg + " Press q to exit.")
		default:
			return a.warnStyle.Render(fmt.Sprintf("Run finished: %s. Press q to exit.", label))
		}
	}
	if a.paused {
		return a.warnStyle.Render("Paused - press p to resume")
	}
	return a.helpStyle.Render("q quit · p pause · s steer · esc blur")
}

// renderLogs renders the recent log entries.
func (a *RunApp) renderLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Activity Log"))
	b.WriteString("\n")

	// Show last 10 log entries
	start := 0
	if len(a.logs) > 10 {
		start = len(a.logs) - 10
	}

	for _, entry := range a.logs[start:] {
		ts := a.logTimeStyle.Render(entry.Timestamp.Format("15:04:05"))
		kind := a.logKindStyle.Render(entry.Kind)
		msg := a.logStyle.Render(entry.Message)
		b.WriteString(fmt.Sprintf("  %s %s %s\n", ts, kind, msg))
	}

	return b.String()
}

// NewRunProgram creates a new Bubbletea program for the run TUI.
func NewRunProgram() (*tea.Program, *RunApp) {
	app := NewRunApp()
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
