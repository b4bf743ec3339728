package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SteerSubmittedMsg is sent when the user submits a steer directive.
type SteerSubmittedMsg struct {
	Directive string
}

// SteerField is a text input component for steering a running loop.
// Directives are "model <id>" or "stop"; the prompt itself is never
// steerable.
type SteerField struct {
	input textinput.Model
	width int
}

// NewSteerField creates a new SteerField. It starts blurred; the run
// view focuses it on demand.
func NewSteerField() *SteerField {
	ti := textinput.New()
	ti.Placeholder = "model <id> or stop, then Enter..."
	ti.CharLimit = 200
	ti.Width = 60

	return &SteerField{
		input: ti,
		width: 80,
	}
}

// SetWidth sets the width of the steer field.
func (f *SteerField) SetWidth(width int) {
	f.width = width
	f.input.Width = width - 4 // Account for prompt and padding
}

// Update handles messages for the steer field.
func (f *SteerField) Update(msg tea.Msg) (*SteerField, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			directive := strings.TrimSpace(f.input.Value())
			if directive != "" {
				f.input.Reset()
				return f, func() tea.Msg {
					return SteerSubmittedMsg{Directive: directive}
				}
			}
		}
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return f, cmd
}

// View renders the steer field.
func (f *SteerField) View() string {
	promptStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")).
		Bold(true)

	borderColor := lipgloss.Color("240")
	if f.input.Focused() {
		borderColor = lipgloss.Color("39")
	}
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(f.width - 2)

	prompt := promptStyle.Render("steer> ")
	return boxStyle.Render(prompt + f.input.View())
}

// Focus sets focus on the steer field.
func (f *SteerField) Focus() tea.Cmd {
	return f.input.Focus()
}

// Blur removes focus from the steer field.
func (f *SteerField) Blur() {
	f.input.Blur()
}

// Focused reports whether the field has focus.
func (f *SteerField) Focused() bool {
	return f.input.Focused()
}
