package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RunState tracks the loop's progress for display.
type RunState struct {
	RunID           string
	Model           string
	Iteration       int
	MaxIterations   int
	Cost            float64
	Budget          float64 // 0 means no ceiling
	ContextUsed     int
	ContextCapacity int
}

// RunUpdateMsg is sent when run state changes.
type RunUpdateMsg struct {
	State RunState
}

// RunView displays the run progress header.
type RunView struct {
	state  RunState
	width  int
	height int

	// Styles
	headerStyle   lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	warnStyle     lipgloss.Style
	modelStyle    lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
}

// NewRunView creates a new RunView instance.
func NewRunView() *RunView {
	return &RunView{
		state: RunState{},

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		warnStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),

		modelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// Update handles input messages.
func (v *RunView) Update(msg tea.Msg) (*RunView, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
	case RunUpdateMsg:
		v.state = msg.State
	}
	return v, nil
}

// View renders the run progress display.
func (v *RunView) View() string {
	var b strings.Builder

	// Header
	b.WriteString(v.headerStyle.Render("Run Progress"))
	b.WriteString("\n")

	// Run id and model on same line
	runID := v.state.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	b.WriteString(v.labelStyle.Render("Run:"))
	b.WriteString(v.valueStyle.Render(runID))
	b.WriteString("  ")
	b.WriteString(v.labelStyle.Render("Model:"))
	b.WriteString(v.modelStyle.Render(v.state.Model))
	b.WriteString("\n")

	// Iteration and cost
	iterStr := fmt.Sprintf("%d/%d", v.state.Iteration, v.state.MaxIterations)
	b.WriteString(v.labelStyle.Render("Iteration:"))
	b.WriteString(v.valueStyle.Render(iterStr))
	b.WriteString("  ")
	b.WriteString(v.labelStyle.Render("Cost:"))
	b.WriteString(v.renderCost())
	b.WriteString("\n")

	// Context utilization
	b.WriteString(v.labelStyle.Render("Context:"))
	b.WriteString(v.renderContextBar(30))
	b.WriteString("\n")

	return b.String()
}

// renderCost renders the spend, against the ceiling when one is set.
// The value turns to the warning color near the ceiling.
func (v *RunView) renderCost() string {
	costStr := fmt.Sprintf("$%.2f", v.state.Cost)
	if v.state.Budget <= 0 {
		return v.valueStyle.Render(costStr)
	}

	costStr = fmt.Sprintf("$%.2f / $%.2f", v.state.Cost, v.state.Budget)
	if v.state.Cost >= v.state.Budget*0.8 {
		return v.warnStyle.Render(costStr)
	}
	return v.valueStyle.Render(costStr)
}

// renderContextBar renders the context utilization gauge.
func (v *RunView) renderContextBar(width int) string {
	pct := float64(0)
	if v.state.ContextCapacity > 0 {
		pct = float64(v.state.ContextUsed) / float64(v.state.ContextCapacity) * 100
	}
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	fullStyle := v.progressFull
	if pct >= 80 {
		fullStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	}

	bar := fullStyle.Render(strings.Repeat("█", filled)) +
		v.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("%s %.0f%%", bar, pct)
}

// SetState updates the run state.
func (v *RunView) SetState(state RunState) {
	v.state = state
}

// SetSize sets the view dimensions.
func (v *RunView) SetSize(width, height int) {
	v.width = width
	v.height = height
}

// GetState returns the current run state.
func (v *RunView) GetState() RunState {
	return v.state
}
