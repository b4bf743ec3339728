package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/grindloop/grind/pkg/models"
)

// =============================================================================
// RunView Tests
// =============================================================================

func TestNewRunView(t *testing.T) {
	view := NewRunView()

	if view == nil {
		t.Fatal("NewRunView returned nil")
	}

	state := view.GetState()
	if state.Iteration != 0 {
		t.Errorf("expected default Iteration=0, got %d", state.Iteration)
	}
	if state.Cost != 0 {
		t.Errorf("expected default Cost=0, got %f", state.Cost)
	}
}

func TestRunView_SetState(t *testing.T) {
	view := NewRunView()

	view.SetState(RunState{
		RunID:         "abc123def456",
		Model:         "claude-sonnet-4-5",
		Iteration:     5,
		MaxIterations: 50,
		Cost:          1.25,
	})
	got := view.GetState()

	if got.RunID != "abc123def456" {
		t.Errorf("expected RunID='abc123def456', got %q", got.RunID)
	}
	if got.Iteration != 5 {
		t.Errorf("expected Iteration=5, got %d", got.Iteration)
	}
}

func TestRunView_Update_WindowSizeMsg(t *testing.T) {
	view := NewRunView()

	msg := tea.WindowSizeMsg{Width: 100, Height: 50}
	updatedView, _ := view.Update(msg)

	if updatedView.width != 100 {
		t.Errorf("expected width=100, got %d", updatedView.width)
	}
	if updatedView.height != 50 {
		t.Errorf("expected height=50, got %d", updatedView.height)
	}
}

func TestRunView_Update_RunUpdateMsg(t *testing.T) {
	view := NewRunView()

	msg := RunUpdateMsg{State: RunState{Iteration: 7, Model: "claude-opus-4-1"}}
	updatedView, _ := view.Update(msg)

	got := updatedView.GetState()
	if got.Iteration != 7 {
		t.Errorf("expected Iteration=7, got %d", got.Iteration)
	}
	if got.Model != "claude-opus-4-1" {
		t.Errorf("expected Model='claude-opus-4-1', got %q", got.Model)
	}
}

func TestRunView_View_ContainsExpectedElements(t *testing.T) {
	view := NewRunView()
	view.SetState(RunState{
		RunID:           "abc123def456",
		Model:           "claude-sonnet-4-5",
		Iteration:       3,
		MaxIterations:   50,
		Cost:            1.25,
		Budget:          10.0,
		ContextUsed:     100000,
		ContextCapacity: 200000,
	})

	output := view.View()

	expectedStrings := []string{
		"Run Progress",
		"abc123de", // Run id truncated to 8 chars
		"claude-sonnet-4-5",
		"3/50",
		"$1.25 / $10.00",
		"50%", // Context utilization
	}

	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("expected output to contain %q", expected)
		}
	}
}

func TestRunView_RenderCost_NoBudget(t *testing.T) {
	view := NewRunView()
	view.SetState(RunState{Cost: 2.50})

	output := view.View()

	if !strings.Contains(output, "$2.50") {
		t.Error("expected output to contain plain cost")
	}
	if strings.Contains(output, "/") && strings.Contains(output, "$2.50 /") {
		t.Error("expected no ceiling display without a budget")
	}
}

func TestRunView_ContextBar(t *testing.T) {
	tests := []struct {
		name     string
		used     int
		capacity int
		wantPct  string
	}{
		{"empty", 0, 200000, "0%"},
		{"half", 100000, 200000, "50%"},
		{"full", 200000, 200000, "100%"},
		{"over capacity", 250000, 200000, "100%"},
		{"zero capacity", 0, 0, "0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := NewRunView()
			view.SetState(RunState{ContextUsed: tt.used, ContextCapacity: tt.capacity})

			output := view.View()
			if !strings.Contains(output, tt.wantPct) {
				t.Errorf("expected output to contain %q for %d/%d", tt.wantPct, tt.used, tt.capacity)
			}
		})
	}
}

// =============================================================================
// SteerField Tests
// =============================================================================

func TestNewSteerField_StartsBlurred(t *testing.T) {
	field := NewSteerField()

	if field.Focused() {
		t.Error("expected steer field to start blurred")
	}
}

func TestSteerField_SubmitDirective(t *testing.T) {
	field := NewSteerField()
	field.Focus()

	field, _ = field.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("stop")})
	field, cmd := field.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if cmd == nil {
		t.Fatal("expected submit command")
	}
	msg, ok := cmd().(SteerSubmittedMsg)
	if !ok {
		t.Fatalf("expected SteerSubmittedMsg, got %T", cmd())
	}
	if msg.Directive != "stop" {
		t.Errorf("expected directive 'stop', got %q", msg.Directive)
	}

	// Input resets after submit
	field, cmd = field.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		if _, ok := cmd().(SteerSubmittedMsg); ok {
			t.Error("expected no submission for empty input")
		}
	}
}

func TestSteerField_EmptySubmitIgnored(t *testing.T) {
	field := NewSteerField()
	field.Focus()

	_, cmd := field.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		if _, ok := cmd().(SteerSubmittedMsg); ok {
			t.Error("expected no submission for empty input")
		}
	}
}

// =============================================================================
// RunApp Tests
// =============================================================================

func TestNewRunApp(t *testing.T) {
	app := NewRunApp()

	if app == nil {
		t.Fatal("NewRunApp returned nil")
	}
	if app.view == nil {
		t.Error("expected app.view to be initialized")
	}
	if app.steer == nil {
		t.Error("expected app.steer to be initialized")
	}
	if len(app.logs) != 0 {
		t.Errorf("expected empty logs, got %d", len(app.logs))
	}
	if app.quitting {
		t.Error("expected quitting=false")
	}
	if app.done {
		t.Error("expected done=false")
	}
}

func TestRunApp_Init(t *testing.T) {
	app := NewRunApp()
	cmd := app.Init()

	if cmd != nil {
		t.Error("expected Init to return nil cmd")
	}
}

func TestRunApp_Update_QuitKey(t *testing.T) {
	app := NewRunApp()

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	updatedApp := model.(*RunApp)

	if !updatedApp.quitting {
		t.Error("expected quitting=true after 'q' key")
	}
	if cmd == nil {
		t.Error("expected quit command to be returned")
	}
}

func TestRunApp_Update_CtrlC(t *testing.T) {
	app := NewRunApp()

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	updatedApp := model.(*RunApp)

	if !updatedApp.quitting {
		t.Error("expected quitting=true after Ctrl+C")
	}
	if cmd == nil {
		t.Error("expected quit command to be returned")
	}
}

func TestRunApp_Update_CtrlC_WhileSteerFocused(t *testing.T) {
	app := NewRunApp()
	app.steer.Focus()

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	updatedApp := model.(*RunApp)

	if !updatedApp.quitting {
		t.Error("expected Ctrl+C to quit even with steer focused")
	}
	if cmd == nil {
		t.Error("expected quit command to be returned")
	}
}

func TestRunApp_Update_SteerFocusAndBlur(t *testing.T) {
	app := NewRunApp()

	// 's' focuses the steer field
	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	app = model.(*RunApp)
	if !app.steer.Focused() {
		t.Fatal("expected steer field focused after 's'")
	}

	// While focused, 'q' types instead of quitting
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	app = model.(*RunApp)
	if app.quitting {
		t.Error("expected 'q' to type into the steer field, not quit")
	}

	// Escape blurs
	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app = model.(*RunApp)
	if app.steer.Focused() {
		t.Error("expected steer field blurred after escape")
	}
}

func TestRunApp_Update_WindowSizeMsg(t *testing.T) {
	app := NewRunApp()

	msg := tea.WindowSizeMsg{Width: 80, Height: 24}
	model, _ := app.Update(msg)
	updatedApp := model.(*RunApp)

	if updatedApp.width != 80 {
		t.Errorf("expected width=80, got %d", updatedApp.width)
	}
	if updatedApp.height != 24 {
		t.Errorf("expected height=24, got %d", updatedApp.height)
	}
}

func TestRunApp_Update_RunUpdateMsg(t *testing.T) {
	app := NewRunApp()

	msg := RunUpdateMsg{State: RunState{Iteration: 4, Model: "claude-sonnet-4-5"}}
	model, _ := app.Update(msg)
	updatedApp := model.(*RunApp)

	viewState := updatedApp.view.GetState()
	if viewState.Iteration != 4 {
		t.Errorf("expected Iteration=4, got %d", viewState.Iteration)
	}
}

func TestRunApp_Update_RunLogMsg(t *testing.T) {
	app := NewRunApp()

	now := time.Now()
	msg := RunLogMsg{
		Timestamp: now,
		Kind:      "iteration_completed",
		Message:   "iteration 0 finished",
	}
	model, _ := app.Update(msg)
	updatedApp := model.(*RunApp)

	if len(updatedApp.logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(updatedApp.logs))
	}

	entry := updatedApp.logs[0]
	if entry.Kind != "iteration_completed" {
		t.Errorf("expected Kind='iteration_completed', got %q", entry.Kind)
	}
	if entry.Message != "iteration 0 finished" {
		t.Errorf("expected Message='iteration 0 finished', got %q", entry.Message)
	}
}

func TestRunApp_Update_RunDoneMsg(t *testing.T) {
	app := NewRunApp()

	msg := RunDoneMsg{Outcome: models.Outcome{Kind: models.OutcomeCompleted, Iterations: 3}}
	model, _ := app.Update(msg)
	updatedApp := model.(*RunApp)

	if !updatedApp.done {
		t.Error("expected done=true")
	}
	if updatedApp.outcome.Kind != models.OutcomeCompleted {
		t.Errorf("expected outcome completed, got %s", updatedApp.outcome.Kind)
	}
}

func TestRunApp_PauseToggle(t *testing.T) {
	app := NewRunApp()

	var calls []bool
	app.SetPauseHandler(func(paused bool) error {
		calls = append(calls, paused)
		return nil
	})

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	app = model.(*RunApp)
	if !app.paused {
		t.Error("expected paused=true after first toggle")
	}

	model, _ = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	app = model.(*RunApp)
	if app.paused {
		t.Error("expected paused=false after second toggle")
	}

	if len(calls) != 2 || calls[0] != true || calls[1] != false {
		t.Errorf("expected handler calls [true false], got %v", calls)
	}
}

func TestRunApp_PauseHandlerError_RevertsState(t *testing.T) {
	app := NewRunApp()
	app.SetPauseHandler(func(paused bool) error {
		return errors.New("signal dir missing")
	})

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	app = model.(*RunApp)

	if app.paused {
		t.Error("expected paused state reverted after handler error")
	}
	if len(app.logs) != 1 || app.logs[0].Kind != "error" {
		t.Error("expected an error log entry")
	}
}

func TestRunApp_SteerSubmitted_CallsHandler(t *testing.T) {
	app := NewRunApp()

	var got string
	app.SetSteerHandler(func(directive string) error {
		got = directive
		return nil
	})

	model, _ := app.Update(SteerSubmittedMsg{Directive: "model claude-opus-4-1"})
	app = model.(*RunApp)

	if got != "model claude-opus-4-1" {
		t.Errorf("expected handler to receive directive, got %q", got)
	}
	if len(app.logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(app.logs))
	}
	if !strings.Contains(app.logs[0].Message, "steer sent") {
		t.Errorf("expected steer confirmation log, got %q", app.logs[0].Message)
	}
}

func TestRunApp_SteerSubmitted_HandlerError(t *testing.T) {
	app := NewRunApp()
	app.SetSteerHandler(func(directive string) error {
		return errors.New("write failed")
	})

	model, _ := app.Update(SteerSubmittedMsg{Directive: "stop"})
	app = model.(*RunApp)

	if len(app.logs) != 1 || app.logs[0].Kind != "error" {
		t.Error("expected an error log entry")
	}
}

func TestRunApp_View_Normal(t *testing.T) {
	app := NewRunApp()
	app.view.SetState(RunState{
		RunID:         "abc123def456",
		Model:         "claude-sonnet-4-5",
		Iteration:     1,
		MaxIterations: 50,
	})

	output := app.View()

	expectedStrings := []string{
		"grind run",
		"1/50",
		"q quit",
	}

	for _, expected := range expectedStrings {
		if !strings.Contains(output, expected) {
			t.Errorf("expected output to contain %q", expected)
		}
	}
}

func TestRunApp_View_Paused(t *testing.T) {
	app := NewRunApp()
	app.paused = true

	output := app.View()

	if !strings.Contains(output, "Paused") {
		t.Error("expected paused view to contain 'Paused'")
	}
}

func TestRunApp_View_Done_Completed(t *testing.T) {
	app := NewRunApp()
	app.done = true
	app.outcome = models.Outcome{Kind: models.OutcomeCompleted}

	output := app.View()

	if !strings.Contains(output, "Run completed") {
		t.Error("expected done view to show completion")
	}
	if !strings.Contains(output, "Press q to exit") {
		t.Error("expected done view to contain 'Press q to exit'")
	}
}

func TestRunApp_View_Done_BudgetExceeded(t *testing.T) {
	app := NewRunApp()
	app.done = true
	app.outcome = models.Outcome{Kind: models.OutcomeBudgetExceeded}

	output := app.View()

	if !strings.Contains(output, "budget exceeded") {
		t.Error("expected done view to name the outcome")
	}
}

func TestRunApp_View_Done_Failed(t *testing.T) {
	app := NewRunApp()
	app.done = true
	app.outcome = models.Outcome{Kind: models.OutcomeFailed, Err: errors.New("provider unreachable")}

	output := app.View()

	if !strings.Contains(output, "Run failed") {
		t.Error("expected error view to contain 'Run failed'")
	}
	if !strings.Contains(output, "provider unreachable") {
		t.Error("expected error view to contain the error message")
	}
}

func TestRunApp_View_Quitting(t *testing.T) {
	app := NewRunApp()
	app.quitting = true

	output := app.View()

	if !strings.Contains(output, "Stopping") {
		t.Errorf("expected quitting view to contain 'Stopping', got %q", output)
	}
}

func TestRunApp_RenderLogs_Empty(t *testing.T) {
	app := NewRunApp()

	output := app.renderLogs()

	if output != "" {
		t.Errorf("expected empty string for no logs, got %q", output)
	}
}

func TestRunApp_RenderLogs_TruncatesTo10(t *testing.T) {
	app := NewRunApp()
	now := time.Now()

	// Add 14 log entries
	for i := 0; i < 14; i++ {
		app.logs = append(app.logs, RunLogEntry{
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Kind:      "test",
			Message:   "Log entry",
		})
	}

	output := app.renderLogs()

	count := strings.Count(output, "Log entry")
	if count != 10 {
		t.Errorf("expected 10 log entries displayed, got %d", count)
	}
}

// =============================================================================
// NewRunProgram Tests
// =============================================================================

func TestNewRunProgram(t *testing.T) {
	program, app := NewRunProgram()

	if program == nil {
		t.Error("expected program to not be nil")
	}
	if app == nil {
		t.Error("expected app to not be nil")
	}
	if app.view == nil {
		t.Error("expected app.view to be initialized")
	}
}

// =============================================================================
// Integration-style Tests
// =============================================================================

func TestRunApp_FullWorkflow(t *testing.T) {
	app := NewRunApp()

	// Simulate window resize
	model, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	app = model.(*RunApp)

	// Simulate a few iterations
	for i := 0; i < 3; i++ {
		model, _ = app.Update(RunUpdateMsg{
			State: RunState{
				RunID:         "run-1",
				Model:         "claude-sonnet-4-5",
				Iteration:     i + 1,
				MaxIterations: 50,
				Cost:          float64(i+1) * 0.5,
			},
		})
		app = model.(*RunApp)

		model, _ = app.Update(RunLogMsg{
			Timestamp: time.Now(),
			Kind:      "iteration_completed",
			Message:   "iteration finished",
		})
		app = model.(*RunApp)
	}

	if len(app.logs) != 3 {
		t.Errorf("expected 3 log entries, got %d", len(app.logs))
	}

	viewState := app.view.GetState()
	if viewState.Iteration != 3 {
		t.Errorf("expected Iteration=3, got %d", viewState.Iteration)
	}

	// Simulate done
	model, _ = app.Update(RunDoneMsg{Outcome: models.Outcome{Kind: models.OutcomeCompleted, Iterations: 3}})
	app = model.(*RunApp)

	if !app.done {
		t.Error("expected done=true")
	}

	output := app.View()
	if !strings.Contains(output, "Run completed") {
		t.Error("expected view to show completion")
	}
}
