// Package tui provides the live terminal view for grind runs.
//
// The view subscribes to loop events forwarded by the run command and
// renders a header (run id, model, iteration, spend, context usage), a
// scrolling activity log, and a steer input for operator directives.
//
// Usage:
//
//	program, app := tui.NewRunProgram()
//	app.SetSteerHandler(func(directive string) error { ... })
//	go program.Run()
//
//	// Forward loop progress
//	program.Send(tui.RunUpdateMsg{State: state})
//	program.Send(tui.RunLogMsg{
//	    Timestamp: time.Now(),
//	    Kind:      "iteration_completed",
//	    Message:   "iteration 3 finished",
//	})
//
//	// Signal termination
//	program.Send(tui.RunDoneMsg{Outcome: outcome})
//
// Steering and pausing go the other way: keypresses invoke the
// registered handlers, which write signal files the loop picks up
// between iterations.
package tui
