package main

import (
	"context"
	"io"
	"log"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/grindloop/grind/internal/loop"
	"github.com/grindloop/grind/internal/signal"
	"github.com/grindloop/grind/internal/tui"
	"github.com/grindloop/grind/pkg/models"
)

// runWithTUI drives the controller behind the live dashboard. The
// steer box and pause key write the same signal files an external
// terminal would, so the loop needs no TUI-specific plumbing.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, ctrl *loop.Controller, emitter *loop.Emitter, jsonl *loop.JSONLWriter, sig *signal.Manager, budget float64) models.Outcome {
	// The TUI owns the terminal; stray log output corrupts the display.
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	program, app := tui.NewRunProgram()
	app.SetSteerHandler(func(directive string) error {
		return sig.SendSteer(directive)
	})
	app.SetPauseHandler(func(paused bool) error {
		if paused {
			return sig.SendPause()
		}
		return sig.ClearPause()
	})

	go forwardEvents(program, emitter, jsonl, budget)

	loopDone := make(chan models.Outcome, 1)
	go func() {
		loopDone <- ctrl.Run(ctx)
	}()

	tuiDone := make(chan error, 1)
	go func() {
		_, err := program.Run()
		tuiDone <- err
	}()

	select {
	case outcome := <-loopDone:
		emitter.Close()
		program.Send(tui.RunDoneMsg{Outcome: outcome})
		<-tuiDone
		return outcome
	case <-tuiDone:
		// Operator quit mid-run. Cancel and wait for the loop to
		// come back with its outcome so persistence sees the truth.
		cancel()
		outcome := <-loopDone
		emitter.Close()
		return outcome
	}
}

// forwardEvents fans loop events into the dashboard and the JSONL log.
func forwardEvents(program *tea.Program, emitter *loop.Emitter, jsonl *loop.JSONLWriter, budget float64) {
	st := tui.RunState{Budget: budget}
	for ev := range emitter.Events() {
		if jsonl != nil {
			_ = jsonl.Write(ev)
		}
		st = applyEvent(st, ev)
		program.Send(tui.RunUpdateMsg{State: st})
		program.Send(tui.RunLogMsg{
			Timestamp: ev.Timestamp,
			Kind:      string(ev.Type),
			Message:   firstLine(ev.Message),
		})
	}
}

// applyEvent folds one event into the gauge state shown in the header.
func applyEvent(st tui.RunState, ev loop.Event) tui.RunState {
	if ev.RunID != "" {
		st.RunID = ev.RunID
	}
	if ev.MaxIterations > 0 {
		st.MaxIterations = ev.MaxIterations
	}
	if ev.Model != "" {
		st.Model = ev.Model
	}
	switch ev.Type {
	case loop.EventIterationStarted, loop.EventIterationCompleted:
		st.Iteration = ev.Iteration + 1
	}
	if ev.TotalCost > 0 {
		st.Cost = ev.TotalCost
	}
	if ev.ContextCapacity > 0 {
		st.ContextUsed = ev.ContextUsed
		st.ContextCapacity = ev.ContextCapacity
	}
	return st
}
