package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/grindloop/grind/internal/loop"
	"github.com/grindloop/grind/pkg/models"
)

// runHeadlessMode drives the controller while printing one line per
// event to stdout. The JSONL log receives every event regardless of
// what the printer does with it.
func runHeadlessMode(ctx context.Context, ctrl *loop.Controller, emitter *loop.Emitter, jsonl *loop.JSONLWriter) models.Outcome {
	done := make(chan models.Outcome, 1)
	go func() {
		done <- ctrl.Run(ctx)
	}()

	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		for ev := range emitter.Events() {
			if jsonl != nil {
				_ = jsonl.Write(ev)
			}
			fmt.Println(headlessLine(ev))
		}
	}()

	outcome := <-done
	emitter.Close()
	<-printerDone
	return outcome
}

// headlessLine renders one event as a log line.
func headlessLine(ev loop.Event) string {
	var b strings.Builder
	b.WriteString(ev.Timestamp.Format("15:04:05"))
	fmt.Fprintf(&b, " %-21s", ev.Type)

	switch ev.Type {
	case loop.EventIterationStarted, loop.EventIterationCompleted:
		fmt.Fprintf(&b, " [%d/%d]", ev.Iteration+1, ev.MaxIterations)
	}
	if ev.CostDelta > 0 {
		fmt.Fprintf(&b, " $%.4f", ev.CostDelta)
	}
	if ev.TotalCost > 0 {
		fmt.Fprintf(&b, " (total $%.4f)", ev.TotalCost)
	}
	if ev.ContextCapacity > 0 {
		fmt.Fprintf(&b, " ctx %d%%", ev.ContextUsed*100/ev.ContextCapacity)
	}
	if ev.Model != "" && (ev.Type == loop.EventModelSwitched || ev.Type == loop.EventRunStarted) {
		fmt.Fprintf(&b, " model=%s", ev.Model)
	}
	if msg := firstLine(ev.Message); msg != "" {
		b.WriteString(" ")
		b.WriteString(msg)
	}
	if ev.Err != nil {
		fmt.Fprintf(&b, " err=%v", ev.Err)
	}
	return b.String()
}

// firstLine keeps multi-line previews from breaking the one event,
// one line contract.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
