// Package loop implements the iterate-until-done controller: it drives
// an agent session against a completion promise while governing
// iteration count, spend, and context-window headroom.
package loop

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grindloop/grind/pkg/models"
)

// EventType identifies a loop progress event.
type EventType string

const (
	// EventRunStarted is emitted once, before the first iteration.
	EventRunStarted EventType = "run_started"
	// EventIterationStarted is emitted before each agent call.
	EventIterationStarted EventType = "iteration_started"
	// EventIterationCompleted is emitted after a successful agent call.
	EventIterationCompleted EventType = "iteration_completed"
	// EventCompletionDetected is emitted when the promise is found.
	EventCompletionDetected EventType = "completion_detected"
	// EventBudgetWarning is emitted once when spend crosses the
	// warning fraction of the ceiling.
	EventBudgetWarning EventType = "budget_warning"
	// EventBudgetExceeded is emitted when spend passes the ceiling.
	EventBudgetExceeded EventType = "budget_exceeded"
	// EventContextWarning is emitted when utilization reaches the
	// compaction threshold, before compaction is attempted.
	EventContextWarning EventType = "context_warning"
	// EventCompactionStarted is emitted before history compaction.
	EventCompactionStarted EventType = "compaction_started"
	// EventCompactionCompleted is emitted after compaction reduced
	// utilization.
	EventCompactionCompleted EventType = "compaction_completed"
	// EventCompactionFailed is emitted when compaction could not
	// recover headroom.
	EventCompactionFailed EventType = "compaction_failed"
	// EventModelSwitched is emitted after the active session moved to
	// a new backend.
	EventModelSwitched EventType = "model_switched"
	// EventRetryScheduled is emitted before a backoff sleep.
	EventRetryScheduled EventType = "retry_scheduled"
	// EventSignalReceived is emitted when an operator signal is
	// observed between iterations.
	EventSignalReceived EventType = "signal_received"
	// EventCheckpointSaved is emitted by the persistence hook after the
	// iteration's progress reached durable storage.
	EventCheckpointSaved EventType = "checkpoint_saved"
	// EventRunFinished is emitted once, with the outcome.
	EventRunFinished EventType = "run_finished"
)

// Event is one observation of the loop's progress. The controller
// emits one after every decision point so long runs are debuggable
// mid-flight; renderers and machine logs are just subscribers.
type Event struct {
	// Type is the kind of event.
	Type EventType `json:"type"`
	// RunID identifies the loop invocation.
	RunID string `json:"run_id"`
	// Iteration is the zero-based iteration the event belongs to.
	Iteration int `json:"iteration"`
	// MaxIterations is the configured iteration cap.
	MaxIterations int `json:"max_iterations"`
	// Model is the active model id.
	Model string `json:"model,omitempty"`
	// Message carries human-readable context (previews truncated).
	Message string `json:"message,omitempty"`
	// CostDelta is the USD cost of the iteration (iteration events).
	CostDelta float64 `json:"cost_delta,omitempty"`
	// TotalCost is the cumulative USD spend.
	TotalCost float64 `json:"total_cost"`
	// ContextUsed is the conversation's token volume.
	ContextUsed int `json:"context_used,omitempty"`
	// ContextCapacity is the active model's context window.
	ContextCapacity int `json:"context_capacity,omitempty"`
	// Outcome is the terminal outcome kind (run_finished only).
	Outcome models.OutcomeKind `json:"outcome,omitempty"`
	// Err holds failure details for error events.
	Err error `json:"-"`
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Emitter delivers events to a single consumer without ever stalling
// the loop: a full channel drops events after a short grace period.
type Emitter struct {
	events       chan Event
	droppedCount atomic.Uint64
	closeOnce    sync.Once
}

// NewEmitter creates an emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	return &Emitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event. If the channel is full it waits briefly for the
// consumer to drain, then drops the event and counts it.
func (e *Emitter) Emit(event Event) {
	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
		return
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // Log every 10th drop to avoid spam
			log.Printf("[loop] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns how many events have been dropped.
func (e *Emitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Events returns the read side for subscribers.
func (e *Emitter) Events() <-chan Event {
	return e.events
}

// Close closes the event channel. Safe to call more than once.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() { close(e.events) })
}

// JSONLWriter appends events to w as one JSON object per line. It is
// the machine-readable subscriber: point it at a file under
// .grind/logs and tail it from scripts.
type JSONLWriter struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewJSONLWriter wraps w for event appending.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: w, enc: json.NewEncoder(w)}
}

// Write serializes one event. Errors are returned so callers can
// decide whether a broken event log should stop anything (it usually
// should not).
func (j *JSONLWriter) Write(event Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	line := struct {
		Event
		Error string `json:"error,omitempty"`
	}{Event: event}
	if event.Err != nil {
		line.Error = event.Err.Error()
	}
	if err := j.enc.Encode(line); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// truncateForDisplay bounds response previews carried in events.
func truncateForDisplay(s string) string {
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}
