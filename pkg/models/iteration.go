package models

import "time"

// IterationRecord captures one pass of the loop. Records are immutable
// once appended to the iteration log and their indexes are strictly
// increasing with no gaps.
type IterationRecord struct {
	// Index is the zero-based ordinal of this iteration.
	Index int `json:"index"`
	// PromptSent is the prompt text issued to the agent.
	PromptSent string `json:"prompt_sent"`
	// ResponseReceived is the agent's full text response.
	ResponseReceived string `json:"response_received"`
	// CostDelta is the USD cost incurred by this iteration alone.
	CostDelta float64 `json:"cost_delta"`
	// CompletionDetected reports whether the completion promise was
	// found in ResponseReceived. True for at most the final record.
	CompletionDetected bool `json:"completion_detected"`
	// Model is the model id that served this iteration.
	Model string `json:"model"`
	// StartedAt is when the agent call was issued.
	StartedAt time.Time `json:"started_at"`
	// FinishedAt is when the response was received.
	FinishedAt time.Time `json:"finished_at"`
}

// Duration returns the wall time the iteration's agent call took.
func (r IterationRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
