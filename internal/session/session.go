// Package session provides the conversational agent sessions the loop
// drives. A session owns its transcript and cost counters; the loop only
// invokes Run and reads the exposed accessors.
package session

import "context"

// Session is the contract the loop controller requires from an agent.
// Implementations accumulate conversation history and running cost
// internally; both are mutated only by Run and Compact.
type Session interface {
	// Run sends the prompt with the full accumulated history and
	// returns the agent's text response.
	Run(ctx context.Context, prompt string) (string, error)

	// CumulativeCost returns the running USD total for this
	// conversation. Monotonically non-decreasing.
	CumulativeCost() float64

	// ContextUsage returns the tokens occupied by the conversation and
	// the active model's context capacity.
	ContextUsage() (used, capacity int)

	// ActiveModel returns the id of the model serving this session.
	ActiveModel() string

	// Compact summarizes and prunes earlier history. It reports whether
	// utilization was reduced below the session's compaction target.
	Compact(ctx context.Context) (bool, error)
}

// FormatAnthropicMessages identifies transcripts in the Anthropic
// Messages API shape (alternating user/assistant text turns).
const FormatAnthropicMessages = "anthropic.messages"

// HistoryCarrier is implemented by sessions whose transcript can seed a
// replacement session when the active model is switched mid-loop.
type HistoryCarrier interface {
	// TranscriptFormat names the message/tool-call transcript format.
	// A switch between sessions with different formats fails.
	TranscriptFormat() string

	// Snapshot returns a copy of the conversation so far.
	Snapshot() *Transcript
}
