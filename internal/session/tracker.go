package session

import "sync"

// Pricing is the per-million-token USD rate for a model.
type Pricing struct {
	// InputPerMillion is the USD cost per 1M input tokens.
	InputPerMillion float64
	// OutputPerMillion is the USD cost per 1M output tokens.
	OutputPerMillion float64
}

// Cost returns the USD cost of a call with the given token counts.
func (p Pricing) Cost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * p.InputPerMillion
	outputCost := float64(outputTokens) / 1_000_000 * p.OutputPerMillion
	return inputCost + outputCost
}

// usageTracker accumulates token usage and spend across API calls.
// It is mutex-guarded because event subscribers and the TUI read the
// counters from other goroutines while a call is in flight.
type usageTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
	spend     float64
	// lastTurnTokens is input+output of the most recent call, which is
	// the context volume the next call starts from. Zero after
	// compaction until the next call reports usage.
	lastTurnTokens int
}

// newUsageTracker returns a tracker seeded with prior spend. Resumed
// and history-carrying sessions start from the conversation's running
// total rather than zero.
func newUsageTracker(priorSpend float64) *usageTracker {
	return &usageTracker{spend: priorSpend}
}

// add records one call's token usage priced at the given rates.
func (t *usageTracker) add(input, output int64, pricing Pricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
	t.spend += pricing.Cost(input, output)
	t.lastTurnTokens = int(input + output)
}

// addSpend records cost with no associated token usage, such as a
// summarization call made during compaction.
func (t *usageTracker) addSpend(amount float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spend += amount
}

// totalSpend returns the cumulative USD spend.
func (t *usageTracker) totalSpend() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spend
}

// lastTurn returns the token volume reported by the most recent call,
// 0 if no call has completed since the last compaction.
func (t *usageTracker) lastTurn() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTurnTokens
}

// resetLastTurn clears the last-call volume after the transcript has
// been rewritten by compaction.
func (t *usageTracker) resetLastTurn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastTurnTokens = 0
}

// totals returns cumulative input/output tokens and the call count.
func (t *usageTracker) totals() (input, output int64, calls int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok, t.calls
}
