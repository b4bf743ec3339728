package loop

// DefaultCompactThreshold is the context utilization fraction at
// which compaction is triggered before the next call.
const DefaultCompactThreshold = 0.80

// ContextGovernor watches conversation size against the model's
// context window and decides when history must be compacted. It never
// compacts itself; the session owns its transcript.
type ContextGovernor struct {
	threshold float64
}

// NewContextGovernor creates a governor for the given utilization
// threshold. Values outside (0, 1] fall back to the default.
func NewContextGovernor(threshold float64) *ContextGovernor {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultCompactThreshold
	}
	return &ContextGovernor{threshold: threshold}
}

// Threshold returns the configured utilization fraction.
func (g *ContextGovernor) Threshold() float64 {
	return g.threshold
}

// Utilization returns used/capacity, or 0 when capacity is unknown.
func (g *ContextGovernor) Utilization(used, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return float64(used) / float64(capacity)
}

// NeedsCompaction reports whether the conversation has grown past the
// threshold and must shrink before the next call.
func (g *ContextGovernor) NeedsCompaction(used, capacity int) bool {
	return g.Utilization(used, capacity) >= g.threshold
}
