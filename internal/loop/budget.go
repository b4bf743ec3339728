package loop

// BudgetStatus describes spend relative to the ceiling.
type BudgetStatus int

const (
	// BudgetOK means spending is comfortably under the ceiling.
	BudgetOK BudgetStatus = iota
	// BudgetWarning means spending has crossed the warning fraction.
	BudgetWarning
	// BudgetExceeded means spending has passed the ceiling.
	BudgetExceeded
)

// String returns a human-readable status name.
func (s BudgetStatus) String() string {
	switch s {
	case BudgetOK:
		return "ok"
	case BudgetWarning:
		return "warning"
	case BudgetExceeded:
		return "exceeded"
	default:
		return "unknown"
	}
}

// DefaultWarningFraction is the share of the ceiling at which a
// warning is raised.
const DefaultWarningFraction = 0.8

// CostGovernor enforces a USD spend ceiling. The check is strict
// exceed: spend equal to the ceiling still permits the next call, so
// the worst case overshoot is bounded by a single iteration's cost. A
// non-positive ceiling disables the governor.
type CostGovernor struct {
	ceiling      float64
	warnFraction float64
}

// NewCostGovernor creates a governor for the given ceiling.
func NewCostGovernor(ceiling float64) *CostGovernor {
	return &CostGovernor{ceiling: ceiling, warnFraction: DefaultWarningFraction}
}

// Enabled reports whether a ceiling is configured.
func (g *CostGovernor) Enabled() bool {
	return g.ceiling > 0
}

// Ceiling returns the configured ceiling in USD.
func (g *CostGovernor) Ceiling() float64 {
	return g.ceiling
}

// ShouldStop reports whether cumulative spend has strictly exceeded
// the ceiling.
func (g *CostGovernor) ShouldStop(spend float64) bool {
	return g.Enabled() && spend > g.ceiling
}

// Status classifies cumulative spend against the ceiling.
func (g *CostGovernor) Status(spend float64) BudgetStatus {
	if !g.Enabled() {
		return BudgetOK
	}
	if spend > g.ceiling {
		return BudgetExceeded
	}
	if spend >= g.ceiling*g.warnFraction {
		return BudgetWarning
	}
	return BudgetOK
}
