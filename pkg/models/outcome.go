package models

// OutcomeKind identifies how a loop run terminated.
type OutcomeKind string

const (
	// OutcomeCompleted indicates the completion promise was detected.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeBudgetExceeded indicates cumulative spend passed the ceiling.
	OutcomeBudgetExceeded OutcomeKind = "budget_exceeded"
	// OutcomeContextExhausted indicates compaction could not recover context headroom.
	OutcomeContextExhausted OutcomeKind = "context_exhausted"
	// OutcomeMaxIterations indicates the iteration cap was reached without completion.
	OutcomeMaxIterations OutcomeKind = "max_iterations"
	// OutcomeStopped indicates an operator requested a stop between iterations.
	OutcomeStopped OutcomeKind = "stopped"
	// OutcomeFailed indicates an unrecoverable infrastructure failure.
	OutcomeFailed OutcomeKind = "failed"
)

// Valid returns true if the kind is a known value.
func (k OutcomeKind) Valid() bool {
	switch k {
	case OutcomeCompleted, OutcomeBudgetExceeded, OutcomeContextExhausted,
		OutcomeMaxIterations, OutcomeStopped, OutcomeFailed:
		return true
	default:
		return false
	}
}

// ExitCode maps the kind to the process exit code contract.
// Scripts and CI branch on these without parsing output; 2 is left
// to the CLI framework for usage errors.
func (k OutcomeKind) ExitCode() int {
	switch k {
	case OutcomeCompleted:
		return 0
	case OutcomeMaxIterations:
		return 3
	case OutcomeBudgetExceeded:
		return 4
	case OutcomeContextExhausted:
		return 5
	case OutcomeStopped:
		return 6
	default:
		return 1
	}
}

// Outcome is the single tagged result of a loop invocation.
// Exactly one Outcome is produced per run.
type Outcome struct {
	// Kind is how the run terminated.
	Kind OutcomeKind `json:"kind"`
	// Response is the final agent response (set for completed runs).
	Response string `json:"response,omitempty"`
	// Iterations is the number of successful agent invocations made.
	Iterations int `json:"iterations"`
	// Spend is the cumulative cost in USD at termination.
	Spend float64 `json:"spend"`
	// Err is the terminal error for failed runs.
	Err error `json:"-"`
}

// ErrorMessage returns the terminal error text, or "" when none.
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
