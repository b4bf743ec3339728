package models

import (
	"errors"
	"testing"
)

func TestOutcomeKind_Valid(t *testing.T) {
	tests := []struct {
		name string
		kind OutcomeKind
		want bool
	}{
		{"completed is valid", OutcomeCompleted, true},
		{"budget_exceeded is valid", OutcomeBudgetExceeded, true},
		{"context_exhausted is valid", OutcomeContextExhausted, true},
		{"max_iterations is valid", OutcomeMaxIterations, true},
		{"stopped is valid", OutcomeStopped, true},
		{"failed is valid", OutcomeFailed, true},
		{"empty string is invalid", OutcomeKind(""), false},
		{"unknown kind is invalid", OutcomeKind("cancelled"), false},
		{"uppercase is invalid", OutcomeKind("COMPLETED"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.kind.Valid(); got != tt.want {
				t.Errorf("OutcomeKind(%q).Valid() = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestOutcomeKind_ExitCode(t *testing.T) {
	tests := []struct {
		kind OutcomeKind
		want int
	}{
		{OutcomeCompleted, 0},
		{OutcomeFailed, 1},
		{OutcomeMaxIterations, 3},
		{OutcomeBudgetExceeded, 4},
		{OutcomeContextExhausted, 5},
		{OutcomeStopped, 6},
		{OutcomeKind("unknown"), 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.ExitCode(); got != tt.want {
				t.Errorf("OutcomeKind(%q).ExitCode() = %d, want %d", tt.kind, got, tt.want)
			}
		})
	}
}

func TestOutcomeKind_ExitCodesDistinct(t *testing.T) {
	kinds := []OutcomeKind{
		OutcomeCompleted, OutcomeBudgetExceeded, OutcomeContextExhausted,
		OutcomeMaxIterations, OutcomeStopped, OutcomeFailed,
	}

	seen := make(map[int]OutcomeKind)
	for _, k := range kinds {
		code := k.ExitCode()
		if prev, ok := seen[code]; ok {
			t.Errorf("exit code %d shared by %q and %q", code, prev, k)
		}
		seen[code] = k
	}
}

func TestOutcome_ErrorMessage(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    string
	}{
		{"no error", Outcome{Kind: OutcomeCompleted}, ""},
		{"with error", Outcome{Kind: OutcomeFailed, Err: errors.New("api unreachable")}, "api unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.outcome.ErrorMessage(); got != tt.want {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
