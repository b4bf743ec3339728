package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/grindloop/grind/internal/state"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	Long: `Show recent runs, newest first, with their outcomes, iteration
counts, and spend. Reads the project state database when the current
directory has one, falling back to the global database.`,
	RunE: showHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Number of runs to show")
}

func showHistory(cmd *cobra.Command, args []string) error {
	db, err := openStateDB()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet. Start one with 'grind run'.")
		return nil
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	fmt.Println(titleStyle.Render("Run history"))
	fmt.Println(dimStyle.Render(db.Path()))
	fmt.Println()
	fmt.Printf("%-10s %-16s %-16s %5s %8s %8s  %s\n",
		"ID", "STARTED", "OUTCOME", "ITERS", "SPEND", "TIME", "PROMPT")
	for _, r := range runs {
		outcome := r.Outcome
		if outcome == "" {
			outcome = "running"
		}
		fmt.Printf("%-10s %-16s %-16s %5d %8s %8s  %s\n",
			shortID(r.ID),
			r.StartedAt.Format("2006-01-02 15:04"),
			outcome,
			r.Iterations,
			fmt.Sprintf("$%.2f", r.Spend),
			formatDuration(runDuration(r)),
			truncatePrompt(r.Prompt, 40),
		)
	}
	return nil
}

// openStateDB opens the project database when one exists next to the
// working directory, otherwise the global one.
func openStateDB() (*state.DB, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	if _, err := os.Stat(state.ProjectDBPath(cwd)); err == nil {
		return state.OpenProject(cwd)
	}
	return state.OpenGlobal()
}

// runDuration is the wall-clock span of a run, live runs measured
// against now.
func runDuration(r state.Run) time.Duration {
	end := time.Now()
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	d := end.Sub(r.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// formatDuration renders a duration in the largest sensible unit.
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%.1fh", d.Hours())
	case d >= time.Minute:
		return fmt.Sprintf("%.1fm", d.Minutes())
	default:
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
}

// truncatePrompt bounds a prompt for table display.
func truncatePrompt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
