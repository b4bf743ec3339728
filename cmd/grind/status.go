package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/grindloop/grind/internal/checkpoint"
	"github.com/grindloop/grind/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show in-flight and resumable runs",
	Long: `Show the checkpoint state of this project: any run still marked
in flight (live, or interrupted by a crash) and every run that ended
short of completion and can be picked back up with --resume.`,
	RunE: showStatus,
}

func showStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	path := checkpoint.DefaultPath(cwd)
	if _, err := os.Stat(path); err != nil {
		fmt.Println("No runs in this project yet. Start one with 'grind run'.")
		return nil
	}

	store, err := checkpoint.NewStore(path)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	live, err := store.Latest()
	if err != nil {
		return fmt.Errorf("read checkpoints: %w", err)
	}
	if live != nil {
		fmt.Println(titleStyle.Render("In flight"))
		printCheckpoint(*live)
		fmt.Println(dimStyle.Render("  if this run is not actually running, resume it with:"))
		fmt.Println(dimStyle.Render("    grind run --resume " + live.RunID))
		fmt.Println()
	}

	all, err := store.List()
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}

	var resumable []checkpoint.Checkpoint
	for _, cp := range all {
		if isResumable(cp.Status) {
			resumable = append(resumable, cp)
		}
	}

	if len(resumable) > 0 {
		fmt.Println(titleStyle.Render("Resumable"))
		for _, cp := range resumable {
			printCheckpoint(cp)
		}
		fmt.Println(dimStyle.Render("  pick one up with: grind run --resume <id>"))
		fmt.Println()
	}

	if live == nil && len(resumable) == 0 {
		fmt.Println("Nothing in flight and nothing to resume.")
		fmt.Println(dimStyle.Render("see finished runs with: grind history"))
	}
	return nil
}

func printCheckpoint(cp checkpoint.Checkpoint) {
	fmt.Printf("  %s  %-16s iter %-4d $%-8.2f %s\n",
		shortID(cp.RunID), cp.Status, cp.Iteration, cp.TotalCost, cp.Model)
	fmt.Printf("    %s\n", truncatePrompt(cp.Prompt, 70))
	fmt.Printf("    last update %s\n", cp.UpdatedAt.Format(time.RFC1123))
}

// isResumable reports whether a checkpoint status invites --resume.
// Running runs are shown separately and completed or failed runs have
// nothing to continue.
func isResumable(status string) bool {
	switch status {
	case string(models.OutcomeStopped),
		string(models.OutcomeBudgetExceeded),
		string(models.OutcomeContextExhausted),
		string(models.OutcomeMaxIterations):
		return true
	}
	return false
}
