package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grind",
	Short: "Iterate a coding agent until the task is done",
	Long: `Grind drives a coding agent in a loop: the same prompt is sent
every iteration, the conversation carries forward, and the run ends
when the agent emits its completion promise.

Between iterations the loop enforces an iteration cap, a cost
ceiling, and context-window headroom, so an agent that never
finishes cannot run away with your budget.

Start a run:
  grind run -p "fix the failing tests" --completion-promise TASK_COMPLETE

Steer a running loop from another terminal:
  echo "model opus" > .grind/signals/steer
  touch .grind/signals/pause
  touch .grind/signals/stop`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
