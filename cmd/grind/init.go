package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/grindloop/grind/internal/config"
)

var (
	initForce      bool
	initWithConfig bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a grind project",
	Long: `Initialize a directory for use with grind.

This command sets up everything needed to run:
  - Creates the .grind directory structure (signals, logs)
  - Checks that an API key is available
  - Adds .grind entries to .gitignore when inside a git repository
  - Optionally creates a .grind.yaml config template

The directory argument is optional and defaults to the current directory.

Examples:
  grind init                # Initialize current directory
  grind init ./myproject    # Initialize specific directory
  grind init --force        # Reinitialize even if already set up
  grind init --with-config  # Create a .grind.yaml template`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initWithConfig, "with-config", false, "Create a .grind.yaml config template")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing grind in %s...\n\n", absPath)

	grindDir := filepath.Join(absPath, ".grind")
	if _, err := os.Stat(grindDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	haveKey := false
	if config.RequiresAPIKey(cfg) {
		if _, err := config.GetAPIKey(cfg); err != nil {
			printStatus("⚠", "No Anthropic API key found (set ANTHROPIC_API_KEY or anthropic.api_key)", color.FgYellow)
		} else {
			printStatus("✓", "Anthropic API key found", color.FgGreen)
			haveKey = true
		}
	} else {
		printStatus("✓", "Bedrock routing enabled, using AWS credentials", color.FgGreen)
		haveKey = true
	}

	for _, sub := range []string{"signals", "logs"} {
		if err := os.MkdirAll(filepath.Join(grindDir, sub), 0755); err != nil {
			return fmt.Errorf("creating .grind/%s directory: %w", sub, err)
		}
	}
	printStatus("✓", "Created .grind directory structure", color.FgGreen)

	if _, err := os.Stat(filepath.Join(absPath, ".git")); err == nil {
		if err := updateGitignore(absPath); err != nil {
			return fmt.Errorf("updating .gitignore: %w", err)
		}
		printStatus("✓", "Updated .gitignore with grind entries", color.FgGreen)
	}

	if initWithConfig {
		if err := createProjectConfig(absPath); err != nil {
			return fmt.Errorf("creating project config: %w", err)
		}
		printStatus("✓", "Created .grind.yaml template", color.FgGreen)
	}

	fmt.Printf("\n%s grind initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	if !haveKey {
		fmt.Println("  1. Set your API key:")
		fmt.Println("     export ANTHROPIC_API_KEY=your-key-here")
		fmt.Println()
	}
	fmt.Println("  2. Start a run:")
	fmt.Println("     grind run -p \"your task here\" --completion-promise TASK_COMPLETE")
	fmt.Println()
	fmt.Println("  3. Learn more:")
	fmt.Println("     grind --help")

	return nil
}

// updateGitignore adds grind entries to .gitignore if not present.
func updateGitignore(repoPath string) error {
	gitignorePath := filepath.Join(repoPath, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	grindEntries := []string{
		".grind/",
	}

	needsUpdate := false
	for _, entry := range grindEntries {
		if !strings.Contains(existingContent, entry) {
			needsUpdate = true
			break
		}
	}
	if !needsUpdate {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# grind\n")
	for _, entry := range grindEntries {
		if !strings.Contains(existingContent, entry) {
			newContent.WriteString(entry + "\n")
		}
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

// createProjectConfig creates a .grind.yaml template.
func createProjectConfig(repoPath string) error {
	configPath := filepath.Join(repoPath, ".grind.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	template := `# grind project configuration
# This file overrides defaults from ~/.config/grind/config.yaml

# defaults:
#   model: sonnet
#   fallback_model: haiku
#   max_iterations: 50
#   budget: 10.00
#   completion_promise: TASK_COMPLETE
#   guard: anywhere
#   autonomous: false

# loop:
#   context_threshold: 0.8
#   compact_strategy: window
#   keep_pairs: 3

# retry:
#   max_retries: 3
#   base_delay: 2s
#   max_delay: 60s

# models:
#   catalog: .grind/models.yaml
`

	return os.WriteFile(configPath, []byte(template), 0644)
}

// printStatus prints a status line with color.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}
