package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/grindloop/grind/internal/config"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models grind can run",
	Long: `List every model in the catalog with its context window and
per-million-token pricing. Any id or alias shown here works with
'grind run --model' and with a 'model <id>' steer directive.`,
	RunE: showModels,
}

func showModels(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	catalog, err := buildCatalog(cfg)
	if err != nil {
		return err
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	fmt.Println(titleStyle.Render("Available models"))
	fmt.Println()
	fmt.Printf("  %-28s %-18s %8s %8s %8s\n", "ID", "ALIASES", "CONTEXT", "IN $/M", "OUT $/M")

	def := catalog.Default()
	for _, info := range catalog.List() {
		marker := " "
		if info.ID == def.ID {
			marker = "*"
		}
		fmt.Printf("%s %-28s %-18s %8s %8.2f %8.2f\n",
			marker,
			info.ID,
			strings.Join(info.Aliases, ","),
			formatTokens(info.ContextWindow),
			info.InputPerMillion,
			info.OutputPerMillion,
		)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("* default model; set defaults.model in config to change it"))
	if cfg.Models.Catalog != "" {
		fmt.Println(dimStyle.Render("catalog overrides loaded from " + cfg.Models.Catalog))
	}
	return nil
}

// formatTokens renders a context window size compactly.
func formatTokens(n int) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%dk", n/1000)
	}
	return strconv.Itoa(n)
}
