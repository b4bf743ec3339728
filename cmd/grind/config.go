package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/grindloop/grind/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify grind configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/grind/config.yaml
Project-specific overrides can be placed in .grind.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	keyDisplay := config.MaskAPIKey(cfg.Anthropic.APIKey)
	if source := config.GetAPIKeySource(cfg); source == config.KeySourceEnv {
		keyDisplay = "(from environment)"
	}

	fmt.Printf("anthropic.api_key: %s\n", keyDisplay)
	fmt.Printf("aws.use_bedrock: %t\n", cfg.AWS.UseBedrock)
	fmt.Printf("aws.region: %s\n", cfg.AWS.Region)
	fmt.Printf("aws.profile: %s\n", cfg.AWS.Profile)
	fmt.Printf("defaults.model: %s\n", cfg.Defaults.Model)
	fmt.Printf("defaults.fallback_model: %s\n", cfg.Defaults.FallbackModel)
	fmt.Printf("defaults.max_iterations: %d\n", cfg.Defaults.MaxIterations)
	fmt.Printf("defaults.budget: %.2f\n", cfg.Defaults.Budget)
	fmt.Printf("defaults.completion_promise: %s\n", cfg.Defaults.CompletionPromise)
	fmt.Printf("defaults.guard: %s\n", cfg.Defaults.Guard)
	fmt.Printf("defaults.autonomous: %t\n", cfg.Defaults.Autonomous)
	fmt.Printf("loop.context_threshold: %.2f\n", cfg.Loop.ContextThreshold)
	fmt.Printf("loop.compact_strategy: %s\n", cfg.Loop.CompactStrategy)
	fmt.Printf("loop.keep_pairs: %d\n", cfg.Loop.KeepPairs)
	fmt.Printf("retry.max_retries: %d\n", cfg.Retry.MaxRetries)
	fmt.Printf("retry.base_delay: %s\n", cfg.Retry.BaseDelay)
	fmt.Printf("retry.max_delay: %s\n", cfg.Retry.MaxDelay)
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
	fmt.Printf("models.catalog: %s\n", cfg.Models.Catalog)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "aws.use_bedrock":
		return strconv.FormatBool(cfg.AWS.UseBedrock), nil
	case "aws.region":
		return cfg.AWS.Region, nil
	case "aws.profile":
		return cfg.AWS.Profile, nil
	case "defaults.model":
		return cfg.Defaults.Model, nil
	case "defaults.fallback_model":
		return cfg.Defaults.FallbackModel, nil
	case "defaults.max_iterations":
		return strconv.Itoa(cfg.Defaults.MaxIterations), nil
	case "defaults.budget":
		return strconv.FormatFloat(cfg.Defaults.Budget, 'f', 2, 64), nil
	case "defaults.completion_promise":
		return cfg.Defaults.CompletionPromise, nil
	case "defaults.guard":
		return cfg.Defaults.Guard, nil
	case "defaults.autonomous":
		return strconv.FormatBool(cfg.Defaults.Autonomous), nil
	case "loop.context_threshold":
		return strconv.FormatFloat(cfg.Loop.ContextThreshold, 'f', 2, 64), nil
	case "loop.compact_strategy":
		return cfg.Loop.CompactStrategy, nil
	case "loop.keep_pairs":
		return strconv.Itoa(cfg.Loop.KeepPairs), nil
	case "retry.max_retries":
		return strconv.Itoa(cfg.Retry.MaxRetries), nil
	case "retry.base_delay":
		return cfg.Retry.BaseDelay.String(), nil
	case "retry.max_delay":
		return cfg.Retry.MaxDelay.String(), nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	case "models.catalog":
		return cfg.Models.Catalog, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "aws.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_bedrock: %w", err)
		}
		cfg.AWS.UseBedrock = b
	case "aws.region":
		cfg.AWS.Region = value
	case "aws.profile":
		cfg.AWS.Profile = value
	case "defaults.model":
		cfg.Defaults.Model = value
	case "defaults.fallback_model":
		cfg.Defaults.FallbackModel = value
	case "defaults.max_iterations":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_iterations: %w", err)
		}
		cfg.Defaults.MaxIterations = n
	case "defaults.budget":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for budget: %w", err)
		}
		cfg.Defaults.Budget = f
	case "defaults.completion_promise":
		cfg.Defaults.CompletionPromise = value
	case "defaults.guard":
		if _, err := parseGuard(value); err != nil {
			return err
		}
		cfg.Defaults.Guard = value
	case "defaults.autonomous":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for autonomous: %w", err)
		}
		cfg.Defaults.Autonomous = b
	case "loop.context_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for context_threshold: %w", err)
		}
		if f <= 0 || f > 1 {
			return fmt.Errorf("context_threshold must be in (0, 1], got %s", value)
		}
		cfg.Loop.ContextThreshold = f
	case "loop.compact_strategy":
		cfg.Loop.CompactStrategy = value
	case "loop.keep_pairs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for keep_pairs: %w", err)
		}
		cfg.Loop.KeepPairs = n
	case "retry.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_retries: %w", err)
		}
		cfg.Retry.MaxRetries = n
	case "retry.base_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for base_delay: %w", err)
		}
		cfg.Retry.BaseDelay = d
	case "retry.max_delay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for max_delay: %w", err)
		}
		cfg.Retry.MaxDelay = d
	case "tui.refresh_rate":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for refresh_rate: %w", err)
		}
		cfg.TUI.RefreshRate = d
	case "models.catalog":
		cfg.Models.Catalog = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
