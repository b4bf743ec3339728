// Package config handles configuration loading and management for grind.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for grind.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	AWS       AWSConfig       `mapstructure:"aws"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Retry     RetryConfig     `mapstructure:"retry"`
	TUI       TUIConfig       `mapstructure:"tui"`
	Models    ModelsConfig    `mapstructure:"models"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// AWSConfig holds Bedrock routing settings. When UseBedrock is set,
// requests go through AWS instead of the Anthropic API.
type AWSConfig struct {
	UseBedrock bool   `mapstructure:"use_bedrock"`
	Region     string `mapstructure:"region"`
	Profile    string `mapstructure:"profile"`
}

// DefaultsConfig holds default values for grind runs.
type DefaultsConfig struct {
	// Model is the model id or alias used when --model is not given.
	Model string `mapstructure:"model"`
	// FallbackModel, when set, is switched to after repeated call
	// failures on the primary model.
	FallbackModel string `mapstructure:"fallback_model"`
	// MaxIterations caps successful agent calls per run.
	MaxIterations int `mapstructure:"max_iterations"`
	// Budget is the USD spend ceiling. Zero means unlimited.
	Budget float64 `mapstructure:"budget"`
	// CompletionPromise is the marker the agent prints when done.
	CompletionPromise string `mapstructure:"completion_promise"`
	// Guard is the promise match mode: anywhere, line, fenced-line.
	Guard string `mapstructure:"guard"`
	// Autonomous asks the agent to proceed without questions.
	Autonomous bool `mapstructure:"autonomous"`
}

// LoopConfig holds context-window governance settings.
type LoopConfig struct {
	// ContextThreshold is the utilization fraction that triggers
	// compaction before the next call.
	ContextThreshold float64 `mapstructure:"context_threshold"`
	// CompactStrategy selects how history shrinks: window or summarize.
	CompactStrategy string `mapstructure:"compact_strategy"`
	// KeepPairs is how many recent exchanges the window strategy keeps.
	KeepPairs int `mapstructure:"keep_pairs"`
}

// RetryConfig holds transient-failure retry settings.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// ModelsConfig holds model catalog settings.
type ModelsConfig struct {
	// Catalog is an optional YAML file adding or overriding model
	// definitions.
	Catalog string `mapstructure:"catalog"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (GRIND_*, ANTHROPIC_API_KEY)
// 2. Project config (.grind.yaml in current directory or parent)
// 3. User config (~/.config/grind/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides: GRIND_DEFAULTS_MODEL and the like
	v.SetEnvPrefix("GRIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map well-known variables that don't carry the prefix
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("aws.region", "AWS_REGION")
	v.BindEnv("aws.profile", "AWS_PROFILE")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("aws.use_bedrock", cfg.AWS.UseBedrock)
	v.Set("aws.region", cfg.AWS.Region)
	v.Set("aws.profile", cfg.AWS.Profile)
	v.Set("defaults.model", cfg.Defaults.Model)
	v.Set("defaults.fallback_model", cfg.Defaults.FallbackModel)
	v.Set("defaults.max_iterations", cfg.Defaults.MaxIterations)
	v.Set("defaults.budget", cfg.Defaults.Budget)
	v.Set("defaults.completion_promise", cfg.Defaults.CompletionPromise)
	v.Set("defaults.guard", cfg.Defaults.Guard)
	v.Set("defaults.autonomous", cfg.Defaults.Autonomous)
	v.Set("loop.context_threshold", cfg.Loop.ContextThreshold)
	v.Set("loop.compact_strategy", cfg.Loop.CompactStrategy)
	v.Set("loop.keep_pairs", cfg.Loop.KeepPairs)
	v.Set("retry.max_retries", cfg.Retry.MaxRetries)
	v.Set("retry.base_delay", cfg.Retry.BaseDelay.String())
	v.Set("retry.max_delay", cfg.Retry.MaxDelay.String())
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())
	v.Set("models.catalog", cfg.Models.Catalog)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")

	v.SetDefault("aws.use_bedrock", false)
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.profile", "")

	v.SetDefault("defaults.model", "sonnet")
	v.SetDefault("defaults.fallback_model", "")
	v.SetDefault("defaults.max_iterations", 50)
	v.SetDefault("defaults.budget", 0.0)
	v.SetDefault("defaults.completion_promise", "TASK_COMPLETE")
	v.SetDefault("defaults.guard", "anywhere")
	v.SetDefault("defaults.autonomous", true)

	v.SetDefault("loop.context_threshold", 0.8)
	v.SetDefault("loop.compact_strategy", "window")
	v.SetDefault("loop.keep_pairs", 4)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")

	v.SetDefault("tui.refresh_rate", "100ms")

	v.SetDefault("models.catalog", "")
}

// getUserConfigDir returns the XDG config directory for grind.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "grind")
	}

	// Fall back to ~/.config/grind
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "grind")
	}
	return filepath.Join(home, ".config", "grind")
}

// findProjectConfig searches for .grind.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".grind.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Model:             "sonnet",
			MaxIterations:     50,
			CompletionPromise: "TASK_COMPLETE",
			Guard:             "anywhere",
			Autonomous:        true,
		},
		Loop: LoopConfig{
			ContextThreshold: 0.8,
			CompactStrategy:  "window",
			KeepPairs:        4,
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  1 * time.Second,
			MaxDelay:   30 * time.Second,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
