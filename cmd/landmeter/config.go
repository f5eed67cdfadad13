package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwiersma/landmeter/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Landmeter configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/landmeter/config.yaml
Project-specific overrides can be placed in .landmeter.yaml`,
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
	fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Anthropic.APIKey))
	fmt.Printf("anthropic.model: %s\n", orUnset(cfg.Anthropic.Model))
	fmt.Printf("anthropic.use_aws_bedrock: %t\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", orUnset(cfg.Anthropic.AWSRegion))
	fmt.Printf("anthropic.aws_profile: %s\n", orUnset(cfg.Anthropic.AWSProfile))
	fmt.Printf("orchestrator.max_rounds: %d\n", cfg.Orchestrator.MaxRounds)
	fmt.Printf("orchestrator.history_tail: %d\n", cfg.Orchestrator.HistoryTail)
	fmt.Printf("timeouts.handshake: %s\n", cfg.Timeouts.Handshake)
	fmt.Printf("timeouts.call: %s\n", cfg.Timeouts.Call)
	fmt.Printf("timeouts.decide: %s\n", cfg.Timeouts.Decide)
	fmt.Printf("catalog.path: %s\n", orUnset(cfg.Catalog.Path))
	fmt.Printf("transcript.enabled: %t\n", cfg.Transcript.Enabled)
	fmt.Printf("transcript.path: %s\n", orUnset(cfg.Transcript.Path))
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
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
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseAWSBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "orchestrator.max_rounds":
		return strconv.Itoa(cfg.Orchestrator.MaxRounds), nil
	case "orchestrator.history_tail":
		return strconv.Itoa(cfg.Orchestrator.HistoryTail), nil
	case "timeouts.handshake":
		return cfg.Timeouts.Handshake.String(), nil
	case "timeouts.call":
		return cfg.Timeouts.Call.String(), nil
	case "timeouts.decide":
		return cfg.Timeouts.Decide.String(), nil
	case "catalog.path":
		return cfg.Catalog.Path, nil
	case "transcript.enabled":
		return strconv.FormatBool(cfg.Transcript.Enabled), nil
	case "transcript.path":
		return cfg.Transcript.Path, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_aws_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_aws_bedrock: %w", err)
		}
		cfg.Anthropic.UseAWSBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "orchestrator.max_rounds":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid value for max_rounds: must be a positive integer")
		}
		cfg.Orchestrator.MaxRounds = n
	case "orchestrator.history_tail":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid value for history_tail: must be a positive integer")
		}
		cfg.Orchestrator.HistoryTail = n
	case "timeouts.handshake":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for timeouts.handshake: %w", err)
		}
		cfg.Timeouts.Handshake = d
	case "timeouts.call":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for timeouts.call: %w", err)
		}
		cfg.Timeouts.Call = d
	case "timeouts.decide":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for timeouts.decide: %w", err)
		}
		cfg.Timeouts.Decide = d
	case "catalog.path":
		cfg.Catalog.Path = value
	case "transcript.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for transcript.enabled: %w", err)
		}
		cfg.Transcript.Enabled = b
	case "transcript.path":
		cfg.Transcript.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
