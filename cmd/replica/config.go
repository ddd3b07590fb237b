package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/replica/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify replica configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/replica/config.yaml
Project-specific overrides can be placed in .replica.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			return setConfigKey(cfg, args[0], args[1])
		}
	},
}

// configKeys lists the keys shown by `replica config`, in display order.
var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.max_tokens",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"loop.max_iterations",
	"loop.score_threshold",
	"loop.plateau_delta",
	"loop.plateau_window",
	"loop.top_n",
	"loop.health_retries",
	"loop.generation_retries",
	"loop.capture_retries",
	"timeouts.ready",
	"timeouts.capture",
	"timeouts.build",
	"timeouts.generate",
	"project.dir",
	"project.stack",
	"project.install_cmd",
	"project.build_cmd",
	"project.lint_cmd",
	"project.serve_cmd",
	"project.serve_url",
	"browser.static",
	"browser.remote_url",
	"browser.bin",
	"browser.headless",
	"browser.stealth",
	"browser.viewport",
	"browser.viewport_width",
	"browser.viewport_height",
	"browser.settle_time",
	"output.dir",
	"tui.refresh_rate",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, err := getConfigValue(cfg, key)
		if err != nil {
			continue
		}
		fmt.Printf("%s: %s\n", key, value)
	}
	fmt.Printf("\n(api key source: %s)\n", config.GetAPIKeySource(cfg))
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) error {
	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if strings.EqualFold(key, "anthropic.api_key") {
		value = config.MaskAPIKey(value)
	}
	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		apiKey, _ := config.GetAPIKey(cfg)
		return config.MaskAPIKey(apiKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return strconv.FormatInt(cfg.Anthropic.MaxTokens, 10), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "loop.max_iterations":
		return strconv.Itoa(cfg.Loop.MaxIterations), nil
	case "loop.score_threshold":
		return strconv.FormatFloat(cfg.Loop.ScoreThreshold, 'g', -1, 64), nil
	case "loop.plateau_delta":
		return strconv.FormatFloat(cfg.Loop.PlateauDelta, 'g', -1, 64), nil
	case "loop.plateau_window":
		return strconv.Itoa(cfg.Loop.PlateauWindow), nil
	case "loop.top_n":
		return strconv.Itoa(cfg.Loop.TopN), nil
	case "loop.health_retries":
		return strconv.Itoa(cfg.Loop.HealthRetries), nil
	case "loop.generation_retries":
		return strconv.Itoa(cfg.Loop.GenerationRetries), nil
	case "loop.capture_retries":
		return strconv.Itoa(cfg.Loop.CaptureRetries), nil
	case "timeouts.ready":
		return cfg.Timeouts.Ready.String(), nil
	case "timeouts.capture":
		return cfg.Timeouts.Capture.String(), nil
	case "timeouts.build":
		return cfg.Timeouts.Build.String(), nil
	case "timeouts.generate":
		return cfg.Timeouts.Generate.String(), nil
	case "project.dir":
		return cfg.Project.Dir, nil
	case "project.stack":
		return cfg.Project.Stack, nil
	case "project.install_cmd":
		return cfg.Project.InstallCmd, nil
	case "project.build_cmd":
		return cfg.Project.BuildCmd, nil
	case "project.lint_cmd":
		return cfg.Project.LintCmd, nil
	case "project.serve_cmd":
		return cfg.Project.ServeCmd, nil
	case "project.serve_url":
		return cfg.Project.ServeURL, nil
	case "browser.static":
		return strconv.FormatBool(cfg.Browser.Static), nil
	case "browser.remote_url":
		return cfg.Browser.RemoteURL, nil
	case "browser.bin":
		return cfg.Browser.Bin, nil
	case "browser.headless":
		return strconv.FormatBool(cfg.Browser.Headless), nil
	case "browser.stealth":
		return strconv.FormatBool(cfg.Browser.Stealth), nil
	case "browser.viewport":
		return cfg.Browser.Viewport, nil
	case "browser.viewport_width":
		return strconv.Itoa(cfg.Browser.ViewportWidth), nil
	case "browser.viewport_height":
		return strconv.Itoa(cfg.Browser.ViewportHeight), nil
	case "browser.settle_time":
		return cfg.Browser.SettleTime.String(), nil
	case "output.dir":
		return cfg.Output.Dir, nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		cfg.Anthropic.MaxTokens, err = strconv.ParseInt(value, 10, 64)
	case "anthropic.use_bedrock":
		cfg.Anthropic.UseBedrock, err = strconv.ParseBool(value)
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "loop.max_iterations":
		cfg.Loop.MaxIterations, err = strconv.Atoi(value)
	case "loop.score_threshold":
		cfg.Loop.ScoreThreshold, err = strconv.ParseFloat(value, 64)
	case "loop.plateau_delta":
		cfg.Loop.PlateauDelta, err = strconv.ParseFloat(value, 64)
	case "loop.plateau_window":
		cfg.Loop.PlateauWindow, err = strconv.Atoi(value)
	case "loop.top_n":
		cfg.Loop.TopN, err = strconv.Atoi(value)
	case "loop.health_retries":
		cfg.Loop.HealthRetries, err = strconv.Atoi(value)
	case "loop.generation_retries":
		cfg.Loop.GenerationRetries, err = strconv.Atoi(value)
	case "loop.capture_retries":
		cfg.Loop.CaptureRetries, err = strconv.Atoi(value)
	case "timeouts.ready":
		cfg.Timeouts.Ready, err = time.ParseDuration(value)
	case "timeouts.capture":
		cfg.Timeouts.Capture, err = time.ParseDuration(value)
	case "timeouts.build":
		cfg.Timeouts.Build, err = time.ParseDuration(value)
	case "timeouts.generate":
		cfg.Timeouts.Generate, err = time.ParseDuration(value)
	case "project.dir":
		cfg.Project.Dir = value
	case "project.stack":
		cfg.Project.Stack = value
	case "project.install_cmd":
		cfg.Project.InstallCmd = value
	case "project.build_cmd":
		cfg.Project.BuildCmd = value
	case "project.lint_cmd":
		cfg.Project.LintCmd = value
	case "project.serve_cmd":
		cfg.Project.ServeCmd = value
	case "project.serve_url":
		cfg.Project.ServeURL = value
	case "browser.static":
		cfg.Browser.Static, err = strconv.ParseBool(value)
	case "browser.remote_url":
		cfg.Browser.RemoteURL = value
	case "browser.bin":
		cfg.Browser.Bin = value
	case "browser.headless":
		cfg.Browser.Headless, err = strconv.ParseBool(value)
	case "browser.stealth":
		cfg.Browser.Stealth, err = strconv.ParseBool(value)
	case "browser.viewport":
		cfg.Browser.Viewport = value
	case "browser.viewport_width":
		cfg.Browser.ViewportWidth, err = strconv.Atoi(value)
	case "browser.viewport_height":
		cfg.Browser.ViewportHeight, err = strconv.Atoi(value)
	case "browser.settle_time":
		cfg.Browser.SettleTime, err = time.ParseDuration(value)
	case "output.dir":
		cfg.Output.Dir = value
	case "tui.refresh_rate":
		cfg.TUI.RefreshRate, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
