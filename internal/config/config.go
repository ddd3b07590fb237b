// Package config handles configuration loading and management for replica.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/replica/pkg/models"
)

// ProjectConfigName is the per-project override file searched upward from
// the working directory.
const ProjectConfigName = ".replica.yaml"

// Config holds all configuration for replica.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
	Project   ProjectConfig   `mapstructure:"project"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Output    OutputConfig    `mapstructure:"output"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings for the code generator.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// LoopConfig holds the refinement loop budgets and stop conditions.
type LoopConfig struct {
	MaxIterations  int     `mapstructure:"max_iterations"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	// PlateauDelta is in score points on the 0-100 scale.
	PlateauDelta      float64 `mapstructure:"plateau_delta"`
	PlateauWindow     int     `mapstructure:"plateau_window"`
	TopN              int     `mapstructure:"top_n"`
	HealthRetries     int     `mapstructure:"health_retries"`
	GenerationRetries int     `mapstructure:"generation_retries"`
	CaptureRetries    int     `mapstructure:"capture_retries"`
}

// TimeoutsConfig holds per-stage timeouts.
type TimeoutsConfig struct {
	Ready    time.Duration `mapstructure:"ready"`
	Capture  time.Duration `mapstructure:"capture"`
	Build    time.Duration `mapstructure:"build"`
	Generate time.Duration `mapstructure:"generate"`
}

// ProjectConfig describes the generated project and how to build it.
// Empty commands are detected from the generated files.
type ProjectConfig struct {
	Dir        string `mapstructure:"dir"`
	Stack      string `mapstructure:"stack"`
	InstallCmd string `mapstructure:"install_cmd"`
	BuildCmd   string `mapstructure:"build_cmd"`
	LintCmd    string `mapstructure:"lint_cmd"`
	ServeCmd   string `mapstructure:"serve_cmd"`
	ServeURL   string `mapstructure:"serve_url"`
}

// BrowserConfig holds fingerprint capture settings.
type BrowserConfig struct {
	// Static captures with the HTML parser instead of a browser.
	Static         bool          `mapstructure:"static"`
	RemoteURL      string        `mapstructure:"remote_url"`
	Bin            string        `mapstructure:"bin"`
	Headless       bool          `mapstructure:"headless"`
	Stealth        bool          `mapstructure:"stealth"`
	Viewport       string        `mapstructure:"viewport"`
	ViewportWidth  int           `mapstructure:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height"`
	SettleTime     time.Duration `mapstructure:"settle_time"`
}

// OutputConfig holds where session directories are created.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, REPLICA_*)
// 2. Project config (.replica.yaml in current directory or parent)
// 3. User config (~/.config/replica/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	// Load user config from XDG path
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REPLICA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "REPLICA_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.Output.Dir = os.ExpandEnv(cfg.Output.Dir)
	return cfg, nil
}

// Save writes the user-facing settings of cfg to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("loop.max_iterations", cfg.Loop.MaxIterations)
	v.Set("loop.score_threshold", cfg.Loop.ScoreThreshold)
	v.Set("loop.plateau_delta", cfg.Loop.PlateauDelta)
	v.Set("loop.plateau_window", cfg.Loop.PlateauWindow)
	v.Set("loop.top_n", cfg.Loop.TopN)
	v.Set("loop.health_retries", cfg.Loop.HealthRetries)
	v.Set("loop.generation_retries", cfg.Loop.GenerationRetries)
	v.Set("loop.capture_retries", cfg.Loop.CaptureRetries)
	v.Set("timeouts.ready", cfg.Timeouts.Ready.String())
	v.Set("timeouts.capture", cfg.Timeouts.Capture.String())
	v.Set("timeouts.build", cfg.Timeouts.Build.String())
	v.Set("timeouts.generate", cfg.Timeouts.Generate.String())
	v.Set("project.dir", cfg.Project.Dir)
	v.Set("project.stack", cfg.Project.Stack)
	v.Set("project.install_cmd", cfg.Project.InstallCmd)
	v.Set("project.build_cmd", cfg.Project.BuildCmd)
	v.Set("project.lint_cmd", cfg.Project.LintCmd)
	v.Set("project.serve_cmd", cfg.Project.ServeCmd)
	v.Set("project.serve_url", cfg.Project.ServeURL)
	v.Set("browser.static", cfg.Browser.Static)
	v.Set("browser.remote_url", cfg.Browser.RemoteURL)
	v.Set("browser.bin", cfg.Browser.Bin)
	v.Set("browser.headless", cfg.Browser.Headless)
	v.Set("browser.stealth", cfg.Browser.Stealth)
	v.Set("browser.viewport", cfg.Browser.Viewport)
	v.Set("browser.viewport_width", cfg.Browser.ViewportWidth)
	v.Set("browser.viewport_height", cfg.Browser.ViewportHeight)
	v.Set("browser.settle_time", cfg.Browser.SettleTime.String())
	v.Set("output.dir", cfg.Output.Dir)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

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
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("loop.max_iterations", d.Loop.MaxIterations)
	v.SetDefault("loop.score_threshold", d.Loop.ScoreThreshold)
	v.SetDefault("loop.plateau_delta", d.Loop.PlateauDelta)
	v.SetDefault("loop.plateau_window", d.Loop.PlateauWindow)
	v.SetDefault("loop.top_n", d.Loop.TopN)
	v.SetDefault("loop.health_retries", d.Loop.HealthRetries)
	v.SetDefault("loop.generation_retries", d.Loop.GenerationRetries)
	v.SetDefault("loop.capture_retries", d.Loop.CaptureRetries)

	v.SetDefault("timeouts.ready", "60s")
	v.SetDefault("timeouts.capture", "45s")
	v.SetDefault("timeouts.build", "5m")
	v.SetDefault("timeouts.generate", "10m")

	v.SetDefault("project.dir", "")
	v.SetDefault("project.stack", "")
	v.SetDefault("project.install_cmd", "")
	v.SetDefault("project.build_cmd", "")
	v.SetDefault("project.lint_cmd", "")
	v.SetDefault("project.serve_cmd", "")
	v.SetDefault("project.serve_url", "")

	v.SetDefault("browser.static", false)
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.viewport", d.Browser.Viewport)
	v.SetDefault("browser.viewport_width", 0)
	v.SetDefault("browser.viewport_height", 0)
	v.SetDefault("browser.settle_time", "500ms")

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for replica.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "replica")
	}

	// Fall back to ~/.config/replica
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "replica")
	}
	return filepath.Join(home, ".config", "replica")
}

// findProjectConfig searches for .replica.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
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

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 32000,
		},
		Loop: LoopConfig{
			MaxIterations:     5,
			ScoreThreshold:    60,
			PlateauDelta:      1.0,
			PlateauWindow:     2,
			TopN:              10,
			HealthRetries:     3,
			GenerationRetries: 3,
			CaptureRetries:    3,
		},
		Timeouts: TimeoutsConfig{
			Ready:    60 * time.Second,
			Capture:  45 * time.Second,
			Build:    5 * time.Minute,
			Generate: 10 * time.Minute,
		},
		Browser: BrowserConfig{
			Headless:   true,
			Stealth:    true,
			Viewport:   "desktop",
			SettleTime: 500 * time.Millisecond,
		},
		Output: OutputConfig{
			Dir: "output",
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}

// Validate reports every setting that would prevent a run from starting.
func (c *Config) Validate() error {
	var errs []error

	if !c.Anthropic.UseBedrock {
		key, err := GetAPIKey(c)
		if err == nil {
			err = ValidateAPIKey(key)
		}
		if err != nil {
			errs = append(errs, err)
		}
	} else if c.Anthropic.AWSRegion == "" && os.Getenv("AWS_REGION") == "" {
		errs = append(errs, errors.New("anthropic.aws_region is required with use_bedrock"))
	}

	l := c.Loop
	if l.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("loop.max_iterations must be at least 1, got %d", l.MaxIterations))
	}
	if l.ScoreThreshold < 0 || l.ScoreThreshold > 100 {
		errs = append(errs, fmt.Errorf("loop.score_threshold must be within 0-100, got %g", l.ScoreThreshold))
	}
	if l.PlateauDelta < 0 || l.PlateauWindow < 0 {
		errs = append(errs, errors.New("loop.plateau_delta and loop.plateau_window must not be negative"))
	}
	if l.TopN < 0 {
		errs = append(errs, fmt.Errorf("loop.top_n must not be negative, got %d", l.TopN))
	}
	if l.HealthRetries < 0 || l.GenerationRetries < 0 || l.CaptureRetries < 0 {
		errs = append(errs, errors.New("loop retry budgets must not be negative"))
	}

	t := c.Timeouts
	if t.Ready <= 0 || t.Capture <= 0 || t.Build <= 0 || t.Generate <= 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}

	if _, ok := models.ViewportByName(c.Browser.Viewport); !ok {
		errs = append(errs, fmt.Errorf("browser.viewport must be desktop, tablet or mobile, got %q", c.Browser.Viewport))
	}
	if c.Browser.ViewportWidth < 0 || c.Browser.ViewportHeight < 0 {
		errs = append(errs, errors.New("browser viewport size must not be negative"))
	}
	if c.Output.Dir == "" {
		errs = append(errs, errors.New("output.dir must be set"))
	}

	return errors.Join(errs...)
}
