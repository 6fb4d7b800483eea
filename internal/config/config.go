// Package config holds the application-level configuration: logging, browser
// process flags, and run defaults. The workflow document itself is a
// separate input owned by the workflow package.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration, populated from the config
// file, STAGEHAND_* environment variables and flag bindings via viper.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Run     RunConfig     `mapstructure:"run" yaml:"run"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the console color per log level.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome process itself. Headless and
// viewport live in the workflow document because they are properties of a
// recorded workflow, not of the installation.
type BrowserConfig struct {
	DisableGPU        bool          `mapstructure:"disable_gpu" yaml:"disable_gpu"`
	UserDataDir       string        `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// MaxSessions caps how many tabs one browser process drives at once.
	MaxSessions int64 `mapstructure:"max_sessions" yaml:"max_sessions"`
}

// RunConfig holds interpreter defaults.
type RunConfig struct {
	// WorkflowPath is used when the run command is given no argument.
	WorkflowPath string `mapstructure:"workflow_path" yaml:"workflow_path"`
	// ErrorScreenshotDir receives the diagnostic capture taken when a step
	// fails. Empty disables the capture.
	ErrorScreenshotDir string `mapstructure:"error_screenshot_dir" yaml:"error_screenshot_dir"`
	// Timeout bounds the whole run. 0 means no deadline.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stagehand")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.disable_gpu", true)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.action_timeout", "30s")
	v.SetDefault("browser.max_sessions", 2)

	// -- Run --
	v.SetDefault("run.workflow_path", "workflows/config.yaml")
	v.SetDefault("run.error_screenshot_dir", "screenshots")
	v.SetDefault("run.timeout", "0")
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Unreachable with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper builds and validates a configuration from a viper
// instance that has already read its sources.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Browser.NavigationTimeout < 0 {
		return fmt.Errorf("browser.navigation_timeout must not be negative")
	}
	if c.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("browser.action_timeout must be a positive duration")
	}
	if c.Browser.MaxSessions <= 0 {
		return fmt.Errorf("browser.max_sessions must be at least 1")
	}
	if c.Run.Timeout < 0 {
		return fmt.Errorf("run.timeout must not be negative")
	}
	return nil
}
