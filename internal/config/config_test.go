package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "stagehand", cfg.Logger.ServiceName)
	assert.Equal(t, "red", cfg.Logger.Colors.Error)

	assert.True(t, cfg.Browser.DisableGPU)
	assert.Equal(t, 90*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 30*time.Second, cfg.Browser.ActionTimeout)

	assert.Equal(t, "workflows/config.yaml", cfg.Run.WorkflowPath)
	assert.Equal(t, "screenshots", cfg.Run.ErrorScreenshotDir)
	assert.Zero(t, cfg.Run.Timeout)

	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("logger.level", "debug")
	v.Set("browser.navigation_timeout", "10s")
	v.Set("run.workflow_path", "jobs/apply.yaml")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 10*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, "jobs/apply.yaml", cfg.Run.WorkflowPath)
}

func TestValidateRejectsBadDurations(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"negative navigation timeout": func(c *Config) { c.Browser.NavigationTimeout = -time.Second },
		"zero action timeout":         func(c *Config) { c.Browser.ActionTimeout = 0 },
		"negative run timeout":        func(c *Config) { c.Run.Timeout = -time.Minute },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestNewConfigFromViperInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("browser.action_timeout", "-5s")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
}
