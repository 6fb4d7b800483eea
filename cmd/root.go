package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stagehand/internal/config"
	"github.com/xkilldash9x/stagehand/internal/observability"
)

// NewRootCommand builds the command tree. A fresh tree per invocation keeps
// flag state from leaking between runs in tests.
func NewRootCommand() *cobra.Command {
	var (
		cfgFile string
		debug   bool
	)

	rootCmd := &cobra.Command{
		Use:     "stagehand",
		Short:   "Stagehand replays recorded browser workflows.",
		Long: `Stagehand drives a real browser through a YAML workflow of recorded
pixel-coordinate actions: navigate, click, type, upload, wait, screenshot,
and cookie capture. Cookie profiles carry logged-in sessions between runs.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := initializeViper(cfgFile)
			if err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{
					Level: "info", Format: "console", ServiceName: "stagehand",
				})
				return err
			}
			if debug {
				cfg.Logger.Level = "debug"
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Configuration loaded",
				zap.String("version", Version),
				zap.String("config_file", v.ConfigFileUsed()))

			cmd.SetContext(withConfig(cmd.Context(), cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "force debug logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

// Execute runs the CLI to completion under the given context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command failed", zap.Error(err))
		observability.Sync()
		return err
	}
	observability.Sync()
	return nil
}

// initializeViper wires config file discovery and STAGEHAND_* env overrides.
func initializeViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("STAGEHAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found; defaults and env vars apply.
	}
	return v, nil
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFromContext retrieves the config placed by PersistentPreRunE.
func configFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.NewDefaultConfig()
}
