package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telepair/pulsewatch/internal/config"
)

var (
	ConfigFile string
	LogLevel   string
	NatsURL    string
)

func Execute() error {
	return newRootCommand().ExecuteContext(context.Background())
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pulsewatch",
		Short:         "Heart rate sensor observer",
		Long:          "Stream heart rate readings from a wearable sample store to subscribers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&ConfigFile, "config", "c", config.DefaultPath, "Configuration file path")
	cmd.PersistentFlags().StringVarP(&LogLevel, "log-level", "l", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&NatsURL, "nats-url", "n", "", "NATS server URL")

	cmd.AddCommand(newStartCommand())
	cmd.AddCommand(newSimulateCommand())
	cmd.AddCommand(newGrantCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// loadConfig reads ConfigFile and applies the global flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(ConfigFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		if err := cfg.Logger.SetLevel(LogLevel); err != nil {
			return nil, fmt.Errorf("failed to set log level: %w", err)
		}
	}
	if NatsURL != "" {
		cfg.NATS.URLs = []string{NatsURL}
	}
	return cfg, nil
}
