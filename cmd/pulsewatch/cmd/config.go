package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telepair/pulsewatch/internal/config"
	"github.com/telepair/pulsewatch/pkg/natsx/client"
	"github.com/telepair/pulsewatch/pkg/utils"
)

const connectivityTimeout = 5 * time.Second

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Manage pulsewatch configuration files",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigValidateCommand())
	cmd.AddCommand(newConfigInitCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current configuration with all resolved values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			switch format {
			case "yaml":
				// Secrets stay out of terminal output.
				cfg.NATS.Token, cfg.NATS.NKey, cfg.NATS.JWT = redact(cfg.NATS.Token), redact(cfg.NATS.NKey), redact(cfg.NATS.JWT)
				data, err := cfg.Marshal()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "# Configuration from: %s\n", ConfigFile)
				fmt.Fprint(out, string(data))
			case "summary":
				fmt.Fprintf(out, "Configuration file: %s\n", ConfigFile)
				fmt.Fprintf(out, "Sample type: %s\n", cfg.Observer.SampleType)
				fmt.Fprintf(out, "Device: %s\n", valueOr(cfg.Observer.DeviceID, "(from host)"))
				fmt.Fprintf(out, "Sensor backend: %s\n", cfg.Sensor.Backend)
				fmt.Fprintf(out, "Embedded NATS: %t\n", cfg.EmbedNATS.Enabled)
				fmt.Fprintf(out, "NATS URLs: %v\n", cfg.NATS.URLs)
				fmt.Fprintf(out, "Simulator: %t\n", cfg.Simulator.Enabled)
				fmt.Fprintf(out, "Health address: %s\n", cfg.Health.Addr)
				fmt.Fprintf(out, "Console log level: %s\n", cfg.Logger.Console.Level)
			default:
				return fmt.Errorf("unsupported format: %s", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "Output format (yaml, summary)")

	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var checkNATS bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long:  "Check that the configuration file is valid and, optionally, that NATS is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if checkNATS && cfg.NeedsNATS() && !cfg.EmbedNATS.Enabled {
				var errs []error
				for _, u := range cfg.NATS.URLs {
					ctx, cancel := context.WithTimeout(cmd.Context(), connectivityTimeout)
					if err := client.CheckConnectivity(ctx, u); err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", u, err))
					}
					cancel()
				}
				if err := errors.Join(errs...); err != nil {
					return fmt.Errorf("NATS unreachable: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file %s is valid\n", ConfigFile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkNATS, "check-nats", false, "Also check that the configured NATS servers are reachable")

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file",
		Long:  "Create a new configuration file with default values",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := utils.ExpandPath(ConfigFile)
			if err != nil {
				return fmt.Errorf("failed to expand config file path: %w", err)
			}
			if err := config.DefaultConfig().Save(path, force); err != nil {
				return fmt.Errorf("%w, use --force to overwrite", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration file")

	return cmd
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "******"
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
