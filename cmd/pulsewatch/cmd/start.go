package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telepair/pulsewatch/internal/server"
)

func newStartCommand() *cobra.Command {
	var (
		backend  string
		simulate bool
		deviceID string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the observer service",
		Long:  "Authorize, open the heart rate query for the local device and stream readings until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if backend != "" {
				cfg.Sensor.Backend = strings.ToLower(backend)
			}
			if simulate {
				cfg.Simulator.Enabled = true
			}
			if deviceID != "" {
				cfg.Observer.DeviceID = deviceID
			}

			srv, err := server.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			if err := srv.Start(cmd.Context()); err != nil {
				_ = srv.Stop()
				return fmt.Errorf("failed to start server: %w", err)
			}
			if err := srv.Wait(cmd.Context()); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "Sensor backend (memory, nats)")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Feed the backend with simulated samples")
	cmd.Flags().StringVar(&deviceID, "device", "", "Local device id (default: derived from the host)")

	return cmd
}
