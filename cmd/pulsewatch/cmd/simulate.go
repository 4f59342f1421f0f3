package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telepair/pulsewatch/internal/device"
	"github.com/telepair/pulsewatch/internal/sensor/natsstore"
	"github.com/telepair/pulsewatch/internal/simulator"
	"github.com/telepair/pulsewatch/pkg/logger"
	"github.com/telepair/pulsewatch/pkg/natsx/client"
	"github.com/telepair/pulsewatch/pkg/shutdown"
)

func newSimulateCommand() *cobra.Command {
	var (
		deviceID string
		baseBPM  float64
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Publish simulated samples to NATS",
		Long:  "Act as a wearable: write synthetic heart rate samples into the NATS sample store until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logger.SetDefault(cfg.Logger); err != nil {
				return fmt.Errorf("failed to setup logger: %w", err)
			}
			if deviceID != "" {
				cfg.Observer.DeviceID = deviceID
			}
			simCfg := cfg.Simulator
			if baseBPM > 0 {
				simCfg.BaseBPM = baseBPM
			}
			if interval > 0 {
				simCfg.Interval = interval
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			dev, err := device.Local(ctx, cfg.Observer.DeviceID)
			if err != nil {
				return fmt.Errorf("failed to resolve device: %w", err)
			}
			nc, err := client.NewClient(&cfg.NATS)
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			store, err := natsstore.New(ctx, nc, cfg.Sensor.NATS)
			if err != nil {
				_ = nc.Close()
				return fmt.Errorf("failed to open sample store: %w", err)
			}
			sim, err := simulator.New(simCfg, dev, store)
			if err != nil {
				_ = nc.Close()
				return fmt.Errorf("failed to create simulator: %w", err)
			}

			mgr := shutdown.NewManager().WithTimeout(time.Duration(cfg.ShutdownTimeoutSec) * time.Second)
			mgr.RegisterFunc("simulator", func(context.Context) error { return sim.Stop() })
			mgr.RegisterFunc("nats-client", func(context.Context) error { return nc.Close() })

			if err := sim.Start(); err != nil {
				_ = mgr.Shutdown()
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Simulating %s for device %s, press Ctrl+C to stop\n", simCfg.SampleType, dev.ID)
			return mgr.Wait(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&deviceID, "device", "", "Device id to report samples for")
	cmd.Flags().Float64Var(&baseBPM, "bpm", 0, "Base heart rate in beats per minute")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between samples")

	return cmd
}
