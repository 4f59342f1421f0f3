package cmd

import (
	"context"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/telepair/pulsewatch/internal/observer"
	"github.com/telepair/pulsewatch/internal/sensor/natsstore"
	"github.com/telepair/pulsewatch/pkg/natsx/client"
)

func newGrantCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Manage read authorizations in the NATS sample store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "allow SAMPLE_TYPE...",
		Short: "Allow reading the given sample types",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *natsstore.Store) error {
				caps, err := capabilities(args)
				if err != nil {
					return err
				}
				return s.Grant(ctx, caps)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke SAMPLE_TYPE...",
		Short: "Deny reading the given sample types",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *natsstore.Store) error {
				caps, err := capabilities(args)
				if err != nil {
					return err
				}
				return s.Revoke(ctx, caps)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded authorization decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s *natsstore.Store) error {
				grants, err := s.Grants(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CAPABILITY\tDECISION")
				keys := make([]string, 0, len(grants))
				for k := range grants {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				for _, k := range keys {
					fmt.Fprintf(w, "%s\t%s\n", k, grants[k])
				}
				return w.Flush()
			})
		},
	})

	return cmd
}

func capabilities(names []string) (observer.CapabilitySet, error) {
	types := make([]observer.SampleType, 0, len(names))
	for _, name := range names {
		t, ok := observer.LookupSampleType(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %v)", observer.ErrUnknownSampleType, name, observer.SampleTypes())
		}
		types = append(types, t)
	}
	return observer.NewCapabilitySet(types...), nil
}

func withStore(cmd *cobra.Command, fn func(context.Context, *natsstore.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	nc, err := client.NewClient(&cfg.NATS)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	store, err := natsstore.New(ctx, nc, cfg.Sensor.NATS)
	if err != nil {
		return fmt.Errorf("failed to open sample store: %w", err)
	}
	return fn(ctx, store)
}
