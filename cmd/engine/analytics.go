package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Report analytics derived from stored pool state",
	}

	tvl := &cobra.Command{
		Use:   "tvl",
		Short: "Daily TVL trend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStoreApp(cmd, func(ctx context.Context, a *app) error {
				days, _ := cmd.Flags().GetInt("days")
				points, err := a.aggregator().TVLTrend(ctx, days)
				if err != nil {
					return err
				}
				return printJSON(points)
			})
		},
	}
	tvl.Flags().Int("days", 7, "number of days")

	volume := &cobra.Command{
		Use:   "volume",
		Short: "Daily 24h volume trend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStoreApp(cmd, func(ctx context.Context, a *app) error {
				days, _ := cmd.Flags().GetInt("days")
				points, err := a.aggregator().VolumeTrend(ctx, days)
				if err != nil {
					return err
				}
				return printJSON(points)
			})
		},
	}
	volume.Flags().Int("days", 7, "number of days")

	pool := &cobra.Command{
		Use:   "pool",
		Short: "Performance of one pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStoreApp(cmd, func(ctx context.Context, a *app) error {
				poolID, _ := cmd.Flags().GetInt64("pool")
				perf, err := a.aggregator().PoolPerformance(ctx, poolID)
				if err != nil {
					return err
				}
				return printJSON(perf)
			})
		},
	}
	pool.Flags().Int64("pool", 0, "pool id")

	dexCmd := &cobra.Command{
		Use:   "dex",
		Short: "Compare DEXes by TVL and market share",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStoreApp(cmd, func(ctx context.Context, a *app) error {
				stats, err := a.aggregator().DexComparison(ctx)
				if err != nil {
					return err
				}
				return printJSON(stats)
			})
		},
	}

	providers := &cobra.Command{
		Use:   "providers",
		Short: "Top liquidity providers by position value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStoreApp(cmd, func(ctx context.Context, a *app) error {
				limit, _ := cmd.Flags().GetInt("limit")
				top, err := a.aggregator().TopProviders(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(top)
			})
		},
	}
	providers.Flags().Int("limit", 10, "number of providers")

	il := &cobra.Command{
		Use:   "il",
		Short: "Impermanent loss of a position in percent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStoreApp(cmd, func(ctx context.Context, a *app) error {
				positionID, _ := cmd.Flags().GetInt64("position")
				loss, err := a.aggregator().PositionImpermanentLoss(ctx, positionID)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"position_id": positionID, "impermanent_loss_pct": loss})
			})
		},
	}
	il.Flags().Int64("position", 0, "position id")

	cmd.AddCommand(tvl, volume, pool, dexCmd, providers, il)
	return cmd
}

func withStoreApp(cmd *cobra.Command, run func(context.Context, *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireStore("analytics " + cmd.Name()); err != nil {
		return err
	}
	return run(ctx, a)
}
