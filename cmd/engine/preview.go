package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"liquidityEngine/internal/liquidity"
)

func addPreviewFlags(cmd *cobra.Command) {
	cmd.Flags().String("spender", "", "router address checked for token allowances")
	cmd.Flags().String("default-slippage", "0.5", "slippage percent for remove previews")
	cmd.Flags().String("max-price-impact", "5", "price impact percent above which a preview is invalid")
	cmd.Flags().String("assumed-lp-supply", "1000000", "LP supply assumed when no live supply is available")
	cmd.Flags().Uint64("gas-estimate", 150000, "gas units reported with each preview")
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().String("wallet", "", "wallet address")
	cmd.Flags().Int64("pool", 0, "pool id")
	cmd.Flags().String("amount0", "", "token0 amount")
	cmd.Flags().String("amount1", "", "token1 amount, empty to derive from reserves")
	cmd.Flags().String("slippage", "0.5", "slippage tolerance percent")
}

func newPreviewAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview-add",
		Short: "Preview adding liquidity to a pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withChainApp(cmd, false, func(ctx context.Context, a *app) error {
				req, err := addRequestFromFlags(cmd)
				if err != nil {
					return err
				}
				res, err := a.calculator().PreviewAdd(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	addRequestFlags(cmd)
	addPreviewFlags(cmd)
	return cmd
}

func newValidateAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-add",
		Short: "Run pre-flight checks for adding liquidity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withChainApp(cmd, false, func(ctx context.Context, a *app) error {
				req, err := addRequestFromFlags(cmd)
				if err != nil {
					return err
				}
				report, err := a.validator.ValidateAddParams(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	}
	addRequestFlags(cmd)
	cmd.Flags().String("spender", "", "router address checked for token allowances")
	return cmd
}

func newPreviewRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview-remove",
		Short: "Preview removing liquidity from a position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withChainApp(cmd, true, func(ctx context.Context, a *app) error {
				wallet, _ := cmd.Flags().GetString("wallet")
				positionID, _ := cmd.Flags().GetInt64("position")
				pct, err := decimalFlag(cmd, "percentage")
				if err != nil {
					return err
				}
				res, err := a.calculator().PreviewRemove(ctx, liquidity.RemoveRequest{
					Wallet:     wallet,
					PositionID: positionID,
					Percentage: pct,
				})
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().String("wallet", "", "wallet address")
	cmd.Flags().Int64("position", 0, "position id")
	cmd.Flags().String("percentage", "100", "percent of the position to remove")
	addPreviewFlags(cmd)
	return cmd
}

// withChainApp runs a command against a chain-connected app. Commands that
// read stored positions set needStore; the others prime an in-memory store
// from the configured pools.
func withChainApp(cmd *cobra.Command, needStore bool, run func(context.Context, *app) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()
	if needStore {
		if err := a.requireStore(cmd.Name()); err != nil {
			return err
		}
	} else if err := a.primeEphemeral(ctx); err != nil {
		return err
	}
	return run(ctx, a)
}

func addRequestFromFlags(cmd *cobra.Command) (liquidity.AddRequest, error) {
	wallet, _ := cmd.Flags().GetString("wallet")
	poolID, _ := cmd.Flags().GetInt64("pool")
	amount0, err := decimalFlag(cmd, "amount0")
	if err != nil {
		return liquidity.AddRequest{}, err
	}
	slippage, err := decimalFlag(cmd, "slippage")
	if err != nil {
		return liquidity.AddRequest{}, err
	}

	req := liquidity.AddRequest{Wallet: wallet, PoolID: poolID, Amount0: amount0, SlippagePct: slippage}
	if raw, _ := cmd.Flags().GetString("amount1"); raw != "" {
		amount1, err := decimal.NewFromString(raw)
		if err != nil {
			return liquidity.AddRequest{}, fmt.Errorf("parse amount1: %w", err)
		}
		req.Amount1 = &amount1
	}
	return req, nil
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, nil
}
