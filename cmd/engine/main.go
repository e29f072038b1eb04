package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "engine",
		Short:        "Liquidity calculation and pool synchronization engine",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("rpc", "", "EVM RPC URL")
	flags.Float64("rpc-rate", 10, "max RPC requests per second, 0 disables limiting")
	flags.Int("rpc-burst", 20, "RPC rate limiter burst")
	flags.String("pg-dsn", "", "Postgres DSN, empty uses the in-memory store")
	flags.String("redis-addr", "", "Redis address, empty uses the in-process cache")
	flags.StringSlice("pools", nil, "pair addresses to register (comma-separated)")
	flags.String("dex-name", "uniswap-v2", "DEX name recorded for registered pools")
	flags.StringSlice("stable-tokens", nil, "token addresses priced at 1 USD (comma-separated)")
	flags.String("price-pairs", "", "token=pair mappings used for USD prices (comma-separated)")
	flags.Duration("quote-timeout", 5*time.Second, "timeout for each upstream quote")

	root.AddCommand(
		newMigrateCmd(),
		newSyncCmd(),
		newServeCmd(),
		newPreviewAddCmd(),
		newPreviewRemoveCmd(),
		newValidateAddCmd(),
		newAnalyticsCmd(),
	)
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
