package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/analytics"
	"liquidityEngine/internal/cache"
	"liquidityEngine/internal/chain"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/liquidity"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/reserves"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/memory"
	"liquidityEngine/internal/storage/postgres"
	"liquidityEngine/internal/wallet"
)

type repository interface {
	storage.PoolRepository
	storage.PositionRepository
}

// app holds the wired components of one command invocation.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	repo      repository
	ephemeral bool
	pools     *storage.CachedPools
	cache     cache.Cache
	provider  *dex.V2Provider
	validator *liquidity.Validator

	closers []func()
}

// newApp loads configuration and wires storage and cache. withChain also
// connects the RPC client and builds the quote provider.
func newApp(ctx context.Context, cmd *cobra.Command, withChain bool) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.closers = append(a.closers, func() { _ = logger.Sync() })
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry, "engine")

	if err := a.openStore(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.openCache(ctx); err != nil {
		a.close()
		return nil, err
	}
	a.pools = storage.NewCachedPools(a.repo, a.cache, logger)

	if withChain {
		if err := a.openChain(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	if a.cfg.PGDSN == "" {
		a.logger.Warn("pg dsn not set, using in-memory store")
		a.repo = memory.NewStore()
		a.ephemeral = true
		return nil
	}
	store, err := postgres.NewStore(ctx, a.cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.repo = store
	a.closers = append(a.closers, store.Close)
	return nil
}

func (a *app) openCache(ctx context.Context) error {
	if a.cfg.RedisAddr == "" {
		a.cache = cache.NewMemory(cache.DefaultTTLs())
		return nil
	}
	r, err := cache.DialRedis(ctx, a.cfg.RedisAddr, "engine", cache.DefaultTTLs())
	if err != nil {
		return err
	}
	a.cache = r
	a.closers = append(a.closers, func() { _ = r.Close() })
	return nil
}

func (a *app) openChain(ctx context.Context) error {
	if a.cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	client, err := chain.NewClient(ctx, a.cfg.RPCURL, a.cfg.RPCRate, a.cfg.RPCBurst)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	erc20 := dex.NewERC20Reader(client, nil, a.logger)
	provider, err := dex.NewV2Provider(client, erc20, dex.V2Config{
		StableTokens: a.cfg.StableTokens,
		PriceSources: a.cfg.PricePairs,
		BlocksPerDay: a.cfg.BlocksPerDay,
		LogBatchSize: a.cfg.LogBatchSize,
	}, a.logger)
	if err != nil {
		return err
	}
	a.provider = provider
	a.validator = liquidity.NewValidator(a.pools, a.repo, wallet.NewChainGateway(erc20), a.cfg.Spender, a.cfg.QuoteTimeout)
	return nil
}

func (a *app) calculator() *liquidity.Calculator {
	return liquidity.NewCalculator(a.pools, a.repo, a.provider, a.validator, liquidity.Config{
		QuoteTimeout:    a.cfg.QuoteTimeout,
		AssumedLPSupply: a.cfg.AssumedLPSupply,
		GasEstimate:     a.cfg.GasEstimate,
		DefaultSlippage: a.cfg.DefaultSlippage,
		MaxPriceImpact:  a.cfg.MaxPriceImpact,
	}, a.metrics, a.logger)
}

func (a *app) synchronizer() (*reserves.Synchronizer, error) {
	var sink storage.SnapshotSink
	if a.cfg.SnapshotLog != "" {
		log, err := storage.OpenSnapshotLog(a.cfg.SnapshotLog)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = log.Close() })
		sink = log
	}
	return reserves.NewSynchronizer(a.pools, a.provider, sink, reserves.Config{
		Concurrency:  a.cfg.SyncConcurrency,
		FetchTimeout: a.cfg.FetchTimeout,
		MaxRetries:   a.cfg.MaxRetries,
		RetryBackoff: a.cfg.RetryBackoff,
	}, a.metrics, a.logger), nil
}

func (a *app) aggregator() *analytics.Aggregator {
	return analytics.NewAggregator(a.pools, a.repo, a.cache, a.logger)
}

// registerPools upserts every configured pair so the synchronizer can
// pick it up. A pair whose metadata cannot be read is skipped.
func (a *app) registerPools(ctx context.Context) {
	for _, addr := range a.cfg.Pools {
		pool, err := a.provider.DescribePool(ctx, addr, a.cfg.DexName)
		if err != nil {
			a.logger.Warn("pool registration skipped", zap.String("pool", addr), zap.Error(err))
			continue
		}
		saved, err := a.pools.UpsertPool(ctx, pool)
		if err != nil {
			a.logger.Warn("pool registration failed", zap.String("pool", addr), zap.Error(err))
			continue
		}
		a.logger.Info("pool registered",
			zap.Int64("pool_id", saved.ID),
			zap.String("pool", saved.PoolAddress),
			zap.String("pair", saved.Token0Symbol+"/"+saved.Token1Symbol),
		)
	}
}

// requireStore fails commands that only read persisted state when no
// database is configured, since a fresh in-memory store is always empty.
func (a *app) requireStore(command string) error {
	if a.ephemeral {
		return fmt.Errorf("%s needs persisted pool state: pg dsn is required", command)
	}
	return nil
}

// primeEphemeral registers and synchronizes the configured pools when the
// in-memory store is in use, so pool ids resolve within this invocation.
func (a *app) primeEphemeral(ctx context.Context) error {
	if !a.ephemeral {
		return nil
	}
	if len(a.cfg.Pools) == 0 {
		return fmt.Errorf("pg dsn not set and no pools configured: nothing to preview")
	}
	a.registerPools(ctx)
	syncer, err := a.synchronizer()
	if err != nil {
		return err
	}
	if err := syncer.SyncAll(ctx); err != nil {
		a.logger.Warn("in-memory pool sync incomplete", zap.Error(err))
	}
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
