package reserves

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/moby/locker"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

// Config tunes synchronization.
type Config struct {
	// Concurrency caps simultaneous pool syncs in SyncAll.
	Concurrency  int
	FetchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	return c
}

// Synchronizer pulls live pool state from a QuoteProvider and records it
// as the pool's latest snapshot. It is the only writer of pool state.
type Synchronizer struct {
	pools   storage.PoolRepository
	quotes  dex.QuoteProvider
	sink    storage.SnapshotSink
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
	locks   *locker.Locker
	now     func() time.Time
}

// NewSynchronizer builds a synchronizer. sink may be nil.
func NewSynchronizer(pools storage.PoolRepository, quotes dex.QuoteProvider, sink storage.SnapshotSink, cfg Config, m *metrics.Metrics, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		pools:   pools,
		quotes:  quotes,
		sink:    sink,
		cfg:     cfg.withDefaults(),
		metrics: m,
		logger:  logger,
		locks:   locker.New(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SyncPool refreshes one pool. Concurrent calls for the same pool run one
// at a time. Failures are returned as *SyncError.
func (s *Synchronizer) SyncPool(ctx context.Context, poolID int64) error {
	start := time.Now()
	err := s.syncPool(ctx, poolID)
	s.metrics.ObserveSync(err, time.Since(start))
	return err
}

// SyncAll refreshes every active pool concurrently. A failing pool is
// logged and does not affect the others; SyncAll itself fails only when
// the pool list cannot be read.
func (s *Synchronizer) SyncAll(ctx context.Context) error {
	pools, err := s.pools.ListPools(ctx, true)
	if err != nil {
		return fmt.Errorf("list active pools: %w", err)
	}

	var synced, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, pool := range pools {
		pool := pool
		g.Go(func() error {
			if err := s.SyncPool(ctx, pool.ID); err != nil {
				failed.Add(1)
				s.logger.Error("pool sync failed",
					zap.Int64("pool_id", pool.ID),
					zap.String("pool", pool.PoolAddress),
					zap.Error(err),
				)
				return nil
			}
			synced.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.SetPoolsSynced(int(synced.Load()))
	s.logger.Info("pool sync finished",
		zap.Int("pools", len(pools)),
		zap.Int64("synced", synced.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

func (s *Synchronizer) syncPool(ctx context.Context, poolID int64) error {
	if poolID <= 0 {
		return &SyncError{PoolID: poolID, Stage: "load", Err: fmt.Errorf("%w: invalid pool id", ErrPoolNotFound)}
	}

	key := lockKey(poolID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	pool, err := s.pools.GetPool(ctx, poolID)
	if errors.Is(err, storage.ErrNotFound) {
		return &SyncError{PoolID: poolID, Stage: "load", Err: fmt.Errorf("%w: %w", ErrPoolNotFound, err)}
	}
	if err != nil {
		return &SyncError{PoolID: poolID, Stage: "load", Err: err}
	}

	tvl, err := s.fetch(ctx, pool, "tvl", s.quotes.GetPoolTVL)
	if err != nil {
		return err
	}
	volume, err := s.fetch(ctx, pool, "volume", s.quotes.GetPoolVolume24h)
	if err != nil {
		return err
	}
	apy, err := s.fetch(ctx, pool, "apy", s.quotes.GetPoolAPY)
	if err != nil {
		return err
	}
	var reserves dex.Reserves
	if err := s.retrying(ctx, pool, "reserves", func(ctx context.Context) error {
		r, err := s.quotes.GetReserves(ctx, pool)
		reserves = r
		return err
	}); err != nil {
		return err
	}

	now := s.now()
	pool.Reserve0 = reserves.Reserve0
	pool.Reserve1 = reserves.Reserve1
	pool.CurrentPrice = model.PriceFromReserves(reserves.Reserve0, reserves.Reserve1)
	pool.TVLUSD = tvl
	pool.Volume24hUSD = volume
	pool.APY = apy
	pool.UpdatedAt = now

	saved, err := s.pools.SavePoolState(ctx, pool, model.SnapshotOf(pool, now))
	switch {
	case errors.Is(err, storage.ErrInconsistentState):
		return &SyncError{PoolID: poolID, Stage: "persist", Err: fmt.Errorf("%w: %w", ErrInconsistentState, err)}
	case errors.Is(err, storage.ErrNotFound):
		return &SyncError{PoolID: poolID, Stage: "persist", Err: fmt.Errorf("%w: %w", ErrPoolNotFound, err)}
	case err != nil:
		return &SyncError{PoolID: poolID, Stage: "persist", Err: err}
	}

	if s.sink != nil {
		if err := s.sink.PutSnapshot(saved); err != nil {
			s.logger.Warn("snapshot audit write failed", zap.Int64("pool_id", poolID), zap.Error(err))
		}
	}

	s.logger.Debug("pool synced",
		zap.Int64("pool_id", poolID),
		zap.String("reserve0", pool.Reserve0.String()),
		zap.String("reserve1", pool.Reserve1.String()),
		zap.String("price", pool.CurrentPrice.String()),
		zap.String("tvl_usd", pool.TVLUSD.String()),
	)
	return nil
}

func (s *Synchronizer) fetch(ctx context.Context, pool model.Pool, stage string, call func(context.Context, model.Pool) (decimal.Decimal, error)) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := s.retrying(ctx, pool, stage, func(ctx context.Context) error {
		v, err := call(ctx, pool)
		out = v
		return err
	})
	return out, err
}

// lockKey names the per-pool lock. Locks are released from the locker once
// no caller holds or waits on them.
func lockKey(poolID int64) string {
	return "pool:" + strconv.FormatInt(poolID, 10)
}
