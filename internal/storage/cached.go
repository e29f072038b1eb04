package storage

import (
	"context"

	"go.uber.org/zap"

	"liquidityEngine/internal/cache"
	"liquidityEngine/internal/model"
)

// CachedPools wraps a PoolRepository with cache-aside reads of single pools.
// Every successful state write evicts the pool key and all analytics keys.
type CachedPools struct {
	PoolRepository
	cache  cache.Cache
	logger *zap.Logger
}

func NewCachedPools(repo PoolRepository, c cache.Cache, logger *zap.Logger) *CachedPools {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedPools{PoolRepository: repo, cache: c, logger: logger}
}

func (c *CachedPools) GetPool(ctx context.Context, id int64) (model.Pool, error) {
	key := cache.PoolKey(id)

	var pool model.Pool
	hit, err := c.cache.Get(ctx, key, &pool)
	if err != nil {
		c.logger.Warn("pool cache read failed", zap.Int64("pool_id", id), zap.Error(err))
	}
	if hit {
		return pool, nil
	}

	pool, err = c.PoolRepository.GetPool(ctx, id)
	if err != nil {
		return model.Pool{}, err
	}
	if err := c.cache.Set(ctx, key, pool, cache.Medium); err != nil {
		c.logger.Warn("pool cache write failed", zap.Int64("pool_id", id), zap.Error(err))
	}
	return pool, nil
}

func (c *CachedPools) UpsertPool(ctx context.Context, pool model.Pool) (model.Pool, error) {
	saved, err := c.PoolRepository.UpsertPool(ctx, pool)
	if err != nil {
		return model.Pool{}, err
	}
	c.invalidate(ctx, saved.ID)
	return saved, nil
}

func (c *CachedPools) SavePoolState(ctx context.Context, pool model.Pool, snapshot model.PoolSnapshot) (model.PoolSnapshot, error) {
	saved, err := c.PoolRepository.SavePoolState(ctx, pool, snapshot)
	if err != nil {
		return model.PoolSnapshot{}, err
	}
	c.invalidate(ctx, pool.ID)
	return saved, nil
}

func (c *CachedPools) invalidate(ctx context.Context, poolID int64) {
	if err := c.cache.Delete(ctx, cache.PoolKey(poolID)); err != nil {
		c.logger.Warn("pool cache evict failed", zap.Int64("pool_id", poolID), zap.Error(err))
	}
	if err := c.cache.DeletePrefix(ctx, cache.AnalyticsPrefix); err != nil {
		c.logger.Warn("analytics cache evict failed", zap.Error(err))
	}
}
