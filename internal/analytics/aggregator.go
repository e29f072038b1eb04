package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityEngine/internal/cache"
	"liquidityEngine/internal/liquidity"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

const (
	day             = 24 * time.Hour
	maxTrendDays    = 365
	staleAfter      = 7 * day
	defaultTopLimit = 10
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrPoolNotFound    = errors.New("pool not found")
)

var hundred = decimal.NewFromInt(100)

// Aggregator derives analytics from persisted pools, snapshots, and
// positions. It never calls a quote provider.
type Aggregator struct {
	pools     storage.PoolRepository
	positions storage.PositionRepository
	cache     cache.Cache
	logger    *zap.Logger
	now       func() time.Time
}

// NewAggregator builds an aggregator. A nil cache disables caching.
func NewAggregator(pools storage.PoolRepository, positions storage.PositionRepository, c cache.Cache, logger *zap.Logger) *Aggregator {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		pools:     pools,
		positions: positions,
		cache:     c,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// TVLTrend returns one point per UTC day over the last days days, oldest
// first.
func (a *Aggregator) TVLTrend(ctx context.Context, days int) ([]model.TrendPoint, error) {
	return cached(ctx, a, cache.AnalyticsKey("tvl", days), func() ([]model.TrendPoint, error) {
		return a.trend(ctx, days, func(s model.PoolSnapshot) decimal.Decimal { return s.TVLUSD })
	})
}

// VolumeTrend is TVLTrend for 24h volume.
func (a *Aggregator) VolumeTrend(ctx context.Context, days int) ([]model.TrendPoint, error) {
	return cached(ctx, a, cache.AnalyticsKey("volume", days), func() ([]model.TrendPoint, error) {
		return a.trend(ctx, days, func(s model.PoolSnapshot) decimal.Decimal { return s.Volume24hUSD })
	})
}

// trend sums, for each day, every active pool's most recent snapshot taken
// before the end of that day. A snapshot is carried forward for at most
// staleAfter; older ones no longer count.
func (a *Aggregator) trend(ctx context.Context, days int, value func(model.PoolSnapshot) decimal.Decimal) ([]model.TrendPoint, error) {
	if days <= 0 || days > maxTrendDays {
		return nil, fmt.Errorf("%w: days must be in 1..%d, got %d", ErrInvalidArgument, maxTrendDays, days)
	}

	today := dayStart(a.now())
	first := today.Add(-time.Duration(days-1) * day)

	pools, err := a.pools.ListPools(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	active := make(map[int64]struct{}, len(pools))
	for _, pool := range pools {
		active[pool.ID] = struct{}{}
	}

	snapshots, err := a.pools.ListSnapshots(ctx, 0, first.Add(-staleAfter))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	points := make([]model.TrendPoint, 0, days)
	current := make(map[int64]model.PoolSnapshot)
	next := 0
	for d := first; !d.After(today); d = d.Add(day) {
		end := d.Add(day)
		for next < len(snapshots) && snapshots[next].CreatedAt.Before(end) {
			if _, ok := active[snapshots[next].PoolID]; ok {
				current[snapshots[next].PoolID] = snapshots[next]
			}
			next++
		}
		total := decimal.Zero
		for _, snap := range current {
			if end.Sub(snap.CreatedAt) > staleAfter {
				continue
			}
			total = total.Add(value(snap))
		}
		points = append(points, model.TrendPoint{Date: d, Value: total})
	}
	return points, nil
}

// PoolPerformance summarizes one pool. The 24h price change compares the
// current price with the newest snapshot at least a day old, ignoring
// snapshots more than staleAfter older than that.
func (a *Aggregator) PoolPerformance(ctx context.Context, poolID int64) (model.PoolPerformance, error) {
	return cached(ctx, a, cache.AnalyticsKey("pool", poolID), func() (model.PoolPerformance, error) {
		pool, err := a.pools.GetPool(ctx, poolID)
		if errors.Is(err, storage.ErrNotFound) {
			return model.PoolPerformance{}, fmt.Errorf("%w: %d", ErrPoolNotFound, poolID)
		}
		if err != nil {
			return model.PoolPerformance{}, fmt.Errorf("get pool: %w", err)
		}

		cutoff := a.now().Add(-day)
		snapshots, err := a.pools.ListSnapshots(ctx, poolID, cutoff.Add(-staleAfter))
		if err != nil {
			return model.PoolPerformance{}, fmt.Errorf("list snapshots: %w", err)
		}
		var reference *model.PoolSnapshot
		for i := range snapshots {
			if snapshots[i].CreatedAt.After(cutoff) {
				break
			}
			reference = &snapshots[i]
		}
		change := decimal.Zero
		if reference != nil && reference.Price.IsPositive() {
			change = pool.CurrentPrice.Sub(reference.Price).Div(reference.Price).Mul(hundred)
		}

		positions, err := a.positions.ListPositions(ctx, storage.PositionFilter{PoolID: poolID, ActiveOnly: true})
		if err != nil {
			return model.PoolPerformance{}, fmt.Errorf("list positions: %w", err)
		}
		providers := make(map[string]struct{}, len(positions))
		for _, pos := range positions {
			providers[model.NormalizeWallet(pos.Wallet)] = struct{}{}
		}

		return model.PoolPerformance{
			PoolID:          pool.ID,
			Pair:            pool.Token0Symbol + "/" + pool.Token1Symbol,
			DexName:         pool.DexName,
			APY:             pool.APY,
			TVLUSD:          pool.TVLUSD,
			Volume24hUSD:    pool.Volume24hUSD,
			Fees24hUSD:      pool.Volume24hUSD.Mul(pool.FeePercentage).Div(hundred),
			PriceChange24h:  change,
			ActiveProviders: len(providers),
		}, nil
	})
}

// DexComparison groups active pools by DEX, largest TVL first.
func (a *Aggregator) DexComparison(ctx context.Context) ([]model.DexStats, error) {
	return cached(ctx, a, cache.AnalyticsKey("dex"), func() ([]model.DexStats, error) {
		pools, err := a.pools.ListPools(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("list pools: %w", err)
		}

		byDex := make(map[string]*model.DexStats)
		apySum := make(map[string]decimal.Decimal)
		total := decimal.Zero
		for _, pool := range pools {
			stats := byDex[pool.DexName]
			if stats == nil {
				stats = &model.DexStats{DexName: pool.DexName}
				byDex[pool.DexName] = stats
			}
			stats.PoolCount++
			stats.TVLUSD = stats.TVLUSD.Add(pool.TVLUSD)
			stats.Volume24hUSD = stats.Volume24hUSD.Add(pool.Volume24hUSD)
			apySum[pool.DexName] = apySum[pool.DexName].Add(pool.APY)
			total = total.Add(pool.TVLUSD)
		}

		out := make([]model.DexStats, 0, len(byDex))
		for name, stats := range byDex {
			stats.AverageAPY = apySum[name].Div(decimal.NewFromInt(int64(stats.PoolCount)))
			if total.IsPositive() {
				stats.MarketShare = stats.TVLUSD.Div(total).Mul(hundred)
			}
			out = append(out, *stats)
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].TVLUSD.Equal(out[j].TVLUSD) {
				return out[i].TVLUSD.GreaterThan(out[j].TVLUSD)
			}
			return out[i].DexName < out[j].DexName
		})
		return out, nil
	})
}

// TopProviders ranks wallets by the summed current value of their active
// positions. Equal totals keep the order in which wallets first appear.
func (a *Aggregator) TopProviders(ctx context.Context, limit int) ([]model.ProviderRanking, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	return cached(ctx, a, cache.AnalyticsKey("providers", limit), func() ([]model.ProviderRanking, error) {
		positions, err := a.positions.ListPositions(ctx, storage.PositionFilter{ActiveOnly: true})
		if err != nil {
			return nil, fmt.Errorf("list positions: %w", err)
		}

		index := make(map[string]int)
		rankings := make([]model.ProviderRanking, 0)
		for _, pos := range positions {
			wallet := model.NormalizeWallet(pos.Wallet)
			i, ok := index[wallet]
			if !ok {
				i = len(rankings)
				index[wallet] = i
				rankings = append(rankings, model.ProviderRanking{Wallet: wallet})
			}
			rankings[i].TotalValueUSD = rankings[i].TotalValueUSD.Add(pos.CurrentValueUSD)
			rankings[i].FeesEarnedUSD = rankings[i].FeesEarnedUSD.Add(pos.FeesEarnedUSD)
			rankings[i].PositionCount++
		}

		sort.SliceStable(rankings, func(i, j int) bool {
			return rankings[i].TotalValueUSD.GreaterThan(rankings[j].TotalValueUSD)
		})
		if len(rankings) > limit {
			rankings = rankings[:limit]
		}
		for i := range rankings {
			rankings[i].Rank = i + 1
		}
		return rankings, nil
	})
}

// PositionImpermanentLoss returns the constant-product impermanent loss of
// a position in percent, comparing the pool's current price with the
// position's entry ratio token0Amount/token1Amount.
func (a *Aggregator) PositionImpermanentLoss(ctx context.Context, positionID int64) (decimal.Decimal, error) {
	pos, err := a.positions.GetPosition(ctx, positionID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get position: %w", err)
	}
	pool, err := a.pools.GetPool(ctx, pos.PoolID)
	if errors.Is(err, storage.ErrNotFound) {
		return decimal.Zero, fmt.Errorf("%w: %d", ErrPoolNotFound, pos.PoolID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get pool: %w", err)
	}

	entry := model.PriceFromReserves(pos.Token0Amount, pos.Token1Amount)
	if !entry.IsPositive() || !pool.CurrentPrice.IsPositive() {
		return decimal.Zero, nil
	}
	return liquidity.ImpermanentLoss(pool.CurrentPrice.Div(entry)).Mul(hundred), nil
}

// cached serves key from the analytics cache, computing and storing it with
// the short TTL on a miss. Cache failures only cost a recomputation.
func cached[T any](ctx context.Context, a *Aggregator, key string, compute func() (T, error)) (T, error) {
	var out T
	hit, err := a.cache.Get(ctx, key, &out)
	if err != nil {
		a.logger.Warn("analytics cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		return out, nil
	}

	out, err = compute()
	if err != nil {
		return out, err
	}
	if err := a.cache.Set(ctx, key, out, cache.Short); err != nil {
		a.logger.Warn("analytics cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
