package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"liquidityEngine/internal/cache"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/memory"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestAggregator(store *memory.Store, c cache.Cache) *Aggregator {
	a := NewAggregator(store, store, c, nil)
	a.now = func() time.Time { return fixedNow }
	return a
}

func addPool(t *testing.T, store *memory.Store, pool model.Pool) model.Pool {
	t.Helper()
	saved, err := store.UpsertPool(context.Background(), pool)
	if err != nil {
		t.Fatalf("upsert pool: %v", err)
	}
	return saved
}

func snapshotAt(t *testing.T, store *memory.Store, pool model.Pool, at time.Time, tvl, price string) model.Pool {
	t.Helper()
	pool.TVLUSD = d(tvl)
	pool.Volume24hUSD = d(tvl).Div(decimal.NewFromInt(10))
	pool.CurrentPrice = d(price)
	if _, err := store.SavePoolState(context.Background(), pool, model.SnapshotOf(pool, at)); err != nil {
		t.Fatalf("save state: %v", err)
	}
	return pool
}

func TestTrendsCarryLastSnapshotForward(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	p1 := addPool(t, store, model.Pool{IsActive: true})
	p2 := addPool(t, store, model.Pool{IsActive: true})

	snapshotAt(t, store, p1, time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC), "100", "1")
	snapshotAt(t, store, p2, time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC), "50", "1")
	snapshotAt(t, store, p1, time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC), "150", "1")
	snapshotAt(t, store, p1, time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC), "200", "1")

	agg := newTestAggregator(store, nil)
	tvl, err := agg.TVLTrend(ctx, 3)
	if err != nil {
		t.Fatalf("tvl trend: %v", err)
	}
	want := []string{"150", "250", "250"}
	if len(tvl) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(tvl))
	}
	for i, w := range want {
		if !tvl[i].Value.Equal(d(w)) {
			t.Fatalf("day %d tvl = %s, want %s", i, tvl[i].Value, w)
		}
		if wantDate := time.Date(2024, 3, 8+i, 0, 0, 0, 0, time.UTC); !tvl[i].Date.Equal(wantDate) {
			t.Fatalf("day %d date = %s, want %s", i, tvl[i].Date, wantDate)
		}
	}

	volume, err := agg.VolumeTrend(ctx, 3)
	if err != nil {
		t.Fatalf("volume trend: %v", err)
	}
	if !volume[0].Value.Equal(d("15")) || !volume[2].Value.Equal(d("25")) {
		t.Fatalf("unexpected volume trend %+v", volume)
	}
}

func TestTrendSkipsInactiveAndStalePools(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	live := addPool(t, store, model.Pool{DexName: "uniswap", IsActive: true})
	retired := addPool(t, store, model.Pool{DexName: "uniswap", IsActive: true})
	quiet := addPool(t, store, model.Pool{DexName: "uniswap", IsActive: true})

	snapshotAt(t, store, live, fixedNow.Add(-time.Hour), "100", "1")
	snapshotAt(t, store, retired, fixedNow.Add(-300*day), "5000", "1")
	snapshotAt(t, store, quiet, fixedNow.Add(-10*day), "700", "1")

	retired, _ = store.GetPool(ctx, retired.ID)
	retired.IsActive = false
	if _, err := store.UpsertPool(ctx, retired); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	agg := newTestAggregator(store, nil)
	tvl, err := agg.TVLTrend(ctx, 5)
	if err != nil {
		t.Fatalf("tvl trend: %v", err)
	}
	if got := tvl[len(tvl)-1].Value; !got.Equal(d("100")) {
		t.Fatalf("today tvl = %s, want 100", got)
	}
	if got := tvl[0].Value; !got.Equal(d("700")) {
		t.Fatalf("first day tvl = %s, want 700 from the 6.5 day old snapshot", got)
	}
	if got := tvl[1].Value; !got.IsZero() {
		t.Fatalf("second day tvl = %s, want 0 once the snapshot is stale", got)
	}

	stats, err := agg.DexComparison(ctx)
	if err != nil {
		t.Fatalf("dex comparison: %v", err)
	}
	if len(stats) != 1 || !stats[0].TVLUSD.Equal(d("800")) {
		t.Fatalf("unexpected dex stats %+v", stats)
	}
}

func TestTrendRejectsBadRange(t *testing.T) {
	agg := newTestAggregator(memory.NewStore(), nil)
	for _, days := range []int{0, -1, maxTrendDays + 1} {
		if _, err := agg.TVLTrend(context.Background(), days); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("days=%d: expected invalid argument, got %v", days, err)
		}
	}
}

func TestPoolPerformance(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	pool := addPool(t, store, model.Pool{
		Token0Symbol:  "WETH",
		Token1Symbol:  "USDC",
		DexName:       "uniswap",
		FeePercentage: d("0.3"),
		IsActive:      true,
	})

	snapshotAt(t, store, pool, fixedNow.Add(-48*time.Hour), "1000", "2")
	snapshotAt(t, store, pool, fixedNow.Add(-25*time.Hour), "1000", "4")
	pool = snapshotAt(t, store, pool, fixedNow.Add(-time.Hour), "10000", "5")

	for _, pos := range []model.Position{
		{Wallet: "0xAAAA000000000000000000000000000000000001", PoolID: pool.ID, IsActive: true},
		{Wallet: "0xaaaa000000000000000000000000000000000001", PoolID: pool.ID, IsActive: true},
		{Wallet: "0xbbbb000000000000000000000000000000000002", PoolID: pool.ID, IsActive: true},
		{Wallet: "0xcccc000000000000000000000000000000000003", PoolID: pool.ID, IsActive: false},
	} {
		if _, err := store.CreatePosition(ctx, pos); err != nil {
			t.Fatalf("create position: %v", err)
		}
	}

	perf, err := newTestAggregator(store, nil).PoolPerformance(ctx, pool.ID)
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if perf.Pair != "WETH/USDC" || perf.DexName != "uniswap" {
		t.Fatalf("unexpected identity %+v", perf)
	}
	if !perf.Fees24hUSD.Equal(d("3")) {
		t.Fatalf("fees = %s, want volume*fee/100 = 3", perf.Fees24hUSD)
	}
	if !perf.PriceChange24h.Equal(d("25")) {
		t.Fatalf("price change = %s, want 25", perf.PriceChange24h)
	}
	if perf.ActiveProviders != 2 {
		t.Fatalf("active providers = %d, want 2", perf.ActiveProviders)
	}

	if _, err := newTestAggregator(store, nil).PoolPerformance(ctx, 404); !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected pool not found, got %v", err)
	}
}

func TestPoolPerformanceWithoutOldSnapshot(t *testing.T) {
	store := memory.NewStore()
	pool := addPool(t, store, model.Pool{IsActive: true})
	snapshotAt(t, store, pool, fixedNow.Add(-time.Hour), "10", "3")

	perf, err := newTestAggregator(store, nil).PoolPerformance(context.Background(), pool.ID)
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if !perf.PriceChange24h.IsZero() {
		t.Fatalf("price change without a day-old snapshot should be 0, got %s", perf.PriceChange24h)
	}
}

func TestDexComparisonMarketShare(t *testing.T) {
	store := memory.NewStore()
	addPool(t, store, model.Pool{DexName: "uniswap", TVLUSD: d("300"), APY: d("10"), IsActive: true})
	addPool(t, store, model.Pool{DexName: "uniswap", TVLUSD: d("100"), APY: d("20"), IsActive: true})
	addPool(t, store, model.Pool{DexName: "sushiswap", TVLUSD: d("600"), APY: d("30"), IsActive: true})
	addPool(t, store, model.Pool{DexName: "pancake", TVLUSD: d("1000"), APY: d("5"), IsActive: false})

	stats, err := newTestAggregator(store, nil).DexComparison(context.Background())
	if err != nil {
		t.Fatalf("dex comparison: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("inactive pools must be excluded, got %+v", stats)
	}
	if stats[0].DexName != "sushiswap" || !stats[0].MarketShare.Equal(d("60")) || !stats[0].AverageAPY.Equal(d("30")) {
		t.Fatalf("unexpected first dex %+v", stats[0])
	}
	if stats[1].PoolCount != 2 || !stats[1].MarketShare.Equal(d("40")) || !stats[1].AverageAPY.Equal(d("15")) {
		t.Fatalf("unexpected second dex %+v", stats[1])
	}
}

func TestTopProvidersTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for _, pos := range []model.Position{
		{Wallet: "0xa", CurrentValueUSD: d("100"), IsActive: true},
		{Wallet: "0xb", CurrentValueUSD: d("300"), IsActive: true},
		{Wallet: "0xc", CurrentValueUSD: d("100"), IsActive: true},
		{Wallet: "0xa", CurrentValueUSD: d("1000"), IsActive: false},
		{Wallet: "0xB", CurrentValueUSD: d("50"), IsActive: true},
	} {
		if _, err := store.CreatePosition(ctx, pos); err != nil {
			t.Fatalf("create position: %v", err)
		}
	}

	agg := newTestAggregator(store, nil)
	top, err := agg.TopProviders(ctx, 10)
	if err != nil {
		t.Fatalf("top providers: %v", err)
	}
	wantOrder := []string{"0xb", "0xa", "0xc"}
	if len(top) != len(wantOrder) {
		t.Fatalf("expected %d providers, got %+v", len(wantOrder), top)
	}
	for i, w := range wantOrder {
		if top[i].Wallet != w || top[i].Rank != i+1 {
			t.Fatalf("rank %d = %+v, want %s", i+1, top[i], w)
		}
	}
	if !top[0].TotalValueUSD.Equal(d("350")) || top[0].PositionCount != 2 {
		t.Fatalf("unexpected leader %+v", top[0])
	}

	top, _ = agg.TopProviders(ctx, 1)
	if len(top) != 1 || top[0].Wallet != "0xb" {
		t.Fatalf("limit not applied: %+v", top)
	}
}

func TestAnalyticsCachedUntilPoolWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	mem := cache.NewMemory(cache.DefaultTTLs())
	pools := storage.NewCachedPools(store, mem, nil)
	addPool(t, store, model.Pool{DexName: "uniswap", TVLUSD: d("100"), IsActive: true})

	agg := NewAggregator(pools, store, mem, nil)
	first, err := agg.DexComparison(ctx)
	if err != nil || len(first) != 1 {
		t.Fatalf("first comparison: %+v %v", first, err)
	}

	addPool(t, store, model.Pool{DexName: "sushiswap", TVLUSD: d("100"), IsActive: true})
	cached, _ := agg.DexComparison(ctx)
	if len(cached) != 1 {
		t.Fatalf("expected cached result, got %+v", cached)
	}

	if _, err := pools.UpsertPool(ctx, model.Pool{DexName: "curve", TVLUSD: d("100"), IsActive: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	fresh, _ := agg.DexComparison(ctx)
	if len(fresh) != 3 {
		t.Fatalf("pool write should evict analytics, got %+v", fresh)
	}
}

func TestPositionImpermanentLoss(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	pool := addPool(t, store, model.Pool{IsActive: true, CurrentPrice: d("4")})
	pos, _ := store.CreatePosition(ctx, model.Position{PoolID: pool.ID, Token0Amount: d("100"), Token1Amount: d("100"), IsActive: true})

	il, err := newTestAggregator(store, nil).PositionImpermanentLoss(ctx, pos.ID)
	if err != nil {
		t.Fatalf("il: %v", err)
	}
	if il.Sub(d("-20")).Abs().GreaterThan(d("0.000001")) {
		t.Fatalf("il = %s, want -20", il)
	}

	if _, err := newTestAggregator(store, nil).PositionImpermanentLoss(ctx, 99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected position not found, got %v", err)
	}
}
