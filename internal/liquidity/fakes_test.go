package liquidity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage/memory"
)

const (
	walletA = "0x52908400098527886E0F7030069857D2E4169EE7"
	walletB = "0xde709f2102306220921060314715629080e2fb77"
	token0  = "0x2000000000000000000000000000000000000002"
	token1  = "0x3000000000000000000000000000000000000003"
	pairA   = "0x1000000000000000000000000000000000000001"
)

var errUpstream = errors.New("upstream unavailable")

// fakeQuotes prices a single constant-product pool. Methods listed in fail
// return errUpstream; methods listed in block wait for their deadline.
type fakeQuotes struct {
	mu        sync.Mutex
	down      bool
	fail      map[string]bool
	block     map[string]bool
	calls     int
	reserve0  decimal.Decimal
	reserve1  decimal.Decimal
	supply    decimal.Decimal
	prices    map[string]decimal.Decimal
	tvl       decimal.Decimal
	canAfford bool
}

func newFakeQuotes(r0, r1, supply string) *fakeQuotes {
	return &fakeQuotes{
		fail:      make(map[string]bool),
		block:     make(map[string]bool),
		reserve0:  dec(r0),
		reserve1:  dec(r1),
		supply:    dec(supply),
		prices:    map[string]decimal.Decimal{token0: dec("2"), token1: dec("1")},
		tvl:       dec(r0).Mul(dec("2")).Add(dec(r1)),
		canAfford: true,
	}
}

func (f *fakeQuotes) enter(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls++
	down, fail, block := f.down, f.fail[method], f.block[method]
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if down || fail {
		return errUpstream
	}
	return nil
}

func (f *fakeQuotes) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeQuotes) GetReserves(ctx context.Context, pool model.Pool) (dex.Reserves, error) {
	if err := f.enter(ctx, "GetReserves"); err != nil {
		return dex.Reserves{}, err
	}
	return dex.Reserves{Reserve0: f.reserve0, Reserve1: f.reserve1}, nil
}

func (f *fakeQuotes) GetTokenPrice(ctx context.Context, token string) (decimal.Decimal, error) {
	if err := f.enter(ctx, "GetTokenPrice"); err != nil {
		return decimal.Zero, err
	}
	p, ok := f.prices[token]
	if !ok {
		return decimal.Zero, dex.ErrNoPriceSource
	}
	return p, nil
}

func (f *fakeQuotes) CalculateOptimalAmounts(ctx context.Context, pool model.Pool, amount0 decimal.Decimal, amount1Hint *decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if err := f.enter(ctx, "CalculateOptimalAmounts"); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return dex.OptimalAmounts(amount0, amount1Hint, f.reserve0, f.reserve1)
}

func (f *fakeQuotes) CalculateMinimumAmounts(ctx context.Context, pool model.Pool, amount0, amount1, slippagePct decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if err := f.enter(ctx, "CalculateMinimumAmounts"); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	a, b := dex.MinimumAmounts(amount0, amount1, slippagePct)
	return a, b, nil
}

func (f *fakeQuotes) EstimateLPTokensForAmounts(ctx context.Context, pool model.Pool, amount0, amount1 decimal.Decimal) (decimal.Decimal, error) {
	if err := f.enter(ctx, "EstimateLPTokensForAmounts"); err != nil {
		return decimal.Zero, err
	}
	return dex.LiquidityMinted(amount0, amount1, f.reserve0, f.reserve1, f.supply)
}

func (f *fakeQuotes) EstimateAmountsForLPTokens(ctx context.Context, pool model.Pool, lpTokens decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if err := f.enter(ctx, "EstimateAmountsForLPTokens"); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return dex.AmountsForLiquidity(lpTokens, f.reserve0, f.reserve1, f.supply)
}

func (f *fakeQuotes) CalculatePriceImpact(ctx context.Context, pool model.Pool, amount0, amount1 decimal.Decimal) (decimal.Decimal, error) {
	if err := f.enter(ctx, "CalculatePriceImpact"); err != nil {
		return decimal.Zero, err
	}
	return dex.PriceImpact(amount0, f.reserve0)
}

func (f *fakeQuotes) GetPoolTVL(ctx context.Context, pool model.Pool) (decimal.Decimal, error) {
	if err := f.enter(ctx, "GetPoolTVL"); err != nil {
		return decimal.Zero, err
	}
	return f.tvl, nil
}

func (f *fakeQuotes) GetPoolVolume24h(ctx context.Context, pool model.Pool) (decimal.Decimal, error) {
	if err := f.enter(ctx, "GetPoolVolume24h"); err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, nil
}

func (f *fakeQuotes) GetPoolAPY(ctx context.Context, pool model.Pool) (decimal.Decimal, error) {
	if err := f.enter(ctx, "GetPoolAPY"); err != nil {
		return decimal.Zero, err
	}
	return decimal.Zero, nil
}

func (f *fakeQuotes) SimulateAddLiquidity(ctx context.Context, wallet string, pool model.Pool, amount0, amount1 decimal.Decimal) (bool, error) {
	if err := f.enter(ctx, "SimulateAddLiquidity"); err != nil {
		return false, err
	}
	return f.canAfford, nil
}

func (f *fakeQuotes) GetTotalLPSupply(ctx context.Context, pool model.Pool) (decimal.Decimal, error) {
	if err := f.enter(ctx, "GetTotalLPSupply"); err != nil {
		return decimal.Zero, err
	}
	return f.supply, nil
}

type fakeWallets struct {
	balances   map[string]decimal.Decimal
	allowances map[string]decimal.Decimal
	fail       bool
}

func (w *fakeWallets) IsValidAddress(addr string) bool {
	return len(addr) == 42 && addr[:2] == "0x"
}

func (w *fakeWallets) GetBalance(ctx context.Context, wallet, token string) (decimal.Decimal, error) {
	if w.fail {
		return decimal.Zero, errUpstream
	}
	return w.balances[token], nil
}

func (w *fakeWallets) GetAllowance(ctx context.Context, wallet, token, spender string) (decimal.Decimal, error) {
	if w.fail {
		return decimal.Zero, errUpstream
	}
	return w.allowances[token], nil
}

// seedPool stores an active pool with the given reserves and a TVL that
// values token0 at 2 USD.
func seedPool(t *testing.T, store *memory.Store, r0, r1 string) model.Pool {
	t.Helper()
	reserve0, reserve1 := dec(r0), dec(r1)
	pool, err := store.UpsertPool(context.Background(), model.Pool{
		Token0Symbol:  "TKA",
		Token1Symbol:  "USDC",
		Token0Address: token0,
		Token1Address: token1,
		DexName:       "uniswap-v2",
		PoolAddress:   pairA,
		Reserve0:      reserve0,
		Reserve1:      reserve1,
		CurrentPrice:  model.PriceFromReserves(reserve0, reserve1),
		TVLUSD:        reserve0.Mul(dec("2")).Add(reserve1),
		FeePercentage: dec("0.3"),
		APY:           dec("12"),
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("seed pool: %v", err)
	}
	return pool
}

func newTestCalculator(store *memory.Store, quotes *fakeQuotes, cfg Config) *Calculator {
	return NewCalculator(store, store, quotes, nil, cfg, nil, nil)
}
