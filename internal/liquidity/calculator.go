package liquidity

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/metrics"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

const defaultQuoteTimeout = 5 * time.Second

var (
	daysPerYear  = decimal.NewFromInt(365)
	daysPerMonth = decimal.NewFromInt(30)
	two          = decimal.NewFromInt(2)
)

// Config tunes preview behaviour.
type Config struct {
	// QuoteTimeout bounds every upstream call.
	QuoteTimeout time.Duration
	// AssumedLPSupply stands in for the pair's total supply when neither the
	// LP estimate nor the supply lookup succeeds.
	AssumedLPSupply decimal.Decimal
	GasEstimate     uint64
	// DefaultSlippage applies to remove previews, which take no slippage input.
	DefaultSlippage decimal.Decimal
	MaxPriceImpact  decimal.Decimal
}

func (c Config) withDefaults() Config {
	if c.QuoteTimeout <= 0 {
		c.QuoteTimeout = defaultQuoteTimeout
	}
	if !c.AssumedLPSupply.IsPositive() {
		c.AssumedLPSupply = decimal.NewFromInt(1_000_000)
	}
	if c.GasEstimate == 0 {
		c.GasEstimate = 150_000
	}
	if !c.DefaultSlippage.IsPositive() {
		c.DefaultSlippage = decimal.RequireFromString("0.5")
	}
	if !c.MaxPriceImpact.IsPositive() {
		c.MaxPriceImpact = decimal.NewFromInt(5)
	}
	return c
}

// Calculator produces add and remove liquidity previews. It holds no
// mutable state and is safe for concurrent use.
type Calculator struct {
	pools     storage.PoolRepository
	positions storage.PositionRepository
	quotes    dex.QuoteProvider
	validator *Validator
	cfg       Config
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewCalculator(
	pools storage.PoolRepository,
	positions storage.PositionRepository,
	quotes dex.QuoteProvider,
	validator *Validator,
	cfg Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	if validator == nil {
		validator = NewValidator(pools, positions, nil, "", cfg.QuoteTimeout)
	}
	return &Calculator{
		pools:     pools,
		positions: positions,
		quotes:    quotes,
		validator: validator,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type amountPair struct {
	a0 decimal.Decimal
	a1 decimal.Decimal
}

// fallback logs a degraded step and records the warning on the result.
func (c *Calculator) fallback(res *model.CalculationResult, step string, err error, warning string) {
	c.logger.Warn("quote unavailable, using local estimate",
		zap.Int64("pool_id", res.PoolID),
		zap.String("step", step),
		zap.Error(err),
	)
	c.metrics.ObserveFallback(step)
	res.Warn(warning)
}

// PreviewAdd previews depositing Amount0 (and optionally Amount1) into a
// pool. Malformed requests fail with *ValidationError before any upstream
// call and unknown pools with ErrPoolNotFound. Every other failure degrades
// into warnings on the returned result.
func (c *Calculator) PreviewAdd(ctx context.Context, req AddRequest) (*model.CalculationResult, error) {
	if err := c.validator.CheckAdd(req); err != nil {
		return nil, err
	}
	pool, err := loadPool(ctx, c.pools, req.PoolID)
	if err != nil {
		return nil, err
	}

	res := c.newResult(pool)
	res.Amount0Input = req.Amount0
	res.Amount0 = req.Amount0
	res.SlippagePct = req.SlippagePct
	if !pool.IsActive {
		res.Invalidate("Pool is not active")
	}

	amount1 := c.token1Amount(ctx, pool, req, res)
	res.Amount1 = amount1

	mins := quoteStep(ctx, c.cfg.QuoteTimeout, func(ctx context.Context) (amountPair, error) {
		a, b, err := c.quotes.CalculateMinimumAmounts(ctx, pool, req.Amount0, amount1, req.SlippagePct)
		return amountPair{a, b}, err
	}).orElse(func() amountPair {
		a, b := dex.MinimumAmounts(req.Amount0, amount1, req.SlippagePct)
		return amountPair{a, b}
	})
	if mins.fellBack() {
		c.fallback(res, "minimum_amounts", mins.err, "Minimum amounts computed locally from slippage tolerance")
	}
	res.Amount0Min, res.Amount1Min = mins.value.a0, mins.value.a1

	res.LPTokens = c.lpTokens(ctx, pool, req.Amount0, amount1, res)
	res.ValueUSD = c.valueUSD(ctx, pool, req.Amount0, amount1, res)
	res.PriceImpact = c.priceImpact(ctx, pool, req.Amount0, amount1, res)

	res.DailyEarnings, res.MonthlyEarnings, res.YearlyEarnings = ProjectEarnings(res.ValueUSD, pool.APY)
	res.PoolShare = c.poolShare(ctx, pool, res)

	balance := quoteStep(ctx, c.cfg.QuoteTimeout, func(ctx context.Context) (bool, error) {
		return c.quotes.SimulateAddLiquidity(ctx, req.Wallet, pool, req.Amount0, amount1)
	}).orElse(func() bool { return false })
	if balance.fellBack() {
		c.fallback(res, "balance", balance.err, "Unable to verify wallet balance")
	}
	res.HasSufficientBalance = balance.value

	allowed, warnings := c.validator.CheckAllowance(ctx, req.Wallet, pool, req.Amount0, amount1)
	res.HasSufficientAllowance = allowed
	for _, w := range warnings {
		res.Warn(w)
	}

	res.RiskLevel = AssessRisk(res.PriceImpact, pool.APY)
	res.ImpermanentLossEstimate = EstimateImpermanentLoss(res.PriceImpact)
	res.IsWithinSlippage = res.PriceImpact.LessThanOrEqual(req.SlippagePct)
	if !res.IsWithinSlippage {
		res.Warn(fmt.Sprintf("Price impact %s%% exceeds slippage tolerance %s%%", res.PriceImpact.StringFixed(2), req.SlippagePct))
	}

	if !res.HasSufficientBalance {
		res.Invalidate("Insufficient balance for this deposit")
	}
	if res.PriceImpact.GreaterThan(c.cfg.MaxPriceImpact) {
		res.Invalidate(fmt.Sprintf("Price impact %s%% exceeds the %s%% limit", res.PriceImpact.StringFixed(2), c.cfg.MaxPriceImpact))
	}
	if !res.ValueUSD.IsPositive() {
		res.Invalidate("Deposit value must be greater than zero")
	}

	c.metrics.ObservePreview("add", res.IsValid)
	return res, nil
}

// PreviewRemove previews withdrawing Percentage of a position's LP tokens.
func (c *Calculator) PreviewRemove(ctx context.Context, req RemoveRequest) (*model.CalculationResult, error) {
	if err := c.validator.CheckRemove(req); err != nil {
		return nil, err
	}
	pos, err := loadOwnedPosition(ctx, c.positions, req.PositionID, req.Wallet)
	if err != nil {
		return nil, err
	}
	pool, err := loadPool(ctx, c.pools, pos.PoolID)
	if err != nil {
		return nil, err
	}

	res := c.newResult(pool)
	res.PositionID = pos.ID
	res.SlippagePct = c.cfg.DefaultSlippage
	if !pos.IsActive {
		res.Invalidate("Position is not active")
	}

	share := req.Percentage.Div(hundred)
	lpToRemove := pos.LPTokenAmount.Mul(share)
	res.LPTokens = lpToRemove

	amounts := quoteStep(ctx, c.cfg.QuoteTimeout, func(ctx context.Context) (amountPair, error) {
		a, b, err := c.quotes.EstimateAmountsForLPTokens(ctx, pool, lpToRemove)
		return amountPair{a, b}, err
	}).orElse(func() amountPair {
		return amountPair{pos.Token0Amount.Mul(share), pos.Token1Amount.Mul(share)}
	})
	if amounts.fellBack() {
		c.fallback(res, "lp_to_tokens", amounts.err, "Withdrawal amounts estimated from recorded position share")
	}
	res.Amount0, res.Amount1 = amounts.value.a0, amounts.value.a1
	res.Amount0Input = res.Amount0

	res.Amount0Min, res.Amount1Min = dex.MinimumAmounts(res.Amount0, res.Amount1, c.cfg.DefaultSlippage)
	res.ValueUSD = c.valueUSD(ctx, pool, res.Amount0, res.Amount1, res)
	res.PriceImpact = c.priceImpact(ctx, pool, res.Amount0, res.Amount1, res)
	res.DailyEarnings, res.MonthlyEarnings, res.YearlyEarnings = ProjectEarnings(res.ValueUSD, pool.APY)
	res.PoolShare = c.poolShare(ctx, pool, res)

	// Withdrawals need no token balance or approval.
	res.HasSufficientBalance = pos.LPTokenAmount.IsPositive()
	res.HasSufficientAllowance = true
	res.RiskLevel = AssessRisk(res.PriceImpact, pool.APY)
	res.ImpermanentLossEstimate = EstimateImpermanentLoss(res.PriceImpact)
	res.IsWithinSlippage = res.PriceImpact.LessThanOrEqual(c.cfg.DefaultSlippage)

	if !res.HasSufficientBalance {
		res.Invalidate("Position holds no LP tokens")
	}
	if !res.ValueUSD.IsPositive() {
		res.Invalidate("Withdrawal value must be greater than zero")
	}

	c.metrics.ObservePreview("remove", res.IsValid)
	return res, nil
}

func (c *Calculator) newResult(pool model.Pool) *model.CalculationResult {
	return &model.CalculationResult{
		PoolID:             pool.ID,
		Token0Symbol:       pool.Token0Symbol,
		Token1Symbol:       pool.Token1Symbol,
		Token0Address:      pool.Token0Address,
		Token1Address:      pool.Token1Address,
		APY:                pool.APY,
		GasEstimate:        c.cfg.GasEstimate,
		IsValid:            true,
		ValidationMessages: []string{},
		WarningMessages:    []string{},
		CalculatedAt:       c.now(),
	}
}

// token1Amount uses the caller's amount when given, else the provider's
// optimal quote, else the stored reserve ratio, else 1:1.
func (c *Calculator) token1Amount(ctx context.Context, pool model.Pool, req AddRequest, res *model.CalculationResult) decimal.Decimal {
	if req.Amount1 != nil {
		return *req.Amount1
	}
	step := quoteStep(ctx, c.cfg.QuoteTimeout, func(ctx context.Context) (decimal.Decimal, error) {
		_, a1, err := c.quotes.CalculateOptimalAmounts(ctx, pool, req.Amount0, nil)
		return a1, err
	}).orElse(func() decimal.Decimal {
		if a1, err := dex.Quote(req.Amount0, pool.Reserve0, pool.Reserve1); err == nil {
			return a1
		}
		res.Warn("Pool reserves unavailable, assuming a 1:1 token ratio")
		return req.Amount0
	})
	if step.fellBack() {
		c.fallback(res, "optimal_amounts", step.err, "Token1 amount derived from stored pool reserves")
	}
	return step.value
}

// lpTokens falls back to the average reserve share times total supply, and
// to sqrt(amount0*amount1) for an empty pool.
func (c *Calculator) lpTokens(ctx context.Context, pool model.Pool, amount0, amount1 decimal.Decimal, res *model.CalculationResult) decimal.Decimal {
	step := quoteStep(ctx, c.cfg.QuoteTimeout, func(ctx context.Context) (decimal.Decimal, error) {
		return c.quotes.EstimateLPTokensForAmounts(ctx, pool, amount0, amount1)
	}).orElse(func() decimal.Decimal {
		if !pool.Reserve0.IsPositive() || !pool.Reserve1.IsPositive() {
			return dex.Sqrt(amount0.Mul(amount1))
		}
		supply := quoteStep(ctx, c.cfg.QuoteTimeout, func(ctx context.Context) (decimal.Decimal, error) {
			return c.quotes.GetTotalLPSupply(ctx, pool)
		}).orElse(func() decimal.Decimal { return c.cfg.AssumedLPSupply })
		if supply.fellBack() {
			c.fallback(res, "lp_supply", supply.err, "LP supply unavailable, using assumed total supply")
		}
		avgShare := amount0.Div(pool.Reserve0).Add(amount1.Div(pool.Reserve1)).Div(two)
		return avgShare.Mul(supply.value)
	})
	if step.fellBack() {
		c.fallback(res, "lp_tokens", step.err, "LP tokens estimated from pool share")
	}
	return step.value
}

// valueUSD prices both tokens live; on failure token1 is treated as a
// stable asset and token0 is valued at the stored pool price.
func (c *Calculator) valueUSD(ctx context.Context, pool model.Pool, amount0, amount1 decimal.Decimal, res *model.CalculationResult) decimal.Decimal {
	step := quoteStep(ctx, c.cfg.QuoteTimeout, func(ctx context.Context) (decimal.Decimal, error) {
		p0, err := c.quotes.GetTokenPrice(ctx, pool.Token0Address)
		if err != nil {
			return decimal.Zero, fmt.Errorf("price %s: %w", pool.Token0Symbol, err)
		}
		p1, err := c.quotes.GetTokenPrice(ctx, pool.Token1Address)
		if err != nil {
			return decimal.Zero, fmt.Errorf("price %s: %w", pool.Token1Symbol, err)
		}
		return amount0.Mul(p0).Add(amount1.Mul(p1)), nil
	}).orElse(func() decimal.Decimal {
		return amount0.Mul(pool.CurrentPrice).Add(amount1)
	})
	if step.fellBack() {
		c.fallback(res, "token_prices", step.err, "Token prices unavailable, USD value approximated from pool price")
	}
	return step.value
}

func (c *Calculator) priceImpact(ctx context.Context, pool model.Pool, amount0, amount1 decimal.Decimal, res *model.CalculationResult) decimal.Decimal {
	step := quoteStep(ctx, c.cfg.QuoteTimeout, func(ctx context.Context) (decimal.Decimal, error) {
		return c.quotes.CalculatePriceImpact(ctx, pool, amount0, amount1)
	}).orElse(func() decimal.Decimal {
		if !pool.TVLUSD.IsPositive() {
			return decimal.Zero
		}
		return res.ValueUSD.Div(pool.TVLUSD).Mul(hundred)
	})
	if step.fellBack() {
		c.fallback(res, "price_impact", step.err, "Unable to calculate price impact, estimated from pool TVL")
	}
	return step.value
}

func (c *Calculator) poolShare(ctx context.Context, pool model.Pool, res *model.CalculationResult) decimal.Decimal {
	step := quoteStep(ctx, c.cfg.QuoteTimeout, func(ctx context.Context) (decimal.Decimal, error) {
		return c.quotes.GetPoolTVL(ctx, pool)
	}).orElse(func() decimal.Decimal { return pool.TVLUSD })
	if step.fellBack() {
		c.fallback(res, "pool_tvl", step.err, "Live TVL unavailable, pool share uses stored TVL")
	}
	return PoolShare(res.ValueUSD, step.value)
}

// ProjectEarnings returns daily, monthly and yearly fee income for a
// position worth valueUSD in a pool yielding apy percent. Monthly and
// yearly figures are whole multiples of the daily one.
func ProjectEarnings(valueUSD, apy decimal.Decimal) (daily, monthly, yearly decimal.Decimal) {
	daily = valueUSD.Mul(apy).Div(hundred).Div(daysPerYear)
	return daily, daily.Mul(daysPerMonth), daily.Mul(daysPerYear)
}

// PoolShare is valueUSD as a percentage of tvl. A deposit into an empty
// pool owns all of it.
func PoolShare(valueUSD, tvl decimal.Decimal) decimal.Decimal {
	if !tvl.IsPositive() {
		if valueUSD.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return valueUSD.Div(tvl).Mul(hundred)
}
