package dex

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"liquidityEngine/internal/model"
)

var (
	ErrNoPriceSource = errors.New("no price source for token")
	ErrInvalidPool   = errors.New("invalid pool address")
)

// Reserves is a pair's reserve state scaled by token decimals.
type Reserves struct {
	Reserve0           decimal.Decimal
	Reserve1           decimal.Decimal
	BlockTimestampLast uint32
}

// QuoteProvider supplies live pool data and quotes. Any call may fail;
// callers bound each call with a context deadline.
type QuoteProvider interface {
	GetReserves(ctx context.Context, pool model.Pool) (Reserves, error)
	GetTokenPrice(ctx context.Context, token string) (decimal.Decimal, error)
	CalculateOptimalAmounts(ctx context.Context, pool model.Pool, amount0 decimal.Decimal, amount1Hint *decimal.Decimal) (decimal.Decimal, decimal.Decimal, error)
	CalculateMinimumAmounts(ctx context.Context, pool model.Pool, amount0, amount1, slippagePct decimal.Decimal) (decimal.Decimal, decimal.Decimal, error)
	EstimateLPTokensForAmounts(ctx context.Context, pool model.Pool, amount0, amount1 decimal.Decimal) (decimal.Decimal, error)
	EstimateAmountsForLPTokens(ctx context.Context, pool model.Pool, lpTokens decimal.Decimal) (decimal.Decimal, decimal.Decimal, error)
	CalculatePriceImpact(ctx context.Context, pool model.Pool, amount0, amount1 decimal.Decimal) (decimal.Decimal, error)
	GetPoolTVL(ctx context.Context, pool model.Pool) (decimal.Decimal, error)
	GetPoolVolume24h(ctx context.Context, pool model.Pool) (decimal.Decimal, error)
	GetPoolAPY(ctx context.Context, pool model.Pool) (decimal.Decimal, error)
	SimulateAddLiquidity(ctx context.Context, wallet string, pool model.Pool, amount0, amount1 decimal.Decimal) (bool, error)
	GetTotalLPSupply(ctx context.Context, pool model.Pool) (decimal.Decimal, error)
}
