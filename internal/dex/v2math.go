package dex

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientAmount    = errors.New("insufficient amount")
)

var hundred = decimal.NewFromInt(100)

// Quote returns the amount of the other token matching amountA at the
// current reserve ratio, as the V2 router does.
func Quote(amountA, reserveA, reserveB decimal.Decimal) (decimal.Decimal, error) {
	if !amountA.IsPositive() {
		return decimal.Zero, ErrInsufficientAmount
	}
	if !reserveA.IsPositive() || !reserveB.IsPositive() {
		return decimal.Zero, ErrInsufficientLiquidity
	}
	return amountA.Mul(reserveB).Div(reserveA), nil
}

// OptimalAmounts returns the deposit pair matching the reserve ratio. With
// no cap on token1 the full amount0 is used; otherwise amount0 shrinks so
// token1 stays within the cap.
func OptimalAmounts(amount0 decimal.Decimal, amount1Cap *decimal.Decimal, reserve0, reserve1 decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	amount1, err := Quote(amount0, reserve0, reserve1)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if amount1Cap == nil || amount1.LessThanOrEqual(*amount1Cap) {
		return amount0, amount1, nil
	}
	adjusted0, err := Quote(*amount1Cap, reserve1, reserve0)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return adjusted0, *amount1Cap, nil
}

// MinimumAmounts applies a slippage floor of amount*(100-slippagePct)/100.
func MinimumAmounts(amount0, amount1, slippagePct decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	keep := hundred.Sub(slippagePct)
	return amount0.Mul(keep).Div(hundred), amount1.Mul(keep).Div(hundred)
}

// LiquidityMinted returns the LP tokens minted for a deposit. An empty pool
// mints sqrt(amount0*amount1).
func LiquidityMinted(amount0, amount1, reserve0, reserve1, totalSupply decimal.Decimal) (decimal.Decimal, error) {
	if !totalSupply.IsPositive() {
		return Sqrt(amount0.Mul(amount1)), nil
	}
	if !reserve0.IsPositive() || !reserve1.IsPositive() {
		return decimal.Zero, ErrInsufficientLiquidity
	}
	lp0 := amount0.Mul(totalSupply).Div(reserve0)
	lp1 := amount1.Mul(totalSupply).Div(reserve1)
	return decimal.Min(lp0, lp1), nil
}

// AmountsForLiquidity returns the reserves claimed by burning lp tokens.
func AmountsForLiquidity(lp, reserve0, reserve1, totalSupply decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !totalSupply.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrInsufficientLiquidity
	}
	if lp.IsNegative() || lp.GreaterThan(totalSupply) {
		return decimal.Zero, decimal.Zero, ErrInsufficientAmount
	}
	share := lp.Div(totalSupply)
	return reserve0.Mul(share), reserve1.Mul(share), nil
}

// PriceImpact returns the percentage price move caused by adding amount0 to
// reserve0.
func PriceImpact(amount0, reserve0 decimal.Decimal) (decimal.Decimal, error) {
	if !reserve0.IsPositive() {
		return decimal.Zero, ErrInsufficientLiquidity
	}
	if amount0.IsNegative() {
		return decimal.Zero, ErrInsufficientAmount
	}
	return amount0.Div(reserve0.Add(amount0)).Mul(hundred), nil
}

// Sqrt is computed in float64; results are estimates, not settlement values.
func Sqrt(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	f, _ := d.Float64()
	return decimal.NewFromFloat(math.Sqrt(f))
}

// FeeAPY annualizes daily fee income (volume * feePct/100) as a percentage of tvl.
func FeeAPY(volume24h, tvl, feePct decimal.Decimal) decimal.Decimal {
	if !tvl.IsPositive() {
		return decimal.Zero
	}
	dailyFees := volume24h.Mul(feePct).Div(hundred)
	return dailyFees.Mul(decimal.NewFromInt(365)).Div(tvl).Mul(hundred)
}
