package dex

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestQuoteMatchesReserveRatio(t *testing.T) {
	got, err := Quote(d("1000"), d("1000000"), d("2000000"))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !got.Equal(d("2000")) {
		t.Fatalf("expected 2000, got %s", got)
	}

	if _, err := Quote(d("1"), decimal.Zero, d("1")); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
	if _, err := Quote(decimal.Zero, d("1"), d("1")); !errors.Is(err, ErrInsufficientAmount) {
		t.Fatalf("expected insufficient amount, got %v", err)
	}
}

func TestOptimalAmountsRespectsCap(t *testing.T) {
	a0, a1, err := OptimalAmounts(d("1000"), nil, d("1000000"), d("2000000"))
	if err != nil {
		t.Fatalf("optimal: %v", err)
	}
	if !a0.Equal(d("1000")) || !a1.Equal(d("2000")) {
		t.Fatalf("uncapped mismatch: %s %s", a0, a1)
	}

	limit := d("1000")
	a0, a1, err = OptimalAmounts(d("1000"), &limit, d("1000000"), d("2000000"))
	if err != nil {
		t.Fatalf("optimal capped: %v", err)
	}
	if !a0.Equal(d("500")) || !a1.Equal(d("1000")) {
		t.Fatalf("capped mismatch: %s %s", a0, a1)
	}
}

func TestMinimumAmounts(t *testing.T) {
	min0, min1 := MinimumAmounts(d("1000"), d("2000"), d("1"))
	if !min0.Equal(d("990")) || !min1.Equal(d("1980")) {
		t.Fatalf("unexpected minimums %s %s", min0, min1)
	}
}

func TestLiquidityMintedAndBurnedRoundTrip(t *testing.T) {
	r0, r1, supply := d("1000000"), d("2000000"), d("1414213")
	lp, err := LiquidityMinted(d("1000"), d("2000"), r0, r1, supply)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !lp.Equal(d("1414.213")) {
		t.Fatalf("unexpected lp %s", lp)
	}

	a0, a1, err := AmountsForLiquidity(lp, r0.Add(d("1000")), r1.Add(d("2000")), supply.Add(lp))
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	tolerance := d("0.000001")
	if a0.Sub(d("1000")).Abs().GreaterThan(tolerance) || a1.Sub(d("2000")).Abs().GreaterThan(tolerance) {
		t.Fatalf("round trip drift: %s %s", a0, a1)
	}
}

func TestLiquidityMintedEmptyPool(t *testing.T) {
	lp, err := LiquidityMinted(d("4"), d("9"), decimal.Zero, decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !lp.Equal(d("6")) {
		t.Fatalf("expected sqrt(36)=6, got %s", lp)
	}
}

func TestPriceImpact(t *testing.T) {
	impact, err := PriceImpact(d("100"), d("900"))
	if err != nil {
		t.Fatalf("impact: %v", err)
	}
	if !impact.Equal(d("10")) {
		t.Fatalf("expected 10, got %s", impact)
	}
	if _, err := PriceImpact(d("1"), decimal.Zero); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
}

func TestFeeAPY(t *testing.T) {
	// 100k daily volume at 0.3% on 1M TVL: 300/day, 109500/yr, 10.95%.
	got := FeeAPY(d("100000"), d("1000000"), d("0.3"))
	if !got.Equal(d("10.95")) {
		t.Fatalf("expected 10.95, got %s", got)
	}
	if !FeeAPY(d("1"), decimal.Zero, d("0.3")).IsZero() {
		t.Fatalf("zero tvl should yield zero apy")
	}
}
