package liquidity

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	RiskVeryHigh = "Very High"
	RiskHigh     = "High"
	RiskMedium   = "Medium"
	RiskLow      = "Low"
	RiskVeryLow  = "Very Low"
)

type riskTier struct {
	impact decimal.Decimal
	apy    decimal.Decimal
	level  string
}

var riskTiers = []riskTier{
	{impact: decimal.NewFromInt(10), apy: decimal.NewFromInt(200), level: RiskVeryHigh},
	{impact: decimal.NewFromInt(5), apy: decimal.NewFromInt(100), level: RiskHigh},
	{impact: decimal.NewFromInt(2), apy: decimal.NewFromInt(50), level: RiskMedium},
	{impact: decimal.NewFromInt(1), apy: decimal.NewFromInt(20), level: RiskLow},
}

// AssessRisk classifies a deposit by price impact and APY, both in percent.
// Tiers are checked from highest to lowest; thresholds are exclusive.
func AssessRisk(priceImpact, apy decimal.Decimal) string {
	for _, tier := range riskTiers {
		if priceImpact.GreaterThan(tier.impact) || apy.GreaterThan(tier.apy) {
			return tier.level
		}
	}
	return RiskVeryLow
}

type ilBucket struct {
	impact decimal.Decimal
	label  string
}

var ilBuckets = []ilBucket{
	{impact: decimal.NewFromInt(10), label: "Very High (>5%)"},
	{impact: decimal.NewFromInt(5), label: "High (2-5%)"},
	{impact: decimal.NewFromInt(2), label: "Medium (0.5-2%)"},
	{impact: decimal.RequireFromString("0.5"), label: "Low (0.1-0.5%)"},
}

// EstimateImpermanentLoss maps price impact to a coarse loss bucket. It is
// a heuristic label; see ImpermanentLoss for the constant-product formula.
func EstimateImpermanentLoss(priceImpact decimal.Decimal) string {
	for _, b := range ilBuckets {
		if priceImpact.GreaterThan(b.impact) {
			return b.label
		}
	}
	return "Minimal (<0.1%)"
}

// ImpermanentLoss returns 2*sqrt(r)/(1+r) - 1 for a price ratio r, as a
// fraction (-0.0572 for a 2x move). Non-positive ratios yield zero.
func ImpermanentLoss(priceRatio decimal.Decimal) decimal.Decimal {
	if !priceRatio.IsPositive() {
		return decimal.Zero
	}
	r, _ := priceRatio.Float64()
	return decimal.NewFromFloat(2*math.Sqrt(r)/(1+r) - 1)
}
