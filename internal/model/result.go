package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculationResult is the output of an add or remove liquidity preview.
// It is never persisted.
type CalculationResult struct {
	PoolID        int64  `json:"pool_id"`
	PositionID    int64  `json:"position_id,omitempty"`
	Token0Symbol  string `json:"token0_symbol"`
	Token1Symbol  string `json:"token1_symbol"`
	Token0Address string `json:"token0_address"`
	Token1Address string `json:"token1_address"`

	Amount0Input decimal.Decimal `json:"amount0_input"`
	Amount0      decimal.Decimal `json:"amount0"`
	Amount1      decimal.Decimal `json:"amount1"`
	Amount0Min   decimal.Decimal `json:"amount0_min"`
	Amount1Min   decimal.Decimal `json:"amount1_min"`
	LPTokens     decimal.Decimal `json:"lp_tokens"`
	ValueUSD     decimal.Decimal `json:"value_usd"`
	PriceImpact  decimal.Decimal `json:"price_impact"`
	SlippagePct  decimal.Decimal `json:"slippage_pct"`

	APY             decimal.Decimal `json:"apy"`
	DailyEarnings   decimal.Decimal `json:"daily_earnings"`
	MonthlyEarnings decimal.Decimal `json:"monthly_earnings"`
	YearlyEarnings  decimal.Decimal `json:"yearly_earnings"`
	PoolShare       decimal.Decimal `json:"pool_share"`
	GasEstimate     uint64          `json:"gas_estimate"`

	HasSufficientBalance   bool `json:"has_sufficient_balance"`
	HasSufficientAllowance bool `json:"has_sufficient_allowance"`
	IsWithinSlippage       bool `json:"is_within_slippage"`
	IsValid                bool `json:"is_valid"`

	RiskLevel               string `json:"risk_level"`
	ImpermanentLossEstimate string `json:"impermanent_loss_estimate"`

	ValidationMessages []string  `json:"validation_messages"`
	WarningMessages    []string  `json:"warning_messages"`
	CalculatedAt       time.Time `json:"calculated_at"`
}

// Invalidate records a validation failure and marks the result invalid.
func (r *CalculationResult) Invalidate(msg string) {
	r.ValidationMessages = append(r.ValidationMessages, msg)
	r.IsValid = false
}

// Warn records a non-blocking warning.
func (r *CalculationResult) Warn(msg string) {
	r.WarningMessages = append(r.WarningMessages, msg)
}
