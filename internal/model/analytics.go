package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrendPoint is one daily bucket of a TVL or volume series.
type TrendPoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// PoolPerformance summarizes a pool from its persisted snapshots and positions.
type PoolPerformance struct {
	PoolID          int64           `json:"pool_id"`
	Pair            string          `json:"pair"`
	DexName         string          `json:"dex_name"`
	APY             decimal.Decimal `json:"apy"`
	TVLUSD          decimal.Decimal `json:"tvl_usd"`
	Volume24hUSD    decimal.Decimal `json:"volume_24h_usd"`
	Fees24hUSD      decimal.Decimal `json:"fees_24h_usd"`
	PriceChange24h  decimal.Decimal `json:"price_change_24h"`
	ActiveProviders int             `json:"active_providers"`
}

// DexStats aggregates active pools per DEX.
type DexStats struct {
	DexName      string          `json:"dex_name"`
	PoolCount    int             `json:"pool_count"`
	TVLUSD       decimal.Decimal `json:"tvl_usd"`
	Volume24hUSD decimal.Decimal `json:"volume_24h_usd"`
	AverageAPY   decimal.Decimal `json:"average_apy"`
	MarketShare  decimal.Decimal `json:"market_share"`
}

// ProviderRanking is one entry of the top liquidity providers list.
type ProviderRanking struct {
	Rank          int             `json:"rank"`
	Wallet        string          `json:"wallet"`
	TotalValueUSD decimal.Decimal `json:"total_value_usd"`
	FeesEarnedUSD decimal.Decimal `json:"fees_earned_usd"`
	PositionCount int             `json:"position_count"`
}
