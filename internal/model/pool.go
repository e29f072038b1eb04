package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pool is the canonical record of a liquidity pool. Reserve and price fields
// are written only by the reserve synchronizer.
type Pool struct {
	ID            int64           `json:"id"`
	Token0Symbol  string          `json:"token0_symbol"`
	Token1Symbol  string          `json:"token1_symbol"`
	Token0Address string          `json:"token0_address"`
	Token1Address string          `json:"token1_address"`
	DexName       string          `json:"dex_name"`
	PoolAddress   string          `json:"pool_address"`
	Reserve0      decimal.Decimal `json:"reserve0"`
	Reserve1      decimal.Decimal `json:"reserve1"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	TVLUSD        decimal.Decimal `json:"tvl_usd"`
	Volume24hUSD  decimal.Decimal `json:"volume_24h_usd"`
	FeePercentage decimal.Decimal `json:"fee_percentage"`
	APY           decimal.Decimal `json:"apy"`
	IsActive      bool            `json:"is_active"`
	IsFeatured    bool            `json:"is_featured"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PriceFromReserves returns reserve0/reserve1, or zero when reserve1 is empty.
func PriceFromReserves(reserve0, reserve1 decimal.Decimal) decimal.Decimal {
	if !reserve1.IsPositive() {
		return decimal.Zero
	}
	return reserve0.Div(reserve1)
}

// PoolSnapshot is an immutable point-in-time copy of a pool's state.
type PoolSnapshot struct {
	ID           int64           `json:"id"`
	PoolID       int64           `json:"pool_id"`
	Reserve0     decimal.Decimal `json:"reserve0"`
	Reserve1     decimal.Decimal `json:"reserve1"`
	Price        decimal.Decimal `json:"price"`
	TVLUSD       decimal.Decimal `json:"tvl_usd"`
	Volume24hUSD decimal.Decimal `json:"volume_24h_usd"`
	APY          decimal.Decimal `json:"apy"`
	IsLatest     bool            `json:"is_latest"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SnapshotOf copies the synchronized fields of a pool into a new snapshot.
func SnapshotOf(pool Pool, at time.Time) PoolSnapshot {
	return PoolSnapshot{
		PoolID:       pool.ID,
		Reserve0:     pool.Reserve0,
		Reserve1:     pool.Reserve1,
		Price:        pool.CurrentPrice,
		TVLUSD:       pool.TVLUSD,
		Volume24hUSD: pool.Volume24hUSD,
		APY:          pool.APY,
		IsLatest:     true,
		CreatedAt:    at,
	}
}
