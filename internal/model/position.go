package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Position is a wallet's liquidity position in a pool.
type Position struct {
	ID              int64           `json:"id"`
	Wallet          string          `json:"wallet"`
	PoolID          int64           `json:"pool_id"`
	LPTokenAmount   decimal.Decimal `json:"lp_token_amount"`
	Token0Amount    decimal.Decimal `json:"token0_amount"`
	Token1Amount    decimal.Decimal `json:"token1_amount"`
	InitialValueUSD decimal.Decimal `json:"initial_value_usd"`
	CurrentValueUSD decimal.Decimal `json:"current_value_usd"`
	FeesEarnedUSD   decimal.Decimal `json:"fees_earned_usd"`
	ImpermanentLoss decimal.Decimal `json:"impermanent_loss"`
	IsActive        bool            `json:"is_active"`
	AddedAt         time.Time       `json:"added_at"`
	RemovedAt       *time.Time      `json:"removed_at,omitempty"`
}

// NormalizeWallet returns the canonical lower-cased wallet form.
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

// OwnedBy reports whether the position belongs to wallet.
func (p Position) OwnedBy(wallet string) bool {
	return NormalizeWallet(p.Wallet) == NormalizeWallet(wallet)
}

// TransactionType enumerates liquidity ledger entry kinds.
type TransactionType string

const (
	TransactionAdd       TransactionType = "ADD"
	TransactionRemove    TransactionType = "REMOVE"
	TransactionClaimFees TransactionType = "CLAIM_FEES"
)

// LiquidityTransaction is an append-only ledger entry linked to a position.
type LiquidityTransaction struct {
	ID           int64           `json:"id"`
	PositionID   int64           `json:"position_id"`
	Wallet       string          `json:"wallet"`
	Type         TransactionType `json:"type"`
	LPTokens     decimal.Decimal `json:"lp_tokens"`
	Token0Amount decimal.Decimal `json:"token0_amount"`
	Token1Amount decimal.Decimal `json:"token1_amount"`
	ValueUSD     decimal.Decimal `json:"value_usd"`
	TxHash       string          `json:"tx_hash"`
	CreatedAt    time.Time       `json:"created_at"`
}
