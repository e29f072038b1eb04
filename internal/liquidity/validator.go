package liquidity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/wallet"
)

var (
	minSlippage = decimal.RequireFromString("0.1")
	maxSlippage = decimal.NewFromInt(50)
	hundred     = decimal.NewFromInt(100)
)

// AddRequest asks for an add-liquidity preview. A nil Amount1 lets the
// calculator derive the matching token1 amount.
type AddRequest struct {
	Wallet      string
	PoolID      int64
	Amount0     decimal.Decimal
	Amount1     *decimal.Decimal
	SlippagePct decimal.Decimal
}

// RemoveRequest asks for a remove-liquidity preview of Percentage of a position.
type RemoveRequest struct {
	Wallet     string
	PositionID int64
	Percentage decimal.Decimal
}

// ValidationReport is the standalone pre-flight outcome.
type ValidationReport struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validator runs pre-flight checks. The Check* methods are pure and never
// touch the network; the Validate* methods also consult storage and wallets.
type Validator struct {
	pools     storage.PoolRepository
	positions storage.PositionRepository
	wallets   wallet.Gateway
	spender   string
	timeout   time.Duration
}

func NewValidator(pools storage.PoolRepository, positions storage.PositionRepository, wallets wallet.Gateway, spender string, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = defaultQuoteTimeout
	}
	return &Validator{
		pools:     pools,
		positions: positions,
		wallets:   wallets,
		spender:   spender,
		timeout:   timeout,
	}
}

func (v *Validator) validAddress(addr string) bool {
	if v.wallets != nil {
		return v.wallets.IsValidAddress(addr)
	}
	return wallet.IsValidAddress(addr)
}

// CheckAdd rejects malformed add requests with a *ValidationError.
func (v *Validator) CheckAdd(req AddRequest) error {
	verr := &ValidationError{}
	if !v.validAddress(req.Wallet) {
		verr.add("wallet", "must be a 0x-prefixed 20-byte hex address")
	}
	if req.PoolID <= 0 {
		verr.add("pool_id", "must be positive")
	}
	if !req.Amount0.IsPositive() {
		verr.add("amount0", "must be greater than zero")
	}
	if req.Amount1 != nil && req.Amount1.IsNegative() {
		verr.add("amount1", "must not be negative")
	}
	if req.SlippagePct.LessThan(minSlippage) || req.SlippagePct.GreaterThan(maxSlippage) {
		verr.add("slippage", fmt.Sprintf("must be between %s and %s percent", minSlippage, maxSlippage))
	}
	return verr.errOrNil()
}

// CheckRemove rejects malformed remove requests with a *ValidationError.
func (v *Validator) CheckRemove(req RemoveRequest) error {
	verr := &ValidationError{}
	if !v.validAddress(req.Wallet) {
		verr.add("wallet", "must be a 0x-prefixed 20-byte hex address")
	}
	if req.PositionID <= 0 {
		verr.add("position_id", "must be positive")
	}
	if !req.Percentage.IsPositive() || req.Percentage.GreaterThan(hundred) {
		verr.add("percentage", "must be greater than 0 and at most 100")
	}
	return verr.errOrNil()
}

// ValidateAddParams checks an add request against pool state and wallet
// balances. Missing pools are returned as ErrPoolNotFound; every other
// failure is reported in the ValidationReport.
func (v *Validator) ValidateAddParams(ctx context.Context, req AddRequest) (ValidationReport, error) {
	report := ValidationReport{Errors: []string{}, Warnings: []string{}}
	if err := v.CheckAdd(req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			report.Errors = verr.Messages()
		}
		return report, nil
	}

	pool, err := loadPool(ctx, v.pools, req.PoolID)
	if err != nil {
		return report, err
	}
	if !pool.IsActive {
		report.Errors = append(report.Errors, "Pool is not active")
	}

	amount1 := decimal.Zero
	if req.Amount1 != nil {
		amount1 = *req.Amount1
	}
	if v.wallets != nil {
		report.Errors = append(report.Errors, v.balanceErrors(ctx, req.Wallet, pool, req.Amount0, amount1)...)
	}
	_, warnings := v.CheckAllowance(ctx, req.Wallet, pool, req.Amount0, amount1)
	report.Warnings = append(report.Warnings, warnings...)

	report.Valid = len(report.Errors) == 0
	return report, nil
}

// ValidateRemoveParams checks ownership and state of the position.
func (v *Validator) ValidateRemoveParams(ctx context.Context, req RemoveRequest) (ValidationReport, error) {
	report := ValidationReport{Errors: []string{}, Warnings: []string{}}
	if err := v.CheckRemove(req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			report.Errors = verr.Messages()
		}
		return report, nil
	}

	pos, err := loadOwnedPosition(ctx, v.positions, req.PositionID, req.Wallet)
	if err != nil {
		return report, err
	}
	if !pos.IsActive {
		report.Errors = append(report.Errors, "Position is not active")
	}
	if !pos.LPTokenAmount.IsPositive() {
		report.Errors = append(report.Errors, "Position holds no LP tokens")
	}

	report.Valid = len(report.Errors) == 0
	return report, nil
}

// balanceErrors fails closed: a balance that cannot be read counts as insufficient.
func (v *Validator) balanceErrors(ctx context.Context, walletAddr string, pool model.Pool, amount0, amount1 decimal.Decimal) []string {
	var out []string
	check := func(symbol, token string, need decimal.Decimal) {
		if !need.IsPositive() {
			return
		}
		res := quoteStep(ctx, v.timeout, func(ctx context.Context) (decimal.Decimal, error) {
			return v.wallets.GetBalance(ctx, walletAddr, token)
		})
		if res.fellBack() {
			out = append(out, fmt.Sprintf("Unable to verify %s balance", symbol))
			return
		}
		if res.value.LessThan(need) {
			out = append(out, fmt.Sprintf("Insufficient %s balance: have %s, need %s", symbol, res.value, need))
		}
	}
	check(tokenLabel(pool.Token0Symbol, "token0"), pool.Token0Address, amount0)
	check(tokenLabel(pool.Token1Symbol, "token1"), pool.Token1Address, amount1)
	return out
}

// CheckAllowance reports whether the configured spender may move both
// amounts. With no spender configured approval is left to the executing
// layer and the check passes.
func (v *Validator) CheckAllowance(ctx context.Context, walletAddr string, pool model.Pool, amount0, amount1 decimal.Decimal) (bool, []string) {
	if v.wallets == nil || v.spender == "" {
		return true, nil
	}
	ok := true
	var warnings []string
	check := func(symbol, token string, need decimal.Decimal) {
		if !need.IsPositive() {
			return
		}
		res := quoteStep(ctx, v.timeout, func(ctx context.Context) (decimal.Decimal, error) {
			return v.wallets.GetAllowance(ctx, walletAddr, token, v.spender)
		})
		switch {
		case res.fellBack():
			ok = false
			warnings = append(warnings, fmt.Sprintf("Unable to verify %s allowance", symbol))
		case res.value.LessThan(need):
			ok = false
			warnings = append(warnings, fmt.Sprintf("%s approval required before adding liquidity", symbol))
		}
	}
	check(tokenLabel(pool.Token0Symbol, "token0"), pool.Token0Address, amount0)
	check(tokenLabel(pool.Token1Symbol, "token1"), pool.Token1Address, amount1)
	return ok, warnings
}

func loadPool(ctx context.Context, pools storage.PoolRepository, id int64) (model.Pool, error) {
	pool, err := pools.GetPool(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Pool{}, fmt.Errorf("pool %d: %w", id, ErrPoolNotFound)
	}
	if err != nil {
		return model.Pool{}, fmt.Errorf("load pool %d: %w", id, err)
	}
	return pool, nil
}

// loadOwnedPosition distinguishes a missing position from one held by
// another wallet.
func loadOwnedPosition(ctx context.Context, positions storage.PositionRepository, id int64, walletAddr string) (model.Position, error) {
	pos, err := positions.GetPosition(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Position{}, fmt.Errorf("position %d: %w", id, ErrPositionNotFound)
	}
	if err != nil {
		return model.Position{}, fmt.Errorf("load position %d: %w", id, err)
	}
	if !pos.OwnedBy(walletAddr) {
		return model.Position{}, fmt.Errorf("position %d: %w", id, ErrUnauthorized)
	}
	return pos, nil
}

func tokenLabel(symbol, fallback string) string {
	if symbol != "" {
		return symbol
	}
	return fallback
}
