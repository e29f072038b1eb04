package dex

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

// ERC20Reader reads token metadata, balances and allowances, scaling raw
// amounts by the token's decimals.
type ERC20Reader struct {
	caller ContractCaller
	tokens *TokenMetaCache
	logger *zap.Logger
}

func NewERC20Reader(caller ContractCaller, tokens *TokenMetaCache, logger *zap.Logger) *ERC20Reader {
	if tokens == nil {
		tokens = NewTokenMetaCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ERC20Reader{caller: caller, tokens: tokens, logger: logger}
}

// Meta returns cached token metadata, fetching it on first use.
func (r *ERC20Reader) Meta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := r.tokens.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, r.caller, token, r.logger)
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("token %s metadata: %w", token.Hex(), err)
	}
	r.tokens.Set(token, meta)
	return meta, nil
}

func (r *ERC20Reader) BalanceOf(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	return r.scaledCall(ctx, token, "balanceOf", owner)
}

func (r *ERC20Reader) Allowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error) {
	return r.scaledCall(ctx, token, "allowance", owner, spender)
}

func (r *ERC20Reader) scaledCall(ctx context.Context, token common.Address, method string, args ...interface{}) (decimal.Decimal, error) {
	meta, err := r.Meta(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, r.caller, token, parsed, method, args...)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := asBigInt(values[0])
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", method, err)
	}
	return ScaleAmount(raw, meta.Decimals), nil
}
