package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Gateway answers wallet questions used by the validator and calculator.
type Gateway interface {
	IsValidAddress(addr string) bool
	GetBalance(ctx context.Context, wallet, token string) (decimal.Decimal, error)
	GetAllowance(ctx context.Context, wallet, token, spender string) (decimal.Decimal, error)
}

// TokenReader reads scaled ERC20 balances and allowances. *dex.ERC20Reader satisfies it.
type TokenReader interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (decimal.Decimal, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error)
}

// ChainGateway implements Gateway against ERC20 contracts.
type ChainGateway struct {
	tokens TokenReader
}

func NewChainGateway(tokens TokenReader) *ChainGateway {
	return &ChainGateway{tokens: tokens}
}

// IsValidAddress accepts 0x-prefixed 20-byte hex addresses in any case.
func (g *ChainGateway) IsValidAddress(addr string) bool {
	return IsValidAddress(addr)
}

func (g *ChainGateway) GetBalance(ctx context.Context, wallet, token string) (decimal.Decimal, error) {
	owner, tokenAddr, err := parsePair(wallet, token)
	if err != nil {
		return decimal.Zero, err
	}
	return g.tokens.BalanceOf(ctx, tokenAddr, owner)
}

func (g *ChainGateway) GetAllowance(ctx context.Context, wallet, token, spender string) (decimal.Decimal, error) {
	owner, tokenAddr, err := parsePair(wallet, token)
	if err != nil {
		return decimal.Zero, err
	}
	if !common.IsHexAddress(spender) {
		return decimal.Zero, fmt.Errorf("invalid spender address: %s", spender)
	}
	return g.tokens.Allowance(ctx, tokenAddr, owner, common.HexToAddress(spender))
}

func IsValidAddress(addr string) bool {
	return len(addr) == 42 && common.IsHexAddress(addr)
}

func parsePair(wallet, token string) (common.Address, common.Address, error) {
	if !IsValidAddress(wallet) {
		return common.Address{}, common.Address{}, fmt.Errorf("invalid wallet address: %s", wallet)
	}
	if !common.IsHexAddress(token) {
		return common.Address{}, common.Address{}, fmt.Errorf("invalid token address: %s", token)
	}
	return common.HexToAddress(wallet), common.HexToAddress(token), nil
}
