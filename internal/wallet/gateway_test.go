package wallet

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type stubTokens struct {
	owner, spender common.Address
}

func (s *stubTokens) BalanceOf(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	s.owner = owner
	return decimal.NewFromInt(42), nil
}

func (s *stubTokens) Allowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error) {
	s.owner, s.spender = owner, spender
	return decimal.NewFromInt(7), nil
}

func TestIsValidAddress(t *testing.T) {
	cases := map[string]bool{
		"0x52908400098527886E0F7030069857D2E4169EE7": true,
		"0xde709f2102306220921060314715629080e2fb77": true,
		"52908400098527886E0F7030069857D2E4169EE7":   false,
		"0x52908400098527886E0F7030069857D2E4169EE":  false,
		"0xZZ908400098527886E0F7030069857D2E4169EE7": false,
	}
	for addr, want := range cases {
		if got := IsValidAddress(addr); got != want {
			t.Fatalf("IsValidAddress(%q) = %v, want %v", addr, got, want)
		}
	}
	if IsValidAddress("") {
		t.Fatalf("empty address accepted")
	}
}

func TestChainGatewayDelegates(t *testing.T) {
	stub := &stubTokens{}
	gw := NewChainGateway(stub)
	wallet := "0x52908400098527886E0F7030069857D2E4169EE7"
	token := "0xde709f2102306220921060314715629080e2fb77"

	balance, err := gw.GetBalance(context.Background(), wallet, token)
	if err != nil || !balance.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("balance: %s %v", balance, err)
	}
	if stub.owner != common.HexToAddress(wallet) {
		t.Fatalf("owner not forwarded: %s", stub.owner.Hex())
	}

	if _, err := gw.GetAllowance(context.Background(), wallet, token, "nope"); err == nil {
		t.Fatalf("expected error for bad spender")
	}
	if _, err := gw.GetBalance(context.Background(), "0x123", token); err == nil {
		t.Fatalf("expected error for bad wallet")
	}
}
