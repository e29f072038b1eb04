package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"liquidityEngine/internal/model"
)

var (
	testPair  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testWETH  = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testUSDC  = common.HexToAddress("0x3000000000000000000000000000000000000003")
	testOwner = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

type fakeBackend struct {
	responses map[common.Address]map[string][]byte
	logs      []types.Log
	latest    uint64
	calls     int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{responses: make(map[common.Address]map[string][]byte)}
}

func (f *fakeBackend) respond(t *testing.T, to common.Address, parsed abi.ABI, method string, args []interface{}, outputs ...interface{}) {
	t.Helper()
	input, err := parsed.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack input %s: %v", method, err)
	}
	output, err := parsed.Methods[method].Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack output %s: %v", method, err)
	}
	if f.responses[to] == nil {
		f.responses[to] = make(map[string][]byte)
	}
	f.responses[to][string(input)] = output
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	out, ok := f.responses[*msg.To][string(msg.Data)]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return out, nil
}

func (f *fakeBackend) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *fakeBackend) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	out := make([]types.Log, 0)
	for _, log := range f.logs {
		if log.BlockNumber >= fromBlock && log.BlockNumber <= toBlock {
			out = append(out, log)
		}
	}
	return out, nil
}

func units(n int64, decimals int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil))
}

func newTestProvider(t *testing.T) (*V2Provider, *fakeBackend) {
	t.Helper()
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("pair abi: %v", err)
	}
	erc20, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}

	backend := newFakeBackend()
	backend.respond(t, testPair, pairABI, "token0", nil, testWETH)
	backend.respond(t, testPair, pairABI, "token1", nil, testUSDC)
	backend.respond(t, testPair, pairABI, "getReserves", nil, units(1000, 18), units(2000000, 6), uint32(1700000000))
	backend.respond(t, testPair, pairABI, "totalSupply", nil, units(44721, 18))

	backend.respond(t, testWETH, erc20, "decimals", nil, uint8(18))
	backend.respond(t, testWETH, erc20, "symbol", nil, "WETH")
	backend.respond(t, testUSDC, erc20, "decimals", nil, uint8(6))
	backend.respond(t, testUSDC, erc20, "symbol", nil, "USDC")
	backend.respond(t, testWETH, erc20, "balanceOf", []interface{}{testOwner}, units(2, 18))
	backend.respond(t, testUSDC, erc20, "balanceOf", []interface{}{testOwner}, units(3000, 6))

	provider, err := NewV2Provider(backend, nil, V2Config{
		StableTokens: []string{testUSDC.Hex()},
		PriceSources: map[string]string{testWETH.Hex(): testPair.Hex()},
		BlocksPerDay: 100,
		LogBatchSize: 40,
	}, nil)
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	return provider, backend
}

func testPool() model.Pool {
	return model.Pool{ID: 1, PoolAddress: testPair.Hex(), FeePercentage: d("0.3")}
}

func TestV2ProviderReservesAndPrices(t *testing.T) {
	provider, backend := newTestProvider(t)
	ctx := context.Background()

	reserves, err := provider.GetReserves(ctx, testPool())
	if err != nil {
		t.Fatalf("reserves: %v", err)
	}
	if !reserves.Reserve0.Equal(d("1000")) || !reserves.Reserve1.Equal(d("2000000")) {
		t.Fatalf("unexpected reserves %s/%s", reserves.Reserve0, reserves.Reserve1)
	}
	if reserves.BlockTimestampLast != 1700000000 {
		t.Fatalf("unexpected timestamp %d", reserves.BlockTimestampLast)
	}

	price, err := provider.GetTokenPrice(ctx, testWETH.Hex())
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if !price.Equal(d("2000")) {
		t.Fatalf("expected 2000, got %s", price)
	}

	tvl, err := provider.GetPoolTVL(ctx, testPool())
	if err != nil {
		t.Fatalf("tvl: %v", err)
	}
	if !tvl.Equal(d("4000000")) {
		t.Fatalf("expected 4000000, got %s", tvl)
	}

	before := backend.calls
	if _, err := provider.GetReserves(ctx, testPool()); err != nil {
		t.Fatalf("reserves again: %v", err)
	}
	if backend.calls-before != 1 {
		t.Fatalf("metadata should be cached, saw %d calls", backend.calls-before)
	}
}

func TestV2ProviderUnknownPriceSource(t *testing.T) {
	provider, _ := newTestProvider(t)
	if _, err := provider.GetTokenPrice(context.Background(), testOwner.Hex()); err == nil {
		t.Fatalf("expected error for unpriced token")
	}
}

func TestV2ProviderLPEstimates(t *testing.T) {
	provider, _ := newTestProvider(t)
	ctx := context.Background()

	lp, err := provider.EstimateLPTokensForAmounts(ctx, testPool(), d("1"), d("2000"))
	if err != nil {
		t.Fatalf("lp: %v", err)
	}
	if !lp.Equal(d("44.721")) {
		t.Fatalf("expected 44.721, got %s", lp)
	}

	a0, a1, err := provider.EstimateAmountsForLPTokens(ctx, testPool(), d("44.721"))
	if err != nil {
		t.Fatalf("amounts: %v", err)
	}
	if !a0.Equal(d("1")) || !a1.Equal(d("2000")) {
		t.Fatalf("unexpected amounts %s/%s", a0, a1)
	}
}

func TestV2ProviderSimulateAddLiquidity(t *testing.T) {
	provider, _ := newTestProvider(t)
	ctx := context.Background()

	ok, err := provider.SimulateAddLiquidity(ctx, testOwner.Hex(), testPool(), d("1"), d("2000"))
	if err != nil || !ok {
		t.Fatalf("expected affordable deposit, got %v %v", ok, err)
	}
	ok, err = provider.SimulateAddLiquidity(ctx, testOwner.Hex(), testPool(), d("1"), d("4000"))
	if err != nil || ok {
		t.Fatalf("expected unaffordable deposit, got %v %v", ok, err)
	}
}

func TestV2ProviderVolumeAndAPY(t *testing.T) {
	provider, backend := newTestProvider(t)
	pairABI, _ := V2PairABI()
	swap := pairABI.Events["Swap"]

	mkLog := func(block uint64, in0, out0 *big.Int) types.Log {
		data, err := swap.Inputs.NonIndexed().Pack(in0, big.NewInt(0), out0, big.NewInt(0))
		if err != nil {
			t.Fatalf("pack swap: %v", err)
		}
		return types.Log{
			Address:     testPair,
			Topics:      []common.Hash{swap.ID, common.BytesToHash(testOwner.Bytes()), common.BytesToHash(testOwner.Bytes())},
			Data:        data,
			BlockNumber: block,
		}
	}
	half := new(big.Int).Div(units(1, 18), big.NewInt(2))
	backend.latest = 1000
	backend.logs = []types.Log{
		mkLog(850, units(5, 18), big.NewInt(0)), // outside the 100-block window
		mkLog(920, units(1, 18), big.NewInt(0)),
		mkLog(990, big.NewInt(0), half),
	}

	volume, err := provider.GetPoolVolume24h(context.Background(), testPool())
	if err != nil {
		t.Fatalf("volume: %v", err)
	}
	if !volume.Equal(d("3000")) {
		t.Fatalf("expected 3000, got %s", volume)
	}

	apy, err := provider.GetPoolAPY(context.Background(), testPool())
	if err != nil {
		t.Fatalf("apy: %v", err)
	}
	if !apy.Equal(d("0.082125")) {
		t.Fatalf("expected 0.082125, got %s", apy)
	}
}

func TestV2ProviderDescribePool(t *testing.T) {
	provider, _ := newTestProvider(t)

	pool, err := provider.DescribePool(context.Background(), testPair.Hex(), "uniswap-v2")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if pool.Token0Symbol != "WETH" || pool.Token1Symbol != "USDC" {
		t.Fatalf("unexpected symbols %s/%s", pool.Token0Symbol, pool.Token1Symbol)
	}
	if pool.PoolAddress != "0x1000000000000000000000000000000000000001" || pool.Token1Address != "0x3000000000000000000000000000000000000003" {
		t.Fatalf("addresses should be lower-cased hex: %+v", pool)
	}
	if !pool.FeePercentage.Equal(d("0.3")) || !pool.IsActive || pool.DexName != "uniswap-v2" {
		t.Fatalf("unexpected registration defaults %+v", pool)
	}

	if _, err := provider.DescribePool(context.Background(), "0x12", "uniswap-v2"); !errors.Is(err, ErrInvalidPool) {
		t.Fatalf("expected invalid pool, got %v", err)
	}
}
