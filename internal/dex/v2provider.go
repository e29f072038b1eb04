package dex

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

const (
	defaultBlocksPerDay = 28800
	defaultLogBatchSize = 5000
	lpTokenDecimals     = 18
)

var defaultFeePct = decimal.RequireFromString("0.3")

// V2Config configures price discovery and volume scanning.
type V2Config struct {
	// StableTokens are priced at exactly 1 USD.
	StableTokens []string
	// PriceSources maps a token to a pair quoting it against a stable token.
	PriceSources map[string]string
	BlocksPerDay uint64
	LogBatchSize uint64
}

// V2Provider answers quotes for constant-product pairs by reading chain state.
type V2Provider struct {
	backend Backend
	erc20   *ERC20Reader
	pairs   *PairMetaCache
	stables map[common.Address]struct{}
	sources map[common.Address]common.Address
	cfg     V2Config
	logger  *zap.Logger
}

func NewV2Provider(backend Backend, erc20 *ERC20Reader, cfg V2Config, logger *zap.Logger) (*V2Provider, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if erc20 == nil {
		erc20 = NewERC20Reader(backend, nil, logger)
	}
	if cfg.BlocksPerDay == 0 {
		cfg.BlocksPerDay = defaultBlocksPerDay
	}
	if cfg.LogBatchSize == 0 {
		cfg.LogBatchSize = defaultLogBatchSize
	}

	stables := make(map[common.Address]struct{}, len(cfg.StableTokens))
	for _, token := range cfg.StableTokens {
		if !common.IsHexAddress(token) {
			return nil, fmt.Errorf("invalid stable token address: %s", token)
		}
		stables[common.HexToAddress(token)] = struct{}{}
	}

	sources := make(map[common.Address]common.Address, len(cfg.PriceSources))
	for token, pair := range cfg.PriceSources {
		if !common.IsHexAddress(token) || !common.IsHexAddress(pair) {
			return nil, fmt.Errorf("invalid price source %s=%s", token, pair)
		}
		sources[common.HexToAddress(token)] = common.HexToAddress(pair)
	}

	return &V2Provider{
		backend: backend,
		erc20:   erc20,
		pairs:   NewPairMetaCache(),
		stables: stables,
		sources: sources,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (p *V2Provider) GetReserves(ctx context.Context, pool model.Pool) (Reserves, error) {
	pair, err := pairAddress(pool)
	if err != nil {
		return Reserves{}, err
	}
	return p.reservesOf(ctx, pair)
}

func (p *V2Provider) GetTotalLPSupply(ctx context.Context, pool model.Pool) (decimal.Decimal, error) {
	pair, err := pairAddress(pool)
	if err != nil {
		return decimal.Zero, err
	}
	pairABI, err := V2PairABI()
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, p.backend, pair, pairABI, "totalSupply")
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := asBigInt(values[0])
	if err != nil {
		return decimal.Zero, fmt.Errorf("total supply: %w", err)
	}
	return ScaleAmount(raw, lpTokenDecimals), nil
}

// GetTokenPrice returns the USD price of token. Stable tokens are 1; other
// tokens are priced from their configured pair against a stable token.
func (p *V2Provider) GetTokenPrice(ctx context.Context, token string) (decimal.Decimal, error) {
	if !common.IsHexAddress(token) {
		return decimal.Zero, fmt.Errorf("invalid token address: %s", token)
	}
	addr := common.HexToAddress(token)
	if _, ok := p.stables[addr]; ok {
		return decimal.NewFromInt(1), nil
	}

	pair, ok := p.sources[addr]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", token, ErrNoPriceSource)
	}
	meta, err := p.pairMeta(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}
	reserves, err := p.reservesOf(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}

	var tokenReserve, quoteReserve decimal.Decimal
	var quote common.Address
	switch addr {
	case meta.Token0:
		tokenReserve, quoteReserve, quote = reserves.Reserve0, reserves.Reserve1, meta.Token1
	case meta.Token1:
		tokenReserve, quoteReserve, quote = reserves.Reserve1, reserves.Reserve0, meta.Token0
	default:
		return decimal.Zero, fmt.Errorf("pair %s does not contain %s", pair.Hex(), token)
	}
	if _, ok := p.stables[quote]; !ok {
		return decimal.Zero, fmt.Errorf("pair %s quote token %s is not stable: %w", pair.Hex(), quote.Hex(), ErrNoPriceSource)
	}
	if !tokenReserve.IsPositive() {
		return decimal.Zero, fmt.Errorf("pair %s: %w", pair.Hex(), ErrInsufficientLiquidity)
	}
	return quoteReserve.Div(tokenReserve), nil
}

func (p *V2Provider) CalculateOptimalAmounts(ctx context.Context, pool model.Pool, amount0 decimal.Decimal, amount1Hint *decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	reserves, err := p.GetReserves(ctx, pool)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return OptimalAmounts(amount0, amount1Hint, reserves.Reserve0, reserves.Reserve1)
}

func (p *V2Provider) CalculateMinimumAmounts(ctx context.Context, pool model.Pool, amount0, amount1, slippagePct decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if slippagePct.IsNegative() || slippagePct.GreaterThanOrEqual(hundred) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("slippage %s out of range", slippagePct)
	}
	min0, min1 := MinimumAmounts(amount0, amount1, slippagePct)
	return min0, min1, nil
}

func (p *V2Provider) EstimateLPTokensForAmounts(ctx context.Context, pool model.Pool, amount0, amount1 decimal.Decimal) (decimal.Decimal, error) {
	reserves, err := p.GetReserves(ctx, pool)
	if err != nil {
		return decimal.Zero, err
	}
	supply, err := p.GetTotalLPSupply(ctx, pool)
	if err != nil {
		return decimal.Zero, err
	}
	return LiquidityMinted(amount0, amount1, reserves.Reserve0, reserves.Reserve1, supply)
}

func (p *V2Provider) EstimateAmountsForLPTokens(ctx context.Context, pool model.Pool, lpTokens decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	reserves, err := p.GetReserves(ctx, pool)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	supply, err := p.GetTotalLPSupply(ctx, pool)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return AmountsForLiquidity(lpTokens, reserves.Reserve0, reserves.Reserve1, supply)
}

func (p *V2Provider) CalculatePriceImpact(ctx context.Context, pool model.Pool, amount0, amount1 decimal.Decimal) (decimal.Decimal, error) {
	reserves, err := p.GetReserves(ctx, pool)
	if err != nil {
		return decimal.Zero, err
	}
	return PriceImpact(amount0, reserves.Reserve0)
}

func (p *V2Provider) GetPoolTVL(ctx context.Context, pool model.Pool) (decimal.Decimal, error) {
	pair, err := pairAddress(pool)
	if err != nil {
		return decimal.Zero, err
	}
	meta, err := p.pairMeta(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}
	reserves, err := p.reservesOf(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}
	price0, err := p.GetTokenPrice(ctx, meta.Token0.Hex())
	if err != nil {
		return decimal.Zero, fmt.Errorf("price token0: %w", err)
	}
	price1, err := p.GetTokenPrice(ctx, meta.Token1.Hex())
	if err != nil {
		return decimal.Zero, fmt.Errorf("price token1: %w", err)
	}
	return reserves.Reserve0.Mul(price0).Add(reserves.Reserve1.Mul(price1)), nil
}

// GetPoolVolume24h sums the USD value of Swap events over the trailing
// day of blocks. Each swap is valued on the token0 side, or on the token1
// side when token0 has no price.
func (p *V2Provider) GetPoolVolume24h(ctx context.Context, pool model.Pool) (decimal.Decimal, error) {
	pair, err := pairAddress(pool)
	if err != nil {
		return decimal.Zero, err
	}
	meta, err := p.pairMeta(ctx, pair)
	if err != nil {
		return decimal.Zero, err
	}
	token0, err := p.erc20.Meta(ctx, meta.Token0)
	if err != nil {
		return decimal.Zero, err
	}
	token1, err := p.erc20.Meta(ctx, meta.Token1)
	if err != nil {
		return decimal.Zero, err
	}

	useToken0 := true
	price, err := p.GetTokenPrice(ctx, meta.Token0.Hex())
	if err != nil {
		useToken0 = false
		if price, err = p.GetTokenPrice(ctx, meta.Token1.Hex()); err != nil {
			return decimal.Zero, fmt.Errorf("price pool tokens: %w", err)
		}
	}

	latest, err := p.backend.LatestBlockNumber(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("latest block: %w", err)
	}
	ranges, err := TrailingRanges(latest, p.cfg.BlocksPerDay, p.cfg.LogBatchSize)
	if err != nil {
		return decimal.Zero, err
	}

	pairABI, err := V2PairABI()
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse pair abi: %w", err)
	}
	topic := pairABI.Events["Swap"].ID

	volume := decimal.Zero
	for _, r := range ranges {
		logs, err := p.backend.FilterLogs(ctx, r.From, r.To, []common.Address{pair}, []common.Hash{topic})
		if err != nil {
			return decimal.Zero, fmt.Errorf("filter swaps %d-%d: %w", r.From, r.To, err)
		}
		sum, err := p.sumSwaps(logs, useToken0, token0.Decimals, token1.Decimals)
		if err != nil {
			return decimal.Zero, err
		}
		volume = volume.Add(sum)
	}
	return volume.Mul(price), nil
}

func (p *V2Provider) sumSwaps(logs []types.Log, useToken0 bool, decimals0, decimals1 uint8) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, log := range logs {
		if log.Removed {
			continue
		}
		swap, err := decodeSwap(log)
		if err != nil {
			p.logger.Debug("skip undecodable swap", zap.String("tx", log.TxHash.Hex()), zap.Error(err))
			continue
		}
		var side decimal.Decimal
		if useToken0 {
			side, err = swapSide(swap.Amount0In, swap.Amount0Out, decimals0)
		} else {
			side, err = swapSide(swap.Amount1In, swap.Amount1Out, decimals1)
		}
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(side)
	}
	return total, nil
}

// GetPoolAPY annualizes 24h fee income over TVL.
func (p *V2Provider) GetPoolAPY(ctx context.Context, pool model.Pool) (decimal.Decimal, error) {
	volume, err := p.GetPoolVolume24h(ctx, pool)
	if err != nil {
		return decimal.Zero, err
	}
	tvl, err := p.GetPoolTVL(ctx, pool)
	if err != nil {
		return decimal.Zero, err
	}
	fee := pool.FeePercentage
	if !fee.IsPositive() {
		fee = defaultFeePct
	}
	return FeeAPY(volume, tvl, fee), nil
}

// SimulateAddLiquidity reports whether wallet holds both deposit amounts.
func (p *V2Provider) SimulateAddLiquidity(ctx context.Context, wallet string, pool model.Pool, amount0, amount1 decimal.Decimal) (bool, error) {
	if !common.IsHexAddress(wallet) {
		return false, fmt.Errorf("invalid wallet address: %s", wallet)
	}
	owner := common.HexToAddress(wallet)
	pair, err := pairAddress(pool)
	if err != nil {
		return false, err
	}
	meta, err := p.pairMeta(ctx, pair)
	if err != nil {
		return false, err
	}

	balance0, err := p.erc20.BalanceOf(ctx, meta.Token0, owner)
	if err != nil {
		return false, fmt.Errorf("balance token0: %w", err)
	}
	if balance0.LessThan(amount0) {
		return false, nil
	}
	balance1, err := p.erc20.BalanceOf(ctx, meta.Token1, owner)
	if err != nil {
		return false, fmt.Errorf("balance token1: %w", err)
	}
	return balance1.GreaterThanOrEqual(amount1), nil
}

func (p *V2Provider) reservesOf(ctx context.Context, pair common.Address) (Reserves, error) {
	meta, err := p.pairMeta(ctx, pair)
	if err != nil {
		return Reserves{}, err
	}
	token0, err := p.erc20.Meta(ctx, meta.Token0)
	if err != nil {
		return Reserves{}, err
	}
	token1, err := p.erc20.Meta(ctx, meta.Token1)
	if err != nil {
		return Reserves{}, err
	}

	pairABI, err := V2PairABI()
	if err != nil {
		return Reserves{}, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, p.backend, pair, pairABI, "getReserves")
	if err != nil {
		return Reserves{}, err
	}
	if len(values) != 3 {
		return Reserves{}, fmt.Errorf("getReserves: expected 3 values, got %d", len(values))
	}
	raw0, err := asBigInt(values[0])
	if err != nil {
		return Reserves{}, fmt.Errorf("reserve0: %w", err)
	}
	raw1, err := asBigInt(values[1])
	if err != nil {
		return Reserves{}, fmt.Errorf("reserve1: %w", err)
	}
	ts, err := asBigInt(values[2])
	if err != nil {
		return Reserves{}, fmt.Errorf("block timestamp: %w", err)
	}

	return Reserves{
		Reserve0:           ScaleAmount(raw0, token0.Decimals),
		Reserve1:           ScaleAmount(raw1, token1.Decimals),
		BlockTimestampLast: uint32(ts.Uint64()),
	}, nil
}

func (p *V2Provider) pairMeta(ctx context.Context, pair common.Address) (PairMeta, error) {
	if meta, ok := p.pairs.Get(pair); ok {
		return meta, nil
	}
	meta, err := FetchPairMeta(ctx, p.backend, pair)
	if err != nil {
		return PairMeta{}, fmt.Errorf("pair %s metadata: %w", pair.Hex(), err)
	}
	p.pairs.Set(pair, meta)
	return meta, nil
}

func pairAddress(pool model.Pool) (common.Address, error) {
	addr := strings.TrimSpace(pool.PoolAddress)
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("%q: %w", pool.PoolAddress, ErrInvalidPool)
	}
	return common.HexToAddress(addr), nil
}

// DescribePool builds the registration record of a pair from on-chain
// metadata. Synchronized fields are left zero.
func (p *V2Provider) DescribePool(ctx context.Context, pairHex, dexName string) (model.Pool, error) {
	pair, err := pairAddress(model.Pool{PoolAddress: pairHex})
	if err != nil {
		return model.Pool{}, err
	}
	meta, err := p.pairMeta(ctx, pair)
	if err != nil {
		return model.Pool{}, err
	}
	token0, err := p.erc20.Meta(ctx, meta.Token0)
	if err != nil {
		return model.Pool{}, err
	}
	token1, err := p.erc20.Meta(ctx, meta.Token1)
	if err != nil {
		return model.Pool{}, err
	}

	return model.Pool{
		Token0Symbol:  token0.Label(),
		Token1Symbol:  token1.Label(),
		Token0Address: strings.ToLower(meta.Token0.Hex()),
		Token1Address: strings.ToLower(meta.Token1.Hex()),
		DexName:       dexName,
		PoolAddress:   strings.ToLower(pair.Hex()),
		FeePercentage: defaultFeePct,
		IsActive:      true,
	}, nil
}
