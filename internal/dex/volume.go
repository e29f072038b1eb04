package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"liquidityEngine/internal/model"
)

// BlockRange is an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// TrailingRanges covers the last span blocks ending at latest, split into
// batches no larger than batchSize.
func TrailingRanges(latest, span, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if span == 0 {
		return nil, fmt.Errorf("span must be greater than zero")
	}

	var from uint64
	if latest+1 > span {
		from = latest + 1 - span
	}

	ranges := make([]BlockRange, 0, span/batchSize+1)
	for start := from; start <= latest; {
		end := latest
		if latest-start+1 > batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == latest {
			break
		}
		start = end + 1
	}
	return ranges, nil
}

func decodeSwap(log types.Log) (model.SwapEventData, error) {
	pairABI, err := V2PairABI()
	if err != nil {
		return model.SwapEventData{}, fmt.Errorf("parse pair abi: %w", err)
	}
	if len(log.Topics) < 3 {
		return model.SwapEventData{}, fmt.Errorf("swap log has %d topics", len(log.Topics))
	}

	values, err := pairABI.Unpack("Swap", log.Data)
	if err != nil {
		return model.SwapEventData{}, fmt.Errorf("unpack swap: %w", err)
	}
	if len(values) != 4 {
		return model.SwapEventData{}, fmt.Errorf("unpack swap: expected 4 values, got %d", len(values))
	}

	amounts := make([]string, 4)
	for i, v := range values {
		n, err := asBigInt(v)
		if err != nil {
			return model.SwapEventData{}, fmt.Errorf("swap amount %d: %w", i, err)
		}
		amounts[i] = n.String()
	}

	return model.SwapEventData{
		Sender:      topicAddress(log.Topics[1]),
		Recipient:   topicAddress(log.Topics[2]),
		Amount0In:   amounts[0],
		Amount1In:   amounts[1],
		Amount0Out:  amounts[2],
		Amount1Out:  amounts[3],
		BlockNumber: log.BlockNumber,
	}, nil
}

// swapSide returns amountIn+amountOut for one token of a swap, scaled.
func swapSide(in, out string, decimals uint8) (decimal.Decimal, error) {
	a, ok := new(big.Int).SetString(in, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid swap amount %q", in)
	}
	b, ok := new(big.Int).SetString(out, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid swap amount %q", out)
	}
	return ScaleAmount(new(big.Int).Add(a, b), decimals), nil
}

func topicAddress(topic common.Hash) string {
	return strings.ToLower(common.BytesToAddress(topic.Bytes()).Hex())
}
