package model

// SwapEventData is the decoded Uniswap V2 pair Swap event payload.
type SwapEventData struct {
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Amount0In   string `json:"amount0_in"`
	Amount1In   string `json:"amount1_in"`
	Amount0Out  string `json:"amount0_out"`
	Amount1Out  string `json:"amount1_out"`
	BlockNumber uint64 `json:"block_number"`
}
