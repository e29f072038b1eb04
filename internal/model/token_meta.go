package model

// TokenMeta is the ERC20 metadata the engine records for pool tokens.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// Label returns the symbol, or a shortened address for tokens that do not
// expose one.
func (m TokenMeta) Label() string {
	if m.Symbol != "" {
		return m.Symbol
	}
	if len(m.Address) > 10 {
		return m.Address[:6] + "…" + m.Address[len(m.Address)-4:]
	}
	return m.Address
}
