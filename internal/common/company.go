package common

// Company is a listed security. Only Price changes after registration.
type Company struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	OutstandingShares uint64  `json:"outstanding_shares"`
	IPOPrice          float64 `json:"ipo_price"`
}

// Trader is a market participant. Cash and Portfolio never go negative as a
// result of a trade.
type Trader struct {
	ID        string            `json:"trader_id"`
	Name      string            `json:"name"`
	Cash      float64           `json:"cash"`
	Portfolio map[string]uint64 `json:"portfolio"`
}

// Clone returns a deep copy so callers outside the market lock never share
// the portfolio map.
func (t Trader) Clone() Trader {
	portfolio := make(map[string]uint64, len(t.Portfolio))
	for symbol, shares := range t.Portfolio {
		portfolio[symbol] = shares
	}
	t.Portfolio = portfolio
	return t
}

// Holding returns the number of shares held for symbol.
func (t Trader) Holding(symbol string) uint64 {
	return t.Portfolio[symbol]
}
