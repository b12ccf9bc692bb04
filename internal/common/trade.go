package common

import (
	"fmt"
	"time"
)

// Fees charged to each party of a trade.
type Fees struct {
	BuyerFee  float64 `json:"buyer_fee"`
	SellerFee float64 `json:"seller_fee"`
}

// Total is what the exchange collects for a single trade.
func (f Fees) Total() float64 {
	return f.BuyerFee + f.SellerFee
}

// Trade records a single matched pair. Trades are immutable once appended to
// the market history.
type Trade struct {
	ID          string    `json:"trade_id"`
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	Quantity    uint64    `json:"quantity"`
	BuyerID     string    `json:"buyer"`
	SellerID    string    `json:"seller"`
	BuyOrderID  string    `json:"buy_order"`
	SellOrderID string    `json:"sell_order"`
	Fees        Fees      `json:"fees"`
	Timestamp   time.Time `json:"timestamp"`
}

// Value is price times quantity, before fees.
func (t Trade) Value() float64 {
	return t.Price * float64(t.Quantity)
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`ID:        %s
Symbol:    %s
Buyer:     %s (order %s)
Seller:    %s (order %s)
Timestamp: %v
Quantity:  %d
Price:     %.2f
Fees:      %.4f / %.4f`,
		t.ID,
		t.Symbol,
		t.BuyerID, t.BuyOrderID,
		t.SellerID, t.SellOrderID,
		t.Timestamp.Format(time.RFC3339),
		t.Quantity,
		t.Price,
		t.Fees.BuyerFee, t.Fees.SellerFee,
	)
}
