package common

import (
	"fmt"
	"strings"
	"time"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return fmt.Sprintf("side(%d)", int(s))
}

// ParseSide accepts "buy" or "sell" in any case.
func ParseSide(raw string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, fmt.Errorf("%q: %w", raw, ErrInvalidSide)
}

func (s Side) MarshalText() ([]byte, error) {
	if s != Buy && s != Sell {
		return nil, fmt.Errorf("%d: %w", int(s), ErrInvalidSide)
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	side, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// Order is a resting limit order. Quantity is the remaining quantity and only
// ever decreases; TotalQuantity is what was originally requested.
type Order struct {
	ID            string    `json:"id"`             // Order tracked uuid
	TraderID      string    `json:"trader_id"`      // Who owns this order
	Symbol        string    `json:"symbol"`         // Company symbol
	Side          Side      `json:"side"`           // Order side
	Price         float64   `json:"price"`          // Limiting price
	Quantity      uint64    `json:"quantity"`       // Remaining quantity
	TotalQuantity uint64    `json:"total_quantity"` // Total volume requested
	Timestamp     time.Time `json:"timestamp"`      // Time of arrival into the book
	Sequence      uint64    `json:"-"`              // Arrival order inside the market
}

func (order Order) String() string {
	return fmt.Sprintf(
		`ID:        %v
TraderID:  %s
Symbol:    %s
Side:      %v
Price:     %.2f
Quantity:  %d (Total: %d)
Timestamp: %v`,
		order.ID,
		order.TraderID,
		order.Symbol,
		order.Side,
		order.Price,
		order.Quantity,
		order.TotalQuantity,
		order.Timestamp.Format(time.RFC3339),
	)
}
