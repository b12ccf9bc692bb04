package book

import "bourse/internal/common"

// Snapshot is a point-in-time copy of both sides, best price first.
type Snapshot struct {
	Symbol string         `json:"symbol"`
	Buy    []common.Order `json:"buy"`
	Sell   []common.Order `json:"sell"`
}

// FlatPriceLevel is a copied price level, used for depth views and tests.
type FlatPriceLevel struct {
	Price  float64
	Orders []common.Order
}

// Levels flattens one side of the book in priority order.
func (book *OrderBook) Levels(side common.Side) []FlatPriceLevel {
	var out []FlatPriceLevel
	book.levels(side).Scan(func(level *PriceLevel) bool {
		flat := FlatPriceLevel{
			Price:  level.price,
			Orders: make([]common.Order, len(level.orders)),
		}
		for i, order := range level.orders {
			flat.Orders[i] = *order
		}
		out = append(out, flat)
		return true
	})
	return out
}

func (book *OrderBook) Snapshot() Snapshot {
	return Snapshot{
		Symbol: book.Symbol,
		Buy:    flatten(book.Levels(common.Buy)),
		Sell:   flatten(book.Levels(common.Sell)),
	}
}

func flatten(levels []FlatPriceLevel) []common.Order {
	orders := []common.Order{}
	for _, level := range levels {
		orders = append(orders, level.Orders...)
	}
	return orders
}
