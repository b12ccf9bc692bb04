// Package book keeps the resting limit orders of a single symbol.
package book

import (
	"bourse/internal/common"

	"github.com/tidwall/btree"
)

type PriceLevel struct {
	price  float64
	orders []*common.Order
}

type PriceLevels = btree.BTreeG[*PriceLevel]

// OrderBook holds the buy and sell side of one symbol. Orders at the same
// price are kept in arrival order, which is the tie-break used by matching.
//
// OrderBook is not safe for concurrent use; the owning market serialises
// access.
type OrderBook struct {
	Symbol string

	// Price levels to orders sat on the price level, sorted by time added
	// as they will be push-back'd.
	bids *PriceLevels
	asks *PriceLevels

	// Some book keeping
	nBuyOrders   uint64 // Track the number of bids in the book.
	nSellOrders  uint64 // Track the number of asks in the book.
	buyQuantity  uint64 // Track the bid-side liquidity of the book.
	sellQuantity uint64 // Track the ask-side liquidity of the book.
}

func NewOrderBook(symbol string) *OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.price > b.price
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.price < b.price
	})
	return &OrderBook{
		Symbol: symbol,
		bids:   bids,
		asks:   asks,
	}
}

func (book *OrderBook) levels(side common.Side) *PriceLevels {
	if side == common.Buy {
		return book.bids
	}
	return book.asks
}

// Submit rests an order on its side of the book. The caller has already
// validated the order against the ledger.
func (book *OrderBook) Submit(order *common.Order) {
	levels := book.levels(order.Side)

	// Levels comparator only accounts for price levels, so we create a dummy
	// price level for the search.
	level, ok := levels.GetMut(&PriceLevel{price: order.Price})
	if ok {
		level.orders = append(level.orders, order)
	} else {
		levels.Set(&PriceLevel{
			price:  order.Price,
			orders: []*common.Order{order},
		})
	}
	book.track(order.Side, 1, order.Quantity)
}

// BestCrossingPair returns the oldest order on the best bid level and the
// oldest order on the best ask level, if the two prices cross.
func (book *OrderBook) BestCrossingPair() (buy, sell *common.Order, ok bool) {
	bestBid, bidOk := book.bids.Min()
	bestAsk, askOk := book.asks.Min()

	// If either side is empty, or prices don't cross, there is nothing to do.
	if !bidOk || !askOk || bestBid.price < bestAsk.price {
		return nil, nil, false
	}
	return bestBid.orders[0], bestAsk.orders[0], true
}

// ReduceOrRemove records a fill against a resting order and removes it once
// nothing remains.
func (book *OrderBook) ReduceOrRemove(order *common.Order, filled uint64) {
	if filled > order.Quantity {
		filled = order.Quantity
	}
	order.Quantity -= filled
	book.untrack(order.Side, 0, filled)
	if order.Quantity == 0 {
		book.remove(order)
	}
}

// Remove drops a resting order whatever its remaining quantity.
func (book *OrderBook) Remove(order *common.Order) bool {
	remaining := order.Quantity
	if !book.remove(order) {
		return false
	}
	book.untrack(order.Side, 0, remaining)
	return true
}

func (book *OrderBook) remove(order *common.Order) bool {
	levels := book.levels(order.Side)
	level, ok := levels.GetMut(&PriceLevel{price: order.Price})
	if !ok {
		return false
	}
	for i, resting := range level.orders {
		if resting != order {
			continue
		}
		level.orders = append(level.orders[:i], level.orders[i+1:]...)
		if len(level.orders) == 0 {
			levels.Delete(level)
		}
		book.untrack(order.Side, 1, 0)
		return true
	}
	return false
}

func (book *OrderBook) track(side common.Side, orders, quantity uint64) {
	switch side {
	case common.Buy:
		book.nBuyOrders += orders
		book.buyQuantity += quantity
	case common.Sell:
		book.nSellOrders += orders
		book.sellQuantity += quantity
	}
}

func (book *OrderBook) untrack(side common.Side, orders, quantity uint64) {
	switch side {
	case common.Buy:
		book.nBuyOrders -= orders
		book.buyQuantity -= quantity
	case common.Sell:
		book.nSellOrders -= orders
		book.sellQuantity -= quantity
	}
}

// Len is the number of resting orders on both sides.
func (book *OrderBook) Len() int {
	return int(book.nBuyOrders + book.nSellOrders)
}

func (book *OrderBook) Empty() bool {
	return book.Len() == 0
}

// Liquidity returns the total resting quantity on one side.
func (book *OrderBook) Liquidity(side common.Side) uint64 {
	if side == common.Buy {
		return book.buyQuantity
	}
	return book.sellQuantity
}
