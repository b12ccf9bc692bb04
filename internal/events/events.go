// Package events carries market notifications from the engine to whoever is
// listening: websocket clients, the TCP gateway, a Redis channel.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"bourse/internal/book"
	"bourse/internal/common"
)

const (
	TypeMarketUpdate    = "market_update"
	TypeTradeExecuted   = "trade_executed"
	TypeOrderBookUpdate = "order_book_update"
	TypeOrderRejected   = "order_rejected"
)

type Event interface {
	Type() string
}

// Sink receives events. Implementations must not block for long: the market
// hands events over while it holds its lock.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

// MarketUpdate is emitted once per clock tick.
type MarketUpdate struct {
	Companies map[string]common.Company `json:"companies"`
	Timestamp time.Time                 `json:"timestamp"`
}

func (MarketUpdate) Type() string { return TypeMarketUpdate }

// TradeExecuted is emitted once per settled pair, in settlement order.
type TradeExecuted struct {
	Trade common.Trade `json:"trade"`
}

func (TradeExecuted) Type() string { return TypeTradeExecuted }

// OrderBookUpdate is emitted after an order is accepted into a book.
type OrderBookUpdate struct {
	Symbol    string        `json:"symbol"`
	OrderBook book.Snapshot `json:"order_book"`
}

func (OrderBookUpdate) Type() string { return TypeOrderBookUpdate }

// OrderRejected is emitted when a resting order is evicted because its owner
// can no longer cover it at match time.
type OrderRejected struct {
	Order  common.Order `json:"order"`
	Reason string       `json:"reason"`
}

func (OrderRejected) Type() string { return TypeOrderRejected }

// Encode renders an event as a flat JSON object tagged with its type, e.g.
// {"type":"trade_executed","trade":{...}}.
func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	kind, _ := json.Marshal(ev.Type())
	fields["type"] = kind
	return json.Marshal(fields)
}
