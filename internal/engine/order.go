package engine

import (
	"fmt"

	"bourse/internal/common"
	"bourse/internal/events"
	"bourse/internal/metrics"

	"github.com/rs/zerolog/log"
)

// OrderRequest is an order as submitted by a collaborator, before it has
// been checked against the market.
type OrderRequest struct {
	TraderID string  `json:"trader_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"order_type"`
	Price    float64 `json:"price"`
	Quantity uint64  `json:"quantity"`
}

// PlaceOrder validates req against the current state of the market and rests
// it in the book for its symbol. Nothing is matched until the next tick.
//
// Checks run in order: symbol, trader, side, price and quantity, then funds
// (including the estimated buyer fee) or held shares. A rejected order leaves
// no trace.
func (m *Market) PlaceOrder(req OrderRequest) (common.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, err := m.validate(req)
	if err != nil {
		metrics.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
		log.Debug().
			Err(err).
			Str("trader", req.TraderID).
			Str("symbol", req.Symbol).
			Msg("order rejected")
		return common.Order{}, fmt.Errorf("place order: %w", err)
	}

	m.seq++
	order.ID = m.newID()
	order.Sequence = m.seq
	order.Timestamp = m.now()

	ob := m.books[order.Symbol]
	ob.Submit(order)

	metrics.OrdersPlaced.WithLabelValues(order.Side.String()).Inc()
	log.Info().
		Str("order", order.ID).
		Str("trader", order.TraderID).
		Str("symbol", order.Symbol).
		Stringer("side", order.Side).
		Float64("price", order.Price).
		Uint64("quantity", order.Quantity).
		Msg("order placed")

	m.sink.Publish(events.OrderBookUpdate{
		Symbol:    order.Symbol,
		OrderBook: ob.Snapshot(),
	})
	return *order, nil
}

func (m *Market) validate(req OrderRequest) (*common.Order, error) {
	if _, ok := m.books[req.Symbol]; !ok {
		return nil, fmt.Errorf("%s: %w", req.Symbol, common.ErrUnknownSymbol)
	}
	trader, err := m.ledger.Trader(req.TraderID)
	if err != nil {
		return nil, err
	}
	side, err := common.ParseSide(req.Side)
	if err != nil {
		return nil, err
	}
	if !common.ValidPrice(req.Price) {
		return nil, fmt.Errorf("%v: %w", req.Price, common.ErrInvalidPrice)
	}
	if req.Quantity == 0 {
		return nil, common.ErrInvalidQuantity
	}

	switch side {
	case common.Buy:
		cost := m.fees.Estimate(req.Price, req.Quantity).BuyerTotal
		if trader.Cash < cost {
			return nil, fmt.Errorf("need %.2f, have %.2f: %w", cost, trader.Cash, common.ErrInsufficientFunds)
		}
	case common.Sell:
		if held := trader.Holding(req.Symbol); held < req.Quantity {
			return nil, fmt.Errorf("need %d %s, have %d: %w", req.Quantity, req.Symbol, held, common.ErrInsufficientShares)
		}
	}

	return &common.Order{
		TraderID:      trader.ID,
		Symbol:        req.Symbol,
		Side:          side,
		Price:         req.Price,
		Quantity:      req.Quantity,
		TotalQuantity: req.Quantity,
	}, nil
}
