package engine

import (
	"bourse/internal/book"
	"bourse/internal/common"
	"bourse/internal/events"
	"bourse/internal/metrics"

	"github.com/rs/zerolog/log"
)

// settle moves cash and shares for one matched pair and records the trade.
// Balances are re-checked first: an owner may have spent the funds or sold
// the shares since the order was accepted.
func (m *Market) settle(symbol string, buy, sell *common.Order, price float64, quantity uint64) (common.Trade, error) {
	value := price * float64(quantity)
	fees := m.fees.Fees(value)

	if err := m.ledger.SettleTrade(buy.TraderID, sell.TraderID, symbol, price, quantity, fees); err != nil {
		return common.Trade{}, err
	}

	trade := common.Trade{
		ID:          m.newID(),
		Symbol:      symbol,
		Price:       price,
		Quantity:    quantity,
		BuyerID:     buy.TraderID,
		SellerID:    sell.TraderID,
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		Fees:        fees,
		Timestamp:   m.now(),
	}
	m.history = append(m.history, trade)

	metrics.TradesExecuted.WithLabelValues(symbol).Inc()
	metrics.FeesCollected.Add(fees.Total())
	log.Info().
		Str("trade", trade.ID).
		Str("symbol", symbol).
		Float64("price", price).
		Uint64("quantity", quantity).
		Str("buyer", buy.TraderID).
		Str("seller", sell.TraderID).
		Msg("trade executed")

	m.sink.Publish(events.TradeExecuted{Trade: trade})
	return trade, nil
}

// evict drops an order whose owner can no longer cover it.
func (m *Market) evict(ob *book.OrderBook, order *common.Order, cause error) {
	ob.Remove(order)

	reason := rejectReason(cause)
	metrics.OrdersRejected.WithLabelValues(reason).Inc()
	log.Warn().
		Err(cause).
		Str("order", order.ID).
		Str("trader", order.TraderID).
		Str("symbol", order.Symbol).
		Msg("evicting unfunded order")

	m.sink.Publish(events.OrderRejected{Order: *order, Reason: reason})
}
