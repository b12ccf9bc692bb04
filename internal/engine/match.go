package engine

import (
	"errors"
	"fmt"

	"bourse/internal/common"
	"bourse/internal/metrics"

	"github.com/rs/zerolog/log"
)

// matchAll matches every book in symbol order. A failure in one book is
// logged and counted and does not stop the others from matching.
func (m *Market) matchAll() []common.Trade {
	var trades []common.Trade
	for _, symbol := range m.symbols() {
		matched, err := m.matchSymbolSafely(symbol)
		trades = append(trades, matched...)
		if err != nil {
			metrics.MatchFailures.WithLabelValues(symbol).Inc()
			log.Error().Err(err).Str("symbol", symbol).Msg("matching failed")
		}
	}
	return trades
}

func (m *Market) matchSymbolSafely(symbol string) (trades []common.Trade, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("match %s panicked: %v", symbol, r)
		}
	}()
	return m.matchSymbol(symbol)
}

// matchSymbol consumes the top of book while bid >= ask. Each crossing pair
// trades at the midpoint of the two limit prices, rounded to cents, for the
// smaller of the two remaining quantities. Orders at the same price are taken
// in arrival order.
func (m *Market) matchSymbol(symbol string) ([]common.Trade, error) {
	ob := m.books[symbol]
	if ob.Empty() {
		return nil, nil
	}

	var trades []common.Trade
	for {
		buy, sell, ok := ob.BestCrossingPair()
		if !ok {
			return trades, nil
		}

		price := common.Round2((buy.Price + sell.Price) / 2)
		quantity := min(buy.Quantity, sell.Quantity)

		trade, err := m.settle(symbol, buy, sell, price, quantity)
		switch {
		case errors.Is(err, common.ErrSellerFeeUncovered):
			m.evict(ob, sell, err)
			continue
		case errors.Is(err, common.ErrInsufficientFunds):
			m.evict(ob, buy, err)
			continue
		case errors.Is(err, common.ErrInsufficientShares):
			m.evict(ob, sell, err)
			continue
		case err != nil:
			return trades, fmt.Errorf("match %s: %w", symbol, err)
		}

		ob.ReduceOrRemove(buy, quantity)
		ob.ReduceOrRemove(sell, quantity)
		trades = append(trades, trade)
	}
}
