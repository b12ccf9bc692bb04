// Package engine is the market itself: listed companies, trader accounts, one
// order book per symbol and the trade history, all behind a single lock.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"bourse/internal/book"
	"bourse/internal/common"
	"bourse/internal/events"
	"bourse/internal/fees"
	"bourse/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Market serialises every operation on its state through mu. Nothing in
// this package takes mu while already holding it.
type Market struct {
	mu sync.Mutex

	ledger  *ledger.Ledger
	books   map[string]*book.OrderBook
	history []common.Trade
	fees    fees.Calculator
	sink    events.Sink

	now   func() time.Time
	newID func() string
	seq   uint64 // Arrival sequence handed to accepted orders.
}

type Option func(*Market)

// WithSink sets where market events are published. Publish is called with
// the market lock held, so the sink must hand off quickly.
func WithSink(sink events.Sink) Option {
	return func(m *Market) { m.sink = sink }
}

// WithClock overrides the source of timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Market) { m.now = now }
}

func New(calc fees.Calculator, opts ...Option) *Market {
	m := &Market{
		ledger: ledger.New(),
		books:  make(map[string]*book.OrderBook),
		fees:   calc,
		sink:   events.SinkFunc(func(events.Event) {}),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterCompany lists a company and opens an empty order book for it.
func (m *Market) RegisterCompany(symbol, name string, price float64, shares uint64) (common.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	company, err := m.ledger.RegisterCompany(symbol, name, price, shares)
	if err != nil {
		return common.Company{}, fmt.Errorf("register company: %w", err)
	}
	m.books[symbol] = book.NewOrderBook(symbol)

	log.Info().
		Str("symbol", symbol).
		Float64("price", price).
		Uint64("shares", shares).
		Msg("company registered")
	return company, nil
}

func (m *Market) RegisterTrader(name string, cash float64, portfolio map[string]uint64) (common.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	trader, err := m.ledger.RegisterTrader(name, cash, portfolio)
	if err != nil {
		return common.Trader{}, fmt.Errorf("register trader: %w", err)
	}
	log.Info().Str("trader", trader.ID).Str("name", name).Msg("trader registered")
	return trader, nil
}

func (m *Market) Company(symbol string) (common.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Company(symbol)
}

func (m *Market) Companies() []common.Company {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Companies()
}

func (m *Market) Trader(id string) (common.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Trader(id)
}

func (m *Market) Traders() []common.Trader {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Traders()
}

func (m *Market) Price(symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Price(symbol)
}

// OrderBook returns a copy of the resting orders for symbol, best price
// first on each side.
func (m *Market) OrderBook(symbol string) (book.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ob, ok := m.books[symbol]
	if !ok {
		return book.Snapshot{}, fmt.Errorf("%s: %w", symbol, common.ErrUnknownSymbol)
	}
	return ob.Snapshot(), nil
}

// Trades returns the last limit trades, most recent last. A limit of zero or
// less returns the whole history.
func (m *Market) Trades(limit int) []common.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := 0
	if limit > 0 && limit < len(m.history) {
		from = len(m.history) - limit
	}
	out := make([]common.Trade, len(m.history)-from)
	copy(out, m.history[from:])
	return out
}

// EstimateFees is the fee breakdown a trade at price and quantity would be
// charged under the current calculator.
func (m *Market) EstimateFees(price float64, quantity uint64) fees.Estimate {
	return m.fees.Estimate(price, quantity)
}

// Tick is one step of the market clock: every company is repriced with
// reprice, every book is matched and a market update is published. The whole
// step runs under the market lock.
func (m *Market) Tick(reprice func(price float64) float64) ([]common.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, company := range m.ledger.Companies() {
		price := reprice(company.Price)
		if err := m.ledger.SetPrice(company.Symbol, price); err != nil {
			return nil, fmt.Errorf("reprice %s: %w", company.Symbol, err)
		}
	}

	trades := m.matchAll()

	update := events.MarketUpdate{
		Companies: make(map[string]common.Company),
		Timestamp: m.now(),
	}
	for _, company := range m.ledger.Companies() {
		update.Companies[company.Symbol] = company
	}
	m.sink.Publish(update)
	return trades, nil
}

// Match runs the matching engine across every symbol without repricing.
func (m *Market) Match() []common.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchAll()
}

// symbols returns the symbols with a book, in sorted order so that a tick is
// deterministic.
func (m *Market) symbols() []string {
	out := make([]string, 0, len(m.books))
	for symbol := range m.books {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}
