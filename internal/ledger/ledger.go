// Package ledger holds trader balances and listed companies.
//
// The ledger does no locking of its own. Every method must be called with the
// owning market's lock held.
package ledger

import (
	"fmt"
	"sort"

	"bourse/internal/common"

	"github.com/google/uuid"
)

type Ledger struct {
	companies map[string]*common.Company
	traders   map[string]*common.Trader

	newID func() string
}

func New() *Ledger {
	return &Ledger{
		companies: make(map[string]*common.Company),
		traders:   make(map[string]*common.Trader),
		newID:     uuid.NewString,
	}
}

// RegisterCompany lists a new company. The IPO price is fixed to the initial
// price.
func (l *Ledger) RegisterCompany(symbol, name string, price float64, shares uint64) (common.Company, error) {
	if symbol == "" {
		return common.Company{}, fmt.Errorf("empty symbol: %w", common.ErrInvalidInput)
	}
	if !common.ValidPrice(price) {
		return common.Company{}, fmt.Errorf("company %s: %w", symbol, common.ErrInvalidPrice)
	}
	if shares == 0 {
		return common.Company{}, fmt.Errorf("company %s: %w", symbol, common.ErrInvalidQuantity)
	}
	if _, ok := l.companies[symbol]; ok {
		return common.Company{}, fmt.Errorf("%s: %w", symbol, common.ErrDuplicateSymbol)
	}

	company := &common.Company{
		Symbol:            symbol,
		Name:              name,
		Price:             price,
		OutstandingShares: shares,
		IPOPrice:          price,
	}
	l.companies[symbol] = company
	return *company, nil
}

// RegisterTrader opens an account and returns it with its generated id.
// Portfolio seeds initial holdings and may be nil.
func (l *Ledger) RegisterTrader(name string, cash float64, portfolio map[string]uint64) (common.Trader, error) {
	if !common.Finite(cash) || cash < 0 {
		return common.Trader{}, fmt.Errorf("invalid cash %.2f: %w", cash, common.ErrInvalidInput)
	}

	trader := &common.Trader{
		ID:        l.newID(),
		Name:      name,
		Cash:      cash,
		Portfolio: make(map[string]uint64, len(portfolio)),
	}
	for symbol, shares := range portfolio {
		trader.Portfolio[symbol] = shares
	}
	l.traders[trader.ID] = trader
	return trader.Clone(), nil
}

func (l *Ledger) Company(symbol string) (common.Company, error) {
	company, ok := l.companies[symbol]
	if !ok {
		return common.Company{}, fmt.Errorf("%s: %w", symbol, common.ErrUnknownSymbol)
	}
	return *company, nil
}

func (l *Ledger) HasCompany(symbol string) bool {
	_, ok := l.companies[symbol]
	return ok
}

func (l *Ledger) Price(symbol string) (float64, error) {
	company, ok := l.companies[symbol]
	if !ok {
		return 0, fmt.Errorf("%s: %w", symbol, common.ErrUnknownSymbol)
	}
	return company.Price, nil
}

// SetPrice overwrites the current price of a company.
func (l *Ledger) SetPrice(symbol string, price float64) error {
	company, ok := l.companies[symbol]
	if !ok {
		return fmt.Errorf("%s: %w", symbol, common.ErrUnknownSymbol)
	}
	if !common.ValidPrice(price) {
		return fmt.Errorf("company %s: %w", symbol, common.ErrInvalidPrice)
	}
	company.Price = price
	return nil
}

// Companies returns every listed company ordered by symbol.
func (l *Ledger) Companies() []common.Company {
	out := make([]common.Company, 0, len(l.companies))
	for _, company := range l.companies {
		out = append(out, *company)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (l *Ledger) Trader(id string) (common.Trader, error) {
	trader, ok := l.traders[id]
	if !ok {
		return common.Trader{}, fmt.Errorf("%s: %w", id, common.ErrUnknownTrader)
	}
	return trader.Clone(), nil
}

// Traders returns a copy of every account ordered by id.
func (l *Ledger) Traders() []common.Trader {
	out := make([]common.Trader, 0, len(l.traders))
	for _, trader := range l.traders {
		out = append(out, trader.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CanSettle reports whether the buyer can pay for the trade including fees,
// the seller still holds the shares and neither side ends with negative cash.
// The returned error wraps ErrInsufficientFunds (ErrSellerFeeUncovered for the
// selling side) or ErrInsufficientShares.
func (l *Ledger) CanSettle(buyerID, sellerID, symbol string, price float64, quantity uint64, fees common.Fees) error {
	buyer, ok := l.traders[buyerID]
	if !ok {
		return fmt.Errorf("buyer %s: %w", buyerID, common.ErrUnknownTrader)
	}
	seller, ok := l.traders[sellerID]
	if !ok {
		return fmt.Errorf("seller %s: %w", sellerID, common.ErrUnknownTrader)
	}

	value := price * float64(quantity)
	if buyer.Cash < value+fees.BuyerFee {
		return fmt.Errorf("buyer %s needs %.2f, has %.2f: %w",
			buyerID, value+fees.BuyerFee, buyer.Cash, common.ErrInsufficientFunds)
	}
	sellerCash := seller.Cash
	if buyerID == sellerID {
		sellerCash -= value + fees.BuyerFee
	}
	if sellerCash+value-fees.SellerFee < 0 {
		return fmt.Errorf("seller %s has %.2f, fee %.2f: %w",
			sellerID, seller.Cash, fees.SellerFee, common.ErrSellerFeeUncovered)
	}
	held := seller.Portfolio[symbol]
	if buyerID == sellerID {
		// A self-trade leaves the share count unchanged but still costs fees.
		held += quantity
	}
	if held < quantity {
		return fmt.Errorf("seller %s needs %d %s, has %d: %w",
			sellerID, quantity, symbol, seller.Portfolio[symbol], common.ErrInsufficientShares)
	}
	return nil
}

// SettleTrade moves shares from seller to buyer and cash from buyer to seller,
// charging each side its fee. The trade is checked with CanSettle first, so
// on error nothing has been written.
func (l *Ledger) SettleTrade(buyerID, sellerID, symbol string, price float64, quantity uint64, fees common.Fees) error {
	if !l.HasCompany(symbol) {
		return fmt.Errorf("%s: %w", symbol, common.ErrUnknownSymbol)
	}
	if err := l.CanSettle(buyerID, sellerID, symbol, price, quantity, fees); err != nil {
		return err
	}
	buyer, seller := l.traders[buyerID], l.traders[sellerID]
	value := price * float64(quantity)

	// Seller leg first so a self-trade nets out on the same record.
	seller.Portfolio[symbol] -= quantity
	seller.Cash += value - fees.SellerFee

	buyer.Portfolio[symbol] += quantity
	buyer.Cash -= value + fees.BuyerFee
	return nil
}
