package common

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the market wraps exactly one of these.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
)

var (
	ErrUnknownSymbol   = fmt.Errorf("unknown symbol: %w", ErrNotFound)
	ErrUnknownTrader   = fmt.Errorf("unknown trader: %w", ErrNotFound)
	ErrDuplicateSymbol = fmt.Errorf("duplicate symbol: %w", ErrConflict)
	ErrInvalidSide     = fmt.Errorf("invalid order side: %w", ErrInvalidInput)
	ErrInvalidPrice    = fmt.Errorf("price must be positive and finite: %w", ErrInvalidInput)
	ErrInvalidQuantity = fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)

	// ErrSellerFeeUncovered is a funds shortfall on the selling side: the
	// proceeds plus the seller's cash do not cover the seller fee.
	ErrSellerFeeUncovered = fmt.Errorf("seller cannot cover fee: %w", ErrInsufficientFunds)
)
