package engine

import (
	"errors"

	"bourse/internal/common"
)

// rejectReason is the metrics label for a rejected order.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, common.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, common.ErrInsufficientShares):
		return "insufficient_shares"
	}
	return "other"
}
