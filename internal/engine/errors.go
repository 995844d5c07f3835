package engine

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound          = errors.New("item not found")
	ErrItemNotBiddable       = errors.New("item is not open for bidding")
	ErrAuctionEnded          = errors.New("auction has already ended")
	ErrBelowReserve          = errors.New("bid amount is below the reserved amount")
	ErrDownPaymentOutOfRange = errors.New("down payment percentage is outside the allowed range")
	ErrSelfBidForbidden      = errors.New("seller cannot bid on their own item")
	ErrUnauthorized          = errors.New("caller is not authorized for this action")
	ErrAlreadyEnded          = errors.New("auction is already ended or sold")
	ErrInvalidRange          = errors.New("value is outside the allowed range")
)

// BidTooLowError carries the computed minimum so callers can surface it.
type BidTooLowError struct {
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid is too low, minimum bid is %s", e.Minimum.StringFixed(2))
}

// IsValidationError reports whether err belongs to the caller-facing
// taxonomy, as opposed to a storage failure. Validation failures get a
// best-effort rejection audit record; storage failures do not.
func IsValidationError(err error) bool {
	var tooLow *BidTooLowError
	if errors.As(err, &tooLow) {
		return true
	}
	for _, known := range []error{
		ErrItemNotBiddable, ErrAuctionEnded, ErrBelowReserve,
		ErrDownPaymentOutOfRange, ErrSelfBidForbidden, ErrUnauthorized,
		ErrAlreadyEnded, ErrInvalidRange,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
