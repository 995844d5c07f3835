package handlers

import "errors"

var (
	// common error code
	ErrInternalServer = errors.New("INTERNAL_SERVER_ERROR")
	ErrInvalidRequest = errors.New("VALIDATION_FAILED")
	ErrInvalidJson    = errors.New("INVALID_JSON_FORMAT")
	ErrMissingParam   = errors.New("MISSING_PARAM")
	ErrDb             = errors.New("DB_ERROR")

	// auth error code
	ErrAuthFailed   = errors.New("AUTH_FAILED")
	ErrMissingToken = errors.New("MISSING_TOKEN")
	ErrToken        = errors.New("TOKEN_ERROR")
	ErrForbidden    = errors.New("FORBIDDEN")

	// bid error code
	ErrItemNotBiddable  = errors.New("ITEM_NOT_BIDDABLE")
	ErrAuctionEnded     = errors.New("AUCTION_ENDED")
	ErrBelowReserve     = errors.New("BELOW_RESERVE")
	ErrDownPaymentRange = errors.New("DOWN_PAYMENT_OUT_OF_RANGE")
	ErrSelfBidding      = errors.New("SELF_BIDDING_NOT_ALLOWED")
	ErrBidLow           = errors.New("BID_TOO_LOW")

	// auction error code
	ErrAlreadyEnded = errors.New("AUCTION_ALREADY_ENDED")
	ErrInvalidRange = errors.New("INVALID_RANGE")
	ErrItemNotFound = errors.New("ITEM_NOT_FOUND")
)
