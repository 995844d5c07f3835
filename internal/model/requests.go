package model

// PlaceBidRequest is the bidder surface payload. DownPaymentPercentage
// defaults to the configured default when omitted.
type PlaceBidRequest struct {
	Amount                float64  `json:"amount" validate:"required,gt=0"`
	DownPaymentPercentage *float64 `json:"down_payment_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
}

type UpdateReserveRequest struct {
	ReservedAmount float64 `json:"reserved_amount" validate:"required,gt=0"`
}

type UpdateCommissionRequest struct {
	CommissionPercentage float64 `json:"commission_percentage" validate:"gte=0,lte=50"`
}
