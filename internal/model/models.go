package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ItemStatus string

const (
	ItemStatusDraft         ItemStatus = "draft"
	ItemStatusActiveBidding ItemStatus = "active_bidding"
	ItemStatusEnded         ItemStatus = "ended"
	ItemStatusSold          ItemStatus = "sold"
)

type BidStatus string

const (
	BidStatusActive   BidStatus = "active"
	BidStatusOutbid   BidStatus = "outbid"
	BidStatusWinning  BidStatus = "winning"
	BidStatusRejected BidStatus = "rejected"
)

type IncrementType string

const (
	IncrementTypeFixed      IncrementType = "fixed"
	IncrementTypePercentage IncrementType = "percentage"
)

// Item is the auction subject. Seller-owned; the engine only mutates
// status, auction end time and extension count.
type Item struct {
	ID                       uuid.UUID        `json:"id"`
	SellerID                 uuid.UUID        `json:"seller_id"`
	Title                    string           `json:"title"`
	ReservedAmount           decimal.Decimal  `json:"reserved_amount"`
	Status                   ItemStatus       `json:"status"`
	AuctionEndTime           *time.Time       `json:"auction_end_time,omitempty"`
	AutoExtendEnabled        bool             `json:"auto_extend_enabled"`
	ExtensionCount           int              `json:"extension_count"`
	BuyNowPrice              *decimal.Decimal `json:"buy_now_price,omitempty"`
	MinDownPaymentPercentage decimal.Decimal  `json:"min_down_payment_percentage"`
	CreatedAt                time.Time        `json:"created_at"`
	UpdatedAt                time.Time        `json:"updated_at"`
}

// Bid is one bidder's offer on an item. Rejected bids are never persisted,
// they only show up in the audit trail.
type Bid struct {
	ID                    uuid.UUID       `json:"id"`
	ItemID                uuid.UUID       `json:"item_id"`
	BidderID              uuid.UUID       `json:"bidder_id"`
	Amount                decimal.Decimal `json:"amount"`
	DownPaymentPercentage decimal.Decimal `json:"down_payment_percentage"`
	Status                BidStatus       `json:"status"`
	IncrementApplied      decimal.Decimal `json:"increment_applied"`
	IncrementType         IncrementType   `json:"increment_type"`
	IsBuyNow              bool            `json:"is_buy_now"`
	TriggeredExtension    bool            `json:"triggered_extension"`
	DownPaymentWarning    bool            `json:"down_payment_warning"`
	CreatedAt             time.Time       `json:"created_at"`
}

type AuditAction string

const (
	AuditBidCreated        AuditAction = "bid_created"
	AuditBidRejected       AuditAction = "bid_rejected"
	AuditBidUpdated        AuditAction = "bid_updated"
	AuditBidAccepted       AuditAction = "bid_accepted"
	AuditReserveChanged    AuditAction = "reserve_changed"
	AuditCommissionChanged AuditAction = "commission_changed"
	AuditAuctionExtended   AuditAction = "auction_extended"
	AuditAuctionEnded      AuditAction = "auction_ended"
	AuditBuyNowTriggered   AuditAction = "buy_now_triggered"
)

const (
	VerificationVerified = "verified"
	VerificationTampered = "tampered"
)

// AuditLogEntry is one link of the hash chain. Hash and value fields are
// immutable once written; only VerificationStatus may be flipped later.
type AuditLogEntry struct {
	ID                 int64             `json:"id"`
	UUID               uuid.UUID         `json:"uuid"`
	PreviousLogHash    string            `json:"previous_log_hash"`
	CurrentHash        string            `json:"current_hash"`
	Timestamp          time.Time         `json:"timestamp"`
	UserID             uuid.UUID         `json:"user_id"`
	UserRole           string            `json:"user_role"`
	IPAddress          string            `json:"ip_address"`
	UserAgent          string            `json:"user_agent"`
	Action             AuditAction       `json:"action_type"`
	ItemID             uuid.UUID         `json:"item_id"`
	OldValue           string            `json:"old_value"`
	NewValue           string            `json:"new_value"`
	AdditionalData     map[string]string `json:"additional_data,omitempty"`
	VerificationStatus string            `json:"verification_status"`
}

// SystemSetting is a raw key/value row. Typed access lives in the
// settings package.
type SystemSetting struct {
	SettingKey   string     `json:"setting_key"`
	SettingValue string     `json:"setting_value"`
	UpdatedBy    *uuid.UUID `json:"updated_by,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
