package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/model"
)

var (
	ErrItemNotFound = errors.New("item not found")
	ErrBidNotFound  = errors.New("bid not found")
)

// SettingGetter is the read side of system settings. Both Store (plain
// reads) and Tx (reads inside a bid transaction) satisfy it so the
// settings snapshot can be loaded with transactional consistency.
type SettingGetter interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// Tx is the transaction-scoped view every mutating engine operation runs
// against. Implementations must guarantee that ItemForUpdate serializes
// concurrent transactions touching the same item, and that
// LastAuditHashForUpdate serializes audit appends globally.
type Tx interface {
	SettingGetter

	ItemForUpdate(ctx context.Context, itemID uuid.UUID) (*model.Item, error)
	UpdateItem(ctx context.Context, item *model.Item) error

	CurrentHighestBid(ctx context.Context, itemID uuid.UUID) (*model.Bid, error)
	InsertBid(ctx context.Context, bid *model.Bid) error
	UpdateBidStatus(ctx context.Context, bidID uuid.UUID, status model.BidStatus) error

	SetSetting(ctx context.Context, key, value string, updatedBy uuid.UUID) error

	// LastAuditHashForUpdate reads the persisted chain head under a lock
	// held until commit. Empty string means the chain is unrooted.
	LastAuditHashForUpdate(ctx context.Context) (string, error)
	// InsertAuditEntry appends the entry and moves the chain head to
	// entry.CurrentHash.
	InsertAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error
}

// Store is the persistence boundary of the auction core.
type Store interface {
	SettingGetter

	// InTx runs fn in a single atomic transaction. Any error rolls every
	// write back and is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetItem(ctx context.Context, itemID uuid.UUID) (*model.Item, error)
	// ExpiredItems lists items still in active_bidding whose auction end
	// time is at or before now.
	ExpiredItems(ctx context.Context, now time.Time) ([]model.Item, error)

	CurrentHighestBid(ctx context.Context, itemID uuid.UUID) (*model.Bid, error)
	BidHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]model.Bid, error)
	UserBids(ctx context.Context, userID uuid.UUID, status *model.BidStatus) ([]model.Bid, error)

	// AuditEntries returns entries with id >= fromID in ascending id order.
	AuditEntries(ctx context.Context, fromID int64) ([]model.AuditLogEntry, error)
	MarkAuditTampered(ctx context.Context, ids []int64) error

	Close()
}
