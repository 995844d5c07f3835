// Package ledger is the read side of the bid ledger: the materialized
// highest-bid view and bid history projections. It never mutates state;
// the single-leader invariant is the engine's job.
package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/model"
	"github.com/sellio/bidcore/internal/store"
)

type Servicer interface {
	CurrentHighestBid(ctx context.Context, itemID uuid.UUID) (*model.Bid, error)
	BidHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]model.Bid, error)
	UserBids(ctx context.Context, userID uuid.UUID, status *model.BidStatus) ([]model.Bid, error)
}

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// CurrentHighestBid returns the single non-losing leader for an item:
// greatest amount, ties broken by earliest creation. Nil when the item
// has no standing bids.
func (l *Service) CurrentHighestBid(ctx context.Context, itemID uuid.UUID) (*model.Bid, error) {
	return l.store.CurrentHighestBid(ctx, itemID)
}

// BidHistory lists an item's bids, highest amount first, newest first on
// ties.
func (l *Service) BidHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]model.Bid, error) {
	return l.store.BidHistory(ctx, itemID, limit)
}

// UserBids lists a bidder's bids, optionally filtered by status.
func (l *Service) UserBids(ctx context.Context, userID uuid.UUID, status *model.BidStatus) ([]model.Bid, error) {
	return l.store.UserBids(ctx, userID, status)
}
