package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/audit"
	"github.com/sellio/bidcore/internal/events"
	"github.com/sellio/bidcore/internal/model"
	"github.com/sellio/bidcore/internal/settings"
	"github.com/sellio/bidcore/internal/store"
	"github.com/sellio/bidcore/pkg/config"
	"github.com/sellio/bidcore/pkg/logger"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Actor identifies who is performing an engine operation. Identity and
// role come from the auth surface; IP and user agent feed the audit trail.
type Actor struct {
	UserID    uuid.UUID
	Role      string
	IPAddress string
	UserAgent string
}

// SystemActor builds the actor the scheduler uses when ending expired
// auctions on a seller's behalf.
func SystemActor(sellerID uuid.UUID) Actor {
	return Actor{UserID: sellerID, Role: config.RoleSystem}
}

type PlaceBidResult struct {
	BidID              uuid.UUID       `json:"bid_id"`
	Message            string          `json:"message"`
	Amount             decimal.Decimal `json:"amount"`
	IsBuyNow           bool            `json:"is_buy_now"`
	TriggeredExtension bool            `json:"triggered_extension"`
	DownPaymentWarning bool            `json:"down_payment_warning"`
}

type EndAuctionResult struct {
	Sold             bool             `json:"sold"`
	Message          string           `json:"message"`
	WinningBid       *model.Bid       `json:"winning_bid,omitempty"`
	CommissionAmount *decimal.Decimal `json:"commission_amount,omitempty"`
	SellerAmount     *decimal.Decimal `json:"seller_amount,omitempty"`
}

type CommissionBreakdown struct {
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	SellerAmount     decimal.Decimal `json:"seller_amount"`
}

// ExpiredAuctionResult is the per-item outcome of a scheduler sweep.
type ExpiredAuctionResult struct {
	ItemID uuid.UUID `json:"item_id"`
	Sold   bool      `json:"sold"`
	Err    string    `json:"error,omitempty"`
}

// Engine validates and applies every auction mutation: bid placement,
// reserve updates, termination, commission changes. All mutating
// operations run as one atomic transaction with the item row locked and
// the audit entry chained inside it.
type Engine struct {
	store    store.Store
	settings *settings.Provider
	recorder *audit.Recorder
	events   events.Publisher
	log      *logger.Logger
	now      func() time.Time
}

func NewEngine(s store.Store, sp *settings.Provider, rec *audit.Recorder, pub events.Publisher, log *logger.Logger) *Engine {
	return &Engine{
		store:    s,
		settings: sp,
		recorder: rec,
		events:   pub,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the engine clock. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// PlaceBid validates and applies one bid. Preconditions run in a fixed
// order and any failure rolls the whole transaction back; the only trace
// of a rejected bid is a best-effort audit record written afterwards.
// downPct may be nil, which means the configured default.
func (e *Engine) PlaceBid(ctx context.Context, actor Actor, itemID uuid.UUID, amount decimal.Decimal, downPct *decimal.Decimal) (*PlaceBidResult, error) {
	now := e.now().UTC()

	var (
		result   *PlaceBidResult
		extended bool
	)
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		item, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			if errors.Is(err, store.ErrItemNotFound) {
				return ErrItemNotFound
			}
			return err
		}

		if item.Status != model.ItemStatusActiveBidding {
			return ErrItemNotBiddable
		}
		if item.AuctionEndTime != nil && item.AuctionEndTime.Before(now) {
			return ErrAuctionEnded
		}
		if amount.LessThan(item.ReservedAmount) {
			return ErrBelowReserve
		}

		snap, err := settings.LoadFrom(ctx, tx)
		if err != nil {
			return err
		}

		dp := snap.DefaultDownPayment
		if downPct != nil {
			dp = *downPct
		}
		if dp.LessThan(item.MinDownPaymentPercentage) ||
			dp.LessThan(snap.MinDownPayment) ||
			dp.GreaterThan(snap.MaxDownPayment) {
			return ErrDownPaymentOutOfRange
		}

		if actor.UserID == item.SellerID {
			return ErrSelfBidForbidden
		}

		leader, err := tx.CurrentHighestBid(ctx, itemID)
		if err != nil {
			return err
		}

		// Buy-now short-circuits every increment check.
		if item.BuyNowPrice != nil && amount.GreaterThanOrEqual(*item.BuyNowPrice) {
			result, err = e.settleInstantPurchase(ctx, tx, actor, item, leader, amount, dp, now, "buy_now_price_met")
			return err
		}

		minimum, increment := minimumBid(leader, snap)
		if amount.LessThan(minimum) {
			return &BidTooLowError{Minimum: minimum}
		}

		// A bid with full down payment is itself an instant purchase.
		if dp.GreaterThanOrEqual(oneHundred) {
			result, err = e.settleInstantPurchase(ctx, tx, actor, item, leader, amount, dp, now, "full_down_payment")
			return err
		}

		extended = e.applyAutoExtension(item, snap, now)

		if leader != nil {
			if err := tx.UpdateBidStatus(ctx, leader.ID, model.BidStatusOutbid); err != nil {
				return err
			}
		}

		bid := &model.Bid{
			ItemID:                itemID,
			BidderID:              actor.UserID,
			Amount:                amount,
			DownPaymentPercentage: dp,
			Status:                model.BidStatusActive,
			IncrementApplied:      increment,
			IncrementType:         snap.BidIncrementType,
			TriggeredExtension:    extended,
			DownPaymentWarning:    dp.LessThan(snap.DefaultDownPayment),
			CreatedAt:             now,
		}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}

		if extended {
			if err := tx.UpdateItem(ctx, item); err != nil {
				return err
			}
			_, err = audit.AppendTx(ctx, tx, e.entry(actor, item.ID, model.AuditAuctionExtended, now,
				"", item.AuctionEndTime.Format(time.RFC3339),
				map[string]string{"extension_count": decimal.NewFromInt(int64(item.ExtensionCount)).String()},
			))
			if err != nil {
				return err
			}
		}

		oldLeader := ""
		if leader != nil {
			oldLeader = leader.Amount.StringFixed(2)
		}
		_, err = audit.AppendTx(ctx, tx, e.entry(actor, item.ID, model.AuditBidCreated, now,
			oldLeader, amount.StringFixed(2),
			map[string]string{"bid_id": bid.ID.String(), "down_payment_percentage": dp.String()},
		))
		if err != nil {
			return err
		}

		result = &PlaceBidResult{
			BidID:              bid.ID,
			Message:            "Bid placed successfully",
			Amount:             amount,
			TriggeredExtension: extended,
			DownPaymentWarning: bid.DownPaymentWarning,
		}
		return nil
	})

	if err != nil {
		if IsValidationError(err) {
			e.recordRejection(ctx, actor, itemID, amount, now, err)
		}
		return nil, err
	}

	e.publish(ctx, events.Event{
		Type:       events.TypeBidPlaced,
		ItemID:     itemID,
		BidID:      result.BidID.String(),
		Amount:     result.Amount.StringFixed(2),
		Sold:       result.IsBuyNow,
		OccurredAt: now,
	})
	if extended {
		e.publish(ctx, events.Event{Type: events.TypeAuctionExtended, ItemID: itemID, OccurredAt: now})
	}
	if result.IsBuyNow {
		e.publish(ctx, events.Event{Type: events.TypeBuyNow, ItemID: itemID, BidID: result.BidID.String(), Sold: true, OccurredAt: now})
	}
	return result, nil
}

// settleInstantPurchase finishes the auction on the spot: the incoming
// bid wins, the item is sold and the previous leader is outbid.
func (e *Engine) settleInstantPurchase(ctx context.Context, tx store.Tx, actor Actor, item *model.Item, leader *model.Bid, amount, dp decimal.Decimal, now time.Time, reason string) (*PlaceBidResult, error) {
	if leader != nil {
		if err := tx.UpdateBidStatus(ctx, leader.ID, model.BidStatusOutbid); err != nil {
			return nil, err
		}
	}

	bid := &model.Bid{
		ItemID:                item.ID,
		BidderID:              actor.UserID,
		Amount:                amount,
		DownPaymentPercentage: dp,
		Status:                model.BidStatusWinning,
		IsBuyNow:              true,
		CreatedAt:             now,
	}
	if err := tx.InsertBid(ctx, bid); err != nil {
		return nil, err
	}

	item.Status = model.ItemStatusSold
	if err := tx.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	_, err := audit.AppendTx(ctx, tx, e.entry(actor, item.ID, model.AuditBuyNowTriggered, now,
		"", amount.StringFixed(2),
		map[string]string{"bid_id": bid.ID.String(), "reason": reason},
	))
	if err != nil {
		return nil, err
	}
	_, err = audit.AppendTx(ctx, tx, e.entry(actor, item.ID, model.AuditAuctionEnded, now,
		string(model.ItemStatusActiveBidding), string(model.ItemStatusSold),
		map[string]string{"winning_bid_id": bid.ID.String()},
	))
	if err != nil {
		return nil, err
	}

	return &PlaceBidResult{
		BidID:    bid.ID,
		Message:  "Item purchased instantly",
		Amount:   amount,
		IsBuyNow: true,
	}, nil
}

// applyAutoExtension pushes the end time to now + extension window when
// the bid lands inside the closing window. Extension count is unbounded;
// capping it is a product decision that has not been made.
func (e *Engine) applyAutoExtension(item *model.Item, snap settings.Snapshot, now time.Time) bool {
	if !item.AutoExtendEnabled || item.AuctionEndTime == nil {
		return false
	}

	window := time.Duration(snap.AuctionExtensionMinutes) * time.Minute
	remaining := item.AuctionEndTime.Sub(now)
	if remaining <= 0 || remaining > window {
		return false
	}

	newEnd := now.Add(window)
	item.AuctionEndTime = &newEnd
	item.ExtensionCount++
	return true
}

// MinimumBid computes the next acceptable bid amount from the current
// leader and the increment settings. With no bids yet this is just the
// increment; callers combine it with the reserve check.
func (e *Engine) MinimumBid(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	if _, err := e.store.GetItem(ctx, itemID); err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return decimal.Zero, ErrItemNotFound
		}
		return decimal.Zero, err
	}

	leader, err := e.store.CurrentHighestBid(ctx, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	snap, err := e.settings.Load(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	minimum, _ := minimumBid(leader, snap)
	return minimum, nil
}

func minimumBid(leader *model.Bid, snap settings.Snapshot) (minimum, increment decimal.Decimal) {
	current := decimal.Zero
	if leader != nil {
		current = leader.Amount
	}

	if snap.BidIncrementType == model.IncrementTypePercentage {
		increment = current.Mul(snap.BidIncrementPercentage).Div(oneHundred)
	} else {
		increment = snap.BidIncrementFixed
	}
	return current.Add(increment), increment
}

// UpdateReservedAmount lets the seller move the reserve. The new amount
// must not exceed the standing highest bid, otherwise an already-valid
// bid would be retroactively priced out.
func (e *Engine) UpdateReservedAmount(ctx context.Context, actor Actor, itemID uuid.UUID, newAmount decimal.Decimal) error {
	now := e.now().UTC()

	return e.store.InTx(ctx, func(tx store.Tx) error {
		item, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			if errors.Is(err, store.ErrItemNotFound) {
				return ErrItemNotFound
			}
			return err
		}

		if item.Status == model.ItemStatusSold || item.Status == model.ItemStatusEnded {
			return ErrAlreadyEnded
		}
		if actor.UserID != item.SellerID {
			return ErrUnauthorized
		}
		if !newAmount.IsPositive() {
			return ErrInvalidRange
		}

		leader, err := tx.CurrentHighestBid(ctx, itemID)
		if err != nil {
			return err
		}
		if leader != nil && newAmount.GreaterThan(leader.Amount) {
			return ErrInvalidRange
		}

		old := item.ReservedAmount
		item.ReservedAmount = newAmount
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}

		_, err = audit.AppendTx(ctx, tx, e.entry(actor, item.ID, model.AuditReserveChanged, now,
			old.StringFixed(2), newAmount.StringFixed(2), nil,
		))
		return err
	})
}

// EndAuction terminates bidding. The item sells if and only if the
// current highest bid meets the reserve. Idempotent: a second call on an
// ended or sold item fails with ErrAlreadyEnded and audits nothing.
func (e *Engine) EndAuction(ctx context.Context, actor Actor, itemID uuid.UUID) (*EndAuctionResult, error) {
	now := e.now().UTC()

	var result *EndAuctionResult
	err := e.store.InTx(ctx, func(tx store.Tx) error {
		item, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			if errors.Is(err, store.ErrItemNotFound) {
				return ErrItemNotFound
			}
			return err
		}

		if item.Status == model.ItemStatusSold || item.Status == model.ItemStatusEnded {
			return ErrAlreadyEnded
		}
		if item.Status != model.ItemStatusActiveBidding {
			return ErrItemNotBiddable
		}
		if actor.UserID != item.SellerID && actor.Role != config.RoleSystem {
			return ErrUnauthorized
		}

		leader, err := tx.CurrentHighestBid(ctx, itemID)
		if err != nil {
			return err
		}

		if leader != nil && leader.Amount.GreaterThanOrEqual(item.ReservedAmount) {
			if err := tx.UpdateBidStatus(ctx, leader.ID, model.BidStatusWinning); err != nil {
				return err
			}
			item.Status = model.ItemStatusSold
			if err := tx.UpdateItem(ctx, item); err != nil {
				return err
			}

			_, err = audit.AppendTx(ctx, tx, e.entry(actor, item.ID, model.AuditBidAccepted, now,
				string(model.BidStatusActive), string(model.BidStatusWinning),
				map[string]string{"bid_id": leader.ID.String(), "amount": leader.Amount.StringFixed(2)},
			))
			if err != nil {
				return err
			}
			_, err = audit.AppendTx(ctx, tx, e.entry(actor, item.ID, model.AuditAuctionEnded, now,
				string(model.ItemStatusActiveBidding), string(model.ItemStatusSold),
				map[string]string{"winning_bid_id": leader.ID.String()},
			))
			if err != nil {
				return err
			}

			snap, err := settings.LoadFrom(ctx, tx)
			if err != nil {
				return err
			}
			breakdown := commission(leader.Amount, snap.CommissionPercentage)

			winner := *leader
			winner.Status = model.BidStatusWinning
			result = &EndAuctionResult{
				Sold:             true,
				Message:          "Auction ended, item sold",
				WinningBid:       &winner,
				CommissionAmount: &breakdown.CommissionAmount,
				SellerAmount:     &breakdown.SellerAmount,
			}
			return nil
		}

		item.Status = model.ItemStatusEnded
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}

		if leader != nil {
			_, err = audit.AppendTx(ctx, tx, e.entry(actor, item.ID, model.AuditBidRejected, now,
				leader.Amount.StringFixed(2), item.ReservedAmount.StringFixed(2),
				map[string]string{"bid_id": leader.ID.String(), "reason": "reserve not met"},
			))
			if err != nil {
				return err
			}
		}
		_, err = audit.AppendTx(ctx, tx, e.entry(actor, item.ID, model.AuditAuctionEnded, now,
			string(model.ItemStatusActiveBidding), string(model.ItemStatusEnded),
			map[string]string{"reason": endReason(leader)},
		))
		if err != nil {
			return err
		}

		result = &EndAuctionResult{Sold: false, Message: "Auction ended, reserve not met"}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events.Event{
		Type:       events.TypeAuctionEnded,
		ItemID:     itemID,
		Sold:       result.Sold,
		OccurredAt: now,
	})
	return result, nil
}

func endReason(leader *model.Bid) string {
	if leader == nil {
		return "no bids"
	}
	return "reserve not met"
}

// ProcessExpiredAuctions ends every active auction whose end time has
// passed, acting as the system on each seller's behalf. One failing item
// never aborts the sweep.
func (e *Engine) ProcessExpiredAuctions(ctx context.Context) ([]ExpiredAuctionResult, error) {
	expired, err := e.store.ExpiredItems(ctx, e.now().UTC())
	if err != nil {
		return nil, err
	}

	results := make([]ExpiredAuctionResult, 0, len(expired))
	for _, item := range expired {
		res, err := e.EndAuction(ctx, SystemActor(item.SellerID), item.ID)
		if err != nil {
			e.log.Errorw("[ENGINE] failed to end expired auction", "item_id", item.ID, "error", err)
			results = append(results, ExpiredAuctionResult{ItemID: item.ID, Err: err.Error()})
			continue
		}
		results = append(results, ExpiredAuctionResult{ItemID: item.ID, Sold: res.Sold})
	}
	return results, nil
}

// Commission splits a bid amount into platform commission and seller
// proceeds using the current commission setting.
func (e *Engine) Commission(ctx context.Context, bidAmount decimal.Decimal) (*CommissionBreakdown, error) {
	snap, err := e.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	b := commission(bidAmount, snap.CommissionPercentage)
	return &b, nil
}

func commission(amount, pct decimal.Decimal) CommissionBreakdown {
	commissionAmount := amount.Mul(pct).Div(oneHundred).Round(2)
	return CommissionBreakdown{
		CommissionAmount: commissionAmount,
		SellerAmount:     amount.Sub(commissionAmount),
	}
}

// UpdateCommissionPercentage changes the platform commission. Admin-tier
// roles only; the value invariant lives in the settings provider.
func (e *Engine) UpdateCommissionPercentage(ctx context.Context, actor Actor, newPct decimal.Decimal) error {
	if !config.IsAdminTier(actor.Role) {
		return ErrUnauthorized
	}

	if err := e.settings.SetCommission(ctx, actor.UserID, actor.Role, newPct); err != nil {
		if errors.Is(err, settings.ErrCommissionOutOfRange) {
			return ErrInvalidRange
		}
		return err
	}
	return nil
}

func (e *Engine) entry(actor Actor, itemID uuid.UUID, action model.AuditAction, now time.Time, oldValue, newValue string, data map[string]string) *model.AuditLogEntry {
	return &model.AuditLogEntry{
		Timestamp:      now,
		UserID:         actor.UserID,
		UserRole:       actor.Role,
		IPAddress:      actor.IPAddress,
		UserAgent:      actor.UserAgent,
		Action:         action,
		ItemID:         itemID,
		OldValue:       oldValue,
		NewValue:       newValue,
		AdditionalData: data,
	}
}

// recordRejection writes the only trace a rejected bid leaves. It runs
// outside the rolled-back transaction and never fails the request.
func (e *Engine) recordRejection(ctx context.Context, actor Actor, itemID uuid.UUID, amount decimal.Decimal, now time.Time, cause error) {
	e.recorder.Record(ctx, *e.entry(actor, itemID, model.AuditBidRejected, now,
		"", amount.StringFixed(2),
		map[string]string{"reason": cause.Error()},
	))
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.Warnw("[EVENTS] failed to publish", "type", ev.Type, "item_id", ev.ItemID, "error", err)
	}
}
