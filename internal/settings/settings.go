package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/audit"
	"github.com/sellio/bidcore/internal/cache"
	"github.com/sellio/bidcore/internal/model"
	"github.com/sellio/bidcore/internal/store"
	"github.com/sellio/bidcore/pkg/logger"
	"github.com/shopspring/decimal"
)

var ErrCommissionOutOfRange = errors.New("commission percentage must be between 0 and 50")

// Setting keys as stored in system_settings.
const (
	KeyCommissionPercentage    = "commission_percentage"
	KeyBidIncrementType        = "bid_increment_type"
	KeyBidIncrementFixed       = "bid_increment_fixed"
	KeyBidIncrementPercentage  = "bid_increment_percentage"
	KeyMinDownPayment          = "min_down_payment"
	KeyMaxDownPayment          = "max_down_payment"
	KeyDefaultDownPayment      = "default_down_payment"
	KeyAuctionExtensionMinutes = "auction_extension_minutes"
)

const snapshotCacheKey = "settings:snapshot"
const snapshotCacheTTL = 30 * time.Second

// Snapshot is a typed view of all auction settings, loaded once per
// operation. Missing or malformed rows fall back to these defaults, they
// never fail bid validation.
type Snapshot struct {
	CommissionPercentage    decimal.Decimal     `json:"commission_percentage"`
	BidIncrementType        model.IncrementType `json:"bid_increment_type"`
	BidIncrementFixed       decimal.Decimal     `json:"bid_increment_fixed"`
	BidIncrementPercentage  decimal.Decimal     `json:"bid_increment_percentage"`
	MinDownPayment          decimal.Decimal     `json:"min_down_payment"`
	MaxDownPayment          decimal.Decimal     `json:"max_down_payment"`
	DefaultDownPayment      decimal.Decimal     `json:"default_down_payment"`
	AuctionExtensionMinutes int                 `json:"auction_extension_minutes"`
}

func Defaults() Snapshot {
	return Snapshot{
		CommissionPercentage:    decimal.NewFromInt(10),
		BidIncrementType:        model.IncrementTypeFixed,
		BidIncrementFixed:       decimal.NewFromInt(1),
		BidIncrementPercentage:  decimal.NewFromInt(5),
		MinDownPayment:          decimal.NewFromInt(20),
		MaxDownPayment:          decimal.NewFromInt(100),
		DefaultDownPayment:      decimal.NewFromInt(50),
		AuctionExtensionMinutes: 2,
	}
}

// Provider loads typed settings snapshots and handles the one write path,
// commission updates.
type Provider struct {
	store store.Store
	cache cache.Cacher
	log   *logger.Logger
}

// NewProvider wires a settings provider. cache may be nil, reads then
// always hit the store.
func NewProvider(s store.Store, c cache.Cacher, log *logger.Logger) *Provider {
	return &Provider{store: s, cache: c, log: log}
}

// Load reads a snapshot through the cache when one is configured.
func (p *Provider) Load(ctx context.Context) (Snapshot, error) {
	if p.cache != nil {
		if raw, ok, err := p.cache.Get(ctx, snapshotCacheKey); err == nil && ok {
			var snap Snapshot
			if err := json.Unmarshal([]byte(raw), &snap); err == nil {
				return snap, nil
			}
		}
	}

	snap, err := LoadFrom(ctx, p.store)
	if err != nil {
		return snap, err
	}

	if p.cache != nil {
		if raw, err := json.Marshal(snap); err == nil {
			if err := p.cache.Set(ctx, snapshotCacheKey, string(raw), snapshotCacheTTL); err != nil {
				p.log.Warnw("[SETTINGS] failed to cache snapshot", "error", err)
			}
		}
	}
	return snap, nil
}

// LoadFrom builds a snapshot from any setting getter. Mutating engine
// operations pass their transaction so the snapshot is consistent with
// the rest of the operation's reads.
func LoadFrom(ctx context.Context, g store.SettingGetter) (Snapshot, error) {
	snap := Defaults()

	var firstErr error
	readDecimal := func(key string, dst *decimal.Decimal) {
		raw, ok, err := g.GetSetting(ctx, key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		if !ok {
			return
		}
		if v, err := decimal.NewFromString(raw); err == nil {
			*dst = v
		}
	}

	readDecimal(KeyCommissionPercentage, &snap.CommissionPercentage)
	readDecimal(KeyBidIncrementFixed, &snap.BidIncrementFixed)
	readDecimal(KeyBidIncrementPercentage, &snap.BidIncrementPercentage)
	readDecimal(KeyMinDownPayment, &snap.MinDownPayment)
	readDecimal(KeyMaxDownPayment, &snap.MaxDownPayment)
	readDecimal(KeyDefaultDownPayment, &snap.DefaultDownPayment)

	if raw, ok, err := g.GetSetting(ctx, KeyBidIncrementType); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else if ok && model.IncrementType(raw) == model.IncrementTypePercentage {
		snap.BidIncrementType = model.IncrementTypePercentage
	}

	if raw, ok, err := g.GetSetting(ctx, KeyAuctionExtensionMinutes); err != nil {
		if firstErr == nil {
			firstErr = err
		}
	} else if ok {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			snap.AuctionExtensionMinutes = v
		}
	}

	return snap, firstErr
}

// SetCommission persists a new commission percentage and audits the
// change atomically, then drops the cached snapshot. Role authorization
// is the engine's job; this enforces the [0,50] value invariant.
func (p *Provider) SetCommission(ctx context.Context, adminID uuid.UUID, adminRole string, value decimal.Decimal) error {
	if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(50)) {
		return ErrCommissionOutOfRange
	}

	err := p.store.InTx(ctx, func(tx store.Tx) error {
		old, ok, err := tx.GetSetting(ctx, KeyCommissionPercentage)
		if err != nil {
			return err
		}
		if !ok {
			old = Defaults().CommissionPercentage.String()
		}

		if err := tx.SetSetting(ctx, KeyCommissionPercentage, value.String(), adminID); err != nil {
			return err
		}

		_, err = audit.AppendTx(ctx, tx, &model.AuditLogEntry{
			Timestamp: time.Now().UTC(),
			UserID:    adminID,
			UserRole:  adminRole,
			Action:    model.AuditCommissionChanged,
			OldValue:  old,
			NewValue:  value.String(),
			AdditionalData: map[string]string{
				"updated_by": adminID.String(),
			},
		})
		return err
	})
	if err != nil {
		return err
	}

	if p.cache != nil {
		if err := p.cache.Delete(ctx, snapshotCacheKey); err != nil {
			p.log.Warnw("[SETTINGS] failed to invalidate snapshot cache", "error", err)
		}
	}
	return nil
}
