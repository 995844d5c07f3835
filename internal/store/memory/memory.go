// Package memory provides an in-process Store with the same transactional
// semantics as the postgres store: every InTx runs against a cloned state
// that only replaces the committed state when the function succeeds, and
// transactions are fully serialized, so item locking and global audit
// ordering hold trivially. Backs unit tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/model"
	"github.com/sellio/bidcore/internal/store"
)

type state struct {
	items         map[uuid.UUID]model.Item
	bids          []model.Bid
	settings      map[string]model.SystemSetting
	audit         []model.AuditLogEntry
	lastAuditHash string
	nextAuditID   int64
}

func (s *state) clone() *state {
	c := &state{
		items:         make(map[uuid.UUID]model.Item, len(s.items)),
		bids:          make([]model.Bid, len(s.bids)),
		settings:      make(map[string]model.SystemSetting, len(s.settings)),
		audit:         make([]model.AuditLogEntry, len(s.audit)),
		lastAuditHash: s.lastAuditHash,
		nextAuditID:   s.nextAuditID,
	}
	for id, it := range s.items {
		c.items[id] = copyItem(it)
	}
	copy(c.bids, s.bids)
	for k, v := range s.settings {
		c.settings[k] = v
	}
	for i, e := range s.audit {
		c.audit[i] = copyEntry(e)
	}
	return c
}

func copyItem(it model.Item) model.Item {
	if it.AuctionEndTime != nil {
		t := *it.AuctionEndTime
		it.AuctionEndTime = &t
	}
	if it.BuyNowPrice != nil {
		p := *it.BuyNowPrice
		it.BuyNowPrice = &p
	}
	return it
}

func copyEntry(e model.AuditLogEntry) model.AuditLogEntry {
	if e.AdditionalData != nil {
		data := make(map[string]string, len(e.AdditionalData))
		for k, v := range e.AdditionalData {
			data[k] = v
		}
		e.AdditionalData = data
	}
	return e
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{
		st: &state{
			items:       make(map[uuid.UUID]model.Item),
			settings:    make(map[string]model.SystemSetting),
			nextAuditID: 1,
		},
	}
}

// PutItem seeds or replaces an item. Test and fixture helper, not part of
// the store.Store contract.
func (s *Store) PutItem(item model.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.items[item.ID] = copyItem(item)
}

// PutSetting seeds a raw setting row.
func (s *Store) PutSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.settings[key] = model.SystemSetting{SettingKey: key, SettingValue: value, UpdatedAt: time.Now().UTC()}
}

// PutBid seeds a bid row directly, bypassing engine validation. Test and
// fixture helper.
func (s *Store) PutBid(bid model.Bid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bid.ID == uuid.Nil {
		bid.ID = uuid.New()
	}
	s.st.bids = append(s.st.bids, bid)
}

// TamperAudit overwrites one stored field of an audit entry in place,
// bypassing the chain. Only integrity tests use this.
func (s *Store) TamperAudit(id int64, mutate func(e *model.AuditLogEntry)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.audit {
		if s.st.audit[i].ID == id {
			mutate(&s.st.audit[i])
			return
		}
	}
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) GetItem(ctx context.Context, itemID uuid.UUID) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getItem(s.st, itemID)
}

func (s *Store) ExpiredItems(ctx context.Context, now time.Time) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Item
	for _, it := range s.st.items {
		if it.Status == model.ItemStatusActiveBidding && it.AuctionEndTime != nil && !it.AuctionEndTime.After(now) {
			out = append(out, copyItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuctionEndTime.Before(*out[j].AuctionEndTime) })
	return out, nil
}

func (s *Store) CurrentHighestBid(ctx context.Context, itemID uuid.UUID) (*model.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return highestBid(s.st, itemID)
}

func (s *Store) BidHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]model.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Bid
	for _, b := range s.st.bids {
		if b.ItemID == itemID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UserBids(ctx context.Context, userID uuid.UUID, status *model.BidStatus) ([]model.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Bid
	for _, b := range s.st.bids {
		if b.BidderID != userID {
			continue
		}
		if status != nil && b.Status != *status {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.st.settings[key]
	if !ok {
		return "", false, nil
	}
	return row.SettingValue, true, nil
}

func (s *Store) AuditEntries(ctx context.Context, fromID int64) ([]model.AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.AuditLogEntry
	for _, e := range s.st.audit {
		if e.ID >= fromID {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) MarkAuditTampered(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tampered := make(map[int64]bool, len(ids))
	for _, id := range ids {
		tampered[id] = true
	}
	for i := range s.st.audit {
		if tampered[s.st.audit[i].ID] {
			s.st.audit[i].VerificationStatus = model.VerificationTampered
		}
	}
	return nil
}

func (s *Store) Close() {}

// tx operates on the cloned state owned by one InTx call.
type tx struct {
	st *state
}

func (t *tx) ItemForUpdate(ctx context.Context, itemID uuid.UUID) (*model.Item, error) {
	return getItem(t.st, itemID)
}

func (t *tx) UpdateItem(ctx context.Context, item *model.Item) error {
	if _, ok := t.st.items[item.ID]; !ok {
		return store.ErrItemNotFound
	}
	item.UpdatedAt = time.Now().UTC()
	t.st.items[item.ID] = copyItem(*item)
	return nil
}

func (t *tx) CurrentHighestBid(ctx context.Context, itemID uuid.UUID) (*model.Bid, error) {
	return highestBid(t.st, itemID)
}

func (t *tx) InsertBid(ctx context.Context, bid *model.Bid) error {
	if bid.ID == uuid.Nil {
		bid.ID = uuid.New()
	}
	t.st.bids = append(t.st.bids, *bid)
	return nil
}

func (t *tx) UpdateBidStatus(ctx context.Context, bidID uuid.UUID, status model.BidStatus) error {
	for i := range t.st.bids {
		if t.st.bids[i].ID == bidID {
			t.st.bids[i].Status = status
			return nil
		}
	}
	return store.ErrBidNotFound
}

func (t *tx) GetSetting(ctx context.Context, key string) (string, bool, error) {
	row, ok := t.st.settings[key]
	if !ok {
		return "", false, nil
	}
	return row.SettingValue, true, nil
}

func (t *tx) SetSetting(ctx context.Context, key, value string, updatedBy uuid.UUID) error {
	by := updatedBy
	t.st.settings[key] = model.SystemSetting{
		SettingKey:   key,
		SettingValue: value,
		UpdatedBy:    &by,
		UpdatedAt:    time.Now().UTC(),
	}
	return nil
}

func (t *tx) LastAuditHashForUpdate(ctx context.Context) (string, error) {
	return t.st.lastAuditHash, nil
}

func (t *tx) InsertAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error {
	entry.ID = t.st.nextAuditID
	t.st.nextAuditID++
	t.st.audit = append(t.st.audit, copyEntry(*entry))
	t.st.lastAuditHash = entry.CurrentHash
	return nil
}

func getItem(st *state, itemID uuid.UUID) (*model.Item, error) {
	it, ok := st.items[itemID]
	if !ok {
		return nil, store.ErrItemNotFound
	}
	c := copyItem(it)
	return &c, nil
}

func highestBid(st *state, itemID uuid.UUID) (*model.Bid, error) {
	var best *model.Bid
	for i := range st.bids {
		b := st.bids[i]
		if b.ItemID != itemID {
			continue
		}
		if b.Status == model.BidStatusOutbid || b.Status == model.BidStatusRejected {
			continue
		}
		if best == nil ||
			b.Amount.GreaterThan(best.Amount) ||
			(b.Amount.Equal(best.Amount) && b.CreatedAt.Before(best.CreatedAt)) {
			bc := b
			best = &bc
		}
	}
	return best, nil
}
