// Package postgres implements store.Store on pgx. Item rows are locked
// with SELECT ... FOR UPDATE inside each engine transaction, and the
// audit chain head lives in a dedicated single-row table so appends are
// read-modify-write under the same lock across all engine instances.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sellio/bidcore/internal/model"
	"github.com/sellio/bidcore/internal/store"
	"github.com/sellio/bidcore/pkg/logger"
	"github.com/shopspring/decimal"
)

type Store struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

func New(ctx context.Context, dsn string, log *logger.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 25
	cfg.MaxConnLifetime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("[DB] connection established...")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	if err := fn(&tx{tx: pgtx}); err != nil {
		_ = pgtx.Rollback(ctx)
		return err
	}
	return pgtx.Commit(ctx)
}

const itemColumns = `
	id, seller_id, title, reserved_amount::text, status, auction_end_time,
	auto_extend_enabled, extension_count, buy_now_price::text,
	min_down_payment_percentage::text, created_at, updated_at`

func scanItem(row pgx.Row) (*model.Item, error) {
	var (
		it        model.Item
		endTime   *time.Time
		reserved  string
		buyNow    *string
		minDownPc string
	)
	err := row.Scan(
		&it.ID, &it.SellerID, &it.Title, &reserved, &it.Status, &endTime,
		&it.AutoExtendEnabled, &it.ExtensionCount, &buyNow,
		&minDownPc, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrItemNotFound
		}
		return nil, err
	}

	if it.ReservedAmount, err = decimal.NewFromString(reserved); err != nil {
		return nil, err
	}
	if it.MinDownPaymentPercentage, err = decimal.NewFromString(minDownPc); err != nil {
		return nil, err
	}
	if buyNow != nil {
		price, err := decimal.NewFromString(*buyNow)
		if err != nil {
			return nil, err
		}
		it.BuyNowPrice = &price
	}
	it.AuctionEndTime = endTime
	return &it, nil
}

const bidColumns = `
	id, item_id, bidder_id, amount::text, down_payment_percentage::text,
	status, increment_applied::text, increment_type, is_buy_now,
	triggered_extension, down_payment_warning, created_at`

func scanBid(row pgx.Row) (*model.Bid, error) {
	var (
		b         model.Bid
		amount    string
		downPct   string
		increment string
	)
	err := row.Scan(
		&b.ID, &b.ItemID, &b.BidderID, &amount, &downPct, &b.Status,
		&increment, &b.IncrementType, &b.IsBuyNow, &b.TriggeredExtension,
		&b.DownPaymentWarning, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrBidNotFound
		}
		return nil, err
	}

	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if b.DownPaymentPercentage, err = decimal.NewFromString(downPct); err != nil {
		return nil, err
	}
	if b.IncrementApplied, err = decimal.NewFromString(increment); err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBids(rows pgx.Rows) ([]model.Bid, error) {
	defer rows.Close()

	var out []model.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// currentHighestBidQuery returns the single non-losing leader: highest
// amount, earliest bid wins ties.
const currentHighestBidQuery = `
	SELECT ` + bidColumns + `
	FROM bids
	WHERE item_id = $1 AND status NOT IN ('outbid', 'rejected')
	ORDER BY amount DESC, created_at ASC
	LIMIT 1;`

func (s *Store) GetItem(ctx context.Context, itemID uuid.UUID) (*model.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items WHERE id = $1;`
	return scanItem(s.pool.QueryRow(ctx, q, itemID))
}

func (s *Store) ExpiredItems(ctx context.Context, now time.Time) ([]model.Item, error) {
	const q = `
		SELECT ` + itemColumns + `
		FROM items
		WHERE status = 'active_bidding'
		  AND auction_end_time IS NOT NULL
		  AND auction_end_time <= $1
		ORDER BY auction_end_time ASC;`

	rows, err := s.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (s *Store) CurrentHighestBid(ctx context.Context, itemID uuid.UUID) (*model.Bid, error) {
	b, err := scanBid(s.pool.QueryRow(ctx, currentHighestBidQuery, itemID))
	if errors.Is(err, store.ErrBidNotFound) {
		return nil, nil
	}
	return b, err
}

func (s *Store) BidHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]model.Bid, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE item_id = $1
		ORDER BY amount DESC, created_at DESC
		LIMIT $2;`

	rows, err := s.pool.Query(ctx, q, itemID, limit)
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}

func (s *Store) UserBids(ctx context.Context, userID uuid.UUID, status *model.BidStatus) ([]model.Bid, error) {
	q := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE bidder_id = $1
		ORDER BY created_at DESC;`
	args := []any{userID}

	if status != nil {
		q = `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE bidder_id = $1 AND status = $2
		ORDER BY created_at DESC;`
		args = append(args, *status)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectBids(rows)
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	return getSetting(ctx, s.pool, key)
}

const auditColumns = `
	id, uuid, previous_log_hash, current_hash, timestamp, user_id,
	user_role, ip_address, user_agent, action_type, item_id, old_value,
	new_value, additional_data, verification_status`

func (s *Store) AuditEntries(ctx context.Context, fromID int64) ([]model.AuditLogEntry, error) {
	const q = `
		SELECT ` + auditColumns + `
		FROM secure_bidding_logs
		WHERE id >= $1
		ORDER BY id ASC;`

	rows, err := s.pool.Query(ctx, q, fromID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditLogEntry
	for rows.Next() {
		var (
			e    model.AuditLogEntry
			data []byte
		)
		err := rows.Scan(
			&e.ID, &e.UUID, &e.PreviousLogHash, &e.CurrentHash, &e.Timestamp,
			&e.UserID, &e.UserRole, &e.IPAddress, &e.UserAgent, &e.Action,
			&e.ItemID, &e.OldValue, &e.NewValue, &data, &e.VerificationStatus,
		)
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.AdditionalData); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) MarkAuditTampered(ctx context.Context, ids []int64) error {
	const q = `
		UPDATE secure_bidding_logs
		SET verification_status = 'tampered'
		WHERE id = ANY($1);`

	_, err := s.pool.Exec(ctx, q, ids)
	return err
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) ItemForUpdate(ctx context.Context, itemID uuid.UUID) (*model.Item, error) {
	const q = `SELECT ` + itemColumns + ` FROM items WHERE id = $1 FOR UPDATE;`
	return scanItem(t.tx.QueryRow(ctx, q, itemID))
}

func (t *tx) UpdateItem(ctx context.Context, item *model.Item) error {
	const q = `
		UPDATE items
		SET reserved_amount = $2::numeric,
		    status = $3,
		    auction_end_time = $4,
		    extension_count = $5,
		    updated_at = NOW()
		WHERE id = $1;`

	tag, err := t.tx.Exec(ctx, q,
		item.ID, item.ReservedAmount.String(), item.Status,
		item.AuctionEndTime, item.ExtensionCount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrItemNotFound
	}
	return nil
}

func (t *tx) CurrentHighestBid(ctx context.Context, itemID uuid.UUID) (*model.Bid, error) {
	b, err := scanBid(t.tx.QueryRow(ctx, currentHighestBidQuery, itemID))
	if errors.Is(err, store.ErrBidNotFound) {
		return nil, nil
	}
	return b, err
}

func (t *tx) InsertBid(ctx context.Context, bid *model.Bid) error {
	if bid.ID == uuid.Nil {
		bid.ID = uuid.New()
	}
	const q = `
		INSERT INTO bids (
			id, item_id, bidder_id, amount, down_payment_percentage, status,
			increment_applied, increment_type, is_buy_now,
			triggered_extension, down_payment_warning, created_at
		)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7::numeric, $8, $9, $10, $11, $12);`

	_, err := t.tx.Exec(ctx, q,
		bid.ID, bid.ItemID, bid.BidderID, bid.Amount.String(),
		bid.DownPaymentPercentage.String(), bid.Status,
		bid.IncrementApplied.String(), bid.IncrementType, bid.IsBuyNow,
		bid.TriggeredExtension, bid.DownPaymentWarning, bid.CreatedAt,
	)
	return err
}

func (t *tx) UpdateBidStatus(ctx context.Context, bidID uuid.UUID, status model.BidStatus) error {
	const q = `UPDATE bids SET status = $2 WHERE id = $1;`

	tag, err := t.tx.Exec(ctx, q, bidID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrBidNotFound
	}
	return nil
}

func (t *tx) GetSetting(ctx context.Context, key string) (string, bool, error) {
	return getSetting(ctx, t.tx, key)
}

func (t *tx) SetSetting(ctx context.Context, key, value string, updatedBy uuid.UUID) error {
	const q = `
		INSERT INTO system_settings (setting_key, setting_value, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (setting_key)
		DO UPDATE SET setting_value = $2, updated_by = $3, updated_at = NOW();`

	_, err := t.tx.Exec(ctx, q, key, value, updatedBy)
	return err
}

// LastAuditHashForUpdate locks the single chain-head row until the
// surrounding transaction commits, which is what serializes audit appends
// across concurrent engine instances.
func (t *tx) LastAuditHashForUpdate(ctx context.Context) (string, error) {
	const q = `SELECT last_hash FROM audit_chain_head WHERE id = 1 FOR UPDATE;`

	var hash string
	if err := t.tx.QueryRow(ctx, q).Scan(&hash); err != nil {
		return "", err
	}
	return hash, nil
}

func (t *tx) InsertAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error {
	data, err := json.Marshal(entry.AdditionalData)
	if err != nil {
		return err
	}
	if entry.AdditionalData == nil {
		data = nil
	}

	const q = `
		INSERT INTO secure_bidding_logs (
			uuid, previous_log_hash, current_hash, timestamp, user_id,
			user_role, ip_address, user_agent, action_type, item_id,
			old_value, new_value, additional_data, verification_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id;`

	err = t.tx.QueryRow(ctx, q,
		entry.UUID, entry.PreviousLogHash, entry.CurrentHash, entry.Timestamp,
		entry.UserID, entry.UserRole, entry.IPAddress, entry.UserAgent,
		entry.Action, entry.ItemID, entry.OldValue, entry.NewValue,
		data, entry.VerificationStatus,
	).Scan(&entry.ID)
	if err != nil {
		return err
	}

	const updateHead = `UPDATE audit_chain_head SET last_hash = $1, updated_at = NOW() WHERE id = 1;`
	_, err = t.tx.Exec(ctx, updateHead, entry.CurrentHash)
	return err
}

type settingQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getSetting(ctx context.Context, q settingQuerier, key string) (string, bool, error) {
	const query = `SELECT setting_value FROM system_settings WHERE setting_key = $1;`

	var value string
	err := q.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
