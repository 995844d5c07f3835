package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/model"
	"github.com/sellio/bidcore/internal/store"
	"github.com/sellio/bidcore/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInTx_RollsBackOnError(t *testing.T) {
	st := memory.New()
	itemID := uuid.New()
	st.PutItem(model.Item{ID: itemID, Status: model.ItemStatusActiveBidding})

	boom := errors.New("boom")
	err := st.InTx(context.Background(), func(tx store.Tx) error {
		item, err := tx.ItemForUpdate(context.Background(), itemID)
		require.NoError(t, err)

		item.Status = model.ItemStatusEnded
		require.NoError(t, tx.UpdateItem(context.Background(), item))
		require.NoError(t, tx.InsertBid(context.Background(), &model.Bid{ItemID: itemID, Amount: decimal.NewFromInt(60)}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing from the failed transaction is visible.
	item, err := st.GetItem(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusActiveBidding, item.Status)

	bids, err := st.BidHistory(context.Background(), itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, bids)
}

func TestInTx_CommitsOnSuccess(t *testing.T) {
	st := memory.New()
	itemID := uuid.New()
	st.PutItem(model.Item{ID: itemID, Status: model.ItemStatusActiveBidding})

	err := st.InTx(context.Background(), func(tx store.Tx) error {
		return tx.InsertBid(context.Background(), &model.Bid{
			ItemID: itemID,
			Amount: decimal.NewFromInt(75),
			Status: model.BidStatusWinning,
		})
	})
	require.NoError(t, err)

	bids, err := st.BidHistory(context.Background(), itemID, 0)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, "75", bids[0].Amount.String())
}

func TestCurrentHighestBid_TieBreaksOnEarliestBid(t *testing.T) {
	st := memory.New()
	itemID := uuid.New()
	earlier := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := uuid.New()
	st.PutBid(model.Bid{ID: first, ItemID: itemID, Amount: decimal.NewFromInt(100), Status: model.BidStatusWinning, CreatedAt: earlier})
	st.PutBid(model.Bid{ItemID: itemID, Amount: decimal.NewFromInt(100), Status: model.BidStatusActive, CreatedAt: earlier.Add(time.Second)})

	bid, err := st.CurrentHighestBid(context.Background(), itemID)
	require.NoError(t, err)
	require.NotNil(t, bid)
	assert.Equal(t, first, bid.ID)
}

func TestCurrentHighestBid_IgnoresOutbidAndRejected(t *testing.T) {
	st := memory.New()
	itemID := uuid.New()

	st.PutBid(model.Bid{ItemID: itemID, Amount: decimal.NewFromInt(500), Status: model.BidStatusOutbid})
	st.PutBid(model.Bid{ItemID: itemID, Amount: decimal.NewFromInt(400), Status: model.BidStatusRejected})
	winning := uuid.New()
	st.PutBid(model.Bid{ID: winning, ItemID: itemID, Amount: decimal.NewFromInt(300), Status: model.BidStatusWinning})

	bid, err := st.CurrentHighestBid(context.Background(), itemID)
	require.NoError(t, err)
	require.NotNil(t, bid)
	assert.Equal(t, winning, bid.ID)

	// No standing bids at all yields nil without an error.
	empty, err := st.CurrentHighestBid(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestExpiredItems(t *testing.T) {
	st := memory.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	expired := uuid.New()
	st.PutItem(model.Item{ID: expired, Status: model.ItemStatusActiveBidding, AuctionEndTime: &past})
	st.PutItem(model.Item{ID: uuid.New(), Status: model.ItemStatusActiveBidding, AuctionEndTime: &future})
	st.PutItem(model.Item{ID: uuid.New(), Status: model.ItemStatusEnded, AuctionEndTime: &past})

	items, err := st.ExpiredItems(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, expired, items[0].ID)
}
