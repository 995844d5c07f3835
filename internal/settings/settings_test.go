package settings_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/model"
	"github.com/sellio/bidcore/internal/settings"
	"github.com/sellio/bidcore/internal/store/memory"
	"github.com/sellio/bidcore/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenEmpty(t *testing.T) {
	st := memory.New()
	p := settings.NewProvider(st, nil, logger.NewNop())

	snap, err := p.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "10", snap.CommissionPercentage.String())
	assert.Equal(t, model.IncrementTypeFixed, snap.BidIncrementType)
	assert.Equal(t, "1", snap.BidIncrementFixed.String())
	assert.Equal(t, "20", snap.MinDownPayment.String())
	assert.Equal(t, "100", snap.MaxDownPayment.String())
	assert.Equal(t, "50", snap.DefaultDownPayment.String())
	assert.Equal(t, 2, snap.AuctionExtensionMinutes)
}

func TestLoad_MalformedRowsFallBack(t *testing.T) {
	st := memory.New()
	st.PutSetting(settings.KeyCommissionPercentage, "not-a-number")
	st.PutSetting(settings.KeyAuctionExtensionMinutes, "-3")
	st.PutSetting(settings.KeyBidIncrementType, "bogus")
	st.PutSetting(settings.KeyBidIncrementFixed, "2.50")

	p := settings.NewProvider(st, nil, logger.NewNop())
	snap, err := p.Load(context.Background())
	require.NoError(t, err)

	// Malformed rows degrade to documented defaults, valid rows apply.
	assert.Equal(t, "10", snap.CommissionPercentage.String())
	assert.Equal(t, 2, snap.AuctionExtensionMinutes)
	assert.Equal(t, model.IncrementTypeFixed, snap.BidIncrementType)
	assert.Equal(t, "2.5", snap.BidIncrementFixed.String())
}

func TestLoad_ConfiguredValues(t *testing.T) {
	st := memory.New()
	st.PutSetting(settings.KeyCommissionPercentage, "12.5")
	st.PutSetting(settings.KeyBidIncrementType, "percentage")
	st.PutSetting(settings.KeyBidIncrementPercentage, "7")
	st.PutSetting(settings.KeyAuctionExtensionMinutes, "5")

	p := settings.NewProvider(st, nil, logger.NewNop())
	snap, err := p.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "12.5", snap.CommissionPercentage.String())
	assert.Equal(t, model.IncrementTypePercentage, snap.BidIncrementType)
	assert.Equal(t, "7", snap.BidIncrementPercentage.String())
	assert.Equal(t, 5, snap.AuctionExtensionMinutes)
}

func TestSetCommission(t *testing.T) {
	st := memory.New()
	p := settings.NewProvider(st, nil, logger.NewNop())
	ctx := context.Background()
	admin := uuid.New()

	tests := []struct {
		name    string
		value   decimal.Decimal
		wantErr error
	}{
		{name: "negative", value: decimal.NewFromInt(-1), wantErr: settings.ErrCommissionOutOfRange},
		{name: "above fifty", value: decimal.NewFromFloat(50.01), wantErr: settings.ErrCommissionOutOfRange},
		{name: "zero is allowed", value: decimal.Zero},
		{name: "fifty is allowed", value: decimal.NewFromInt(50)},
		{name: "normal value", value: decimal.NewFromInt(15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.SetCommission(ctx, admin, "admin", tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			snap, err := p.Load(ctx)
			require.NoError(t, err)
			assert.True(t, snap.CommissionPercentage.Equal(tt.value))
		})
	}

	// Every successful write leaves an audit trail.
	entries, err := st.AuditEntries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, model.AuditCommissionChanged, e.Action)
		assert.Equal(t, admin, e.UserID)
	}
}
