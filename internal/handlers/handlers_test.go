package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/audit"
	"github.com/sellio/bidcore/internal/engine"
	"github.com/sellio/bidcore/internal/events"
	"github.com/sellio/bidcore/internal/handlers"
	"github.com/sellio/bidcore/internal/ledger"
	"github.com/sellio/bidcore/internal/model"
	"github.com/sellio/bidcore/internal/settings"
	"github.com/sellio/bidcore/internal/store/memory"
	"github.com/sellio/bidcore/pkg/config"
	"github.com/sellio/bidcore/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handlerEnv struct {
	store  *memory.Store
	router *chi.Mux
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	st := memory.New()
	log := logger.NewNop()
	sp := settings.NewProvider(st, nil, log)
	rec := audit.NewRecorder(st, log)
	eng := engine.NewEngine(st, sp, rec, events.NoopPublisher{}, log)

	bids, err := handlers.NewBidHandler(eng, ledger.NewService(st))
	require.NoError(t, err)

	r := chi.NewMux()
	r.Get("/items/{itemId}/bids", bids.BidHistory)
	r.Get("/items/{itemId}/highest-bid", bids.HighestBid)
	r.Post("/items/{itemId}/bids", bids.PlaceBid)
	return &handlerEnv{store: st, router: r}
}

func (env *handlerEnv) addItem(t *testing.T) model.Item {
	t.Helper()

	endTime := time.Now().UTC().Add(time.Hour)
	item := model.Item{
		ID:             uuid.New(),
		SellerID:       uuid.New(),
		Title:          "walnut desk",
		ReservedAmount: decimal.NewFromInt(50),
		Status:         model.ItemStatusActiveBidding,
		AuctionEndTime: &endTime,
	}
	env.store.PutItem(item)
	return item
}

func withClaims(req *http.Request, userID uuid.UUID, role string) *http.Request {
	claims := &config.UserClaims{UserID: userID, Role: role}
	return req.WithContext(context.WithValue(req.Context(), config.UserClaimKey, claims))
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) model.APIResponse[map[string]any] {
	t.Helper()

	var resp model.APIResponse[map[string]any]
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestPlaceBidHandler_Success(t *testing.T) {
	env := newHandlerEnv(t)
	item := env.addItem(t)

	req := httptest.NewRequest(http.MethodPost, "/items/"+item.ID.String()+"/bids",
		strings.NewReader(`{"amount": 75}`))
	req = withClaims(req, uuid.New(), config.RoleUser)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decodeEnvelope(t, rr)
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.Data["bid_id"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestPlaceBidHandler_MissingClaims(t *testing.T) {
	env := newHandlerEnv(t)
	item := env.addItem(t)

	req := httptest.NewRequest(http.MethodPost, "/items/"+item.ID.String()+"/bids",
		strings.NewReader(`{"amount": 75}`))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	resp := decodeEnvelope(t, rr)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "AUTH_FAILED", resp.Error.Code)
}

func TestPlaceBidHandler_ValidationFailure(t *testing.T) {
	env := newHandlerEnv(t)
	item := env.addItem(t)

	// Zero amount fails the DTO validation before the engine runs.
	req := httptest.NewRequest(http.MethodPost, "/items/"+item.ID.String()+"/bids",
		strings.NewReader(`{"amount": 0}`))
	req = withClaims(req, uuid.New(), config.RoleUser)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeEnvelope(t, rr)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	require.NotEmpty(t, resp.Error.Details)
	assert.Equal(t, "Amount", resp.Error.Details[0].Field)
}

func TestPlaceBidHandler_EngineTaxonomyMapping(t *testing.T) {
	env := newHandlerEnv(t)
	item := env.addItem(t)
	ctx := context.Background()

	// Standing leader at 60 makes the minimum 61.
	env.store.PutBid(model.Bid{
		ItemID:    item.ID,
		BidderID:  uuid.New(),
		Amount:    decimal.NewFromInt(60),
		Status:    model.BidStatusActive,
		CreatedAt: time.Now().UTC(),
	})

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{name: "bid too low", body: `{"amount": 60.5}`, wantCode: http.StatusUnprocessableEntity, wantErr: "BID_TOO_LOW"},
		{name: "below reserve", body: `{"amount": 40}`, wantCode: http.StatusUnprocessableEntity, wantErr: "BELOW_RESERVE"},
		{name: "down payment out of range", body: `{"amount": 70, "down_payment_percentage": 5}`, wantCode: http.StatusUnprocessableEntity, wantErr: "DOWN_PAYMENT_OUT_OF_RANGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/items/"+item.ID.String()+"/bids",
				strings.NewReader(tt.body))
			req = withClaims(req, uuid.New(), config.RoleUser)
			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, req)

			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			resp := decodeEnvelope(t, rr)
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}

	// Sanity: nothing above persisted a bid.
	bids, err := env.store.BidHistory(ctx, item.ID, 0)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestHighestBidHandler(t *testing.T) {
	env := newHandlerEnv(t)
	item := env.addItem(t)

	env.store.PutBid(model.Bid{
		ItemID:    item.ID,
		BidderID:  uuid.New(),
		Amount:    decimal.NewFromInt(80),
		Status:    model.BidStatusActive,
		CreatedAt: time.Now().UTC(),
	})

	req := httptest.NewRequest(http.MethodGet, "/items/"+item.ID.String()+"/highest-bid", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	resp := decodeEnvelope(t, rr)
	assert.Equal(t, "81.00", resp.Data["minimum_bid"])
	require.NotNil(t, resp.Data["highest_bid"])
}

func TestHighestBidHandler_UnknownItem(t *testing.T) {
	env := newHandlerEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/items/"+uuid.NewString()+"/highest-bid", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())
	resp := decodeEnvelope(t, rr)
	assert.Equal(t, "ITEM_NOT_FOUND", resp.Error.Code)
}

func TestBidHistoryHandler_BadItemID(t *testing.T) {
	env := newHandlerEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/items/not-a-uuid/bids", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeEnvelope(t, rr)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
}
