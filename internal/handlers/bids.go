package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/engine"
	"github.com/sellio/bidcore/internal/ledger"
	"github.com/sellio/bidcore/internal/model"
	pkgvalidator "github.com/sellio/bidcore/pkg/validator"
	"github.com/shopspring/decimal"
)

const itemParamKey string = "itemId"

var validate = pkgvalidator.GetValidator()

type BidHandler struct {
	engine *engine.Engine
	ledger ledger.Servicer
}

func NewBidHandler(e *engine.Engine, l ledger.Servicer) (*BidHandler, error) {
	return &BidHandler{
		engine: e,
		ledger: l,
	}, nil
}

// PlaceBid godoc
//
//	@Summary		Place a Bid on an Item
//	@Description	Validate and place a bid on a specific item by the given item ID
//	@Tags			Bids
//	@Accept			json
//	@Produce		json
//	@Param			itemId	path		string			true	"Item ID"
//	@Param			bid		body		model.PlaceBidRequest	true	"Bid details"
//	@Success		201		{object}	map[string]any
//	@Failure		400		{object}	map[string]any
//	@Failure		401		{object}	map[string]any
//	@Failure		422		{object}	map[string]any
//	@Router			/items/{itemId}/bids [post]
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	var req model.PlaceBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondErrorJSON(w, r, http.StatusBadRequest, ErrInvalidJson.Error(), "invalid json format", nil)
		return
	}

	if err := validate.Struct(req); err != nil {
		var details []model.ErrorDetails
		if validErrs, ok := err.(validator.ValidationErrors); ok {
			for _, vErr := range validErrs {
				details = append(details, model.ErrorDetails{
					Field: vErr.Field(),
					Issue: fmt.Sprintf("failed on tag '%s' with param '%s'", vErr.Tag(), vErr.Param()),
				})
			}
		}
		RespondErrorJSON(w, r, http.StatusBadRequest, ErrInvalidRequest.Error(), "Input validation failed", details)
		return
	}

	claims := GetUserClaims(r.Context())
	if claims == nil {
		RespondErrorJSON(w, r, http.StatusUnauthorized, ErrAuthFailed.Error(), "user claims not found in context", nil)
		return
	}

	amount := decimal.NewFromFloat(req.Amount)
	var downPct *decimal.Decimal
	if req.DownPaymentPercentage != nil {
		dp := decimal.NewFromFloat(*req.DownPaymentPercentage)
		downPct = &dp
	}

	result, err := h.engine.PlaceBid(r.Context(), actorFromRequest(r, claims), itemID, amount, downPct)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	RespondSuccessJSON(w, r, http.StatusCreated, result.Message, result)
}

// BidHistory godoc
//
//	@Summary		Get Bid History for an Item
//	@Description	Retrieve bids for an item, highest amount first
//	@Tags			Bids
//	@Produce		json
//	@Param			itemId	path		string	true	"Item ID"
//	@Param			limit	query		int		false	"Number of bids to return"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	map[string]any
//	@Router			/items/{itemId}/bids [get]
func (h *BidHandler) BidHistory(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	var limit int = 50
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		fmt.Sscanf(limitParam, "%d", &limit)
	}

	bids, err := h.ledger.BidHistory(r.Context(), itemID, limit)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	if bids == nil {
		bids = []model.Bid{}
	}

	resp := map[string]any{
		"bids": bids,
	}
	RespondSuccessJSON(w, r, http.StatusOK, "Bid history fetched successfully", resp)
}

// HighestBid godoc
//
//	@Summary		Get Current Highest Bid
//	@Description	Retrieve the current leading bid and the minimum acceptable next bid
//	@Tags			Bids
//	@Produce		json
//	@Param			itemId	path		string	true	"Item ID"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	map[string]any
//	@Router			/items/{itemId}/highest-bid [get]
func (h *BidHandler) HighestBid(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	// Rejects unknown items before the ledger read.
	minimum, err := h.engine.MinimumBid(r.Context(), itemID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	leader, err := h.ledger.CurrentHighestBid(r.Context(), itemID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	resp := map[string]any{
		"highest_bid": leader,
		"minimum_bid": minimum.StringFixed(2),
	}
	RespondSuccessJSON(w, r, http.StatusOK, "Highest bid fetched successfully", resp)
}

// MyBids godoc
//
//	@Summary		Get Current User's Bids
//	@Description	Retrieve the bids placed by the authenticated user, optionally filtered by status
//	@Tags			Bids
//	@Produce		json
//	@Param			status	query		string	false	"Bid status filter"
//	@Success		200		{object}	map[string]any
//	@Failure		401		{object}	map[string]any
//	@Router			/bids/mine [get]
func (h *BidHandler) MyBids(w http.ResponseWriter, r *http.Request) {
	claims := GetUserClaims(r.Context())
	if claims == nil {
		RespondErrorJSON(w, r, http.StatusUnauthorized, ErrAuthFailed.Error(), "user claims not found in context", nil)
		return
	}

	var status *model.BidStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := model.BidStatus(raw)
		status = &s
	}

	bids, err := h.ledger.UserBids(r.Context(), claims.UserID, status)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	if bids == nil {
		bids = []model.Bid{}
	}

	resp := map[string]any{
		"bids": bids,
	}
	RespondSuccessJSON(w, r, http.StatusOK, "Bids fetched successfully", resp)
}

func itemIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, itemParamKey)
	if raw == "" {
		RespondErrorJSON(w, r, http.StatusBadRequest, ErrMissingParam.Error(), "Item ID is required", nil)
		return uuid.Nil, false
	}

	itemID, err := uuid.Parse(raw)
	if err != nil {
		RespondErrorJSON(w, r, http.StatusBadRequest, ErrInvalidRequest.Error(), "Item ID must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return itemID, true
}
