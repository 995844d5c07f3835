package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sellio/bidcore/internal/engine"
	"github.com/sellio/bidcore/internal/model"
	"github.com/shopspring/decimal"
)

// AuctionHandler is the seller-facing control surface: reserve updates
// and manual auction termination.
type AuctionHandler struct {
	engine *engine.Engine
}

func NewAuctionHandler(e *engine.Engine) (*AuctionHandler, error) {
	return &AuctionHandler{
		engine: e,
	}, nil
}

// UpdateReserve godoc
//
//	@Summary		Update Reserved Amount
//	@Description	Change the minimum acceptable sale price for an item owned by the caller
//	@Tags			Auctions
//	@Accept			json
//	@Produce		json
//	@Param			itemId	path		string	true	"Item ID"
//	@Param			reserve	body		model.UpdateReserveRequest	true	"New reserved amount"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	map[string]any
//	@Failure		403		{object}	map[string]any
//	@Router			/items/{itemId}/reserve [patch]
func (h *AuctionHandler) UpdateReserve(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	var req model.UpdateReserveRequest
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

	err := h.engine.UpdateReservedAmount(r.Context(), actorFromRequest(r, claims), itemID, decimal.NewFromFloat(req.ReservedAmount))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	RespondSuccessJSON(w, r, http.StatusOK, "Reserved amount updated successfully", "")
}

// EndAuction godoc
//
//	@Summary		End an Auction
//	@Description	Terminate bidding; the item sells iff the highest bid meets the reserve
//	@Tags			Auctions
//	@Produce		json
//	@Param			itemId	path		string	true	"Item ID"
//	@Success		200		{object}	map[string]any
//	@Failure		403		{object}	map[string]any
//	@Failure		409		{object}	map[string]any
//	@Router			/items/{itemId}/end [post]
func (h *AuctionHandler) EndAuction(w http.ResponseWriter, r *http.Request) {
	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	claims := GetUserClaims(r.Context())
	if claims == nil {
		RespondErrorJSON(w, r, http.StatusUnauthorized, ErrAuthFailed.Error(), "user claims not found in context", nil)
		return
	}

	result, err := h.engine.EndAuction(r.Context(), actorFromRequest(r, claims), itemID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	RespondSuccessJSON(w, r, http.StatusOK, result.Message, result)
}
