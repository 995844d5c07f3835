package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sellio/bidcore/internal/engine"
	"github.com/sellio/bidcore/internal/model"
	"github.com/sellio/bidcore/pkg/config"
)

var requestIDKey = "X-Request-ID"

func writeJson(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to write json response", "status", status, "error", err)
	}
}

func GetUserClaims(ctx context.Context) *config.UserClaims {
	claims, ok := ctx.Value(config.UserClaimKey).(*config.UserClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromRequest builds the engine actor from the authenticated claims
// plus the request's network facts for the audit trail.
func actorFromRequest(r *http.Request, claims *config.UserClaims) engine.Actor {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return engine.Actor{
		UserID:    claims.UserID,
		Role:      claims.Role,
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

func RespondSuccessJSON[T any](w http.ResponseWriter, r *http.Request, status int, message string, data T) {
	// fetch request ID , if not found generate new UUID
	reqID := r.Header.Get(requestIDKey)
	if reqID == "" {
		reqID = uuid.NewString()
	}

	// This ensures the client gets the ID whether they sent it or we created it.
	w.Header().Set(requestIDKey, reqID)

	payload := model.APIResponse[T]{
		Status:  "success",
		Message: message,
		Metadata: model.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: reqID,
		},
		Data:  data,
		Error: nil,
	}
	writeJson(w, status, payload)
}

func RespondErrorJSON(w http.ResponseWriter, r *http.Request, status int, code string, message string, details []model.ErrorDetails) {
	// fetch request ID , if not found generate new UUID
	reqID := r.Header.Get(requestIDKey)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	// This ensures the client gets the ID whether they sent it or we created it.
	w.Header().Set(requestIDKey, reqID)

	payload := model.APIResponse[any]{
		Status: "error",
		Metadata: model.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: reqID,
		},
		Error: &model.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	writeJson(w, status, payload)
}

// respondEngineError maps the engine's error taxonomy onto response codes.
// Everything in the taxonomy is a recoverable, caller-facing failure;
// anything else is a storage problem.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLow *engine.BidTooLowError
	if errors.As(err, &tooLow) {
		RespondErrorJSON(w, r, http.StatusUnprocessableEntity, ErrBidLow.Error(), tooLow.Error(), nil)
		return
	}

	switch {
	case errors.Is(err, engine.ErrItemNotFound):
		RespondErrorJSON(w, r, http.StatusNotFound, ErrItemNotFound.Error(), "Item not found", nil)
	case errors.Is(err, engine.ErrItemNotBiddable):
		RespondErrorJSON(w, r, http.StatusConflict, ErrItemNotBiddable.Error(), "Item is not open for bidding", nil)
	case errors.Is(err, engine.ErrAuctionEnded):
		RespondErrorJSON(w, r, http.StatusConflict, ErrAuctionEnded.Error(), "Auction has already ended", nil)
	case errors.Is(err, engine.ErrBelowReserve):
		RespondErrorJSON(w, r, http.StatusUnprocessableEntity, ErrBelowReserve.Error(), "Bid amount is below the reserved amount", nil)
	case errors.Is(err, engine.ErrDownPaymentOutOfRange):
		RespondErrorJSON(w, r, http.StatusUnprocessableEntity, ErrDownPaymentRange.Error(), "Down payment percentage is outside the allowed range", nil)
	case errors.Is(err, engine.ErrSelfBidForbidden):
		RespondErrorJSON(w, r, http.StatusForbidden, ErrSelfBidding.Error(), "You cannot bid on your own item", nil)
	case errors.Is(err, engine.ErrUnauthorized):
		RespondErrorJSON(w, r, http.StatusForbidden, ErrForbidden.Error(), "You are not allowed to perform this action", nil)
	case errors.Is(err, engine.ErrAlreadyEnded):
		RespondErrorJSON(w, r, http.StatusConflict, ErrAlreadyEnded.Error(), "Auction is already ended or sold", nil)
	case errors.Is(err, engine.ErrInvalidRange):
		RespondErrorJSON(w, r, http.StatusUnprocessableEntity, ErrInvalidRange.Error(), "Value is outside the allowed range", nil)
	default:
		slog.Error("[ENGINE] operation failed", "error", err)
		RespondErrorJSON(w, r, http.StatusInternalServerError, ErrDb.Error(), "Storage failure, please retry", nil)
	}
}
