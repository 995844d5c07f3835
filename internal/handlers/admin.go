package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sellio/bidcore/internal/audit"
	"github.com/sellio/bidcore/internal/engine"
	"github.com/sellio/bidcore/internal/model"
	"github.com/shopspring/decimal"
)

// AdminHandler exposes the admin surface: commission management and
// audit chain verification.
type AdminHandler struct {
	engine   *engine.Engine
	verifier *audit.Verifier
}

func NewAdminHandler(e *engine.Engine, v *audit.Verifier) (*AdminHandler, error) {
	return &AdminHandler{
		engine:   e,
		verifier: v,
	}, nil
}

// UpdateCommission godoc
//
//	@Summary		Update Commission Percentage
//	@Description	Change the platform commission; admin-tier roles only, value in [0,50]
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Param			commission	body		model.UpdateCommissionRequest	true	"New commission percentage"
//	@Success		200			{object}	map[string]any
//	@Failure		403			{object}	map[string]any
//	@Failure		422			{object}	map[string]any
//	@Router			/admin/commission [put]
func (h *AdminHandler) UpdateCommission(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateCommissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondErrorJSON(w, r, http.StatusBadRequest, ErrInvalidJson.Error(), "invalid json format", nil)
		return
	}

	claims := GetUserClaims(r.Context())
	if claims == nil {
		RespondErrorJSON(w, r, http.StatusUnauthorized, ErrAuthFailed.Error(), "user claims not found in context", nil)
		return
	}

	err := h.engine.UpdateCommissionPercentage(r.Context(), actorFromRequest(r, claims), decimal.NewFromFloat(req.CommissionPercentage))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	RespondSuccessJSON(w, r, http.StatusOK, "Commission percentage updated successfully", "")
}

// CommissionPreview godoc
//
//	@Summary		Preview Commission Split
//	@Description	Compute the commission and seller proceeds for a hypothetical sale amount
//	@Tags			Admin
//	@Produce		json
//	@Param			amount	query		number	true	"Sale amount"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	map[string]any
//	@Router			/admin/commission/preview [get]
func (h *AdminHandler) CommissionPreview(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("amount")
	if raw == "" {
		RespondErrorJSON(w, r, http.StatusBadRequest, ErrMissingParam.Error(), "amount is required", nil)
		return
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		RespondErrorJSON(w, r, http.StatusBadRequest, ErrInvalidRequest.Error(), "amount must be a positive number", nil)
		return
	}

	breakdown, err := h.engine.Commission(r.Context(), amount)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	RespondSuccessJSON(w, r, http.StatusOK, "Commission computed successfully", breakdown)
}

// VerifyIntegrity godoc
//
//	@Summary		Verify Audit Chain Integrity
//	@Description	Re-walk the hash chain and flag tampered entries
//	@Tags			Admin
//	@Produce		json
//	@Param			from	query		int	false	"Log ID to start from"
//	@Success		200		{object}	map[string]any
//	@Failure		403		{object}	map[string]any
//	@Router			/admin/audit/verify [post]
func (h *AdminHandler) VerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	claims := GetUserClaims(r.Context())
	if claims == nil {
		RespondErrorJSON(w, r, http.StatusUnauthorized, ErrAuthFailed.Error(), "user claims not found in context", nil)
		return
	}

	var fromID int64
	if raw := r.URL.Query().Get("from"); raw != "" {
		fmt.Sscanf(raw, "%d", &fromID)
	}

	result, err := h.verifier.VerifyIntegrity(r.Context(), fromID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}

	message := "Audit chain verified"
	if !result.Verified {
		message = "Audit chain verification failed"
	}
	RespondSuccessJSON(w, r, http.StatusOK, message, result)
}

// AuditTrail godoc
//
//	@Summary		List Audit Entries
//	@Description	Read the append-only audit trail from a given log ID
//	@Tags			Admin
//	@Produce		json
//	@Param			from	query		int	false	"Log ID to start from"
//	@Success		200		{object}	map[string]any
//	@Router			/admin/audit [get]
func (h *AdminHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	claims := GetUserClaims(r.Context())
	if claims == nil {
		RespondErrorJSON(w, r, http.StatusUnauthorized, ErrAuthFailed.Error(), "user claims not found in context", nil)
		return
	}

	var fromID int64
	if raw := r.URL.Query().Get("from"); raw != "" {
		fmt.Sscanf(raw, "%d", &fromID)
	}

	entries, err := h.verifier.Entries(r.Context(), fromID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.AuditLogEntry{}
	}

	resp := map[string]any{
		"entries": entries,
	}
	RespondSuccessJSON(w, r, http.StatusOK, "Audit entries fetched successfully", resp)
}
