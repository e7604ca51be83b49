package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingHandler exposes the Max Mode toggle.
type BillingHandler struct {
	billingSvc service.BillingService
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billingSvc service.BillingService, validate *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{billingSvc: billingSvc, validate: validate, logger: logger}
}

// RegisterRoutes registers the billing endpoints.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, identityMiddleware func(http.Handler) http.Handler) {
	mux.Handle("POST /billing/max-mode", identityMiddleware(middleware.RequireUser(http.HandlerFunc(h.SetMaxMode))))
}

// SetMaxMode godoc
// @Summary Toggle pay-as-you-go overage (Max Mode)
// @Description Enables or disables metered overage billing. Enabling requires an active pro subscription and restarts the overage counters.
// @Tags billing
// @Accept json
// @Produce json
// @Param request body dto.MaxModeRequest true "Desired toggle state"
// @Success 200 {object} dto.MaxModeResponse
// @Failure 400 {string} string "invalid request payload"
// @Failure 403 {string} string "max mode not available on this plan"
// @Router /billing/max-mode [post]
func (h *BillingHandler) SetMaxMode(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req dto.MaxModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	tierInfo, err := h.billingSvc.SetMaxMode(r.Context(), identity.UserID, *req.Enabled, time.Now().UTC())
	if err != nil {
		if errors.Is(err, service.ErrMaxModeNotAvailable) {
			http.Error(w, "max mode not available on this plan", http.StatusForbidden)
			return
		}
		h.logger.Error().Err(err).Str("user_id", identity.UserID).Msg("Failed to set max mode")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, dto.MaxModeResponse{
		Tier:           string(tierInfo.Tier),
		MaxModeEnabled: tierInfo.MaxModeEnabled,
	}, h.logger)
}
