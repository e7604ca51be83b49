package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// UsageHandler exposes the quota engine over HTTP.
type UsageHandler struct {
	usageSvc  service.UsageService
	exportSvc service.ExportService // nil when export storage is not configured
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usageSvc service.UsageService, exportSvc service.ExportService, validate *validator.Validate, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{usageSvc: usageSvc, exportSvc: exportSvc, validate: validate, logger: logger}
}

// RegisterRoutes registers the usage endpoints.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, identityMiddleware func(http.Handler) http.Handler) {
	mux.Handle("POST /usage/consume", identityMiddleware(http.HandlerFunc(h.Consume)))
	mux.Handle("GET /usage/summary", identityMiddleware(http.HandlerFunc(h.Summary)))
	mux.Handle("POST /usage/export", identityMiddleware(middleware.RequireUser(http.HandlerFunc(h.Export))))
}

// Consume godoc
// @Summary Consume one unit of a priced category
// @Description Counts one basic or premium model call against the caller's monthly allowance, switching to pay-as-you-go overage when Max Mode is enabled.
// @Tags usage
// @Accept json
// @Produce json
// @Param request body dto.ConsumeRequest true "Category to consume"
// @Success 200 {object} dto.ConsumeResponse
// @Failure 400 {string} string "invalid request payload"
// @Failure 402 {object} dto.UsageLimitResponse "usage limit exceeded"
// @Router /usage/consume [post]
func (h *UsageHandler) Consume(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req dto.ConsumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "invalid category", http.StatusBadRequest)
		return
	}

	result, err := h.usageSvc.Consume(r.Context(), identity.UserID, model.Category(req.Category), time.Now().UTC(), identity.IsAnonymous)
	if err != nil {
		var limitErr *service.UsageLimitError
		if errors.As(err, &limitErr) {
			writeJSON(w, http.StatusPaymentRequired, dto.UsageLimitResponse{
				Error:            "usage_limit_exceeded",
				MaxModeAvailable: limitErr.MaxModeAvailable,
			}, h.logger)
			return
		}
		h.logger.Error().Err(err).Str("user_id", identity.UserID).Msg("Failed to consume usage unit")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsumeResponse{
		Tier:        string(result.Tier),
		Limit:       result.Limit,
		Remaining:   result.Remaining,
		UsedOverage: result.UsedOverage,
	}, h.logger)
}

// Summary godoc
// @Summary Get the caller's usage summary
// @Description Returns consumption vs. limits per category without mutating any counters.
// @Tags usage
// @Produce json
// @Success 200 {object} dto.UsageSummaryResponse
// @Router /usage/summary [get]
func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	summary, err := h.usageSvc.GetSummary(r.Context(), identity.UserID, time.Now().UTC(), identity.IsAnonymous)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", identity.UserID).Msg("Failed to build usage summary")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := dto.UsageSummaryResponse{
		Tier:            string(summary.Tier),
		PlanID:          summary.PlanID,
		Status:          summary.Status,
		PeriodEnd:       summary.PeriodEnd,
		MaxModeEnabled:  summary.MaxModeEnabled,
		MaxModeEligible: summary.MaxModeEligible,
	}
	for _, u := range summary.Usage {
		resp.Usage = append(resp.Usage, dto.CategoryUsageResponse{
			Category:    string(u.Category),
			Limit:       u.Limit,
			Used:        u.Used,
			Remaining:   u.Remaining,
			PeriodStart: u.PeriodStart,
			PeriodEnd:   u.PeriodEnd,
		})
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// Export godoc
// @Summary Upload a usage reconciliation report
// @Description Writes a CSV snapshot of quota usage and Max Mode counters to object storage.
// @Tags usage
// @Produce json
// @Success 200 {object} dto.ExportResponse
// @Failure 503 {string} string "export storage not configured"
// @Router /usage/export [post]
func (h *UsageHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.exportSvc == nil {
		http.Error(w, "export storage not configured", http.StatusServiceUnavailable)
		return
	}
	key, err := h.exportSvc.ExportUsageReport(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to export usage report")
		http.Error(w, "failed to export usage report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.ExportResponse{Key: key}, h.logger)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger zerolog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}
