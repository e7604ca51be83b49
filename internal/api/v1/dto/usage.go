package dto

import "time"

// ConsumeRequest asks for one unit of a priced category.
type ConsumeRequest struct {
	Category string `json:"category" validate:"required,oneof=basic premium"`
}

// ConsumeResponse is returned when a unit was granted. Limit and
// remaining are omitted for unlimited plans.
type ConsumeResponse struct {
	Tier        string `json:"tier"`
	Limit       *int64 `json:"limit,omitempty"`
	Remaining   *int64 `json:"remaining,omitempty"`
	UsedOverage bool   `json:"used_overage"`
}

// UsageLimitResponse is the 402 body for an exhausted quota.
type UsageLimitResponse struct {
	Error            string `json:"error"`
	MaxModeAvailable bool   `json:"max_mode_available"`
}

type CategoryUsageResponse struct {
	Category    string     `json:"category"`
	Limit       *int64     `json:"limit,omitempty"`
	Used        int64      `json:"used"`
	Remaining   *int64     `json:"remaining,omitempty"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

type UsageSummaryResponse struct {
	Tier            string                  `json:"tier"`
	PlanID          *string                 `json:"plan_id,omitempty"`
	Status          string                  `json:"status,omitempty"`
	PeriodEnd       *time.Time              `json:"period_end,omitempty"`
	Usage           []CategoryUsageResponse `json:"usage"`
	MaxModeEnabled  bool                    `json:"max_mode_enabled"`
	MaxModeEligible bool                    `json:"max_mode_eligible"`
}

// ExportResponse returns the object key of an uploaded usage report.
type ExportResponse struct {
	Key string `json:"key"`
}
