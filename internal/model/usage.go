package model

import "time"

// Category is a billing-relevant resource class.
type Category string

const (
	CategoryBasic   Category = "basic"
	CategoryPremium Category = "premium"
)

// Categories lists every priced category in a stable order.
var Categories = []Category{CategoryBasic, CategoryPremium}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryBasic || c == CategoryPremium
}

// UsageQuota is the per-(user, category) consumption counter. Exactly
// one row exists per pair; `used` only resets at a period rollover.
// Anonymous callers carry a nil PeriodEnd and never roll over.
type UsageQuota struct {
	UserID      string     `db:"user_id" json:"user_id"`
	Category    Category   `db:"category" json:"category"`
	PlanTier    Tier       `db:"plan_tier" json:"plan_tier"`
	LimitAmount *int64     `db:"limit_amount" json:"limit_amount,omitempty"`
	Used        int64      `db:"used" json:"used"`
	PeriodStart time.Time  `db:"period_start" json:"period_start"`
	PeriodEnd   *time.Time `db:"period_end" json:"period_end,omitempty"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ConsumeResult is the outcome of a successful consumption. Limit and
// Remaining are nil for unlimited tier/category combinations.
type ConsumeResult struct {
	Tier        Tier   `json:"tier"`
	Limit       *int64 `json:"limit,omitempty"`
	Remaining   *int64 `json:"remaining,omitempty"`
	UsedOverage bool   `json:"used_overage"`
}

// CategoryUsage is one row of the usage summary.
type CategoryUsage struct {
	Category    Category   `json:"category"`
	Limit       *int64     `json:"limit,omitempty"`
	Used        int64      `json:"used"`
	Remaining   *int64     `json:"remaining,omitempty"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	PeriodEnd   *time.Time `json:"period_end,omitempty"`
}

// UsageSummary is the read-only view of consumption vs. limits shown
// by the billing UI.
type UsageSummary struct {
	Tier            Tier            `json:"tier"`
	PlanID          *string         `json:"plan_id,omitempty"`
	Status          string          `json:"status"`
	PeriodEnd       *time.Time      `json:"period_end,omitempty"`
	Usage           []CategoryUsage `json:"usage"`
	MaxModeEnabled  bool            `json:"max_mode_enabled"`
	MaxModeEligible bool            `json:"max_mode_eligible"`
}
