package model

import "time"

// Tier is the subscription level governing quota limits.
type Tier string

const (
	TierFree Tier = "free"
	TierPlus Tier = "plus"
	TierPro  Tier = "pro"
)

// Subscription statuses that still grant paid limits.
const (
	StatusActive     = "active"
	StatusTrialing   = "trialing"
	StatusPastDue    = "past_due"
	StatusIncomplete = "incomplete"
	StatusUnpaid     = "unpaid"
	StatusPaid       = "paid"
	StatusCanceled   = "canceled"
)

// BillingRecord is the per-user billing state owned by the subscription
// lifecycle subsystem. This engine reads plan/status and increments the
// two Max Mode usage counters; everything else is written elsewhere.
type BillingRecord struct {
	UserID              string     `db:"user_id" json:"user_id"`
	PlanID              *string    `db:"plan_id" json:"plan_id,omitempty"`
	Status              string     `db:"status" json:"status"`
	CurrentPeriodEnd    *time.Time `db:"current_period_end" json:"current_period_end,omitempty"`
	MaxModeEnabled      bool       `db:"max_mode_enabled" json:"max_mode_enabled"`
	MaxModeUsageBasic   int64      `db:"max_mode_usage_basic" json:"max_mode_usage_basic"`
	MaxModeUsagePremium int64      `db:"max_mode_usage_premium" json:"max_mode_usage_premium"`
	MaxModePeriodStart  *time.Time `db:"max_mode_period_start" json:"max_mode_period_start,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// TierInfo is the effective subscription state derived from a
// BillingRecord for a single request. It is computed fresh every time
// because status can change asynchronously via webhooks.
type TierInfo struct {
	Tier            Tier       `json:"tier"`
	PlanID          *string    `json:"plan_id,omitempty"`
	Status          string     `json:"status"`
	PeriodEnd       *time.Time `json:"period_end,omitempty"`
	MaxModeEligible bool       `json:"max_mode_eligible"`
	MaxModeEnabled  bool       `json:"max_mode_enabled"`
}
