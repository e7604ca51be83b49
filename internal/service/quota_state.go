package service

import (
	"time"

	"app/internal/model"
)

// QuotaState is the computed quota position for one (user, category)
// pair at a point in time. Both the consume path and the summary view
// derive their numbers from this struct so they can never diverge.
type QuotaState struct {
	TierInfo model.TierInfo
	// Limit is nil for unlimited tier/category combinations.
	Limit *int64
	// Used is the usage after applying a pending rollover (0 when the
	// period has expired and the next write will reset the row).
	Used        int64
	PeriodStart time.Time
	// TargetPeriodEnd is the boundary a reset would write: the first
	// instant of the next calendar month (UTC), nil for anonymous rows.
	TargetPeriodEnd *time.Time
	// EffectivePeriodEnd is the boundary currently in force, for display.
	EffectivePeriodEnd *time.Time
	ShouldReset        bool
}

// calculateQuotaState applies the rollover rules to an existing quota
// row (nil when the pair has never consumed). Anonymous callers get the
// fixed guest ceiling and never roll over; everyone else resets when
// the stored period has no end or has passed.
func calculateQuotaState(tierInfo model.TierInfo, limits LimitTable, category model.Category, existing *model.UsageQuota, now time.Time, isAnonymous bool) QuotaState {
	state := QuotaState{TierInfo: tierInfo, PeriodStart: now}

	if isAnonymous {
		g := limits.GuestLimit(category)
		state.Limit = &g
	} else {
		state.Limit = limits.Limit(category, tierInfo.Tier)
	}

	// Unlimited categories never roll over; the counter is carried
	// through for observability only.
	if state.Limit == nil {
		if existing != nil {
			state.Used = existing.Used
			state.PeriodStart = existing.PeriodStart
			state.EffectivePeriodEnd = existing.PeriodEnd
		}
		return state
	}

	if !isAnonymous {
		end := nextMonthStart(now)
		state.TargetPeriodEnd = &end
	}

	switch {
	case existing == nil:
		state.ShouldReset = true
	case isAnonymous:
		// Guest rows are a fixed lifetime ceiling: no reset, ever.
		state.Used = existing.Used
		state.PeriodStart = existing.PeriodStart
		state.EffectivePeriodEnd = existing.PeriodEnd
	case existing.PeriodEnd == nil || !existing.PeriodEnd.After(now):
		state.ShouldReset = true
	default:
		state.Used = existing.Used
		state.PeriodStart = existing.PeriodStart
		state.EffectivePeriodEnd = existing.PeriodEnd
	}

	if state.ShouldReset {
		state.EffectivePeriodEnd = state.TargetPeriodEnd
	}
	return state
}

// nextMonthStart returns the first instant of the calendar month after
// t, in UTC. Aligning every rollover to the same boundary keeps
// concurrent resets easy to reason about, unlike a per-user "now + 30
// days" window.
func nextMonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
