package service

import "app/internal/model"

// LimitTable is the static limit matrix limits[category][tier], plus
// the fixed per-category ceilings for anonymous callers. A nil entry
// means unlimited. The matrix is configuration data consumed by the
// engine, not business logic, so it lives behind a constructor that
// tests can swap out wholesale.
type LimitTable struct {
	tiers map[model.Category]map[model.Tier]*int64
	guest map[model.Category]int64
}

// NewLimitTable builds the production limit matrix with the given guest
// ceilings.
func NewLimitTable(guestBasic, guestPremium int64) LimitTable {
	return LimitTable{
		tiers: map[model.Category]map[model.Tier]*int64{
			model.CategoryBasic: {
				model.TierFree: limit(1500),
				model.TierPlus: limit(3000),
				model.TierPro:  nil, // unlimited
			},
			model.CategoryPremium: {
				model.TierFree: limit(0),
				model.TierPlus: limit(100),
				model.TierPro:  limit(500),
			},
		},
		guest: map[model.Category]int64{
			model.CategoryBasic:   guestBasic,
			model.CategoryPremium: guestPremium,
		},
	}
}

// Limit returns the monthly allowance for a tier/category pair, nil
// meaning unlimited. Unknown pairs fall back to a zero limit rather
// than unlimited.
func (t LimitTable) Limit(category model.Category, tier model.Tier) *int64 {
	byTier, ok := t.tiers[category]
	if !ok {
		return limit(0)
	}
	l, ok := byTier[tier]
	if !ok {
		return limit(0)
	}
	return l
}

// GuestLimit returns the fixed anonymous ceiling for a category.
func (t LimitTable) GuestLimit(category model.Category) int64 {
	return t.guest[category]
}

func limit(n int64) *int64 {
	return &n
}
