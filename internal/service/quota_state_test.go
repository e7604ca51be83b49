package service

import (
	"testing"
	"time"

	"app/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextMonthStart(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "mid month",
			in:   time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC),
			want: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "first instant of month",
			in:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			want: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "december wraps the year",
			in:   time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC),
			want: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, nextMonthStart(tc.in))
		})
	}
}

func TestCalculateQuotaStateNoRecordResets(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	limits := NewLimitTable(10, 0)
	tierInfo := model.TierInfo{Tier: model.TierFree}

	state := calculateQuotaState(tierInfo, limits, model.CategoryBasic, nil, now, false)

	require.NotNil(t, state.Limit)
	assert.Equal(t, int64(1500), *state.Limit)
	assert.True(t, state.ShouldReset)
	assert.Equal(t, int64(0), state.Used)
	assert.Equal(t, now, state.PeriodStart)
	require.NotNil(t, state.TargetPeriodEnd)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), *state.TargetPeriodEnd)
}

func TestCalculateQuotaStateExpiredPeriodResets(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	limits := NewLimitTable(10, 0)
	tierInfo := model.TierInfo{Tier: model.TierFree}
	pastEnd := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	existing := &model.UsageQuota{
		Used:        1400,
		PeriodStart: time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   &pastEnd,
	}

	state := calculateQuotaState(tierInfo, limits, model.CategoryBasic, existing, now, false)

	assert.True(t, state.ShouldReset)
	assert.Equal(t, int64(0), state.Used)
	require.NotNil(t, state.EffectivePeriodEnd)
	assert.True(t, state.EffectivePeriodEnd.After(now))
}

func TestCalculateQuotaStateLivePeriodCarriesThrough(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	limits := NewLimitTable(10, 0)
	tierInfo := model.TierInfo{Tier: model.TierPlus}
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	existing := &model.UsageQuota{Used: 42, PeriodStart: start, PeriodEnd: &end}

	state := calculateQuotaState(tierInfo, limits, model.CategoryBasic, existing, now, false)

	assert.False(t, state.ShouldReset)
	assert.Equal(t, int64(42), state.Used)
	assert.Equal(t, start, state.PeriodStart)
	require.NotNil(t, state.EffectivePeriodEnd)
	assert.Equal(t, end, *state.EffectivePeriodEnd)
}

func TestCalculateQuotaStateUnlimitedNeverRollsOver(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	limits := NewLimitTable(10, 0)
	tierInfo := model.TierInfo{Tier: model.TierPro}
	existing := &model.UsageQuota{Used: 99999, PeriodStart: now.AddDate(0, -6, 0)}

	state := calculateQuotaState(tierInfo, limits, model.CategoryBasic, existing, now, false)

	assert.Nil(t, state.Limit)
	assert.False(t, state.ShouldReset)
	assert.Equal(t, int64(99999), state.Used)
	assert.Nil(t, state.TargetPeriodEnd)
}

func TestCalculateQuotaStateAnonymousNeverResets(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	limits := NewLimitTable(10, 0)
	tierInfo := model.TierInfo{Tier: model.TierFree}
	existing := &model.UsageQuota{Used: 7, PeriodStart: now.AddDate(0, -3, 0)}

	state := calculateQuotaState(tierInfo, limits, model.CategoryBasic, existing, now, true)

	require.NotNil(t, state.Limit)
	assert.Equal(t, int64(10), *state.Limit)
	assert.False(t, state.ShouldReset)
	assert.Equal(t, int64(7), state.Used)
	assert.Nil(t, state.TargetPeriodEnd)
}

func TestLimitTableUnknownPairFallsBackToZero(t *testing.T) {
	limits := NewLimitTable(10, 0)
	l := limits.Limit("video", model.TierPro)
	require.NotNil(t, l)
	assert.Equal(t, int64(0), *l)
}
