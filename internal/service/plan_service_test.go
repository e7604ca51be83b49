package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBillingRepo struct {
	repository.BillingRepository
	record *model.BillingRecord
	err    error
}

func (s *stubBillingRepo) GetBillingRecord(ctx context.Context, userID string) (*model.BillingRecord, error) {
	return s.record, s.err
}

func strPtr(s string) *string { return &s }

func TestResolveTierNoBillingRecord(t *testing.T) {
	svc := NewPlanService(&stubBillingRepo{}, zerolog.Nop())
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	info := svc.ResolveTier(context.Background(), "u1", now)

	assert.Equal(t, model.TierFree, info.Tier)
	assert.False(t, info.MaxModeEligible)
	assert.False(t, info.MaxModeEnabled)
	require.NotNil(t, info.PeriodEnd)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), *info.PeriodEnd)
}

func TestResolveTierRepoErrorDegradesToFree(t *testing.T) {
	svc := NewPlanService(&stubBillingRepo{err: errors.New("connection refused")}, zerolog.Nop())

	info := svc.ResolveTier(context.Background(), "u1", time.Now().UTC())

	assert.Equal(t, model.TierFree, info.Tier)
}

func TestResolveTierStatuses(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 10)
	past := now.AddDate(0, 0, -10)

	cases := []struct {
		name         string
		record       model.BillingRecord
		wantTier     model.Tier
		wantEligible bool
	}{
		{
			name:         "active pro",
			record:       model.BillingRecord{PlanID: strPtr("pro_monthly"), Status: "active"},
			wantTier:     model.TierPro,
			wantEligible: true,
		},
		{
			name:     "active plus",
			record:   model.BillingRecord{PlanID: strPtr("plus_monthly"), Status: "active"},
			wantTier: model.TierPlus,
		},
		{
			name:     "trialing pro is not overage eligible",
			record:   model.BillingRecord{PlanID: strPtr("pro_yearly"), Status: "trialing"},
			wantTier: model.TierPro,
		},
		{
			name:     "past_due keeps paid quota without eligibility",
			record:   model.BillingRecord{PlanID: strPtr("pro_monthly"), Status: "past_due"},
			wantTier: model.TierPro,
		},
		{
			name:     "canceled inside grace keeps tier",
			record:   model.BillingRecord{PlanID: strPtr("pro_monthly"), Status: "canceled", CurrentPeriodEnd: &future},
			wantTier: model.TierPro,
		},
		{
			name:     "canceled past period degrades to free",
			record:   model.BillingRecord{PlanID: strPtr("pro_monthly"), Status: "canceled", CurrentPeriodEnd: &past},
			wantTier: model.TierFree,
		},
		{
			name:     "canceled with no period end degrades to free",
			record:   model.BillingRecord{PlanID: strPtr("plus_monthly"), Status: "canceled"},
			wantTier: model.TierFree,
		},
		{
			name:     "unknown status degrades to free",
			record:   model.BillingRecord{PlanID: strPtr("pro_monthly"), Status: "incomplete_expired"},
			wantTier: model.TierFree,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewPlanService(&stubBillingRepo{record: &tc.record}, zerolog.Nop())
			info := svc.ResolveTier(context.Background(), "u1", now)
			assert.Equal(t, tc.wantTier, info.Tier)
			assert.Equal(t, tc.wantEligible, info.MaxModeEligible)
		})
	}
}

func TestResolveTierMaxModeEnabledRequiresEligibility(t *testing.T) {
	now := time.Now().UTC()

	// Enabled flag stored, but the plan is not pro: the flag is inert.
	record := &model.BillingRecord{PlanID: strPtr("plus_monthly"), Status: "active", MaxModeEnabled: true}
	info := NewPlanService(&stubBillingRepo{record: record}, zerolog.Nop()).ResolveTier(context.Background(), "u1", now)
	assert.False(t, info.MaxModeEnabled)

	record = &model.BillingRecord{PlanID: strPtr("pro_monthly"), Status: "active", MaxModeEnabled: true}
	info = NewPlanService(&stubBillingRepo{record: record}, zerolog.Nop()).ResolveTier(context.Background(), "u1", now)
	assert.True(t, info.MaxModeEnabled)
}
