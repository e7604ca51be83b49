package service

import (
	"context"
	"strings"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// proPlanPrefix identifies the pro plan family (e.g. "pro", "pro_yearly").
const proPlanPrefix = "pro"

// activeStatuses are the subscription statuses that still grant paid
// limits. Canceled subscriptions are handled separately: they keep
// their tier until the already-paid period runs out.
var activeStatuses = map[string]bool{
	model.StatusActive:     true,
	model.StatusTrialing:   true,
	model.StatusPastDue:    true,
	model.StatusIncomplete: true,
	model.StatusUnpaid:     true,
	model.StatusPaid:       true,
}

// PlanService resolves a user's effective subscription tier.
type PlanService interface {
	// ResolveTier derives the caller's tier, Max Mode flags and period
	// end from the billing record. It never fails the request: missing
	// or unreadable billing data degrades to the free tier.
	ResolveTier(ctx context.Context, userID string, now time.Time) model.TierInfo
}

type planService struct {
	billingRepo repository.BillingRepository
	logger      zerolog.Logger
}

// NewPlanService creates a new PlanService with a scoped logger.
func NewPlanService(billingRepo repository.BillingRepository, logger zerolog.Logger) PlanService {
	return &planService{
		billingRepo: billingRepo,
		logger:      logger.With().Str("service", "PlanService").Logger(),
	}
}

func (s *planService) ResolveTier(ctx context.Context, userID string, now time.Time) model.TierInfo {
	record, err := s.billingRepo.GetBillingRecord(ctx, userID)
	if err != nil {
		// Degrade to free rather than failing the request; the cheaper
		// interpretation is always the safe one.
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to read billing record, treating user as free tier")
		record = nil
	}
	if record == nil || record.PlanID == nil || *record.PlanID == "" {
		end := nextMonthStart(now)
		return model.TierInfo{Tier: model.TierFree, PeriodEnd: &end}
	}

	planID := *record.PlanID
	isPro := strings.HasPrefix(planID, proPlanPrefix)
	inGrace := record.Status == model.StatusCanceled &&
		record.CurrentPeriodEnd != nil && record.CurrentPeriodEnd.After(now)

	if !activeStatuses[record.Status] && !inGrace {
		// Expired or canceled subscriptions must not retain paid limits.
		end := nextMonthStart(now)
		return model.TierInfo{Tier: model.TierFree, PlanID: record.PlanID, Status: record.Status, PeriodEnd: &end}
	}

	tier := model.TierPlus
	if isPro {
		tier = model.TierPro
	}
	// Grace-period and past-due subscribers keep their paid quota but
	// are not allowed to accrue new pay-as-you-go charges.
	eligible := isPro && record.Status == model.StatusActive

	return model.TierInfo{
		Tier:            tier,
		PlanID:          record.PlanID,
		Status:          record.Status,
		PeriodEnd:       record.CurrentPeriodEnd,
		MaxModeEligible: eligible,
		MaxModeEnabled:  eligible && record.MaxModeEnabled,
	}
}
