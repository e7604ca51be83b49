package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// ErrMaxModeNotAvailable is returned when a user who is not eligible
// for pay-as-you-go overage tries to enable it.
var ErrMaxModeNotAvailable = errors.New("max_mode_not_available")

// BillingService exposes the engine-owned slice of billing state: the
// Max Mode toggle. Everything else on the billing record belongs to the
// subscription lifecycle subsystem.
type BillingService interface {
	// SetMaxMode enables or disables pay-as-you-go overage. Enabling
	// requires an active pro-family subscription and resets the overage
	// counters for a fresh counting period.
	SetMaxMode(ctx context.Context, userID string, enabled bool, now time.Time) (model.TierInfo, error)
}

type billingService struct {
	billingRepo repository.BillingRepository
	planSvc     PlanService
	logger      zerolog.Logger
}

// NewBillingService creates a new BillingService with a scoped logger.
func NewBillingService(billingRepo repository.BillingRepository, planSvc PlanService, logger zerolog.Logger) BillingService {
	return &billingService{
		billingRepo: billingRepo,
		planSvc:     planSvc,
		logger:      logger.With().Str("service", "BillingService").Logger(),
	}
}

func (s *billingService) SetMaxMode(ctx context.Context, userID string, enabled bool, now time.Time) (model.TierInfo, error) {
	tierInfo := s.planSvc.ResolveTier(ctx, userID, now)
	if enabled && !tierInfo.MaxModeEligible {
		return tierInfo, ErrMaxModeNotAvailable
	}

	if err := s.billingRepo.SetMaxMode(ctx, userID, enabled, now); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Bool("enabled", enabled).Msg("Failed to set max mode")
		return tierInfo, fmt.Errorf("setting max mode for user %s: %w", userID, err)
	}

	tierInfo.MaxModeEnabled = enabled && tierInfo.MaxModeEligible
	return tierInfo, nil
}
