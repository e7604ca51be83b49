package service

import (
	"context"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// MeteringClient reports usage events to the external metered-billing
// provider. Implementations must be safe for concurrent use.
type MeteringClient interface {
	ReportUsageEvent(ctx context.Context, eventName, customerID string, quantity int64) error
}

// MeteringService records pay-as-you-go overage. The local counter is
// the source of truth; the provider is a best-effort downstream mirror,
// so a delivered unit is always billed locally even when the provider
// is down.
type MeteringService interface {
	// RecordOverage increments the local Max Mode counter for the
	// category and mirrors one usage event to the provider
	// asynchronously. The returned value is the new local counter.
	RecordOverage(ctx context.Context, userID string, category model.Category) (int64, error)
}

type meteringService struct {
	billingRepo repository.BillingRepository
	userRepo    repository.UserRepository
	client      MeteringClient
	eventNames  map[model.Category]string
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewMeteringService creates a new MeteringService with a scoped logger.
// eventNames maps each category to the provider-side meter event name.
func NewMeteringService(
	billingRepo repository.BillingRepository,
	userRepo repository.UserRepository,
	client MeteringClient,
	eventNames map[model.Category]string,
	timeout time.Duration,
	logger zerolog.Logger,
) MeteringService {
	return &meteringService{
		billingRepo: billingRepo,
		userRepo:    userRepo,
		client:      client,
		eventNames:  eventNames,
		timeout:     timeout,
		logger:      logger.With().Str("service", "MeteringService").Logger(),
	}
}

func (s *meteringService) RecordOverage(ctx context.Context, userID string, category model.Category) (int64, error) {
	// The local increment must succeed before anything is reported: the
	// provider call must never gate billing correctness.
	newUsage, err := s.billingRepo.IncrementMaxModeUsage(ctx, userID, category)
	if err != nil {
		return 0, fmt.Errorf("recording overage for user %s: %w", userID, err)
	}

	// Fire-and-forget; detached from the request context so the report
	// can outlive the response.
	go s.reportUsage(userID, category)

	return newUsage, nil
}

func (s *meteringService) reportUsage(userID string, category model.Category) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve user for usage report")
		return
	}
	if user == nil || user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		s.logger.Warn().Str("user_id", userID).Msg("No billing customer ID, skipping usage report")
		return
	}

	eventName, ok := s.eventNames[category]
	if !ok {
		s.logger.Error().Str("category", string(category)).Msg("No meter event configured for category")
		return
	}

	if err := s.client.ReportUsageEvent(ctx, eventName, *user.StripeCustomerID, 1); err != nil {
		// Swallowed on purpose: the local counter already holds the unit
		// and support reconciles from it.
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Str("event", eventName).
			Msg("Failed to report usage event to metering provider")
	}
}
