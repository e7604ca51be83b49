package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/pubsub"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// UsageLimitError is the only user-visible failure of the engine: the
// quota is exhausted and overage is not enabled. MaxModeAvailable tells
// the caller whether an upsell to pay-as-you-go is possible.
type UsageLimitError struct {
	MaxModeAvailable bool
}

func (e *UsageLimitError) Error() string {
	return "usage limit exceeded"
}

// analyticsTimeout bounds the best-effort usage event publish.
const analyticsTimeout = 2 * time.Second

// UsageService is the quota engine's entry point: Consume decides, for
// one unit of a priced category, whether the caller may proceed, and
// GetSummary projects the same numbers read-only for the billing UI.
type UsageService interface {
	// Consume atomically counts one unit against the caller's monthly
	// allowance. It returns a *UsageLimitError when the quota is
	// exhausted and Max Mode is off. The caller must invoke it exactly
	// once per delivered unit.
	Consume(ctx context.Context, userID string, category model.Category, now time.Time, isAnonymous bool) (*model.ConsumeResult, error)
	// GetSummary reports consumption vs. limits without writing. It runs
	// the same state calculation as Consume, so an expired period shows
	// as already reset even though the row is untouched.
	GetSummary(ctx context.Context, userID string, now time.Time, isAnonymous bool) (*model.UsageSummary, error)
}

type usageService struct {
	quotaRepo repository.UsageQuotaRepository
	planSvc   PlanService
	metering  MeteringService
	publisher pubsub.Publisher // nil disables analytics events
	topic     string
	limits    LimitTable
	logger    zerolog.Logger
}

// NewUsageService creates a new UsageService with a scoped logger.
func NewUsageService(
	quotaRepo repository.UsageQuotaRepository,
	planSvc PlanService,
	metering MeteringService,
	publisher pubsub.Publisher,
	topic string,
	limits LimitTable,
	logger zerolog.Logger,
) UsageService {
	return &usageService{
		quotaRepo: quotaRepo,
		planSvc:   planSvc,
		metering:  metering,
		publisher: publisher,
		topic:     topic,
		limits:    limits,
		logger:    logger.With().Str("service", "UsageService").Logger(),
	}
}

func (s *usageService) Consume(ctx context.Context, userID string, category model.Category, now time.Time, isAnonymous bool) (*model.ConsumeResult, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown category %q", category)
	}

	tierInfo := s.resolveTier(ctx, userID, now, isAnonymous)

	existing, err := s.quotaRepo.GetQuota(ctx, userID, category)
	if err != nil {
		return nil, fmt.Errorf("reading quota for user %s: %w", userID, err)
	}
	state := calculateQuotaState(tierInfo, s.limits, category, existing, now, isAnonymous)

	// Unlimited categories pass straight through with no bookkeeping.
	if state.Limit == nil {
		s.publishUsageEvent(userID, category, tierInfo.Tier, false)
		return &model.ConsumeResult{Tier: tierInfo.Tier}, nil
	}

	limit := *state.Limit
	reached := limit <= 0 || (!state.ShouldReset && state.Used >= limit)

	if reached {
		return s.handleReached(ctx, userID, category, tierInfo, state, now, isAnonymous)
	}

	quota, err := s.quotaRepo.IncrementWithCeiling(ctx, userID, category, s.incrementFor(state, now, isAnonymous))
	if errors.Is(err, repository.ErrQuotaExhausted) {
		// Lost the race for the last unit; fall through to the same
		// handling as a pre-checked exhausted quota.
		return s.handleReached(ctx, userID, category, tierInfo, state, now, isAnonymous)
	}
	if err != nil {
		return nil, fmt.Errorf("consuming %s unit for user %s: %w", category, userID, err)
	}

	remaining := limit - quota.Used
	if remaining < 0 {
		remaining = 0
	}
	s.publishUsageEvent(userID, category, tierInfo.Tier, false)
	return &model.ConsumeResult{Tier: tierInfo.Tier, Limit: state.Limit, Remaining: &remaining}, nil
}

// handleReached resolves an exhausted quota: overage for Max Mode
// subscribers, a typed denial for everyone else.
func (s *usageService) handleReached(ctx context.Context, userID string, category model.Category, tierInfo model.TierInfo, state QuotaState, now time.Time, isAnonymous bool) (*model.ConsumeResult, error) {
	if !tierInfo.MaxModeEnabled {
		return nil, &UsageLimitError{MaxModeAvailable: tierInfo.MaxModeEligible}
	}

	// Local overage counter first; it is the billing source of truth and
	// must be committed before any external report is attempted.
	if _, err := s.metering.RecordOverage(ctx, userID, category); err != nil {
		return nil, err
	}

	// Keep the regular counter moving past the limit so the summary
	// reflects true consumption. Failure here loses display fidelity,
	// not billing correctness, so it only logs.
	if _, err := s.quotaRepo.IncrementUnbounded(ctx, userID, category, s.incrementFor(state, now, isAnonymous)); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("category", string(category)).Msg("Failed to advance usage counter past limit")
	}

	s.publishUsageEvent(userID, category, tierInfo.Tier, true)
	var zero int64
	return &model.ConsumeResult{Tier: tierInfo.Tier, Limit: state.Limit, Remaining: &zero, UsedOverage: true}, nil
}

func (s *usageService) GetSummary(ctx context.Context, userID string, now time.Time, isAnonymous bool) (*model.UsageSummary, error) {
	tierInfo := s.resolveTier(ctx, userID, now, isAnonymous)

	summary := &model.UsageSummary{
		Tier:            tierInfo.Tier,
		PlanID:          tierInfo.PlanID,
		Status:          tierInfo.Status,
		PeriodEnd:       tierInfo.PeriodEnd,
		MaxModeEnabled:  tierInfo.MaxModeEnabled,
		MaxModeEligible: tierInfo.MaxModeEligible,
	}

	for _, category := range model.Categories {
		existing, err := s.quotaRepo.GetQuota(ctx, userID, category)
		if err != nil {
			return nil, fmt.Errorf("reading quota for user %s: %w", userID, err)
		}
		state := calculateQuotaState(tierInfo, s.limits, category, existing, now, isAnonymous)

		entry := model.CategoryUsage{
			Category:  category,
			Limit:     state.Limit,
			Used:      state.Used,
			PeriodEnd: state.EffectivePeriodEnd,
		}
		if existing != nil || state.ShouldReset {
			start := state.PeriodStart
			entry.PeriodStart = &start
		}
		if state.Limit != nil {
			remaining := *state.Limit - state.Used
			if remaining < 0 {
				remaining = 0
			}
			entry.Remaining = &remaining
		}
		summary.Usage = append(summary.Usage, entry)
	}

	return summary, nil
}

// resolveTier derives the effective tier. Anonymous callers never touch
// the billing record: they are free-tier with no rollover period.
func (s *usageService) resolveTier(ctx context.Context, userID string, now time.Time, isAnonymous bool) model.TierInfo {
	if isAnonymous {
		return model.TierInfo{Tier: model.TierFree}
	}
	return s.planSvc.ResolveTier(ctx, userID, now)
}

func (s *usageService) incrementFor(state QuotaState, now time.Time, isAnonymous bool) repository.QuotaIncrement {
	var limit int64
	if state.Limit != nil {
		limit = *state.Limit
	}
	return repository.QuotaIncrement{
		Tier:        state.TierInfo.Tier,
		Limit:       limit,
		PeriodStart: state.PeriodStart,
		PeriodEnd:   state.TargetPeriodEnd,
		AllowReset:  !isAnonymous,
		Now:         now,
	}
}

type usageEvent struct {
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	Tier      string    `json:"tier"`
	Overage   bool      `json:"overage"`
	Timestamp time.Time `json:"timestamp"`
}

// publishUsageEvent mirrors a consumption to the analytics topic.
// Best-effort: failures are logged and never affect the decision.
func (s *usageService) publishUsageEvent(userID string, category model.Category, tier model.Tier, overage bool) {
	if s.publisher == nil {
		return
	}
	event := usageEvent{
		UserID:    userID,
		Category:  string(category),
		Tier:      string(tier),
		Overage:   overage,
		Timestamp: time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), analyticsTimeout)
		defer cancel()
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to marshal usage event")
			return
		}
		if _, err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
			s.logger.Error().Err(err).Str("topic", s.topic).Msg("Failed to publish usage event")
		}
	}()
}
