package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrQuotaExhausted is returned when the ceiling increment finds no
// remaining allowance. The caller decides between overage and denial.
var ErrQuotaExhausted = errors.New("quota_exhausted")

// conflictRetries bounds transparent retries on storage-level write
// conflicts. The upsert is a single statement, so in practice these
// fire only under aggressive isolation settings.
const conflictRetries = 3

// QuotaIncrement carries the computed state a consumption writes when
// it creates or rolls over a quota row.
type QuotaIncrement struct {
	Tier        model.Tier
	Limit       int64
	PeriodStart time.Time
	PeriodEnd   *time.Time
	// AllowReset is false for anonymous callers: their rows never roll
	// over, so an expired-period check must not reset them.
	AllowReset bool
	Now        time.Time
}

// UsageQuotaRepository owns the usage_quotas table. IncrementWithCeiling
// is the linearization point for all quota decisions: the rollover check,
// the increment, and the ceiling comparison execute inside one statement
// so two concurrent consumers can never both take the last unit.
type UsageQuotaRepository interface {
	GetQuota(ctx context.Context, userID string, category model.Category) (*model.UsageQuota, error)
	// IncrementWithCeiling atomically rolls the period over if needed and
	// increments `used`, refusing the increment when the row is at its
	// limit. Returns ErrQuotaExhausted in that case.
	IncrementWithCeiling(ctx context.Context, userID string, category model.Category, inc QuotaIncrement) (*model.UsageQuota, error)
	// IncrementUnbounded increments `used` past the limit. Used only on
	// the overage path so the summary view reflects true consumption.
	IncrementUnbounded(ctx context.Context, userID string, category model.Category, inc QuotaIncrement) (*model.UsageQuota, error)
	ListQuotas(ctx context.Context) ([]model.UsageQuota, error)
}

type usageQuotaRepo struct {
	pool *pgxpool.Pool
}

// NewUsageQuotaRepo creates a new UsageQuotaRepository.
func NewUsageQuotaRepo(pool *pgxpool.Pool) UsageQuotaRepository {
	return &usageQuotaRepo{pool: pool}
}

func (r *usageQuotaRepo) GetQuota(ctx context.Context, userID string, category model.Category) (*model.UsageQuota, error) {
	const q = `
        SELECT user_id, category, plan_tier, limit_amount, used, period_start, period_end, updated_at
        FROM usage_quotas
        WHERE user_id = $1 AND category = $2
    `
	var uq model.UsageQuota
	err := r.pool.QueryRow(ctx, q, userID, category).Scan(
		&uq.UserID,
		&uq.Category,
		&uq.PlanTier,
		&uq.LimitAmount,
		&uq.Used,
		&uq.PeriodStart,
		&uq.PeriodEnd,
		&uq.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch quota for user %s category %s: %w", userID, category, err)
	}
	return &uq, nil
}

// The upsert below is the single most load-bearing statement in the
// engine. A fresh pair inserts used = 1. An existing row either rolls
// over (period expired, used restarts at 1) or increments, and the
// WHERE clause refuses the update when the row is at its ceiling, which
// surfaces as zero returned rows. Reading `used` first and comparing in
// application code would reintroduce the check-then-write race.
const ceilingUpsert = `
    INSERT INTO usage_quotas AS q (user_id, category, plan_tier, limit_amount, used, period_start, period_end, updated_at)
    VALUES ($1, $2, $3, $4, 1, $5, $6, NOW())
    ON CONFLICT (user_id, category) DO UPDATE
    SET plan_tier    = EXCLUDED.plan_tier,
        limit_amount = EXCLUDED.limit_amount,
        used         = CASE WHEN $7 AND (q.period_end IS NULL OR q.period_end <= $8) THEN 1 ELSE q.used + 1 END,
        period_start = CASE WHEN $7 AND (q.period_end IS NULL OR q.period_end <= $8) THEN EXCLUDED.period_start ELSE q.period_start END,
        period_end   = CASE WHEN $7 AND (q.period_end IS NULL OR q.period_end <= $8) THEN EXCLUDED.period_end ELSE q.period_end END,
        updated_at   = NOW()
    WHERE ($7 AND (q.period_end IS NULL OR q.period_end <= $8)) OR q.used < $4
    RETURNING q.user_id, q.category, q.plan_tier, q.limit_amount, q.used, q.period_start, q.period_end, q.updated_at
`

func (r *usageQuotaRepo) IncrementWithCeiling(ctx context.Context, userID string, category model.Category, inc QuotaIncrement) (*model.UsageQuota, error) {
	var uq model.UsageQuota
	var err error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err = r.pool.QueryRow(ctx, ceilingUpsert,
			userID, category, inc.Tier, inc.Limit, inc.PeriodStart, inc.PeriodEnd, inc.AllowReset, inc.Now,
		).Scan(
			&uq.UserID,
			&uq.Category,
			&uq.PlanTier,
			&uq.LimitAmount,
			&uq.Used,
			&uq.PeriodStart,
			&uq.PeriodEnd,
			&uq.UpdatedAt,
		)
		if err == nil {
			return &uq, nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuotaExhausted
		}
		if !isSerializationFailure(err) {
			break
		}
	}
	return nil, fmt.Errorf("incrementing quota for user %s category %s: %w", userID, category, err)
}

func (r *usageQuotaRepo) IncrementUnbounded(ctx context.Context, userID string, category model.Category, inc QuotaIncrement) (*model.UsageQuota, error) {
	const q = `
        INSERT INTO usage_quotas AS u (user_id, category, plan_tier, limit_amount, used, period_start, period_end, updated_at)
        VALUES ($1, $2, $3, $4, 1, $5, $6, NOW())
        ON CONFLICT (user_id, category) DO UPDATE
        SET plan_tier    = EXCLUDED.plan_tier,
            limit_amount = EXCLUDED.limit_amount,
            used         = u.used + 1,
            updated_at   = NOW()
        RETURNING u.user_id, u.category, u.plan_tier, u.limit_amount, u.used, u.period_start, u.period_end, u.updated_at
    `
	var uq model.UsageQuota
	err := r.pool.QueryRow(ctx, q,
		userID, category, inc.Tier, inc.Limit, inc.PeriodStart, inc.PeriodEnd,
	).Scan(
		&uq.UserID,
		&uq.Category,
		&uq.PlanTier,
		&uq.LimitAmount,
		&uq.Used,
		&uq.PeriodStart,
		&uq.PeriodEnd,
		&uq.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("incrementing overage usage for user %s category %s: %w", userID, category, err)
	}
	return &uq, nil
}

func (r *usageQuotaRepo) ListQuotas(ctx context.Context) ([]model.UsageQuota, error) {
	const q = `
        SELECT user_id, category, plan_tier, limit_amount, used, period_start, period_end, updated_at
        FROM usage_quotas
        ORDER BY user_id, category
    `
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing quotas: %w", err)
	}
	defer rows.Close()
	var quotas []model.UsageQuota
	for rows.Next() {
		var uq model.UsageQuota
		if err := rows.Scan(
			&uq.UserID,
			&uq.Category,
			&uq.PlanTier,
			&uq.LimitAmount,
			&uq.Used,
			&uq.PeriodStart,
			&uq.PeriodEnd,
			&uq.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning quota row: %w", err)
		}
		quotas = append(quotas, uq)
	}
	return quotas, rows.Err()
}

// isSerializationFailure reports whether the error is a retryable
// storage conflict (serialization failure or deadlock).
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
