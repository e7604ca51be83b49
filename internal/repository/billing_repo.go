package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxModeUsageColumn maps a category to its counter column. Keeping the
// mapping in one table avoids duplicated per-category query paths.
var maxModeUsageColumn = map[model.Category]string{
	model.CategoryBasic:   "max_mode_usage_basic",
	model.CategoryPremium: "max_mode_usage_premium",
}

// BillingRepository reads billing records and maintains the Max Mode
// usage counters. The rest of the record is owned by the subscription
// lifecycle subsystem.
type BillingRepository interface {
	// GetBillingRecord returns the user's billing record, or nil when
	// the user has never interacted with billing (free tier).
	GetBillingRecord(ctx context.Context, userID string) (*model.BillingRecord, error)
	// SetMaxMode toggles pay-as-you-go overage. Enabling resets both
	// usage counters and stamps a new counting period.
	SetMaxMode(ctx context.Context, userID string, enabled bool, now time.Time) error
	// IncrementMaxModeUsage bumps the category counter by exactly one
	// with a server-side atomic increment and returns the new value.
	IncrementMaxModeUsage(ctx context.Context, userID string, category model.Category) (int64, error)
	// ListMaxModeRecords returns every record with recorded overage, for
	// the reconciliation export.
	ListMaxModeRecords(ctx context.Context) ([]model.BillingRecord, error)
}

type billingRepo struct {
	pool *pgxpool.Pool
}

// NewBillingRepo creates a new BillingRepository.
func NewBillingRepo(pool *pgxpool.Pool) BillingRepository {
	return &billingRepo{pool: pool}
}

func (r *billingRepo) GetBillingRecord(ctx context.Context, userID string) (*model.BillingRecord, error) {
	const q = `
        SELECT user_id, plan_id, status, current_period_end, max_mode_enabled,
               max_mode_usage_basic, max_mode_usage_premium, max_mode_period_start,
               created_at, updated_at
        FROM billing_records
        WHERE user_id = $1
    `
	var br model.BillingRecord
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&br.UserID,
		&br.PlanID,
		&br.Status,
		&br.CurrentPeriodEnd,
		&br.MaxModeEnabled,
		&br.MaxModeUsageBasic,
		&br.MaxModeUsagePremium,
		&br.MaxModePeriodStart,
		&br.CreatedAt,
		&br.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch billing record for user %s: %w", userID, err)
	}
	return &br, nil
}

func (r *billingRepo) SetMaxMode(ctx context.Context, userID string, enabled bool, now time.Time) error {
	if enabled {
		const q = `
            INSERT INTO billing_records (user_id, status, max_mode_enabled, max_mode_usage_basic, max_mode_usage_premium, max_mode_period_start, created_at, updated_at)
            VALUES ($1, '', TRUE, 0, 0, $2, NOW(), NOW())
            ON CONFLICT (user_id) DO UPDATE
            SET max_mode_enabled = TRUE,
                max_mode_usage_basic = 0,
                max_mode_usage_premium = 0,
                max_mode_period_start = $2,
                updated_at = NOW();
        `
		if _, err := r.pool.Exec(ctx, q, userID, now); err != nil {
			return fmt.Errorf("enable max mode for user %s: %w", userID, err)
		}
		return nil
	}
	// Disabling keeps the counters so support can still reconcile the
	// period that was just billed.
	const q = `
        UPDATE billing_records
        SET max_mode_enabled = FALSE,
            updated_at = NOW()
        WHERE user_id = $1;
    `
	if _, err := r.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("disable max mode for user %s: %w", userID, err)
	}
	return nil
}

func (r *billingRepo) IncrementMaxModeUsage(ctx context.Context, userID string, category model.Category) (int64, error) {
	column, ok := maxModeUsageColumn[category]
	if !ok {
		return 0, fmt.Errorf("unknown category %q", category)
	}
	// The column name comes from a fixed lookup table, never from input.
	q := fmt.Sprintf(`
        UPDATE billing_records
        SET %[1]s = %[1]s + 1,
            updated_at = NOW()
        WHERE user_id = $1
        RETURNING %[1]s
    `, column)
	var newUsage int64
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&newUsage); err != nil {
		return 0, fmt.Errorf("incrementing %s for user %s: %w", column, userID, err)
	}
	return newUsage, nil
}

func (r *billingRepo) ListMaxModeRecords(ctx context.Context) ([]model.BillingRecord, error) {
	const q = `
        SELECT user_id, plan_id, status, current_period_end, max_mode_enabled,
               max_mode_usage_basic, max_mode_usage_premium, max_mode_period_start,
               created_at, updated_at
        FROM billing_records
        WHERE max_mode_usage_basic > 0 OR max_mode_usage_premium > 0
        ORDER BY user_id
    `
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing max mode records: %w", err)
	}
	defer rows.Close()
	var records []model.BillingRecord
	for rows.Next() {
		var br model.BillingRecord
		if err := rows.Scan(
			&br.UserID,
			&br.PlanID,
			&br.Status,
			&br.CurrentPeriodEnd,
			&br.MaxModeEnabled,
			&br.MaxModeUsageBasic,
			&br.MaxModeUsagePremium,
			&br.MaxModePeriodStart,
			&br.CreatedAt,
			&br.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning billing record: %w", err)
		}
		records = append(records, br)
	}
	return records, rows.Err()
}
