package repository

import (
	"context"
	"errors"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

// GetUserByID returns nil, nil when no profile exists for the caller.
func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	query := `SELECT user_id, email, name, avatar_url, stripe_customer_id, created_at, updated_at FROM user_profiles WHERE user_id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	if err := row.Scan(&u.UserID, &u.Email, &u.Name, &u.AvatarURL, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
