package repository

import (
	"context"

	"retreat-booking-backend/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentProfileRepository interface {
	FindByUser(ctx context.Context, userID int64) (*model.PaymentProfile, error)
	Create(ctx context.Context, userID int64, name, externalAPIID string) (*model.PaymentProfile, error)
}

type PaymentProfileRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewPaymentProfileRepository(pool *pgxpool.Pool) PaymentProfileRepository {
	return &PaymentProfileRepositoryImpl{pool: pool}
}

// FindByUser returns nil without an error when the user has no vault profile
// yet; the caller creates one lazily on first payment.
func (r *PaymentProfileRepositoryImpl) FindByUser(ctx context.Context, userID int64) (*model.PaymentProfile, error) {
	query := `
		SELECT id, user_id, name, external_api_id, created_at, updated_at
		FROM payment_profiles
		WHERE user_id = $1
	`
	var profile model.PaymentProfile
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Name,
		&profile.ExternalAPIID,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *PaymentProfileRepositoryImpl) Create(ctx context.Context, userID int64, name, externalAPIID string) (*model.PaymentProfile, error) {
	query := `
		INSERT INTO payment_profiles (user_id, name, external_api_id)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, name, external_api_id, created_at, updated_at
	`
	var profile model.PaymentProfile
	err := r.pool.QueryRow(ctx, query, userID, name, externalAPIID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Name,
		&profile.ExternalAPIID,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
