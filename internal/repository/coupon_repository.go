package repository

import (
	"context"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*model.Coupon, error)
	GlobalUses(ctx context.Context, q Querier, couponID int64) (int, error)
	UserUses(ctx context.Context, q Querier, couponID, userID int64) (int, error)

	// Transaction methods
	// IncrementUse locks the coupon row, re-checks both caps and bumps
	// the per-user counter. The caps were already validated during
	// pricing; the locked re-check closes the race between two orders
	// redeeming the last use.
	IncrementUse(ctx context.Context, tx pgx.Tx, couponID, userID int64) error
}

type CouponRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewCouponRepository(pool *pgxpool.Pool) CouponRepository {
	return &CouponRepositoryImpl{pool: pool}
}

func (r *CouponRepositoryImpl) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `
		SELECT id, code, value, percent_off, start_time, end_time,
			max_use, max_use_per_user, details, owner_id,
			created_at, updated_at, deleted_at
		FROM coupons
		WHERE code = $1 AND deleted_at IS NULL
	`
	var coupon model.Coupon
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&coupon.ID,
		&coupon.Code,
		&coupon.Value,
		&coupon.PercentOff,
		&coupon.StartTime,
		&coupon.EndTime,
		&coupon.MaxUse,
		&coupon.MaxUsePerUser,
		&coupon.Details,
		&coupon.OwnerID,
		&coupon.CreatedAt,
		&coupon.UpdatedAt,
		&coupon.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrCouponNotFound
		}
		return nil, err
	}

	kinds, err := r.applicableKinds(ctx, coupon.ID)
	if err != nil {
		return nil, err
	}
	coupon.ApplicableProductKinds = kinds
	return &coupon, nil
}

func (r *CouponRepositoryImpl) applicableKinds(ctx context.Context, couponID int64) ([]model.ProductKind, error) {
	query := `
		SELECT product_kind
		FROM coupon_product_kinds
		WHERE coupon_id = $1
	`
	rows, err := r.pool.Query(ctx, query, couponID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	kinds := make([]model.ProductKind, 0)
	for rows.Next() {
		var kind model.ProductKind
		if err := rows.Scan(&kind); err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, rows.Err()
}

func (r *CouponRepositoryImpl) GlobalUses(ctx context.Context, q Querier, couponID int64) (int, error) {
	query := `
		SELECT COALESCE(SUM(uses), 0)
		FROM coupon_users
		WHERE coupon_id = $1
	`
	var uses int
	if err := q.QueryRow(ctx, query, couponID).Scan(&uses); err != nil {
		return 0, err
	}
	return uses, nil
}

func (r *CouponRepositoryImpl) UserUses(ctx context.Context, q Querier, couponID, userID int64) (int, error) {
	query := `
		SELECT COALESCE(uses, 0)
		FROM coupon_users
		WHERE coupon_id = $1 AND user_id = $2
	`
	var uses int
	err := q.QueryRow(ctx, query, couponID, userID).Scan(&uses)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return uses, nil
}

func (r *CouponRepositoryImpl) IncrementUse(ctx context.Context, tx pgx.Tx, couponID, userID int64) error {
	var maxUse, maxUsePerUser int
	err := tx.QueryRow(ctx, `
		SELECT max_use, max_use_per_user
		FROM coupons
		WHERE id = $1
		FOR UPDATE
	`, couponID).Scan(&maxUse, &maxUsePerUser)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrCouponNotFound
		}
		return err
	}

	globalUses, err := r.GlobalUses(ctx, tx, couponID)
	if err != nil {
		return err
	}
	if maxUse > 0 && globalUses >= maxUse {
		return apperrors.ErrCouponUsageExceeded
	}

	userUses, err := r.UserUses(ctx, tx, couponID, userID)
	if err != nil {
		return err
	}
	if maxUsePerUser > 0 && userUses >= maxUsePerUser {
		return apperrors.ErrCouponUsageExceeded
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO coupon_users (coupon_id, user_id, uses)
		VALUES ($1, $2, 1)
		ON CONFLICT (coupon_id, user_id)
		DO UPDATE SET uses = coupon_users.uses + 1
	`, couponID, userID)
	return err
}
