package repository

import (
	"context"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductRepository interface {
	FindMembershipByID(ctx context.Context, id int64) (*model.Membership, error)
	FindPackageByID(ctx context.Context, id int64) (*model.Package, error)
	ListMemberships(ctx context.Context, availableOnly bool) ([]*model.Membership, error)
	ListPackages(ctx context.Context, availableOnly bool) ([]*model.Package, error)
}

type ProductRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &ProductRepositoryImpl{pool: pool}
}

func (r *ProductRepositoryImpl) FindMembershipByID(ctx context.Context, id int64) (*model.Membership, error) {
	query := `
		SELECT id, name, details, available, price, duration_days,
			created_at, updated_at, deleted_at
		FROM memberships
		WHERE id = $1 AND deleted_at IS NULL
	`
	var m model.Membership
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.Name,
		&m.Details,
		&m.Available,
		&m.Price,
		&m.DurationDays,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *ProductRepositoryImpl) FindPackageByID(ctx context.Context, id int64) (*model.Package, error) {
	query := `
		SELECT id, name, details, available, price, reservations,
			created_at, updated_at, deleted_at
		FROM packages
		WHERE id = $1 AND deleted_at IS NULL
	`
	var p model.Package
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Details,
		&p.Available,
		&p.Price,
		&p.Reservations,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *ProductRepositoryImpl) ListMemberships(ctx context.Context, availableOnly bool) ([]*model.Membership, error) {
	query := `
		SELECT id, name, details, available, price, duration_days,
			created_at, updated_at, deleted_at
		FROM memberships
		WHERE deleted_at IS NULL
	`
	if availableOnly {
		query += ` AND available = TRUE`
	}
	query += ` ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memberships := make([]*model.Membership, 0)
	for rows.Next() {
		var m model.Membership
		err := rows.Scan(
			&m.ID,
			&m.Name,
			&m.Details,
			&m.Available,
			&m.Price,
			&m.DurationDays,
			&m.CreatedAt,
			&m.UpdatedAt,
			&m.DeletedAt,
		)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

func (r *ProductRepositoryImpl) ListPackages(ctx context.Context, availableOnly bool) ([]*model.Package, error) {
	query := `
		SELECT id, name, details, available, price, reservations,
			created_at, updated_at, deleted_at
		FROM packages
		WHERE deleted_at IS NULL
	`
	if availableOnly {
		query += ` AND available = TRUE`
	}
	query += ` ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packages := make([]*model.Package, 0)
	for rows.Next() {
		var p model.Package
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Details,
			&p.Available,
			&p.Price,
			&p.Reservations,
			&p.CreatedAt,
			&p.UpdatedAt,
			&p.DeletedAt,
		)
		if err != nil {
			return nil, err
		}
		packages = append(packages, &p)
	}
	return packages, rows.Err()
}
