package repository

import (
	"context"

	"retreat-booking-backend/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefundRepository interface {
	ListByOrderLine(ctx context.Context, orderLineID int64) ([]*model.Refund, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, refund *model.Refund) (*model.Refund, error)
	ExistsForOrderLine(ctx context.Context, q Querier, orderLineID int64) (bool, error)
}

type RefundRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewRefundRepository(pool *pgxpool.Pool) RefundRepository {
	return &RefundRepositoryImpl{pool: pool}
}

func (r *RefundRepositoryImpl) ListByOrderLine(ctx context.Context, orderLineID int64) ([]*model.Refund, error) {
	query := `
		SELECT id, order_line_id, amount, details, refund_date, created_at
		FROM refunds
		WHERE order_line_id = $1
		ORDER BY refund_date ASC
	`
	rows, err := r.pool.Query(ctx, query, orderLineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refunds := make([]*model.Refund, 0)
	for rows.Next() {
		var refund model.Refund
		err := rows.Scan(
			&refund.ID,
			&refund.OrderLineID,
			&refund.Amount,
			&refund.Details,
			&refund.RefundDate,
			&refund.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, &refund)
	}
	return refunds, rows.Err()
}

func (r *RefundRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, refund *model.Refund) (*model.Refund, error) {
	query := `
		INSERT INTO refunds (order_line_id, amount, details, refund_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := tx.QueryRow(ctx, query,
		refund.OrderLineID,
		refund.Amount,
		refund.Details,
		refund.RefundDate,
	).Scan(&refund.ID, &refund.CreatedAt)
	if err != nil {
		return nil, err
	}
	return refund, nil
}

func (r *RefundRepositoryImpl) ExistsForOrderLine(ctx context.Context, q Querier, orderLineID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM refunds
			WHERE order_line_id = $1
		)
	`
	var exists bool
	if err := q.QueryRow(ctx, query, orderLineID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
