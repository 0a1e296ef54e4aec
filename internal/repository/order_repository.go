package repository

import (
	"context"
	"fmt"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Order, error)
	FindLineByID(ctx context.Context, id int64) (*model.OrderLine, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, order *model.Order) (*model.Order, error)
	CreateLine(ctx context.Context, tx pgx.Tx, line *model.OrderLine) (*model.OrderLine, error)
}

const orderColumns = `id, user_id, transaction_date, authorization_id,
		settlement_id, reference_number, created_at, updated_at, deleted_at`

const orderLineColumns = `id, order_id, product_kind, product_id, quantity,
		cost, coupon_id, coupon_real_value, created_at, updated_at`

type OrderRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &OrderRepositoryImpl{pool: pool}
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var order model.Order
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.TransactionDate,
		&order.AuthorizationID,
		&order.SettlementID,
		&order.ReferenceNumber,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func scanOrderLine(row pgx.Row) (*model.OrderLine, error) {
	var line model.OrderLine
	err := row.Scan(
		&line.ID,
		&line.OrderID,
		&line.ProductKind,
		&line.ProductID,
		&line.Quantity,
		&line.Cost,
		&line.CouponID,
		&line.CouponRealValue,
		&line.CreatedAt,
		&line.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *OrderRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, order *model.Order) (*model.Order, error) {
	query := `
		INSERT INTO orders (
			user_id, transaction_date, authorization_id, settlement_id,
			reference_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + orderColumns

	created, err := scanOrder(tx.QueryRow(ctx, query,
		order.UserID, order.TransactionDate,
		order.AuthorizationID, order.SettlementID, order.ReferenceNumber,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return created, nil
}

func (r *OrderRepositoryImpl) CreateLine(ctx context.Context, tx pgx.Tx, line *model.OrderLine) (*model.OrderLine, error) {
	query := `
		INSERT INTO order_lines (
			order_id, product_kind, product_id, quantity, cost,
			coupon_id, coupon_real_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + orderLineColumns

	created, err := scanOrderLine(tx.QueryRow(ctx, query,
		line.OrderID, line.ProductKind, line.ProductID,
		line.Quantity, line.Cost, line.CouponID, line.CouponRealValue,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create order line: %w", err)
	}
	return created, nil
}

func (r *OrderRepositoryImpl) FindByID(ctx context.Context, id int64) (*model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE id = $1 AND deleted_at IS NULL
	`
	order, err := scanOrder(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, err
	}

	lines, err := r.linesForOrders(ctx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Lines = lines[order.ID]
	return order, nil
}

func (r *OrderRepositoryImpl) ListByUser(ctx context.Context, userID int64) ([]*model.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*model.Order, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return orders, nil
	}

	lines, err := r.linesForOrders(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		order.Lines = lines[order.ID]
	}
	return orders, nil
}

func (r *OrderRepositoryImpl) FindLineByID(ctx context.Context, id int64) (*model.OrderLine, error) {
	query := `
		SELECT ` + orderLineColumns + `
		FROM order_lines
		WHERE id = $1
	`
	line, err := scanOrderLine(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, err
	}
	return line, nil
}

func (r *OrderRepositoryImpl) linesForOrders(ctx context.Context, orderIDs []int64) (map[int64][]*model.OrderLine, error) {
	query := `
		SELECT ` + orderLineColumns + `
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY id ASC
	`
	rows, err := r.pool.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make(map[int64][]*model.OrderLine)
	for rows.Next() {
		line, err := scanOrderLine(rows)
		if err != nil {
			return nil, err
		}
		lines[line.OrderID] = append(lines[line.OrderID], line)
	}
	return lines, rows.Err()
}
