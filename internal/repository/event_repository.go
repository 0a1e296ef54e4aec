package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	List(ctx context.Context, activeOnly bool) ([]*model.Event, error)
	FindByID(ctx context.Context, id int64) (*model.Event, error)
	Update(ctx context.Context, id int64, params model.UpdateEventParams) (*model.Event, error)
	Deactivate(ctx context.Context, id int64) error
	// ListPromotable returns active, upcoming events holding reserved
	// seats; the wait-queue sweep iterates over them.
	ListPromotable(ctx context.Context) ([]*model.Event, error)

	// Transaction methods
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int64) (*model.Event, error)
	ConsumeReservedSeat(ctx context.Context, tx pgx.Tx, id int64) error
	IncrementReservedSeats(ctx context.Context, tx pgx.Tx, id int64) error
	SetNextUserNotified(ctx context.Context, q Querier, id int64, cursor int) error
}

const eventColumns = `id, kind, name, details, price, seats, reserved_seats,
		next_user_notified, start_time, end_time, min_day_refund,
		min_day_exchange, refund_rate, is_active, created_at, updated_at, deleted_at`

type EventRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &EventRepositoryImpl{pool: pool}
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var event model.Event
	err := row.Scan(
		&event.ID,
		&event.Kind,
		&event.Name,
		&event.Details,
		&event.Price,
		&event.Seats,
		&event.ReservedSeats,
		&event.NextUserNotified,
		&event.StartTime,
		&event.EndTime,
		&event.MinDayRefund,
		&event.MinDayExchange,
		&event.RefundRate,
		&event.IsActive,
		&event.CreatedAt,
		&event.UpdatedAt,
		&event.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *EventRepositoryImpl) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	query := `
		INSERT INTO events (
			kind, name, details, price, seats, reserved_seats,
			start_time, end_time, min_day_refund, min_day_exchange,
			refund_rate, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + eventColumns

	return scanEvent(r.pool.QueryRow(ctx, query,
		event.Kind, event.Name, event.Details, event.Price,
		event.Seats, event.ReservedSeats,
		event.StartTime, event.EndTime,
		event.MinDayRefund, event.MinDayExchange,
		event.RefundRate, event.IsActive,
	))
}

func (r *EventRepositoryImpl) List(ctx context.Context, activeOnly bool) ([]*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE deleted_at IS NULL
	`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY start_time ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*model.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *EventRepositoryImpl) FindByID(ctx context.Context, id int64) (*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1 AND deleted_at IS NULL
	`
	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func (r *EventRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int64) (*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`
	event, err := scanEvent(tx.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func (r *EventRepositoryImpl) Update(ctx context.Context, id int64, params model.UpdateEventParams) (*model.Event, error) {
	sets := []string{}
	args := []interface{}{}
	argPos := 1

	addSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if params.Name != nil {
		addSet("name", *params.Name)
	}
	if params.Details != nil {
		addSet("details", *params.Details)
	}
	if params.Price != nil {
		addSet("price", *params.Price)
	}
	if params.Seats != nil {
		addSet("seats", *params.Seats)
	}
	if params.StartTime != nil {
		addSet("start_time", *params.StartTime)
	}
	if params.EndTime != nil {
		addSet("end_time", *params.EndTime)
	}
	if params.MinDayRefund != nil {
		addSet("min_day_refund", *params.MinDayRefund)
	}
	if params.MinDayExchange != nil {
		addSet("min_day_exchange", *params.MinDayExchange)
	}
	if params.RefundRate != nil {
		addSet("refund_rate", *params.RefundRate)
	}
	if params.IsActive != nil {
		addSet("is_active", *params.IsActive)
	}

	if len(sets) == 0 {
		return nil, apperrors.ErrInvalidInput
	}

	addSet("updated_at", time.Now().UTC())

	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE events
		SET %s
		WHERE id = $%d AND deleted_at IS NULL
		RETURNING `+eventColumns, strings.Join(sets, ", "), argPos)

	event, err := scanEvent(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func (r *EventRepositoryImpl) Deactivate(ctx context.Context, id int64) error {
	query := `
		UPDATE events
		SET is_active = FALSE, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := r.pool.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrEventNotFound
	}
	return nil
}

func (r *EventRepositoryImpl) ListPromotable(ctx context.Context) ([]*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE deleted_at IS NULL
		  AND is_active = TRUE
		  AND reserved_seats > 0
		  AND start_time > $1
		ORDER BY start_time ASC
	`
	rows, err := r.pool.Query(ctx, query, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*model.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ConsumeReservedSeat releases one reserved seat to a wait-queue-notified
// buyer. The guard keeps reserved_seats from going negative under
// concurrent bookings.
func (r *EventRepositoryImpl) ConsumeReservedSeat(ctx context.Context, tx pgx.Tx, id int64) error {
	query := `
		UPDATE events
		SET reserved_seats = reserved_seats - 1, updated_at = $1
		WHERE id = $2 AND reserved_seats > 0
	`
	result, err := tx.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNoSeatsAvailable
	}
	return nil
}

func (r *EventRepositoryImpl) IncrementReservedSeats(ctx context.Context, tx pgx.Tx, id int64) error {
	query := `
		UPDATE events
		SET reserved_seats = reserved_seats + 1, updated_at = $1
		WHERE id = $2
	`
	result, err := tx.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrEventNotFound
	}
	return nil
}

func (r *EventRepositoryImpl) SetNextUserNotified(ctx context.Context, q Querier, id int64, cursor int) error {
	query := `
		UPDATE events
		SET next_user_notified = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := q.Exec(ctx, query, cursor, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrEventNotFound
	}
	return nil
}
