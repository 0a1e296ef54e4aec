package repository

import (
	"context"
	"time"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReservationRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.Reservation, error)
	// CountActiveByEvent is the seat accounting input; inside the booking
	// transaction it must be called with the event row already locked.
	CountActiveByEvent(ctx context.Context, q Querier, eventID int64) (int, error)
	// ActiveIntervalsForUser returns the [start, end) windows of the
	// user's active reservations, used by the overlap check. The excluded
	// id (0 for none) skips the reservation being replaced by an exchange.
	ActiveIntervalsForUser(ctx context.Context, q Querier, userID int64, excludeID int64) ([]model.ReservationInterval, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, reservation *model.Reservation) (*model.Reservation, error)
	Cancel(ctx context.Context, tx pgx.Tx, id int64, reason model.CancelationReason, action model.CancelationAction, at time.Time) error
	// CloneAsCanceled copies the row as the historical record of an
	// exchange and returns the copy's id; the original row keeps its
	// identity and is repointed with Reassign.
	CloneAsCanceled(ctx context.Context, tx pgx.Tx, id int64, at time.Time) (int64, error)
	Reassign(ctx context.Context, tx pgx.Tx, id int64, newEventID int64, newOrderLineID *int64) error
}

const reservationColumns = `id, user_id, event_id, order_line_id, is_active,
		is_present, cancelation_reason, cancelation_action, cancelation_date,
		created_at, updated_at`

type ReservationRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) ReservationRepository {
	return &ReservationRepositoryImpl{pool: pool}
}

func scanReservation(row pgx.Row) (*model.Reservation, error) {
	var res model.Reservation
	err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.EventID,
		&res.OrderLineID,
		&res.IsActive,
		&res.IsPresent,
		&res.CancelationReason,
		&res.CancelationAction,
		&res.CancelationDate,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *ReservationRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, reservation *model.Reservation) (*model.Reservation, error) {
	query := `
		INSERT INTO reservations (user_id, event_id, order_line_id, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + reservationColumns

	return scanReservation(tx.QueryRow(ctx, query,
		reservation.UserID, reservation.EventID,
		reservation.OrderLineID, reservation.IsActive,
	))
}

func (r *ReservationRepositoryImpl) FindByID(ctx context.Context, id int64) (*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE id = $1
	`
	res, err := scanReservation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

func (r *ReservationRepositoryImpl) ListByUser(ctx context.Context, userID int64) ([]*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := make([]*model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

func (r *ReservationRepositoryImpl) CountActiveByEvent(ctx context.Context, q Querier, eventID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM reservations
		WHERE event_id = $1 AND is_active = TRUE
	`
	var count int
	if err := q.QueryRow(ctx, query, eventID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ReservationRepositoryImpl) ActiveIntervalsForUser(ctx context.Context, q Querier, userID int64, excludeID int64) ([]model.ReservationInterval, error) {
	query := `
		SELECT r.id, e.start_time, e.end_time
		FROM reservations r
		JOIN events e ON e.id = r.event_id
		WHERE r.user_id = $1 AND r.is_active = TRUE AND r.id != $2
	`
	rows, err := q.Query(ctx, query, userID, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	intervals := make([]model.ReservationInterval, 0)
	for rows.Next() {
		var iv model.ReservationInterval
		if err := rows.Scan(&iv.ReservationID, &iv.StartTime, &iv.EndTime); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

func (r *ReservationRepositoryImpl) Cancel(ctx context.Context, tx pgx.Tx, id int64, reason model.CancelationReason, action model.CancelationAction, at time.Time) error {
	query := `
		UPDATE reservations
		SET is_active = FALSE,
			cancelation_reason = $1,
			cancelation_action = $2,
			cancelation_date = $3,
			updated_at = $3
		WHERE id = $4 AND is_active = TRUE
	`
	result, err := tx.Exec(ctx, query, reason, action, at, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepositoryImpl) CloneAsCanceled(ctx context.Context, tx pgx.Tx, id int64, at time.Time) (int64, error) {
	query := `
		INSERT INTO reservations (
			user_id, event_id, order_line_id, is_active, is_present,
			cancelation_reason, cancelation_action, cancelation_date)
		SELECT user_id, event_id, order_line_id, FALSE, is_present, $1, $2, $3
		FROM reservations
		WHERE id = $4
		RETURNING id
	`
	var cloneID int64
	err := tx.QueryRow(ctx, query,
		model.CancelationReasonUser, model.CancelationActionExchanged, at, id,
	).Scan(&cloneID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, apperrors.ErrReservationNotFound
		}
		return 0, err
	}
	return cloneID, nil
}

func (r *ReservationRepositoryImpl) Reassign(ctx context.Context, tx pgx.Tx, id int64, newEventID int64, newOrderLineID *int64) error {
	query := `
		UPDATE reservations
		SET event_id = $1, order_line_id = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := tx.Exec(ctx, query, newEventID, newOrderLineID, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrReservationNotFound
	}
	return nil
}
