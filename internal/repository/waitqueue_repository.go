package repository

import (
	"context"
	"time"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WaitQueueRepository interface {
	Subscribe(ctx context.Context, userID, eventID int64) (*model.WaitQueueEntry, error)
	FindEntry(ctx context.Context, userID, eventID int64) (*model.WaitQueueEntry, error)
	// ListByEvent returns the queue in FIFO order; the cursor semantics
	// depend on this ordering being stable.
	ListByEvent(ctx context.Context, q Querier, eventID int64) ([]*model.WaitQueueEntry, error)
	DeleteEntry(ctx context.Context, q Querier, userID, eventID int64) error

	CreateNotification(ctx context.Context, userID, eventID int64) (*model.WaitQueueNotification, error)
	// LatestNotificationAt is the event-level throttle input: the creation
	// time of the event's most recent notification, nil when none exist.
	LatestNotificationAt(ctx context.Context, eventID int64) (*time.Time, error)
	// PurgeNotificationsBefore drops the event's notifications older than
	// the cutoff. Scoped per event so one event's sweep cannot expire
	// another event's live booking authorizations.
	PurgeNotificationsBefore(ctx context.Context, eventID int64, cutoff time.Time) (int64, error)

	ListNotificationsForUser(ctx context.Context, userID int64) ([]*model.WaitQueueNotification, error)
	HasLiveNotification(ctx context.Context, q Querier, userID, eventID int64) (bool, error)
	DeleteNotificationsForUser(ctx context.Context, q Querier, userID, eventID int64) error
}

type WaitQueueRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewWaitQueueRepository(pool *pgxpool.Pool) WaitQueueRepository {
	return &WaitQueueRepositoryImpl{pool: pool}
}

func (r *WaitQueueRepositoryImpl) Subscribe(ctx context.Context, userID, eventID int64) (*model.WaitQueueEntry, error) {
	query := `
		INSERT INTO wait_queue_entries (user_id, event_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, event_id) DO NOTHING
		RETURNING id, user_id, event_id, created_at
	`
	var entry model.WaitQueueEntry
	err := r.pool.QueryRow(ctx, query, userID, eventID).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.EventID,
		&entry.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrAlreadyInWaitQueue
		}
		return nil, err
	}
	return &entry, nil
}

func (r *WaitQueueRepositoryImpl) FindEntry(ctx context.Context, userID, eventID int64) (*model.WaitQueueEntry, error) {
	query := `
		SELECT id, user_id, event_id, created_at
		FROM wait_queue_entries
		WHERE user_id = $1 AND event_id = $2
	`
	var entry model.WaitQueueEntry
	err := r.pool.QueryRow(ctx, query, userID, eventID).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.EventID,
		&entry.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrWaitQueueNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *WaitQueueRepositoryImpl) ListByEvent(ctx context.Context, q Querier, eventID int64) ([]*model.WaitQueueEntry, error) {
	query := `
		SELECT id, user_id, event_id, created_at
		FROM wait_queue_entries
		WHERE event_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := q.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*model.WaitQueueEntry, 0)
	for rows.Next() {
		var entry model.WaitQueueEntry
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.EventID, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (r *WaitQueueRepositoryImpl) DeleteEntry(ctx context.Context, q Querier, userID, eventID int64) error {
	query := `
		DELETE FROM wait_queue_entries
		WHERE user_id = $1 AND event_id = $2
	`
	result, err := q.Exec(ctx, query, userID, eventID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrWaitQueueNotFound
	}
	return nil
}

func (r *WaitQueueRepositoryImpl) CreateNotification(ctx context.Context, userID, eventID int64) (*model.WaitQueueNotification, error) {
	query := `
		INSERT INTO wait_queue_notifications (user_id, event_id)
		VALUES ($1, $2)
		RETURNING id, user_id, event_id, created_at
	`
	var notification model.WaitQueueNotification
	err := r.pool.QueryRow(ctx, query, userID, eventID).Scan(
		&notification.ID,
		&notification.UserID,
		&notification.EventID,
		&notification.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *WaitQueueRepositoryImpl) LatestNotificationAt(ctx context.Context, eventID int64) (*time.Time, error) {
	query := `
		SELECT created_at
		FROM wait_queue_notifications
		WHERE event_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var at time.Time
	err := r.pool.QueryRow(ctx, query, eventID).Scan(&at)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &at, nil
}

func (r *WaitQueueRepositoryImpl) PurgeNotificationsBefore(ctx context.Context, eventID int64, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM wait_queue_notifications
		WHERE event_id = $1 AND created_at < $2
	`
	result, err := r.pool.Exec(ctx, query, eventID, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (r *WaitQueueRepositoryImpl) ListNotificationsForUser(ctx context.Context, userID int64) ([]*model.WaitQueueNotification, error) {
	query := `
		SELECT id, user_id, event_id, created_at
		FROM wait_queue_notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]*model.WaitQueueNotification, 0)
	for rows.Next() {
		var n model.WaitQueueNotification
		if err := rows.Scan(&n.ID, &n.UserID, &n.EventID, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

func (r *WaitQueueRepositoryImpl) HasLiveNotification(ctx context.Context, q Querier, userID, eventID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM wait_queue_notifications
			WHERE user_id = $1 AND event_id = $2
		)
	`
	var exists bool
	if err := q.QueryRow(ctx, query, userID, eventID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *WaitQueueRepositoryImpl) DeleteNotificationsForUser(ctx context.Context, q Querier, userID, eventID int64) error {
	_, err := q.Exec(ctx, `
		DELETE FROM wait_queue_notifications
		WHERE user_id = $1 AND event_id = $2
	`, userID, eventID)
	return err
}
