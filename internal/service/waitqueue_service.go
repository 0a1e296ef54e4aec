package service

import (
	"context"
	"time"

	"retreat-booking-backend/config"
	"retreat-booking-backend/internal/mailer"
	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/queue"
	"retreat-booking-backend/internal/repository"
	"retreat-booking-backend/pkg/apperrors"
	"retreat-booking-backend/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// notifyWindow is the minimum spacing between promotion sweeps for one
// event: 24 hours minus a 5-minute grace to absorb scheduler jitter.
const notifyWindow = 24*time.Hour - 5*time.Minute

type WaitQueueService interface {
	Subscribe(ctx context.Context, userID, eventID int64) (*model.WaitQueueEntry, error)
	// Unsubscribe removes the entry and any notification. Removing an
	// entry positioned before the cursor decrements the cursor so it
	// keeps pointing at the same logical next user.
	Unsubscribe(ctx context.Context, userID, eventID int64) error
	// Notify is the promotion sweep: purge stale notifications, then
	// notify one queued user per reserved seat, advancing the cursor.
	// Throttled to once per notifyWindow per event.
	Notify(ctx context.Context, eventID int64) (*model.NotifyResult, error)
	ListNotifications(ctx context.Context, userID int64) ([]*model.WaitQueueNotification, error)
}

type WaitQueueServiceImpl struct {
	pool          *pgxpool.Pool
	txManager     repository.TxManager
	eventRepo     repository.EventRepository
	userRepo      repository.UserRepository
	waitQueueRepo repository.WaitQueueRepository
	mailQueue     queue.MailQueue
	cfg           config.BookingConfig
	logger        *zap.Logger
	now           func() time.Time
}

func NewWaitQueueService(
	pool *pgxpool.Pool,
	txManager repository.TxManager,
	eventRepo repository.EventRepository,
	userRepo repository.UserRepository,
	waitQueueRepo repository.WaitQueueRepository,
	mailQueue queue.MailQueue,
	cfg config.BookingConfig,
) WaitQueueService {
	return &WaitQueueServiceImpl{
		pool:          pool,
		txManager:     txManager,
		eventRepo:     eventRepo,
		userRepo:      userRepo,
		waitQueueRepo: waitQueueRepo,
		mailQueue:     mailQueue,
		cfg:           cfg,
		logger:        logger.WithComponent("waitqueue_service"),
		now:           time.Now,
	}
}

func (s *WaitQueueServiceImpl) Subscribe(ctx context.Context, userID, eventID int64) (*model.WaitQueueEntry, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsActive || event.StartTime.Before(s.now()) {
		return nil, apperrors.ErrEventNotFound
	}
	return s.waitQueueRepo.Subscribe(ctx, userID, eventID)
}

func (s *WaitQueueServiceImpl) Unsubscribe(ctx context.Context, userID, eventID int64) error {
	return s.txManager.WithTx(ctx, func(tx pgx.Tx) error {
		event, err := s.eventRepo.FindByIDWithLock(ctx, tx, eventID)
		if err != nil {
			return err
		}
		entries, err := s.waitQueueRepo.ListByEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		position := -1
		for i, entry := range entries {
			if entry.UserID == userID {
				position = i
				break
			}
		}
		if position == -1 {
			return apperrors.ErrWaitQueueNotFound
		}
		if err := s.waitQueueRepo.DeleteEntry(ctx, tx, userID, eventID); err != nil {
			return err
		}
		if position < event.NextUserNotified {
			if err := s.eventRepo.SetNextUserNotified(ctx, tx, eventID, event.NextUserNotified-1); err != nil {
				return err
			}
		}
		return s.waitQueueRepo.DeleteNotificationsForUser(ctx, tx, userID, eventID)
	})
}

func (s *WaitQueueServiceImpl) Notify(ctx context.Context, eventID int64) (*model.NotifyResult, error) {
	event, err := s.eventRepo.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !event.IsActive || event.StartTime.Before(now) {
		return &model.NotifyResult{Stop: true, Detail: "event no longer promotable"}, nil
	}

	retention := time.Duration(s.cfg.NotificationLifetimeDays) * 24 * time.Hour
	purged, err := s.waitQueueRepo.PurgeNotificationsBefore(ctx, eventID, now.Add(-retention))
	if err != nil {
		return nil, err
	}
	if purged > 0 {
		s.logger.Info("purged stale wait-queue notifications",
			zap.Int64("event_id", eventID), zap.Int64("count", purged))
	}

	latest, err := s.waitQueueRepo.LatestNotificationAt(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if latest != nil && now.Sub(*latest) < notifyWindow {
		return nil, apperrors.ErrNotificationThrottled
	}

	if event.ReservedSeats == 0 {
		return &model.NotifyResult{Stop: true, Detail: "no reserved seats"}, nil
	}

	entries, err := s.waitQueueRepo.ListByEvent(ctx, s.pool, eventID)
	if err != nil {
		return nil, err
	}

	cursor := event.NextUserNotified
	notified := 0
	for notified < event.ReservedSeats && cursor < len(entries) {
		entry := entries[cursor]
		if _, err := s.waitQueueRepo.CreateNotification(ctx, entry.UserID, eventID); err != nil {
			return nil, err
		}
		s.sendSeatFreedMail(ctx, entry.UserID, event)
		cursor++
		notified++
	}

	if cursor != event.NextUserNotified {
		if err := s.eventRepo.SetNextUserNotified(ctx, s.pool, eventID, cursor); err != nil {
			return nil, err
		}
	}

	result := &model.NotifyResult{Notified: notified}
	if notified == 0 {
		result.Stop = true
		result.Detail = "queue exhausted"
	}
	return result, nil
}

func (s *WaitQueueServiceImpl) ListNotifications(ctx context.Context, userID int64) ([]*model.WaitQueueNotification, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.waitQueueRepo.ListNotificationsForUser(ctx, userID)
}

func (s *WaitQueueServiceImpl) sendSeatFreedMail(ctx context.Context, userID int64, event *model.Event) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("seat-freed mail skipped", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	job := &model.MailJob{
		Template:  mailer.TemplateWaitQueueSeatFreed,
		Recipient: user.Email,
		Subject:   "A seat freed up",
		Merge: map[string]string{
			"name":       user.FirstName,
			"event":      event.Name,
			"start_time": event.StartTime.Format(time.RFC1123),
		},
	}
	if err := s.mailQueue.PublishMail(ctx, job); err != nil {
		s.logger.Warn("seat-freed mail not queued", zap.Int64("user_id", userID), zap.Error(err))
	}
}
