package scheduler

import (
	"context"
	"errors"
	"time"

	"retreat-booking-backend/config"
	"retreat-booking-backend/internal/repository"
	"retreat-booking-backend/internal/service"
	"retreat-booking-backend/pkg/apperrors"
	"retreat-booking-backend/pkg/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler runs the periodic wait-queue promotion sweep over every event
// that still holds reserved seats. The per-event 24h throttle lives in the
// wait-queue service, so the sweep interval only controls how promptly a
// newly eligible event gets its first notification round.
type Scheduler struct {
	scheduler gocron.Scheduler
	eventRepo repository.EventRepository
	waitQueue service.WaitQueueService
	cfg       config.BookingConfig
	logger    *zap.Logger
}

func New(
	eventRepo repository.EventRepository,
	waitQueue service.WaitQueueService,
	cfg config.BookingConfig,
) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		scheduler: s,
		eventRepo: eventRepo,
		waitQueue: waitQueue,
		cfg:       cfg,
		logger:    logger.WithComponent("scheduler"),
	}, nil
}

func (s *Scheduler) Start() error {
	interval := time.Duration(s.cfg.WaitQueueSweepMinutes) * time.Minute
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep),
	)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	s.logger.Info("wait-queue sweep scheduled", zap.Duration("interval", interval))
	return nil
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) sweep() {
	ctx := context.Background()
	events, err := s.eventRepo.ListPromotable(ctx)
	if err != nil {
		s.logger.Error("wait-queue sweep: listing promotable events failed", zap.Error(err))
		return
	}

	for _, event := range events {
		result, err := s.waitQueue.Notify(ctx, event.ID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotificationThrottled) {
				continue
			}
			s.logger.Error("wait-queue sweep: notify failed", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		if result.Notified > 0 {
			s.logger.Info("wait-queue sweep: users notified",
				zap.Int64("event_id", event.ID),
				zap.Int("notified", result.Notified))
		}
	}
}
