package service

import (
	"context"
	"time"

	"retreat-booking-backend/internal/cache"
	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/repository"
	"retreat-booking-backend/pkg/apperrors"
	"retreat-booking-backend/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type EventService interface {
	ListEvents(ctx context.Context, activeOnly bool) ([]*model.EventResponse, error)
	GetEventByID(ctx context.Context, id int64) (*model.EventResponse, error)
	CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	UpdateEvent(ctx context.Context, id int64, params model.UpdateEventParams) (*model.Event, error)
	DeactivateEvent(ctx context.Context, id int64) error
}

type EventServiceImpl struct {
	pool         *pgxpool.Pool
	eventRepo    repository.EventRepository
	availability AvailabilityService
	seatCache    cache.SeatInventoryManager
	logger       *zap.Logger
}

func NewEventService(
	pool *pgxpool.Pool,
	eventRepo repository.EventRepository,
	availability AvailabilityService,
	seatCache cache.SeatInventoryManager,
) EventService {
	return &EventServiceImpl{
		pool:         pool,
		eventRepo:    eventRepo,
		availability: availability,
		seatCache:    seatCache,
		logger:       logger.WithComponent("event_service"),
	}
}

func (s *EventServiceImpl) ListEvents(ctx context.Context, activeOnly bool) ([]*model.EventResponse, error) {
	events, err := s.eventRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	responses := make([]*model.EventResponse, 0, len(events))
	for _, event := range events {
		places, err := s.placesRemaining(ctx, event)
		if err != nil {
			return nil, err
		}
		responses = append(responses, toEventResponse(event, places))
	}
	return responses, nil
}

func (s *EventServiceImpl) GetEventByID(ctx context.Context, id int64) (*model.EventResponse, error) {
	event, err := s.eventRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	places, err := s.placesRemaining(ctx, event)
	if err != nil {
		return nil, err
	}
	return toEventResponse(event, places), nil
}

// placesRemaining serves the count from the Redis snapshot when possible and
// recomputes plus warms it on a miss. The cache is read-side only; bookings
// always recount under the transaction.
func (s *EventServiceImpl) placesRemaining(ctx context.Context, event *model.Event) (int, error) {
	info, ok, err := s.seatCache.Get(ctx, event.ID)
	if err != nil {
		s.logger.Warn("seat cache read failed", zap.Int64("event_id", event.ID), zap.Error(err))
	} else if ok {
		return info.PlacesRemaining, nil
	}

	places, err := s.availability.PlacesRemaining(ctx, s.pool, event)
	if err != nil {
		return 0, err
	}
	if err := s.seatCache.WarmUp(ctx, event.ID, places, event.ReservedSeats); err != nil {
		s.logger.Warn("seat cache warm-up failed", zap.Int64("event_id", event.ID), zap.Error(err))
	}
	return places, nil
}

func (s *EventServiceImpl) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	if !req.Kind.IsValid() || !req.StartTime.Before(req.EndTime) || req.ReservedSeats > req.Seats {
		return nil, apperrors.ErrInvalidInput
	}
	event := &model.Event{
		Kind:           req.Kind,
		Name:           req.Name,
		Details:        req.Details,
		Price:          req.Price,
		Seats:          req.Seats,
		ReservedSeats:  req.ReservedSeats,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		MinDayRefund:   req.MinDayRefund,
		MinDayExchange: req.MinDayExchange,
		RefundRate:     req.RefundRate,
		IsActive:       true,
	}
	return s.eventRepo.Create(ctx, event)
}

func (s *EventServiceImpl) UpdateEvent(ctx context.Context, id int64, params model.UpdateEventParams) (*model.Event, error) {
	if params.StartTime != nil && params.EndTime != nil && !params.StartTime.Before(*params.EndTime) {
		return nil, apperrors.ErrInvalidInput
	}
	event, err := s.eventRepo.Update(ctx, id, params)
	if err != nil {
		return nil, err
	}
	if err := s.seatCache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("seat cache invalidation failed", zap.Int64("event_id", id), zap.Error(err))
	}
	return event, nil
}

func (s *EventServiceImpl) DeactivateEvent(ctx context.Context, id int64) error {
	if err := s.eventRepo.Deactivate(ctx, id); err != nil {
		return err
	}
	if err := s.seatCache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("seat cache invalidation failed", zap.Int64("event_id", id), zap.Error(err))
	}
	return nil
}

func toEventResponse(event *model.Event, places int) *model.EventResponse {
	return &model.EventResponse{
		ID:              event.ID,
		Kind:            event.Kind,
		Name:            event.Name,
		Price:           event.Price,
		Seats:           event.Seats,
		ReservedSeats:   event.ReservedSeats,
		PlacesRemaining: places,
		StartTime:       event.StartTime.Format(time.RFC3339),
		EndTime:         event.EndTime.Format(time.RFC3339),
		IsActive:        event.IsActive,
	}
}
