package service

import (
	"context"

	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/repository"
	"retreat-booking-backend/pkg/apperrors"
)

type AvailabilityService interface {
	// CheckSeat decides whether the user may take quantity seats on the
	// event. useReserved reports that the only way in is through the
	// reserved pool, which the booking transaction must then consume;
	// that path only covers a single seat. Called with the event row
	// locked when inside a booking transaction.
	CheckSeat(ctx context.Context, q repository.Querier, event *model.Event, userID int64, quantity int) (useReserved bool, err error)
	// CheckOverlap rejects the booking when the user already holds an
	// active reservation intersecting the event's window. excludeID (0 for
	// none) skips the reservation an exchange is replacing.
	CheckOverlap(ctx context.Context, q repository.Querier, event *model.Event, userID int64, excludeID int64) error
	// PlacesRemaining is the read-side seat count for listings.
	PlacesRemaining(ctx context.Context, q repository.Querier, event *model.Event) (int, error)
}

type AvailabilityServiceImpl struct {
	reservationRepo repository.ReservationRepository
	waitQueueRepo   repository.WaitQueueRepository
}

func NewAvailabilityService(
	reservationRepo repository.ReservationRepository,
	waitQueueRepo repository.WaitQueueRepository,
) AvailabilityService {
	return &AvailabilityServiceImpl{
		reservationRepo: reservationRepo,
		waitQueueRepo:   waitQueueRepo,
	}
}

func (s *AvailabilityServiceImpl) CheckSeat(ctx context.Context, q repository.Querier, event *model.Event, userID int64, quantity int) (bool, error) {
	count, err := s.reservationRepo.CountActiveByEvent(ctx, q, event.ID)
	if err != nil {
		return false, err
	}

	if event.PlacesRemaining(count) >= quantity {
		return false, nil
	}

	if quantity == 1 && event.ReservedSeats > 0 {
		notified, err := s.waitQueueRepo.HasLiveNotification(ctx, q, userID, event.ID)
		if err != nil {
			return false, err
		}
		if notified {
			return true, nil
		}
	}

	return false, apperrors.ErrNoSeatsAvailable
}

func (s *AvailabilityServiceImpl) CheckOverlap(ctx context.Context, q repository.Querier, event *model.Event, userID int64, excludeID int64) error {
	intervals, err := s.reservationRepo.ActiveIntervalsForUser(ctx, q, userID, excludeID)
	if err != nil {
		return err
	}
	for _, iv := range intervals {
		if model.IntervalsOverlap(iv.StartTime, iv.EndTime, event.StartTime, event.EndTime) {
			return apperrors.ErrOverlappingReservation
		}
	}
	return nil
}

func (s *AvailabilityServiceImpl) PlacesRemaining(ctx context.Context, q repository.Querier, event *model.Event) (int, error) {
	count, err := s.reservationRepo.CountActiveByEvent(ctx, q, event.ID)
	if err != nil {
		return 0, err
	}
	return event.PlacesRemaining(count), nil
}
