package service

import (
	"context"
	"time"

	"retreat-booking-backend/config"
	"retreat-booking-backend/internal/cache"
	"retreat-booking-backend/internal/gateway"
	"retreat-booking-backend/internal/mailer"
	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/queue"
	"retreat-booking-backend/internal/repository"
	"retreat-booking-backend/pkg/apperrors"
	"retreat-booking-backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ReservationService interface {
	ListReservations(ctx context.Context, userID int64) ([]*model.Reservation, error)
	GetReservationByID(ctx context.Context, userID, id int64) (*model.Reservation, error)
	// Cancel soft-cancels the reservation, issuing a partial refund when
	// the event's refund policy still allows one.
	Cancel(ctx context.Context, userID, id int64) (*model.Reservation, error)
	// Exchange moves the reservation to a different event, charging or
	// refunding the taxed price difference. The reservation keeps its id.
	Exchange(ctx context.Context, id int64, req model.ExchangeRequest) (*model.Reservation, error)
}

type ReservationServiceImpl struct {
	pool            *pgxpool.Pool
	txManager       repository.TxManager
	userRepo        repository.UserRepository
	eventRepo       repository.EventRepository
	orderRepo       repository.OrderRepository
	reservationRepo repository.ReservationRepository
	refundRepo      repository.RefundRepository
	waitQueueRepo   repository.WaitQueueRepository
	profileRepo     repository.PaymentProfileRepository
	pricing         PricingService
	availability    AvailabilityService
	waitQueue       WaitQueueService
	gateway         gateway.PaymentGateway
	mailQueue       queue.MailQueue
	seatCache       cache.SeatInventoryManager
	cfg             config.BookingConfig
	logger          *zap.Logger
	now             func() time.Time
}

func NewReservationService(
	pool *pgxpool.Pool,
	txManager repository.TxManager,
	userRepo repository.UserRepository,
	eventRepo repository.EventRepository,
	orderRepo repository.OrderRepository,
	reservationRepo repository.ReservationRepository,
	refundRepo repository.RefundRepository,
	waitQueueRepo repository.WaitQueueRepository,
	profileRepo repository.PaymentProfileRepository,
	pricing PricingService,
	availability AvailabilityService,
	waitQueue WaitQueueService,
	paymentGateway gateway.PaymentGateway,
	mailQueue queue.MailQueue,
	seatCache cache.SeatInventoryManager,
	cfg config.BookingConfig,
) ReservationService {
	return &ReservationServiceImpl{
		pool:            pool,
		txManager:       txManager,
		userRepo:        userRepo,
		eventRepo:       eventRepo,
		orderRepo:       orderRepo,
		reservationRepo: reservationRepo,
		refundRepo:      refundRepo,
		waitQueueRepo:   waitQueueRepo,
		profileRepo:     profileRepo,
		pricing:         pricing,
		availability:    availability,
		waitQueue:       waitQueue,
		gateway:         paymentGateway,
		mailQueue:       mailQueue,
		seatCache:       seatCache,
		cfg:             cfg,
		logger:          logger.WithComponent("reservation_service"),
		now:             time.Now,
	}
}

func (s *ReservationServiceImpl) ListReservations(ctx context.Context, userID int64) ([]*model.Reservation, error) {
	return s.reservationRepo.ListByUser(ctx, userID)
}

func (s *ReservationServiceImpl) GetReservationByID(ctx context.Context, userID, id int64) (*model.Reservation, error) {
	res, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, apperrors.ErrReservationNotFound
	}
	return res, nil
}

func (s *ReservationServiceImpl) Cancel(ctx context.Context, userID, id int64) (*model.Reservation, error) {
	res, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID || !res.IsActive {
		return nil, apperrors.ErrReservationNotFound
	}

	event, err := s.eventRepo.FindByID(ctx, res.EventID)
	if err != nil {
		return nil, err
	}

	line, order, err := s.lineForReservation(ctx, res)
	if err != nil {
		return nil, err
	}

	now := s.now()
	action := model.CancelationActionNotRefunded
	refundAmount := 0.0
	var refundCents int64

	if line != nil && order != nil && order.SettlementID != nil {
		amount := s.refundAmount(event, line)
		refundable, err := s.refundAllowed(ctx, event, line, now)
		if err != nil {
			return nil, err
		}
		if refundable && amount > 0 {
			refundCents = decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).IntPart()
			if _, err := s.gateway.Refund(ctx, *order.SettlementID, refundCents); err != nil {
				return nil, err
			}
			action = model.CancelationActionRefunded
			refundAmount = amount
		}
	}

	err = s.txManager.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		if err := s.reservationRepo.Cancel(ctx, tx, res.ID, model.CancelationReasonUser, action, now); err != nil {
			return err
		}
		if action == model.CancelationActionRefunded {
			_, err := s.refundRepo.Create(ctx, tx, &model.Refund{
				OrderLineID: line.ID,
				Amount:      refundAmount,
				Details:     "cancelation refund",
				RefundDate:  now,
			})
			if err != nil {
				return err
			}
		}
		return s.reevaluateReservedSeats(ctx, tx, event.ID)
	})
	if err != nil {
		if action == model.CancelationActionRefunded {
			// Money left the system but the cancelation did not commit.
			s.logger.Error("refund issued but cancelation persistence failed, manual reconciliation required",
				zap.Int64("reservation_id", res.ID),
				zap.Float64("refund_amount", refundAmount),
				zap.Error(err))
			recErr := &apperrors.ReconciliationError{
				SettlementID: *order.SettlementID,
				AmountCents:  refundCents,
				Err:          err,
			}
			if order.ReferenceNumber != nil {
				recErr.ReferenceNumber = *order.ReferenceNumber
			}
			if order.AuthorizationID != nil {
				recErr.AuthorizationID = *order.AuthorizationID
			}
			return nil, recErr
		}
		return nil, err
	}

	s.afterCancel(userID, event, action, refundAmount)
	return s.reservationRepo.FindByID(ctx, res.ID)
}

func (s *ReservationServiceImpl) Exchange(ctx context.Context, id int64, req model.ExchangeRequest) (*model.Reservation, error) {
	res, err := s.reservationRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.UserID != req.UserID || !res.IsActive {
		return nil, apperrors.ErrReservationNotFound
	}

	user, err := s.userRepo.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	oldEvent, err := s.eventRepo.FindByID(ctx, res.EventID)
	if err != nil {
		return nil, err
	}
	newEvent, err := s.eventRepo.FindByID(ctx, req.NewEventID)
	if err != nil {
		return nil, err
	}
	if newEvent.ID == oldEvent.ID {
		return nil, apperrors.ErrExchangeSameEvent
	}
	if !newEvent.IsActive {
		return nil, apperrors.ErrEventNotFound
	}
	if newEvent.Kind != oldEvent.Kind {
		return nil, apperrors.ErrInvalidInput
	}

	line, order, err := s.lineForReservation(ctx, res)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deadline := oldEvent.StartTime.AddDate(0, 0, -oldEvent.MinDayExchange)
	if now.After(deadline) {
		return nil, apperrors.ErrExchangeTooLate
	}

	if _, err := s.availability.CheckSeat(ctx, s.pool, newEvent, user.ID, 1); err != nil {
		return nil, err
	}
	if err := s.availability.CheckOverlap(ctx, s.pool, newEvent, user.ID, res.ID); err != nil {
		return nil, err
	}

	// The delta is on the base prices, taxed the same way the original
	// purchase was.
	delta := decimal.NewFromFloat(newEvent.Price).Sub(decimal.NewFromFloat(oldEvent.Price))
	taxedDelta := s.pricing.ApplyTax(delta.Abs().InexactFloat64())
	deltaCents := decimal.NewFromFloat(taxedDelta).Mul(decimal.NewFromInt(100)).IntPart()

	var charge *gateway.ChargeResult
	refunded := false
	switch {
	case delta.IsPositive() && deltaCents > 0:
		token, err := resolvePaymentToken(ctx, s.profileRepo, s.gateway, user, req.PaymentToken, req.SingleUseToken)
		if err != nil {
			return nil, err
		}
		charge, err = s.gateway.Charge(ctx, deltaCents, token, uuid.New().String())
		if err != nil {
			return nil, err
		}
	case delta.IsNegative() && deltaCents > 0 && order != nil && order.SettlementID != nil:
		if _, err := s.gateway.Refund(ctx, *order.SettlementID, deltaCents); err != nil {
			return nil, err
		}
		refunded = true
	}

	err = s.txManager.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		locked, err := s.eventRepo.FindByIDWithLock(ctx, tx, newEvent.ID)
		if err != nil {
			return err
		}
		useReserved, err := s.availability.CheckSeat(ctx, tx, locked, user.ID, 1)
		if err != nil {
			return err
		}
		if err := s.availability.CheckOverlap(ctx, tx, locked, user.ID, res.ID); err != nil {
			return err
		}
		if useReserved {
			if err := s.eventRepo.ConsumeReservedSeat(ctx, tx, locked.ID); err != nil {
				return err
			}
			if err := clearWaitQueueMembership(ctx, tx, s.waitQueueRepo, s.eventRepo, locked, user.ID); err != nil {
				return err
			}
		}

		// The clone becomes the canceled historical record; the original
		// row keeps its identity and is repointed at the new event.
		if _, err := s.reservationRepo.CloneAsCanceled(ctx, tx, res.ID, now); err != nil {
			return err
		}

		newLineID := res.OrderLineID
		if charge != nil {
			deltaOrder, err := s.orderRepo.Create(ctx, tx, &model.Order{
				UserID:          user.ID,
				TransactionDate: now,
				AuthorizationID: &charge.AuthorizationID,
				SettlementID:    &charge.SettlementID,
				ReferenceNumber: &charge.ReferenceNumber,
			})
			if err != nil {
				return err
			}
			deltaLine, err := s.orderRepo.CreateLine(ctx, tx, &model.OrderLine{
				OrderID:     deltaOrder.ID,
				ProductKind: productKindForEvent(newEvent.Kind),
				ProductID:   newEvent.ID,
				Quantity:    1,
				Cost:        delta.Round(2).InexactFloat64(),
			})
			if err != nil {
				return err
			}
			newLineID = &deltaLine.ID
		}

		if refunded && line != nil {
			_, err := s.refundRepo.Create(ctx, tx, &model.Refund{
				OrderLineID: line.ID,
				Amount:      taxedDelta,
				Details:     "exchange refund",
				RefundDate:  now,
			})
			if err != nil {
				return err
			}
		}

		return s.reservationRepo.Reassign(ctx, tx, res.ID, newEvent.ID, newLineID)
	})
	if err != nil {
		if charge != nil {
			s.logger.Error("delta charge succeeded but exchange persistence failed, manual reconciliation required",
				zap.Int64("reservation_id", res.ID),
				zap.String("reference_number", charge.ReferenceNumber),
				zap.Int64("amount_cents", deltaCents),
				zap.Error(err))
			return nil, &apperrors.ReconciliationError{
				ReferenceNumber: charge.ReferenceNumber,
				AuthorizationID: charge.AuthorizationID,
				SettlementID:    charge.SettlementID,
				AmountCents:     deltaCents,
				Err:             err,
			}
		}
		return nil, err
	}

	s.afterExchange(user, oldEvent, newEvent, delta, taxedDelta)
	return s.reservationRepo.FindByID(ctx, res.ID)
}

func (s *ReservationServiceImpl) lineForReservation(ctx context.Context, res *model.Reservation) (*model.OrderLine, *model.Order, error) {
	if res.OrderLineID == nil {
		return nil, nil, nil
	}
	line, err := s.orderRepo.FindLineByID(ctx, *res.OrderLineID)
	if err != nil {
		return nil, nil, err
	}
	if line.Quantity > 1 {
		return nil, nil, apperrors.ErrQuantityNotOne
	}
	order, err := s.orderRepo.FindByID(ctx, line.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return line, order, nil
}

// refundAmount is refund_rate percent of the paid line cost, plus the
// proportional selling tax.
func (s *ReservationServiceImpl) refundAmount(event *model.Event, line *model.OrderLine) float64 {
	preTax := decimal.NewFromFloat(line.Cost).
		Mul(decimal.NewFromInt(int64(event.RefundRate))).
		Div(decimal.NewFromInt(100)).
		Round(2)
	return s.pricing.ApplyTax(preTax.InexactFloat64())
}

func (s *ReservationServiceImpl) refundAllowed(ctx context.Context, event *model.Event, line *model.OrderLine, now time.Time) (bool, error) {
	deadline := event.StartTime.AddDate(0, 0, -event.MinDayRefund)
	if now.After(deadline) {
		return false, nil
	}
	already, err := s.refundRepo.ExistsForOrderLine(ctx, s.pool, line.ID)
	if err != nil {
		return false, err
	}
	return !already, nil
}

// reevaluateReservedSeats runs after a cancelation: if the event has
// wait-queue interest, or the freed seat is the only one left, the seat goes
// into the reserved pool instead of becoming directly bookable.
func (s *ReservationServiceImpl) reevaluateReservedSeats(ctx context.Context, tx pgx.Tx, eventID int64) error {
	locked, err := s.eventRepo.FindByIDWithLock(ctx, tx, eventID)
	if err != nil {
		return err
	}
	count, err := s.reservationRepo.CountActiveByEvent(ctx, tx, eventID)
	if err != nil {
		return err
	}
	if locked.ReservedSeats > 0 || locked.PlacesRemaining(count) == 1 {
		return s.eventRepo.IncrementReservedSeats(ctx, tx, eventID)
	}
	return nil
}

func (s *ReservationServiceImpl) afterCancel(userID int64, event *model.Event, action model.CancelationAction, refundAmount float64) {
	ctx := context.Background()
	if err := s.seatCache.Invalidate(ctx, event.ID); err != nil {
		s.logger.Warn("seat cache invalidation failed", zap.Int64("event_id", event.ID), zap.Error(err))
	}

	// A freed seat may unblock the wait queue.
	go func() {
		if _, err := s.waitQueue.Notify(context.Background(), event.ID); err != nil && err != apperrors.ErrNotificationThrottled {
			s.logger.Warn("wait-queue promotion after cancelation failed", zap.Int64("event_id", event.ID), zap.Error(err))
		}
	}()

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("cancelation mail skipped", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	merge := map[string]string{
		"name":  user.FirstName,
		"event": event.Name,
	}
	if action == model.CancelationActionRefunded {
		merge["refund_amount"] = decimal.NewFromFloat(refundAmount).StringFixed(2)
	}
	job := &model.MailJob{
		Template:  mailer.TemplateCancelation,
		Recipient: user.Email,
		Subject:   "Reservation canceled",
		Merge:     merge,
	}
	if err := s.mailQueue.PublishMail(ctx, job); err != nil {
		s.logger.Warn("cancelation mail not queued", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (s *ReservationServiceImpl) afterExchange(user *model.User, oldEvent, newEvent *model.Event, delta decimal.Decimal, taxedDelta float64) {
	ctx := context.Background()
	for _, id := range []int64{oldEvent.ID, newEvent.ID} {
		if err := s.seatCache.Invalidate(ctx, id); err != nil {
			s.logger.Warn("seat cache invalidation failed", zap.Int64("event_id", id), zap.Error(err))
		}
	}

	go func() {
		if _, err := s.waitQueue.Notify(context.Background(), oldEvent.ID); err != nil && err != apperrors.ErrNotificationThrottled {
			s.logger.Warn("wait-queue promotion after exchange failed", zap.Int64("event_id", oldEvent.ID), zap.Error(err))
		}
	}()

	merge := map[string]string{
		"name":      user.FirstName,
		"old_event": oldEvent.Name,
		"new_event": newEvent.Name,
	}
	amount := decimal.NewFromFloat(taxedDelta).StringFixed(2)
	if delta.IsPositive() {
		merge["charged_amount"] = amount
	} else if delta.IsNegative() {
		merge["refund_amount"] = amount
	}
	job := &model.MailJob{
		Template:  mailer.TemplateExchange,
		Recipient: user.Email,
		Subject:   "Reservation exchanged",
		Merge:     merge,
	}
	if err := s.mailQueue.PublishMail(ctx, job); err != nil {
		s.logger.Warn("exchange mail not queued", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

func productKindForEvent(kind model.EventKind) model.ProductKind {
	if kind == model.EventKindTimeSlot {
		return model.ProductKindTimeSlot
	}
	return model.ProductKindRetreat
}
