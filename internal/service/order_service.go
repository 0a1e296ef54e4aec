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

type OrderService interface {
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]*model.Order, error)
	GetOrderByID(ctx context.Context, userID, id int64) (*model.Order, error)
	// ValidateCoupon is the pre-checkout preview: which line the coupon
	// would discount and by how much, without creating anything.
	ValidateCoupon(ctx context.Context, userID int64, code string, cart []model.CartLine) (*CouponPreview, error)
}

// resolvedLine is a cart line after product resolution; event is non-nil for
// event-backed kinds.
type resolvedLine struct {
	pricing     *LinePricing
	event       *model.Event
	membership  *model.Membership
	pkg         *model.Package
	useReserved bool
	payByTicket bool
}

type OrderServiceImpl struct {
	pool            *pgxpool.Pool
	txManager       repository.TxManager
	userRepo        repository.UserRepository
	eventRepo       repository.EventRepository
	productRepo     repository.ProductRepository
	orderRepo       repository.OrderRepository
	reservationRepo repository.ReservationRepository
	couponRepo      repository.CouponRepository
	waitQueueRepo   repository.WaitQueueRepository
	profileRepo     repository.PaymentProfileRepository
	pricing         PricingService
	availability    AvailabilityService
	gateway         gateway.PaymentGateway
	mailQueue       queue.MailQueue
	seatCache       cache.SeatInventoryManager
	cfg             config.BookingConfig
	logger          *zap.Logger
	now             func() time.Time
}

func NewOrderService(
	pool *pgxpool.Pool,
	txManager repository.TxManager,
	userRepo repository.UserRepository,
	eventRepo repository.EventRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	reservationRepo repository.ReservationRepository,
	couponRepo repository.CouponRepository,
	waitQueueRepo repository.WaitQueueRepository,
	profileRepo repository.PaymentProfileRepository,
	pricing PricingService,
	availability AvailabilityService,
	paymentGateway gateway.PaymentGateway,
	mailQueue queue.MailQueue,
	seatCache cache.SeatInventoryManager,
	cfg config.BookingConfig,
) OrderService {
	return &OrderServiceImpl{
		pool:            pool,
		txManager:       txManager,
		userRepo:        userRepo,
		eventRepo:       eventRepo,
		productRepo:     productRepo,
		orderRepo:       orderRepo,
		reservationRepo: reservationRepo,
		couponRepo:      couponRepo,
		waitQueueRepo:   waitQueueRepo,
		profileRepo:     profileRepo,
		pricing:         pricing,
		availability:    availability,
		gateway:         paymentGateway,
		mailQueue:       mailQueue,
		seatCache:       seatCache,
		cfg:             cfg,
		logger:          logger.WithComponent("order_service"),
		now:             time.Now,
	}
}

func (s *OrderServiceImpl) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (*model.Order, error) {
	user, err := s.userRepo.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	// Validation order is the order the lines were submitted in, so the
	// first violation reported is deterministic.
	lines, err := s.resolveLines(ctx, user, req.Lines)
	if err != nil {
		return nil, err
	}

	if err := s.checkEligibility(user, lines); err != nil {
		return nil, err
	}

	var coupon *model.Coupon
	if req.Coupon != "" {
		coupon, err = s.pricing.ResolveCoupon(ctx, req.Coupon, user)
		if err != nil {
			return nil, err
		}
	}

	// First availability pass, outside any lock. The booking transaction
	// repeats it with the event rows locked; this pass exists to fail
	// fast before touching the gateway.
	if err := s.checkAvailability(ctx, s.pool, lines, user.ID); err != nil {
		return nil, err
	}

	pricings := make([]*LinePricing, len(lines))
	for i, line := range lines {
		pricings[i] = line.pricing
	}
	if err := s.pricing.PriceCart(pricings, coupon); err != nil {
		return nil, err
	}
	amountCents := s.pricing.TotalCents(pricings)

	// Zero-amount orders never reach the gateway: the order is persisted
	// with null processor ids.
	var charge *gateway.ChargeResult
	if amountCents > 0 {
		token, err := resolvePaymentToken(ctx, s.profileRepo, s.gateway, user, req.PaymentToken, req.SingleUseToken)
		if err != nil {
			return nil, err
		}
		referenceNumber := uuid.New().String()
		charge, err = s.gateway.Charge(ctx, amountCents, token, referenceNumber)
		if err != nil {
			return nil, err
		}
	}

	order, err := s.persistOrder(ctx, user, lines, coupon, charge)
	if err != nil {
		if charge != nil {
			// The card was debited but nothing was persisted. This is
			// the manual-reconciliation incident: no automatic refund.
			recErr := &apperrors.ReconciliationError{
				ReferenceNumber: charge.ReferenceNumber,
				AuthorizationID: charge.AuthorizationID,
				SettlementID:    charge.SettlementID,
				AmountCents:     amountCents,
				Err:             err,
			}
			s.logger.Error("charge succeeded but order persistence failed, manual reconciliation required",
				zap.String("reference_number", charge.ReferenceNumber),
				zap.String("authorization_id", charge.AuthorizationID),
				zap.Int64("amount_cents", amountCents),
				zap.Int64("user_id", user.ID),
				zap.Error(err))
			return nil, recErr
		}
		return nil, err
	}

	s.afterCommit(lines, user, order, amountCents)
	return order, nil
}

func (s *OrderServiceImpl) resolveLines(ctx context.Context, user *model.User, cart []model.CartLine) ([]*resolvedLine, error) {
	lines := make([]*resolvedLine, 0, len(cart))
	ticketsLeft := user.Tickets
	for _, cl := range cart {
		if !cl.ProductKind.IsValid() || cl.Quantity < 1 {
			return nil, apperrors.ErrInvalidInput
		}
		line := &resolvedLine{pricing: &LinePricing{Line: cl}}

		switch cl.ProductKind {
		case model.ProductKindRetreat, model.ProductKindTimeSlot:
			event, err := s.eventRepo.FindByID(ctx, cl.ProductID)
			if err != nil {
				return nil, err
			}
			if !event.IsActive || event.Kind != cl.ProductKind.EventKindFor() {
				return nil, apperrors.ErrEventNotFound
			}
			line.event = event
			line.pricing.UnitPrice = event.Price
			// Package reservation credits cover time-slot bookings.
			if cl.ProductKind == model.ProductKindTimeSlot && ticketsLeft >= cl.Quantity {
				line.payByTicket = true
				line.pricing.UnitPrice = 0
				ticketsLeft -= cl.Quantity
			}
		case model.ProductKindMembership:
			m, err := s.productRepo.FindMembershipByID(ctx, cl.ProductID)
			if err != nil {
				return nil, err
			}
			if !m.Available {
				return nil, apperrors.ErrProductNotFound
			}
			line.membership = m
			line.pricing.UnitPrice = m.Price
		case model.ProductKindPackage:
			p, err := s.productRepo.FindPackageByID(ctx, cl.ProductID)
			if err != nil {
				return nil, err
			}
			if !p.Available {
				return nil, apperrors.ErrProductNotFound
			}
			line.pkg = p
			line.pricing.UnitPrice = p.Price
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *OrderServiceImpl) checkEligibility(user *model.User, lines []*resolvedLine) error {
	for _, line := range lines {
		if line.event == nil {
			continue
		}
		if missing := user.MissingBookingFields(); len(missing) > 0 {
			return &apperrors.IncompleteProfileError{
				MissingFields: missing,
				Reason:        "event booking",
			}
		}
		return nil
	}
	return nil
}

// checkAvailability runs the seat and overlap checks for every event-backed
// line, including overlaps between lines of the same cart.
func (s *OrderServiceImpl) checkAvailability(ctx context.Context, q repository.Querier, lines []*resolvedLine, userID int64) error {
	for i, line := range lines {
		if line.event == nil {
			continue
		}
		useReserved, err := s.availability.CheckSeat(ctx, q, line.event, userID, line.pricing.Line.Quantity)
		if err != nil {
			return err
		}
		line.useReserved = useReserved

		if err := s.availability.CheckOverlap(ctx, q, line.event, userID, 0); err != nil {
			return err
		}
		for _, prev := range lines[:i] {
			if prev.event == nil {
				continue
			}
			if prev.event.Overlaps(line.event.StartTime, line.event.EndTime) {
				return apperrors.ErrOverlappingReservation
			}
		}
	}
	return nil
}

// resolvePaymentToken picks the charge instrument: a reusable token as-is, or
// a single-use token registered under the user's vault profile, creating the
// profile on first use.
func resolvePaymentToken(
	ctx context.Context,
	profileRepo repository.PaymentProfileRepository,
	gw gateway.PaymentGateway,
	user *model.User,
	paymentToken, singleUseToken string,
) (string, error) {
	if paymentToken != "" {
		return paymentToken, nil
	}
	if singleUseToken == "" {
		return "", apperrors.ErrPaymentTokenRequired
	}

	profile, err := profileRepo.FindByUser(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if profile == nil {
		externalID, err := gw.CreateProfile(ctx, user.Email, user.FullName())
		if err != nil {
			return "", err
		}
		profile, err = profileRepo.Create(ctx, user.ID, user.FullName(), externalID)
		if err != nil {
			return "", err
		}
	}

	return gw.AddCard(ctx, profile.ExternalAPIID, singleUseToken)
}

// persistOrder runs step 6 of the order state machine: one serializable
// transaction re-checking availability under row locks and writing every
// record, so two bookings racing for the last seat cannot both commit.
func (s *OrderServiceImpl) persistOrder(ctx context.Context, user *model.User, lines []*resolvedLine, coupon *model.Coupon, charge *gateway.ChargeResult) (*model.Order, error) {
	var order *model.Order

	err := s.txManager.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		for _, line := range lines {
			if line.event == nil {
				continue
			}
			locked, err := s.eventRepo.FindByIDWithLock(ctx, tx, line.event.ID)
			if err != nil {
				return err
			}
			line.event = locked

			useReserved, err := s.availability.CheckSeat(ctx, tx, locked, user.ID, line.pricing.Line.Quantity)
			if err != nil {
				return err
			}
			line.useReserved = useReserved

			if err := s.availability.CheckOverlap(ctx, tx, locked, user.ID, 0); err != nil {
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
		}

		now := s.now()
		order = &model.Order{
			UserID:          user.ID,
			TransactionDate: now,
		}
		if charge != nil {
			order.AuthorizationID = &charge.AuthorizationID
			order.SettlementID = &charge.SettlementID
			order.ReferenceNumber = &charge.ReferenceNumber
		}
		created, err := s.orderRepo.Create(ctx, tx, order)
		if err != nil {
			return err
		}
		order = created

		for _, line := range lines {
			p := line.pricing
			orderLine := &model.OrderLine{
				OrderID:         order.ID,
				ProductKind:     p.Line.ProductKind,
				ProductID:       p.Line.ProductID,
				Quantity:        p.Line.Quantity,
				Cost:            p.Cost,
				CouponID:        p.CouponID,
				CouponRealValue: p.CouponRealValue,
			}
			createdLine, err := s.orderRepo.CreateLine(ctx, tx, orderLine)
			if err != nil {
				return err
			}
			order.Lines = append(order.Lines, createdLine)

			switch {
			case line.event != nil:
				if line.payByTicket {
					if err := s.userRepo.ConsumeTickets(ctx, tx, user.ID, p.Line.Quantity); err != nil {
						return err
					}
				}
				for i := 0; i < p.Line.Quantity; i++ {
					_, err := s.reservationRepo.Create(ctx, tx, &model.Reservation{
						UserID:      user.ID,
						EventID:     line.event.ID,
						OrderLineID: &createdLine.ID,
						IsActive:    true,
					})
					if err != nil {
						return err
					}
				}
			case line.membership != nil:
				base := now
				if user.MembershipEndsAt != nil && user.MembershipEndsAt.After(now) {
					base = *user.MembershipEndsAt
				}
				days := line.membership.DurationDays * p.Line.Quantity
				until := base.AddDate(0, 0, days)
				if err := s.userRepo.ExtendMembership(ctx, tx, user.ID, until); err != nil {
					return err
				}
			case line.pkg != nil:
				credits := line.pkg.Reservations * p.Line.Quantity
				if err := s.userRepo.AddTickets(ctx, tx, user.ID, credits); err != nil {
					return err
				}
			}
		}

		if coupon != nil {
			if err := s.couponRepo.IncrementUse(ctx, tx, coupon.ID, user.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// clearWaitQueueMembership removes the user's subscription and notifications
// for the event after a reserved-seat booking, keeping the cursor pointed at
// the same logical next user.
func clearWaitQueueMembership(
	ctx context.Context,
	tx pgx.Tx,
	waitQueueRepo repository.WaitQueueRepository,
	eventRepo repository.EventRepository,
	event *model.Event,
	userID int64,
) error {
	entries, err := waitQueueRepo.ListByEvent(ctx, tx, event.ID)
	if err != nil {
		return err
	}
	for i, entry := range entries {
		if entry.UserID != userID {
			continue
		}
		if err := waitQueueRepo.DeleteEntry(ctx, tx, userID, event.ID); err != nil {
			return err
		}
		if i < event.NextUserNotified {
			if err := eventRepo.SetNextUserNotified(ctx, tx, event.ID, event.NextUserNotified-1); err != nil {
				return err
			}
		}
		break
	}
	return waitQueueRepo.DeleteNotificationsForUser(ctx, tx, userID, event.ID)
}

// afterCommit is the non-fatal tail: cache invalidation and confirmation
// mail. Failures here are logged, never surfaced.
func (s *OrderServiceImpl) afterCommit(lines []*resolvedLine, user *model.User, order *model.Order, amountCents int64) {
	ctx := context.Background()
	for _, line := range lines {
		if line.event != nil {
			if err := s.seatCache.Invalidate(ctx, line.event.ID); err != nil {
				s.logger.Warn("seat cache invalidation failed", zap.Int64("event_id", line.event.ID), zap.Error(err))
			}
		}
	}

	ref := ""
	if order.ReferenceNumber != nil {
		ref = *order.ReferenceNumber
	}
	total := decimal.NewFromInt(amountCents).Div(decimal.NewFromInt(100)).StringFixed(2)
	job := &model.MailJob{
		Template:  mailer.TemplateOrderConfirmation,
		Recipient: user.Email,
		Subject:   "Order confirmation",
		Merge: map[string]string{
			"name":             user.FirstName,
			"reference_number": ref,
			"total":            total,
		},
	}
	if err := s.mailQueue.PublishMail(ctx, job); err != nil {
		s.logger.Warn("order confirmation mail not queued", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	// One event-detail mail per event-backed line.
	for _, line := range lines {
		if line.event == nil {
			continue
		}
		detail := &model.MailJob{
			Template:  mailer.TemplateEventDetail,
			Recipient: user.Email,
			Subject:   "Event details: " + line.event.Name,
			Merge: map[string]string{
				"name":       user.FirstName,
				"event":      line.event.Name,
				"start_time": line.event.StartTime.Format(time.RFC1123),
				"end_time":   line.event.EndTime.Format(time.RFC1123),
			},
		}
		if err := s.mailQueue.PublishMail(ctx, detail); err != nil {
			s.logger.Warn("event detail mail not queued",
				zap.Int64("order_id", order.ID),
				zap.Int64("event_id", line.event.ID),
				zap.Error(err))
		}
	}
}

func (s *OrderServiceImpl) ListOrders(ctx context.Context, userID int64) ([]*model.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID)
}

func (s *OrderServiceImpl) GetOrderByID(ctx context.Context, userID, id int64) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperrors.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderServiceImpl) ValidateCoupon(ctx context.Context, userID int64, code string, cart []model.CartLine) (*CouponPreview, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines, err := s.resolveLines(ctx, user, cart)
	if err != nil {
		return nil, err
	}
	pricings := make([]*LinePricing, len(lines))
	for i, line := range lines {
		pricings[i] = line.pricing
	}
	return s.pricing.PreviewCoupon(ctx, user, code, pricings)
}
