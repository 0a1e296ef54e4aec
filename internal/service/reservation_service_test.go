package service

import (
	"context"
	"testing"
	"time"

	"retreat-booking-backend/config"
	"retreat-booking-backend/internal/gateway"
	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type reservationServiceMocks struct {
	userRepo    *mockUserRepo
	eventRepo   *mockEventRepo
	orderRepo   *mockOrderRepo
	resRepo     *mockReservationRepo
	refundRepo  *mockRefundRepo
	wqRepo      *mockWaitQueueRepo
	profileRepo *mockProfileRepo
	waitQueue   *mockWaitQueueService
	gateway     *mockGateway
	mailQueue   *mockMailQueue
	seatCache   *mockSeatCache
}

func newReservationServiceForTest() (*ReservationServiceImpl, *reservationServiceMocks) {
	m := &reservationServiceMocks{
		userRepo:    &mockUserRepo{},
		eventRepo:   &mockEventRepo{},
		orderRepo:   &mockOrderRepo{},
		resRepo:     &mockReservationRepo{},
		refundRepo:  &mockRefundRepo{},
		wqRepo:      &mockWaitQueueRepo{},
		profileRepo: &mockProfileRepo{},
		waitQueue:   &mockWaitQueueService{},
		gateway:     &mockGateway{},
		mailQueue:   &mockMailQueue{},
		seatCache:   &mockSeatCache{},
	}
	cfg := config.BookingConfig{TaxRate: 0.14975}
	pricing := &PricingServiceImpl{
		couponRepo: &mockCouponRepo{},
		cfg:        cfg,
		now:        func() time.Time { return testNow },
	}
	s := &ReservationServiceImpl{
		txManager:       fakeTxManager{},
		userRepo:        m.userRepo,
		eventRepo:       m.eventRepo,
		orderRepo:       m.orderRepo,
		reservationRepo: m.resRepo,
		refundRepo:      m.refundRepo,
		waitQueueRepo:   m.wqRepo,
		profileRepo:     m.profileRepo,
		pricing:         pricing,
		availability:    NewAvailabilityService(m.resRepo, m.wqRepo),
		waitQueue:       m.waitQueue,
		gateway:         m.gateway,
		mailQueue:       m.mailQueue,
		seatCache:       m.seatCache,
		cfg:             cfg,
		logger:          zap.NewNop(),
		now:             func() time.Time { return testNow },
	}
	return s, m
}

func int64Ptr(v int64) *int64 { return &v }

func paidReservation() (*model.Reservation, *model.OrderLine, *model.Order) {
	settlement := "ch_1"
	res := &model.Reservation{
		ID:          50,
		UserID:      1,
		EventID:     10,
		OrderLineID: int64Ptr(200),
		IsActive:    true,
	}
	line := &model.OrderLine{ID: 200, OrderID: 100, Quantity: 1, Cost: 80}
	order := &model.Order{ID: 100, UserID: 1, SettlementID: &settlement}
	return res, line, order
}

// quietTail stubs the non-fatal post-commit work shared by cancel and
// exchange.
func quietTail(m *reservationServiceMocks) {
	m.seatCache.On("Invalidate", mock.Anything, mock.Anything).Return(nil)
	m.waitQueue.On("Notify", mock.Anything, mock.Anything).Return(&model.NotifyResult{}, nil).Maybe()
	m.userRepo.On("FindByID", mock.Anything, int64(1)).Return(eligibleUser(), nil)
	m.mailQueue.On("PublishMail", mock.Anything, mock.Anything).Return(nil)
}

func TestReservationService_Cancel_Refunded(t *testing.T) {
	ctx := context.Background()
	s, m := newReservationServiceForTest()

	res, line, order := paidReservation()
	event := testEvent(10, 0, 0)

	m.resRepo.On("FindByID", ctx, res.ID).Return(res, nil)
	m.eventRepo.On("FindByID", ctx, event.ID).Return(event, nil)
	m.orderRepo.On("FindLineByID", ctx, line.ID).Return(line, nil)
	m.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)
	m.refundRepo.On("ExistsForOrderLine", ctx, mock.Anything, line.ID).Return(false, nil)

	// 80 * 80% = 64, taxed: 64 * 1.14975 = 73.58
	m.gateway.On("Refund", ctx, "ch_1", int64(7358)).Return(&gateway.RefundResult{RefundID: "re_1"}, nil)

	m.resRepo.On("Cancel", mock.Anything, mock.Anything, res.ID,
		model.CancelationReasonUser, model.CancelationActionRefunded, testNow).Return(nil)
	m.refundRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(r *model.Refund) bool {
		return r.OrderLineID == line.ID && r.Amount == 73.58 && r.Details == "cancelation refund"
	})).Return(&model.Refund{ID: 1}, nil)

	m.eventRepo.On("FindByIDWithLock", mock.Anything, mock.Anything, event.ID).Return(event, nil)
	m.resRepo.On("CountActiveByEvent", mock.Anything, mock.Anything, event.ID).Return(5, nil)

	quietTail(m)

	_, err := s.Cancel(ctx, 1, res.ID)
	require.NoError(t, err)

	m.gateway.AssertExpectations(t)
	m.refundRepo.AssertExpectations(t)
	m.eventRepo.AssertNotCalled(t, "IncrementReservedSeats", mock.Anything, mock.Anything, mock.Anything)
}

func TestReservationService_Cancel_PastDeadlineNotRefunded(t *testing.T) {
	ctx := context.Background()
	s, m := newReservationServiceForTest()

	res, line, order := paidReservation()
	event := testEvent(10, 0, 0)
	// Starting in 2 days with a 7-day refund window: too late.
	event.StartTime = testNow.AddDate(0, 0, 2)
	event.EndTime = event.StartTime.Add(48 * time.Hour)

	m.resRepo.On("FindByID", ctx, res.ID).Return(res, nil)
	m.eventRepo.On("FindByID", ctx, event.ID).Return(event, nil)
	m.orderRepo.On("FindLineByID", ctx, line.ID).Return(line, nil)
	m.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)

	m.resRepo.On("Cancel", mock.Anything, mock.Anything, res.ID,
		model.CancelationReasonUser, model.CancelationActionNotRefunded, testNow).Return(nil)
	m.eventRepo.On("FindByIDWithLock", mock.Anything, mock.Anything, event.ID).Return(event, nil)
	m.resRepo.On("CountActiveByEvent", mock.Anything, mock.Anything, event.ID).Return(5, nil)

	quietTail(m)

	_, err := s.Cancel(ctx, 1, res.ID)
	require.NoError(t, err)

	m.gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
	m.refundRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestReservationService_Cancel_LastSeatGoesToReservedPool(t *testing.T) {
	ctx := context.Background()
	s, m := newReservationServiceForTest()

	res, line, order := paidReservation()
	event := testEvent(10, 0, 0)

	m.resRepo.On("FindByID", ctx, res.ID).Return(res, nil)
	m.eventRepo.On("FindByID", ctx, event.ID).Return(event, nil)
	m.orderRepo.On("FindLineByID", ctx, line.ID).Return(line, nil)
	m.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)
	m.refundRepo.On("ExistsForOrderLine", ctx, mock.Anything, line.ID).Return(false, nil)
	m.gateway.On("Refund", ctx, "ch_1", mock.Anything).Return(&gateway.RefundResult{RefundID: "re_1"}, nil)

	m.resRepo.On("Cancel", mock.Anything, mock.Anything, res.ID,
		mock.Anything, mock.Anything, testNow).Return(nil)
	m.refundRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(&model.Refund{ID: 1}, nil)

	// After the cancelation commits, 9 actives remain: the freed seat is
	// the last one and moves to the reserved pool.
	m.eventRepo.On("FindByIDWithLock", mock.Anything, mock.Anything, event.ID).Return(event, nil)
	m.resRepo.On("CountActiveByEvent", mock.Anything, mock.Anything, event.ID).Return(9, nil)
	m.eventRepo.On("IncrementReservedSeats", mock.Anything, mock.Anything, event.ID).Return(nil)

	quietTail(m)

	_, err := s.Cancel(ctx, 1, res.ID)
	require.NoError(t, err)
	m.eventRepo.AssertExpectations(t)
}

func TestReservationService_Cancel_PersistFailureAfterRefundIsReconciliation(t *testing.T) {
	ctx := context.Background()
	s, m := newReservationServiceForTest()

	res, line, order := paidReservation()
	ref := "ref-1"
	order.ReferenceNumber = &ref
	event := testEvent(10, 0, 0)

	m.resRepo.On("FindByID", ctx, res.ID).Return(res, nil)
	m.eventRepo.On("FindByID", ctx, event.ID).Return(event, nil)
	m.orderRepo.On("FindLineByID", ctx, line.ID).Return(line, nil)
	m.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)
	m.refundRepo.On("ExistsForOrderLine", ctx, mock.Anything, line.ID).Return(false, nil)
	m.gateway.On("Refund", ctx, "ch_1", int64(7358)).Return(&gateway.RefundResult{RefundID: "re_1"}, nil)

	m.resRepo.On("Cancel", mock.Anything, mock.Anything, res.ID,
		mock.Anything, mock.Anything, testNow).Return(assert.AnError)

	_, err := s.Cancel(ctx, 1, res.ID)
	var recErr *apperrors.ReconciliationError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, "ch_1", recErr.SettlementID)
	assert.Equal(t, "ref-1", recErr.ReferenceNumber)
	assert.Equal(t, int64(7358), recErr.AmountCents)
	m.refundRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestReservationService_Cancel_MultiQuantityLineRejected(t *testing.T) {
	ctx := context.Background()
	s, m := newReservationServiceForTest()

	res, line, _ := paidReservation()
	line.Quantity = 2
	event := testEvent(10, 0, 0)

	m.resRepo.On("FindByID", ctx, res.ID).Return(res, nil)
	m.eventRepo.On("FindByID", ctx, event.ID).Return(event, nil)
	m.orderRepo.On("FindLineByID", ctx, line.ID).Return(line, nil)

	_, err := s.Cancel(ctx, 1, res.ID)
	assert.ErrorIs(t, err, apperrors.ErrQuantityNotOne)
}

func TestReservationService_Cancel_OwnershipEnforced(t *testing.T) {
	ctx := context.Background()
	s, m := newReservationServiceForTest()

	res, _, _ := paidReservation()
	res.UserID = 2
	m.resRepo.On("FindByID", ctx, res.ID).Return(res, nil)

	_, err := s.Cancel(ctx, 1, res.ID)
	assert.ErrorIs(t, err, apperrors.ErrReservationNotFound)
}

func TestReservationService_Exchange_UpgradeChargesDelta(t *testing.T) {
	ctx := context.Background()
	s, m := newReservationServiceForTest()

	res, line, order := paidReservation()
	oldEvent := testEvent(10, 0, 0)
	newEvent := testEvent(10, 0, 0)
	newEvent.ID = 11
	newEvent.Price = 100
	newEvent.StartTime = oldEvent.StartTime.AddDate(0, 0, 7)
	newEvent.EndTime = newEvent.StartTime.Add(48 * time.Hour)

	m.resRepo.On("FindByID", ctx, res.ID).Return(res, nil)
	m.userRepo.On("FindByID", mock.Anything, int64(1)).Return(eligibleUser(), nil)
	m.eventRepo.On("FindByID", ctx, oldEvent.ID).Return(oldEvent, nil)
	m.eventRepo.On("FindByID", ctx, newEvent.ID).Return(newEvent, nil)
	m.orderRepo.On("FindLineByID", ctx, line.ID).Return(line, nil)
	m.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)

	m.resRepo.On("CountActiveByEvent", mock.Anything, mock.Anything, newEvent.ID).Return(0, nil)
	m.resRepo.On("ActiveIntervalsForUser", mock.Anything, mock.Anything, int64(1), res.ID).
		Return([]model.ReservationInterval{}, nil)

	// Delta 20, taxed: 20 * 1.14975 = 23.00
	m.gateway.On("Charge", ctx, int64(2300), "tok_visa", mock.Anything).
		Return(&gateway.ChargeResult{AuthorizationID: "a2", SettlementID: "ch_2", ReferenceNumber: "r2"}, nil)

	m.eventRepo.On("FindByIDWithLock", mock.Anything, mock.Anything, newEvent.ID).Return(newEvent, nil)
	m.resRepo.On("CloneAsCanceled", mock.Anything, mock.Anything, res.ID, testNow).Return(int64(999), nil)
	m.orderRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return(&model.Order{ID: 101, UserID: 1}, nil)
	m.orderRepo.On("CreateLine", mock.Anything, mock.Anything, mock.MatchedBy(func(l *model.OrderLine) bool {
		return l.ProductID == newEvent.ID && l.Cost == 20.0
	})).Return(&model.OrderLine{ID: 201, OrderID: 101}, nil)
	m.resRepo.On("Reassign", mock.Anything, mock.Anything, res.ID, newEvent.ID, int64Ptr(201)).Return(nil)

	quietTail(m)

	_, err := s.Exchange(ctx, res.ID, model.ExchangeRequest{
		UserID:       1,
		NewEventID:   newEvent.ID,
		PaymentToken: "tok_visa",
	})
	require.NoError(t, err)
	m.gateway.AssertExpectations(t)
	m.resRepo.AssertExpectations(t)
}

func TestReservationService_Exchange_DowngradeRefundsDelta(t *testing.T) {
	ctx := context.Background()
	s, m := newReservationServiceForTest()

	res, line, order := paidReservation()
	oldEvent := testEvent(10, 0, 0)
	newEvent := testEvent(10, 0, 0)
	newEvent.ID = 11
	newEvent.Price = 60
	newEvent.StartTime = oldEvent.StartTime.AddDate(0, 0, 7)
	newEvent.EndTime = newEvent.StartTime.Add(48 * time.Hour)

	m.resRepo.On("FindByID", ctx, res.ID).Return(res, nil)
	m.userRepo.On("FindByID", mock.Anything, int64(1)).Return(eligibleUser(), nil)
	m.eventRepo.On("FindByID", ctx, oldEvent.ID).Return(oldEvent, nil)
	m.eventRepo.On("FindByID", ctx, newEvent.ID).Return(newEvent, nil)
	m.orderRepo.On("FindLineByID", ctx, line.ID).Return(line, nil)
	m.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)

	m.resRepo.On("CountActiveByEvent", mock.Anything, mock.Anything, newEvent.ID).Return(0, nil)
	m.resRepo.On("ActiveIntervalsForUser", mock.Anything, mock.Anything, int64(1), res.ID).
		Return([]model.ReservationInterval{}, nil)

	m.gateway.On("Refund", ctx, "ch_1", int64(2300)).Return(&gateway.RefundResult{RefundID: "re_2"}, nil)

	m.eventRepo.On("FindByIDWithLock", mock.Anything, mock.Anything, newEvent.ID).Return(newEvent, nil)
	m.resRepo.On("CloneAsCanceled", mock.Anything, mock.Anything, res.ID, testNow).Return(int64(999), nil)
	m.refundRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(r *model.Refund) bool {
		return r.OrderLineID == line.ID && r.Amount == 23.0 && r.Details == "exchange refund"
	})).Return(&model.Refund{ID: 2}, nil)
	// No delta order: the reservation keeps its original line.
	m.resRepo.On("Reassign", mock.Anything, mock.Anything, res.ID, newEvent.ID, res.OrderLineID).Return(nil)

	quietTail(m)

	_, err := s.Exchange(ctx, res.ID, model.ExchangeRequest{UserID: 1, NewEventID: newEvent.ID})
	require.NoError(t, err)

	m.gateway.AssertExpectations(t)
	m.refundRepo.AssertExpectations(t)
	m.orderRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestReservationService_Exchange_SameEventRejected(t *testing.T) {
	ctx := context.Background()
	s, m := newReservationServiceForTest()

	res, _, _ := paidReservation()
	event := testEvent(10, 0, 0)

	m.resRepo.On("FindByID", ctx, res.ID).Return(res, nil)
	m.userRepo.On("FindByID", ctx, int64(1)).Return(eligibleUser(), nil)
	m.eventRepo.On("FindByID", ctx, event.ID).Return(event, nil)

	_, err := s.Exchange(ctx, res.ID, model.ExchangeRequest{UserID: 1, NewEventID: event.ID})
	assert.ErrorIs(t, err, apperrors.ErrExchangeSameEvent)
}

func TestReservationService_Exchange_TooLate(t *testing.T) {
	ctx := context.Background()
	s, m := newReservationServiceForTest()

	res, line, order := paidReservation()
	oldEvent := testEvent(10, 0, 0)
	// Starts tomorrow with a 3-day exchange window.
	oldEvent.StartTime = testNow.AddDate(0, 0, 1)
	oldEvent.EndTime = oldEvent.StartTime.Add(48 * time.Hour)
	newEvent := testEvent(10, 0, 0)
	newEvent.ID = 11

	m.resRepo.On("FindByID", ctx, res.ID).Return(res, nil)
	m.userRepo.On("FindByID", ctx, int64(1)).Return(eligibleUser(), nil)
	m.eventRepo.On("FindByID", ctx, oldEvent.ID).Return(oldEvent, nil)
	m.eventRepo.On("FindByID", ctx, newEvent.ID).Return(newEvent, nil)
	m.orderRepo.On("FindLineByID", ctx, line.ID).Return(line, nil)
	m.orderRepo.On("FindByID", ctx, order.ID).Return(order, nil)

	_, err := s.Exchange(ctx, res.ID, model.ExchangeRequest{UserID: 1, NewEventID: newEvent.ID})
	assert.ErrorIs(t, err, apperrors.ErrExchangeTooLate)
}

func TestReservationService_Exchange_KindMismatchRejected(t *testing.T) {
	ctx := context.Background()
	s, m := newReservationServiceForTest()

	res, _, _ := paidReservation()
	oldEvent := testEvent(10, 0, 0)
	newEvent := testEvent(10, 0, 0)
	newEvent.ID = 11
	newEvent.Kind = model.EventKindTimeSlot

	m.resRepo.On("FindByID", ctx, res.ID).Return(res, nil)
	m.userRepo.On("FindByID", ctx, int64(1)).Return(eligibleUser(), nil)
	m.eventRepo.On("FindByID", ctx, oldEvent.ID).Return(oldEvent, nil)
	m.eventRepo.On("FindByID", ctx, newEvent.ID).Return(newEvent, nil)

	_, err := s.Exchange(ctx, res.ID, model.ExchangeRequest{UserID: 1, NewEventID: newEvent.ID})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
