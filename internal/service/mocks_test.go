package service

import (
	"context"
	"time"

	"retreat-booking-backend/internal/cache"
	"retreat-booking-backend/internal/gateway"
	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/queue"
	"retreat-booking-backend/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
)

// fakeTxManager runs the callback directly with a nil transaction; the
// repositories underneath are mocks and never touch it.
type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

func (fakeTxManager) WithSerializableTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.(*model.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) Update(ctx context.Context, id int64, params model.UpdateUserParams) (*model.User, error) {
	args := m.Called(ctx, id, params)
	if v := args.Get(0); v != nil {
		return v.(*model.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) AddTickets(ctx context.Context, tx pgx.Tx, userID int64, count int) error {
	return m.Called(ctx, tx, userID, count).Error(0)
}

func (m *mockUserRepo) ConsumeTickets(ctx context.Context, tx pgx.Tx, userID int64, count int) error {
	return m.Called(ctx, tx, userID, count).Error(0)
}

func (m *mockUserRepo) ExtendMembership(ctx context.Context, tx pgx.Tx, userID int64, until time.Time) error {
	return m.Called(ctx, tx, userID, until).Error(0)
}

type mockEventRepo struct{ mock.Mock }

func (m *mockEventRepo) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	args := m.Called(ctx, event)
	if v := args.Get(0); v != nil {
		return v.(*model.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEventRepo) List(ctx context.Context, activeOnly bool) ([]*model.Event, error) {
	args := m.Called(ctx, activeOnly)
	if v := args.Get(0); v != nil {
		return v.([]*model.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEventRepo) FindByID(ctx context.Context, id int64) (*model.Event, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEventRepo) Update(ctx context.Context, id int64, params model.UpdateEventParams) (*model.Event, error) {
	args := m.Called(ctx, id, params)
	if v := args.Get(0); v != nil {
		return v.(*model.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEventRepo) Deactivate(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockEventRepo) ListPromotable(ctx context.Context) ([]*model.Event, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]*model.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEventRepo) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id int64) (*model.Event, error) {
	args := m.Called(ctx, tx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.Event), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEventRepo) ConsumeReservedSeat(ctx context.Context, tx pgx.Tx, id int64) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *mockEventRepo) IncrementReservedSeats(ctx context.Context, tx pgx.Tx, id int64) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *mockEventRepo) SetNextUserNotified(ctx context.Context, q repository.Querier, id int64, cursor int) error {
	return m.Called(ctx, q, id, cursor).Error(0)
}

type mockProductRepo struct{ mock.Mock }

func (m *mockProductRepo) FindMembershipByID(ctx context.Context, id int64) (*model.Membership, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.Membership), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProductRepo) FindPackageByID(ctx context.Context, id int64) (*model.Package, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.Package), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProductRepo) ListMemberships(ctx context.Context, availableOnly bool) ([]*model.Membership, error) {
	args := m.Called(ctx, availableOnly)
	if v := args.Get(0); v != nil {
		return v.([]*model.Membership), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProductRepo) ListPackages(ctx context.Context, availableOnly bool) ([]*model.Package, error) {
	args := m.Called(ctx, availableOnly)
	if v := args.Get(0); v != nil {
		return v.([]*model.Package), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOrderRepo struct{ mock.Mock }

func (m *mockOrderRepo) FindByID(ctx context.Context, id int64) (*model.Order, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepo) ListByUser(ctx context.Context, userID int64) ([]*model.Order, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]*model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepo) FindLineByID(ctx context.Context, id int64) (*model.OrderLine, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.OrderLine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepo) Create(ctx context.Context, tx pgx.Tx, order *model.Order) (*model.Order, error) {
	args := m.Called(ctx, tx, order)
	if v := args.Get(0); v != nil {
		return v.(*model.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepo) CreateLine(ctx context.Context, tx pgx.Tx, line *model.OrderLine) (*model.OrderLine, error) {
	args := m.Called(ctx, tx, line)
	if v := args.Get(0); v != nil {
		return v.(*model.OrderLine), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockReservationRepo struct{ mock.Mock }

func (m *mockReservationRepo) FindByID(ctx context.Context, id int64) (*model.Reservation, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReservationRepo) ListByUser(ctx context.Context, userID int64) ([]*model.Reservation, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]*model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReservationRepo) CountActiveByEvent(ctx context.Context, q repository.Querier, eventID int64) (int, error) {
	args := m.Called(ctx, q, eventID)
	return args.Int(0), args.Error(1)
}

func (m *mockReservationRepo) ActiveIntervalsForUser(ctx context.Context, q repository.Querier, userID int64, excludeID int64) ([]model.ReservationInterval, error) {
	args := m.Called(ctx, q, userID, excludeID)
	if v := args.Get(0); v != nil {
		return v.([]model.ReservationInterval), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReservationRepo) Create(ctx context.Context, tx pgx.Tx, reservation *model.Reservation) (*model.Reservation, error) {
	args := m.Called(ctx, tx, reservation)
	if v := args.Get(0); v != nil {
		return v.(*model.Reservation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReservationRepo) Cancel(ctx context.Context, tx pgx.Tx, id int64, reason model.CancelationReason, action model.CancelationAction, at time.Time) error {
	return m.Called(ctx, tx, id, reason, action, at).Error(0)
}

func (m *mockReservationRepo) CloneAsCanceled(ctx context.Context, tx pgx.Tx, id int64, at time.Time) (int64, error) {
	args := m.Called(ctx, tx, id, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockReservationRepo) Reassign(ctx context.Context, tx pgx.Tx, id int64, newEventID int64, newOrderLineID *int64) error {
	return m.Called(ctx, tx, id, newEventID, newOrderLineID).Error(0)
}

type mockCouponRepo struct{ mock.Mock }

func (m *mockCouponRepo) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	args := m.Called(ctx, code)
	if v := args.Get(0); v != nil {
		return v.(*model.Coupon), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCouponRepo) GlobalUses(ctx context.Context, q repository.Querier, couponID int64) (int, error) {
	args := m.Called(ctx, q, couponID)
	return args.Int(0), args.Error(1)
}

func (m *mockCouponRepo) UserUses(ctx context.Context, q repository.Querier, couponID, userID int64) (int, error) {
	args := m.Called(ctx, q, couponID, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockCouponRepo) IncrementUse(ctx context.Context, tx pgx.Tx, couponID, userID int64) error {
	return m.Called(ctx, tx, couponID, userID).Error(0)
}

type mockWaitQueueRepo struct{ mock.Mock }

func (m *mockWaitQueueRepo) Subscribe(ctx context.Context, userID, eventID int64) (*model.WaitQueueEntry, error) {
	args := m.Called(ctx, userID, eventID)
	if v := args.Get(0); v != nil {
		return v.(*model.WaitQueueEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWaitQueueRepo) FindEntry(ctx context.Context, userID, eventID int64) (*model.WaitQueueEntry, error) {
	args := m.Called(ctx, userID, eventID)
	if v := args.Get(0); v != nil {
		return v.(*model.WaitQueueEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWaitQueueRepo) ListByEvent(ctx context.Context, q repository.Querier, eventID int64) ([]*model.WaitQueueEntry, error) {
	args := m.Called(ctx, q, eventID)
	if v := args.Get(0); v != nil {
		return v.([]*model.WaitQueueEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWaitQueueRepo) DeleteEntry(ctx context.Context, q repository.Querier, userID, eventID int64) error {
	return m.Called(ctx, q, userID, eventID).Error(0)
}

func (m *mockWaitQueueRepo) CreateNotification(ctx context.Context, userID, eventID int64) (*model.WaitQueueNotification, error) {
	args := m.Called(ctx, userID, eventID)
	if v := args.Get(0); v != nil {
		return v.(*model.WaitQueueNotification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWaitQueueRepo) LatestNotificationAt(ctx context.Context, eventID int64) (*time.Time, error) {
	args := m.Called(ctx, eventID)
	if v := args.Get(0); v != nil {
		return v.(*time.Time), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWaitQueueRepo) PurgeNotificationsBefore(ctx context.Context, eventID int64, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, eventID, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockWaitQueueRepo) ListNotificationsForUser(ctx context.Context, userID int64) ([]*model.WaitQueueNotification, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]*model.WaitQueueNotification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWaitQueueRepo) HasLiveNotification(ctx context.Context, q repository.Querier, userID, eventID int64) (bool, error) {
	args := m.Called(ctx, q, userID, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockWaitQueueRepo) DeleteNotificationsForUser(ctx context.Context, q repository.Querier, userID, eventID int64) error {
	return m.Called(ctx, q, userID, eventID).Error(0)
}

type mockProfileRepo struct{ mock.Mock }

func (m *mockProfileRepo) FindByUser(ctx context.Context, userID int64) (*model.PaymentProfile, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.(*model.PaymentProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProfileRepo) Create(ctx context.Context, userID int64, name, externalAPIID string) (*model.PaymentProfile, error) {
	args := m.Called(ctx, userID, name, externalAPIID)
	if v := args.Get(0); v != nil {
		return v.(*model.PaymentProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRefundRepo struct{ mock.Mock }

func (m *mockRefundRepo) ListByOrderLine(ctx context.Context, orderLineID int64) ([]*model.Refund, error) {
	args := m.Called(ctx, orderLineID)
	if v := args.Get(0); v != nil {
		return v.([]*model.Refund), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRefundRepo) Create(ctx context.Context, tx pgx.Tx, refund *model.Refund) (*model.Refund, error) {
	args := m.Called(ctx, tx, refund)
	if v := args.Get(0); v != nil {
		return v.(*model.Refund), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRefundRepo) ExistsForOrderLine(ctx context.Context, q repository.Querier, orderLineID int64) (bool, error) {
	args := m.Called(ctx, q, orderLineID)
	return args.Bool(0), args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreateProfile(ctx context.Context, email, name string) (string, error) {
	args := m.Called(ctx, email, name)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) AddCard(ctx context.Context, profileID, singleUseToken string) (string, error) {
	args := m.Called(ctx, profileID, singleUseToken)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Charge(ctx context.Context, amountCents int64, paymentToken, referenceNumber string) (*gateway.ChargeResult, error) {
	args := m.Called(ctx, amountCents, paymentToken, referenceNumber)
	if v := args.Get(0); v != nil {
		return v.(*gateway.ChargeResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, settlementID string, amountCents int64) (*gateway.RefundResult, error) {
	args := m.Called(ctx, settlementID, amountCents)
	if v := args.Get(0); v != nil {
		return v.(*gateway.RefundResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMailQueue struct{ mock.Mock }

func (m *mockMailQueue) PublishMail(ctx context.Context, job *model.MailJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockMailQueue) SubscribeMail(ctx context.Context) (<-chan queue.Delivery, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(<-chan queue.Delivery), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSeatCache struct{ mock.Mock }

func (m *mockSeatCache) WarmUp(ctx context.Context, eventID int64, placesRemaining, reservedSeats int) error {
	return m.Called(ctx, eventID, placesRemaining, reservedSeats).Error(0)
}

func (m *mockSeatCache) Get(ctx context.Context, eventID int64) (cache.SeatInfo, bool, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(cache.SeatInfo), args.Bool(1), args.Error(2)
}

func (m *mockSeatCache) Invalidate(ctx context.Context, eventID int64) error {
	return m.Called(ctx, eventID).Error(0)
}

type mockWaitQueueService struct{ mock.Mock }

func (m *mockWaitQueueService) Subscribe(ctx context.Context, userID, eventID int64) (*model.WaitQueueEntry, error) {
	args := m.Called(ctx, userID, eventID)
	if v := args.Get(0); v != nil {
		return v.(*model.WaitQueueEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWaitQueueService) Unsubscribe(ctx context.Context, userID, eventID int64) error {
	return m.Called(ctx, userID, eventID).Error(0)
}

func (m *mockWaitQueueService) Notify(ctx context.Context, eventID int64) (*model.NotifyResult, error) {
	args := m.Called(ctx, eventID)
	if v := args.Get(0); v != nil {
		return v.(*model.NotifyResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockWaitQueueService) ListNotifications(ctx context.Context, userID int64) ([]*model.WaitQueueNotification, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.([]*model.WaitQueueNotification), args.Error(1)
	}
	return nil, args.Error(1)
}
