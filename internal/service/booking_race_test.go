package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"retreat-booking-backend/config"
	"retreat-booking-backend/internal/model"
	"retreat-booking-backend/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// The booking race tests run against a real database: the serializable
// transaction plus the FOR UPDATE re-check is the mechanism under test, and
// it cannot be exercised through a fake transaction manager. Set
// TEST_DATABASE_URL to run them.

const bookingTestSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		phone TEXT,
		city TEXT,
		academic_program_code TEXT,
		faculty TEXT,
		student_number TEXT,
		tickets INT NOT NULL DEFAULT 0,
		membership_ends_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS events (
		id BIGSERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		details TEXT,
		price DOUBLE PRECISION NOT NULL,
		seats INT NOT NULL,
		reserved_seats INT NOT NULL DEFAULT 0,
		next_user_notified INT NOT NULL DEFAULT 0,
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		min_day_refund INT NOT NULL,
		min_day_exchange INT NOT NULL,
		refund_rate INT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		transaction_date TIMESTAMPTZ NOT NULL,
		authorization_id TEXT,
		settlement_id TEXT,
		reference_number TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		deleted_at TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS order_lines (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL,
		product_kind TEXT NOT NULL,
		product_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		cost DOUBLE PRECISION NOT NULL,
		coupon_id BIGINT,
		coupon_real_value DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS reservations (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		event_id BIGINT NOT NULL,
		order_line_id BIGINT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_present BOOLEAN NOT NULL DEFAULT FALSE,
		cancelation_reason TEXT,
		cancelation_action TEXT,
		cancelation_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS wait_queue_entries (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		event_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (user_id, event_id)
	);
	CREATE TABLE IF NOT EXISTS wait_queue_notifications (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		event_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`

func bookingTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	_, err = pool.Exec(ctx, bookingTestSchema)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE users, events, orders, order_lines, reservations,
		wait_queue_entries, wait_queue_notifications RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func newBookingServiceAgainstDB(pool *pgxpool.Pool) (OrderService, repository.UserRepository, repository.EventRepository, repository.ReservationRepository) {
	cfg := config.BookingConfig{TaxRate: 0.14975, NotificationLifetimeDays: 30}
	userRepo := repository.NewUserRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	waitQueueRepo := repository.NewWaitQueueRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)

	gw := &mockGateway{}
	mailQueue := &mockMailQueue{}
	mailQueue.On("PublishMail", mock.Anything, mock.Anything).Return(nil).Maybe()
	seatCache := &mockSeatCache{}
	seatCache.On("Invalidate", mock.Anything, mock.Anything).Return(nil).Maybe()

	s := &OrderServiceImpl{
		pool:            pool,
		txManager:       repository.NewTxManager(pool),
		userRepo:        userRepo,
		eventRepo:       eventRepo,
		productRepo:     repository.NewProductRepository(pool),
		orderRepo:       repository.NewOrderRepository(pool),
		reservationRepo: reservationRepo,
		couponRepo:      couponRepo,
		waitQueueRepo:   waitQueueRepo,
		profileRepo:     repository.NewPaymentProfileRepository(pool),
		pricing:         NewPricingService(pool, couponRepo, cfg),
		availability:    NewAvailabilityService(reservationRepo, waitQueueRepo),
		gateway:         gw,
		mailQueue:       mailQueue,
		seatCache:       seatCache,
		cfg:             cfg,
		logger:          zap.NewNop(),
		now:             time.Now,
	}
	return s, userRepo, eventRepo, reservationRepo
}

func createBookableUser(t *testing.T, userRepo repository.UserRepository, email string) *model.User {
	t.Helper()
	ctx := context.Background()
	user, err := userRepo.Create(ctx, &model.CreateUserRequest{
		Email:     email,
		FirstName: "Race",
		LastName:  "Tester",
	})
	require.NoError(t, err)

	phone := "555-0100"
	city := "Montreal"
	user, err = userRepo.Update(ctx, user.ID, model.UpdateUserParams{Phone: &phone, City: &city})
	require.NoError(t, err)
	return user
}

// Two buyers race for the last seat of a free event. Exactly one booking
// commits, whichever way the transactions interleave.
func TestCreateOrder_LastSeatRace_ExactlyOneSucceeds(t *testing.T) {
	pool := bookingTestPool(t)
	ctx := context.Background()
	s, userRepo, eventRepo, reservationRepo := newBookingServiceAgainstDB(pool)

	event, err := eventRepo.Create(ctx, &model.Event{
		Kind:           model.EventKindRetreat,
		Name:           "Last Seat Retreat",
		Price:          0,
		Seats:          1,
		StartTime:      time.Now().AddDate(0, 0, 30),
		EndTime:        time.Now().AddDate(0, 0, 32),
		MinDayRefund:   7,
		MinDayExchange: 3,
		RefundRate:     80,
		IsActive:       true,
	})
	require.NoError(t, err)

	buyers := []*model.User{
		createBookableUser(t, userRepo, "race1@test.local"),
		createBookableUser(t, userRepo, "race2@test.local"),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(buyers))
	for i, buyer := range buyers {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			_, errs[i] = s.CreateOrder(ctx, model.CreateOrderRequest{
				UserID: userID,
				Lines: []model.CartLine{
					{ProductKind: model.ProductKindRetreat, ProductID: event.ID, Quantity: 1},
				},
			})
		}(i, buyer.ID)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
		} else {
			t.Logf("buyer %d rejected: %v", i, err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one booking must win the last seat")

	count, err := reservationRepo.CountActiveByEvent(ctx, pool, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "the seat must not be double-booked")
}

// Many buyers against a small event: the number of committed reservations
// never exceeds the seat count.
func TestCreateOrder_ConcurrentBookings_NoOversell(t *testing.T) {
	pool := bookingTestPool(t)
	ctx := context.Background()
	s, userRepo, eventRepo, reservationRepo := newBookingServiceAgainstDB(pool)

	const concurrentBuyers = 20
	const seats = 5

	event, err := eventRepo.Create(ctx, &model.Event{
		Kind:           model.EventKindRetreat,
		Name:           "Popular Retreat",
		Price:          0,
		Seats:          seats,
		StartTime:      time.Now().AddDate(0, 0, 30),
		EndTime:        time.Now().AddDate(0, 0, 32),
		MinDayRefund:   7,
		MinDayExchange: 3,
		RefundRate:     80,
		IsActive:       true,
	})
	require.NoError(t, err)

	userIDs := make([]int64, concurrentBuyers)
	for i := range userIDs {
		userIDs[i] = createBookableUser(t, userRepo, fmt.Sprintf("buyer%d@test.local", i)).ID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for _, userID := range userIDs {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := s.CreateOrder(ctx, model.CreateOrderRequest{
				UserID: userID,
				Lines: []model.CartLine{
					{ProductKind: model.ProductKindRetreat, ProductID: event.ID, Quantity: 1},
				},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(userID)
	}
	wg.Wait()

	count, err := reservationRepo.CountActiveByEvent(ctx, pool, event.ID)
	require.NoError(t, err)
	t.Logf("%d buyers competing for %d seats - booked: %d", concurrentBuyers, seats, count)
	assert.Equal(t, succeeded, count, "committed reservations must match successful orders")
	assert.LessOrEqual(t, count, seats, "reservations must never exceed the seat count")
}
