package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"retreat-booking-backend/config"
	"retreat-booking-backend/internal/cache"
	"retreat-booking-backend/internal/database"
	"retreat-booking-backend/internal/gateway"
	"retreat-booking-backend/internal/handler"
	"retreat-booking-backend/internal/mailer"
	"retreat-booking-backend/internal/queue"
	"retreat-booking-backend/internal/repository"
	"retreat-booking-backend/internal/scheduler"
	"retreat-booking-backend/internal/service"
	"retreat-booking-backend/internal/worker"
	"retreat-booking-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	cfg := config.LoadConfig()
	logg := logger.WithComponent("main")

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		logg.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logg.Fatal("Failed to initialize redis", zap.Error(err))
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	txManager := repository.NewTxManager(pool)
	userRepo := repository.NewUserRepository(pool)
	eventRepo := repository.NewEventRepository(pool)
	productRepo := repository.NewProductRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	waitQueueRepo := repository.NewWaitQueueRepository(pool)
	profileRepo := repository.NewPaymentProfileRepository(pool)
	refundRepo := repository.NewRefundRepository(pool)

	// Infrastructure.
	seatCache := cache.NewSeatInventoryManager(rdb)
	paymentGateway := gateway.NewStripeGateway(cfg.Stripe)

	mailQueue, err := queue.NewRedisStreamMailQueue(rdb, hostnameConsumerID(), nil)
	if err != nil {
		logg.Fatal("Failed to initialize mail queue", zap.Error(err))
	}

	var notifier mailer.Notifier
	if cfg.SMTP.Enabled {
		notifier = mailer.NewSMTPNotifier(cfg.SMTP)
	} else {
		notifier = mailer.NewLogNotifier()
	}
	mailWorker := worker.NewMailWorker(notifier, mailQueue)
	go func() {
		if err := mailWorker.Start(ctx); err != nil {
			logg.Error("Mail worker stopped", zap.Error(err))
		}
	}()

	// Services.
	pricing := service.NewPricingService(pool, couponRepo, cfg.Booking)
	availability := service.NewAvailabilityService(reservationRepo, waitQueueRepo)
	waitQueueService := service.NewWaitQueueService(pool, txManager, eventRepo, userRepo, waitQueueRepo, mailQueue, cfg.Booking)
	eventService := service.NewEventService(pool, eventRepo, availability, seatCache)
	userService := service.NewUserService(userRepo)
	productService := service.NewProductService(productRepo)
	orderService := service.NewOrderService(
		pool, txManager,
		userRepo, eventRepo, productRepo, orderRepo, reservationRepo,
		couponRepo, waitQueueRepo, profileRepo,
		pricing, availability, paymentGateway, mailQueue, seatCache,
		cfg.Booking,
	)
	reservationService := service.NewReservationService(
		pool, txManager,
		userRepo, eventRepo, orderRepo, reservationRepo, refundRepo,
		waitQueueRepo, profileRepo,
		pricing, availability, waitQueueService, paymentGateway, mailQueue, seatCache,
		cfg.Booking,
	)

	sched, err := scheduler.New(eventRepo, waitQueueService, cfg.Booking)
	if err != nil {
		logg.Fatal("Failed to initialize scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		logg.Fatal("Failed to start scheduler", zap.Error(err))
	}

	router := gin.Default()
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	handler.NewUserHandler(userService).RegisterRoutes(router)
	handler.NewEventHandler(eventService, waitQueueService).RegisterRoutes(router)
	handler.NewProductHandler(productService).RegisterRoutes(router)
	handler.NewOrderHandler(orderService).RegisterRoutes(router)
	handler.NewReservationHandler(reservationService).RegisterRoutes(router)
	handler.NewWaitQueueHandler(waitQueueService).RegisterRoutes(router)

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router,
	}
	go func() {
		logg.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logg.Info("Shutting down")

	if err := sched.Stop(); err != nil {
		logg.Warn("Scheduler shutdown failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Warn("HTTP shutdown failed", zap.Error(err))
	}
}

func hostnameConsumerID() string {
	host, err := os.Hostname()
	if err != nil {
		return ""
	}
	return host
}
