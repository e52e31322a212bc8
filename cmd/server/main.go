package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/adapter"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/application"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/config"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/pricing"
	boardingEvents "github.com/Kilat-Pet-Delivery/service-boarding/internal/events"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/handler"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/idempotency"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/scheduler"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/auth"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/database"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/health"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/kafka"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/logger"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/middleware"
)

const serviceName = "service-boarding"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("starting "+serviceName,
		zap.String("port", cfg.Port),
		zap.String("gateway", cfg.GatewayConfig.Provider),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	db, err := database.Connect(dbConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := autoMigrate(db); err != nil {
			zapLogger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		zapLogger.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), "migrations", zapLogger); err != nil {
			zapLogger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		15*time.Minute,
		7*24*time.Hour,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, zapLogger)
	defer kafkaProducer.Close()

	// Payment gateway
	gateway, err := newGateway(cfg.GatewayConfig, m, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to initialize payment gateway", zap.Error(err))
	}

	// Webhook deduplication
	idemStore, closeStore := newIdempotencyStore(cfg, zapLogger)
	defer closeStore()

	// Pricing
	pricer, err := pricing.NewEngine(cfg.Pricing)
	if err != nil {
		zapLogger.Fatal("invalid pricing configuration", zap.Error(err))
	}

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	chargeRepo := repository.NewGormAdditionalChargeRepository(db)
	clientRepo := repository.NewGormClientRepository(db)
	calendarRepo := repository.NewGormAvailabilityRepository(db)
	couponRepo := repository.NewGormCouponRepository(db)
	ledgerRepo := repository.NewGormLedgerRepository(db)
	subRepo := repository.NewGormSubscriptionRepository(db)

	// Initialize application services
	clientService := application.NewClientService(clientRepo, gateway, zapLogger)
	calendarService := application.NewCalendarService(calendarRepo, zapLogger)
	couponService := application.NewCouponService(couponRepo, clientRepo, zapLogger)
	creditService := application.NewCreditService(ledgerRepo, subRepo, cfg.Credits, m, zapLogger)
	bookingService := application.NewBookingService(application.BookingDeps{
		Bookings:       bookingRepo,
		Payments:       paymentRepo,
		Charges:        chargeRepo,
		Clients:        clientRepo,
		Calendar:       calendarService,
		Coupons:        couponService,
		Credits:        creditService,
		Pricer:         pricer,
		Gateway:        gateway,
		Publisher:      kafkaProducer,
		Metrics:        m,
		DepositPercent: cfg.BookingConfig.DepositPercent,
	}, zapLogger)
	paymentService := application.NewPaymentService(
		paymentRepo, chargeRepo, bookingRepo, clientRepo, clientService,
		gateway, idemStore, kafkaProducer, m, zapLogger,
	)
	cleanupService := application.NewCleanupService(
		bookingRepo, paymentRepo, gateway, kafkaProducer, m,
		cfg.CleanupConfig.PendingTTL, cfg.CleanupConfig.ProcessingTTL, cfg.CleanupConfig.BatchSize,
		zapLogger,
	)

	// Scheduled jobs
	jobs := scheduler.New(zapLogger)
	if err := jobs.Register(cfg.CleanupConfig.Spec, "stale_booking_cleanup", cleanupService.Run); err != nil {
		zapLogger.Fatal("failed to schedule cleanup", zap.Error(err))
	}
	renew := func(ctx context.Context) error {
		_, err := creditService.RenewDueSubscriptions(ctx, cfg.CleanupConfig.BatchSize)
		return err
	}
	if err := jobs.Register(cfg.CleanupConfig.RenewalSpec, "credit_plan_renewal", renew); err != nil {
		zapLogger.Fatal("failed to schedule renewals", zap.Error(err))
	}

	// Kafka consumer for relayed gateway events
	gatewayConsumer := boardingEvents.NewGatewayEventConsumer(
		cfg.KafkaConfig.Brokers,
		cfg.KafkaConfig.GroupPrefix+"boarding-service",
		paymentService,
		zapLogger,
	)
	defer gatewayConsumer.Close()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.LoggerMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check and metrics routes
	healthHandler := health.NewHandler(db, serviceName)
	healthHandler.RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Register API routes
	apiV1 := router.Group("/api/v1")
	handler.NewBookingHandler(bookingService).RegisterRoutes(apiV1, jwtManager)
	handler.NewPaymentHandler(paymentService).RegisterRoutes(apiV1, jwtManager)
	handler.NewCouponHandler(couponService).RegisterRoutes(apiV1, jwtManager)
	handler.NewCreditHandler(creditService).RegisterRoutes(apiV1, jwtManager)
	handler.NewCalendarHandler(calendarService).RegisterRoutes(apiV1, jwtManager)
	handler.NewClientHandler(clientService).RegisterRoutes(apiV1, jwtManager)
	handler.NewAdminHandler(paymentService, creditService, clientService).RegisterRoutes(apiV1, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		zapLogger.Info("starting gateway event consumer")
		return gatewayConsumer.Start(gctx)
	})
	g.Go(func() error {
		return jobs.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down " + serviceName + "...")

		// Shutdown HTTP server with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("service stopped with error", zap.Error(err))
	}
	zapLogger.Info(serviceName + " stopped")
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&repository.ClientModel{},
		&repository.PetModel{},
		&repository.AvailabilityModel{},
		&repository.CouponModel{},
		&repository.CouponUsageModel{},
		&repository.BookingModel{},
		&repository.BookingPetModel{},
		&repository.PaymentModel{},
		&repository.AdditionalChargeModel{},
		&repository.CreditBatchModel{},
		&repository.CreditTransactionModel{},
		&repository.SubscriptionModel{},
	)
}

// newGateway builds the configured provider wrapped with timeouts, tracing and metrics.
func newGateway(cfg config.GatewayConfig, m *metrics.Metrics, logger *zap.Logger) (adapter.Gateway, error) {
	var provider adapter.Gateway
	switch cfg.Provider {
	case "omise":
		omise, err := adapter.NewOmiseGateway(cfg.OmisePublic, cfg.OmiseSecret, logger)
		if err != nil {
			return nil, err
		}
		provider = omise
	default:
		provider = adapter.NewMockGateway(logger, cfg.AutoAuthorize)
	}
	return adapter.NewInstrumentedGateway(provider, cfg.Timeout, m, logger), nil
}

// newIdempotencyStore uses Redis when configured so deduplication holds across
// instances, and an in-process store otherwise.
func newIdempotencyStore(cfg *config.ServiceConfig, logger *zap.Logger) (idempotency.Store, func()) {
	if cfg.RedisConfig.Addr == "" {
		logger.Warn("redis not configured, webhook deduplication is per instance")
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})
	return idempotency.NewRedisStore(client, "boarding:webhook:", cfg.IdempotencyTTL), func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
}
