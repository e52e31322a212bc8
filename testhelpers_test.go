//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/adapter"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/application"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/credit"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/domain/pricing"
	boardingEvents "github.com/Kilat-Pet-Delivery/service-boarding/internal/events"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/idempotency"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-boarding/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/events"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/kafka"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// boardingStack holds wired-up service components.
type boardingStack struct {
	Bookings        *application.BookingService
	Payments        *application.PaymentService
	Credits         *application.CreditService
	Consumer        *boardingEvents.GatewayEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	// Start PostgreSQL container with log-based wait strategy.
	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_boarding",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_boarding sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
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
	))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, events.TopicBookingEvents, events.TopicPaymentEvents, events.TopicGatewayEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBoardingStack wires the booking and payment services against the
// containers. The mock gateway leaves holds PROCESSING so tests drive
// authorization through relayed webhook events.
func setupBoardingStack(t *testing.T, db *gorm.DB, brokers []string) *boardingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	m := metrics.New(nil)

	bookingRepo := repository.NewGormBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	chargeRepo := repository.NewGormAdditionalChargeRepository(db)
	clientRepo := repository.NewGormClientRepository(db)
	producer := kafka.NewProducer(brokers, logger)
	gateway := adapter.NewInstrumentedGateway(adapter.NewMockGateway(logger, false), 5*time.Second, m, logger)

	pricer, err := pricing.NewEngine(pricing.DefaultRates())
	require.NoError(t, err)

	clientSvc := application.NewClientService(clientRepo, gateway, logger)
	calendarSvc := application.NewCalendarService(repository.NewGormAvailabilityRepository(db), logger)
	couponSvc := application.NewCouponService(repository.NewGormCouponRepository(db), clientRepo, logger)
	creditSvc := application.NewCreditService(
		repository.NewGormLedgerRepository(db),
		repository.NewGormSubscriptionRepository(db),
		credit.ExpiryPolicy{Enforce: true},
		m, logger,
	)
	bookingSvc := application.NewBookingService(application.BookingDeps{
		Bookings:  bookingRepo,
		Payments:  paymentRepo,
		Charges:   chargeRepo,
		Clients:   clientRepo,
		Calendar:  calendarSvc,
		Coupons:   couponSvc,
		Credits:   creditSvc,
		Pricer:    pricer,
		Gateway:   gateway,
		Publisher: producer,
		Metrics:   m,
	}, logger)
	paymentSvc := application.NewPaymentService(
		paymentRepo, chargeRepo, bookingRepo, clientRepo, clientSvc,
		gateway, idempotency.NewMemoryStore(time.Hour), producer, m, logger,
	)

	groupID := fmt.Sprintf("test-boarding-%s", uuid.New().String()[:8])
	consumer := boardingEvents.NewGatewayEventConsumer(brokers, groupID, paymentSvc, logger)

	return &boardingStack{
		Bookings:        bookingSvc,
		Payments:        paymentSvc,
		Credits:         creditSvc,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedClientWithPet inserts a client and one adult pet.
func seedClientWithPet(t *testing.T, db *gorm.DB) (uuid.UUID, uuid.UUID) {
	t.Helper()
	now := time.Now().UTC()
	clientID, petID := uuid.New(), uuid.New()
	require.NoError(t, db.Create(&repository.ClientModel{
		ID:        clientID,
		Email:     fmt.Sprintf("owner-%s@example.com", clientID.String()[:8]),
		Name:      "Owner",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error, "failed to seed client")
	require.NoError(t, db.Create(&repository.PetModel{
		ID:        petID,
		OwnerID:   clientID,
		Name:      "Rex",
		Species:   "dog",
		CreatedAt: now,
	}).Error, "failed to seed pet")
	return clientID, petID
}

// boardingRequest asks for nights of boarding starting next month.
func boardingRequest(petID uuid.UUID, nights int) application.CreateBookingRequest {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month()+1, 5, 10, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, nights)
	return application.CreateBookingRequest{
		QuoteRequest: application.QuoteRequest{
			ServiceType: "BOARDING",
			PetIDs:      []uuid.UUID{petID},
			StartAt:     &start,
			EndAt:       &end,
		},
	}
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForPaymentStatus polls the payments table until the booking's payment reaches status.
func waitForPaymentStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, status string, timeout time.Duration) repository.PaymentModel {
	t.Helper()
	var result repository.PaymentModel
	require.Eventually(t, func() bool {
		var model repository.PaymentModel
		if err := db.Where("booking_id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		if model.Status == status {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "payment did not transition to %s", status)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
