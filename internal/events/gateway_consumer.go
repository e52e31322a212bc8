package events

import (
	"context"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/internal/adapter"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/events"
	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/kafka"
)

// GatewayEventHandler applies a normalized gateway event.
type GatewayEventHandler interface {
	HandleGatewayEvent(ctx context.Context, ev *adapter.GatewayEvent) error
}

// GatewayEventConsumer applies gateway webhooks relayed over Kafka by other
// instances or an ingress relay.
type GatewayEventConsumer struct {
	consumer *kafka.Consumer
	handler  GatewayEventHandler
	logger   *zap.Logger
}

// NewGatewayEventConsumer creates a consumer for the gateway events topic.
func NewGatewayEventConsumer(
	brokers []string,
	groupID string,
	handler GatewayEventHandler,
	logger *zap.Logger,
) *GatewayEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicGatewayEvents, logger)
	return &GatewayEventConsumer{
		consumer: consumer,
		handler:  handler,
		logger:   logger,
	}
}

// Start begins consuming. It blocks until the context is cancelled.
func (c *GatewayEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

func (c *GatewayEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	return handleRelayedEvent(ctx, c.handler, c.logger, msg.Value)
}

// handleRelayedEvent decodes one CloudEvent and hands it to h. Unknown types
// are skipped.
func handleRelayedEvent(ctx context.Context, h GatewayEventHandler, logger *zap.Logger, value []byte) error {
	ce, err := kafka.ParseCloudEvent(value)
	if err != nil {
		logger.Error("failed to parse cloud event from gateway topic",
			zap.Error(err),
			zap.String("raw", string(value)),
		)
		return err
	}

	if !strings.EqualFold(ce.Type, events.GatewayEventRelayed) {
		logger.Debug("ignoring unhandled gateway event type", zap.String("type", ce.Type))
		return nil
	}

	var relayed events.GatewayWebhookEvent
	if err := ce.ParseData(&relayed); err != nil {
		logger.Error("failed to parse GatewayWebhookEvent data", zap.Error(err))
		return err
	}

	logger.Info("received relayed gateway event",
		zap.String("event_id", relayed.EventID),
		zap.String("type", relayed.Type),
	)
	return h.HandleGatewayEvent(ctx, &adapter.GatewayEvent{
		ID:            relayed.EventID,
		Type:          adapter.EventType(relayed.Type),
		Reference:     relayed.Reference,
		CardBrand:     relayed.CardBrand,
		CardLast4:     relayed.CardLast4,
		InstrumentRef: relayed.InstrumentRef,
		FailureCode:   relayed.FailureCode,
		Metadata:      relayed.Metadata,
	})
}

// Close closes the underlying Kafka consumer.
func (c *GatewayEventConsumer) Close() error {
	return c.consumer.Close()
}
