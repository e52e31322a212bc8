package application

import (
	"context"

	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-boarding/pkg/kafka"
)

// eventSource is the CloudEvent source of every message this service emits.
const eventSource = "service-boarding"

// EventPublisher publishes CloudEvents to a topic. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, ce kafka.CloudEvent) error
}

// publish emits an event after the state change it describes has been
// committed. Failures are logged and never roll the change back.
func publish(ctx context.Context, p EventPublisher, logger *zap.Logger, topic, eventType string, data interface{}) {
	if p == nil {
		return
	}
	ce, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		logger.Error("failed to build cloud event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := p.PublishEvent(ctx, topic, ce); err != nil {
		logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}
