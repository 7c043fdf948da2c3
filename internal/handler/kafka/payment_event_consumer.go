package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"paygate/internal/domain"
	kafka_infra "paygate/internal/infrastructure/kafka"
	"paygate/internal/webhook"
)

// PaymentEventMessageHandler turns settled-payment events from Kafka into
// webhook deliveries. Malformed messages are dropped (offset committed);
// delivery scheduling failures are returned so the message is redelivered —
// except when no webhook URL is configured, which is a merchant choice, not
// an error.
func PaymentEventMessageHandler(dispatcher *webhook.Dispatcher, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event domain.PaymentEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("Failed to unmarshal payment event, dropping message",
				zap.Error(err),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}

		logger.Info("Processing payment event",
			zap.String("event", string(event.Event)),
			zap.String("payment_id", event.PaymentID),
			zap.String("order_id", event.OrderID),
		)

		if _, err := dispatcher.Schedule(ctx, event.Event, msg.Value); err != nil {
			if errors.Is(err, domain.ErrWebhookURLNotConfigured) {
				logger.Debug("No webhook url configured, skipping delivery",
					zap.String("payment_id", event.PaymentID))
				return nil
			}
			return fmt.Errorf("failed to schedule webhook delivery for payment %s: %w", event.PaymentID, err)
		}
		return nil
	}
}
