package kafka_infra

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one Kafka message. A non-nil error leaves the
// offset uncommitted so the message is redelivered.
type MessageHandler func(ctx context.Context, msg kafka.Message) error

type Consumer interface {
	Start(ctx context.Context, handler MessageHandler) error
	Stop()
}

type kafkaConsumer struct {
	reader *kafka.Reader
	logger *zap.Logger
	cancel context.CancelFunc
}

func NewConsumer(brokerURLs []string, groupID, topic string, logger *zap.Logger) Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokerURLs,
		GroupID:           groupID,
		Topic:             topic,
		MinBytes:          10e3,
		MaxBytes:          10e6,
		ReadBatchTimeout:  1 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		CommitInterval:    time.Second,
		MaxAttempts:       3,
		Logger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	})

	return &kafkaConsumer{
		reader: reader,
		logger: logger,
	}
}

func (c *kafkaConsumer) Start(ctx context.Context, handler MessageHandler) error {
	consumerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.Info("Kafka consumer starting")

	for {
		select {
		case <-consumerCtx.Done():
			c.logger.Info("Kafka consumer context cancelled, stopping reader.")
			return c.reader.Close()
		default:
			msg, err := c.reader.FetchMessage(consumerCtx)
			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					continue
				}
				c.logger.Error("Failed to fetch message from Kafka", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}

			if handlerErr := handler(consumerCtx, msg); handlerErr != nil {
				c.logger.Error("Error handling Kafka message, will not commit offset",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(handlerErr),
				)
				continue
			}

			if commitErr := c.reader.CommitMessages(consumerCtx, msg); commitErr != nil {
				c.logger.Error("Failed to commit offset for Kafka message",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(commitErr),
				)
			}
		}
	}
}

func (c *kafkaConsumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.logger.Info("Kafka consumer stop signal sent.")
}
