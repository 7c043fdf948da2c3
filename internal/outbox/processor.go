package outbox

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"paygate/internal/domain"
	kafka_infra "paygate/internal/infrastructure/kafka"
	"paygate/internal/repository/outbox_repo"
)

// Processor publishes pending outbox rows to Kafka. Rows are marked SENT in
// the same transaction as the publish acknowledgment, so an event is never
// lost between the payment state change and the webhook pipeline.
type Processor struct {
	db           *sql.DB
	outboxRepo   outbox_repo.OutboxRepository
	producer     kafka_infra.Producer
	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *zap.Logger
}

func NewProcessor(
	db *sql.DB,
	outboxRepo outbox_repo.OutboxRepository,
	producer kafka_infra.Producer,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		db:           db,
		outboxRepo:   outboxRepo,
		producer:     producer,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		logger:       logger,
	}
}

func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor...")
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped.")
			return
		case <-ticker.C:
			p.processOutboxMessages(ctx)
		}
	}
}

func (p *Processor) processOutboxMessages(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	messages, err := p.outboxRepo.GetPendingMessages(queryCtx, p.db, 10)
	cancel()
	if err != nil {
		if err == sql.ErrNoRows {
			return
		}
		p.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return
	}
	if len(messages) == 0 {
		return
	}

	p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

	for _, msg := range messages {
		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			p.logger.Error("Failed to begin transaction for outbox message", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}

		if err := p.producer.Produce(ctx, msg.ID, msg.Payload); err != nil {
			p.logger.Error("Failed to publish outbox message",
				zap.String("message_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(err))
			tx.Rollback()
			continue
		}

		if err := p.outboxRepo.UpdateMessageStatusTx(ctx, tx, msg.ID, domain.OutboxStatusSent); err != nil {
			p.logger.Error("Failed to update outbox message status to SENT", zap.String("message_id", msg.ID), zap.Error(err))
			tx.Rollback()
			continue
		}

		if err := tx.Commit(); err != nil {
			p.logger.Error("Failed to commit transaction for outbox message", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}

		p.logger.Info("Outbox message published", zap.String("message_id", msg.ID), zap.String("topic", msg.Topic))
	}
}
