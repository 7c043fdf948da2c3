package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"paygate/internal/domain"
	"paygate/internal/repository/order_repo"
	"paygate/internal/repository/outbox_repo"
	"paygate/internal/repository/payment_repo"
	"paygate/internal/util"
)

// Test-mode failure markers. Payments carrying one of these settle FAILED;
// everything else settles SUCCESS. Real card/UPI rails sit behind this
// boundary and are not modeled further.
const (
	failVPAPrefix   = "fail@"
	declineCardTail = "0002"
)

// Processor is the simulated settlement rail: it periodically picks pending
// payments that have aged past the settlement delay, resolves them to a
// terminal status and writes the matching payment event to the outbox in the
// same transaction.
type Processor struct {
	db          *sql.DB
	paymentRepo payment_repo.PaymentRepository
	orderRepo   order_repo.OrderRepository
	outboxRepo  outbox_repo.OutboxRepository
	topic       string
	interval    time.Duration
	delay       time.Duration
	logger      *zap.Logger
}

func NewProcessor(
	db *sql.DB,
	paymentRepo payment_repo.PaymentRepository,
	orderRepo order_repo.OrderRepository,
	outboxRepo outbox_repo.OutboxRepository,
	topic string,
	interval time.Duration,
	delay time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		db:          db,
		paymentRepo: paymentRepo,
		orderRepo:   orderRepo,
		outboxRepo:  outboxRepo,
		topic:       topic,
		interval:    interval,
		delay:       delay,
		logger:      logger,
	}
}

func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting settlement processor...")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Settlement processor stopped.")
			return
		case <-ticker.C:
			p.settleDuePayments(ctx)
		}
	}
}

func (p *Processor) settleDuePayments(ctx context.Context) {
	cutoff := time.Now().Add(-p.delay)
	payments, err := p.paymentRepo.GetPendingCreatedBefore(ctx, p.db, cutoff, 10)
	if err != nil {
		p.logger.Error("Failed to load pending payments for settlement", zap.Error(err))
		return
	}

	for _, payment := range payments {
		if err := p.settle(ctx, payment); err != nil {
			p.logger.Error("Failed to settle payment", zap.String("payment_id", payment.ID), zap.Error(err))
		}
	}
}

func (p *Processor) settle(ctx context.Context, payment *domain.Payment) error {
	status, errorDescription := Resolve(payment)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := p.paymentRepo.UpdateStatusTx(ctx, tx, payment.ID, status, errorDescription); err != nil {
		tx.Rollback()
		return err
	}

	if status == domain.PaymentStatusSuccess {
		if err := p.orderRepo.UpdateStatusTx(ctx, tx, payment.OrderID, domain.OrderStatusPaid); err != nil {
			tx.Rollback()
			return err
		}
	}

	event := domain.WebhookEventPaymentSuccess
	if status == domain.PaymentStatusFailed {
		event = domain.WebhookEventPaymentFailed
	}
	payload, err := json.Marshal(domain.PaymentEvent{
		Event:            event,
		PaymentID:        payment.ID,
		OrderID:          payment.OrderID,
		Amount:           payment.Amount,
		Method:           string(payment.Method),
		Status:           string(status),
		ErrorDescription: errorDescription,
		Timestamp:        time.Now().UTC(),
	})
	if err != nil {
		tx.Rollback()
		return err
	}

	outboxMsg := &domain.OutboxMessage{
		ID:        util.GenerateUUID(),
		Topic:     p.topic,
		Payload:   payload,
		Status:    domain.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	if err := p.outboxRepo.CreateMessageTx(ctx, tx, outboxMsg); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	p.logger.Info("Payment settled",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
		zap.String("status", string(status)),
	)
	return nil
}

// Resolve decides the terminal settlement outcome for a payment.
func Resolve(payment *domain.Payment) (domain.PaymentStatus, string) {
	switch payment.Method {
	case domain.PaymentMethodUPI:
		if strings.HasPrefix(payment.VPA, failVPAPrefix) {
			return domain.PaymentStatusFailed, "Payment declined by UPI provider"
		}
	case domain.PaymentMethodCard:
		if payment.CardLast4 == declineCardTail {
			return domain.PaymentStatusFailed, "Card declined by issuer"
		}
	}
	return domain.PaymentStatusSuccess, ""
}
