package payment_repo

import (
	"context"
	"time"

	"paygate/internal/domain"
)

type PaymentRepository interface {
	// CreateTx inserts a payment; if a payment with the same idempotency key
	// already exists, no new row is written and the existing payment is
	// returned with created=false.
	CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) (existing *domain.Payment, created bool, err error)
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Payment, error)
	GetByOrderIDTx(ctx context.Context, querier domain.Querier, orderID string) (*domain.Payment, error)
	UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.PaymentStatus, errorDescription string) error
	// GetPendingCreatedBefore returns pending payments old enough to settle.
	GetPendingCreatedBefore(ctx context.Context, querier domain.Querier, cutoff time.Time, limit int) ([]*domain.Payment, error)
}
