package payment_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"paygate/internal/domain"
)

type paymentRepository struct{}

func NewPaymentRepository() PaymentRepository {
	return &paymentRepository{}
}

const paymentColumns = `id, order_id, method, vpa, card_last4, amount, status, error_description, idempotency_key, created_at, updated_at`

func scanPayment(row *sql.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.Method,
		&p.VPA,
		&p.CardLast4,
		&p.Amount,
		&p.Status,
		&p.ErrorDescription,
		&p.IdempotencyKey,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepository) CreateTx(ctx context.Context, querier domain.Querier, payment *domain.Payment) (*domain.Payment, bool, error) {
	// The unique index on idempotency_key makes a retried submission a
	// no-op; the caller gets the payment created by the first submission.
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	res, err := querier.ExecContext(ctx, query,
		payment.ID,
		payment.OrderID,
		payment.Method,
		payment.VPA,
		payment.CardLast4,
		payment.Amount,
		payment.Status,
		payment.ErrorDescription,
		payment.IdempotencyKey,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create payment: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read rows affected for payment insert: %w", err)
	}
	if inserted > 0 {
		return payment, true, nil
	}

	existing, err := r.getByIdempotencyKeyTx(ctx, querier, payment.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *paymentRepository) getByIdempotencyKeyTx(ctx context.Context, querier domain.Querier, key string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE idempotency_key = $1`
	p, err := scanPayment(querier.QueryRowContext(ctx, query, key))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by idempotency key: %w", err)
	}
	return p, nil
}

func (r *paymentRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by id %s: %w", id, err)
	}
	return p, nil
}

func (r *paymentRepository) GetByOrderIDTx(ctx context.Context, querier domain.Querier, orderID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`
	p, err := scanPayment(querier.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by order id %s: %w", orderID, err)
	}
	return p, nil
}

func (r *paymentRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.PaymentStatus, errorDescription string) error {
	query := `
		UPDATE payments
		SET status = $1, error_description = $2, updated_at = $3
		WHERE id = $4
	`
	res, err := querier.ExecContext(ctx, query, status, errorDescription, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update payment status for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *paymentRepository) GetPendingCreatedBefore(ctx context.Context, querier domain.Querier, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = $1 AND created_at <= $2
		ORDER BY created_at
		LIMIT $3
	`
	rows, err := querier.QueryContext(ctx, query, domain.PaymentStatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p := &domain.Payment{}
		if err := rows.Scan(
			&p.ID,
			&p.OrderID,
			&p.Method,
			&p.VPA,
			&p.CardLast4,
			&p.Amount,
			&p.Status,
			&p.ErrorDescription,
			&p.IdempotencyKey,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
