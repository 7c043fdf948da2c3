package order_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"paygate/internal/domain"
)

type orderRepository struct{}

func NewOrderRepository() OrderRepository {
	return &orderRepository{}
}

func (r *orderRepository) CreateTx(ctx context.Context, querier domain.Querier, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, amount, currency, receipt, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := querier.ExecContext(ctx, query,
		order.ID,
		order.Amount,
		order.Currency,
		order.Receipt,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Order, error) {
	query := `
		SELECT id, amount, currency, receipt, status, created_at, updated_at
		FROM orders
		WHERE id = $1
	`
	order := &domain.Order{}
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.Amount,
		&order.Currency,
		&order.Receipt,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order by id %s: %w", id, err)
	}
	return order, nil
}

func (r *orderRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	res, err := querier.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update order status for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
