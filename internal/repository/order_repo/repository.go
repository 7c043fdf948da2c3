package order_repo

import (
	"context"

	"paygate/internal/domain"
)

type OrderRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, order *domain.Order) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Order, error)
	UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OrderStatus) error
}
