package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"paygate/internal/domain"
	"paygate/internal/repository/order_repo"
	"paygate/internal/util"
)

type CreateOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type OrderResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*OrderResponse, error)
}

type orderService struct {
	db        *sql.DB
	orderRepo order_repo.OrderRepository
	logger    *zap.Logger
}

func NewOrderService(db *sql.DB, orderRepo order_repo.OrderRepository, logger *zap.Logger) OrderService {
	return &orderService{
		db:        db,
		orderRepo: orderRepo,
		logger:    logger,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	order, err := domain.NewOrder(util.NewID("order"), req.Amount, req.Currency, req.Receipt)
	if err != nil {
		s.logger.Warn("Rejected invalid order", zap.Int64("amount", req.Amount), zap.Error(err))
		return nil, domain.ErrInvalidOrder
	}

	if err := s.orderRepo.CreateTx(ctx, s.db, order); err != nil {
		s.logger.Error("Failed to persist order", zap.String("order_id", order.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Info("Order created", zap.String("order_id", order.ID), zap.Int64("amount", order.Amount))
	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	order, err := s.orderRepo.GetByIDTx(ctx, s.db, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		s.logger.Error("Failed to get order", zap.String("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return mapOrderToResponse(order), nil
}

func mapOrderToResponse(order *domain.Order) *OrderResponse {
	return &OrderResponse{
		ID:        order.ID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Receipt:   order.Receipt,
		Status:    string(order.Status),
		CreatedAt: order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
