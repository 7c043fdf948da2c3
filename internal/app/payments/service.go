package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"paygate/internal/domain"
	"paygate/internal/repository/order_repo"
	"paygate/internal/repository/payment_repo"
	"paygate/internal/util"
)

type CreatePaymentRequest struct {
	OrderID    string `json:"order_id"`
	Method     string `json:"method"`
	VPA        string `json:"vpa,omitempty"`
	CardNumber string `json:"card_number,omitempty"`
	CardExpiry string `json:"card_expiry,omitempty"`
	CardCVV    string `json:"card_cvv,omitempty"`

	// IdempotencyKey comes from the Idempotency-Key header, not the body.
	IdempotencyKey string `json:"-"`
}

type PaymentResponse struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Method           string `json:"method"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description,omitempty"`
	CreatedAt        string `json:"created_at"`
}

type PaymentService interface {
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*PaymentResponse, error)
	GetPayment(ctx context.Context, paymentID string) (*PaymentResponse, error)
}

type paymentService struct {
	db          *sql.DB
	orderRepo   order_repo.OrderRepository
	paymentRepo payment_repo.PaymentRepository
	logger      *zap.Logger
}

func NewPaymentService(
	db *sql.DB,
	orderRepo order_repo.OrderRepository,
	paymentRepo payment_repo.PaymentRepository,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		db:          db,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		logger:      logger,
	}
}

func (s *paymentService) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*PaymentResponse, error) {
	if err := validatePaymentRequest(req); err != nil {
		s.logger.Warn("Rejected invalid payment request", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction for payment creation", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	order, err := s.orderRepo.GetByIDTx(ctx, tx, req.OrderID)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %s: %w", req.OrderID, err)
	}

	now := time.Now()
	payment := &domain.Payment{
		ID:             util.NewID("pay"),
		OrderID:        order.ID,
		Method:         domain.PaymentMethod(req.Method),
		VPA:            req.VPA,
		CardLast4:      cardLast4(req.CardNumber),
		Amount:         order.Amount,
		Status:         domain.PaymentStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, wasNew, err := s.paymentRepo.CreateTx(ctx, tx, payment)
	if err != nil {
		tx.Rollback()
		s.logger.Error("Failed to create payment", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit payment creation", zap.String("order_id", req.OrderID), zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if !wasNew {
		s.logger.Info("Duplicate payment submission, returning existing payment",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("payment_id", created.ID),
		)
	} else {
		s.logger.Info("Payment created",
			zap.String("payment_id", created.ID),
			zap.String("order_id", created.OrderID),
			zap.String("method", string(created.Method)),
		)
	}
	return mapPaymentToResponse(created), nil
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*PaymentResponse, error) {
	payment, err := s.paymentRepo.GetByIDTx(ctx, s.db, paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		s.logger.Error("Failed to get payment", zap.String("payment_id", paymentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return mapPaymentToResponse(payment), nil
}

func validatePaymentRequest(req *CreatePaymentRequest) error {
	if req.OrderID == "" {
		return fmt.Errorf("%w: order_id is required", domain.ErrInvalidPayment)
	}
	if req.IdempotencyKey == "" {
		return fmt.Errorf("%w: Idempotency-Key header is required", domain.ErrInvalidPayment)
	}
	switch domain.PaymentMethod(req.Method) {
	case domain.PaymentMethodUPI:
		if !strings.Contains(req.VPA, "@") {
			return fmt.Errorf("%w: a valid vpa is required for upi payments", domain.ErrInvalidPayment)
		}
	case domain.PaymentMethodCard:
		if req.CardNumber == "" || req.CardExpiry == "" || req.CardCVV == "" {
			return fmt.Errorf("%w: card_number, card_expiry and card_cvv are required for card payments", domain.ErrInvalidPayment)
		}
	default:
		return fmt.Errorf("%w: method must be one of upi, card", domain.ErrInvalidPayment)
	}
	return nil
}

func cardLast4(number string) string {
	digits := strings.ReplaceAll(number, " ", "")
	if len(digits) < 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

func mapPaymentToResponse(p *domain.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:               p.ID,
		OrderID:          p.OrderID,
		Method:           string(p.Method),
		Amount:           p.Amount,
		Status:           string(p.Status),
		ErrorDescription: p.ErrorDescription,
		CreatedAt:        p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
