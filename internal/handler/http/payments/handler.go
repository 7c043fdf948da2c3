package payments_http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"paygate/internal/app/payments"
	"paygate/internal/domain"
	"paygate/internal/handler/http/render"
)

type PaymentHandler struct {
	service payments.PaymentService
	logger  *zap.Logger
}

func NewPaymentHandler(s payments.PaymentService, l *zap.Logger) *PaymentHandler {
	return &PaymentHandler{service: s, logger: l}
}

func (h *PaymentHandler) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req payments.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")

	payment, err := h.service.CreatePayment(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidPayment):
			render.Error(w, http.StatusBadRequest, "invalid_payment", err.Error())
		case errors.Is(err, domain.ErrOrderNotFound):
			render.Error(w, http.StatusNotFound, "not_found", "Order not found")
		default:
			h.logger.Error("Failed to create payment", zap.String("order_id", req.OrderID), zap.Error(err))
			render.Error(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		}
		return
	}

	render.JSON(w, http.StatusCreated, payment)
}

func (h *PaymentHandler) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")
	if paymentID == "" {
		render.Error(w, http.StatusBadRequest, "bad_request", "Payment ID is required")
		return
	}

	payment, err := h.service.GetPayment(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			render.Error(w, http.StatusNotFound, "not_found", "Payment not found")
			return
		}
		h.logger.Error("Failed to get payment", zap.String("payment_id", paymentID), zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	render.JSON(w, http.StatusOK, payment)
}
