package orders_http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"paygate/internal/app/orders"
	"paygate/internal/domain"
	"paygate/internal/handler/http/render"
)

type OrderHandler struct {
	service orders.OrderService
	logger  *zap.Logger
}

func NewOrderHandler(s orders.OrderService, l *zap.Logger) *OrderHandler {
	return &OrderHandler{service: s, logger: l}
}

func (h *OrderHandler) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	order, err := h.service.CreateOrder(r.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOrder) {
			render.Error(w, http.StatusBadRequest, "invalid_order", "Amount must be a positive integer in the smallest currency unit")
			return
		}
		h.logger.Error("Failed to create order", zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	render.JSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		render.Error(w, http.StatusBadRequest, "bad_request", "Order ID is required")
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			render.Error(w, http.StatusNotFound, "not_found", "Order not found")
			return
		}
		h.logger.Error("Failed to get order", zap.String("order_id", orderID), zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	render.JSON(w, http.StatusOK, order)
}
