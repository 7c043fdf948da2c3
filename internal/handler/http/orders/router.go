package orders_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"paygate/internal/app/orders"
)

func RegisterRoutes(r chi.Router, s orders.OrderService, l *zap.Logger) {
	handler := NewOrderHandler(s, l.With(zap.String("component", "OrderHTTPHandler")))

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", handler.CreateOrderHandler)
		r.Get("/{id}", handler.GetOrderHandler)
	})
}
