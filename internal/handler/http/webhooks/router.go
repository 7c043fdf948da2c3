package webhooks_http

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"paygate/internal/app/webhooks"
)

func RegisterRoutes(r chi.Router, s webhooks.WebhookService, l *zap.Logger) {
	handler := NewWebhookHandler(s, l.With(zap.String("component", "WebhookHTTPHandler")))

	r.Route("/webhooks", func(r chi.Router) {
		r.Get("/", handler.ListDeliveriesHandler)
		r.Get("/config", handler.GetConfigHandler)
		r.Put("/config", handler.UpdateConfigHandler)
		r.Post("/test", handler.SendTestHandler)
		r.Post("/secret/regenerate", handler.RegenerateSecretHandler)
		r.Post("/{id}/retry", handler.RetryDeliveryHandler)
	})
}
