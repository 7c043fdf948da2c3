package webhooks_http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"paygate/internal/app/webhooks"
	"paygate/internal/domain"
	"paygate/internal/handler/http/render"
)

type WebhookHandler struct {
	service webhooks.WebhookService
	logger  *zap.Logger
}

func NewWebhookHandler(s webhooks.WebhookService, l *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: s, logger: l}
}

type updateConfigRequest struct {
	WebhookURL string `json:"webhook_url"`
}

type listResponse struct {
	Data []*webhooks.DeliveryResponse `json:"data"`
}

func (h *WebhookHandler) GetConfigHandler(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetConfig(r.Context())
	if err != nil {
		h.logger.Error("Failed to get webhook config", zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	render.JSON(w, http.StatusOK, cfg)
}

func (h *WebhookHandler) UpdateConfigHandler(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	if req.WebhookURL == "" {
		render.Error(w, http.StatusBadRequest, "bad_request", "webhook_url is required")
		return
	}

	if err := h.service.UpdateURL(r.Context(), req.WebhookURL); err != nil {
		h.logger.Error("Failed to update webhook config", zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	render.JSON(w, http.StatusOK, updateConfigRequest{WebhookURL: req.WebhookURL})
}

func (h *WebhookHandler) ListDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	deliveries, err := h.service.ListDeliveries(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list webhook deliveries", zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	if deliveries == nil {
		deliveries = []*webhooks.DeliveryResponse{}
	}
	render.JSON(w, http.StatusOK, listResponse{Data: deliveries})
}

func (h *WebhookHandler) RetryDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	deliveryID := chi.URLParam(r, "id")
	if deliveryID == "" {
		render.Error(w, http.StatusBadRequest, "bad_request", "Delivery ID is required")
		return
	}

	if err := h.service.RetryDelivery(r.Context(), deliveryID); err != nil {
		if errors.Is(err, domain.ErrWebhookDeliveryNotFound) {
			render.Error(w, http.StatusNotFound, "not_found", "Webhook delivery not found")
			return
		}
		h.logger.Error("Failed to retry webhook delivery", zap.String("delivery_id", deliveryID), zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	render.JSON(w, http.StatusOK, map[string]string{"status": "retry_scheduled"})
}

func (h *WebhookHandler) SendTestHandler(w http.ResponseWriter, r *http.Request) {
	delivery, err := h.service.SendTestDelivery(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrWebhookURLNotConfigured) {
			render.Error(w, http.StatusBadRequest, "not_configured", "Configure a webhook URL before sending a test delivery")
			return
		}
		h.logger.Error("Failed to send test webhook", zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	render.JSON(w, http.StatusOK, delivery)
}

func (h *WebhookHandler) RegenerateSecretHandler(w http.ResponseWriter, r *http.Request) {
	secret, err := h.service.RegenerateSecret(r.Context())
	if err != nil {
		h.logger.Error("Failed to regenerate webhook secret", zap.Error(err))
		render.Error(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}
	render.JSON(w, http.StatusOK, map[string]string{"webhook_secret": secret})
}
