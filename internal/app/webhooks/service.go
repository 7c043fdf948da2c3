package webhooks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paygate/internal/domain"
	"paygate/internal/repository/webhook_repo"
	"paygate/internal/util"
	"paygate/internal/webhook"
)

type ConfigResponse struct {
	WebhookURL    string `json:"webhook_url"`
	WebhookSecret string `json:"webhook_secret"`
}

type DeliveryResponse struct {
	ID            string `json:"id"`
	Event         string `json:"event"`
	Status        string `json:"status"`
	Attempts      int    `json:"attempts"`
	LastAttemptAt string `json:"last_attempt_at,omitempty"`
	ResponseCode  *int   `json:"response_code"`
}

type WebhookService interface {
	GetConfig(ctx context.Context) (*ConfigResponse, error)
	UpdateURL(ctx context.Context, url string) error
	RegenerateSecret(ctx context.Context) (string, error)
	ListDeliveries(ctx context.Context, limit, offset int) ([]*DeliveryResponse, error)
	RetryDelivery(ctx context.Context, deliveryID string) error
	SendTestDelivery(ctx context.Context) (*DeliveryResponse, error)
}

type webhookService struct {
	db         *sql.DB
	repo       webhook_repo.WebhookRepository
	dispatcher *webhook.Dispatcher
	logger     *zap.Logger
}

func NewWebhookService(
	db *sql.DB,
	repo webhook_repo.WebhookRepository,
	dispatcher *webhook.Dispatcher,
	logger *zap.Logger,
) WebhookService {
	return &webhookService{
		db:         db,
		repo:       repo,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

func (s *webhookService) GetConfig(ctx context.Context) (*ConfigResponse, error) {
	cfg, err := s.repo.GetConfig(ctx, s.db)
	if err != nil {
		if errors.Is(err, domain.ErrWebhookURLNotConfigured) {
			return &ConfigResponse{}, nil
		}
		return nil, fmt.Errorf("failed to load webhook config: %w", err)
	}
	return &ConfigResponse{WebhookURL: cfg.URL, WebhookSecret: cfg.Secret}, nil
}

// UpdateURL applies to deliveries scheduled after the update; in-flight
// deliveries keep the target URL captured when they were created.
func (s *webhookService) UpdateURL(ctx context.Context, url string) error {
	if err := s.repo.UpdateURL(ctx, s.db, url); err != nil {
		s.logger.Error("Failed to update webhook url", zap.Error(err))
		return err
	}
	s.logger.Info("Webhook url updated", zap.String("webhook_url", url))
	return nil
}

// RegenerateSecret rotates the signing secret. Future deliveries sign with
// the new secret; already recorded deliveries keep their metadata.
func (s *webhookService) RegenerateSecret(ctx context.Context) (string, error) {
	secret := util.NewSecret("whsec")
	if err := s.repo.UpdateSecret(ctx, s.db, secret); err != nil {
		s.logger.Error("Failed to rotate webhook secret", zap.Error(err))
		return "", err
	}
	s.logger.Info("Webhook secret rotated")
	return secret, nil
}

func (s *webhookService) ListDeliveries(ctx context.Context, limit, offset int) ([]*DeliveryResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	deliveries, err := s.repo.ListDeliveries(ctx, s.db, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}

	out := make([]*DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, mapDeliveryToResponse(d))
	}
	return out, nil
}

func (s *webhookService) RetryDelivery(ctx context.Context, deliveryID string) error {
	return s.dispatcher.Retry(ctx, deliveryID)
}

func (s *webhookService) SendTestDelivery(ctx context.Context) (*DeliveryResponse, error) {
	payload, err := json.Marshal(map[string]any{
		"event":     string(domain.WebhookEventTest),
		"test_id":   util.NewID("evt"),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal test payload: %w", err)
	}

	delivery, err := s.dispatcher.Schedule(ctx, domain.WebhookEventTest, payload)
	if err != nil {
		return nil, err
	}
	return mapDeliveryToResponse(delivery), nil
}

func mapDeliveryToResponse(d *domain.WebhookDelivery) *DeliveryResponse {
	resp := &DeliveryResponse{
		ID:           d.ID,
		Event:        string(d.Event),
		Status:       string(d.Status),
		Attempts:     d.Attempts,
		ResponseCode: d.ResponseCode,
	}
	if d.LastAttemptAt != nil {
		resp.LastAttemptAt = d.LastAttemptAt.UTC().Format(time.RFC3339)
	}
	return resp
}
