package webhook_repo

import (
	"context"
	"time"

	"paygate/internal/domain"
)

type WebhookRepository interface {
	GetConfig(ctx context.Context, querier domain.Querier) (*domain.WebhookConfig, error)
	UpdateURL(ctx context.Context, querier domain.Querier, url string) error
	UpdateSecret(ctx context.Context, querier domain.Querier, secret string) error

	CreateDelivery(ctx context.Context, querier domain.Querier, d *domain.WebhookDelivery) error
	GetDeliveryByID(ctx context.Context, querier domain.Querier, id string) (*domain.WebhookDelivery, error)
	ListDeliveries(ctx context.Context, querier domain.Querier, limit, offset int) ([]*domain.WebhookDelivery, error)
	// RecordAttempt appends the result of one delivery attempt. Attempts is
	// incremented atomically in SQL so concurrent attempts never lose counts.
	RecordAttempt(ctx context.Context, querier domain.Querier, id string, status domain.WebhookDeliveryStatus, responseCode *int, attemptedAt time.Time, nextRetryAt *time.Time) error
	GetDueRetries(ctx context.Context, querier domain.Querier, now time.Time, limit int) ([]*domain.WebhookDelivery, error)
}
