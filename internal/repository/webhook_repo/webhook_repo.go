package webhook_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"paygate/internal/domain"
)

type webhookRepository struct{}

func NewWebhookRepository() WebhookRepository {
	return &webhookRepository{}
}

// webhook_config is a single-row table keyed by id = 1.

func (r *webhookRepository) GetConfig(ctx context.Context, querier domain.Querier) (*domain.WebhookConfig, error) {
	query := `SELECT url, secret, updated_at FROM webhook_config WHERE id = 1`
	cfg := &domain.WebhookConfig{}
	err := querier.QueryRowContext(ctx, query).Scan(&cfg.URL, &cfg.Secret, &cfg.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrWebhookURLNotConfigured
		}
		return nil, fmt.Errorf("failed to get webhook config: %w", err)
	}
	return cfg, nil
}

func (r *webhookRepository) UpdateURL(ctx context.Context, querier domain.Querier, url string) error {
	query := `
		INSERT INTO webhook_config (id, url, secret, updated_at)
		VALUES (1, $1, '', $2)
		ON CONFLICT (id) DO UPDATE SET url = $1, updated_at = $2
	`
	if _, err := querier.ExecContext(ctx, query, url, time.Now()); err != nil {
		return fmt.Errorf("failed to update webhook url: %w", err)
	}
	return nil
}

func (r *webhookRepository) UpdateSecret(ctx context.Context, querier domain.Querier, secret string) error {
	query := `
		INSERT INTO webhook_config (id, url, secret, updated_at)
		VALUES (1, '', $1, $2)
		ON CONFLICT (id) DO UPDATE SET secret = $1, updated_at = $2
	`
	if _, err := querier.ExecContext(ctx, query, secret, time.Now()); err != nil {
		return fmt.Errorf("failed to update webhook secret: %w", err)
	}
	return nil
}

const deliveryColumns = `id, event, payload, target_url, status, attempts, response_code, last_attempt_at, next_retry_at, created_at`

func (r *webhookRepository) CreateDelivery(ctx context.Context, querier domain.Querier, d *domain.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (` + deliveryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := querier.ExecContext(ctx, query,
		d.ID,
		d.Event,
		d.Payload,
		d.TargetURL,
		d.Status,
		d.Attempts,
		d.ResponseCode,
		d.LastAttemptAt,
		d.NextRetryAt,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook delivery: %w", err)
	}
	return nil
}

func scanDelivery(scan func(dest ...any) error) (*domain.WebhookDelivery, error) {
	d := &domain.WebhookDelivery{}
	err := scan(
		&d.ID,
		&d.Event,
		&d.Payload,
		&d.TargetURL,
		&d.Status,
		&d.Attempts,
		&d.ResponseCode,
		&d.LastAttemptAt,
		&d.NextRetryAt,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *webhookRepository) GetDeliveryByID(ctx context.Context, querier domain.Querier, id string) (*domain.WebhookDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE id = $1`
	d, err := scanDelivery(querier.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrWebhookDeliveryNotFound
		}
		return nil, fmt.Errorf("failed to get webhook delivery %s: %w", id, err)
	}
	return d, nil
}

func (r *webhookRepository) ListDeliveries(ctx context.Context, querier domain.Querier, limit, offset int) ([]*domain.WebhookDelivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM webhook_deliveries
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*domain.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func (r *webhookRepository) RecordAttempt(ctx context.Context, querier domain.Querier, id string, status domain.WebhookDeliveryStatus, responseCode *int, attemptedAt time.Time, nextRetryAt *time.Time) error {
	query := `
		UPDATE webhook_deliveries
		SET status = $1, response_code = $2, attempts = attempts + 1, last_attempt_at = $3, next_retry_at = $4
		WHERE id = $5
	`
	res, err := querier.ExecContext(ctx, query, status, responseCode, attemptedAt, nextRetryAt, id)
	if err != nil {
		return fmt.Errorf("failed to record webhook attempt for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrWebhookDeliveryNotFound
	}
	return nil
}

func (r *webhookRepository) GetDueRetries(ctx context.Context, querier domain.Querier, now time.Time, limit int) ([]*domain.WebhookDelivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM webhook_deliveries
		WHERE status = $1 AND next_retry_at IS NOT NULL AND next_retry_at <= $2
		ORDER BY next_retry_at
		LIMIT $3
	`
	rows, err := querier.QueryContext(ctx, query, domain.WebhookDeliveryFailed, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due webhook retries: %w", err)
	}
	defer rows.Close()

	var deliveries []*domain.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}
