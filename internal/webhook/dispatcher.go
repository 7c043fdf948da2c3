package webhook

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"paygate/internal/domain"
	"paygate/internal/repository/webhook_repo"
	"paygate/pkg/signature"
	"paygate/internal/util"
)

// Dispatcher delivers business events to the merchant's configured webhook
// URL. Delivery is at-least-once: every attempt is recorded, non-2xx or
// transport failures schedule a backoff retry, and manual retries add one
// extra attempt regardless of the automatic schedule.
type Dispatcher struct {
	db          *sql.DB
	repo        webhook_repo.WebhookRepository
	client      *http.Client
	logger      *zap.Logger
	maxAttempts int
	baseBackoff time.Duration
	now         func() time.Time
}

func NewDispatcher(
	db *sql.DB,
	repo webhook_repo.WebhookRepository,
	timeout time.Duration,
	maxAttempts int,
	baseBackoff time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		db:          db,
		repo:        repo,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		now:         time.Now,
	}
}

// Schedule records a new delivery for event and makes the first attempt.
// The target URL is captured now; later config updates do not affect this
// delivery. Returns ErrWebhookURLNotConfigured when no URL is set.
func (d *Dispatcher) Schedule(ctx context.Context, event domain.WebhookEvent, payload []byte) (*domain.WebhookDelivery, error) {
	cfg, err := d.repo.GetConfig(ctx, d.db)
	if err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, domain.ErrWebhookURLNotConfigured
	}

	delivery := &domain.WebhookDelivery{
		ID:        util.NewID("wh"),
		Event:     event,
		Payload:   payload,
		TargetURL: cfg.URL,
		Status:    domain.WebhookDeliveryPending,
		CreatedAt: d.now(),
	}
	if err := d.repo.CreateDelivery(ctx, d.db, delivery); err != nil {
		return nil, err
	}

	d.logger.Info("Webhook delivery scheduled",
		zap.String("delivery_id", delivery.ID),
		zap.String("event", string(event)),
		zap.String("target_url", delivery.TargetURL),
	)

	d.attempt(ctx, delivery)
	return d.repo.GetDeliveryByID(ctx, d.db, delivery.ID)
}

// Retry performs one out-of-band attempt for an existing delivery. It does
// not consult the automatic backoff schedule; a retry racing an automatic
// attempt is harmless because attempts are additive.
func (d *Dispatcher) Retry(ctx context.Context, deliveryID string) error {
	delivery, err := d.repo.GetDeliveryByID(ctx, d.db, deliveryID)
	if err != nil {
		return err
	}
	d.attempt(ctx, delivery)
	return nil
}

// StartRetryLoop re-attempts failed deliveries whose next_retry_at has
// passed. It blocks until ctx is cancelled.
func (d *Dispatcher) StartRetryLoop(ctx context.Context, pollInterval time.Duration) {
	d.logger.Info("Starting webhook retry loop...")
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Webhook retry loop stopped.")
			return
		case <-ticker.C:
			d.processDueRetries(ctx)
		}
	}
}

func (d *Dispatcher) processDueRetries(ctx context.Context) {
	due, err := d.repo.GetDueRetries(ctx, d.db, d.now(), 10)
	if err != nil {
		d.logger.Error("Failed to load due webhook retries", zap.Error(err))
		return
	}
	for _, delivery := range due {
		d.attempt(ctx, delivery)
	}
}

func (d *Dispatcher) attempt(ctx context.Context, delivery *domain.WebhookDelivery) {
	attemptedAt := d.now()
	responseCode, err := d.send(ctx, delivery)

	if err == nil && responseCode >= 200 && responseCode < 300 {
		code := responseCode
		if recErr := d.repo.RecordAttempt(ctx, d.db, delivery.ID, domain.WebhookDeliverySuccess, &code, attemptedAt, nil); recErr != nil {
			d.logger.Error("Failed to record successful webhook attempt", zap.String("delivery_id", delivery.ID), zap.Error(recErr))
			return
		}
		d.logger.Info("Webhook delivered",
			zap.String("delivery_id", delivery.ID),
			zap.Int("response_code", responseCode),
			zap.Int("attempt", delivery.Attempts+1),
		)
		return
	}

	// responseCode 0 means no response was received at all.
	var codePtr *int
	if responseCode != 0 {
		code := responseCode
		codePtr = &code
	}

	nextRetryAt := d.nextRetry(delivery.Attempts+1, attemptedAt)
	if recErr := d.repo.RecordAttempt(ctx, d.db, delivery.ID, domain.WebhookDeliveryFailed, codePtr, attemptedAt, nextRetryAt); recErr != nil {
		d.logger.Error("Failed to record failed webhook attempt", zap.String("delivery_id", delivery.ID), zap.Error(recErr))
		return
	}

	d.logger.Warn("Webhook delivery attempt failed",
		zap.String("delivery_id", delivery.ID),
		zap.Int("attempt", delivery.Attempts+1),
		zap.Intp("response_code", codePtr),
		zap.Timep("next_retry_at", nextRetryAt),
		zap.Error(err),
	)
}

// send posts the signed payload to the delivery's captured target URL. The
// signature uses the secret that is current at attempt time: rotating the
// secret changes how future attempts are signed.
func (d *Dispatcher) send(ctx context.Context, delivery *domain.WebhookDelivery) (int, error) {
	cfg, err := d.repo.GetConfig(ctx, d.db)
	if err != nil {
		return 0, fmt.Errorf("failed to load webhook config: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.TargetURL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", string(delivery.Event))
	req.Header.Set("X-Webhook-Delivery-Id", delivery.ID)
	req.Header.Set("X-Webhook-Signature", signature.Sign(delivery.Payload, cfg.Secret))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, errors.New("merchant endpoint returned non-2xx status")
	}
	return resp.StatusCode, nil
}

// nextRetry returns the exponential backoff deadline for the next automatic
// attempt, or nil when the attempt ceiling is reached.
func (d *Dispatcher) nextRetry(attemptsSoFar int, from time.Time) *time.Time {
	if attemptsSoFar >= d.maxAttempts {
		return nil
	}
	backoff := d.baseBackoff << (attemptsSoFar - 1)
	next := from.Add(backoff)
	return &next
}
