package domain

import (
	"errors"
	"time"
)

var ErrWebhookDeliveryNotFound = errors.New("webhook delivery not found")
var ErrWebhookURLNotConfigured = errors.New("webhook url not configured")

type WebhookEvent string

const (
	WebhookEventPaymentSuccess WebhookEvent = "payment.success"
	WebhookEventPaymentFailed  WebhookEvent = "payment.failed"
	WebhookEventTest           WebhookEvent = "webhook.test"
)

type WebhookDeliveryStatus string

const (
	WebhookDeliveryPending WebhookDeliveryStatus = "pending"
	WebhookDeliverySuccess WebhookDeliveryStatus = "success"
	WebhookDeliveryFailed  WebhookDeliveryStatus = "failed"
)

// WebhookConfig holds the merchant's delivery endpoint and signing secret.
type WebhookConfig struct {
	URL       string
	Secret    string
	UpdatedAt time.Time
}

// WebhookDelivery is one notification for a business event. TargetURL is
// captured when the delivery is scheduled, so a later config update does not
// redirect in-flight deliveries. Attempts only ever grows.
type WebhookDelivery struct {
	ID            string
	Event         WebhookEvent
	Payload       []byte
	TargetURL     string
	Status        WebhookDeliveryStatus
	Attempts      int
	ResponseCode  *int
	LastAttemptAt *time.Time
	NextRetryAt   *time.Time
	CreatedAt     time.Time
}
