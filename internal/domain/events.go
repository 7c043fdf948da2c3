package domain

import "time"

// PaymentEvent is published to Kafka when a payment reaches a terminal
// settlement state, and is the payload delivered to merchant webhooks.
type PaymentEvent struct {
	Event            WebhookEvent `json:"event"`
	PaymentID        string       `json:"payment_id"`
	OrderID          string       `json:"order_id"`
	Amount           int64        `json:"amount"`
	Method           string       `json:"method"`
	Status           string       `json:"status"`
	ErrorDescription string       `json:"error_description,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
}
