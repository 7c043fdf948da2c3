package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
	OutboxStatusFailed  OutboxMessageStatus = "FAILED"
)

// OutboxMessage is a payment event waiting to be published to Kafka. Rows
// are written in the same transaction as the state change they describe.
type OutboxMessage struct {
	ID        string
	Topic     string
	Payload   []byte
	Status    OutboxMessageStatus
	CreatedAt time.Time
	SentAt    *time.Time
}
