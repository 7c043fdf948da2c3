package domain

import (
	"errors"
	"time"
)

var ErrPaymentNotFound = errors.New("payment not found")
var ErrInvalidPayment = errors.New("invalid payment data")

type PaymentMethod string

const (
	PaymentMethodUPI  PaymentMethod = "upi"
	PaymentMethodCard PaymentMethod = "card"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// Payment never stores the full card number; only the last four digits are
// kept for display and settlement routing.
type Payment struct {
	ID               string
	OrderID          string
	Method           PaymentMethod
	VPA              string
	CardLast4        string
	Amount           int64
	Status           PaymentStatus
	ErrorDescription string
	IdempotencyKey   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
