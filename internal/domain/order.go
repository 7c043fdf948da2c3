package domain

import (
	"errors"
	"time"
)

var ErrOrderNotFound = errors.New("order not found")
var ErrInvalidOrder = errors.New("invalid order data")

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
)

// Order amounts are stored in the smallest currency unit (paise for INR).
type Order struct {
	ID        string
	Amount    int64
	Currency  string
	Receipt   string
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewOrder(id string, amount int64, currency, receipt string) (*Order, error) {
	if id == "" || amount <= 0 {
		return nil, ErrInvalidOrder
	}
	if currency == "" {
		currency = "INR"
	}
	now := time.Now()
	return &Order{
		ID:        id,
		Amount:    amount,
		Currency:  currency,
		Receipt:   receipt,
		Status:    OrderStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (o *Order) MarkAsPaid() {
	o.Status = OrderStatusPaid
	o.UpdatedAt = time.Now()
}
