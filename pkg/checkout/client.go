package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// APIError is a structured error response from the gateway API.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Description)
}

type apiErrorEnvelope struct {
	Error APIError `json:"error"`
}

// PaymentRequest is the body of a payment submission.
type PaymentRequest struct {
	OrderID    string `json:"order_id"`
	Method     string `json:"method"`
	VPA        string `json:"vpa,omitempty"`
	CardNumber string `json:"card_number,omitempty"`
	CardExpiry string `json:"card_expiry,omitempty"`
	CardCVV    string `json:"card_cvv,omitempty"`
}

// Payment is the gateway's view of a payment.
type Payment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Method           string `json:"method"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// Order is the gateway's view of an order.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// APIClient talks to the gateway's versioned HTTP API. Credentials ride on
// every request as headers; the zero value is not usable, construct with
// NewAPIClient.
type APIClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

func NewAPIClient(baseURL, apiKey, apiSecret string) *APIClient {
	return &APIClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

// CreatePayment submits a payment for the order. idempotencyKey dedupes
// retried submissions: the gateway returns the payment created by the first
// request carrying the same key.
func (c *APIClient) CreatePayment(ctx context.Context, req *PaymentRequest, idempotencyKey string) (*Payment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", idempotencyKey)

	var payment Payment
	if err := c.do(httpReq, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPayment fetches the current state of a payment.
func (c *APIClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}

	var payment Payment
	if err := c.do(httpReq, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetOrder fetches an order.
func (c *APIClient) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/orders/"+orderID, nil)
	if err != nil {
		return nil, err
	}

	var order Order
	if err := c.do(httpReq, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *APIClient) do(req *http.Request, out interface{}) error {
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("X-Api-Secret", c.apiSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope apiErrorEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Description == "" {
			return &APIError{StatusCode: resp.StatusCode, Code: "unknown", Description: strings.TrimSpace(string(data))}
		}
		envelope.Error.StatusCode = resp.StatusCode
		return &envelope.Error
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}
