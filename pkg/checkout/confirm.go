package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome is the terminal result of a confirmation run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
)

const (
	defaultMaxAttempts  = 30
	defaultPollInterval = 2 * time.Second
)

var ErrConfirmationDone = errors.New("checkout: confirmation already ran; a confirmer serves one submission")

// PaymentAPI is the slice of the gateway API the confirmer needs.
type PaymentAPI interface {
	CreatePayment(ctx context.Context, req *PaymentRequest, idempotencyKey string) (*Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

// ConfirmerOptions configures a Confirmer. Client is required; Transport is
// the frame-side endpoint the outcome message is sent on and may be nil for
// embeddings that only want the returned Outcome.
type ConfirmerOptions struct {
	Client    PaymentAPI
	Transport Transport

	// Origin and FrameToken are stamped on every outgoing message so the
	// host controller accepts it. They come from the frame URL the host
	// built.
	Origin     string
	FrameToken string

	// IdempotencyKey dedupes the submission against earlier attempts for
	// the same logical payment. Left empty, a fresh key is minted per run.
	IdempotencyKey string

	// MaxAttempts bounds the status polls after submission; PollInterval
	// spaces them. Zero values take the defaults (30 polls, 2s apart).
	MaxAttempts  int
	PollInterval time.Duration

	Logger *zap.Logger
}

// Confirmer drives one payment submission to a terminal outcome: it submits
// the payment, polls its status, and announces the result to the host page
// as at most one terminal message. Construct a new Confirmer per submission.
type Confirmer struct {
	client    PaymentAPI
	transport Transport

	origin         string
	frameToken     string
	idempotencyKey string

	maxAttempts  int
	pollInterval time.Duration
	logger       *zap.Logger

	mu           sync.Mutex
	started      bool
	terminalSent bool
}

func NewConfirmer(opts ConfirmerOptions) *Confirmer {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Confirmer{
		client:         opts.Client,
		transport:      opts.Transport,
		origin:         opts.Origin,
		frameToken:     opts.FrameToken,
		idempotencyKey: opts.IdempotencyKey,
		maxAttempts:    maxAttempts,
		pollInterval:   pollInterval,
		logger:         logger,
	}
}

// Confirm submits the payment and polls until it reaches a terminal status
// or the attempt budget runs out. Exactly one terminal message is sent for
// success or failure; timing out sends nothing, leaving the checkout frame
// to show its own stuck-payment guidance. A cancelled context aborts the run
// with ctx.Err().
func (c *Confirmer) Confirm(ctx context.Context, req *PaymentRequest) (Outcome, *Payment, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return "", nil, ErrConfirmationDone
	}
	c.started = true
	c.mu.Unlock()

	idempotencyKey := c.idempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	payment, err := c.client.CreatePayment(ctx, req, idempotencyKey)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		c.logger.Warn("Payment submission failed", zap.String("order_id", req.OrderID), zap.Error(err))
		c.sendFailure(errorDescription(err))
		return OutcomeFailed, nil, nil
	}

	c.logger.Info("Payment submitted, polling for outcome",
		zap.String("payment_id", payment.ID),
		zap.String("order_id", payment.OrderID),
	)

	// The submission response itself may already carry a terminal status,
	// e.g. a duplicate idempotency key resolving to a settled payment.
	if outcome, done := c.resolve(payment); done {
		return outcome, payment, nil
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-ticker.C:
		}

		current, err := c.client.GetPayment(ctx, payment.ID)
		if err != nil {
			if ctx.Err() != nil {
				return "", nil, ctx.Err()
			}
			// A flaky poll is not a payment failure; the next tick tries
			// again and the attempt still counts against the budget.
			c.logger.Warn("Status poll failed",
				zap.String("payment_id", payment.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		if outcome, done := c.resolve(current); done {
			return outcome, current, nil
		}
	}

	c.logger.Warn("Payment did not reach a terminal status within the attempt budget",
		zap.String("payment_id", payment.ID),
		zap.Int("max_attempts", c.maxAttempts),
	)
	return OutcomeTimedOut, payment, nil
}

// RequestClose asks the host page to dismiss the checkout surface, e.g. when
// the user clicks the frame's own close affordance.
func (c *Confirmer) RequestClose() {
	c.send(Message{Type: MessageCloseModal, Origin: c.origin, Token: c.frameToken})
}

func (c *Confirmer) resolve(p *Payment) (Outcome, bool) {
	switch p.Status {
	case "success":
		c.sendSuccess(p.ID)
		return OutcomeSucceeded, true
	case "failed":
		c.sendFailure(errorOrDefault(p.ErrorDescription))
		return OutcomeFailed, true
	default:
		return "", false
	}
}

func (c *Confirmer) sendSuccess(paymentID string) {
	data, _ := json.Marshal(SuccessData{PaymentID: paymentID})
	c.sendTerminal(Message{Type: MessagePaymentSuccess, Origin: c.origin, Token: c.frameToken, Data: data})
}

func (c *Confirmer) sendFailure(description string) {
	data, _ := json.Marshal(FailureData{Error: description})
	c.sendTerminal(Message{Type: MessagePaymentFailed, Origin: c.origin, Token: c.frameToken, Data: data})
}

func (c *Confirmer) sendTerminal(msg Message) {
	c.mu.Lock()
	if c.terminalSent {
		c.mu.Unlock()
		return
	}
	c.terminalSent = true
	c.mu.Unlock()

	c.send(msg)
}

func (c *Confirmer) send(msg Message) {
	if c.transport == nil {
		return
	}
	c.transport.Send(msg)
}

func errorDescription(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Description
	}
	return "Payment could not be submitted"
}

func errorOrDefault(description string) string {
	if description == "" {
		return "Payment failed"
	}
	return description
}
