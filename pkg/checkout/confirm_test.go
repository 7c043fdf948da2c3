package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakePaymentAPI struct {
	createErr error
	createdID string
	// createStatus lets the submission response itself be terminal, like a
	// duplicate idempotency key resolving to a settled payment.
	createStatus string

	// pollStatuses is consumed one status per poll; the last entry repeats.
	pollStatuses []string
	pollErrs     []error

	idempotencyKeys []string
	polls           int
}

func (f *fakePaymentAPI) CreatePayment(ctx context.Context, req *PaymentRequest, idempotencyKey string) (*Payment, error) {
	f.idempotencyKeys = append(f.idempotencyKeys, idempotencyKey)
	if f.createErr != nil {
		return nil, f.createErr
	}
	status := f.createStatus
	if status == "" {
		status = "pending"
	}
	return &Payment{ID: f.createdID, OrderID: req.OrderID, Status: status}, nil
}

func (f *fakePaymentAPI) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	i := f.polls
	f.polls++
	if i < len(f.pollErrs) && f.pollErrs[i] != nil {
		return nil, f.pollErrs[i]
	}
	status := "pending"
	if len(f.pollStatuses) > 0 {
		if i >= len(f.pollStatuses) {
			i = len(f.pollStatuses) - 1
		}
		status = f.pollStatuses[i]
	}
	p := &Payment{ID: paymentID, Status: status}
	if status == "failed" {
		p.ErrorDescription = "Card declined by issuer"
	}
	return p, nil
}

type confirmFixture struct {
	api      *fakePaymentAPI
	received []Message
}

func newConfirmer(f *confirmFixture, maxAttempts int) *Confirmer {
	host, frame := NewPipe()
	host.Subscribe(func(m Message) { f.received = append(f.received, m) })

	return NewConfirmer(ConfirmerOptions{
		Client:       f.api,
		Transport:    frame,
		Origin:       "http://localhost:3001",
		FrameToken:   "tok_1",
		MaxAttempts:  maxAttempts,
		PollInterval: time.Millisecond,
	})
}

func upiRequest() *PaymentRequest {
	return &PaymentRequest{OrderID: "order_1", Method: "upi", VPA: "user@bank"}
}

func terminalMessages(msgs []Message) []Message {
	var out []Message
	for _, m := range msgs {
		if m.Type == MessagePaymentSuccess || m.Type == MessagePaymentFailed {
			out = append(out, m)
		}
	}
	return out
}

func TestConfirmSuccessAfterPolling(t *testing.T) {
	f := &confirmFixture{api: &fakePaymentAPI{
		createdID:    "pay_1",
		pollStatuses: []string{"pending", "pending", "success"},
	}}
	c := newConfirmer(f, 10)

	outcome, payment, err := c.Confirm(context.Background(), upiRequest())
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if outcome != OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", outcome)
	}
	if payment == nil || payment.ID != "pay_1" {
		t.Fatalf("expected terminal payment pay_1, got %+v", payment)
	}
	if f.api.polls != 3 {
		t.Errorf("expected 3 polls, got %d", f.api.polls)
	}

	terminal := terminalMessages(f.received)
	if len(terminal) != 1 || terminal[0].Type != MessagePaymentSuccess {
		t.Fatalf("expected exactly one payment_success message, got %+v", terminal)
	}
	var data SuccessData
	if err := json.Unmarshal(terminal[0].Data, &data); err != nil || data.PaymentID != "pay_1" {
		t.Errorf("success message should carry the payment id, got %s", terminal[0].Data)
	}
	if terminal[0].Token != "tok_1" || terminal[0].Origin != "http://localhost:3001" {
		t.Error("outgoing messages must carry the frame token and origin")
	}
}

func TestConfirmFailedPayment(t *testing.T) {
	f := &confirmFixture{api: &fakePaymentAPI{
		createdID:    "pay_1",
		pollStatuses: []string{"failed"},
	}}
	c := newConfirmer(f, 10)

	outcome, payment, err := c.Confirm(context.Background(), upiRequest())
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}
	if payment.ErrorDescription != "Card declined by issuer" {
		t.Errorf("expected error description on terminal payment, got %q", payment.ErrorDescription)
	}

	terminal := terminalMessages(f.received)
	if len(terminal) != 1 || terminal[0].Type != MessagePaymentFailed {
		t.Fatalf("expected exactly one payment_failed message, got %+v", terminal)
	}
	var data FailureData
	if err := json.Unmarshal(terminal[0].Data, &data); err != nil || data.Error != "Card declined by issuer" {
		t.Errorf("failure message should carry the decline reason, got %s", terminal[0].Data)
	}
}

func TestConfirmSubmissionFailureSkipsPolling(t *testing.T) {
	f := &confirmFixture{api: &fakePaymentAPI{
		createErr: &APIError{StatusCode: 400, Code: "invalid_payment", Description: "a valid vpa is required for upi payments"},
	}}
	c := newConfirmer(f, 10)

	outcome, payment, err := c.Confirm(context.Background(), upiRequest())
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}
	if payment != nil {
		t.Error("no payment exists when submission fails")
	}
	if f.api.polls != 0 {
		t.Errorf("submission failure must not poll, got %d polls", f.api.polls)
	}

	terminal := terminalMessages(f.received)
	if len(terminal) != 1 || terminal[0].Type != MessagePaymentFailed {
		t.Fatalf("expected exactly one payment_failed message, got %+v", terminal)
	}
	var data FailureData
	json.Unmarshal(terminal[0].Data, &data)
	if data.Error != "a valid vpa is required for upi payments" {
		t.Errorf("API error description should surface to the host, got %q", data.Error)
	}
}

func TestConfirmTimesOutSilently(t *testing.T) {
	f := &confirmFixture{api: &fakePaymentAPI{createdID: "pay_1"}}
	c := newConfirmer(f, 5)

	outcome, payment, err := c.Confirm(context.Background(), upiRequest())
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if outcome != OutcomeTimedOut {
		t.Fatalf("expected timed_out, got %s", outcome)
	}
	if payment == nil || payment.Status != "pending" {
		t.Errorf("timed out run still returns the pending payment, got %+v", payment)
	}
	if f.api.polls != 5 {
		t.Errorf("expected polls to stop at the budget of 5, got %d", f.api.polls)
	}
	if len(terminalMessages(f.received)) != 0 {
		t.Error("timing out must not send any terminal message")
	}
}

func TestConfirmTransientPollErrorsCountAgainstBudget(t *testing.T) {
	f := &confirmFixture{api: &fakePaymentAPI{
		createdID:    "pay_1",
		pollErrs:     []error{errors.New("connection reset"), nil},
		pollStatuses: []string{"pending", "success"},
	}}
	c := newConfirmer(f, 10)

	outcome, _, err := c.Confirm(context.Background(), upiRequest())
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if outcome != OutcomeSucceeded {
		t.Fatalf("transient poll error should not be terminal, got %s", outcome)
	}
	if f.api.polls != 2 {
		t.Errorf("expected 2 polls, got %d", f.api.polls)
	}
}

func TestConfirmTerminalSubmissionResponseSkipsPolling(t *testing.T) {
	// A resubmitted idempotency key can come back already settled.
	f := &confirmFixture{api: &fakePaymentAPI{createdID: "pay_1", createStatus: "success"}}
	c := newConfirmer(f, 10)

	outcome, _, err := c.Confirm(context.Background(), upiRequest())
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if outcome != OutcomeSucceeded {
		t.Fatalf("expected succeeded, got %s", outcome)
	}
	if f.api.polls != 0 {
		t.Errorf("terminal submission response must not poll, got %d", f.api.polls)
	}
	if len(terminalMessages(f.received)) != 1 {
		t.Error("expected exactly one terminal message")
	}
}

func TestConfirmGeneratesIdempotencyKey(t *testing.T) {
	f := &confirmFixture{api: &fakePaymentAPI{createdID: "pay_1", createStatus: "success"}}
	c := newConfirmer(f, 10)

	if _, _, err := c.Confirm(context.Background(), upiRequest()); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if len(f.api.idempotencyKeys) != 1 || f.api.idempotencyKeys[0] == "" {
		t.Errorf("submission must carry a generated idempotency key, got %v", f.api.idempotencyKeys)
	}
}

func TestConfirmRunsOnce(t *testing.T) {
	f := &confirmFixture{api: &fakePaymentAPI{createdID: "pay_1", createStatus: "success"}}
	c := newConfirmer(f, 10)

	if _, _, err := c.Confirm(context.Background(), upiRequest()); err != nil {
		t.Fatalf("first Confirm failed: %v", err)
	}
	if _, _, err := c.Confirm(context.Background(), upiRequest()); !errors.Is(err, ErrConfirmationDone) {
		t.Errorf("second Confirm: got %v, want ErrConfirmationDone", err)
	}
}

func TestConfirmHonoursContextCancellation(t *testing.T) {
	f := &confirmFixture{api: &fakePaymentAPI{createdID: "pay_1"}}
	c := newConfirmer(f, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := c.Confirm(ctx, upiRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(terminalMessages(f.received)) != 0 {
		t.Error("a cancelled run must not send a terminal message")
	}
}

func TestRequestClose(t *testing.T) {
	f := &confirmFixture{api: &fakePaymentAPI{}}
	c := newConfirmer(f, 10)

	c.RequestClose()

	if len(f.received) != 1 || f.received[0].Type != MessageCloseModal {
		t.Fatalf("expected one close_modal message, got %+v", f.received)
	}
	if f.received[0].Token != "tok_1" {
		t.Error("close_modal must carry the frame token")
	}
}
