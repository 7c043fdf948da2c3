package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"paygate/internal/domain"
	"paygate/pkg/signature"
)

type fakeWebhookRepo struct {
	mu         sync.Mutex
	cfg        domain.WebhookConfig
	deliveries map[string]*domain.WebhookDelivery
}

func newFakeWebhookRepo(url, secret string) *fakeWebhookRepo {
	return &fakeWebhookRepo{
		cfg:        domain.WebhookConfig{URL: url, Secret: secret},
		deliveries: make(map[string]*domain.WebhookDelivery),
	}
}

func (r *fakeWebhookRepo) GetConfig(ctx context.Context, q domain.Querier) (*domain.WebhookConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg := r.cfg
	return &cfg, nil
}

func (r *fakeWebhookRepo) UpdateURL(ctx context.Context, q domain.Querier, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.URL = url
	return nil
}

func (r *fakeWebhookRepo) UpdateSecret(ctx context.Context, q domain.Querier, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Secret = secret
	return nil
}

func (r *fakeWebhookRepo) CreateDelivery(ctx context.Context, q domain.Querier, d *domain.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *d
	r.deliveries[d.ID] = &clone
	return nil
}

func (r *fakeWebhookRepo) GetDeliveryByID(ctx context.Context, q domain.Querier, id string) (*domain.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok {
		return nil, domain.ErrWebhookDeliveryNotFound
	}
	clone := *d
	return &clone, nil
}

func (r *fakeWebhookRepo) ListDeliveries(ctx context.Context, q domain.Querier, limit, offset int) ([]*domain.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.WebhookDelivery, 0, len(r.deliveries))
	for _, d := range r.deliveries {
		clone := *d
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeWebhookRepo) RecordAttempt(ctx context.Context, q domain.Querier, id string, status domain.WebhookDeliveryStatus, responseCode *int, attemptedAt time.Time, nextRetryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok {
		return domain.ErrWebhookDeliveryNotFound
	}
	d.Attempts++
	d.Status = status
	d.ResponseCode = responseCode
	at := attemptedAt
	d.LastAttemptAt = &at
	d.NextRetryAt = nextRetryAt
	return nil
}

func (r *fakeWebhookRepo) GetDueRetries(ctx context.Context, q domain.Querier, now time.Time, limit int) ([]*domain.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.WebhookDelivery
	for _, d := range r.deliveries {
		if d.Status == domain.WebhookDeliveryFailed && d.NextRetryAt != nil && !d.NextRetryAt.After(now) {
			clone := *d
			out = append(out, &clone)
		}
	}
	return out, nil
}

type capturedRequest struct {
	body    []byte
	headers http.Header
}

// merchantEndpoint is a stub receiver whose status code can be flipped
// between attempts.
type merchantEndpoint struct {
	mu       sync.Mutex
	status   int
	requests []capturedRequest
	server   *httptest.Server
}

func newMerchantEndpoint(status int) *merchantEndpoint {
	m := &merchantEndpoint{status: status}
	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.requests = append(m.requests, capturedRequest{body: body, headers: r.Header.Clone()})
		status := m.status
		m.mu.Unlock()
		w.WriteHeader(status)
	}))
	return m
}

func (m *merchantEndpoint) setStatus(status int) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
}

func (m *merchantEndpoint) received() []capturedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]capturedRequest(nil), m.requests...)
}

func newTestDispatcher(repo *fakeWebhookRepo) *Dispatcher {
	return NewDispatcher(nil, repo, 2*time.Second, 5, 30*time.Second, zap.NewNop())
}

func TestScheduleDeliversAndRecordsSuccess(t *testing.T) {
	merchant := newMerchantEndpoint(http.StatusOK)
	defer merchant.server.Close()

	repo := newFakeWebhookRepo(merchant.server.URL, "whsec_test")
	d := newTestDispatcher(repo)

	payload := []byte(`{"event":"payment.success","payment_id":"pay_1","amount":1000}`)
	delivery, err := d.Schedule(context.Background(), domain.WebhookEventPaymentSuccess, payload)
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if delivery.Status != domain.WebhookDeliverySuccess {
		t.Errorf("expected success status, got %s", delivery.Status)
	}
	if delivery.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", delivery.Attempts)
	}
	if delivery.ResponseCode == nil || *delivery.ResponseCode != http.StatusOK {
		t.Errorf("expected response code 200, got %v", delivery.ResponseCode)
	}
	if delivery.TargetURL != merchant.server.URL {
		t.Errorf("target url not captured: %s", delivery.TargetURL)
	}

	reqs := merchant.received()
	if len(reqs) != 1 {
		t.Fatalf("merchant should have received 1 request, got %d", len(reqs))
	}
	req := reqs[0]
	if got := req.headers.Get("X-Webhook-Event"); got != "payment.success" {
		t.Errorf("wrong event header: %q", got)
	}
	if got := req.headers.Get("X-Webhook-Delivery-Id"); got != delivery.ID {
		t.Errorf("wrong delivery id header: %q", got)
	}
	sig := req.headers.Get("X-Webhook-Signature")
	if !signature.Verify(req.body, sig, "whsec_test") {
		t.Error("delivered signature must verify against the raw body and the merchant secret")
	}
	if signature.Verify(req.body, sig, "whsec_other") {
		t.Error("signature must not verify under a different secret")
	}
}

func TestScheduleWithoutURLFails(t *testing.T) {
	repo := newFakeWebhookRepo("", "whsec_test")
	d := newTestDispatcher(repo)

	_, err := d.Schedule(context.Background(), domain.WebhookEventTest, []byte(`{}`))
	if !errors.Is(err, domain.ErrWebhookURLNotConfigured) {
		t.Fatalf("expected ErrWebhookURLNotConfigured, got %v", err)
	}
	if len(repo.deliveries) != 0 {
		t.Error("no delivery should be recorded without a configured URL")
	}
}

func TestFailedAttemptSchedulesBackoffRetry(t *testing.T) {
	merchant := newMerchantEndpoint(http.StatusInternalServerError)
	defer merchant.server.Close()

	repo := newFakeWebhookRepo(merchant.server.URL, "whsec_test")
	d := newTestDispatcher(repo)

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	delivery, err := d.Schedule(context.Background(), domain.WebhookEventPaymentFailed, []byte(`{"event":"payment.failed"}`))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	if delivery.Status != domain.WebhookDeliveryFailed {
		t.Errorf("expected failed status, got %s", delivery.Status)
	}
	if delivery.ResponseCode == nil || *delivery.ResponseCode != http.StatusInternalServerError {
		t.Errorf("expected response code 500, got %v", delivery.ResponseCode)
	}
	if delivery.NextRetryAt == nil {
		t.Fatal("first failure must schedule a retry")
	}
	if want := base.Add(30 * time.Second); !delivery.NextRetryAt.Equal(want) {
		t.Errorf("first retry should be base backoff after the attempt: got %v, want %v", delivery.NextRetryAt, want)
	}
}

func TestBackoffDoublesAndStopsAtCeiling(t *testing.T) {
	merchant := newMerchantEndpoint(http.StatusBadGateway)
	defer merchant.server.Close()

	repo := newFakeWebhookRepo(merchant.server.URL, "whsec_test")
	d := newTestDispatcher(repo) // maxAttempts 5, base 30s

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return base }

	delivery, err := d.Schedule(context.Background(), domain.WebhookEventTest, []byte(`{}`))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	wantBackoffs := []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second}
	for i, want := range wantBackoffs {
		if err := d.Retry(context.Background(), delivery.ID); err != nil {
			t.Fatalf("Retry %d failed: %v", i+2, err)
		}
		current, _ := repo.GetDeliveryByID(context.Background(), nil, delivery.ID)
		if current.NextRetryAt == nil {
			t.Fatalf("attempt %d should still schedule a retry", current.Attempts)
		}
		if got := current.NextRetryAt.Sub(base); got != want {
			t.Errorf("attempt %d: backoff = %v, want %v", current.Attempts, got, want)
		}
	}

	// Fifth attempt reaches the ceiling; no further automatic retry.
	if err := d.Retry(context.Background(), delivery.ID); err != nil {
		t.Fatalf("final Retry failed: %v", err)
	}
	final, _ := repo.GetDeliveryByID(context.Background(), nil, delivery.ID)
	if final.Attempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", final.Attempts)
	}
	if final.NextRetryAt != nil {
		t.Errorf("attempt ceiling reached; next retry should be nil, got %v", final.NextRetryAt)
	}
}

func TestManualRetryAfterEndpointRecovers(t *testing.T) {
	merchant := newMerchantEndpoint(http.StatusServiceUnavailable)
	defer merchant.server.Close()

	repo := newFakeWebhookRepo(merchant.server.URL, "whsec_test")
	d := newTestDispatcher(repo)

	delivery, err := d.Schedule(context.Background(), domain.WebhookEventPaymentSuccess, []byte(`{"payment_id":"pay_1"}`))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if delivery.Status != domain.WebhookDeliveryFailed {
		t.Fatalf("expected failed first attempt, got %s", delivery.Status)
	}

	merchant.setStatus(http.StatusOK)
	if err := d.Retry(context.Background(), delivery.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	current, _ := repo.GetDeliveryByID(context.Background(), nil, delivery.ID)
	if current.Status != domain.WebhookDeliverySuccess {
		t.Errorf("retry against a recovered endpoint should succeed, got %s", current.Status)
	}
	if current.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", current.Attempts)
	}
}

func TestRetryUnknownDelivery(t *testing.T) {
	repo := newFakeWebhookRepo("http://example.invalid", "whsec_test")
	d := newTestDispatcher(repo)

	err := d.Retry(context.Background(), "wh_missing")
	if !errors.Is(err, domain.ErrWebhookDeliveryNotFound) {
		t.Fatalf("expected ErrWebhookDeliveryNotFound, got %v", err)
	}
}

func TestUnreachableEndpointRecordsNoResponseCode(t *testing.T) {
	// A closed server guarantees a connection error, not an HTTP status.
	merchant := newMerchantEndpoint(http.StatusOK)
	url := merchant.server.URL
	merchant.server.Close()

	repo := newFakeWebhookRepo(url, "whsec_test")
	d := newTestDispatcher(repo)

	delivery, err := d.Schedule(context.Background(), domain.WebhookEventTest, []byte(`{}`))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if delivery.Status != domain.WebhookDeliveryFailed {
		t.Errorf("expected failed status, got %s", delivery.Status)
	}
	if delivery.ResponseCode != nil {
		t.Errorf("no response was received; code should be nil, got %d", *delivery.ResponseCode)
	}
	if delivery.NextRetryAt == nil {
		t.Error("transport failure should still schedule a retry")
	}
}

func TestDueRetriesAreProcessed(t *testing.T) {
	merchant := newMerchantEndpoint(http.StatusInternalServerError)
	defer merchant.server.Close()

	repo := newFakeWebhookRepo(merchant.server.URL, "whsec_test")
	d := newTestDispatcher(repo)

	now := time.Now()
	d.now = func() time.Time { return now }

	delivery, err := d.Schedule(context.Background(), domain.WebhookEventPaymentSuccess, []byte(`{"payment_id":"pay_1"}`))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	// Not due yet: the retry loop leaves it alone.
	d.processDueRetries(context.Background())
	current, _ := repo.GetDeliveryByID(context.Background(), nil, delivery.ID)
	if current.Attempts != 1 {
		t.Fatalf("retry before next_retry_at must not run, attempts=%d", current.Attempts)
	}

	// Advance past the backoff; the endpoint has recovered.
	merchant.setStatus(http.StatusOK)
	now = now.Add(31 * time.Second)
	d.processDueRetries(context.Background())

	current, _ = repo.GetDeliveryByID(context.Background(), nil, delivery.ID)
	if current.Attempts != 2 {
		t.Fatalf("due retry should have run, attempts=%d", current.Attempts)
	}
	if current.Status != domain.WebhookDeliverySuccess {
		t.Errorf("expected success after due retry, got %s", current.Status)
	}
}

func TestRotatedSecretSignsSubsequentAttempts(t *testing.T) {
	merchant := newMerchantEndpoint(http.StatusInternalServerError)
	defer merchant.server.Close()

	repo := newFakeWebhookRepo(merchant.server.URL, "whsec_old")
	d := newTestDispatcher(repo)

	delivery, err := d.Schedule(context.Background(), domain.WebhookEventPaymentSuccess, []byte(`{"payment_id":"pay_1"}`))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	repo.UpdateSecret(context.Background(), nil, "whsec_new")
	merchant.setStatus(http.StatusOK)
	if err := d.Retry(context.Background(), delivery.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	reqs := merchant.received()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if !signature.Verify(reqs[0].body, reqs[0].headers.Get("X-Webhook-Signature"), "whsec_old") {
		t.Error("first attempt should be signed with the old secret")
	}
	if !signature.Verify(reqs[1].body, reqs[1].headers.Get("X-Webhook-Signature"), "whsec_new") {
		t.Error("retry should be signed with the rotated secret")
	}
}

func TestConfigUpdateDoesNotRedirectInFlightDelivery(t *testing.T) {
	merchant := newMerchantEndpoint(http.StatusInternalServerError)
	defer merchant.server.Close()
	hijacker := newMerchantEndpoint(http.StatusOK)
	defer hijacker.server.Close()

	repo := newFakeWebhookRepo(merchant.server.URL, "whsec_test")
	d := newTestDispatcher(repo)

	delivery, err := d.Schedule(context.Background(), domain.WebhookEventPaymentSuccess, []byte(`{"payment_id":"pay_1"}`))
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	repo.UpdateURL(context.Background(), nil, hijacker.server.URL)
	merchant.setStatus(http.StatusOK)
	if err := d.Retry(context.Background(), delivery.ID); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}

	if len(hijacker.received()) != 0 {
		t.Error("in-flight delivery must keep its captured target URL")
	}
	if len(merchant.received()) != 2 {
		t.Errorf("both attempts should hit the original target, got %d", len(merchant.received()))
	}
}
