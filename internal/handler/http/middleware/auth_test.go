package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIKeyAuth(t *testing.T) {
	handler := APIKeyAuth("key_live", "secret_live")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		key        string
		secret     string
		wantStatus int
	}{
		{"valid credentials", "key_live", "secret_live", http.StatusNoContent},
		{"wrong key", "key_other", "secret_live", http.StatusUnauthorized},
		{"wrong secret", "key_live", "secret_other", http.StatusUnauthorized},
		{"missing headers", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/order_1", nil)
			if tt.key != "" {
				req.Header.Set("X-Api-Key", tt.key)
			}
			if tt.secret != "" {
				req.Header.Set("X-Api-Secret", tt.secret)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestAPIKeyAuthErrorShape(t *testing.T) {
	handler := APIKeyAuth("k", "s")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unauthorized body is not JSON: %v", err)
	}
	if body.Error.Code != "unauthorized" || body.Error.Description == "" {
		t.Errorf("unexpected error envelope: %+v", body.Error)
	}
}
