package middleware

import (
	"crypto/subtle"
	"net/http"

	"paygate/internal/handler/http/render"
)

// APIKeyAuth requires every request to carry the merchant's key and secret
// in X-Api-Key / X-Api-Secret. Comparison is constant-time.
func APIKeyAuth(apiKey, apiSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Api-Key")
			secret := r.Header.Get("X-Api-Secret")

			keyOK := subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1
			secretOK := subtle.ConstantTimeCompare([]byte(secret), []byte(apiSecret)) == 1
			if !keyOK || !secretOK {
				render.Error(w, http.StatusUnauthorized, "unauthorized", "Invalid API credentials")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
