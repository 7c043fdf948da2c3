package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Sign computes an HMAC-SHA256 signature over the canonical form of payload
// and returns it hex-encoded. Identical payload and secret always produce an
// identical signature, regardless of key order in the input JSON.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(Canonicalize(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time. It returns
// false for any mismatch, wrong secret, or malformed signature; it never
// panics on malformed input.
func Verify(payload []byte, sig, secret string) bool {
	expected, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(Canonicalize(payload))
	return hmac.Equal(expected, mac.Sum(nil))
}

// Canonicalize re-encodes a JSON payload with lexically sorted object keys
// and no insignificant whitespace, so independent implementations agree
// byte-for-byte. Payloads that are not valid JSON are returned unchanged.
func Canonicalize(payload []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return payload
	}
	// encoding/json marshals map keys in sorted order.
	out, err := json.Marshal(v)
	if err != nil {
		return payload
	}
	return out
}
