package checkout

import "paygate/pkg/signature"

// VerifyWebhookSignature reports whether sig is a valid signature for the
// webhook payload under the merchant's webhook secret. Merchants call this
// on the raw request body and the X-Webhook-Signature header before trusting
// a delivery.
func VerifyWebhookSignature(payload []byte, sig, secret string) bool {
	return signature.Verify(payload, sig, secret)
}
