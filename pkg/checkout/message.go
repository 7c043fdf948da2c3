package checkout

import "encoding/json"

// MessageType tags a cross-frame message. Unknown tags are ignored by
// receivers so new message types can be introduced without breaking older
// SDKs.
type MessageType string

const (
	MessagePaymentSuccess MessageType = "payment_success"
	MessagePaymentFailed  MessageType = "payment_failed"
	MessageCloseModal     MessageType = "close_modal"
)

// Message is the only unit of information that crosses the boundary between
// the merchant page context and the embedded checkout frame. Origin and
// Token identify the sending frame instance; receivers drop messages that
// fail either check. Data carries no secrets.
type Message struct {
	Type   MessageType     `json:"type"`
	Origin string          `json:"origin"`
	Token  string          `json:"token"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// SuccessData is the payload of a payment_success message.
type SuccessData struct {
	PaymentID string `json:"paymentId"`
}

// FailureData is the payload of a payment_failed message.
type FailureData struct {
	Error string `json:"error"`
}
