package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
)

// SignatureHeader carries the keyed hash of the raw webhook body.
const SignatureHeader = "X-Paystack-Signature"

// EventChargeSuccess is the only webhook event reconciliation processes;
// everything else is acknowledged and ignored.
const EventChargeSuccess = "charge.success"

// ValidSignature compares the HMAC-SHA512 of the raw body against the
// header-supplied signature. Constant-time compare; a mismatch means the
// request is rejected before any lookup or side effect.
func ValidSignature(body []byte, signature, secretKey string) bool {
	if signature == "" || secretKey == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookEvent is the subset of a gateway event reconciliation needs.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference  string `json:"reference"`
		Status     string `json:"status"`
		AmountKobo int64  `json:"amount"`
	} `json:"data"`
}

// ParseWebhook decodes a raw webhook body.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookEvent{}, err
	}
	return ev, nil
}

// Sign computes the hex HMAC-SHA512 of body. Exposed for tests and the
// sandbox webhook simulator.
func Sign(body []byte, secretKey string) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
