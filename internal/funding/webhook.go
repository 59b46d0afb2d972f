package funding

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/congo-pay/paywallet/internal/domain"
)

// SignatureHeader carries the provider's HMAC of the raw request body.
const SignatureHeader = "x-paystack-signature"

const eventChargeSuccess = "charge.success"

// ErrMissingReference is returned for webhook payloads without a reference.
var ErrMissingReference = errors.New("webhook payload has no reference")

// WebhookEvent is a verified provider notification.
type WebhookEvent struct {
	Event     string
	Reference string
	Status    string
	Amount    int64
}

// Confirmed reports whether the event confirms a successful charge.
func (e WebhookEvent) Confirmed() bool {
	return e.Event == eventChargeSuccess || e.Status == "success"
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

// Sign returns the hex HMAC-SHA512 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseWebhook authenticates body against signature and decodes it. The
// amount is converted from kobo to whole units.
func ParseWebhook(secret string, body []byte, signature string) (WebhookEvent, error) {
	if secret == "" {
		return WebhookEvent{}, fmt.Errorf("%w: no webhook secret configured", domain.ErrInvalidSignature)
	}
	expected := Sign(secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return WebhookEvent{}, domain.ErrInvalidSignature
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook: %w", err)
	}
	if payload.Data.Reference == "" {
		return WebhookEvent{}, ErrMissingReference
	}

	return WebhookEvent{
		Event:     payload.Event,
		Reference: payload.Data.Reference,
		Status:    payload.Data.Status,
		Amount:    fromKobo(payload.Data.Amount),
	}, nil
}
