// Package gateway defines the payment-gateway capability the ledger depends
// on. The engine never talks to a processor SDK directly; it sees this
// interface, and wiring selects a live client or the deterministic fake.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/shopspring/decimal"
)

// Intent statuses
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Webhook event names delivered by the gateway.
const (
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"
)

// Intent is a payment attempt registered with the gateway.
type Intent struct {
	IntentID string          `json:"intent_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Gateway is the capability surface of a payment processor. Confirmation is
// webhook-driven, so the ledger only registers intents and issues refunds.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error)
	Refund(ctx context.Context, intentID string, amount decimal.Decimal) (string, error)
}

// Sign computes the hex HMAC-SHA256 signature of a webhook payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook payload signature in constant time.
func VerifySignature(secret string, payload []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(signature))
}
