package gateway

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
)

// Fake is a deterministic in-memory gateway used in development and tests.
// Intent ids are derived from the order id in the metadata, every confirm
// succeeds, and all calls are recorded for assertions.
type Fake struct {
	mu      sync.Mutex
	intents map[string]*Intent
	refunds []string
}

// NewFake creates a deterministic fake gateway.
func NewFake() *Fake {
	return &Fake{
		intents: make(map[string]*Intent),
	}
}

func (f *Fake) CreateIntent(_ context.Context, amount decimal.Decimal, currencyCode string, metadata map[string]string) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	intentID := "PI_FAKE_" + metadata["order_id"]
	intent := &Intent{
		IntentID: intentID,
		Amount:   amount,
		Currency: currencyCode,
		Status:   StatusPending,
		Metadata: metadata,
	}
	f.intents[intentID] = intent

	log.Debug().
		Str("component", "fake_gateway").
		Str("intent_id", intentID).
		Str("amount", amount.String()).
		Str("currency", currencyCode).
		Msg("payment intent created")

	return intent, nil
}

// Confirm marks an intent succeeded. The live flow confirms via webhook;
// this is the fake's stand-in for the shopper completing payment.
func (f *Fake) Confirm(_ context.Context, intentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	intent, ok := f.intents[intentID]
	if !ok {
		return "", apperrors.NotFound("payment intent %s not found", intentID)
	}
	intent.Status = StatusSucceeded
	return StatusSucceeded, nil
}

func (f *Fake) Refund(_ context.Context, intentID string, amount decimal.Decimal) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.intents[intentID]; !ok {
		return "", apperrors.NotFound("payment intent %s not found", intentID)
	}
	refundID := "RF_FAKE_" + intentID
	f.refunds = append(f.refunds, refundID)

	log.Debug().
		Str("component", "fake_gateway").
		Str("refund_id", refundID).
		Str("amount", amount.String()).
		Msg("refund issued")

	return refundID, nil
}

// Refunds returns the refund ids issued so far, for tests.
func (f *Fake) Refunds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.refunds))
	copy(out, f.refunds)
	return out
}

// Intents returns a snapshot of the created intents, for tests.
func (f *Fake) Intents() []Intent {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Intent, 0, len(f.intents))
	for _, intent := range f.intents {
		out = append(out, *intent)
	}
	return out
}
