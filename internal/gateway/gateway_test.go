package gateway

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	payload := []byte(`{"event":"payment_succeeded","order_id":"ORD_1"}`)

	sig := Sign("topsecret", payload)
	assert.True(t, VerifySignature("topsecret", payload, sig))
	assert.False(t, VerifySignature("wrong", payload, sig))
	assert.False(t, VerifySignature("topsecret", []byte("tampered"), sig))
	assert.False(t, VerifySignature("topsecret", payload, ""))
}

func TestFakeGatewayIntentLifecycle(t *testing.T) {
	fake := NewFake()
	ctx := context.Background()

	intent, err := fake.CreateIntent(ctx, decimal.RequireFromString("49.99"), "USD",
		map[string]string{"order_id": "ORD_42"})
	require.NoError(t, err)
	assert.Equal(t, "PI_FAKE_ORD_42", intent.IntentID)
	assert.Equal(t, StatusPending, intent.Status)

	status, err := fake.Confirm(ctx, intent.IntentID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, status)

	refundID, err := fake.Refund(ctx, intent.IntentID, decimal.RequireFromString("49.99"))
	require.NoError(t, err)
	assert.Equal(t, "RF_FAKE_"+intent.IntentID, refundID)

	assert.Len(t, fake.Intents(), 1)
}

func TestFakeGatewayUnknownIntent(t *testing.T) {
	fake := NewFake()
	ctx := context.Background()

	_, err := fake.Confirm(ctx, "PI_MISSING")
	assert.Error(t, err)

	_, err = fake.Refund(ctx, "PI_MISSING", decimal.RequireFromString("1"))
	assert.Error(t, err)
}
