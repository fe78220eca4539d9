package order

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmabdalla/courseworx-sub003/internal/cart"
	"github.com/mmabdalla/courseworx-sub003/internal/gateway"
)

const webhookSecret = "whsec_test"

func newWebhookRouter(env *testEnv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := NewWebhookHandlers(env.orders, webhookSecret)
	router.POST("/webhooks/payment", handlers.PaymentEventHandler())
	return router
}

func postEvent(t *testing.T, router *gin.Engine, event webhookEvent, sign bool) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(event)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	if sign {
		req.Header.Set("X-Gateway-Signature", gateway.Sign(webhookSecret, body))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookPaymentSucceededMarksPaid(t *testing.T) {
	env := newTestEnv(t)
	router := newWebhookRouter(env)

	result := env.checkout(t, "u1", cart.AddItemInput{CourseID: "CRS_A", UnitPrice: d("50")})

	rec := postEvent(t, router, webhookEvent{
		Event:                gateway.EventPaymentSucceeded,
		OrderID:              result.Order.OrderID,
		GatewayTransactionID: "GTX_1",
		PaymentMethod:        "card",
	}, true)
	assert.Equal(t, http.StatusCreated, rec.Code)

	paid, err := env.orders.GetByOrderNumber(result.Order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)
	assert.Equal(t, "GTX_1", paid.GatewayTransactionID)
}

func TestWebhookPaymentFailedMarksFailed(t *testing.T) {
	env := newTestEnv(t)
	router := newWebhookRouter(env)

	result := env.checkout(t, "u1", cart.AddItemInput{CourseID: "CRS_A", UnitPrice: d("50")})

	rec := postEvent(t, router, webhookEvent{
		Event:   gateway.EventPaymentFailed,
		OrderID: result.Order.OrderID,
		Reason:  "card_declined",
	}, true)
	assert.Equal(t, http.StatusCreated, rec.Code)

	failed, err := env.orders.GetByOrderNumber(result.Order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	router := newWebhookRouter(env)

	result := env.checkout(t, "u1", cart.AddItemInput{CourseID: "CRS_A", UnitPrice: d("50")})

	rec := postEvent(t, router, webhookEvent{
		Event:   gateway.EventPaymentSucceeded,
		OrderID: result.Order.OrderID,
	}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The order is untouched
	pending, err := env.orders.GetByOrderNumber(result.Order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, pending.Status)
}

func TestWebhookRetryDelivery(t *testing.T) {
	env := newTestEnv(t)
	router := newWebhookRouter(env)

	result := env.checkout(t, "u1", cart.AddItemInput{CourseID: "CRS_A", UnitPrice: d("50")})

	event := webhookEvent{
		Event:                gateway.EventPaymentSucceeded,
		OrderID:              result.Order.OrderID,
		GatewayTransactionID: "GTX_1",
		PaymentMethod:        "card",
	}

	assert.Equal(t, http.StatusCreated, postEvent(t, router, event, true).Code)
	assert.Equal(t, http.StatusCreated, postEvent(t, router, event, true).Code)

	txns, err := env.orders.ListTransactions(result.Order.OrderID)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestWebhookUnknownEvent(t *testing.T) {
	env := newTestEnv(t)
	router := newWebhookRouter(env)

	rec := postEvent(t, router, webhookEvent{Event: "payment_disputed", OrderID: "ORD_X"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
