package order

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mmabdalla/courseworx-sub003/internal/gateway"
	"github.com/mmabdalla/courseworx-sub003/pkg/response"
)

// WebhookHandlers receives asynchronous payment events from the gateway.
type WebhookHandlers struct {
	service *Service
	secret  string
}

func NewWebhookHandlers(service *Service, secret string) *WebhookHandlers {
	return &WebhookHandlers{
		service: service,
		secret:  secret,
	}
}

type webhookEvent struct {
	Event                string `json:"event"`
	OrderID              string `json:"order_id"`
	GatewayTransactionID string `json:"gateway_transaction_id"`
	PaymentMethod        string `json:"payment_method"`
	Reason               string `json:"reason"`
}

// PaymentEventHandler handles POST requests carrying gateway payment events.
// The raw body is signature-checked before it is parsed; delivery is
// at-least-once, so the paid transition downstream must stay idempotent.
func (h *WebhookHandlers) PaymentEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := log.With().Str("component", "payment_webhook").Logger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BadRequest(c, "failed to read request body")
			return
		}

		if h.secret != "" {
			signature := c.GetHeader("X-Gateway-Signature")
			if !gateway.VerifySignature(h.secret, body, signature) {
				logger.Warn().Msg("rejected webhook with invalid signature")
				response.Unauthorized(c, "invalid webhook signature")
				return
			}
		}

		var event webhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			response.BadRequest(c, "invalid webhook payload")
			return
		}
		if event.OrderID == "" {
			response.BadRequest(c, "webhook payload is missing order_id")
			return
		}

		logger.Info().
			Str("event", event.Event).
			Str("order_id", event.OrderID).
			Msg("payment event received")

		switch event.Event {
		case gateway.EventPaymentSucceeded:
			order, err := h.service.MarkPaid(event.OrderID, event.GatewayTransactionID, event.PaymentMethod)
			response.Handle(c, order, err)

		case gateway.EventPaymentFailed:
			order, err := h.service.MarkFailed(event.OrderID)
			response.Handle(c, order, err)

		default:
			response.BadRequest(c, "unsupported event type: "+event.Event)
		}
	}
}
