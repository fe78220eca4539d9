package order

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mmabdalla/courseworx-sub003/internal/cart"
	"github.com/mmabdalla/courseworx-sub003/internal/coupon"
	"github.com/mmabdalla/courseworx-sub003/internal/currency"
	"github.com/mmabdalla/courseworx-sub003/internal/gateway"
	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
	"github.com/mmabdalla/courseworx-sub003/pkg/money"
	"github.com/mmabdalla/courseworx-sub003/pkg/response"
)

// EnrollmentNotifier receives one event per order item after a paid order
// commits. The enrollment service itself is an external collaborator.
type EnrollmentNotifier interface {
	EnrollmentCreated(orderID, courseID, userID string)
}

// LogNotifier is the default notifier; it only logs the event.
type LogNotifier struct{}

func (LogNotifier) EnrollmentCreated(orderID, courseID, userID string) {
	log.Info().
		Str("component", "enrollment_notifier").
		Str("order_id", orderID).
		Str("course_id", courseID).
		Str("user_id", userID).
		Msg("enrollment:created")
}

// Fees configures the platform and gateway fee split.
type Fees struct {
	PlatformFeePct  decimal.Decimal
	GatewayFeePct   decimal.Decimal
	GatewayFeeFixed decimal.Decimal
}

// Service is the order/transaction ledger. It owns the order state machine
// and everything derived from it: transactions and trainer payouts.
type Service struct {
	db         *Database
	carts      *cart.Service
	coupons    *coupon.Service
	currencies *currency.Service
	gw         gateway.Gateway
	notifier   EnrollmentNotifier
	fees       Fees
}

// NewService creates a new ledger service.
func NewService(
	gormDB *gorm.DB,
	carts *cart.Service,
	coupons *coupon.Service,
	currencies *currency.Service,
	gw gateway.Gateway,
	notifier EnrollmentNotifier,
	fees Fees,
) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Service{
		db:         NewDatabase(gormDB),
		carts:      carts,
		coupons:    coupons,
		currencies: currencies,
		gw:         gw,
		notifier:   notifier,
		fees:       fees,
	}
}

// CheckoutResult is the outcome of snapshotting a cart into an order.
type CheckoutResult struct {
	Order           *Order `json:"order"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
}

// CreateFromCart snapshots the owner's cart into an immutable order with a
// fresh order number and registers a payment intent with the gateway. The
// stored coupon is re-validated against the snapshot total here, so a
// discount gone stale through later item mutations cannot leak into an
// order.
func (s *Service) CreateFromCart(ctx context.Context, owner cart.Owner, userID, currencyCode string) (*CheckoutResult, error) {
	logger := log.With().
		Str("user_id", userID).
		Str("service", "order").
		Logger()

	liveCart, err := s.carts.Get(owner)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.Validation("cart is empty or expired").WithCode("EMPTY_CART")
		}
		return nil, err
	}
	if len(liveCart.Items) == 0 {
		return nil, apperrors.Validation("cart is empty or expired").WithCode("EMPTY_CART")
	}

	if currencyCode == "" {
		base, err := s.currencies.GetBase()
		if err != nil {
			return nil, err
		}
		currencyCode = base.Code
	} else {
		if _, err := s.currencies.GetByCode(currencyCode); err != nil {
			return nil, err
		}
		currencyCode = strings.ToUpper(currencyCode)
	}

	discount := liveCart.DiscountAmount
	if liveCart.CouponCode != "" {
		fresh, result, err := s.coupons.DiscountFor(liveCart.CouponCode, liveCart.TotalAmount, "")
		if err != nil {
			return nil, err
		}
		if !result.Valid {
			return nil, apperrors.Validation("coupon %s no longer applies: %s",
				liveCart.CouponCode, result.Reason)
		}
		discount = fresh
	}

	now := time.Now()
	order := &Order{
		OrderID:        "ORD_" + uuid.New().String(),
		OrderNumber:    generateOrderNumber(now),
		UserID:         userID,
		Status:         StatusPending,
		CurrencyCode:   currencyCode,
		TotalAmount:    liveCart.TotalAmount,
		DiscountAmount: discount,
		TaxAmount:      liveCart.TaxAmount,
		CouponCode:     liveCart.CouponCode,
		RefundAmount:   decimal.Zero,
		Items:          snapshotItems(liveCart, discount),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	final := order.TotalAmount.Sub(order.DiscountAmount).Add(order.TaxAmount)
	if final.Sign() < 0 {
		final = decimal.Zero
	}
	order.FinalAmount = final

	intent, err := s.gw.CreateIntent(ctx, order.FinalAmount, currencyCode, map[string]string{
		"order_id":     order.OrderID,
		"order_number": order.OrderNumber,
	})
	if err != nil {
		return nil, apperrors.External(err, "failed to register payment intent")
	}
	order.PaymentIntentID = intent.IntentID

	if err := s.db.CreateOrderWithItems(order); err != nil {
		logger.Error().Err(err).Msg("failed to create order")
		return nil, apperrors.External(err, "failed to create order")
	}

	// The cart is consumed by checkout. Failure here is non-fatal; a
	// leftover cart expires on its own.
	if err := s.carts.Destroy(liveCart.CartID); err != nil {
		logger.Warn().Err(err).Str("cart_id", liveCart.CartID).Msg("failed to delete checked-out cart")
	}

	logger.Info().
		Str("order_id", order.OrderID).
		Str("order_number", order.OrderNumber).
		Str("final_amount", order.FinalAmount.String()).
		Str("currency", currencyCode).
		Int("items", len(order.Items)).
		Msg("order created from cart")

	return &CheckoutResult{Order: order, PaymentIntentID: intent.IntentID}, nil
}

// snapshotItems freezes cart lines into order items, allocating the cart
// discount proportionally. The last line absorbs the rounding remainder so
// the allocations sum exactly to the discount.
func snapshotItems(c *cart.Cart, discount decimal.Decimal) []OrderItem {
	items := make([]OrderItem, len(c.Items))
	allocated := decimal.Zero

	for i, line := range c.Items {
		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))

		var lineDiscount decimal.Decimal
		if i == len(c.Items)-1 {
			lineDiscount = discount.Sub(allocated)
		} else if c.TotalAmount.Sign() > 0 {
			lineDiscount = money.Round(discount.Mul(lineTotal).Div(c.TotalAmount), 2)
			allocated = allocated.Add(lineDiscount)
		}

		items[i] = OrderItem{
			CourseID:         line.CourseID,
			CourseType:       line.CourseType,
			EnrollmentType:   "purchase",
			OriginalPrice:    lineTotal,
			FinalPrice:       lineTotal.Sub(lineDiscount),
			Quantity:         line.Quantity,
			DiscountAmount:   lineDiscount,
			EnrollmentStatus: EnrollPending,
		}
	}
	return items
}

func generateOrderNumber(now time.Time) string {
	return "ORD-" + now.Format("20060102") + "-" + strings.ToUpper(uuid.New().String()[:8])
}

// MarkPaid transitions a pending order to paid, creates the completed
// transaction with its fee split and commits coupon usage. Calling it on an
// already-paid order is a successful no-op so at-least-once webhook delivery
// is safe.
func (s *Service) MarkPaid(orderID, gatewayTxnID, method string) (*Order, error) {
	logger := log.With().
		Str("order_id", orderID).
		Str("service", "order").
		Logger()

	order, err := s.db.GetByOrderID(orderID)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch order")
	}
	if order == nil {
		return nil, apperrors.NotFound("order %s not found", orderID)
	}

	if order.Status == StatusPaid {
		logger.Info().Msg("order already paid; treating as idempotent retry")
		return order, nil
	}
	if order.Status != StatusPending {
		return nil, apperrors.State("cannot mark a %s order as paid", order.Status)
	}

	usageCommitted := false
	if order.CouponCode != "" && !order.CouponUsageCommitted {
		if err := s.coupons.IncrementUsage(order.CouponCode); err != nil {
			if apperrors.IsKind(err, apperrors.KindConflict) {
				// The losing side of a redemption race fails its order
				// rather than leaving it pending.
				if failErr := s.failPending(order); failErr != nil {
					logger.Error().Err(failErr).Msg("failed to fail order after coupon exhaustion")
				}
				return nil, err
			}
			return nil, err
		}
		usageCommitted = true
	}

	split, err := CalculateFees(order.FinalAmount, s.fees.PlatformFeePct, s.fees.GatewayFeePct, s.fees.GatewayFeeFixed, 2)
	if err != nil {
		if usageCommitted {
			_ = s.coupons.DecrementUsage(order.CouponCode)
		}
		return nil, err
	}

	now := time.Now()
	order.Status = StatusPaid
	order.PaidAt = &now
	order.PaymentMethod = method
	order.GatewayTransactionID = gatewayTxnID
	order.CouponUsageCommitted = order.CouponUsageCommitted || usageCommitted
	order.UpdatedAt = now

	txn := &Transaction{
		TransactionID: "TXN_" + uuid.New().String(),
		OrderID:       order.OrderID,
		Amount:        order.FinalAmount,
		GatewayFee:    split.GatewayFee,
		PlatformFee:   split.PlatformFee,
		Status:        TxnCompleted,
		ProcessedAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	claimed, err := s.db.MarkPaid(order, txn)
	if err != nil {
		if usageCommitted {
			_ = s.coupons.DecrementUsage(order.CouponCode)
		}
		logger.Error().Err(err).Msg("failed to commit paid transition")
		return nil, apperrors.External(err, "failed to mark order paid")
	}
	if !claimed {
		// Another confirmation moved the order off pending between our read
		// and the conditional update.
		if usageCommitted {
			_ = s.coupons.DecrementUsage(order.CouponCode)
		}
		current, err := s.db.GetByOrderID(orderID)
		if err != nil {
			return nil, apperrors.External(err, "failed to fetch order")
		}
		if current == nil {
			return nil, apperrors.NotFound("order %s not found", orderID)
		}
		if current.Status == StatusPaid {
			logger.Info().Msg("order paid by a concurrent confirmation")
			return current, nil
		}
		return nil, apperrors.State("cannot mark a %s order as paid", current.Status)
	}

	for i := range order.Items {
		order.Items[i].EnrollmentStatus = EnrollEnrolled
		order.Items[i].EnrolledAt = &now
	}

	for _, item := range order.Items {
		s.notifier.EnrollmentCreated(order.OrderID, item.CourseID, order.UserID)
	}

	logger.Info().
		Str("transaction_id", txn.TransactionID).
		Str("amount", txn.Amount.String()).
		Str("platform_fee", split.PlatformFee.String()).
		Str("gateway_fee", split.GatewayFee.String()).
		Msg("order marked paid")

	return order, nil
}

// failPending flips a pending order to failed and rolls back committed
// coupon usage.
func (s *Service) failPending(order *Order) error {
	if order.CouponUsageCommitted && order.CouponCode != "" {
		if err := s.coupons.DecrementUsage(order.CouponCode); err != nil {
			return err
		}
		order.CouponUsageCommitted = false
	}
	order.Status = StatusFailed
	order.UpdatedAt = time.Now()
	return s.db.SaveOrder(order)
}

// MarkFailed transitions a pending order to failed.
func (s *Service) MarkFailed(orderID string) (*Order, error) {
	order, err := s.db.GetByOrderID(orderID)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch order")
	}
	if order == nil {
		return nil, apperrors.NotFound("order %s not found", orderID)
	}
	if order.Status != StatusPending {
		return nil, apperrors.State("cannot fail a %s order", order.Status)
	}

	if err := s.failPending(order); err != nil {
		return nil, apperrors.External(err, "failed to mark order failed")
	}

	log.Info().
		Str("service", "order").
		Str("order_id", orderID).
		Msg("order marked failed")
	return order, nil
}

// MarkCancelled transitions a pending order to cancelled, rolling back
// committed coupon usage.
func (s *Service) MarkCancelled(orderID string) (*Order, error) {
	order, err := s.db.GetByOrderID(orderID)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch order")
	}
	if order == nil {
		return nil, apperrors.NotFound("order %s not found", orderID)
	}
	if order.Status != StatusPending {
		return nil, apperrors.State("cannot cancel a %s order", order.Status)
	}

	if order.CouponUsageCommitted && order.CouponCode != "" {
		if err := s.coupons.DecrementUsage(order.CouponCode); err != nil {
			return nil, err
		}
		order.CouponUsageCommitted = false
	}

	order.Status = StatusCancelled
	order.UpdatedAt = time.Now()
	if err := s.db.SaveOrder(order); err != nil {
		return nil, apperrors.External(err, "failed to mark order cancelled")
	}

	log.Info().
		Str("service", "order").
		Str("order_id", orderID).
		Msg("order cancelled")
	return order, nil
}

// MarkRefunded transitions a paid order to refunded, once, for an amount no
// greater than what was charged. The gateway refund is issued against the
// stored payment intent before the ledger records the transition.
func (s *Service) MarkRefunded(ctx context.Context, orderID string, amount decimal.Decimal) (*Order, error) {
	order, err := s.db.GetByOrderID(orderID)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch order")
	}
	if order == nil {
		return nil, apperrors.NotFound("order %s not found", orderID)
	}
	if order.Status != StatusPaid {
		return nil, apperrors.State("cannot refund a %s order", order.Status)
	}
	if order.RefundedAt != nil {
		return nil, apperrors.State("order %s is already refunded", orderID)
	}
	if err := money.RequirePositive(amount, "refund amount"); err != nil {
		return nil, err
	}
	if amount.GreaterThan(order.FinalAmount) {
		return nil, apperrors.Validation("refund amount %s exceeds the charged amount %s",
			amount.String(), order.FinalAmount.String())
	}

	if order.PaymentIntentID != "" {
		if _, err := s.gw.Refund(ctx, order.PaymentIntentID, amount); err != nil {
			return nil, apperrors.External(err, "gateway refund failed")
		}
	}

	now := time.Now()
	order.Status = StatusRefunded
	order.RefundedAt = &now
	order.RefundAmount = amount
	order.UpdatedAt = now

	txn := &Transaction{
		TransactionID: "TXN_" + uuid.New().String(),
		OrderID:       order.OrderID,
		Amount:        amount,
		GatewayFee:    decimal.Zero,
		PlatformFee:   decimal.Zero,
		Status:        TxnRefunded,
		ProcessedAt:   &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.db.MarkRefunded(order, txn); err != nil {
		return nil, apperrors.External(err, "failed to mark order refunded")
	}

	log.Info().
		Str("service", "order").
		Str("order_id", orderID).
		Str("refund_amount", amount.String()).
		Msg("order refunded")
	return order, nil
}

// CreatePayout derives the trainer's share of a paid, non-refunded order.
// At most one payout exists per order.
func (s *Service) CreatePayout(orderID, trainerID string) (*Payout, error) {
	order, err := s.db.GetByOrderID(orderID)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch order")
	}
	if order == nil {
		return nil, apperrors.NotFound("order %s not found", orderID)
	}
	if order.Status != StatusPaid {
		return nil, apperrors.State("payouts require a paid order, got %s", order.Status)
	}
	if order.RefundedAt != nil {
		return nil, apperrors.State("cannot create a payout for a refunded order")
	}

	existing, err := s.db.GetPayoutByOrder(orderID)
	if err != nil {
		return nil, apperrors.External(err, "failed to check existing payout")
	}
	if existing != nil {
		return nil, apperrors.Conflict("PAYOUT_EXISTS", "order %s already has a payout", orderID)
	}

	platformFee := money.Round(money.Percent(order.FinalAmount, s.fees.PlatformFeePct), 2)
	trainerShare := order.FinalAmount.Sub(platformFee)

	now := time.Now()
	payout := &Payout{
		PayoutID:     "PAY_" + uuid.New().String(),
		TrainerID:    trainerID,
		OrderID:      orderID,
		Amount:       order.FinalAmount,
		PlatformFee:  platformFee,
		TrainerShare: trainerShare,
		Status:       PayoutPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.db.CreatePayout(payout); err != nil {
		return nil, apperrors.External(err, "failed to create payout")
	}

	log.Info().
		Str("service", "order").
		Str("payout_id", payout.PayoutID).
		Str("order_id", orderID).
		Str("trainer_id", trainerID).
		Str("trainer_share", trainerShare.String()).
		Str("platform_fee", platformFee.String()).
		Msg("payout created")

	return payout, nil
}

// GetByOrderNumber returns an order with its items.
func (s *Service) GetByOrderNumber(orderNumber string) (*Order, error) {
	order, err := s.db.GetByOrderNumber(orderNumber)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch order")
	}
	if order == nil {
		return nil, apperrors.NotFound("order %s not found", orderNumber)
	}
	return order, nil
}

// ListUserOrders returns a user's orders, newest first.
func (s *Service) ListUserOrders(userID string) ([]Order, error) {
	orders, err := s.db.ListByUser(userID)
	if err != nil {
		return nil, apperrors.External(err, "failed to list orders")
	}
	return orders, nil
}

// ListTransactions returns the payment attempts recorded for an order.
func (s *Service) ListTransactions(orderID string) ([]Transaction, error) {
	txns, err := s.db.ListTransactions(orderID)
	if err != nil {
		return nil, apperrors.External(err, "failed to list transactions")
	}
	return txns, nil
}

// GetDB exposes the database wrapper to the payout processor.
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for checkout, order and payout endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for ledger endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CheckoutHandler handles POST requests to snapshot the caller's cart into
// an order
func (h *GinHandlers) CheckoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("clientID")
		if userID == "" {
			response.Unauthorized(c, "Checkout requires an authenticated user")
			return
		}

		var input struct {
			CurrencyCode string `json:"currency_code"`
		}
		_ = c.ShouldBindJSON(&input)

		result, err := h.service.CreateFromCart(c.Request.Context(),
			cart.Owner{UserID: userID}, userID, input.CurrencyCode)
		response.Handle(c, result, err)
	}
}

// GetOrderHandler handles GET requests for one order by order number
func (h *GinHandlers) GetOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.GetByOrderNumber(c.Param("order_number"))
		if err == nil && order.UserID != c.GetString("clientID") {
			response.NotFound(c, "Order not found")
			return
		}
		response.Handle(c, order, err)
	}
}

// ListOrdersHandler handles GET requests for the caller's orders
func (h *GinHandlers) ListOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := h.service.ListUserOrders(c.GetString("clientID"))
		response.Handle(c, orders, err)
	}
}

// RefundOrderHandler handles POST requests to refund a paid order
func (h *GinHandlers) RefundOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Amount decimal.Decimal `json:"amount" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.MarkRefunded(c.Request.Context(), c.Param("order_id"), input.Amount)
		response.Handle(c, order, err)
	}
}

// CancelOrderHandler handles POST requests to cancel a pending order
func (h *GinHandlers) CancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := h.service.MarkCancelled(c.Param("order_id"))
		response.Handle(c, order, err)
	}
}

// CreatePayoutHandler handles POST requests to derive a trainer payout
func (h *GinHandlers) CreatePayoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			TrainerID string `json:"trainer_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		payout, err := h.service.CreatePayout(c.Param("order_id"), input.TrainerID)
		response.Handle(c, payout, err)
	}
}

// ListTransactionsHandler handles GET requests for an order's transactions
func (h *GinHandlers) ListTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		txns, err := h.service.ListTransactions(c.Param("order_id"))
		response.Handle(c, txns, err)
	}
}
