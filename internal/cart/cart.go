package cart

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mmabdalla/courseworx-sub003/internal/coupon"
	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
	"github.com/mmabdalla/courseworx-sub003/pkg/money"
	"github.com/mmabdalla/courseworx-sub003/pkg/response"
)

// Service is the cart pricing engine. Every mutation recomputes the
// aggregate totals before anything is persisted.
type Service struct {
	db       *Database
	coupons  *coupon.Service
	maxItems int
	ttl      time.Duration
}

// NewService creates a new cart service with the given database connection,
// coupon engine, item cap and expiry window.
func NewService(gormDB *gorm.DB, coupons *coupon.Service, maxItems int, ttl time.Duration) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		coupons:  coupons,
		maxItems: maxItems,
		ttl:      ttl,
	}
}

// getLive returns the owner's cart, lazily reaping it when expired.
func (s *Service) getLive(owner Owner) (*Cart, error) {
	if !owner.Valid() {
		return nil, apperrors.Validation("exactly one of user id or session id must be set")
	}

	cart, err := s.db.GetByOwner(owner)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch cart")
	}
	if cart == nil {
		return nil, nil
	}

	if cart.IsExpired(time.Now()) {
		if err := s.db.DeleteCart(cart.CartID); err != nil {
			return nil, apperrors.External(err, "failed to remove expired cart")
		}
		log.Debug().
			Str("service", "cart").
			Str("cart_id", cart.CartID).
			Msg("expired cart reaped")
		return nil, nil
	}

	return cart, nil
}

// Get returns the owner's live cart.
func (s *Service) Get(owner Owner) (*Cart, error) {
	cart, err := s.getLive(owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, apperrors.NotFound("no active cart for this owner")
	}
	return cart, nil
}

// AddItemInput carries one course line to add to the cart.
type AddItemInput struct {
	CourseID   string          `json:"course_id" binding:"required"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	CourseType string          `json:"course_type"`
	Quantity   int             `json:"quantity"`
}

// AddItem appends a new course line, creating the cart on first use.
// Duplicate courses are rejected; quantity changes go through
// UpdateQuantity.
func (s *Service) AddItem(owner Owner, input AddItemInput) (*Cart, error) {
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Quantity < 1 {
		return nil, apperrors.Validation("quantity must be at least 1")
	}
	if err := money.RequireNonNegative(input.UnitPrice, "unit price"); err != nil {
		return nil, err
	}

	cart, err := s.getLive(owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &Cart{
			CartID:         "CRT_" + uuid.New().String(),
			UserID:         owner.UserID,
			SessionID:      owner.SessionID,
			TotalAmount:    decimal.Zero,
			DiscountAmount: decimal.Zero,
			TaxAmount:      decimal.Zero,
			FinalAmount:    decimal.Zero,
			ExpiresAt:      time.Now().Add(s.ttl),
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := s.db.CreateCart(cart); err != nil {
			return nil, apperrors.External(err, "failed to create cart")
		}
	}

	for _, item := range cart.Items {
		if item.CourseID == input.CourseID {
			return nil, apperrors.Conflict("DUPLICATE_ITEM",
				"course %s is already in the cart", input.CourseID)
		}
	}
	if len(cart.Items) >= s.maxItems {
		return nil, apperrors.Conflict("CART_FULL",
			"cart cannot hold more than %d items", s.maxItems)
	}

	item := CartItem{
		CartID:     cart.CartID,
		CourseID:   input.CourseID,
		UnitPrice:  input.UnitPrice,
		CourseType: input.CourseType,
		Quantity:   input.Quantity,
		AddedAt:    time.Now(),
	}
	cart.Items = append(cart.Items, item)
	cart.Recompute()
	cart.UpdatedAt = time.Now()

	if err := s.db.SaveCartWithItem(cart, &cart.Items[len(cart.Items)-1]); err != nil {
		return nil, apperrors.External(err, "failed to save cart")
	}

	log.Info().
		Str("service", "cart").
		Str("cart_id", cart.CartID).
		Str("course_id", input.CourseID).
		Int("quantity", input.Quantity).
		Str("total", cart.TotalAmount.String()).
		Msg("item added to cart")

	return cart, nil
}

// RemoveItem drops a course line. Removing an absent course is a no-op.
func (s *Service) RemoveItem(owner Owner, courseID string) (*Cart, error) {
	cart, err := s.Get(owner)
	if err != nil {
		return nil, err
	}

	found := false
	items := cart.Items[:0]
	for _, item := range cart.Items {
		if item.CourseID == courseID {
			found = true
			continue
		}
		items = append(items, item)
	}
	if !found {
		return cart, nil
	}

	cart.Items = items
	cart.Recompute()
	cart.UpdatedAt = time.Now()

	if err := s.db.SaveCartRemovingItem(cart, courseID); err != nil {
		return nil, apperrors.External(err, "failed to save cart")
	}

	log.Info().
		Str("service", "cart").
		Str("cart_id", cart.CartID).
		Str("course_id", courseID).
		Str("total", cart.TotalAmount.String()).
		Msg("item removed from cart")

	return cart, nil
}

// UpdateQuantity replaces a line's quantity in place. A quantity of zero or
// less removes the line.
func (s *Service) UpdateQuantity(owner Owner, courseID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(owner, courseID)
	}

	cart, err := s.Get(owner)
	if err != nil {
		return nil, err
	}

	var target *CartItem
	for i := range cart.Items {
		if cart.Items[i].CourseID == courseID {
			target = &cart.Items[i]
			break
		}
	}
	if target == nil {
		return nil, apperrors.NotFound("course %s is not in the cart", courseID)
	}

	target.Quantity = quantity
	cart.Recompute()
	cart.UpdatedAt = time.Now()

	if err := s.db.SaveCartWithItem(cart, target); err != nil {
		return nil, apperrors.External(err, "failed to save cart")
	}

	return cart, nil
}

// ApplyCoupon computes the discount for the cart's current total and stores
// the code. Usage is not incremented here; that happens at checkout commit.
// The cart does not re-validate a stored coupon after later item mutations;
// callers re-apply when the total changes, and checkout re-validates.
func (s *Service) ApplyCoupon(owner Owner, code string) (*Cart, error) {
	cart, err := s.Get(owner)
	if err != nil {
		return nil, err
	}

	discount, result, err := s.coupons.DiscountFor(code, cart.TotalAmount, "")
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, apperrors.Validation("coupon cannot be applied: %s", result.Reason)
	}

	cart.DiscountAmount = discount
	cart.CouponCode = code
	cart.Recompute()
	cart.UpdatedAt = time.Now()

	if err := s.db.SaveCart(cart); err != nil {
		return nil, apperrors.External(err, "failed to save cart")
	}

	log.Info().
		Str("service", "cart").
		Str("cart_id", cart.CartID).
		Str("coupon_code", code).
		Str("discount", discount.String()).
		Str("final", cart.FinalAmount.String()).
		Msg("coupon applied to cart")

	return cart, nil
}

// RemoveCoupon clears the stored code and discount.
func (s *Service) RemoveCoupon(owner Owner) (*Cart, error) {
	cart, err := s.Get(owner)
	if err != nil {
		return nil, err
	}

	cart.DiscountAmount = decimal.Zero
	cart.CouponCode = ""
	cart.Recompute()
	cart.UpdatedAt = time.Now()

	if err := s.db.SaveCart(cart); err != nil {
		return nil, apperrors.External(err, "failed to save cart")
	}
	return cart, nil
}

// SetTax stores the externally computed flat tax amount. The engine sums it
// into the final total but never computes jurisdictional rates itself.
func (s *Service) SetTax(owner Owner, amount decimal.Decimal) (*Cart, error) {
	if err := money.RequireNonNegative(amount, "tax amount"); err != nil {
		return nil, err
	}

	cart, err := s.Get(owner)
	if err != nil {
		return nil, err
	}

	cart.TaxAmount = amount
	cart.Recompute()
	cart.UpdatedAt = time.Now()

	if err := s.db.SaveCart(cart); err != nil {
		return nil, apperrors.External(err, "failed to save cart")
	}
	return cart, nil
}

// Clear empties the cart and zeroes every monetary field.
func (s *Service) Clear(owner Owner) (*Cart, error) {
	cart, err := s.Get(owner)
	if err != nil {
		return nil, err
	}

	cart.Items = nil
	cart.TotalAmount = decimal.Zero
	cart.DiscountAmount = decimal.Zero
	cart.TaxAmount = decimal.Zero
	cart.FinalAmount = decimal.Zero
	cart.CouponCode = ""
	cart.UpdatedAt = time.Now()

	if err := s.db.ClearItems(cart); err != nil {
		return nil, apperrors.External(err, "failed to clear cart")
	}
	return cart, nil
}

// Destroy deletes the owner's cart outright. Checkout calls this after
// snapshotting the cart into an order.
func (s *Service) Destroy(cartID string) error {
	if err := s.db.DeleteCart(cartID); err != nil {
		return apperrors.External(err, "failed to delete cart")
	}
	return nil
}

// GinHandlers contains HTTP handlers for cart endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for cart endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ownerFromContext resolves the cart owner: the authenticated user id when
// present, otherwise the guest session header.
func ownerFromContext(c *gin.Context) Owner {
	if userID := c.GetString("clientID"); userID != "" {
		return Owner{UserID: userID}
	}
	return Owner{SessionID: c.GetHeader("X-Session-ID")}
}

// GetCartHandler handles GET requests for the owner's cart
func (h *GinHandlers) GetCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, err := h.service.Get(ownerFromContext(c))
		response.Handle(c, cart, err)
	}
}

// AddItemHandler handles POST requests to add a course to the cart
func (h *GinHandlers) AddItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input AddItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		cart, err := h.service.AddItem(ownerFromContext(c), input)
		response.Handle(c, cart, err)
	}
}

// RemoveItemHandler handles DELETE requests to drop a course from the cart
func (h *GinHandlers) RemoveItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, err := h.service.RemoveItem(ownerFromContext(c), c.Param("course_id"))
		response.Handle(c, cart, err)
	}
}

// UpdateQuantityHandler handles PUT requests to change a line's quantity
func (h *GinHandlers) UpdateQuantityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Quantity int `json:"quantity"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		cart, err := h.service.UpdateQuantity(ownerFromContext(c), c.Param("course_id"), input.Quantity)
		response.Handle(c, cart, err)
	}
}

// ApplyCouponHandler handles POST requests to apply a coupon to the cart
func (h *GinHandlers) ApplyCouponHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Code string `json:"code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		cart, err := h.service.ApplyCoupon(ownerFromContext(c), input.Code)
		response.Handle(c, cart, err)
	}
}

// RemoveCouponHandler handles DELETE requests to drop the applied coupon
func (h *GinHandlers) RemoveCouponHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, err := h.service.RemoveCoupon(ownerFromContext(c))
		response.Handle(c, cart, err)
	}
}

// SetTaxHandler handles PUT requests to store the externally computed tax
func (h *GinHandlers) SetTaxHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		cart, err := h.service.SetTax(ownerFromContext(c), input.Amount)
		response.Handle(c, cart, err)
	}
}

// ClearCartHandler handles DELETE requests to empty the cart
func (h *GinHandlers) ClearCartHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, err := h.service.Clear(ownerFromContext(c))
		response.Handle(c, cart, err)
	}
}
