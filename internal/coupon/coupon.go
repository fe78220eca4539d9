package coupon

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
	"github.com/mmabdalla/courseworx-sub003/pkg/money"
	"github.com/mmabdalla/courseworx-sub003/pkg/response"
)

// Validate runs the redemption checks in a fixed order and short-circuits
// with the first failing reason.
func Validate(coupon *Coupon, now time.Time, orderAmount decimal.Decimal, courseID string) ValidationResult {
	if !coupon.IsActive {
		return ValidationResult{Reason: "coupon is not active"}
	}
	if coupon.ValidTo != nil && now.After(*coupon.ValidTo) {
		return ValidationResult{Reason: "coupon has expired"}
	}
	if now.Before(coupon.ValidFrom) {
		return ValidationResult{Reason: "coupon is not yet valid"}
	}
	if coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses {
		return ValidationResult{Reason: "coupon usage limit reached"}
	}
	if !coupon.AppliesToCourse(courseID) {
		return ValidationResult{Reason: "coupon does not apply to this course"}
	}
	if coupon.MinOrderAmount.Valid && orderAmount.LessThan(coupon.MinOrderAmount.Decimal) {
		return ValidationResult{Reason: "order amount is below the coupon minimum"}
	}
	return ValidationResult{Valid: true}
}

// CalculateDiscount re-validates and computes the discount for an order
// amount. Invalid coupons yield a zero discount with the failing reason.
// The result is always clamped to [0, orderAmount].
func CalculateDiscount(coupon *Coupon, now time.Time, orderAmount decimal.Decimal, courseID string) (decimal.Decimal, ValidationResult) {
	result := Validate(coupon, now, orderAmount, courseID)
	if !result.Valid {
		return decimal.Zero, result
	}

	var discount decimal.Decimal
	switch coupon.Type {
	case TypePercentage:
		discount = money.Round(money.Percent(orderAmount, coupon.Value), 2)
	case TypeFixed:
		discount = coupon.Value
	case TypeFreeShipping:
		discount = decimal.Zero
	default:
		return decimal.Zero, ValidationResult{Reason: "unknown coupon type"}
	}

	return money.Clamp(discount, decimal.Zero, orderAmount), result
}

// Service is the coupon engine: creation, validation, discount calculation
// and the two-phase redemption counters.
type Service struct {
	db *Database
}

// NewService creates a new coupon service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateInput carries the fields needed to create a coupon.
type CreateInput struct {
	Code              string              `json:"code" binding:"required"`
	Type              string              `json:"type" binding:"required"`
	Value             decimal.Decimal     `json:"value"`
	MaxUses           int                 `json:"max_uses"`
	ValidFrom         *time.Time          `json:"valid_from"`
	ValidTo           *time.Time          `json:"valid_to"`
	ApplicableCourses []string            `json:"applicable_courses"`
	MinOrderAmount    decimal.NullDecimal `json:"min_order_amount"`
}

// Create registers a coupon after validating code shape and type.
func (s *Service) Create(input CreateInput) (*Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if len(code) < 3 || len(code) > 50 {
		return nil, apperrors.Validation("coupon code must be 3-50 characters, got %d", len(code))
	}

	switch input.Type {
	case TypePercentage, TypeFixed, TypeFreeShipping:
	default:
		return nil, apperrors.Validation("unknown coupon type %q", input.Type)
	}
	if input.Type != TypeFreeShipping {
		if err := money.RequirePositive(input.Value, "value"); err != nil {
			return nil, err
		}
	}
	if input.MaxUses < 0 {
		return nil, apperrors.Validation("max uses must not be negative")
	}

	existing, err := s.db.GetByCode(code)
	if err != nil {
		return nil, apperrors.External(err, "failed to check coupon code")
	}
	if existing != nil {
		return nil, apperrors.Conflict("DUPLICATE_CODE", "coupon %s already exists", code)
	}

	validFrom := time.Now()
	if input.ValidFrom != nil {
		validFrom = *input.ValidFrom
	}

	applicable := ""
	if len(input.ApplicableCourses) > 0 {
		raw, err := json.Marshal(input.ApplicableCourses)
		if err != nil {
			return nil, apperrors.Validation("invalid applicable courses list")
		}
		applicable = string(raw)
	}

	coupon := &Coupon{
		CouponID:          "CPN_" + uuid.New().String(),
		Code:              code,
		Type:              input.Type,
		Value:             input.Value,
		MaxUses:           input.MaxUses,
		UsedCount:         0,
		ValidFrom:         validFrom,
		ValidTo:           input.ValidTo,
		ApplicableCourses: applicable,
		MinOrderAmount:    input.MinOrderAmount,
		IsActive:          true,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}

	if err := s.db.CreateCoupon(coupon); err != nil {
		return nil, apperrors.External(err, "failed to create coupon")
	}

	log.Info().
		Str("service", "coupon").
		Str("coupon_id", coupon.CouponID).
		Str("code", coupon.Code).
		Str("type", coupon.Type).
		Int("max_uses", coupon.MaxUses).
		Msg("coupon created")

	return coupon, nil
}

// GetByCode returns the coupon with the given code.
func (s *Service) GetByCode(code string) (*Coupon, error) {
	coupon, err := s.db.GetByCode(strings.ToUpper(code))
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch coupon")
	}
	if coupon == nil {
		return nil, apperrors.NotFound("coupon %s not found", strings.ToUpper(code))
	}
	return coupon, nil
}

// ValidateCode loads a coupon and runs the redemption checks against the
// given order amount and optional course.
func (s *Service) ValidateCode(code string, orderAmount decimal.Decimal, courseID string) (*ValidationResult, error) {
	coupon, err := s.GetByCode(code)
	if err != nil {
		return nil, err
	}
	result := Validate(coupon, time.Now(), orderAmount, courseID)
	return &result, nil
}

// DiscountFor loads a coupon and computes its discount for an order amount.
func (s *Service) DiscountFor(code string, orderAmount decimal.Decimal, courseID string) (decimal.Decimal, *ValidationResult, error) {
	coupon, err := s.GetByCode(code)
	if err != nil {
		return decimal.Zero, nil, err
	}
	discount, result := CalculateDiscount(coupon, time.Now(), orderAmount, courseID)
	return discount, &result, nil
}

// IncrementUsage commits one redemption. The update is atomic and guarded on
// used_count < max_uses; the losing side of a race gets CouponExhausted.
func (s *Service) IncrementUsage(code string) error {
	code = strings.ToUpper(code)

	updated, err := s.db.IncrementUsage(code)
	if err != nil {
		return apperrors.External(err, "failed to increment coupon usage")
	}
	if !updated {
		coupon, err := s.db.GetByCode(code)
		if err != nil {
			return apperrors.External(err, "failed to fetch coupon")
		}
		if coupon == nil {
			return apperrors.NotFound("coupon %s not found", code)
		}
		return apperrors.Conflict("COUPON_EXHAUSTED", "coupon %s has no remaining uses", code)
	}

	log.Debug().
		Str("service", "coupon").
		Str("code", code).
		Msg("coupon usage incremented")
	return nil
}

// DecrementUsage rolls back a redemption for a cancelled or failed order.
func (s *Service) DecrementUsage(code string) error {
	if err := s.db.DecrementUsage(strings.ToUpper(code)); err != nil {
		return apperrors.External(err, "failed to decrement coupon usage")
	}
	return nil
}

// Deactivate soft-disables a coupon.
func (s *Service) Deactivate(code string) error {
	code = strings.ToUpper(code)
	if err := s.db.Deactivate(code); err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.NotFound("coupon %s not found", code)
		}
		return apperrors.External(err, "failed to deactivate coupon")
	}
	return nil
}

// GinHandlers contains HTTP handlers for coupon endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for coupon endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateCouponHandler handles POST requests to create coupons
func (h *GinHandlers) CreateCouponHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CreateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		coupon, err := h.service.Create(input)
		response.Handle(c, coupon, err)
	}
}

// GetCouponHandler handles GET requests for a coupon by code
func (h *GinHandlers) GetCouponHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		coupon, err := h.service.GetByCode(c.Param("code"))
		response.Handle(c, coupon, err)
	}
}

// ValidateCouponHandler handles GET requests to check a coupon against an
// order amount and optional course
func (h *GinHandlers) ValidateCouponHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		amount, err := decimal.NewFromString(c.DefaultQuery("order_amount", "0"))
		if err != nil {
			response.BadRequest(c, "order_amount must be a decimal number")
			return
		}

		result, err := h.service.ValidateCode(c.Param("code"), amount, c.Query("course_id"))
		response.Handle(c, result, err)
	}
}

// DeactivateCouponHandler handles DELETE requests to soft-disable a coupon
func (h *GinHandlers) DeactivateCouponHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.Deactivate(c.Param("code")); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "coupon deactivated"})
	}
}
