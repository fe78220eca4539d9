package course

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mmabdalla/courseworx-sub003/internal/currency"
	"github.com/mmabdalla/courseworx-sub003/internal/exchange"
	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
	"github.com/mmabdalla/courseworx-sub003/pkg/money"
	"github.com/mmabdalla/courseworx-sub003/pkg/response"
)

// Service resolves course prices across currencies. Custom per-course rates
// take precedence over the shared exchange table.
type Service struct {
	db         *Database
	currencies *currency.Service
	rates      *exchange.Service
}

func NewService(gormDB *gorm.DB, currencies *currency.Service, rates *exchange.Service) *Service {
	return &Service{
		db:         NewDatabase(gormDB),
		currencies: currencies,
		rates:      rates,
	}
}

// SetPricingInput configures a course's pricing.
type SetPricingInput struct {
	CourseID                 string                     `json:"course_id" binding:"required"`
	BaseCurrencyCode         string                     `json:"base_currency_code" binding:"required"`
	BasePrice                decimal.Decimal            `json:"base_price"`
	AllowedPaymentCurrencies []string                   `json:"allowed_payment_currencies"`
	CustomExchangeRates      map[string]decimal.Decimal `json:"custom_exchange_rates"`
}

// SetPricing creates or replaces a course's pricing configuration.
func (s *Service) SetPricing(input SetPricingInput) (*CourseCurrency, error) {
	logger := log.With().
		Str("course_id", input.CourseID).
		Str("service", "course").
		Logger()

	baseCode := strings.ToUpper(input.BaseCurrencyCode)
	if _, err := s.currencies.GetByCode(baseCode); err != nil {
		return nil, err
	}
	if err := money.RequireNonNegative(input.BasePrice, "base price"); err != nil {
		return nil, err
	}

	allowed := ""
	if len(input.AllowedPaymentCurrencies) > 0 {
		codes := make([]string, len(input.AllowedPaymentCurrencies))
		for i, code := range input.AllowedPaymentCurrencies {
			codes[i] = strings.ToUpper(code)
			if _, err := s.currencies.GetByCode(codes[i]); err != nil {
				return nil, err
			}
		}
		raw, err := json.Marshal(codes)
		if err != nil {
			return nil, apperrors.Validation("invalid allowed currency list")
		}
		allowed = string(raw)
	}

	custom := ""
	if len(input.CustomExchangeRates) > 0 {
		normalized := make(map[string]decimal.Decimal, len(input.CustomExchangeRates))
		for pair, rate := range input.CustomExchangeRates {
			if rate.Sign() <= 0 {
				return nil, apperrors.Validation("custom rate for %s must be positive", pair)
			}
			normalized[strings.ToUpper(pair)] = rate
		}
		raw, err := json.Marshal(normalized)
		if err != nil {
			return nil, apperrors.Validation("invalid custom rate map")
		}
		custom = string(raw)
	}

	existing, err := s.db.GetByCourseIDAnyStatus(input.CourseID)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch course pricing")
	}

	cc := existing
	if cc == nil {
		cc = &CourseCurrency{CourseID: input.CourseID}
	}
	cc.BaseCurrencyCode = baseCode
	cc.BasePrice = input.BasePrice
	cc.AllowedPaymentCurrencies = allowed
	cc.CustomExchangeRates = custom
	cc.IsActive = true

	if existing == nil {
		err = s.db.Create(cc)
	} else {
		err = s.db.Save(cc)
	}
	if err != nil {
		return nil, apperrors.External(err, "failed to save course pricing")
	}

	logger.Info().
		Str("base_currency", baseCode).
		Str("base_price", input.BasePrice.String()).
		Msg("course pricing saved")
	return cc, nil
}

// GetPricing returns a course's active pricing configuration.
func (s *Service) GetPricing(courseID string) (*CourseCurrency, error) {
	cc, err := s.db.GetByCourseID(courseID)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch course pricing")
	}
	if cc == nil {
		return nil, apperrors.NotFound("no pricing configured for course %s", courseID)
	}
	return cc, nil
}

// PriceInCurrency quotes a course's price in the requested payment currency.
// The course's own custom rate wins over the shared exchange table; an empty
// code quotes the authoring currency unchanged.
func (s *Service) PriceInCurrency(courseID, currencyCode string) (*PriceQuote, error) {
	cc, err := s.GetPricing(courseID)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(currencyCode)
	if code == "" || code == cc.BaseCurrencyCode {
		return &PriceQuote{
			CourseID:     courseID,
			CurrencyCode: cc.BaseCurrencyCode,
			Price:        cc.BasePrice,
			Rate:         decimal.NewFromInt(1),
			RateSource:   PriceSourceBase,
		}, nil
	}

	if !cc.AllowsCurrency(code) {
		return nil, apperrors.Validation("course %s cannot be paid in %s", courseID, code).
			WithCode("CURRENCY_NOT_ALLOWED")
	}

	target, err := s.currencies.GetByCode(code)
	if err != nil {
		return nil, err
	}

	if rate, ok := cc.CustomRate(cc.BaseCurrencyCode, code); ok {
		return &PriceQuote{
			CourseID:     courseID,
			CurrencyCode: code,
			Price:        money.Round(cc.BasePrice.Mul(rate), target.DecimalPlaces),
			Rate:         rate,
			RateSource:   PriceSourceCustom,
		}, nil
	}

	converted, err := s.rates.Convert(cc.BasePrice, cc.BaseCurrencyCode, code)
	if err != nil {
		return nil, err
	}
	return &PriceQuote{
		CourseID:     courseID,
		CurrencyCode: code,
		Price:        converted.ConvertedAmount,
		Rate:         converted.Rate,
		RateSource:   PriceSourceExchange,
	}, nil
}

// Deactivate retires a course's pricing configuration.
func (s *Service) Deactivate(courseID string) error {
	cc, err := s.db.GetByCourseID(courseID)
	if err != nil {
		return apperrors.External(err, "failed to fetch course pricing")
	}
	if cc == nil {
		return apperrors.NotFound("no pricing configured for course %s", courseID)
	}
	cc.IsActive = false
	if err := s.db.Save(cc); err != nil {
		return apperrors.External(err, "failed to deactivate course pricing")
	}
	return nil
}

// GinHandlers contains HTTP handlers for course pricing endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for course pricing endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// SetPricingHandler handles PUT requests to configure a course's pricing
func (h *GinHandlers) SetPricingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input SetPricingInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		cc, err := h.service.SetPricing(input)
		response.Handle(c, cc, err)
	}
}

// GetPricingHandler handles GET requests for a course's pricing configuration
func (h *GinHandlers) GetPricingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cc, err := h.service.GetPricing(c.Param("course_id"))
		response.Handle(c, cc, err)
	}
}

// PriceHandler handles GET requests quoting a course's price in a currency
func (h *GinHandlers) PriceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		quote, err := h.service.PriceInCurrency(c.Param("course_id"), c.Query("currency"))
		response.Handle(c, quote, err)
	}
}

// DeactivatePricingHandler handles DELETE requests retiring a course's pricing
func (h *GinHandlers) DeactivatePricingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.Deactivate(c.Param("course_id")); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "course pricing deactivated"})
	}
}
