package currency

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
	"github.com/mmabdalla/courseworx-sub003/pkg/response"
)

var codePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Service is the currency registry. It owns the canonical currency
// definitions and the single-base-currency invariant.
type Service struct {
	db *Database
}

// NewService creates a new registry service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// RegisterInput carries the fields needed to register a currency.
type RegisterInput struct {
	Code          string `json:"code" binding:"required"`
	Name          string `json:"name" binding:"required"`
	Symbol        string `json:"symbol"`
	DecimalPlaces int32  `json:"decimal_places"`
	IsBase        bool   `json:"is_base"`
}

// Register adds a currency to the registry. Codes are normalized to
// uppercase and must be unique case-insensitively.
func (s *Service) Register(input RegisterInput) (*Currency, error) {
	logger := log.With().
		Str("code", input.Code).
		Str("service", "currency").
		Logger()

	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if !codePattern.MatchString(code) {
		return nil, apperrors.Validation("currency code must be exactly 3 letters, got %q", input.Code)
	}
	if input.DecimalPlaces < 0 || input.DecimalPlaces > 4 {
		return nil, apperrors.Validation("decimal places must be between 0 and 4, got %d", input.DecimalPlaces)
	}

	existing, err := s.db.GetByCodeAnyStatus(code)
	if err != nil {
		return nil, apperrors.External(err, "failed to check currency code")
	}
	if existing != nil {
		return nil, apperrors.Conflict("DUPLICATE_CODE", "currency %s is already registered", code)
	}

	currency := &Currency{
		CurrencyID:     "CUR_" + uuid.New().String(),
		Code:           code,
		Name:           input.Name,
		Symbol:         input.Symbol,
		DecimalPlaces:  input.DecimalPlaces,
		IsActive:       true,
		IsBaseCurrency: false,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := s.db.CreateCurrency(currency); err != nil {
		logger.Error().Err(err).Msg("failed to create currency")
		return nil, apperrors.External(err, "failed to create currency")
	}

	if input.IsBase {
		if err := s.SetBase(code); err != nil {
			return nil, err
		}
		currency.IsBaseCurrency = true
	}

	logger.Info().
		Str("currency_id", currency.CurrencyID).
		Int32("decimal_places", currency.DecimalPlaces).
		Bool("is_base", currency.IsBaseCurrency).
		Msg("currency registered")

	return currency, nil
}

// GetByCode returns the active currency for the given code.
func (s *Service) GetByCode(code string) (*Currency, error) {
	currency, err := s.db.GetByCode(strings.ToUpper(code))
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch currency")
	}
	if currency == nil {
		return nil, apperrors.NotFound("currency %s not found", strings.ToUpper(code))
	}
	return currency, nil
}

// GetByID resolves a currency by its id regardless of active status, for
// use by historical records.
func (s *Service) GetByID(currencyID string) (*Currency, error) {
	currency, err := s.db.GetByCurrencyID(currencyID)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch currency")
	}
	if currency == nil {
		return nil, apperrors.NotFound("currency %s not found", currencyID)
	}
	return currency, nil
}

// GetBase returns the single currency flagged as base.
func (s *Service) GetBase() (*Currency, error) {
	currency, err := s.db.GetBase()
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch base currency")
	}
	if currency == nil {
		return nil, apperrors.NotFound("no base currency configured").WithCode("NO_BASE_CURRENCY")
	}
	return currency, nil
}

// SetBase moves the base flag to the given currency, unsetting the previous
// base atomically.
func (s *Service) SetBase(code string) error {
	code = strings.ToUpper(code)
	if err := s.db.SetBase(code); err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.NotFound("currency %s not found", code)
		}
		return apperrors.External(err, "failed to set base currency")
	}

	log.Info().
		Str("service", "currency").
		Str("code", code).
		Msg("base currency changed")
	return nil
}

// Deactivate soft-disables a currency. It stays resolvable by id for
// historical records but drops out of active queries.
func (s *Service) Deactivate(code string) error {
	code = strings.ToUpper(code)
	if err := s.db.Deactivate(code); err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperrors.NotFound("currency %s not found", code)
		}
		return apperrors.External(err, "failed to deactivate currency")
	}

	log.Info().
		Str("service", "currency").
		Str("code", code).
		Msg("currency deactivated")
	return nil
}

// ListActive returns all active currencies ordered by code.
func (s *Service) ListActive() ([]Currency, error) {
	currencies, err := s.db.ListActive()
	if err != nil {
		return nil, apperrors.External(err, "failed to list currencies")
	}
	return currencies, nil
}

// GinHandlers contains HTTP handlers for currency endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for currency endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RegisterCurrencyHandler handles POST requests to register currencies
func (h *GinHandlers) RegisterCurrencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input RegisterInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		currency, err := h.service.Register(input)
		response.Handle(c, currency, err)
	}
}

// GetCurrencyHandler handles GET requests for a single currency by code
func (h *GinHandlers) GetCurrencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		currency, err := h.service.GetByCode(c.Param("code"))
		response.Handle(c, currency, err)
	}
}

// ListCurrenciesHandler handles GET requests for the active currency list
func (h *GinHandlers) ListCurrenciesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		currencies, err := h.service.ListActive()
		response.Handle(c, currencies, err)
	}
}

// SetBaseCurrencyHandler handles PUT requests to move the base flag
func (h *GinHandlers) SetBaseCurrencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		if err := h.service.SetBase(code); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "base currency updated", "code": strings.ToUpper(code)})
	}
}

// DeactivateCurrencyHandler handles DELETE requests to soft-disable a currency
func (h *GinHandlers) DeactivateCurrencyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")
		if err := h.service.Deactivate(code); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "currency deactivated", "code": strings.ToUpper(code)})
	}
}
