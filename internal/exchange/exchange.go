package exchange

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mmabdalla/courseworx-sub003/internal/currency"
	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
	"github.com/mmabdalla/courseworx-sub003/pkg/money"
	"github.com/mmabdalla/courseworx-sub003/pkg/response"
)

// ratePrecision is the storage precision for rates and derived inverses.
const ratePrecision = 8

var one = decimal.NewFromInt(1)

// Service maintains the directional exchange-rate graph. The core invariant:
// for every active rate (A->B, r) there is an active inverse (B->A, 1/r),
// and only UpsertRate maintains that inverse -- reads never auto-invert.
type Service struct {
	db         *Database
	currencies *currency.Service
}

// NewService creates a new exchange-rate service with the given database
// connection and currency registry.
func NewService(gormDB *gorm.DB, currencies *currency.Service) *Service {
	return &Service{
		db:         NewDatabase(gormDB),
		currencies: currencies,
	}
}

// UpsertInput carries the fields of an operator rate change.
type UpsertInput struct {
	FromCode   string          `json:"from_code" binding:"required"`
	ToCode     string          `json:"to_code" binding:"required"`
	Rate       decimal.Decimal `json:"rate" binding:"required"`
	Source     string          `json:"source"`
	Notes      string          `json:"notes"`
	ExpiryDate *time.Time      `json:"expiry_date"`
	Actor      string          `json:"-"`
}

// UpsertRate creates or updates a rate pair. The requested direction gets the
// supplied source; the opposite direction is derived as 1/rate and tagged
// auto_calculated. Both rows and their history entries are written in one
// transaction. Updating the derived direction directly is rejected so the
// canonical direction never oscillates.
func (s *Service) UpsertRate(input UpsertInput) (*ExchangeRate, error) {
	fromCode := strings.ToUpper(strings.TrimSpace(input.FromCode))
	toCode := strings.ToUpper(strings.TrimSpace(input.ToCode))

	logger := log.With().
		Str("from", fromCode).
		Str("to", toCode).
		Str("service", "exchange").
		Logger()

	if fromCode == toCode {
		return nil, apperrors.Validation("from and to currency must differ")
	}
	if err := money.RequirePositive(input.Rate, "rate"); err != nil {
		return nil, err
	}

	source := input.Source
	if source == "" {
		source = SourceManual
	}
	switch source {
	case SourceManual, SourceAPI, SourceImport:
	default:
		return nil, apperrors.Validation("unknown rate source %q", input.Source)
	}

	// Both currencies must be registered and active.
	if _, err := s.currencies.GetByCode(fromCode); err != nil {
		return nil, err
	}
	if _, err := s.currencies.GetByCode(toCode); err != nil {
		return nil, err
	}

	direct, err := s.db.GetActiveRate(fromCode, toCode)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch rate")
	}
	inverse, err := s.db.GetActiveRate(toCode, fromCode)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch inverse rate")
	}

	// The caller is targeting the derived direction of an existing pair.
	// The canonical direction must be updated instead.
	if direct != nil && direct.Source == SourceAutoCalculated {
		return nil, apperrors.Conflict("INVERSE_EXISTS",
			"an active rate exists for %s->%s; update that direction instead", toCode, fromCode)
	}
	if direct == nil && inverse != nil {
		return nil, apperrors.Conflict("INVERSE_EXISTS",
			"an active rate exists for %s->%s; update that direction instead", toCode, fromCode)
	}

	now := time.Now()
	newRate := input.Rate.RoundBank(ratePrecision)
	inverseRate := one.Div(newRate).RoundBank(ratePrecision)

	var history []*ExchangeRateHistory

	if direct == nil {
		direct = &ExchangeRate{
			RateID:        "RATE_" + uuid.New().String(),
			FromCode:      fromCode,
			ToCode:        toCode,
			Rate:          newRate,
			EffectiveDate: now,
			ExpiryDate:    input.ExpiryDate,
			IsActive:      true,
			Source:        source,
			Notes:         input.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	} else {
		history = append(history, &ExchangeRateHistory{
			RateID:           direct.RateID,
			FromCode:         fromCode,
			ToCode:           toCode,
			PreviousRate:     direct.Rate,
			NewRate:          newRate,
			ChangePercentage: changePercentage(direct.Rate, newRate),
			ChangeDate:       now,
			ChangeReason:     reasonForSource(source),
			ChangedBy:        input.Actor,
			CreatedAt:        now,
		})
		direct.Rate = newRate
		direct.EffectiveDate = now
		direct.ExpiryDate = input.ExpiryDate
		direct.Source = source
		direct.Notes = input.Notes
		direct.UpdatedAt = now
	}

	if inverse == nil {
		inverse = &ExchangeRate{
			RateID:        "RATE_" + uuid.New().String(),
			FromCode:      toCode,
			ToCode:        fromCode,
			Rate:          inverseRate,
			EffectiveDate: now,
			ExpiryDate:    input.ExpiryDate,
			IsActive:      true,
			Source:        SourceAutoCalculated,
			Notes:         input.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	} else {
		history = append(history, &ExchangeRateHistory{
			RateID:           inverse.RateID,
			FromCode:         toCode,
			ToCode:           fromCode,
			PreviousRate:     inverse.Rate,
			NewRate:          inverseRate,
			ChangePercentage: changePercentage(inverse.Rate, inverseRate),
			ChangeDate:       now,
			ChangeReason:     ReasonAutoInverse,
			ChangedBy:        input.Actor,
			CreatedAt:        now,
		})
		inverse.Rate = inverseRate
		inverse.EffectiveDate = now
		inverse.ExpiryDate = input.ExpiryDate
		inverse.Source = SourceAutoCalculated
		inverse.Notes = input.Notes
		inverse.UpdatedAt = now
	}

	if err := s.db.UpsertPair(direct, inverse, history); err != nil {
		logger.Error().Err(err).Msg("failed to upsert rate pair")
		return nil, apperrors.External(err, "failed to upsert rate pair")
	}

	logger.Info().
		Str("rate_id", direct.RateID).
		Str("rate", direct.Rate.String()).
		Str("inverse_rate", inverse.Rate.String()).
		Str("source", source).
		Int("history_rows", len(history)).
		Msg("rate pair upserted")

	return direct, nil
}

// GetRate returns the active, effective, non-expired rate for the exact
// ordered pair. A pair created as (B,A) is a real miss for (A,B).
func (s *Service) GetRate(fromCode, toCode string) (*ExchangeRate, error) {
	fromCode = strings.ToUpper(fromCode)
	toCode = strings.ToUpper(toCode)

	rate, err := s.db.GetActiveRate(fromCode, toCode)
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch rate")
	}

	now := time.Now()
	if rate == nil || rate.EffectiveDate.After(now) ||
		(rate.ExpiryDate != nil && now.After(*rate.ExpiryDate)) {
		return nil, apperrors.NotFound("no active rate for %s->%s", fromCode, toCode).WithCode("RATE_NOT_FOUND")
	}

	return rate, nil
}

// Convert expresses an amount in another currency, rounding to the target
// currency's precision with banker's rounding. Identity conversions return
// the amount untouched with a rate of exactly 1.
func (s *Service) Convert(amount decimal.Decimal, fromCode, toCode string) (*ConversionResult, error) {
	fromCode = strings.ToUpper(fromCode)
	toCode = strings.ToUpper(toCode)

	if err := money.RequireNonNegative(amount, "amount"); err != nil {
		return nil, err
	}

	if fromCode == toCode {
		return &ConversionResult{
			FromCode:        fromCode,
			ToCode:          toCode,
			OriginalAmount:  amount,
			ConvertedAmount: amount,
			Rate:            one,
		}, nil
	}

	target, err := s.currencies.GetByCode(toCode)
	if err != nil {
		return nil, err
	}

	rate, err := s.GetRate(fromCode, toCode)
	if err != nil {
		return nil, err
	}

	converted := money.Round(amount.Mul(rate.Rate), target.DecimalPlaces)

	log.Debug().
		Str("service", "exchange").
		Str("from", fromCode).
		Str("to", toCode).
		Str("amount", amount.String()).
		Str("rate", rate.Rate.String()).
		Str("converted", converted.String()).
		Msg("converted amount")

	return &ConversionResult{
		FromCode:        fromCode,
		ToCode:          toCode,
		OriginalAmount:  amount,
		ConvertedAmount: converted,
		Rate:            rate.Rate,
	}, nil
}

// DeactivatePair retires both directions of a pair as a unit.
func (s *Service) DeactivatePair(fromCode, toCode string) error {
	fromCode = strings.ToUpper(fromCode)
	toCode = strings.ToUpper(toCode)

	affected, err := s.db.DeactivatePair(fromCode, toCode)
	if err != nil {
		return apperrors.External(err, "failed to deactivate rate pair")
	}
	if affected == 0 {
		return apperrors.NotFound("no active rate for %s->%s", fromCode, toCode).WithCode("RATE_NOT_FOUND")
	}

	log.Info().
		Str("service", "exchange").
		Str("from", fromCode).
		Str("to", toCode).
		Int64("rates_deactivated", affected).
		Msg("rate pair deactivated")
	return nil
}

// ListHistory returns the audit trail for an ordered pair.
func (s *Service) ListHistory(fromCode, toCode string) ([]ExchangeRateHistory, error) {
	history, err := s.db.ListHistory(strings.ToUpper(fromCode), strings.ToUpper(toCode))
	if err != nil {
		return nil, apperrors.External(err, "failed to fetch rate history")
	}
	return history, nil
}

// ListActiveRates returns every active rate.
func (s *Service) ListActiveRates() ([]ExchangeRate, error) {
	rates, err := s.db.ListActiveRates()
	if err != nil {
		return nil, apperrors.External(err, "failed to list rates")
	}
	return rates, nil
}

// changePercentage computes (new-old)/old*100. A non-positive previous rate
// records 0 rather than dividing.
func changePercentage(oldRate, newRate decimal.Decimal) decimal.Decimal {
	if oldRate.Sign() <= 0 {
		return decimal.Zero
	}
	return newRate.Sub(oldRate).Div(oldRate).Mul(decimal.NewFromInt(100)).RoundBank(4)
}

func reasonForSource(source string) string {
	switch source {
	case SourceAPI:
		return ReasonAPIUpdate
	case SourceImport:
		return ReasonScheduledUpdate
	default:
		return ReasonManualUpdate
	}
}

// GinHandlers contains HTTP handlers for exchange-rate endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for exchange-rate endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// UpsertRateHandler handles POST requests to create or update a rate pair
func (h *GinHandlers) UpsertRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input UpsertInput
		if err := c.ShouldBindJSON(&input); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		input.Actor = c.GetString("clientID")

		rate, err := h.service.UpsertRate(input)
		response.Handle(c, rate, err)
	}
}

// GetRateHandler handles GET requests for the active rate of an ordered pair
func (h *GinHandlers) GetRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rate, err := h.service.GetRate(c.Param("from"), c.Param("to"))
		response.Handle(c, rate, err)
	}
}

// ConvertHandler handles GET requests to convert an amount between currencies
func (h *GinHandlers) ConvertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		amount, err := decimal.NewFromString(c.Query("amount"))
		if err != nil {
			response.BadRequest(c, "amount must be a decimal number")
			return
		}

		result, err := h.service.Convert(amount, c.Query("from"), c.Query("to"))
		response.Handle(c, result, err)
	}
}

// DeactivateRateHandler handles DELETE requests to retire a rate pair
func (h *GinHandlers) DeactivateRateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.DeactivatePair(c.Param("from"), c.Param("to")); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "rate pair deactivated"})
	}
}

// RateHistoryHandler handles GET requests for an ordered pair's audit trail
func (h *GinHandlers) RateHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := h.service.ListHistory(c.Param("from"), c.Param("to"))
		response.Handle(c, history, err)
	}
}

// ListRatesHandler handles GET requests for all active rates
func (h *GinHandlers) ListRatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rates, err := h.service.ListActiveRates()
		response.Handle(c, rates, err)
	}
}
