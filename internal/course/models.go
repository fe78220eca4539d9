package course

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Rate sources reported by a price quote.
const (
	PriceSourceBase     = "base"
	PriceSourceCustom   = "custom"
	PriceSourceExchange = "exchange"
)

// CourseCurrency holds a course's pricing configuration: the authoring
// currency, the list of currencies buyers may pay in, and optional
// per-course rate overrides.
type CourseCurrency struct {
	gorm.Model               `json:"-"`
	CourseID                 string          `gorm:"uniqueIndex" json:"course_id"`
	BaseCurrencyCode         string          `json:"base_currency_code"`
	BasePrice                decimal.Decimal `gorm:"type:decimal(18,2)" json:"base_price"`
	AllowedPaymentCurrencies string          `json:"allowed_payment_currencies,omitempty"` // JSON array of codes, empty = all
	CustomExchangeRates      string          `json:"custom_exchange_rates,omitempty"`      // JSON object keyed "FROM_TO"
	IsActive                 bool            `json:"is_active"`
}

// AllowsCurrency reports whether buyers may pay for this course in the given
// currency. An empty allow list permits every active currency.
func (cc *CourseCurrency) AllowsCurrency(code string) bool {
	if cc.AllowedPaymentCurrencies == "" {
		return true
	}
	var codes []string
	if err := json.Unmarshal([]byte(cc.AllowedPaymentCurrencies), &codes); err != nil {
		return false
	}
	for _, allowed := range codes {
		if strings.EqualFold(allowed, code) {
			return true
		}
	}
	return false
}

// CustomRate returns the course's own override rate for a currency pair, if
// one is configured.
func (cc *CourseCurrency) CustomRate(fromCode, toCode string) (decimal.Decimal, bool) {
	if cc.CustomExchangeRates == "" {
		return decimal.Zero, false
	}
	var rates map[string]decimal.Decimal
	if err := json.Unmarshal([]byte(cc.CustomExchangeRates), &rates); err != nil {
		return decimal.Zero, false
	}
	rate, ok := rates[strings.ToUpper(fromCode)+"_"+strings.ToUpper(toCode)]
	if !ok || rate.Sign() <= 0 {
		return decimal.Zero, false
	}
	return rate, true
}

// PriceQuote is a course price expressed in a payment currency.
type PriceQuote struct {
	CourseID     string          `json:"course_id"`
	CurrencyCode string          `json:"currency_code"`
	Price        decimal.Decimal `json:"price"`
	Rate         decimal.Decimal `json:"rate"`
	RateSource   string          `json:"rate_source"` // base, custom, exchange
}
