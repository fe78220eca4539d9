package exchange

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Rate sources
const (
	SourceManual         = "manual"
	SourceAPI            = "api"
	SourceImport         = "import"
	SourceAutoCalculated = "auto_calculated"
)

// History change reasons
const (
	ReasonManualUpdate    = "manual_update"
	ReasonAutoInverse     = "auto_calculated_inverse"
	ReasonAPIUpdate       = "api_update"
	ReasonScheduledUpdate = "scheduled_update"
	ReasonCorrection      = "correction"
)

// ExchangeRate is a directional conversion rate. Every active rate has an
// active inverse maintained alongside it; the pair is updated and retired as
// a unit.
type ExchangeRate struct {
	gorm.Model    `json:"-"`
	RateID        string          `gorm:"uniqueIndex" json:"rate_id"`
	FromCode      string          `gorm:"index:idx_exchange_rates_pair" json:"from_code"`
	ToCode        string          `gorm:"index:idx_exchange_rates_pair" json:"to_code"`
	Rate          decimal.Decimal `gorm:"type:decimal(18,8)" json:"rate"`
	EffectiveDate time.Time       `json:"effective_date"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
	IsActive      bool            `json:"is_active"`
	Source        string          `json:"source"` // manual, api, import, auto_calculated
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ExchangeRateHistory is the append-only audit trail. Rows are written
// before the live rate is overwritten and are never updated or deleted.
type ExchangeRateHistory struct {
	gorm.Model       `json:"-"`
	RateID           string          `gorm:"index" json:"rate_id"`
	FromCode         string          `json:"from_code"`
	ToCode           string          `json:"to_code"`
	PreviousRate     decimal.Decimal `gorm:"type:decimal(18,8)" json:"previous_rate"`
	NewRate          decimal.Decimal `gorm:"type:decimal(18,8)" json:"new_rate"`
	ChangePercentage decimal.Decimal `gorm:"type:decimal(12,4)" json:"change_percentage"`
	ChangeDate       time.Time       `json:"change_date"`
	ChangeReason     string          `json:"change_reason"` // manual_update, auto_calculated_inverse, api_update, scheduled_update, correction
	ChangedBy        string          `json:"changed_by"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ConversionResult is the outcome of a currency conversion.
type ConversionResult struct {
	FromCode        string          `json:"from_code"`
	ToCode          string          `json:"to_code"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	Rate            decimal.Decimal `json:"rate"`
}
