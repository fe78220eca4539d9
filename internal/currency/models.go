package currency

import (
	"time"

	"gorm.io/gorm"
)

// Currency is the canonical definition of a currency the platform can price
// in. Definitions are immutable once referenced by a rate or cart item,
// except for the active flag which is a soft switch.
type Currency struct {
	gorm.Model     `json:"-"`
	CurrencyID     string    `gorm:"uniqueIndex" json:"currency_id"`
	Code           string    `gorm:"uniqueIndex" json:"code"` // 3-letter, uppercase
	Name           string    `json:"name"`
	Symbol         string    `json:"symbol"`
	DecimalPlaces  int32     `json:"decimal_places"` // 0-4
	IsActive       bool      `json:"is_active"`
	IsBaseCurrency bool      `json:"is_base_currency"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
