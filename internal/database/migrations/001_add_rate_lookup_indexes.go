package migrations

import (
	"github.com/mmabdalla/courseworx-sub003/internal/exchange"
	"gorm.io/gorm"
)

func AddRateLookupIndexes(db *gorm.DB) error {
	// The rate tables migrate first so the lookup indexes below have
	// something to attach to.
	if err := db.AutoMigrate(&exchange.ExchangeRate{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&exchange.ExchangeRateHistory{}); err != nil {
		return err
	}

	// Rate resolution filters on the pair plus active flag on every convert
	if err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_exchange_rates_pair_active
		 ON exchange_rates (from_code, to_code, is_active)`,
	).Error; err != nil {
		return err
	}

	return db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_exchange_rate_histories_pair_date
		 ON exchange_rate_histories (from_code, to_code, change_date)`,
	).Error
}
