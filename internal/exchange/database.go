package exchange

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetActiveRate returns the active rate for the exact ordered pair, or nil
// when none exists. Expiry is checked by the caller against its own clock.
func (d *Database) GetActiveRate(fromCode, toCode string) (*ExchangeRate, error) {
	var rate ExchangeRate
	if err := d.db.Where("from_code = ? AND to_code = ? AND is_active = ?", fromCode, toCode, true).
		First(&rate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

// UpsertPair applies the direct and inverse rate rows plus their history
// entries in a single transaction. Both directions change or neither does.
func (d *Database) UpsertPair(direct, inverse *ExchangeRate, history []*ExchangeRateHistory) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, row := range history {
		if err := tx.Create(row).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to write rate history: %w", err)
		}
	}

	if err := tx.Save(direct).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save direct rate: %w", err)
	}

	if err := tx.Save(inverse).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save inverse rate: %w", err)
	}

	return tx.Commit().Error
}

// DeactivatePair retires both directions of a pair in one transaction.
func (d *Database) DeactivatePair(fromCode, toCode string) (int64, error) {
	var affected int64

	err := d.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ExchangeRate{}).
			Where("((from_code = ? AND to_code = ?) OR (from_code = ? AND to_code = ?)) AND is_active = ?",
				fromCode, toCode, toCode, fromCode, true).
			Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		return nil
	})

	return affected, err
}

// ListHistory returns the audit trail for an ordered pair, newest first.
func (d *Database) ListHistory(fromCode, toCode string) ([]ExchangeRateHistory, error) {
	var history []ExchangeRateHistory
	if err := d.db.Where("from_code = ? AND to_code = ?", fromCode, toCode).
		Order("change_date DESC").
		Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}

// ListActiveRates returns every active rate ordered by pair.
func (d *Database) ListActiveRates() ([]ExchangeRate, error) {
	var rates []ExchangeRate
	if err := d.db.Where("is_active = ?", true).
		Order("from_code ASC, to_code ASC").
		Find(&rates).Error; err != nil {
		return nil, err
	}
	return rates, nil
}
