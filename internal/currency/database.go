package currency

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateCurrency(currency *Currency) error {
	return d.db.Create(currency).Error
}

// GetByCode returns the active currency with the given code.
func (d *Database) GetByCode(code string) (*Currency, error) {
	var currency Currency
	if err := d.db.Where("code = ? AND is_active = ?", code, true).First(&currency).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &currency, nil
}

// GetByCodeAnyStatus resolves a currency regardless of its active flag.
// Historical records keep pointing at deactivated currencies.
func (d *Database) GetByCodeAnyStatus(code string) (*Currency, error) {
	var currency Currency
	if err := d.db.Where("code = ?", code).First(&currency).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &currency, nil
}

func (d *Database) GetByCurrencyID(currencyID string) (*Currency, error) {
	var currency Currency
	if err := d.db.Where("currency_id = ?", currencyID).First(&currency).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &currency, nil
}

func (d *Database) GetBase() (*Currency, error) {
	var currency Currency
	if err := d.db.Where("is_base_currency = ? AND is_active = ?", true, true).First(&currency).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &currency, nil
}

func (d *Database) ListActive() ([]Currency, error) {
	var currencies []Currency
	if err := d.db.Where("is_active = ?", true).Order("code ASC").Find(&currencies).Error; err != nil {
		return nil, err
	}
	return currencies, nil
}

// SetBase flips the base flag to the given currency, unsetting the previous
// base in the same transaction so exactly one base exists at any time.
func (d *Database) SetBase(code string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Model(&Currency{}).
		Where("is_base_currency = ?", true).
		Updates(map[string]interface{}{"is_base_currency": false, "updated_at": time.Now()}).Error; err != nil {
		tx.Rollback()
		return err
	}

	result := tx.Model(&Currency{}).
		Where("code = ? AND is_active = ?", code, true).
		Updates(map[string]interface{}{"is_base_currency": true, "updated_at": time.Now()})
	if result.Error != nil {
		tx.Rollback()
		return result.Error
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return gorm.ErrRecordNotFound
	}

	return tx.Commit().Error
}

func (d *Database) Deactivate(code string) error {
	result := d.db.Model(&Currency{}).
		Where("code = ? AND is_active = ?", code, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
