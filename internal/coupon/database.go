package coupon

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

func (d *Database) CreateCoupon(coupon *Coupon) error {
	return d.db.Create(coupon).Error
}

func (d *Database) GetByCode(code string) (*Coupon, error) {
	var coupon Coupon
	if err := d.db.Where("code = ?", code).First(&coupon).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// IncrementUsage bumps used_count with a conditional guard so two racing
// redemptions of a near-exhausted coupon cannot both succeed. Returns false
// when the guard blocked the update.
func (d *Database) IncrementUsage(code string) (bool, error) {
	result := d.db.Model(&Coupon{}).
		Where("code = ? AND is_active = ? AND (max_uses = 0 OR used_count < max_uses)", code, true).
		Updates(map[string]interface{}{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DecrementUsage is the compensating action for rolled-back redemptions.
// Floor-clamped at zero; a no-op there.
func (d *Database) DecrementUsage(code string) error {
	return d.db.Model(&Coupon{}).
		Where("code = ? AND used_count > 0", code).
		Updates(map[string]interface{}{
			"used_count": gorm.Expr("used_count - 1"),
			"updated_at": time.Now(),
		}).Error
}

func (d *Database) ListActive() ([]Coupon, error) {
	var coupons []Coupon
	if err := d.db.Where("is_active = ?", true).Order("code ASC").Find(&coupons).Error; err != nil {
		return nil, err
	}
	return coupons, nil
}

func (d *Database) Deactivate(code string) error {
	result := d.db.Model(&Coupon{}).
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
