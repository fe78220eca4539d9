package cart

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// GetByOwner returns the live cart for an owner key, items included.
func (d *Database) GetByOwner(owner Owner) (*Cart, error) {
	query := d.db.Preload("Items")
	if owner.UserID != "" {
		query = query.Where("user_id = ?", owner.UserID)
	} else {
		query = query.Where("session_id = ?", owner.SessionID)
	}

	var cart Cart
	if err := query.First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

func (d *Database) GetByCartID(cartID string) (*Cart, error) {
	var cart Cart
	if err := d.db.Preload("Items").Where("cart_id = ?", cartID).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

func (d *Database) CreateCart(cart *Cart) error {
	return d.db.Create(cart).Error
}

// SaveCartWithItem persists the recomputed cart totals and one new or
// updated item in a single transaction.
func (d *Database) SaveCartWithItem(cart *Cart, item *CartItem) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Save(item).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save cart item: %w", err)
	}

	if err := tx.Omit("Items").Save(cart).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save cart: %w", err)
	}

	return tx.Commit().Error
}

// SaveCartRemovingItem persists the recomputed cart totals and deletes one
// item in a single transaction.
func (d *Database) SaveCartRemovingItem(cart *Cart, courseID string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Unscoped().Where("cart_id = ? AND course_id = ?", cart.CartID, courseID).
		Delete(&CartItem{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	if err := tx.Omit("Items").Save(cart).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save cart: %w", err)
	}

	return tx.Commit().Error
}

// SaveCart persists the cart row only (totals, coupon, tax fields).
func (d *Database) SaveCart(cart *Cart) error {
	return d.db.Omit("Items").Save(cart).Error
}

// DeleteCart removes a cart and its items in one transaction.
func (d *Database) DeleteCart(cartID string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Unscoped().Where("cart_id = ?", cartID).Delete(&CartItem{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	if err := tx.Unscoped().Where("cart_id = ?", cartID).Delete(&Cart{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	return tx.Commit().Error
}

// ClearItems deletes every item of a cart and persists the zeroed cart in
// one transaction.
func (d *Database) ClearItems(cart *Cart) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Unscoped().Where("cart_id = ?", cart.CartID).Delete(&CartItem{}).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	if err := tx.Omit("Items").Save(cart).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save cart: %w", err)
	}

	return tx.Commit().Error
}
