package order

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

// CreateOrderWithItems persists the order snapshot and its items in one
// transaction.
func (d *Database) CreateOrderWithItems(order *Order) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Omit("Items").Create(order).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range order.Items {
		order.Items[i].OrderID = order.OrderID
		if err := tx.Create(&order.Items[i]).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return tx.Commit().Error
}

func (d *Database) GetByOrderID(orderID string) (*Order, error) {
	var order Order
	if err := d.db.Preload("Items").Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetByOrderNumber(orderNumber string) (*Order, error) {
	var order Order
	if err := d.db.Preload("Items").Where("order_number = ?", orderNumber).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) ListByUser(userID string) ([]Order, error) {
	var orders []Order
	if err := d.db.Preload("Items").Where("user_id = ?", userID).
		Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkPaid applies the paid transition, the completed transaction row and
// the enrollment flips in a single transaction. The order update is
// conditional on the row still being pending; returns false without writing
// anything when another confirmation won that race.
func (d *Database) MarkPaid(order *Order, txn *Transaction) (bool, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	result := tx.Model(&Order{}).
		Where("order_id = ? AND status = ?", order.OrderID, StatusPending).
		Updates(map[string]interface{}{
			"status":                 StatusPaid,
			"paid_at":                order.PaidAt,
			"payment_method":         order.PaymentMethod,
			"gateway_transaction_id": order.GatewayTransactionID,
			"coupon_usage_committed": order.CouponUsageCommitted,
			"updated_at":             order.UpdatedAt,
		})
	if result.Error != nil {
		tx.Rollback()
		return false, fmt.Errorf("failed to save order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return false, nil
	}

	if err := tx.Create(txn).Error; err != nil {
		tx.Rollback()
		return false, fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := tx.Model(&OrderItem{}).
		Where("order_id = ?", order.OrderID).
		Updates(map[string]interface{}{
			"enrollment_status": EnrollEnrolled,
			"enrolled_at":       order.UpdatedAt,
			"updated_at":        order.UpdatedAt,
		}).Error; err != nil {
		tx.Rollback()
		return false, fmt.Errorf("failed to update order items: %w", err)
	}

	return true, tx.Commit().Error
}

// MarkRefunded applies the refund transition and the refund transaction row
// in a single transaction.
func (d *Database) MarkRefunded(order *Order, txn *Transaction) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Omit("Items").Save(order).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to save order: %w", err)
	}

	if err := tx.Create(txn).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to create refund transaction: %w", err)
	}

	return tx.Commit().Error
}

func (d *Database) SaveOrder(order *Order) error {
	return d.db.Omit("Items").Save(order).Error
}

func (d *Database) ListTransactions(orderID string) ([]Transaction, error) {
	var txns []Transaction
	if err := d.db.Where("order_id = ?", orderID).Order("created_at ASC").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (d *Database) CreatePayout(payout *Payout) error {
	return d.db.Create(payout).Error
}

func (d *Database) GetPayoutByOrder(orderID string) (*Payout, error) {
	var payout Payout
	if err := d.db.Where("order_id = ?", orderID).First(&payout).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (d *Database) ListPendingPayouts() ([]Payout, error) {
	var payouts []Payout
	if err := d.db.Where("status = ?", PayoutPending).Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}

// ClaimPayout conditionally moves a payout from pending to processing.
// Returns false when another worker already claimed it.
func (d *Database) ClaimPayout(payoutID string) (bool, error) {
	result := d.db.Model(&Payout{}).
		Where("payout_id = ? AND status = ?", payoutID, PayoutPending).
		Updates(map[string]interface{}{"status": PayoutProcessing, "updated_at": time.Now()})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FinishPayout moves a processing payout to its terminal status and stamps
// processed_at.
func (d *Database) FinishPayout(payoutID, status string) error {
	now := time.Now()
	result := d.db.Model(&Payout{}).
		Where("payout_id = ? AND status = ?", payoutID, PayoutProcessing).
		Updates(map[string]interface{}{
			"status":       status,
			"processed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("payout not in processing state")
	}
	return nil
}
