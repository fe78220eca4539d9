package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mmabdalla/courseworx-sub003/internal/cart"
	"github.com/mmabdalla/courseworx-sub003/internal/coupon"
	"github.com/mmabdalla/courseworx-sub003/internal/course"
	"github.com/mmabdalla/courseworx-sub003/internal/currency"
	"github.com/mmabdalla/courseworx-sub003/internal/database/migrations"
	"github.com/mmabdalla/courseworx-sub003/internal/order"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	if path == "" {
		path = "courseworx.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddRateLookupIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&currency.Currency{},
		&coupon.Coupon{},
		&course.CourseCurrency{},
		&cart.Cart{},
		&cart.CartItem{},
		&order.Order{},
		&order.OrderItem{},
		&order.Transaction{},
		&order.Payout{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
