package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart is the mutable pre-checkout line-item list. A cart belongs to exactly
// one owner key (a user id or a guest session id, never both) and expires
// passively; expiry is checked on access, not by a timer.
type Cart struct {
	gorm.Model     `json:"-"`
	CartID         string          `gorm:"uniqueIndex" json:"cart_id"`
	UserID         string          `gorm:"index" json:"user_id,omitempty"`
	SessionID      string          `gorm:"index" json:"session_id,omitempty"`
	Items          []CartItem      `gorm:"foreignKey:CartID;references:CartID" json:"items"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,2)" json:"tax_amount"`
	FinalAmount    decimal.Decimal `gorm:"type:decimal(18,2)" json:"final_amount"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	ExpiresAt      time.Time       `json:"expires_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsExpired reports whether the cart has passed its expiry window.
func (c *Cart) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Recompute re-establishes the pricing invariant from the current items:
// total = sum(price*qty), final = max(0, total - discount + tax).
func (c *Cart) Recompute() {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalAmount = total

	final := total.Sub(c.DiscountAmount).Add(c.TaxAmount)
	if final.Sign() < 0 {
		final = decimal.Zero
	}
	c.FinalAmount = final
}

// CartItem is one course line in a cart. A course appears at most once per
// cart; quantity changes go through UpdateQuantity.
type CartItem struct {
	gorm.Model `json:"-"`
	CartID     string          `gorm:"index:idx_cart_items_cart_course,unique" json:"-"`
	CourseID   string          `gorm:"index:idx_cart_items_cart_course,unique" json:"course_id"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,2)" json:"unit_price"`
	CourseType string          `json:"course_type"`
	Quantity   int             `json:"quantity"`
	AddedAt    time.Time       `json:"added_at"`
}

// Owner identifies who a cart belongs to. Exactly one of the two fields must
// be set.
type Owner struct {
	UserID    string
	SessionID string
}

// Valid reports whether exactly one owner field is set.
func (o Owner) Valid() bool {
	return (o.UserID != "") != (o.SessionID != "")
}
