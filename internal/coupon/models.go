package coupon

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Coupon types
const (
	TypePercentage = "percentage"
	TypeFixed      = "fixed"
	// TypeFreeShipping always computes a zero discount; shipping does not
	// exist for digital courses but the type is kept for forward
	// compatibility with physical goods.
	TypeFreeShipping = "free_shipping"
)

// Coupon is a promotional code. UsedCount only increases on committed
// redemptions and may decrease when an order is cancelled before capture.
type Coupon struct {
	gorm.Model        `json:"-"`
	CouponID          string              `gorm:"uniqueIndex" json:"coupon_id"`
	Code              string              `gorm:"uniqueIndex" json:"code"` // 3-50 chars, uppercase
	Type              string              `json:"type"`                    // percentage, fixed, free_shipping
	Value             decimal.Decimal     `gorm:"type:decimal(18,2)" json:"value"`
	MaxUses           int                 `json:"max_uses"` // 0 = unlimited
	UsedCount         int                 `json:"used_count"`
	ValidFrom         time.Time           `json:"valid_from"`
	ValidTo           *time.Time          `json:"valid_to,omitempty"`
	ApplicableCourses string              `json:"applicable_courses,omitempty"` // JSON array of course IDs, empty = all
	MinOrderAmount    decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"min_order_amount,omitempty"`
	IsActive          bool                `json:"is_active"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// AppliesToCourse reports whether the coupon covers the given course. An
// empty course list means the coupon applies to every course.
func (c *Coupon) AppliesToCourse(courseID string) bool {
	if c.ApplicableCourses == "" || courseID == "" {
		return true
	}

	var courses []string
	if err := json.Unmarshal([]byte(c.ApplicableCourses), &courses); err != nil {
		return false
	}
	if len(courses) == 0 {
		return true
	}
	for _, id := range courses {
		if id == courseID {
			return true
		}
	}
	return false
}

// ValidationResult reports whether a coupon can be redeemed and, when it
// cannot, the first failing reason.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}
