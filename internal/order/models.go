package order

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order statuses. pending -> {paid, failed}; paid -> {refunded, cancelled via
// refund path only}; failed, refunded and cancelled are terminal.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
	StatusCancelled = "cancelled"
)

// Transaction statuses
const (
	TxnPending   = "pending"
	TxnCompleted = "completed"
	TxnFailed    = "failed"
	TxnRefunded  = "refunded"
)

// Payout statuses
const (
	PayoutPending    = "pending"
	PayoutProcessing = "processing"
	PayoutCompleted  = "completed"
	PayoutFailed     = "failed"
)

// Enrollment statuses for order items
const (
	EnrollPending  = "pending"
	EnrollEnrolled = "enrolled"
	EnrollFailed   = "failed"
)

// Order is the immutable snapshot of a checked-out cart. Only the status,
// payment and refund fields change after creation.
type Order struct {
	gorm.Model           `json:"-"`
	OrderID              string          `gorm:"uniqueIndex" json:"order_id"`
	OrderNumber          string          `gorm:"uniqueIndex" json:"order_number"`
	UserID               string          `gorm:"index" json:"user_id"`
	Status               string          `json:"status"` // pending, paid, failed, refunded, cancelled
	CurrencyCode         string          `json:"currency_code"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_amount"`
	DiscountAmount       decimal.Decimal `gorm:"type:decimal(18,2)" json:"discount_amount"`
	TaxAmount            decimal.Decimal `gorm:"type:decimal(18,2)" json:"tax_amount"`
	FinalAmount          decimal.Decimal `gorm:"type:decimal(18,2)" json:"final_amount"`
	PaymentMethod        string          `json:"payment_method,omitempty"`
	GatewayTransactionID string          `json:"gateway_transaction_id,omitempty"`
	PaymentIntentID      string          `json:"payment_intent_id,omitempty"`
	CouponCode           string          `json:"coupon_code,omitempty"`
	CouponUsageCommitted bool            `json:"-"`
	Items                []OrderItem     `gorm:"foreignKey:OrderID;references:OrderID" json:"items"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	RefundedAt           *time.Time      `json:"refunded_at,omitempty"`
	RefundAmount         decimal.Decimal `gorm:"type:decimal(18,2)" json:"refund_amount"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// OrderItem is one cart line frozen at checkout time.
type OrderItem struct {
	gorm.Model       `json:"-"`
	OrderID          string          `gorm:"index" json:"-"`
	CourseID         string          `json:"course_id"`
	CourseType       string          `json:"course_type"`
	EnrollmentType   string          `json:"enrollment_type"`
	OriginalPrice    decimal.Decimal `gorm:"type:decimal(18,2)" json:"original_price"`
	FinalPrice       decimal.Decimal `gorm:"type:decimal(18,2)" json:"final_price"`
	Quantity         int             `json:"quantity"`
	DiscountAmount   decimal.Decimal `gorm:"type:decimal(18,2)" json:"discount_amount"`
	EnrollmentStatus string          `json:"enrollment_status"` // pending, enrolled, failed
	EnrolledAt       *time.Time      `json:"enrolled_at,omitempty"`
}

// Transaction is one payment attempt against an order.
type Transaction struct {
	gorm.Model    `json:"-"`
	TransactionID string          `gorm:"uniqueIndex" json:"transaction_id"`
	OrderID       string          `gorm:"index" json:"order_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	GatewayFee    decimal.Decimal `gorm:"type:decimal(18,2)" json:"gateway_fee"`
	PlatformFee   decimal.Decimal `gorm:"type:decimal(18,2)" json:"platform_fee"`
	Status        string          `json:"status"` // pending, completed, failed, refunded
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Payout is the instructor's share of a paid order. trainerShare +
// platformFee always equals amount at creation.
type Payout struct {
	gorm.Model   `json:"-"`
	PayoutID     string          `gorm:"uniqueIndex" json:"payout_id"`
	TrainerID    string          `gorm:"index" json:"trainer_id"`
	OrderID      string          `gorm:"uniqueIndex" json:"order_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	PlatformFee  decimal.Decimal `gorm:"type:decimal(18,2)" json:"platform_fee"`
	TrainerShare decimal.Decimal `gorm:"type:decimal(18,2)" json:"trainer_share"`
	Status       string          `json:"status"` // pending, processing, completed, failed
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// FeeSplit is the three-way division of a payment amount. The parts always
// sum exactly to the original amount; net absorbs the rounding remainder.
type FeeSplit struct {
	PlatformFee decimal.Decimal `json:"platform_fee"`
	GatewayFee  decimal.Decimal `json:"gateway_fee"`
	NetAmount   decimal.Decimal `json:"net_amount"`
}
