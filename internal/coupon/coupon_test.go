package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&Coupon{}))
	return NewService(db)
}

func activeCoupon() *Coupon {
	return &Coupon{
		Code:      "TEST",
		Type:      TypePercentage,
		Value:     d("10"),
		ValidFrom: time.Now().Add(-time.Hour),
		IsActive:  true,
	}
}

func TestValidateCheckOrder(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	// An inactive, expired, exhausted coupon reports inactive first
	c := activeCoupon()
	c.IsActive = false
	c.ValidTo = &past
	c.MaxUses = 1
	c.UsedCount = 1
	result := Validate(c, now, d("100"), "")
	assert.Equal(t, "coupon is not active", result.Reason)

	c.IsActive = true
	result = Validate(c, now, d("100"), "")
	assert.Equal(t, "coupon has expired", result.Reason)

	c.ValidTo = nil
	c.ValidFrom = future
	result = Validate(c, now, d("100"), "")
	assert.Equal(t, "coupon is not yet valid", result.Reason)

	c.ValidFrom = past
	result = Validate(c, now, d("100"), "")
	assert.Equal(t, "coupon usage limit reached", result.Reason)

	c.MaxUses = 0
	c.ApplicableCourses = `["CRS_A"]`
	result = Validate(c, now, d("100"), "CRS_B")
	assert.Equal(t, "coupon does not apply to this course", result.Reason)

	c.ApplicableCourses = ""
	c.MinOrderAmount = decimal.NullDecimal{Decimal: d("200"), Valid: true}
	result = Validate(c, now, d("100"), "")
	assert.Equal(t, "order amount is below the coupon minimum", result.Reason)

	c.MinOrderAmount = decimal.NullDecimal{}
	result = Validate(c, now, d("100"), "")
	assert.True(t, result.Valid)
}

func TestCalculateDiscountPercentage(t *testing.T) {
	c := activeCoupon()

	discount, result := CalculateDiscount(c, time.Now(), d("200"), "")
	require.True(t, result.Valid)
	assert.True(t, discount.Equal(d("20.00")), "got %s", discount)
}

func TestCalculateDiscountFixedClampsToOrderAmount(t *testing.T) {
	c := activeCoupon()
	c.Type = TypeFixed
	c.Value = d("15")

	discount, result := CalculateDiscount(c, time.Now(), d("10"), "")
	require.True(t, result.Valid)
	assert.True(t, discount.Equal(d("10")), "fixed discount must clamp, got %s", discount)
}

func TestCalculateDiscountFreeShipping(t *testing.T) {
	c := activeCoupon()
	c.Type = TypeFreeShipping

	discount, result := CalculateDiscount(c, time.Now(), d("100"), "")
	require.True(t, result.Valid)
	assert.True(t, discount.IsZero())
}

func TestCalculateDiscountInvalidCouponIsZero(t *testing.T) {
	c := activeCoupon()
	c.IsActive = false

	discount, result := CalculateDiscount(c, time.Now(), d("100"), "")
	assert.False(t, result.Valid)
	assert.True(t, discount.IsZero())
}

func TestCreateNormalizesAndRejectsDuplicates(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.Create(CreateInput{Code: " percent10 ", Type: TypePercentage, Value: d("10")})
	require.NoError(t, err)
	assert.Equal(t, "PERCENT10", created.Code)

	_, err = svc.Create(CreateInput{Code: "PERCENT10", Type: TypeFixed, Value: d("5")})
	require.Error(t, err)
	assert.Equal(t, "DUPLICATE_CODE", apperrors.CodeOf(err))
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(CreateInput{Code: "AB", Type: TypePercentage, Value: d("10")})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Create(CreateInput{Code: "BADTYPE", Type: "bogo", Value: d("10")})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Create(CreateInput{Code: "ZEROVAL", Type: TypeFixed, Value: d("0")})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	// Free shipping carries no value
	_, err = svc.Create(CreateInput{Code: "FREESHIP", Type: TypeFreeShipping})
	assert.NoError(t, err)
}

func TestIncrementUsageStopsAtLimit(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(CreateInput{Code: "ONCE", Type: TypeFixed, Value: d("5"), MaxUses: 1})
	require.NoError(t, err)

	require.NoError(t, svc.IncrementUsage("ONCE"))

	err = svc.IncrementUsage("ONCE")
	require.Error(t, err)
	assert.Equal(t, "COUPON_EXHAUSTED", apperrors.CodeOf(err))

	c, err := svc.GetByCode("ONCE")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsedCount)
}

func TestIncrementUsageUnlimited(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(CreateInput{Code: "FOREVER", Type: TypeFixed, Value: d("5")})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.IncrementUsage("FOREVER"))
	}

	c, err := svc.GetByCode("FOREVER")
	require.NoError(t, err)
	assert.Equal(t, 5, c.UsedCount)
}

func TestDecrementUsageFloorsAtZero(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(CreateInput{Code: "ROLLBACK", Type: TypeFixed, Value: d("5")})
	require.NoError(t, err)

	require.NoError(t, svc.IncrementUsage("ROLLBACK"))
	require.NoError(t, svc.DecrementUsage("ROLLBACK"))
	require.NoError(t, svc.DecrementUsage("ROLLBACK"))

	c, err := svc.GetByCode("ROLLBACK")
	require.NoError(t, err)
	assert.Equal(t, 0, c.UsedCount)
}

func TestIncrementUsageUnknownCode(t *testing.T) {
	svc := newTestService(t)

	err := svc.IncrementUsage("MISSING")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}
