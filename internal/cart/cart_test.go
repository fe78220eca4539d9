package cart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mmabdalla/courseworx-sub003/internal/coupon"
	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestServices(t *testing.T, maxItems int, ttl time.Duration) (*Service, *coupon.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&coupon.Coupon{}, &Cart{}, &CartItem{}))

	coupons := coupon.NewService(db)
	return NewService(db, coupons, maxItems, ttl), coupons
}

func user(id string) Owner {
	return Owner{UserID: id}
}

func TestAddItemCreatesCartAndRecomputes(t *testing.T) {
	svc, _ := newTestServices(t, 10, time.Hour)

	cart, err := svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_A", UnitPrice: d("49.99")})
	require.NoError(t, err)
	assert.NotEmpty(t, cart.CartID)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
	assert.True(t, cart.TotalAmount.Equal(d("49.99")))
	assert.True(t, cart.FinalAmount.Equal(d("49.99")))

	cart, err = svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_B", UnitPrice: d("20"), Quantity: 2})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
	assert.True(t, cart.TotalAmount.Equal(d("89.99")), "got %s", cart.TotalAmount)
}

func TestAddItemRejectsDuplicateCourse(t *testing.T) {
	svc, _ := newTestServices(t, 10, time.Hour)

	_, err := svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_A", UnitPrice: d("10")})
	require.NoError(t, err)

	_, err = svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_A", UnitPrice: d("10")})
	require.Error(t, err)
	assert.Equal(t, "DUPLICATE_ITEM", apperrors.CodeOf(err))
}

func TestAddItemEnforcesCap(t *testing.T) {
	svc, _ := newTestServices(t, 2, time.Hour)

	_, err := svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_A", UnitPrice: d("10")})
	require.NoError(t, err)
	_, err = svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_B", UnitPrice: d("10")})
	require.NoError(t, err)

	_, err = svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_C", UnitPrice: d("10")})
	require.Error(t, err)
	assert.Equal(t, "CART_FULL", apperrors.CodeOf(err))
}

func TestOwnerIsExclusive(t *testing.T) {
	svc, _ := newTestServices(t, 10, time.Hour)

	_, err := svc.AddItem(Owner{}, AddItemInput{CourseID: "CRS_A", UnitPrice: d("10")})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.AddItem(Owner{UserID: "u1", SessionID: "s1"}, AddItemInput{CourseID: "CRS_A", UnitPrice: d("10")})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	// Guest carts key on the session id alone
	cart, err := svc.AddItem(Owner{SessionID: "s1"}, AddItemInput{CourseID: "CRS_A", UnitPrice: d("10")})
	require.NoError(t, err)
	assert.Equal(t, "s1", cart.SessionID)
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	svc, _ := newTestServices(t, 10, time.Hour)

	_, err := svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_A", UnitPrice: d("10")})
	require.NoError(t, err)

	cart, err := svc.UpdateQuantity(user("u1"), "CRS_A", 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalAmount.IsZero())

	_, err = svc.UpdateQuantity(user("u1"), "CRS_A", 3)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestApplyCouponComputesDiscount(t *testing.T) {
	svc, coupons := newTestServices(t, 10, time.Hour)

	_, err := coupons.Create(coupon.CreateInput{Code: "PERCENT20", Type: coupon.TypePercentage, Value: d("20")})
	require.NoError(t, err)

	_, err = svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_A", UnitPrice: d("99.99")})
	require.NoError(t, err)

	cart, err := svc.ApplyCoupon(user("u1"), "PERCENT20")
	require.NoError(t, err)
	assert.Equal(t, "PERCENT20", cart.CouponCode)
	assert.True(t, cart.DiscountAmount.Equal(d("20.00")), "got %s", cart.DiscountAmount)
	assert.True(t, cart.FinalAmount.Equal(d("79.99")), "got %s", cart.FinalAmount)
}

func TestApplyCouponRejectsInvalid(t *testing.T) {
	svc, coupons := newTestServices(t, 10, time.Hour)

	_, err := coupons.Create(coupon.CreateInput{
		Code:           "BIGORDER",
		Type:           coupon.TypeFixed,
		Value:          d("15"),
		MinOrderAmount: decimal.NullDecimal{Decimal: d("100"), Valid: true},
	})
	require.NoError(t, err)

	_, err = svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_A", UnitPrice: d("50")})
	require.NoError(t, err)

	_, err = svc.ApplyCoupon(user("u1"), "BIGORDER")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.ApplyCoupon(user("u1"), "MISSING")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestSetTaxFlowsIntoFinal(t *testing.T) {
	svc, _ := newTestServices(t, 10, time.Hour)

	_, err := svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_A", UnitPrice: d("100")})
	require.NoError(t, err)

	cart, err := svc.SetTax(user("u1"), d("8.25"))
	require.NoError(t, err)
	assert.True(t, cart.FinalAmount.Equal(d("108.25")), "got %s", cart.FinalAmount)

	_, err = svc.SetTax(user("u1"), d("-1"))
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestFinalAmountNeverNegative(t *testing.T) {
	svc, coupons := newTestServices(t, 10, time.Hour)

	_, err := coupons.Create(coupon.CreateInput{Code: "FIXED15", Type: coupon.TypeFixed, Value: d("15")})
	require.NoError(t, err)

	_, err = svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_A", UnitPrice: d("10")})
	require.NoError(t, err)

	cart, err := svc.ApplyCoupon(user("u1"), "FIXED15")
	require.NoError(t, err)
	// Fixed discount clamps to the order amount
	assert.True(t, cart.DiscountAmount.Equal(d("10")))
	assert.True(t, cart.FinalAmount.IsZero(), "got %s", cart.FinalAmount)
}

func TestExpiredCartIsReaped(t *testing.T) {
	svc, _ := newTestServices(t, 10, time.Millisecond)

	_, err := svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_A", UnitPrice: d("10")})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = svc.Get(user("u1"))
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	// A fresh cart starts empty after the reap
	cart, err := svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_B", UnitPrice: d("20")})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, "CRS_B", cart.Items[0].CourseID)
}

func TestClearZeroesEverything(t *testing.T) {
	svc, coupons := newTestServices(t, 10, time.Hour)

	_, err := coupons.Create(coupon.CreateInput{Code: "PERCENT10", Type: coupon.TypePercentage, Value: d("10")})
	require.NoError(t, err)

	_, err = svc.AddItem(user("u1"), AddItemInput{CourseID: "CRS_A", UnitPrice: d("100")})
	require.NoError(t, err)
	_, err = svc.ApplyCoupon(user("u1"), "PERCENT10")
	require.NoError(t, err)

	cart, err := svc.Clear(user("u1"))
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Empty(t, cart.CouponCode)
	assert.True(t, cart.TotalAmount.IsZero())
	assert.True(t, cart.FinalAmount.IsZero())
}
