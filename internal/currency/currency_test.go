package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mmabdalla/courseworx-sub003/pkg/apperrors"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&Currency{}))
	return NewService(db)
}

func TestRegisterNormalizesAndRejectsDuplicates(t *testing.T) {
	svc := newTestService(t)

	cur, err := svc.Register(RegisterInput{Code: " usd ", Name: "US Dollar", Symbol: "$", DecimalPlaces: 2})
	require.NoError(t, err)
	assert.Equal(t, "USD", cur.Code)
	assert.True(t, cur.IsActive)

	_, err = svc.Register(RegisterInput{Code: "USD", Name: "Dollar again"})
	require.Error(t, err)
	assert.Equal(t, "DUPLICATE_CODE", apperrors.CodeOf(err))

	_, err = svc.Register(RegisterInput{Code: "usd", Name: "case-insensitive duplicate"})
	require.Error(t, err)
	assert.Equal(t, "DUPLICATE_CODE", apperrors.CodeOf(err))
}

func TestRegisterRejectsBadShapes(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(RegisterInput{Code: "US", Name: "too short"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Register(RegisterInput{Code: "EURO", Name: "too long"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.Register(RegisterInput{Code: "EUR", Name: "bad places", DecimalPlaces: 5})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestBaseCurrencyInvariant(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetBase()
	require.Error(t, err)
	assert.Equal(t, "NO_BASE_CURRENCY", apperrors.CodeOf(err))

	_, err = svc.Register(RegisterInput{Code: "USD", Name: "US Dollar", DecimalPlaces: 2, IsBase: true})
	require.NoError(t, err)
	_, err = svc.Register(RegisterInput{Code: "EUR", Name: "Euro", DecimalPlaces: 2})
	require.NoError(t, err)

	base, err := svc.GetBase()
	require.NoError(t, err)
	assert.Equal(t, "USD", base.Code)

	// Switching the base demotes the previous one
	require.NoError(t, svc.SetBase("EUR"))

	base, err = svc.GetBase()
	require.NoError(t, err)
	assert.Equal(t, "EUR", base.Code)

	usd, err := svc.GetByCode("USD")
	require.NoError(t, err)
	assert.False(t, usd.IsBaseCurrency)
}

func TestDeactivateHidesFromLookups(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Register(RegisterInput{Code: "GBP", Name: "Pound Sterling", DecimalPlaces: 2})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate("GBP"))

	_, err = svc.GetByCode("GBP")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))

	active, err := svc.ListActive()
	require.NoError(t, err)
	assert.Empty(t, active)
}
