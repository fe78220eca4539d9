package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mmabdalla/courseworx-sub003/internal/currency"
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

	require.NoError(t, db.AutoMigrate(&currency.Currency{}, &ExchangeRate{}, &ExchangeRateHistory{}))

	currencies := currency.NewService(db)
	for _, input := range []currency.RegisterInput{
		{Code: "USD", Name: "US Dollar", DecimalPlaces: 2, IsBase: true},
		{Code: "EUR", Name: "Euro", DecimalPlaces: 2},
		{Code: "JPY", Name: "Japanese Yen", DecimalPlaces: 0},
	} {
		_, err := currencies.Register(input)
		require.NoError(t, err)
	}

	return NewService(db, currencies)
}

func TestUpsertMaintainsInversePair(t *testing.T) {
	svc := newTestService(t)

	direct, err := svc.UpsertRate(UpsertInput{FromCode: "USD", ToCode: "EUR", Rate: d("0.85"), Actor: "ops"})
	require.NoError(t, err)
	assert.Equal(t, SourceManual, direct.Source)

	inverse, err := svc.GetRate("EUR", "USD")
	require.NoError(t, err)
	assert.Equal(t, SourceAutoCalculated, inverse.Source)

	// rate * inverse stays within rounding distance of 1
	product := direct.Rate.Mul(inverse.Rate)
	diff := product.Sub(d("1")).Abs()
	assert.True(t, diff.LessThan(d("0.000001")), "product %s drifts from 1", product)
}

func TestUpsertRejectsDerivedDirection(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpsertRate(UpsertInput{FromCode: "USD", ToCode: "EUR", Rate: d("0.85")})
	require.NoError(t, err)

	_, err = svc.UpsertRate(UpsertInput{FromCode: "EUR", ToCode: "USD", Rate: d("1.20")})
	require.Error(t, err)
	assert.Equal(t, "INVERSE_EXISTS", apperrors.CodeOf(err))
}

func TestUpsertUpdateWritesHistoryForBothDirections(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpsertRate(UpsertInput{FromCode: "USD", ToCode: "EUR", Rate: d("0.85"), Actor: "ops"})
	require.NoError(t, err)

	// Creation writes no history; the first update writes one row per
	// direction.
	history, err := svc.ListHistory("USD", "EUR")
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = svc.UpsertRate(UpsertInput{FromCode: "USD", ToCode: "EUR", Rate: d("0.90"), Actor: "ops", Notes: "monthly correction"})
	require.NoError(t, err)

	history, err = svc.ListHistory("USD", "EUR")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].PreviousRate.Equal(d("0.85")))
	assert.True(t, history[0].NewRate.Equal(d("0.90")))
	assert.Equal(t, ReasonManualUpdate, history[0].ChangeReason)
	assert.Equal(t, "ops", history[0].ChangedBy)
	// (0.90-0.85)/0.85*100
	assert.True(t, history[0].ChangePercentage.Equal(d("5.8824")), "got %s", history[0].ChangePercentage)

	inverseHistory, err := svc.ListHistory("EUR", "USD")
	require.NoError(t, err)
	require.Len(t, inverseHistory, 1)
	assert.Equal(t, ReasonAutoInverse, inverseHistory[0].ChangeReason)

	// Both live rows carry the update's notes
	direct, err := svc.GetRate("USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "monthly correction", direct.Notes)
	inverse, err := svc.GetRate("EUR", "USD")
	require.NoError(t, err)
	assert.Equal(t, "monthly correction", inverse.Notes)
}

func TestGetRateNeverAutoInverts(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpsertRate(UpsertInput{FromCode: "USD", ToCode: "EUR", Rate: d("0.85")})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivatePair("USD", "EUR"))

	_, err = svc.GetRate("USD", "EUR")
	require.Error(t, err)
	assert.Equal(t, "RATE_NOT_FOUND", apperrors.CodeOf(err))

	// Deactivation retires both directions as a unit
	_, err = svc.GetRate("EUR", "USD")
	require.Error(t, err)
	assert.Equal(t, "RATE_NOT_FOUND", apperrors.CodeOf(err))
}

func TestConvertRoundsToTargetPrecision(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpsertRate(UpsertInput{FromCode: "USD", ToCode: "EUR", Rate: d("0.85")})
	require.NoError(t, err)
	_, err = svc.UpsertRate(UpsertInput{FromCode: "USD", ToCode: "JPY", Rate: d("147.2")})
	require.NoError(t, err)

	result, err := svc.Convert(d("100"), "USD", "EUR")
	require.NoError(t, err)
	assert.True(t, result.ConvertedAmount.Equal(d("85.00")), "got %s", result.ConvertedAmount)
	assert.True(t, result.Rate.Equal(d("0.85")))

	// Yen has zero decimal places
	result, err = svc.Convert(d("10.50"), "USD", "JPY")
	require.NoError(t, err)
	assert.True(t, result.ConvertedAmount.Equal(d("1546")), "got %s", result.ConvertedAmount)
}

func TestConvertIdentity(t *testing.T) {
	svc := newTestService(t)

	result, err := svc.Convert(d("42.424242"), "USD", "USD")
	require.NoError(t, err)
	assert.True(t, result.ConvertedAmount.Equal(d("42.424242")), "identity must not round")
	assert.True(t, result.Rate.Equal(d("1")))
}

func TestConvertMissingRate(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Convert(d("100"), "USD", "EUR")
	require.Error(t, err)
	assert.Equal(t, "RATE_NOT_FOUND", apperrors.CodeOf(err))
}

func TestUpsertValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.UpsertRate(UpsertInput{FromCode: "USD", ToCode: "USD", Rate: d("1")})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.UpsertRate(UpsertInput{FromCode: "USD", ToCode: "EUR", Rate: d("0")})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = svc.UpsertRate(UpsertInput{FromCode: "USD", ToCode: "EUR", Rate: d("0.85"), Source: "guess"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	// Unregistered currency
	_, err = svc.UpsertRate(UpsertInput{FromCode: "USD", ToCode: "XXX", Rate: d("2")})
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}
