package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/mmabdalla/courseworx-sub003/internal/config"
	"github.com/mmabdalla/courseworx-sub003/internal/coupon"
	"github.com/mmabdalla/courseworx-sub003/internal/course"
	"github.com/mmabdalla/courseworx-sub003/internal/currency"
	"github.com/mmabdalla/courseworx-sub003/internal/database"
	"github.com/mmabdalla/courseworx-sub003/internal/exchange"
)

// Seeds the local database with currencies, a starter rate set, demo coupons
// and course pricing so the API is usable straight after start-up. Safe to
// rerun: duplicates are skipped.
func main() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	zlog.Logger = zerolog.New(output).With().Timestamp().Logger()

	cfg := config.Load()

	db, err := database.NewDatabase(cfg.Store.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize database")
	}

	currencyService := currency.NewService(db)
	exchangeService := exchange.NewService(db, currencyService)
	couponService := coupon.NewService(db)
	courseService := course.NewService(db, currencyService, exchangeService)

	seedCurrencies(currencyService)
	seedRates(exchangeService)
	seedCoupons(couponService)
	seedCoursePricing(courseService)

	zlog.Info().Msg("seeding complete")
}

func seedCurrencies(svc *currency.Service) {
	currencies := []currency.RegisterInput{
		{Code: "USD", Name: "US Dollar", Symbol: "$", DecimalPlaces: 2, IsBase: true},
		{Code: "EUR", Name: "Euro", Symbol: "€", DecimalPlaces: 2},
		{Code: "GBP", Name: "Pound Sterling", Symbol: "£", DecimalPlaces: 2},
		{Code: "EGP", Name: "Egyptian Pound", Symbol: "E£", DecimalPlaces: 2},
		{Code: "JPY", Name: "Japanese Yen", Symbol: "¥", DecimalPlaces: 0},
	}

	for _, input := range currencies {
		if _, err := svc.Register(input); err != nil {
			zlog.Warn().Err(err).Str("code", input.Code).Msg("skipping currency")
			continue
		}
		zlog.Info().Str("code", input.Code).Msg("currency registered")
	}
}

func seedRates(svc *exchange.Service) {
	rates := []exchange.UpsertInput{
		{FromCode: "USD", ToCode: "EUR", Rate: decimal.RequireFromString("0.85"), Source: "import", Actor: "seed"},
		{FromCode: "USD", ToCode: "GBP", Rate: decimal.RequireFromString("0.79"), Source: "import", Actor: "seed"},
		{FromCode: "USD", ToCode: "EGP", Rate: decimal.RequireFromString("48.50"), Source: "import", Actor: "seed"},
		{FromCode: "USD", ToCode: "JPY", Rate: decimal.RequireFromString("147.20"), Source: "import", Actor: "seed"},
	}

	for _, input := range rates {
		if _, err := svc.UpsertRate(input); err != nil {
			zlog.Warn().Err(err).
				Str("pair", input.FromCode+"/"+input.ToCode).
				Msg("skipping rate")
			continue
		}
		zlog.Info().
			Str("pair", input.FromCode+"/"+input.ToCode).
			Str("rate", input.Rate.String()).
			Msg("rate pair upserted")
	}
}

func seedCoupons(svc *coupon.Service) {
	monthOut := time.Now().AddDate(0, 1, 0)

	coupons := []coupon.CreateInput{
		{Code: "WELCOME10", Type: coupon.TypePercentage, Value: decimal.RequireFromString("10")},
		{
			Code:    "SAVE15",
			Type:    coupon.TypeFixed,
			Value:   decimal.RequireFromString("15"),
			MaxUses: 100,
			ValidTo: &monthOut,
			MinOrderAmount: decimal.NullDecimal{
				Decimal: decimal.RequireFromString("50"),
				Valid:   true,
			},
		},
		{Code: "FREESHIP", Type: coupon.TypeFreeShipping},
	}

	for _, input := range coupons {
		if _, err := svc.Create(input); err != nil {
			zlog.Warn().Err(err).Str("code", input.Code).Msg("skipping coupon")
			continue
		}
		zlog.Info().Str("code", input.Code).Msg("coupon created")
	}
}

func seedCoursePricing(svc *course.Service) {
	pricings := []course.SetPricingInput{
		{
			CourseID:         "CRS_DEMO_GO",
			BaseCurrencyCode: "USD",
			BasePrice:        decimal.RequireFromString("49.99"),
		},
		{
			CourseID:                 "CRS_DEMO_SQL",
			BaseCurrencyCode:         "USD",
			BasePrice:                decimal.RequireFromString("99.99"),
			AllowedPaymentCurrencies: []string{"USD", "EUR", "EGP"},
			CustomExchangeRates: map[string]decimal.Decimal{
				"USD_EGP": decimal.RequireFromString("50.00"),
			},
		},
	}

	for _, input := range pricings {
		if _, err := svc.SetPricing(input); err != nil {
			zlog.Warn().Err(err).Str("course_id", input.CourseID).Msg("skipping course pricing")
			continue
		}
		zlog.Info().Str("course_id", input.CourseID).Msg("course pricing saved")
	}
}
