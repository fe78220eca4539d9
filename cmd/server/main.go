package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/mmabdalla/courseworx-sub003/internal/auth"
	"github.com/mmabdalla/courseworx-sub003/internal/cart"
	"github.com/mmabdalla/courseworx-sub003/internal/config"
	"github.com/mmabdalla/courseworx-sub003/internal/coupon"
	"github.com/mmabdalla/courseworx-sub003/internal/course"
	"github.com/mmabdalla/courseworx-sub003/internal/currency"
	"github.com/mmabdalla/courseworx-sub003/internal/database"
	"github.com/mmabdalla/courseworx-sub003/internal/exchange"
	"github.com/mmabdalla/courseworx-sub003/internal/gateway"
	"github.com/mmabdalla/courseworx-sub003/internal/order"
	"github.com/mmabdalla/courseworx-sub003/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the pricing API server with graceful shutdown
// support. It sets up all required services, database connections and API
// routes.
func main() {
	cfg := config.Load()

	// Initialize database
	db, err := database.NewDatabase(cfg.Store.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.Auth.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	currencyService := currency.NewService(db)
	currencyHandlers := currency.NewGinHandlers(currencyService)

	exchangeService := exchange.NewService(db, currencyService)
	exchangeHandlers := exchange.NewGinHandlers(exchangeService)

	courseService := course.NewService(db, currencyService, exchangeService)
	courseHandlers := course.NewGinHandlers(courseService)

	couponService := coupon.NewService(db)
	couponHandlers := coupon.NewGinHandlers(couponService)

	cartService := cart.NewService(db, couponService, cfg.Pricing.CartMaxItems, cfg.Pricing.CartTTL)
	cartHandlers := cart.NewGinHandlers(cartService)

	// The fake gateway stands in whenever no webhook secret is configured
	var gw gateway.Gateway = gateway.NewFake()
	if cfg.Gateway.WebhookSecret == "" {
		zlog.Warn().Msg("no gateway webhook secret configured; using fake gateway")
	}

	orderService := order.NewService(db, cartService, couponService, currencyService,
		gw, order.LogNotifier{}, order.Fees{
			PlatformFeePct:  cfg.Pricing.PlatformFeePct,
			GatewayFeePct:   cfg.Pricing.GatewayFeePct,
			GatewayFeeFixed: cfg.Pricing.GatewayFeeFixed,
		})
	orderHandlers := order.NewGinHandlers(orderService)
	webhookHandlers := order.NewWebhookHandlers(orderService, cfg.Gateway.WebhookSecret)

	// Create and start payout processor
	payoutProcessor := order.NewProcessor(orderService.GetDB(), cfg.Pricing.PayoutInterval)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go payoutProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.Auth.JWTSecret,
		authHandlers, currencyHandlers, exchangeHandlers, courseHandlers,
		couponHandlers, cartHandlers, orderHandlers, webhookHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Catalog routes: Public currency listings and course price quotes
// - Cart and order routes: Protected by JWT authentication
// - Webhook route: Signature-checked by the handler itself
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	currencyHandlers *currency.GinHandlers,
	exchangeHandlers *exchange.GinHandlers,
	courseHandlers *course.GinHandlers,
	couponHandlers *coupon.GinHandlers,
	cartHandlers *cart.GinHandlers,
	orderHandlers *order.GinHandlers,
	webhookHandlers *order.WebhookHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Public catalog routes
		currencies := v1.Group("/currencies")
		{
			currencies.GET("", currencyHandlers.ListCurrenciesHandler())
			currencies.GET("/:code", currencyHandlers.GetCurrencyHandler())
		}

		rates := v1.Group("/rates")
		{
			rates.GET("", exchangeHandlers.ListRatesHandler())
			rates.GET("/convert", exchangeHandlers.ConvertHandler())
			rates.GET("/:from/:to", exchangeHandlers.GetRateHandler())
			rates.GET("/:from/:to/history", exchangeHandlers.RateHistoryHandler())
		}

		courses := v1.Group("/courses")
		{
			courses.GET("/:course_id/pricing", courseHandlers.GetPricingHandler())
			courses.GET("/:course_id/price", courseHandlers.PriceHandler())
		}

		coupons := v1.Group("/coupons")
		{
			coupons.GET("/:code/validate", couponHandlers.ValidateCouponHandler())
		}

		// Cart routes, available to guests via X-Session-ID
		cartGroup := v1.Group("/cart")
		cartGroup.Use(middleware.OptionalJWTAuth(jwtSecret))
		{
			cartGroup.GET("", cartHandlers.GetCartHandler())
			cartGroup.POST("/items", cartHandlers.AddItemHandler())
			cartGroup.DELETE("/items/:course_id", cartHandlers.RemoveItemHandler())
			cartGroup.PUT("/items/:course_id", cartHandlers.UpdateQuantityHandler())
			cartGroup.POST("/coupon", cartHandlers.ApplyCouponHandler())
			cartGroup.DELETE("/coupon", cartHandlers.RemoveCouponHandler())
			cartGroup.PUT("/tax", cartHandlers.SetTaxHandler())
			cartGroup.DELETE("", cartHandlers.ClearCartHandler())
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(jwtSecret))
		{
			orders.POST("/checkout", orderHandlers.CheckoutHandler())
			orders.GET("", orderHandlers.ListOrdersHandler())
			orders.GET("/:order_number", orderHandlers.GetOrderHandler())
		}

		// Gateway webhook; the handler verifies the payload signature
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/payment", webhookHandlers.PaymentEventHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/currencies", currencyHandlers.RegisterCurrencyHandler())
			internal.PUT("/currencies/:code/base", currencyHandlers.SetBaseCurrencyHandler())
			internal.DELETE("/currencies/:code", currencyHandlers.DeactivateCurrencyHandler())

			internal.POST("/rates", exchangeHandlers.UpsertRateHandler())
			internal.DELETE("/rates/:from/:to", exchangeHandlers.DeactivateRateHandler())

			internal.PUT("/courses/pricing", courseHandlers.SetPricingHandler())
			internal.DELETE("/courses/:course_id/pricing", courseHandlers.DeactivatePricingHandler())

			internal.POST("/coupons", couponHandlers.CreateCouponHandler())
			internal.GET("/coupons/:code", couponHandlers.GetCouponHandler())
			internal.DELETE("/coupons/:code", couponHandlers.DeactivateCouponHandler())

			internal.POST("/orders/:order_id/refund", orderHandlers.RefundOrderHandler())
			internal.POST("/orders/:order_id/cancel", orderHandlers.CancelOrderHandler())
			internal.POST("/orders/:order_id/payout", orderHandlers.CreatePayoutHandler())
			internal.GET("/orders/:order_id/transactions", orderHandlers.ListTransactionsHandler())
		}
	}
}
