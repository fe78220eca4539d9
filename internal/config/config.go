package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config carries everything the server needs at startup. Values come from
// the environment with sensible defaults for local development; a .env file
// is honoured when present.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Auth    AuthConfig
	Gateway GatewayConfig
	Pricing PricingConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type StoreConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret string
}

type GatewayConfig struct {
	// WebhookSecret signs gateway webhook payloads. When empty the server
	// wires the deterministic fake gateway instead of a live one.
	WebhookSecret string
}

type PricingConfig struct {
	CartMaxItems    int
	CartTTL         time.Duration
	PlatformFeePct  decimal.Decimal
	GatewayFeePct   decimal.Decimal
	GatewayFeeFixed decimal.Decimal
	PayoutInterval  time.Duration
}

// Load reads configuration from the environment.
func Load() *Config {
	_ = godotenv.Load()

	maxItems, _ := strconv.Atoi(getEnv("CART_MAX_ITEMS", "10"))
	ttlHours, _ := strconv.Atoi(getEnv("CART_TTL_HOURS", "24"))
	payoutMinutes, _ := strconv.Atoi(getEnv("PAYOUT_INTERVAL_MINUTES", "5"))

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		Store: StoreConfig{
			Path: getEnv("DATABASE_PATH", "courseworx.db"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "courseworx-secret-key"),
		},
		Gateway: GatewayConfig{
			WebhookSecret: getEnv("GATEWAY_WEBHOOK_SECRET", ""),
		},
		Pricing: PricingConfig{
			CartMaxItems:    maxItems,
			CartTTL:         time.Duration(ttlHours) * time.Hour,
			PlatformFeePct:  getDecimal("PLATFORM_FEE_PCT", "10"),
			GatewayFeePct:   getDecimal("GATEWAY_FEE_PCT", "2.9"),
			GatewayFeeFixed: getDecimal("GATEWAY_FEE_FIXED", "0.30"),
			PayoutInterval:  time.Duration(payoutMinutes) * time.Minute,
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDecimal(key, defaultVal string) decimal.Decimal {
	d, err := decimal.NewFromString(getEnv(key, defaultVal))
	if err != nil {
		d, _ = decimal.NewFromString(defaultVal)
	}
	return d
}
