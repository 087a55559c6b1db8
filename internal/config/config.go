package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	// Database
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	DatabaseURL string

	// Redis
	EnableRedis bool
	RedisURL    string

	// JWT
	JWTSecret string

	// Server
	Port        string
	Environment string
	LogLevel    string

	// CORS
	CORSOrigins []string

	// Rate Limiting
	RateLimitRequests int
	RateLimitWindow   int
	RateLimitBurst    int

	// Features
	EnableMetrics bool

	// Payment provider
	DinteroAccountID     string
	DinteroClientID      string
	DinteroClientSecret  string
	DinteroProfileID     string
	DinteroTestMode      bool
	DinteroCheckoutURL   string
	DinteroAPIURL        string
	DinteroTimeout       time.Duration
	ShippingAsOption     bool
	CheckoutSessionTTL   time.Duration
	CheckoutReturnURL    string
	CheckoutCallbackURL  string
	CheckoutPageURL      string
	OrderReceivedURL     string
	CheckoutCookieSecure bool

	// Payment events
	KafkaBrokers       []string
	PaymentEventsTopic string
	ServiceName        string
}

func New() *Config {
	c := &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "checkout"),
		DBPassword: getEnv("DB_PASSWORD", "checkout"),
		DBName:     getEnv("DB_NAME", "storefront"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Redis
		EnableRedis: getEnvAsBool("ENABLE_REDIS", true),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),

		// Server
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// CORS
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")),

		// Rate Limiting
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getEnvAsInt("RATE_LIMIT_WINDOW", 60),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 0),

		// Features
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),

		// Payment provider
		DinteroAccountID:     getEnv("DINTERO_ACCOUNT_ID", ""),
		DinteroClientID:      getEnv("DINTERO_CLIENT_ID", ""),
		DinteroClientSecret:  getEnv("DINTERO_CLIENT_SECRET", ""),
		DinteroProfileID:     getEnv("DINTERO_PROFILE_ID", ""),
		DinteroTestMode:      getEnvAsBool("DINTERO_TEST_MODE", true),
		DinteroCheckoutURL:   getEnv("DINTERO_CHECKOUT_URL", "https://checkout.dintero.com/v1"),
		DinteroAPIURL:        getEnv("DINTERO_API_URL", "https://api.dintero.com/v1"),
		DinteroTimeout:       getEnvAsDuration("DINTERO_TIMEOUT", 10*time.Second),
		ShippingAsOption:     getEnvAsBool("DINTERO_SHIPPING_AS_OPTION", false),
		CheckoutSessionTTL:   getEnvAsDuration("CHECKOUT_SESSION_TTL", 2*time.Hour),
		CheckoutReturnURL:    getEnv("CHECKOUT_RETURN_URL", "http://localhost:8080/checkout/return"),
		CheckoutCallbackURL:  getEnv("CHECKOUT_CALLBACK_URL", "http://localhost:8080/api/v1/payments/callback"),
		CheckoutPageURL:      getEnv("CHECKOUT_PAGE_URL", "http://localhost:3000/checkout"),
		OrderReceivedURL:     getEnv("ORDER_RECEIVED_URL", "http://localhost:3000/checkout/order-received"),
		CheckoutCookieSecure: getEnvAsBool("CHECKOUT_COOKIE_SECURE", false),

		// Payment events
		KafkaBrokers:       splitCSV(getEnv("KAFKA_BROKERS", "")),
		PaymentEventsTopic: getEnv("PAYMENT_EVENTS_TOPIC", "payment.events"),
		ServiceName:        getEnv("SERVICE_NAME", "storefront-checkout"),
	}

	// Build DSN
	c.DatabaseURL = getEnv("DATABASE_URL", fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	))

	return c
}

// PaymentsConfigured reports whether provider credentials are present.
func (c *Config) PaymentsConfigured() bool {
	return strings.TrimSpace(c.DinteroAccountID) != "" &&
		strings.TrimSpace(c.DinteroClientID) != "" &&
		strings.TrimSpace(c.DinteroClientSecret) != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return valueStr == "true" || valueStr == "1"
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
