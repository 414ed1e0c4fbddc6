package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port  string
	DBDSN string

	// Corporate account debited when a request does not name one.
	DefaultDebitAccount string

	Gateway   GatewayConfig
	Callbacks CallbackConfig
	SMTP      SMTPConfig
}

type GatewayConfig struct {
	BaseURL         string
	ProcessEndpoint string
	VerifyEndpoint  string

	// Auth schemes, first fully configured one wins:
	// api-key+client-id > bearer > basic
	APIKey      string
	ClientID    string
	BearerToken string
	BasicUser   string
	BasicPass   string

	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64

	RateLimitRPS   float64
	RateLimitBurst int
}

type CallbackConfig struct {
	WebhookSecret string // HMAC-SHA256 secret for /webhooks/bank
	H2HToken      string // shared token for /payment-callback
}

type SMTPConfig struct {
	Host          string
	Port          string
	User          string
	Pass          string
	From          string
	FromName      string
	TLSMode       string // "", "tls", "starttls"
	SkipVerifyTLS bool
}

func Load() *Config {
	return &Config{
		Port:  getEnv("PORT", "8080"),
		DBDSN: os.Getenv("DB_DSN"),

		DefaultDebitAccount: os.Getenv("DEFAULT_DEBIT_ACCOUNT"),
		Gateway: GatewayConfig{
			BaseURL:         getEnv("BANK_BASE_URL", "http://localhost:9090"),
			ProcessEndpoint: getEnv("BANK_PROCESS_ENDPOINT", "/api/v1/payments"),
			VerifyEndpoint:  getEnv("BANK_VERIFY_ENDPOINT", "/api/v1/payments/status"),
			APIKey:          os.Getenv("BANK_API_KEY"),
			ClientID:        os.Getenv("BANK_CLIENT_ID"),
			BearerToken:     os.Getenv("BANK_BEARER_TOKEN"),
			BasicUser:       os.Getenv("BANK_BASIC_USER"),
			BasicPass:       os.Getenv("BANK_BASIC_PASS"),
			Timeout:         getDurationEnv("BANK_TIMEOUT", 15*time.Second),
			MaxAttempts:     getIntEnv("BANK_RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:       getDurationEnv("BANK_RETRY_BASE_DELAY", 200*time.Millisecond),
			Multiplier:      getFloatEnv("BANK_RETRY_MULTIPLIER", 2.0),
			RateLimitRPS:    getFloatEnv("BANK_RATE_LIMIT_RPS", 10),
			RateLimitBurst:  getIntEnv("BANK_RATE_LIMIT_BURST", 20),
		},
		Callbacks: CallbackConfig{
			WebhookSecret: os.Getenv("BANK_WEBHOOK_SECRET"),
			H2HToken:      os.Getenv("CALLBACK_SHARED_SECRET"),
		},
		SMTP: SMTPConfig{
			Host:          getEnv("SMTP_HOST", "localhost"),
			Port:          getEnv("SMTP_PORT", "1025"),
			User:          os.Getenv("SMTP_USER"),
			Pass:          os.Getenv("SMTP_PASS"),
			From:          getEnv("SMTP_FROM", "payments@local.test"),
			FromName:      getEnv("SMTP_FROM_NAME", "Vendor Payments"),
			TLSMode:       os.Getenv("SMTP_TLS_MODE"),
			SkipVerifyTLS: getBoolEnv("SMTP_SKIP_VERIFY_TLS", false),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
