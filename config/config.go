package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	MySQL    MySQLConfig
	Log      LogConfig
	Telegram TelegramConfig
	Stripe   StripeConfig
	PayPal   PayPalConfig
	Coinbase CoinbaseConfig
	Store    StoreConfig
	Jobs     JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type TelegramConfig struct {
	Token          string
	AdminIDs       []int64
	PollTimeoutSec int
}

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	SuccessURL                string
	CancelURL                 string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

type PayPalConfig struct {
	BaseAPIURL   string
	ClientID     string
	ClientSecret string
	WebhookID    string
	ReturnURL    string
	CancelURL    string
	HTTPTimeout  time.Duration
}

type CoinbaseConfig struct {
	APIKey        string
	WebhookSecret string
	HTTPTimeout   time.Duration
}

type StoreConfig struct {
	Currency            string
	ReconcileStaleAfter time.Duration
	JobBatchSize        int32
}

type JobsConfig struct {
	ReconcileInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "digital-store"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Telegram: TelegramConfig{
			Token:          getEnv("TELEGRAM_TOKEN", ""),
			AdminIDs:       getInt64ListEnv("ADMIN_USER_IDS"),
			PollTimeoutSec: getIntEnv("TELEGRAM_POLL_TIMEOUT_SECONDS", 30),
		},
		Stripe: StripeConfig{
			SecretKey:                 getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:             getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:                getEnv("STRIPE_SUCCESS_URL", ""),
			CancelURL:                 getEnv("STRIPE_CANCEL_URL", ""),
			SignatureToleranceSeconds: int64(getIntEnv("STRIPE_SIGNATURE_TOLERANCE_SECONDS", 300)),
			HTTPTimeout:               getSecondsEnv("STRIPE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		PayPal: PayPalConfig{
			BaseAPIURL:   getEnv("PAYPAL_BASE_API_URL", "https://api-m.sandbox.paypal.com"),
			ClientID:     getEnv("PAYPAL_CLIENT_ID", ""),
			ClientSecret: getEnv("PAYPAL_CLIENT_SECRET", ""),
			WebhookID:    getEnv("PAYPAL_WEBHOOK_ID", ""),
			ReturnURL:    getEnv("PAYPAL_RETURN_URL", ""),
			CancelURL:    getEnv("PAYPAL_CANCEL_URL", ""),
			HTTPTimeout:  getSecondsEnv("PAYPAL_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Coinbase: CoinbaseConfig{
			APIKey:        getEnv("COINBASE_API_KEY", ""),
			WebhookSecret: getEnv("COINBASE_WEBHOOK_SECRET", ""),
			HTTPTimeout:   getSecondsEnv("COINBASE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Store: StoreConfig{
			Currency:            getEnv("STORE_CURRENCY", "USD"),
			ReconcileStaleAfter: getMinutesEnv("STORE_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:        int32(getIntEnv("STORE_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			ReconcileInterval: getMinutesEnv("STORE_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getInt64ListEnv(key string) []int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}

	items := make([]int64, 0, 2)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			items = append(items, id)
		}
	}
	return items
}
