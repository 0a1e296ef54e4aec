package config

import (
	"os"
	"strconv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	HTTP     HTTPConfig
	Stripe   StripeConfig
	SMTP     SMTPConfig
	Booking  BookingConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type HTTPConfig struct {
	Addr string
}

type StripeConfig struct {
	SecretKey string
	Currency  string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Enabled  bool
}

// BookingConfig carries the process-wide business knobs. They are injected
// into the services instead of being read as ambient globals.
type BookingConfig struct {
	// TaxRate is the selling tax applied on top of the pre-tax total,
	// e.g. 0.14975.
	TaxRate float64
	// NotificationLifetimeDays is the retention window for wait-queue
	// notifications; older entries are purged during a notify sweep.
	NotificationLifetimeDays int
	// WaitQueueSweepMinutes is the interval of the scheduler job that
	// triggers wait-queue promotion checks.
	WaitQueueSweepMinutes int
}

var AppConfig *Config

func LoadConfig() *Config {
	AppConfig = &Config{
		Database: GetDatabaseConfig(),
		Redis:    GetRedisConfig(),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_ADDR", ":8080"),
		},
		Stripe: StripeConfig{
			SecretKey: getEnv("STRIPE_SECRET_KEY", ""),
			Currency:  getEnv("STRIPE_CURRENCY", "cad"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "noreply@example.com"),
			Enabled:  getEnv("SMTP_ENABLED", "false") == "true",
		},
		Booking: GetBookingConfig(),
	}
	return AppConfig
}

func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "postgres"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}
}

func GetRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

func GetBookingConfig() BookingConfig {
	taxRate, err := strconv.ParseFloat(getEnv("SELLING_TAX_RATE", "0.14975"), 64)
	if err != nil {
		panic(err)
	}
	return BookingConfig{
		TaxRate:                  taxRate,
		NotificationLifetimeDays: getEnvInt("WAIT_QUEUE_NOTIFICATION_LIFETIME_DAYS", 30),
		WaitQueueSweepMinutes:    getEnvInt("WAIT_QUEUE_SWEEP_MINUTES", 30),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		panic(err)
	}
	return v
}
