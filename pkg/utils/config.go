package utils

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Booking  BookingConfig
	Payment  PaymentConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
}

type AppConfig struct {
	Name            string
	Port            string
	Debug           bool
	LogPath         string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
	SSLMode  string
}

// DSN builds a libpq style connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%s sslmode=%s",
		c.User, c.Password, c.Name, c.Host, c.Port, c.SSLMode)
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type BookingConfig struct {
	HoldTTL       time.Duration
	SweepInterval time.Duration
	BulkLimit     int
}

type PaymentConfig struct {
	Provider        string
	OmisePublicKey  string
	OmiseSecretKey  string
	Timeout         time.Duration
	MaxRetries      uint64
	RetryBase       time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type RedisConfig struct {
	URL     string
	RateTTL time.Duration
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_NAME", "mindcare-booking")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DEBUG", false)
	v.SetDefault("LOG_PATH", "logs/")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("JWT_ISSUER", "mindcare")
	v.SetDefault("HOLD_TTL", "15m")
	v.SetDefault("SWEEP_INTERVAL", "1m")
	v.SetDefault("BULK_SLOT_LIMIT", 500)
	v.SetDefault("PAYMENT_PROVIDER", "mock")
	v.SetDefault("PAYMENT_TIMEOUT", "10s")
	v.SetDefault("PAYMENT_MAX_RETRIES", 3)
	v.SetDefault("PAYMENT_RETRY_BASE", "200ms")
	v.SetDefault("PAYMENT_BREAKER_FAILURES", 5)
	v.SetDefault("PAYMENT_BREAKER_TIMEOUT", "30s")
	v.SetDefault("REDIS_RATE_TTL", "5m")
	v.SetDefault("RABBITMQ_EXCHANGE", "mindcare.events")

	config := &Config{
		App: AppConfig{
			Name:            v.GetString("APP_NAME"),
			Port:            v.GetString("PORT"),
			Debug:           v.GetBool("DEBUG"),
			LogPath:         v.GetString("LOG_PATH"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASS"),
			MaxConns: v.GetInt32("DB_MAX_CONNS"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			Issuer: v.GetString("JWT_ISSUER"),
		},
		Booking: BookingConfig{
			HoldTTL:       v.GetDuration("HOLD_TTL"),
			SweepInterval: v.GetDuration("SWEEP_INTERVAL"),
			BulkLimit:     v.GetInt("BULK_SLOT_LIMIT"),
		},
		Payment: PaymentConfig{
			Provider:        v.GetString("PAYMENT_PROVIDER"),
			OmisePublicKey:  v.GetString("OMISE_PUBLIC_KEY"),
			OmiseSecretKey:  v.GetString("OMISE_SECRET_KEY"),
			Timeout:         v.GetDuration("PAYMENT_TIMEOUT"),
			MaxRetries:      v.GetUint64("PAYMENT_MAX_RETRIES"),
			RetryBase:       v.GetDuration("PAYMENT_RETRY_BASE"),
			BreakerFailures: v.GetUint32("PAYMENT_BREAKER_FAILURES"),
			BreakerTimeout:  v.GetDuration("PAYMENT_BREAKER_TIMEOUT"),
		},
		Redis: RedisConfig{
			URL:     v.GetString("REDIS_URL"),
			RateTTL: v.GetDuration("REDIS_RATE_TTL"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("RABBITMQ_URL"),
			Exchange: v.GetString("RABBITMQ_EXCHANGE"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Booking.HoldTTL <= 0 {
		return fmt.Errorf("HOLD_TTL must be positive")
	}
	switch c.Payment.Provider {
	case "mock":
	case "omise":
		if c.Payment.OmisePublicKey == "" || c.Payment.OmiseSecretKey == "" {
			return fmt.Errorf("OMISE_PUBLIC_KEY and OMISE_SECRET_KEY are required for the omise provider")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.Payment.Provider)
	}
	return nil
}
