// Package config loads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env       string
	Port      string
	LogLevel  string
	LogFormat string // console | json
	Store     string // postgres | memory
	Seed      bool

	DB       DBConfig
	Razorpay RazorpayConfig
	Kafka    KafkaConfig
	OTel     OTelConfig

	Currency         string
	ActorTokenSecret string
	CartTTL          time.Duration
}

type DBConfig struct {
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type OTelConfig struct {
	Endpoint   string
	URLPath    string
	AuthHeader string
	Insecure   bool
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("STORE", "postgres")
	v.SetDefault("SEED", false)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ordercore")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("RAZORPAY_BASE_URL", "https://api.razorpay.com")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("CURRENCY", "INR")

	v.SetDefault("KAFKA_TOPIC", "ordercore.events")
	v.SetDefault("OTEL_URL_PATH", "/v1/traces")
	v.SetDefault("CART_TTL", "720h")
}

// Load reads .env when present and then the environment, which wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		Env:       strings.ToLower(v.GetString("APP_ENV")),
		Port:      v.GetString("PORT"),
		LogLevel:  strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
		Store:     strings.ToLower(v.GetString("STORE")),
		Seed:      v.GetBool("SEED"),
		DB: DBConfig{
			DSN:      strings.TrimSpace(v.GetString("DB_DSN")),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Razorpay: RazorpayConfig{
			KeyID:         v.GetString("RAZORPAY_KEY_ID"),
			KeySecret:     v.GetString("RAZORPAY_KEY_SECRET"),
			WebhookSecret: v.GetString("RAZORPAY_WEBHOOK_SECRET"),
			BaseURL:       v.GetString("RAZORPAY_BASE_URL"),
			Timeout:       v.GetDuration("GATEWAY_TIMEOUT"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		OTel: OTelConfig{
			Endpoint:   v.GetString("OTEL_ENDPOINT"),
			URLPath:    v.GetString("OTEL_URL_PATH"),
			AuthHeader: v.GetString("OTEL_AUTH_HEADER"),
			Insecure:   v.GetBool("OTEL_INSECURE"),
		},
		Currency:         strings.ToUpper(v.GetString("CURRENCY")),
		ActorTokenSecret: v.GetString("ACTOR_TOKEN_SECRET"),
		CartTTL:          v.GetDuration("CART_TTL"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE must be postgres or memory, got %q", c.Store)
	}
	if c.Razorpay.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be an ISO 4217 code, got %q", c.Currency)
	}
	if c.IsProduction() && c.ActorTokenSecret == "" {
		return fmt.Errorf("ACTOR_TOKEN_SECRET is required in production")
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" || c.Env == "prod" }

// ConnString returns DB_DSN or assembles one from the DB_* parts.
func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
