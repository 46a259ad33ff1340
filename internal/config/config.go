// Package config defines the global configuration structure for the weather
// bot. Configuration is loaded once at process initialization and is immutable
// thereafter. It follows 12-Factor App principles by strictly separating code
// from configuration.
//
// Values come from the OS environment, optionally seeded from a .env file.
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// DeliveryFailurePolicy decides what happens to a paid order when a forecast
// delivery fails permanently (incomplete provider data).
//
//   - consume: the order is marked fulfilled anyway; the attempt spends it.
//   - retain: the order stays paid so the user can retry without paying again.
type DeliveryFailurePolicy string

const (
	PolicyConsume DeliveryFailurePolicy = "consume"
	PolicyRetain  DeliveryFailurePolicy = "retain"
)

// Config is the top-level configuration struct for the bot. It is populated
// once during process initialization and never modified. Sub-components
// receive only the specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"weather-bot"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Weather  WeatherConfig
	Geocoder GeocoderConfig
	Delivery DeliveryConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	// Public base URL Telegram calls back on (no trailing slash).
	WebhookURL string `envconfig:"WEBHOOK_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig holds the conversation-state store connection settings.
type RedisConfig struct {
	Addr     string       `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password SecretString `envconfig:"REDIS_PASSWORD"`
	DB       int          `envconfig:"REDIS_DB" default:"0"`
	// SessionTTL bounds how long an abandoned conversation survives.
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"24h"`
}

// TelegramConfig holds bot API credentials and webhook verification settings.
type TelegramConfig struct {
	BotToken SecretString `envconfig:"BOT_TOKEN" validate:"required"`
	// WebhookSecret is echoed back by Telegram in the
	// X-Telegram-Bot-Api-Secret-Token header on every webhook delivery.
	WebhookSecret SecretString  `envconfig:"WEBHOOK_SECRET" validate:"required,min=16"`
	APIBaseURL    string        `envconfig:"TELEGRAM_API_BASE_URL" default:"https://api.telegram.org"`
	Timeout       time.Duration `envconfig:"TELEGRAM_TIMEOUT" default:"10s"`
}

// WeatherConfig holds weather provider credentials and resilience settings.
type WeatherConfig struct {
	APIKey     SecretString  `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	BaseURL    string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5"`
	Timeout    time.Duration `envconfig:"WEATHER_TIMEOUT" default:"15s" validate:"min=1s,max=30s"`
	MaxRetries int           `envconfig:"WEATHER_MAX_RETRIES" default:"1" validate:"min=0,max=1"`
}

// GeocoderConfig holds the city-name lookup provider key. Optional: with no
// key configured, typed city names are rejected and only shared locations work.
type GeocoderConfig struct {
	APIKey SecretString `envconfig:"GEOCODER_API_KEY"`
}

// DeliveryConfig holds forecast delivery policy knobs.
type DeliveryConfig struct {
	FailurePolicy DeliveryFailurePolicy `envconfig:"DELIVERY_FAILURE_POLICY" default:"consume" validate:"oneof=consume retain"`
}
