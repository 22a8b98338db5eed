// Package config provides environment variable-based configuration loading.
//
// Purpose:
//
//	This package defines the service configuration structure and provides
//	functions to load configuration from environment variables using envconfig.
//
// Key Responsibilities:
//   - Config struct defines all service configuration fields
//   - Load reads and validates environment variables
//   - MustLoad exits the process if configuration is invalid
//
// Debugging Notes:
//   - Required fields: DATABASE_URL, JWT_SECRET, YANDEX_CLIENT_ID,
//     YANDEX_CLIENT_SECRET, YANDEX_REDIRECT_URI
//   - JWT_SECRET must be at least 32 bytes; the service refuses to start on
//     a short secret so a shipped default cannot survive into production
//   - Redis and Kafka are optional (in-memory state store / log-only audit
//     are used when unset)
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// minSecretLen is the minimum accepted JWT signing secret length in bytes.
const minSecretLen = 32

// Config represents runtime configuration for the audioreg service.
// All fields are populated from environment variables with defaults where
// specified. Required fields must be set or Load/MustLoad will return an error.
type Config struct {
	// ServiceName is emitted in logs and metrics.
	ServiceName string `envconfig:"SERVICE_NAME" default:"audioreg"`
	// HTTPPort is the port the HTTP server listens on.
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`
	// DatabaseURL is the Postgres connection string.
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	// RedisAddr is the optional host:port of the Redis instance used for
	// one-time OAuth state tokens. Empty means an in-process store is used.
	RedisAddr string `envconfig:"REDIS_ADDR" default:""`
	// RedisPassword is the optional password for Redis authentication.
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	// RedisDB selects the logical Redis database index.
	RedisDB int `envconfig:"REDIS_DB" default:"0"`
	// LogLevel controls zerolog global level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// Environment describes the current deployment environment.
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// JWTSecret signs session tokens (HS256). Must be rotated from any
	// shipped default and at least 32 bytes long.
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	// TokenTTL is the session token lifetime.
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"30m"`

	// YandexClientID is the OAuth2 client id registered with Yandex.
	YandexClientID string `envconfig:"YANDEX_CLIENT_ID" required:"true"`
	// YandexClientSecret is the OAuth2 client secret registered with Yandex.
	YandexClientSecret string `envconfig:"YANDEX_CLIENT_SECRET" required:"true"`
	// YandexRedirectURI is the callback URL registered with Yandex.
	YandexRedirectURI string `envconfig:"YANDEX_REDIRECT_URI" required:"true"`

	// UploadDir is the directory audio files are written to.
	UploadDir string `envconfig:"UPLOAD_DIR" default:"uploads"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses.
	// If empty, audit events are logged instead of sent to Kafka.
	KafkaBrokers string `envconfig:"KAFKA_BROKERS" default:""`
	// KafkaTopic is the Kafka topic name for audit events.
	KafkaTopic string `envconfig:"KAFKA_TOPIC" default:"audit.audioreg"`
	// KafkaClientID is the client ID used when connecting to Kafka.
	KafkaClientID string `envconfig:"KAFKA_CLIENT_ID" default:"audioreg"`
}

// Load reads environment variables into Config, applying defaults where necessary.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: process env: %w", err)
	}
	if len(cfg.JWTSecret) < minSecretLen {
		return nil, fmt.Errorf("config: JWT_SECRET must be at least %d bytes", minSecretLen)
	}
	return &cfg, nil
}

// MustLoad returns Config or exits the process.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
