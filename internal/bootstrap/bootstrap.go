// Package bootstrap provides centralized initialization and lifecycle
// management for the service's runtime dependencies.
//
// Purpose:
//
//	This package wires together the stores and services the api binary
//	needs, in a fixed order, and exposes a single Runtime value the HTTP
//	layer is built from. It also owns the readiness probe and the shutdown
//	sequence.
//
// Key Responsibilities:
//   - Initialize connects Postgres and optional Redis, builds the blob
//     store, token service, identity provider, directory, access control,
//     state store, and audit emitter
//   - ReadinessProbe checks Postgres and Redis (when configured)
//   - Close releases resources in reverse initialization order
//
// Debugging Notes:
//   - Postgres is required; a connection failure prevents startup.
//   - Redis is optional. When REDIS_ADDR is empty the OAuth state store
//     falls back to an in-memory implementation, which is fine for a
//     single instance but not across replicas.
//   - Kafka is optional. When KAFKA_BROKERS is empty audit events go to
//     the structured log instead.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/audioreg/audioreg/internal/access"
	"github.com/audioreg/audioreg/internal/audit"
	"github.com/audioreg/audioreg/internal/config"
	"github.com/audioreg/audioreg/internal/directory"
	"github.com/audioreg/audioreg/internal/identity"
	"github.com/audioreg/audioreg/internal/oauth"
	"github.com/audioreg/audioreg/internal/storage/blob"
	"github.com/audioreg/audioreg/internal/storage/postgres"
	"github.com/audioreg/audioreg/internal/token"
)

// Runtime bundles initialized dependencies for the api binary. All fields
// are populated during Initialize and remain valid until Close.
type Runtime struct {
	Config    *config.Config
	Postgres  *postgres.Store
	Redis     *redis.Client // nil when REDIS_ADDR is not set
	States    oauth.StateStore
	Blobs     *blob.LocalStore
	Tokens    *token.Service
	Provider  *identity.Provider
	Directory *directory.Directory
	Access    *access.Control
	Audit     audit.Emitter
}

// Initialize wires the runtime in order: Postgres, Redis (optional), state
// store, blob store, token/identity/directory/access services, audit
// emitter. The returned Runtime must be closed during shutdown.
func Initialize(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Runtime, error) {
	store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	rt := &Runtime{Config: cfg, Postgres: store}

	if cfg.RedisAddr != "" {
		rt.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		// Fail fast if Redis is configured but unreachable.
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rt.Redis.Ping(pingCtx).Err(); err != nil {
			store.Close()
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		rt.States = oauth.NewRedisStateStore(rt.Redis, "", oauth.DefaultStateTTL)
	} else {
		logger.Info().Msg("redis not configured, using in-memory oauth state store")
		rt.States = oauth.NewMemoryStateStore(oauth.DefaultStateTTL)
	}

	blobs, err := blob.NewLocalStore(cfg.UploadDir)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("bootstrap blob store: %w", err)
	}
	rt.Blobs = blobs

	rt.Tokens = token.NewService(cfg.JWTSecret, cfg.TokenTTL)
	rt.Provider = identity.NewProvider(identity.Config{
		ClientID:     cfg.YandexClientID,
		ClientSecret: cfg.YandexClientSecret,
		RedirectURI:  cfg.YandexRedirectURI,
	})
	rt.Directory = directory.New(store)
	rt.Access = access.New(rt.Tokens, rt.Directory)

	if kafkaEmitter, err := audit.NewKafkaEmitterFromConfig(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaClientID, logger); err != nil {
		logger.Warn().Err(err).Msg("kafka emitter init failed, falling back to logger")
		rt.Audit = audit.NewLoggerEmitter(logger)
	} else if kafkaEmitter != nil {
		logger.Info().Str("topic", cfg.KafkaTopic).Msg("audit events go to kafka")
		rt.Audit = kafkaEmitter
	} else {
		logger.Info().Msg("kafka not configured, audit events go to the log")
		rt.Audit = audit.NewLoggerEmitter(logger)
	}

	return rt, nil
}

// Close releases runtime resources in reverse initialization order. Safe to
// call on a partially-initialized runtime. Returns the first error
// encountered but keeps closing.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var firstErr error
	if kafkaEmitter, ok := rt.Audit.(*audit.KafkaEmitter); ok {
		if err := kafkaEmitter.Close(); err != nil {
			firstErr = err
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if rt.Postgres != nil {
		rt.Postgres.Close()
	}
	return firstErr
}

// ReadinessProbe reports whether the service can take traffic. Postgres is
// always checked; Redis only when configured. The caller sets the timeout.
func (rt *Runtime) ReadinessProbe(ctx context.Context) error {
	if err := rt.Postgres.Pool().Ping(ctx); err != nil {
		return fmt.Errorf("postgres not ready: %w", err)
	}
	if rt.Redis != nil {
		if err := rt.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis not ready: %w", err)
		}
	}
	return nil
}
