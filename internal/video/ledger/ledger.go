// Package ledger tracks one-time upload targets between issue and registration.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "reelwork:credential:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Ledger records issued asset ids with a TTL so registration can tell issued
// assets from foreign or stale ones.
type Ledger struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisLedger connects to Redis and verifies the connection.
func NewRedisLedger(cfg RedisConfig, ttl time.Duration, logger zerolog.Logger) (*Ledger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Dur("ttl", ttl).
		Msg("connected to credential ledger")

	return newLedger(client, ttl, logger), nil
}

func newLedger(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Ledger {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Ledger{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "credential_ledger").Logger(),
	}
}

// Issue records that assetID was handed out by provider.
func (l *Ledger) Issue(ctx context.Context, assetID, provider string) error {
	if err := l.client.Set(ctx, keyPrefix+assetID, provider, l.ttl).Err(); err != nil {
		return fmt.Errorf("ledger issue %s: %w", assetID, err)
	}
	return nil
}

// Consume removes assetID and reports whether it had been issued and not yet consumed.
func (l *Ledger) Consume(ctx context.Context, assetID string) (bool, error) {
	provider, err := l.client.GetDel(ctx, keyPrefix+assetID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger consume %s: %w", assetID, err)
	}
	l.logger.Debug().Str("asset_id", assetID).Str("provider", provider).Msg("credential consumed")
	return true, nil
}

// HealthCheck checks if Redis is available.
func (l *Ledger) HealthCheck(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Ledger) Close() error {
	return l.client.Close()
}
