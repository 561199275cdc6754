// Package cache puts a read-through Redis cache in front of certificate
// public key lookups used by verification.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"docsign/internal/verification/metrics"
	id "docsign/pkg/domain"
)

const (
	publicKeyPrefix = "docsign:cert:pub:"
	DefaultTTL      = 10 * time.Minute
)

// KeySource loads a certificate's public key PEM from the system of record.
type KeySource interface {
	PublicKey(ctx context.Context, certID id.CertificateID) (string, error)
}

// RedisKeyCache is read-through: misses load from the source and populate
// Redis with a TTL. Redis failures degrade to the source and are never
// surfaced to callers.
type RedisKeyCache struct {
	client  *redis.Client
	source  KeySource
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*RedisKeyCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *RedisKeyCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *RedisKeyCache) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *RedisKeyCache) {
		c.metrics = m
	}
}

func NewRedis(client *redis.Client, source KeySource, opts ...Option) *RedisKeyCache {
	c := &RedisKeyCache{
		client: client,
		source: source,
		ttl:    DefaultTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *RedisKeyCache) PublicKey(ctx context.Context, certID id.CertificateID) (string, error) {
	key := publicKeyPrefix + certID.String()
	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if c.metrics != nil {
			c.metrics.KeyCacheHits.Inc()
		}
		return cached, nil
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "public key cache read failed", "certificate_id", certID.String(), "error", err)
	}

	if c.metrics != nil {
		c.metrics.KeyCacheMisses.Inc()
	}
	pem, err := c.source.PublicKey(ctx, certID)
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, key, pem, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "public key cache write failed", "certificate_id", certID.String(), "error", err)
	}
	return pem, nil
}

// Invalidate drops the cached key so the next lookup reloads it.
func (c *RedisKeyCache) Invalidate(ctx context.Context, certID id.CertificateID) error {
	return c.client.Del(ctx, publicKeyPrefix+certID.String()).Err()
}

// Passthrough serves every lookup from the source. It is used when Redis is
// not configured.
type Passthrough struct {
	source KeySource
}

func NewPassthrough(source KeySource) *Passthrough {
	return &Passthrough{source: source}
}

func (p *Passthrough) PublicKey(ctx context.Context, certID id.CertificateID) (string, error) {
	return p.source.PublicKey(ctx, certID)
}

func (p *Passthrough) Invalidate(context.Context, id.CertificateID) error {
	return nil
}
