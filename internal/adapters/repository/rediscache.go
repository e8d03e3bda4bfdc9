package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soremlabs/keyserve/internal/core/domain"
	"github.com/soremlabs/keyserve/internal/core/ports"
	"github.com/soremlabs/keyserve/internal/infrastructure/metrics"
)

// InvalidationChannel carries invalidated license keys to all nodes.
const InvalidationChannel = "keyserve:invalidation"

const issuedCacheTTL = 30 * time.Second

// cachedIssued wraps the lookup result so absence ("not registered") is
// cacheable too.
type cachedIssued struct {
	Record *domain.IssuedKey `json:"record"`
}

// CachedRepository decorates a LicenseRepository with a Redis read cache
// for issued-key lookups. Only GetIssued is cached: ban and deactivation
// lookups always hit the primary store so an admin ban takes effect on the
// next verification, not after a TTL. Cache failures fall through to the
// primary store. Mutations invalidate locally and publish the key so other
// nodes drop their entry as well.
type CachedRepository struct {
	ports.LicenseRepository
	client *redis.Client
	logger *slog.Logger
}

// NewCachedRepository wraps primary with a Redis cache at addr.
func NewCachedRepository(primary ports.LicenseRepository, addr, password string, db int, logger *slog.Logger) *CachedRepository {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &CachedRepository{LicenseRepository: primary, client: rdb, logger: logger}
}

func issuedCacheKey(key string) string {
	return "keyserve:issued:" + key
}

func (c *CachedRepository) GetIssued(ctx context.Context, key string) (*domain.IssuedKey, error) {
	if raw, err := c.client.Get(ctx, issuedCacheKey(key)).Bytes(); err == nil {
		var entry cachedIssued
		if err := json.Unmarshal(raw, &entry); err == nil {
			metrics.CacheOperations.WithLabelValues("hit").Inc()
			return entry.Record, nil
		}
	}
	metrics.CacheOperations.WithLabelValues("miss").Inc()

	rec, err := c.LicenseRepository.GetIssued(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw, errMarshal := json.Marshal(cachedIssued{Record: rec}); errMarshal == nil {
		if errSet := c.client.Set(ctx, issuedCacheKey(key), raw, issuedCacheTTL).Err(); errSet != nil {
			c.logger.Warn("failed to populate record cache", "key", key, "error", errSet)
		}
	}
	return rec, nil
}

func (c *CachedRepository) UpsertIssuedOnVerify(ctx context.Context, key, hwid string, seen time.Time) error {
	if err := c.LicenseRepository.UpsertIssuedOnVerify(ctx, key, hwid, seen); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

func (c *CachedRepository) CreateIssued(ctx context.Context, rec *domain.IssuedKey) error {
	if err := c.LicenseRepository.CreateIssued(ctx, rec); err != nil {
		return err
	}
	c.invalidate(ctx, rec.Key)
	return nil
}

func (c *CachedRepository) Delete(ctx context.Context, key string) error {
	if err := c.LicenseRepository.Delete(ctx, key); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

// invalidate drops the local cache entry and tells every other node to do
// the same. Best effort: the 30s TTL bounds staleness if Redis is down.
func (c *CachedRepository) invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, issuedCacheKey(key)).Err(); err != nil {
		c.logger.Warn("failed to invalidate record cache", "key", key, "error", err)
	}
	if err := c.client.Publish(ctx, InvalidationChannel, key).Err(); err != nil {
		c.logger.Warn("failed to publish cache invalidation", "key", key, "error", err)
	}
}

// Subscribe returns a channel of invalidated license keys from other nodes.
func (c *CachedRepository) Subscribe(ctx context.Context) <-chan *redis.Message {
	pubsub := c.client.Subscribe(ctx, InvalidationChannel)
	return pubsub.Channel()
}

func (c *CachedRepository) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.logger.Warn("record cache unreachable", "error", err)
	}
	return c.LicenseRepository.Ping(ctx)
}
