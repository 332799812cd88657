// Package cache provides a JSON view cache over Redis. Cached payloads
// are treated as disposable: any read or marshal failure falls back to
// a miss so callers always rebuild from the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/CBPFGMS/GOmapping/pkg/logging"
	"github.com/CBPFGMS/GOmapping/pkg/redis"
)

const defaultTTL = 10 * time.Minute

type Cache struct {
	client *redis.Client
	logger logging.Logger
	prefix string
	ttl    time.Duration
}

func New(client *redis.Client, logger logging.Logger, prefix string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{
		client: client,
		logger: logger,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *Cache) key(name string) string {
	return c.prefix + name
}

// Get unmarshals the cached payload into dest. It returns false on a
// miss or on any failure.
func (c *Cache) Get(ctx context.Context, name string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}

	raw, err := c.client.Get(ctx, c.key(name))
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.WithContext(ctx).WithError(err).Warnf("cache read failed for %s", name)
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warnf("cache payload invalid for %s", name)
		return false
	}

	return true
}

// Set stores value as JSON under name. Failures are logged and ignored.
func (c *Cache) Set(ctx context.Context, name string, value any) {
	if c == nil || c.client == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Warnf("cache marshal failed for %s", name)
		return
	}

	if err := c.client.Set(ctx, c.key(name), raw, c.ttl); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warnf("cache write failed for %s", name)
	}
}

// Invalidate removes every key under the cache prefix
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}

	keys, err := c.client.Keys(ctx, c.prefix+"*")
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("cache invalidation scan failed")
		return
	}
	if len(keys) == 0 {
		return
	}

	if err := c.client.Del(ctx, keys...); err != nil {
		c.logger.WithContext(ctx).WithError(err).Warn("cache invalidation failed")
		return
	}

	c.logger.WithContext(ctx).Debugf("invalidated %d cached entries", len(keys))
}
