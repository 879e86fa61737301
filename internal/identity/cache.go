package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayursutra/therapy-portal/pkg/logging"
)

const (
	userKeyPrefix = "identity:user:"
	directoryKey  = "identity:users"
)

// Cache decorates a Provider with redis-backed caching. Directory reads hit
// the provider on miss; redis outages degrade to pass-through.
type Cache struct {
	inner  Provider
	rdb    *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCache wraps inner with a redis cache. A nil client returns inner
// unchanged.
func NewCache(inner Provider, rdb *redis.Client, ttl time.Duration, logger *logging.Logger) Provider {
	if rdb == nil {
		return inner
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

// GetUser serves from cache when possible.
func (c *Cache) GetUser(ctx context.Context, id string) (*User, error) {
	key := userKeyPrefix + id
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var u User
		if jsonErr := json.Unmarshal([]byte(raw), &u); jsonErr == nil {
			return &u, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("identity cache read failed", "error", err, "key", key)
	}

	u, err := c.inner.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, u)
	return u, nil
}

// ListUsers serves the whole directory from cache when possible.
func (c *Cache) ListUsers(ctx context.Context) ([]*User, error) {
	raw, err := c.rdb.Get(ctx, directoryKey).Result()
	if err == nil {
		var users []*User
		if jsonErr := json.Unmarshal([]byte(raw), &users); jsonErr == nil {
			return users, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("identity cache read failed", "error", err, "key", directoryKey)
	}

	users, err := c.inner.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, directoryKey, users)
	return users, nil
}

// SetRole writes through and drops the stale entries.
func (c *Cache) SetRole(ctx context.Context, id, role string) (*User, error) {
	u, err := c.inner.SetRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Del(ctx, userKeyPrefix+id, directoryKey).Err(); err != nil {
		c.logger.Warn("identity cache invalidation failed", "error", err, "user_id", id)
	}
	return u, nil
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("identity cache write failed", "error", err, "key", key)
	}
}
