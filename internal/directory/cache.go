package directory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL bounds how long a cached answer may outlive a change in
// the underlying directory.
const DefaultCacheTTL = time.Minute

const keyPrefix = "chat:dir:"

// Cache is a read-through Redis cache in front of a Directory. Only positive
// answers are cached, so a user added to a workspace gains access
// immediately while a removal takes at most the TTL to apply. Concurrent
// misses for the same key share one directory lookup.
type Cache struct {
	next   Directory
	rdb    redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewCache wraps next with a Redis cache.
func NewCache(next Directory, rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.Named("directory.cache"),
	}
}

func channelKey(channelID int64) string {
	return fmt.Sprintf("%schannel:%d:workspace", keyPrefix, channelID)
}

func memberKey(userID, workspaceID int64) string {
	return fmt.Sprintf("%sworkspace:%d:member:%d", keyPrefix, workspaceID, userID)
}

// ChannelWorkspace implements Directory.
func (c *Cache) ChannelWorkspace(ctx context.Context, channelID int64) (int64, error) {
	key := channelKey(channelID)

	if v, ok := c.get(ctx, key); ok {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id, nil
		}
		c.logger.Warn("discarding malformed cache entry", zap.String("key", key), zap.String("value", v))
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		id, err := c.next.ChannelWorkspace(ctx, channelID)
		if err != nil {
			return int64(0), err
		}
		c.set(ctx, key, strconv.FormatInt(id, 10))
		return id, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// IsWorkspaceMember implements Directory.
func (c *Cache) IsWorkspaceMember(ctx context.Context, userID, workspaceID int64) (bool, error) {
	key := memberKey(userID, workspaceID)

	if v, ok := c.get(ctx, key); ok && v == "1" {
		return true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		ok, err := c.next.IsWorkspaceMember(ctx, userID, workspaceID)
		if err != nil {
			return false, err
		}
		if ok {
			c.set(ctx, key, "1")
		}
		return ok, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

var _ invalidator = (*Cache)(nil)

// Invalidate forgets what is cached about a channel.
func (c *Cache) Invalidate(ctx context.Context, channelID int64) error {
	return errors.Wrap(c.rdb.Del(ctx, channelKey(channelID)).Err(), "redis del")
}

// A cache that cannot be read or written degrades to the directory itself.
func (c *Cache) get(ctx context.Context, key string) (string, bool) {
	v, err := c.rdb.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false
	case err != nil:
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, true
}

func (c *Cache) set(ctx context.Context, key, value string) {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
