// Package cache implements the cache-aside layer in front of the link store.
package cache

import (
	"context"
	"encoding/json"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"geolink-go/constant"
	"geolink-go/internal/model"
)

// LinkCache stores serialized Link snapshots under a per-link key with a
// bounded TTL. A miss is a normal outcome, never an error to the caller, and
// Put is best-effort: a failed cache write must not fail the surrounding
// redirect.
type LinkCache struct {
	pool   *redis.Pool
	logger *zap.Logger
	ttl    int // seconds
}

// NewLinkCache builds a LinkCache. ttlSeconds <= 0 falls back to the default
// 24 hour window.
func NewLinkCache(pool *redis.Pool, logger *zap.Logger, ttlSeconds int) *LinkCache {
	if ttlSeconds <= 0 {
		ttlSeconds = constant.LinkSnapshotTTL
	}
	return &LinkCache{
		pool:   pool,
		logger: logger,
		ttl:    ttlSeconds,
	}
}

// Get returns the cached snapshot for linkID, or false on miss. Transport
// and decode errors are logged and reported as misses.
func (c *LinkCache) Get(ctx context.Context, linkID string) (*model.Link, bool) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		c.logger.Warn("Failed to borrow Redis connection",
			zap.String("link_id", linkID),
			zap.Error(err))
		return nil, false
	}
	defer c.closeConn(conn)

	cacheKey := constant.GetLinkSnapshotKey(linkID)
	cachedValue, err := redis.Bytes(conn.Do("GET", cacheKey))
	if err != nil {
		if err != redis.ErrNil {
			c.logger.Warn("Error getting from Redis",
				zap.String("cache_key", cacheKey),
				zap.Error(err))
		}
		return nil, false
	}

	var link model.Link
	if err := json.Unmarshal(cachedValue, &link); err != nil {
		c.logger.Warn("Failed to unmarshal cached link snapshot",
			zap.String("cache_key", cacheKey),
			zap.Error(err))
		return nil, false
	}

	return &link, true
}

// Put writes a snapshot with the configured TTL. Failures are logged and
// swallowed.
func (c *LinkCache) Put(ctx context.Context, link *model.Link) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		c.logger.Warn("Failed to borrow Redis connection",
			zap.String("link_id", link.LinkID),
			zap.Error(err))
		return
	}
	defer c.closeConn(conn)

	cacheKey := constant.GetLinkSnapshotKey(link.LinkID)
	cachedValue, err := json.Marshal(link)
	if err != nil {
		c.logger.Warn("Failed to marshal link snapshot",
			zap.String("cache_key", cacheKey),
			zap.Error(err))
		return
	}

	if _, err := conn.Do("SET", cacheKey, cachedValue, "EX", c.ttl); err != nil {
		c.logger.Warn("Failed to cache link snapshot",
			zap.String("cache_key", cacheKey),
			zap.Error(err))
	}
}

// Invalidate synchronously removes the snapshot. Unlike Put, the error is
// returned: a link update must not be acknowledged while a stale snapshot
// may still be served.
func (c *LinkCache) Invalidate(ctx context.Context, linkID string) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer c.closeConn(conn)

	cacheKey := constant.GetLinkSnapshotKey(linkID)
	if _, err := conn.Do("DEL", cacheKey); err != nil {
		c.logger.Error("Failed to invalidate link snapshot",
			zap.String("cache_key", cacheKey),
			zap.Error(err))
		return err
	}
	return nil
}

func (c *LinkCache) closeConn(conn redis.Conn) {
	if err := conn.Close(); err != nil {
		c.logger.Error("Failed to close Redis connection",
			zap.Error(err),
			zap.String("connection_type", "redis"),
		)
	}
}
