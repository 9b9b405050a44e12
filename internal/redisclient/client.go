package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bazap-service/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	lockTTL        = 10 * time.Second
	lockRetryDelay = 50 * time.Millisecond
	lockRetries    = 40
	suggestionTTL  = 5 * time.Minute
)

// Client wraps Redis for aggregate locks and the suggestion cache
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, logger: util.GetLogger()}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// WithLock runs fn while holding a mutex on the given aggregate key.
// If Redis is unreachable the lock is skipped with a warning rather than
// failing the operation.
func (c *Client) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	lockKey := fmt.Sprintf("lock:%s", key)

	acquired := false
	for i := 0; i < lockRetries; i++ {
		ok, err := c.rdb.SetNX(ctx, lockKey, "1", lockTTL).Result()
		if err != nil {
			c.logger.Warn("Lock unavailable, proceeding without it",
				zap.String("key", key),
				zap.Error(err))
			return fn(ctx)
		}
		if ok {
			acquired = true
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	if !acquired {
		return fmt.Errorf("timed out waiting for lock on %s", key)
	}

	defer func() {
		if err := c.rdb.Del(context.Background(), lockKey).Err(); err != nil {
			c.logger.Warn("Failed to release lock",
				zap.String("key", key),
				zap.Error(err))
		}
	}()

	return fn(ctx)
}

// GetSuggestions reads a cached suggestion list. A miss or any Redis error
// reports not-ok; the cache is advisory.
func (c *Client) GetSuggestions(ctx context.Context, makat string, userID int64) ([]string, bool) {
	key, err := c.suggestionKey(ctx, makat, userID)
	if err != nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}

	var suggestions []string
	if err := json.Unmarshal([]byte(raw), &suggestions); err != nil {
		return nil, false
	}
	return suggestions, true
}

// SetSuggestions caches a suggestion list with a short TTL
func (c *Client) SetSuggestions(ctx context.Context, makat string, userID int64, suggestions []string) {
	key, err := c.suggestionKey(ctx, makat, userID)
	if err != nil {
		return
	}

	raw, err := json.Marshal(suggestions)
	if err != nil {
		return
	}

	if err := c.rdb.Set(ctx, key, raw, suggestionTTL).Err(); err != nil {
		c.logger.Warn("Failed to cache suggestions",
			zap.String("makat", makat),
			zap.Error(err))
	}
}

// InvalidateSuggestions drops all cached lists for one makat by bumping
// its version; stale keys expire on their own.
func (c *Client) InvalidateSuggestions(ctx context.Context, makat string) {
	if err := c.rdb.Incr(ctx, suggestionVersionKey(makat)).Err(); err != nil {
		c.logger.Warn("Failed to invalidate suggestion cache",
			zap.String("makat", makat),
			zap.Error(err))
	}
}

func (c *Client) suggestionKey(ctx context.Context, makat string, userID int64) (string, error) {
	version, err := c.rdb.Get(ctx, suggestionVersionKey(makat)).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("suggestions:%s:%d:v%d", makat, userID, version), nil
}

func suggestionVersionKey(makat string) string {
	return fmt.Sprintf("suggestions:ver:%s", makat)
}
