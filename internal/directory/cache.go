package directory

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "lx:directory:"

// nameStore is the subset of redis.Cmdable used by the cache.
type nameStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedDirectory memoizes display names in Redis. Cache errors fall
// through to the wrapped directory.
type CachedDirectory struct {
	next   Directory
	store  nameStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDirectory wraps next with a Redis cache.
func NewCachedDirectory(next Directory, store nameStore, ttl time.Duration, logger *zap.Logger) *CachedDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDirectory{next: next, store: store, ttl: ttl, logger: logger}
}

// DisplayName implements Directory.
func (d *CachedDirectory) DisplayName(ctx context.Context, accountID string) (string, error) {
	key := cacheKeyPrefix + accountID
	name, err := d.store.Get(ctx, key).Result()
	if err == nil && name != "" {
		return name, nil
	}
	if err != nil && err != redis.Nil {
		d.logger.Debug("directory cache read failed", zap.String("account", accountID), zap.Error(err))
	}

	name, err = d.next.DisplayName(ctx, accountID)
	if err != nil {
		return "", err
	}
	if err := d.store.Set(ctx, key, name, d.ttl).Err(); err != nil {
		d.logger.Debug("directory cache write failed", zap.String("account", accountID), zap.Error(err))
	}
	return name, nil
}
