package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/carias-rh/lx-toolbox/internal/config"
)

// Redis wraps the go-redis client. It backs the shared rotation cursor
// and the directory name cache.
type Redis struct {
	Client *redis.Client
}

// OpenRedis builds the client without dialing; go-redis connects on the
// first command. An empty address yields a Redis with a nil client.
func OpenRedis(cfg config.RedisConfig) *Redis {
	if cfg.Addr == "" {
		return &Redis{}
	}
	return &Redis{Client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// Check pings the server and logs the result. An unreachable server is
// left to fail per call.
func (r *Redis) Check(ctx context.Context, logger *zap.Logger) {
	if !r.Enabled() {
		return
	}
	addr := r.Client.Options().Addr
	if err := r.Client.Ping(ctx).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.String("addr", addr), zap.Error(err))
		return
	}
	logger.Info("connected to redis", zap.String("addr", addr))
}

// Enabled reports whether a client was configured.
func (r *Redis) Enabled() bool {
	return r != nil && r.Client != nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r.Enabled() {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
