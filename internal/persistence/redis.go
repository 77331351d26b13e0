package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/config"
)

const redisPingTimeout = 2 * time.Second

// Redis wraps the go-redis client. Every cache key is prefixed with the
// configured namespace so several deployments can share one server.
type Redis struct {
	Client    *redis.Client
	namespace string
}

// NewRedis builds a client and pings it once. The client stays usable when the
// ping fails; go-redis reconnects on demand and cache callers treat errors as
// misses.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("unable to reach redis; caches will miss until it is available",
			zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}

	return &Redis{Client: client, namespace: strings.Trim(cfg.Namespace, ":")}
}

// Key joins parts under the namespace.
func (r *Redis) Key(parts ...string) string {
	if r != nil && r.namespace != "" {
		parts = append([]string{r.namespace}, parts...)
	}
	return strings.Join(parts, ":")
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
