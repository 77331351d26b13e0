package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/firm-ops/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig(config.PostgresConfig{
		DSN:                "postgres://firm:secret@db:5432/firm?sslmode=disable",
		MaxConns:           8,
		MinConns:           2,
		ConnMaxIdleSec:     30,
		StatementTimeoutMs: 1500,
		ApplicationName:    "firm-ops",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(8), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, 30*time.Second, cfg.MaxConnIdleTime)
	assert.Equal(t, "1500", cfg.ConnConfig.RuntimeParams["statement_timeout"])
	assert.Equal(t, "firm-ops", cfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "firm", cfg.ConnConfig.Database)

	_, err = poolConfig(config.PostgresConfig{})
	assert.Error(t, err)
	_, err = poolConfig(config.PostgresConfig{DSN: "postgres://%zz"})
	assert.Error(t, err)
}

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "firm-ops:rolemap:g1", (&Redis{namespace: "firm-ops"}).Key("rolemap", "g1"))
	assert.Equal(t, "rolemap:g1", (&Redis{}).Key("rolemap", "g1"))

	var nilRedis *Redis
	assert.Equal(t, "a:b", nilRedis.Key("a", "b"))
	assert.Error(t, nilRedis.Ping(context.Background()))
}

func TestCacheWithoutRedisAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	cache := NewCache[string](nil, "username", time.Minute)
	require.NoError(t, cache.Set(ctx, "k", "v"))
	_, err := cache.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, cache.Delete(ctx, "k"))

	var nilCache *Cache[string]
	_, err = nilCache.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMigrationFilesAreSortedSQL(t *testing.T) {
	files, err := migrationFiles("../../migrations")
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "001_init.sql", files[0])
	assert.IsNonDecreasing(t, files)

	_, err = migrationFiles("does-not-exist")
	assert.Error(t, err)
}
