package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := redismodule.Run(ctx, "redis:8.4.0-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opt, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opt)
	t.Cleanup(func() {
		_ = client.Close()
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(pingCtx).Err())
	return client
}

func TestRedisStore(t *testing.T) {
	client := setupRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "s1", sampleRecord()))

		rec, err := store.Load(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, sampleRecord(), rec)

		ttl, err := client.TTL(ctx, sessionKey("s1")).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("generations", func(t *testing.T) {
		cur, err := store.CurrentGeneration(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, int64(0), cur)

		gen, err := store.NextGeneration(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, int64(1), gen)

		gen, err = store.NextGeneration(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, int64(2), gen)

		cur, err = store.CurrentGeneration(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, int64(2), cur)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "s3", sampleRecord()))
		_, err := store.NextGeneration(ctx, "s3")
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, "s3"))

		_, err = store.Load(ctx, "s3")
		assert.ErrorIs(t, err, ErrNotFound)
		cur, err := store.CurrentGeneration(ctx, "s3")
		require.NoError(t, err)
		assert.Equal(t, int64(0), cur)
	})
}
