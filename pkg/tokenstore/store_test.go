package tokenstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "abc", time.Minute))
	revoked, err = store.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"abc"))

	mr.FastForward(2 * time.Minute)
	revoked, err = store.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisStoreSkipsExpiredTokens(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	require.NoError(t, store.Revoke(context.Background(), "old", 0))
	assert.False(t, mr.Exists(keyPrefix+"old"))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "jti-1", 50*time.Millisecond))
	revoked, _ := store.IsRevoked(ctx, "jti-1")
	assert.True(t, revoked)

	revoked, _ = store.IsRevoked(ctx, "jti-2")
	assert.False(t, revoked)

	time.Sleep(80 * time.Millisecond)
	revoked, _ = store.IsRevoked(ctx, "jti-1")
	assert.False(t, revoked)
}

func TestConsume(t *testing.T) {
	mr := miniredis.RunT(t)
	stores := map[string]Store{
		"redis":  NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()})),
		"memory": NewMemoryStore(time.Minute),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			var (
				wg  sync.WaitGroup
				won atomic.Int32
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := store.Consume(ctx, "refresh-1", time.Minute)
					assert.NoError(t, err)
					if ok {
						won.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), won.Load())

			revoked, err := store.IsRevoked(ctx, "refresh-1")
			require.NoError(t, err)
			assert.True(t, revoked)

			ok, err := store.Consume(ctx, "expired", 0)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}
