package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) (map[string]Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return map[string]Store{
		"redis":  NewRedis(rc),
		"memory": NewMemory(time.Minute),
	}, mr
}

func TestStore_SetNXOnlyOnce(t *testing.T) {
	all, _ := stores(t)
	for name, s := range all {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ok, err := s.SetNX(ctx, "oauth:used:abc", "1", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = s.SetNX(ctx, "oauth:used:abc", "1", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_GetSetDel(t *testing.T) {
	all, _ := stores(t)
	for name, s := range all {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, ok, err := s.Get(ctx, "sess:1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "sess:1", "42", time.Hour))
			v, ok, err := s.Get(ctx, "sess:1")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "42", v)

			require.NoError(t, s.Del(ctx, "sess:1"))
			_, ok, _ = s.Get(ctx, "sess:1")
			assert.False(t, ok)
		})
	}
}

func TestRedis_SetNXExpires(t *testing.T) {
	all, mr := stores(t)
	s := all["redis"]
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "oauth:used:old", "1", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Minute)
	ok, err = s.SetNX(ctx, "oauth:used:old", "1", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("127.0.0.1:1", 0)
	assert.Error(t, err)
}
