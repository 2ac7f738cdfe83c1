package store

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCounter(t *testing.T) (*RedisCounter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisCounter(rdb, "ratelimit"), mr
}

func TestRedisCounter_WindowStartsOnFirstHit(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCounter(t)
	const key = "ratelimit:signin:203.0.113.9"

	n, err := c.Hit(ctx, "signin:203.0.113.9", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, time.Minute, mr.TTL(key))

	mr.FastForward(40 * time.Second)
	n, err = c.Hit(ctx, "signin:203.0.113.9", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 20*time.Second, mr.TTL(key), "later hits do not extend the window")

	mr.FastForward(21 * time.Second)
	assert.False(t, mr.Exists(key))
	n, err = c.Hit(ctx, "signin:203.0.113.9", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRedisCounter_RestoresMissingTTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCounter(t)
	require.NoError(t, mr.Set("ratelimit:signin:a@x.com", "12"))

	n, err := c.Hit(ctx, "signin:a@x.com", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 13, n)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:signin:a@x.com"))
}

func TestRedisCounter_Unavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Dialer: func(context.Context, string, string) (net.Conn, error) {
			return nil, errors.New("connection refused")
		},
		MaxRetries: -1,
	})
	defer rdb.Close()

	_, err := NewRedisCounter(rdb, "ratelimit").Hit(context.Background(), "signin:x", time.Minute)
	assert.ErrorContains(t, err, "connection refused")
}
