package adapter

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryConnection(t *testing.T) Connection {
	t.Helper()
	conn, err := NewMemoryAdapter().Connect(context.Background(), nil)
	require.NoError(t, err)
	return conn
}

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	conn := newMemoryConnection(t)

	_, err := conn.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, conn.Set(ctx, "a", []byte("1"), 0))
	v, err := conn.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	ok, err := conn.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, conn.Delete(ctx, "a"))
	ok, err = conn.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryExpiration(t *testing.T) {
	ctx := context.Background()
	conn := newMemoryConnection(t)

	require.NoError(t, conn.Set(ctx, "short", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := conn.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	keys, err := conn.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryKeysAndBatch(t *testing.T) {
	ctx := context.Background()
	conn := newMemoryConnection(t)

	for _, k := range []string{"sellers:rec:1", "sellers:rec:2", "sellers:seq", "products:rec:1"} {
		require.NoError(t, conn.Set(ctx, k, []byte(k), 0))
	}

	keys, err := conn.Keys(ctx, "sellers:rec:*")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"sellers:rec:1", "sellers:rec:2"}, keys)

	values, err := conn.MGet(ctx, []string{"sellers:rec:1", "nope"})
	require.NoError(t, err)
	assert.Len(t, values, 1)
	assert.Equal(t, []byte("sellers:rec:1"), values["sellers:rec:1"])

	require.NoError(t, conn.MDelete(ctx, keys))
	keys, err = conn.Keys(ctx, "sellers:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"sellers:seq"}, keys)
}

func TestMemoryIncr(t *testing.T) {
	ctx := context.Background()
	conn := newMemoryConnection(t)

	for want := int64(1); want <= 3; want++ {
		got, err := conn.Incr(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	require.NoError(t, conn.Set(ctx, "text", []byte("abc"), 0))
	_, err := conn.Incr(ctx, "text")
	assert.Error(t, err)
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	conn := newMemoryConnection(t)

	require.NoError(t, conn.Set(ctx, "a", []byte("1"), 0))
	_, _ = conn.Get(ctx, "a")
	_, _ = conn.Get(ctx, "b")

	stats, ok := conn.Stats().(MemoryStats)
	require.True(t, ok)
	assert.Equal(t, int64(1), stats.Keys)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"memory", "redis"}, List())
	assert.True(t, Exists("redis"))

	a, err := Get("memory")
	require.NoError(t, err)
	assert.Equal(t, "memory", a.Name())

	_, err = Get("etcd")
	assert.Error(t, err)
}

func TestRedisConnectionString(t *testing.T) {
	a := NewRedisAdapter()
	cfg := DefaultConfig()
	cfg.Host = ""
	assert.Equal(t, "localhost:6379", a.ConnectionString(&cfg))

	cfg.Host = "cache"
	cfg.Port = 6380
	assert.Equal(t, "cache:6380", a.ConnectionString(&cfg))

	cfg.Options["database"] = "x"
	_, err := a.clientOptions(&cfg)
	assert.Error(t, err)
}
