package mirror

import (
	"testing"

	"tarotshare/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rds := redis.WrapClient(client)
	// 先建立连接，SetError 只影响之后的命令
	require.NoError(t, rds.Ping())
	return NewRedisKV(rds), mr
}

func TestRedisKV_RoundTrip(t *testing.T) {
	kv, mr := newRedisKV(t)

	v, err := kv.Load("missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, kv.Store("k", []byte("one")))
	require.NoError(t, kv.Store("k", []byte("two")))
	v, err = kv.Load("k")
	require.NoError(t, err)
	assert.Equal(t, "two", string(v))

	// 本地镜像不设置过期时间
	assert.Zero(t, mr.TTL("k"))

	require.NoError(t, kv.Remove("k"))
	assert.False(t, mr.Exists("k"))
	v, err = kv.Load("k")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRedisKV_OutOfMemoryIsQuotaExceeded(t *testing.T) {
	kv, mr := newRedisKV(t)

	mr.SetError("OOM command not allowed when used memory > 'maxmemory'.")
	err := kv.Store("k", []byte("value"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	mr.SetError("")
	require.NoError(t, kv.Store("k", []byte("value")))
}

func TestRedisKV_MirrorKeepsReadingsWhenLoadFails(t *testing.T) {
	kv, mr := newRedisKV(t)
	clock := newClock()
	m := New(kv, "test_readings", WithClock(clock.Now))

	require.NoError(t, m.Put(sample("a", clock.now)))
	require.NoError(t, m.Put(sample("b", clock.now)))

	mr.SetError("ERR connection reset by peer")
	err := m.Put(sample("c", clock.now))
	var persistErr *PersistError
	require.ErrorAs(t, err, &persistErr)
	mr.SetError("")

	assert.NotNil(t, m.Get("a"))
	assert.NotNil(t, m.Get("b"))
	assert.Nil(t, m.Get("c"))
	assert.Len(t, m.All(), 2)
}
