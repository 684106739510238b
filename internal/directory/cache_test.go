package directory

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupCache connects to the Redis named by TEST_REDIS_ADDR and skips the
// test when it is unset or unreachable.
func setupCache(t *testing.T, next Directory) (*Cache, *redis.Client) {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := NewRedisClient(context.Background(), RedisOptions{Addr: addr, DB: 15})
	if err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return NewCache(next, rdb, time.Minute, zap.NewNop()), rdb
}

func TestCache_ChannelWorkspaceIsCached(t *testing.T) {
	dir := newFakeDirectory()
	c, rdb := setupCache(t, dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ws, err := c.ChannelWorkspace(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), ws)
	}
	assert.Equal(t, int32(1), dir.channelCalls.Load())

	v, err := rdb.Get(ctx, channelKey(10)).Result()
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, NewAccess(c).Refresh(ctx, 10))
	_, err = c.ChannelWorkspace(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), dir.channelCalls.Load())
}

func TestCache_UnknownChannelIsNotCached(t *testing.T) {
	dir := newFakeDirectory()
	c, _ := setupCache(t, dir)
	ctx := context.Background()

	_, err := c.ChannelWorkspace(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	dir.channels[99] = 2
	ws, err := c.ChannelWorkspace(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ws)
}

func TestCache_OnlyPositiveMembershipIsCached(t *testing.T) {
	dir := newFakeDirectory()
	c, _ := setupCache(t, dir)
	ctx := context.Background()

	ok, err := c.IsWorkspaceMember(ctx, 100, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	dir.members[2] = append(dir.members[2], 100)
	ok, err = c.IsWorkspaceMember(ctx, 100, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	calls := dir.memberCalls.Load()
	ok, err = c.IsWorkspaceMember(ctx, 100, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, calls, dir.memberCalls.Load())
}

func TestCache_ConcurrentMisses(t *testing.T) {
	dir := newFakeDirectory()
	c, _ := setupCache(t, dir)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ws, err := c.ChannelWorkspace(context.Background(), 11)
			assert.NoError(t, err)
			assert.Equal(t, int64(1), ws)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, dir.channelCalls.Load(), int32(16))
}

func TestCache_DegradesWhenRedisIsDown(t *testing.T) {
	dir := newFakeDirectory()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	c := NewCache(dir, rdb, time.Minute, zap.NewNop())

	ws, err := c.ChannelWorkspace(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ws)

	ok, err := c.IsWorkspaceMember(context.Background(), 101, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}
