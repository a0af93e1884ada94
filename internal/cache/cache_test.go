package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "refresh_token:7", RefreshTokenKey(7))
	assert.Equal(t, "todos:7:", TodoListPrefix(7))
	assert.Equal(t, `todos:7:{"page":1}`, TodoListKey(7, `{"page":1}`))
	assert.Equal(t, "todos:stats:7", TodoStatsKey(7))
}

func TestTodoListPrefix_DoesNotCoverOtherUsersOrStats(t *testing.T) {
	t.Parallel()

	p := TodoListPrefix(1)
	assert.NotContains(t, TodoListKey(12, "{}"), p)
	assert.NotEqual(t, p, TodoStatsKey(1)[:len(p)])
}

func TestEscapeGlob(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "todos:1:", escapeGlob("todos:1:"))
	assert.Equal(t, `a\*b\?c\[d\]\\`, escapeGlob(`a*b?c[d]\`))
}

func TestNoopStore(t *testing.T) {
	t.Parallel()

	var s Store = NoopStore{}
	ctx := context.Background()

	assert.False(t, s.Enabled())
	s.Set(ctx, "k", "v", time.Minute)
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	s.Delete(ctx, "k")
	s.DeletePrefix(ctx, "k")
	_, err = s.Swap(ctx, "k", "", "v", time.Minute)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNew_SelectsImplementation(t *testing.T) {
	t.Parallel()

	_, isNoop := New(nil, zap.NewNop()).(NoopStore)
	assert.True(t, isNoop)

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = rdb.Close() })
	_, isRedis := New(rdb, zap.NewNop()).(*RedisStore)
	assert.True(t, isRedis)
}

// An unreachable server must never surface as an error or panic; reads
// report ErrUnavailable and writes are dropped.
func TestRedisStore_UnreachableServerIsSwallowed(t *testing.T) {
	t.Parallel()

	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStore(rdb, zap.NewNop())
	ctx := context.Background()

	require.True(t, s.Enabled())
	_, err := s.Get(ctx, "todos:stats:1")
	assert.ErrorIs(t, err, ErrUnavailable)

	s.Set(ctx, "k", "v", time.Second)
	s.Delete(ctx, "k")
	s.Delete(ctx)
	s.DeletePrefix(ctx, "todos:1:")

	swapped, err := s.Swap(ctx, "refresh_token:1", "old", "new", time.Second)
	assert.False(t, swapped)
	assert.ErrorIs(t, err, ErrUnavailable)
}
