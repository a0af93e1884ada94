package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// scanBatch is the COUNT hint used when walking keys for DeletePrefix.
const scanBatch = 200

// compareAndSet replaces KEYS[1] with ARGV[2] only while it equals ARGV[1].
// ARGV[3] is the new expiry in milliseconds; 0 keeps the key persistent.
var compareAndSet = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ttl)
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// RedisStore implements Store on top of go-redis. Every failure is logged
// and swallowed.
type RedisStore struct {
	rdb redis.Cmdable
	log *zap.Logger
}

// NewRedisStore wraps a connected client.
func NewRedisStore(rdb redis.Cmdable, log *zap.Logger) *RedisStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisStore{rdb: rdb, log: log.Named("cache")}
}

// New picks the Store implementation: Redis when a client is available,
// the no-op store otherwise.
func New(rdb *redis.Client, log *zap.Logger) Store {
	if rdb == nil {
		return NoopStore{}
	}
	return NewRedisStore(rdb, log)
}

func (s *RedisStore) Enabled() bool { return true }

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, redis.Nil):
		return "", ErrMiss
	default:
		s.log.Warn("get failed", zap.String("key", key), zap.Error(err))
		return "", ErrUnavailable
	}
}

func (s *RedisStore) Swap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	n, err := compareAndSet.Run(ctx, s.rdb, []string{key}, old, value, ttl.Milliseconds()).Int()
	if err != nil {
		s.log.Warn("swap failed", zap.String("key", key), zap.Error(err))
		return false, ErrUnavailable
	}
	return n == 1, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		s.log.Warn("set failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn("delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// DeletePrefix walks the keyspace with SCAN and unlinks matches batch by
// batch. Keys written concurrently with the walk may survive; they still
// expire with their TTL.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) {
	match := escapeGlob(prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			s.log.Warn("scan failed", zap.String("prefix", prefix), zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := s.rdb.Unlink(ctx, keys...).Err(); err != nil {
				s.log.Warn("unlink failed", zap.String("prefix", prefix), zap.Error(err))
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// escapeGlob quotes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `\*?[]`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '*', '?', '[', ']':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
