// Package cache is the advisory key/value layer in front of the database.
//
// Callers depend only on Store. Two implementations exist: RedisStore for a
// live Redis and NoopStore when caching is off; the choice is made once at
// startup. A Store never fails a request. Write-side failures are logged and
// dropped, and read-side failures surface only as ErrUnavailable so callers
// can tell "not cached" apart from "cache could not answer".
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss means the store answered and the key does not exist.
	ErrMiss = errors.New("cache: miss")
	// ErrUnavailable means the store is disabled or the call failed.
	ErrUnavailable = errors.New("cache: unavailable")
)

// Store is a string key/value store with per-key expiry.
type Store interface {
	// Enabled reports whether the store is backed by a real cache.
	Enabled() bool
	// Get returns the value for key, ErrMiss or ErrUnavailable.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration)
	// Delete removes the given keys.
	Delete(ctx context.Context, keys ...string)
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string)
	// Swap atomically replaces the value of key with value for ttl, but only
	// while it still equals old. It reports false when the key is missing or
	// holds something else, and ErrUnavailable when the store cannot answer.
	Swap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error)
}

// NoopStore is the Store used when caching is disabled.
type NoopStore struct{}

func (NoopStore) Enabled() bool { return false }

func (NoopStore) Get(context.Context, string) (string, error) { return "", ErrUnavailable }

func (NoopStore) Set(context.Context, string, string, time.Duration) {}

func (NoopStore) Delete(context.Context, ...string) {}

func (NoopStore) DeletePrefix(context.Context, string) {}

func (NoopStore) Swap(context.Context, string, string, string, time.Duration) (bool, error) {
	return false, ErrUnavailable
}
