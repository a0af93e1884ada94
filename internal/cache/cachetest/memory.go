// Package cachetest provides an in-memory cache.Store for tests.
package cachetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/todo-service/internal/cache"
)

type entry struct {
	value   string
	expires time.Time
}

// Store is a map-backed cache.Store. Setting Down makes every call behave
// like an unreachable Redis: reads return ErrUnavailable and writes are
// dropped.
type Store struct {
	mu      sync.Mutex
	data    map[string]entry
	now     func() time.Time
	Down    bool
	Gets    int
	Hits    int
	Deletes []string
}

var _ cache.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: make(map[string]entry), now: time.Now}
}

// SetClock replaces the time source used for expiry.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Enabled() bool { return true }

func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets++
	if s.Down {
		return "", cache.ErrUnavailable
	}
	e, ok := s.data[key]
	if !ok {
		return "", cache.ErrMiss
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.data, key)
		return "", cache.ErrMiss
	}
	s.Hits++
	return e.value, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Down {
		return
	}
	e := entry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.data[key] = e
}

func (s *Store) Swap(_ context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Down {
		return false, cache.ErrUnavailable
	}
	e, ok := s.data[key]
	if !ok || (!e.expires.IsZero() && !s.now().Before(e.expires)) || e.value != old {
		return false, nil
	}
	e = entry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.data[key] = e
	return true, nil
}

func (s *Store) Delete(_ context.Context, keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Down {
		return
	}
	for _, k := range keys {
		s.Deletes = append(s.Deletes, k)
		delete(s.data, k)
	}
}

func (s *Store) DeletePrefix(_ context.Context, prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Down {
		return
	}
	s.Deletes = append(s.Deletes, prefix+"*")
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
		}
	}
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TTL returns the remaining lifetime of key, or zero when absent.
func (s *Store) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok || e.expires.IsZero() {
		return 0
	}
	return e.expires.Sub(s.now())
}
