package config

import "time"

// CacheConfig defines settings for cached reads. Caching only takes effect
// when Enabled is true and a Redis client could be created.
//
// TodoTTL bounds how long a cached todo listing or statistics entry may be
// served. ResponseTTL, ResponsePrefix and ResponseMaxBodyBytes configure the
// response cache placed in front of the user directory endpoints.
type CacheConfig struct {
	Enabled              bool
	TodoTTL              time.Duration
	ResponseTTL          time.Duration
	ResponsePrefix       string
	ResponseMaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
// Defaults are used when variables are not set.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:              envBool("CACHE_ENABLED", true),
		TodoTTL:              envDur("CACHE_TODO_TTL", 300*time.Second),
		ResponseTTL:          envDur("CACHE_RESPONSE_TTL", 30*time.Second),
		ResponsePrefix:       envStr("CACHE_RESPONSE_PREFIX", "httpcache"),
		ResponseMaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if cfg.TodoTTL <= 0 {
		cfg.TodoTTL = 300 * time.Second
	}
	if cfg.ResponseTTL <= 0 {
		cfg.ResponseTTL = 30 * time.Second
	}
	return cfg
}
