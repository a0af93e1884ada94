package config

// Redis backs the todo cache, refresh-token tracking, the HTTP response
// cache and the rate limiter. It is optional: when disabled or unreachable
// the constructor reports it and callers degrade to their no-op behaviour.

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes how to reach Redis.
//
//	REDIS_ENABLED  – turn Redis usage on (default false)
//	REDIS_URL      – redis://[:password@]host:port/db (default redis://localhost:6379)
//	REDIS_HOST and REDIS_PORT – override the URL's address when both are set
//	REDIS_PASSWORD – override the URL's password
//	REDIS_TLS      – enable TLS when "true" or "1"
type RedisConfig struct {
	Enabled     bool
	URL         string
	Addr        string
	Password    string
	TLS         bool
	DialTimeout time.Duration
}

func LoadRedisConfig() RedisConfig {
	cfg := RedisConfig{
		Enabled:     envBool("REDIS_ENABLED", false),
		URL:         envStr("REDIS_URL", "redis://localhost:6379"),
		Password:    os.Getenv("REDIS_PASSWORD"),
		TLS:         envBool("REDIS_TLS", false),
		DialTimeout: envDur("REDIS_DIAL_TIMEOUT", 2*time.Second),
	}
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		cfg.Addr = host + ":" + port
	}
	return cfg
}

// Options converts the configuration into go-redis client options.
func (c RedisConfig) Options() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if c.Addr != "" {
		opts.Addr = c.Addr
	}
	if c.Password != "" {
		opts.Password = c.Password
	}
	if c.TLS && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	return opts, nil
}

// NewRedisClient returns a connected client, or nil when Redis is disabled.
// A client that cannot be pinged is closed and returned as nil together
// with the error so the caller can log why caching is off.
func NewRedisClient(ctx context.Context, c RedisConfig) (*redis.Client, error) {
	if !c.Enabled {
		return nil, nil
	}
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", strings.TrimSpace(opts.Addr), err)
	}
	return client, nil
}
