package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// minSecretLen is the shortest accepted JWT signing secret.
const minSecretLen = 32

// Config holds the core runtime configuration. Each field corresponds to an
// environment variable; optional concerns (cache, rate limit, redis, events)
// have their own loaders in this package.
type Config struct {
	Env              string   // APP_ENV: development, production or test
	Port             string   // APP_PORT: HTTP port to listen on
	DBUser           string   // DB_USER
	DBPass           string   // DB_PASS (empty allowed)
	DBHost           string   // DB_HOST
	DBPort           string   // DB_PORT
	DBName           string   // DB_NAME
	DBMigrate        bool     // DB_MIGRATE: apply embedded migrations on startup
	JWTSecret        string   // JWT_SECRET: signs access tokens
	JWTRefreshSecret string   // JWT_REFRESH_SECRET: signs refresh tokens
	BcryptCost       int      // BCRYPT_COST
	CORSOrigins      []string // ALLOWED_ORIGINS, comma separated; "*" allows any
	BodyLimit        string   // BODY_LIMIT, echo size notation (e.g. "1M")
	LogLevel         string   // LOG_LEVEL
	LogPretty        bool     // LOG_PRETTY: console output instead of JSON
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c Config) IsProduction() bool { return c.Env == "production" }

// Load reads the core configuration. Unlike the optional loaders it fails
// when a required variable is missing or malformed; every problem is
// reported at once so a misconfigured deployment can be fixed in one pass.
func Load() (Config, error) {
	var l loader
	cfg := Config{
		Env:              envStr("APP_ENV", "development"),
		Port:             envStr("APP_PORT", "3000"),
		DBUser:           l.must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"),
		DBHost:           l.must("DB_HOST"),
		DBPort:           envStr("DB_PORT", "3306"),
		DBName:           l.must("DB_NAME"),
		DBMigrate:        envBool("DB_MIGRATE", true),
		JWTSecret:        l.secret("JWT_SECRET"),
		JWTRefreshSecret: l.secret("JWT_REFRESH_SECRET"),
		BcryptCost:       l.intRange("BCRYPT_COST", 10, 4, 31),
		CORSOrigins:      splitList(envStr("ALLOWED_ORIGINS", "*")),
		BodyLimit:        envStr("BODY_LIMIT", "1M"),
		LogLevel:         envStr("LOG_LEVEL", "info"),
		LogPretty:        envBool("LOG_PRETTY", false),
	}
	switch cfg.Env {
	case "development", "production", "test":
	default:
		l.fail(fmt.Errorf("APP_ENV must be one of development, production, test: got %q", cfg.Env))
	}
	if cfg.JWTSecret != "" && cfg.JWTSecret == cfg.JWTRefreshSecret {
		l.fail(errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if err := l.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDB reads only the database variables, for tools that never serve
// requests.
func LoadDB() (Config, error) {
	var l loader
	cfg := Config{
		DBUser: l.must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: l.must("DB_HOST"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: l.must("DB_NAME"),
	}
	if err := l.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loader collects configuration errors instead of exiting on the first one.
type loader struct{ errs []error }

func (l *loader) fail(err error) { l.errs = append(l.errs, err) }

func (l *loader) err() error { return errors.Join(l.errs...) }

// must retrieves the value of a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		l.fail(fmt.Errorf("missing required env var: %s", key))
		return ""
	}
	return v
}

func (l *loader) secret(key string) string {
	v := l.must(key)
	if v != "" && len(v) < minSecretLen {
		l.fail(fmt.Errorf("%s must be at least %d characters", key, minSecretLen))
	}
	return v
}

// intRange reads an optional integer and checks it lies within [lo, hi].
func (l *loader) intRange(key string, def, lo, hi int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		l.fail(fmt.Errorf("invalid int for %s: %q", key, s))
		return def
	}
	if n < lo || n > hi {
		l.fail(fmt.Errorf("%s must be between %d and %d: got %d", key, lo, hi, n))
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
