package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todo-service/internal/cache"
	"github.com/iliyamo/todo-service/internal/config"
)

// captureWriter forwards the response while keeping up to limit bytes of
// the body for the cache.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.truncated {
		if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
			cw.truncated = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

// ResponseCacheKey returns the key under which a GET on path?query is
// cached in namespace. Every key of a namespace starts with
// ResponseCachePrefix(cfg, namespace).
func ResponseCacheKey(cfg config.CacheConfig, namespace, path, query string) string {
	sum := sha1.Sum([]byte(path + "?" + query))
	return ResponseCachePrefix(cfg, namespace) + hex.EncodeToString(sum[:])
}

// ResponseCachePrefix is the invalidation prefix of a namespace.
func ResponseCachePrefix(cfg config.CacheConfig, namespace string) string {
	return cfg.ResponsePrefix + ":" + namespace + ":"
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	copy(out[8:], hdr)
	copy(out[8+len(hdr):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}

// ResponseCache serves repeated GETs of a route group from store. Only 200
// responses are kept, for cfg.ResponseTTL; writers purge the namespace with
// ResponseCachePrefix. A disabled store turns the middleware into a no-op.
func ResponseCache(cfg config.CacheConfig, namespace string, store cache.Store) echo.MiddlewareFunc {
	if !cfg.Enabled || store == nil || !store.Enabled() {
		return passThrough
	}
	ttl := cfg.ResponseTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}
			ctx := req.Context()
			key := ResponseCacheKey(cfg, namespace, req.URL.Path, req.URL.RawQuery)

			if raw, err := store.Get(ctx, key); err == nil {
				if status, hdr, body, ok := decodePayload([]byte(raw)); ok {
					out := c.Response().Header()
					for k, vals := range hdr {
						// Headers already set by outer middleware win.
						if _, set := out[k]; set || strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						out[k] = vals
					}
					out.Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, _ = c.Response().Write(body)
					return nil
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.ResponseMaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}

			hdr := c.Response().Header().Clone()
			for _, h := range []string{"X-Cache", echo.HeaderXRequestID, echo.HeaderContentEncoding, echo.HeaderVary} {
				hdr.Del(h)
			}
			if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
				store.Set(context.WithoutCancel(ctx), key, string(payload), ttl)
			}
			return nil
		}
	}
}
