// Package token issues and verifies the service's JWTs.
//
// Access tokens live 15 minutes and refresh tokens 7 days; each kind is
// signed with its own HS256 secret. When the cache is enabled the most
// recently issued refresh token of a user is mirrored at
// refresh_token:{userId}, and only that exact token is accepted for
// rotation. Without a cache, signature and expiry decide alone.
package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/todo-service/internal/apperror"
	"github.com/iliyamo/todo-service/internal/cache"
	"github.com/iliyamo/todo-service/internal/model"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

// Claims is the payload of both token kinds. Subject holds the decimal user
// id; refresh tokens also carry a random ID (jti).
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// Service signs and verifies tokens and keeps the refresh-token mirror.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	store         cache.Store
	log           *zap.Logger
	now           func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for issuing and validation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(accessSecret, refreshSecret string, store cache.Store, log *zap.Logger, opts ...Option) *Service {
	if store == nil {
		store = cache.NoopStore{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		store:         store,
		log:           log,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) sign(secret []byte, userID uint64, email, id string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// IssueAccessToken signs a 15 minute access token.
func (s *Service) IssueAccessToken(userID uint64, email string) (string, error) {
	return s.sign(s.accessSecret, userID, email, "", AccessTTL)
}

// IssueRefreshToken signs a 7 day refresh token and mirrors it in the cache,
// replacing whatever token the user held before.
func (s *Service) IssueRefreshToken(ctx context.Context, userID uint64, email string) (string, error) {
	tok, err := s.sign(s.refreshSecret, userID, email, uuid.NewString(), RefreshTTL)
	if err != nil {
		return "", err
	}
	if s.store.Enabled() {
		s.store.Set(ctx, cache.RefreshTokenKey(userID), tok, RefreshTTL)
	}
	return tok, nil
}

// IssuePair issues an access and a refresh token for the user.
func (s *Service) IssuePair(ctx context.Context, userID uint64, email string) (model.TokenPair, error) {
	access, err := s.IssueAccessToken(userID, email)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(ctx, userID, email)
	if err != nil {
		return model.TokenPair{}, err
	}
	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks signature, algorithm and expiry against secret. Expired
// tokens yield apperror.TokenExpired, anything else apperror.TokenInvalid.
func (s *Service) Verify(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperror.TokenExpired()
	default:
		return nil, apperror.TokenInvalid()
	}
	if _, err := claims.UserID(); err != nil {
		return nil, apperror.TokenInvalid()
	}
	return claims, nil
}

// VerifyAccess verifies an access token.
func (s *Service) VerifyAccess(raw string) (*Claims, error) {
	return s.Verify(raw, s.accessSecret)
}

// VerifyRefresh verifies a refresh token and, when the cache can answer,
// requires it to be the user's current one. A missing or different cached
// value means the token was rotated or revoked and yields TokenExpired.
func (s *Service) VerifyRefresh(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.Verify(raw, s.refreshSecret)
	if err != nil {
		return nil, err
	}
	if !s.store.Enabled() {
		return claims, nil
	}
	uid, _ := claims.UserID()
	stored, err := s.store.Get(ctx, cache.RefreshTokenKey(uid))
	switch {
	case errors.Is(err, cache.ErrUnavailable):
		s.log.Warn("refresh token check skipped, cache unavailable", zap.Uint64("user_id", uid))
		return claims, nil
	case err != nil:
		return nil, apperror.TokenExpired()
	case stored != raw:
		return nil, apperror.TokenExpired()
	}
	return claims, nil
}

// Rotate exchanges a refresh token for a new pair. With a cache the stored
// token is replaced by compare-and-swap, so of several concurrent calls
// presenting the same token exactly one succeeds; the rest get
// TokenExpired. A cache failing for this call falls back to signature and
// expiry, as in VerifyRefresh.
func (s *Service) Rotate(ctx context.Context, raw string) (model.TokenPair, error) {
	claims, err := s.Verify(raw, s.refreshSecret)
	if err != nil {
		return model.TokenPair{}, err
	}
	uid, _ := claims.UserID()

	access, err := s.IssueAccessToken(uid, claims.Email)
	if err != nil {
		return model.TokenPair{}, err
	}
	refresh, err := s.sign(s.refreshSecret, uid, claims.Email, uuid.NewString(), RefreshTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	if s.store.Enabled() {
		swapped, err := s.store.Swap(ctx, cache.RefreshTokenKey(uid), raw, refresh, RefreshTTL)
		switch {
		case errors.Is(err, cache.ErrUnavailable):
			s.log.Warn("refresh token rotation unchecked, cache unavailable", zap.Uint64("user_id", uid))
		case err != nil, !swapped:
			return model.TokenPair{}, apperror.TokenExpired()
		}
	}
	return model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Revoke forgets the user's refresh token.
func (s *Service) Revoke(ctx context.Context, userID uint64) {
	if s.store.Enabled() {
		s.store.Delete(ctx, cache.RefreshTokenKey(userID))
	}
}
