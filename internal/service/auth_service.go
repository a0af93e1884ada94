package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/todo-service/internal/apperror"
	"github.com/iliyamo/todo-service/internal/cache"
	"github.com/iliyamo/todo-service/internal/model"
	"github.com/iliyamo/todo-service/internal/queue"
	"github.com/iliyamo/todo-service/internal/repository"
	"github.com/iliyamo/todo-service/internal/token"
	"github.com/iliyamo/todo-service/internal/utils"
)

// AuthService implements registration, login and the token lifecycle.
type AuthService struct {
	Users  *repository.UserRepo
	Tokens *token.Service
	Hasher utils.PasswordHasher
	Events queue.Publisher
	Log    *zap.Logger
	Clock  Clock
	// Cache and ResponsePrefix locate the cached user listings, which a
	// registration makes stale.
	Cache          cache.Store
	ResponsePrefix string
}

// Register creates an account from validated input.
func (s *AuthService) Register(ctx context.Context, in model.NewUser) (model.PublicUser, error) {
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return model.PublicUser{}, err
	}
	u, err := s.Users.Create(ctx, strings.TrimSpace(in.Email), strings.TrimSpace(in.Name), hash, s.Clock.now())
	if err != nil {
		return model.PublicUser{}, err
	}
	purgeResponses(ctx, s.Cache, s.ResponsePrefix)
	s.Log.Info("user registered", zap.Uint64("user_id", u.ID))
	emit(ctx, s.Events, s.Log, queue.TodoEvent{Type: queue.UserRegistered, UserID: u.ID, OccurredAt: u.CreatedAt})
	return u.Public(), nil
}

// Login checks credentials and issues a token pair. Unknown emails and wrong
// passwords fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.LoginResult, error) {
	u, err := s.Users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, apperror.ErrRecordNotFound) {
		s.Hasher.VerifyAbsent(password)
		return model.LoginResult{}, apperror.InvalidCredentials()
	}
	if err != nil {
		return model.LoginResult{}, err
	}
	if !s.Hasher.Verify(u.PasswordHash, password) {
		return model.LoginResult{}, apperror.InvalidCredentials()
	}

	pair, err := s.Tokens.IssuePair(ctx, u.ID, u.Email)
	if err != nil {
		return model.LoginResult{}, err
	}
	return model.LoginResult{
		TokenPair: pair,
		User:      model.SessionUser{ID: u.ID, Email: u.Email, Name: u.Name},
	}, nil
}

// Refresh rotates a refresh token into a new pair. Every failure is
// reported as TokenExpired.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	pair, err := s.Tokens.Rotate(ctx, refreshToken)
	if err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			return model.TokenPair{}, apperror.TokenExpired()
		}
		return model.TokenPair{}, err
	}
	return pair, nil
}

// Logout revokes the user's refresh token. Repeated calls succeed.
func (s *AuthService) Logout(ctx context.Context, userID uint64) model.Ack {
	s.Tokens.Revoke(ctx, userID)
	return model.Ack{Success: true}
}

// VerifyToken resolves an access token to the caller's identity. Expiry
// passes through as TokenExpired; any other defect is InvalidCredentials.
func (s *AuthService) VerifyToken(raw string) (model.Identity, error) {
	claims, err := s.Tokens.VerifyAccess(raw)
	if err != nil {
		if errors.Is(err, apperror.ErrTokenExpired) {
			return model.Identity{}, err
		}
		return model.Identity{}, apperror.InvalidCredentials()
	}
	uid, err := claims.UserID()
	if err != nil {
		return model.Identity{}, apperror.InvalidCredentials()
	}
	return model.Identity{UserID: uid, Email: claims.Email}, nil
}
