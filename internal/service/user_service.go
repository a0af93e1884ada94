package service

import (
	"context"
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

// UserService manages profiles. Only the owner may change or delete one.
type UserService struct {
	Users  *repository.UserRepo
	Tokens *token.Service
	Hasher utils.PasswordHasher
	Cache  cache.Store
	Events queue.Publisher
	Log    *zap.Logger
	Clock  Clock
	// ResponsePrefix is the response-cache namespace of the user listing
	// routes; it is purged after every profile change.
	ResponsePrefix string
}

func (s *UserService) List(ctx context.Context) ([]model.PublicUser, error) {
	users, err := s.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id uint64) (model.PublicUser, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return model.PublicUser{}, err
	}
	return u.Public(), nil
}

// Update applies a partial profile change on behalf of actorID.
func (s *UserService) Update(ctx context.Context, actorID, id uint64, in model.UserUpdate) (model.PublicUser, error) {
	if actorID != id {
		return model.PublicUser{}, apperror.Forbidden("You can only update your own profile")
	}
	ch := repository.UserChanges{}
	if in.Email != nil {
		e := strings.TrimSpace(*in.Email)
		ch.Email = &e
	}
	if in.Name != nil {
		n := strings.TrimSpace(*in.Name)
		ch.Name = &n
	}
	if in.Password != nil {
		hash, err := s.Hasher.Hash(*in.Password)
		if err != nil {
			return model.PublicUser{}, err
		}
		ch.PasswordHash = &hash
	}

	u, err := s.Users.Update(ctx, id, ch, s.Clock.now())
	if err != nil {
		return model.PublicUser{}, err
	}
	purgeResponses(ctx, s.Cache, s.ResponsePrefix)
	return u.Public(), nil
}

// Delete removes the actor's own account together with their todos, their
// refresh token and every cached entry derived from them.
func (s *UserService) Delete(ctx context.Context, actorID, id uint64) (model.Ack, error) {
	if actorID != id {
		return model.Ack{}, apperror.Forbidden("You can only delete your own profile")
	}
	if err := s.Users.Delete(ctx, id); err != nil {
		return model.Ack{}, err
	}

	s.Tokens.Revoke(ctx, id)
	s.Cache.DeletePrefix(ctx, cache.TodoListPrefix(id))
	s.Cache.Delete(ctx, cache.TodoStatsKey(id))
	purgeResponses(ctx, s.Cache, s.ResponsePrefix)

	s.Log.Info("user deleted", zap.Uint64("user_id", id))
	emit(ctx, s.Events, s.Log, queue.TodoEvent{Type: queue.UserDeleted, UserID: id, OccurredAt: s.Clock.now()})
	return model.Ack{Success: true}, nil
}
