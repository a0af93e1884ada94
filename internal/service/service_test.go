package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/todo-service/internal/cache/cachetest"
	"github.com/iliyamo/todo-service/internal/model"
	"github.com/iliyamo/todo-service/internal/queue"
	"github.com/iliyamo/todo-service/internal/repository"
	"github.com/iliyamo/todo-service/internal/testutil"
	"github.com/iliyamo/todo-service/internal/token"
	"github.com/iliyamo/todo-service/internal/utils"
)

const responsePrefix = "httpcache:users:"

// recorder is a Publisher that keeps every event, or fails when err is set.
type recorder struct {
	mu     sync.Mutex
	events []queue.TodoEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, ev queue.TodoEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type env struct {
	cache  *cachetest.Store
	clock  *testutil.Clock
	events *recorder
	tokens *token.Service
	auth   *AuthService
	users  *UserService
	todos  *TodoService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.OpenSQLite(t)
	clock := testutil.NewClock()
	store := cachetest.New()
	store.SetClock(clock.Now)
	events := &recorder{}
	log := zap.NewNop()
	hasher := utils.NewPasswordHasher(bcrypt.MinCost)
	tokens := token.NewService(
		"access-secret-access-secret-0123456789",
		"refresh-secret-refresh-secret-0123456789",
		store, log, token.WithClock(clock.Now))
	userRepo := repository.NewUserRepo(db)

	return &env{
		cache:  store,
		clock:  clock,
		events: events,
		tokens: tokens,
		auth: &AuthService{
			Users: userRepo, Tokens: tokens, Hasher: hasher, Events: events, Log: log, Clock: clock.Now,
			Cache: store, ResponsePrefix: responsePrefix,
		},
		users: &UserService{
			Users: userRepo, Tokens: tokens, Hasher: hasher, Cache: store, Events: events, Log: log, Clock: clock.Now,
			ResponsePrefix: responsePrefix,
		},
		todos: &TodoService{
			Todos: repository.NewTodoRepo(db), Cache: store, Events: events, Log: log, Clock: clock.Now,
		},
	}
}

func (e *env) register(t *testing.T, email string) model.PublicUser {
	t.Helper()
	u, err := e.auth.Register(context.Background(), model.NewUser{Email: email, Name: "Tester", Password: "Passw0rd!"})
	require.NoError(t, err)
	return u
}

func (e *env) todo(t *testing.T, userID uint64, title string) model.Todo {
	t.Helper()
	td, err := e.todos.Create(context.Background(), userID, model.NewTodo{Title: title})
	require.NoError(t, err)
	return td
}

var errBroker = errors.New("broker down")

func ptr[T any](v T) *T { return &v }
