package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/todo-service/internal/apperror"
	"github.com/iliyamo/todo-service/internal/cache"
	"github.com/iliyamo/todo-service/internal/model"
	"github.com/iliyamo/todo-service/internal/queue"
)

func TestUserService_ListAndGet(t *testing.T) {
	e := newEnv(t)
	a := e.register(t, "a@example.com")
	b := e.register(t, "b@example.com")

	all, err := e.users.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, b.ID, all[1].ID)

	got, err := e.users.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got.Email)

	_, err = e.users.Get(context.Background(), 999)
	require.ErrorIs(t, err, apperror.ErrRecordNotFound)
}

func TestUserService_UpdateSelfOnly(t *testing.T) {
	e := newEnv(t)
	a := e.register(t, "a@example.com")
	b := e.register(t, "b@example.com")
	ctx := context.Background()

	_, err := e.users.Update(ctx, b.ID, a.ID, model.UserUpdate{Name: ptr("Mallory")})
	require.ErrorIs(t, err, apperror.ErrForbidden)

	e.cache.Set(ctx, responsePrefix+"one", "{}", time.Minute)
	got, err := e.users.Update(ctx, a.ID, a.ID, model.UserUpdate{Name: ptr(" Alice "), Password: ptr("N3wPassword")})
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.NotContains(t, e.cache.Keys(), responsePrefix+"one")

	_, err = e.auth.Login(ctx, "a@example.com", "N3wPassword")
	require.NoError(t, err)

	_, err = e.users.Update(ctx, a.ID, a.ID, model.UserUpdate{Email: ptr("b@example.com")})
	require.ErrorIs(t, err, apperror.ErrUniqueConstraint)
}

func TestUserService_DeleteCascades(t *testing.T) {
	e := newEnv(t)
	a := e.register(t, "a@example.com")
	b := e.register(t, "b@example.com")
	ctx := context.Background()

	e.todo(t, a.ID, "mine")
	_, err := e.todos.FindAll(ctx, a.ID, model.TodoQuery{})
	require.NoError(t, err)
	_, err = e.todos.Statistics(ctx, a.ID)
	require.NoError(t, err)
	_, err = e.auth.Login(ctx, "a@example.com", "Passw0rd!")
	require.NoError(t, err)

	_, err = e.users.Delete(ctx, b.ID, a.ID)
	require.ErrorIs(t, err, apperror.ErrForbidden)

	ack, err := e.users.Delete(ctx, a.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, ack.Success)

	require.NotEmpty(t, e.cache.Deletes)
	assert.Empty(t, e.cache.Keys())
	_, err = e.cache.Get(ctx, cache.RefreshTokenKey(a.ID))
	require.ErrorIs(t, err, cache.ErrMiss)

	stats, err := e.todos.Statistics(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)

	assert.Contains(t, e.events.types(), queue.UserDeleted)
}
