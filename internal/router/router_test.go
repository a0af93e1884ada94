package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/todo-service/internal/apperror"
	"github.com/iliyamo/todo-service/internal/cache/cachetest"
	"github.com/iliyamo/todo-service/internal/config"
	"github.com/iliyamo/todo-service/internal/handler"
	"github.com/iliyamo/todo-service/internal/middleware"
	"github.com/iliyamo/todo-service/internal/model"
	"github.com/iliyamo/todo-service/internal/queue"
	"github.com/iliyamo/todo-service/internal/repository"
	"github.com/iliyamo/todo-service/internal/service"
	"github.com/iliyamo/todo-service/internal/testutil"
	"github.com/iliyamo/todo-service/internal/token"
	"github.com/iliyamo/todo-service/internal/utils"
)

type server struct {
	t     *testing.T
	e     *echo.Echo
	store *cachetest.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testutil.OpenSQLite(t)
	store := cachetest.New()
	log := zap.NewNop()
	cacheCfg := config.CacheConfig{Enabled: true, TodoTTL: time.Minute, ResponseTTL: time.Minute, ResponsePrefix: "httpcache", ResponseMaxBodyBytes: 1 << 20}
	prefix := middleware.ResponseCachePrefix(cacheCfg, UsersNamespace)

	tokens := token.NewService("access-secret-access-secret-0123456789", "refresh-secret-refresh-secret-0123456789", store, log)
	hasher := utils.NewPasswordHasher(bcrypt.MinCost)
	users := repository.NewUserRepo(db)
	events := queue.NoopPublisher{}

	e := New(Deps{
		Config:    config.Config{CORSOrigins: []string{"*"}, BodyLimit: "1M"},
		Cache:     cacheCfg,
		RateLimit: config.RateLimitConfig{Enabled: false},
		Log:       log,
		DB:        db,
		Store:     store,
		Auth: &service.AuthService{
			Users: users, Tokens: tokens, Hasher: hasher, Events: events, Log: log,
			Cache: store, ResponsePrefix: prefix,
		},
		Users: &service.UserService{
			Users: users, Tokens: tokens, Hasher: hasher, Cache: store, Events: events, Log: log,
			ResponsePrefix: prefix,
		},
		Todos: &service.TodoService{
			Todos: repository.NewTodoRepo(db), Cache: store, Events: events, Log: log, TTL: cacheCfg.TodoTTL,
		},
	})
	return &server{t: t, e: e, store: store}
}

func (s *server) do(method, target, bearer string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// signup registers and logs in, returning the user and its access token.
func (s *server) signup(email string) (model.PublicUser, model.LoginResult) {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": email, "name": "Tester", "password": "Passw0rd"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	u := decode[model.PublicUser](s.t, rec)

	rec = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "Passw0rd"})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	return u, decode[model.LoginResult](s.t, rec)
}

func TestOpsEndpoints(t *testing.T) {
	s := newServer(t)

	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/readyz", "", nil).Code)

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)
	u, login := s.signup("ann@example.com")
	assert.Equal(t, u.ID, login.User.ID)

	rec := s.do(http.MethodGet, "/api/auth/me", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.Identity{UserID: u.ID, Email: "ann@example.com"}, decode[model.Identity](t, rec))

	rec = s.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	pair := decode[model.TokenPair](t, rec)
	assert.NotEmpty(t, pair.AccessToken)

	rec = s.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperror.CodeTokenExpired, decode[handler.ErrorBody](t, rec).Code)

	rec = s.do(http.MethodPost, "/api/auth/logout", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorEnvelope(t *testing.T) {
	s := newServer(t)
	s.signup("ann@example.com")

	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "ann@example.com", "name": "Ann", "password": "Passw0rd"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[handler.ErrorBody](t, rec)
	assert.Equal(t, apperror.CodeUniqueConstraint, body.Code)
	assert.Equal(t, "Conflict", body.Error)
	assert.Equal(t, "/api/auth/register", body.Path)
	assert.NotEmpty(t, body.Timestamp)

	rec = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperror.CodeInvalidCredentials, decode[handler.ErrorBody](t, rec).Code)

	rec = s.do(http.MethodGet, "/api/todos", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperror.CodeTokenInvalid, decode[handler.ErrorBody](t, rec).Code)

	rec = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bad"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeValidation, decode[handler.ErrorBody](t, rec).Code)

	rec = s.do(http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[handler.ErrorBody](t, rec).Code)
}

func TestTodoLifecycle(t *testing.T) {
	s := newServer(t)
	_, login := s.signup("ann@example.com")
	tok := login.AccessToken

	var ids []uint64
	for _, title := range []string{"alpha", "beta", "gamma"} {
		rec := s.do(http.MethodPost, "/api/todos", tok, map[string]any{"title": title})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		ids = append(ids, decode[model.Todo](t, rec).ID)
	}

	rec := s.do(http.MethodGet, "/api/todos?limit=2&sortBy=title&sortOrder=asc", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[model.TodoPage](t, rec)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "alpha", page.Data[0].Title)
	assert.Equal(t, model.PageMeta{Total: 3, Page: 1, Limit: 2, TotalPages: 2}, page.Meta)

	rec = s.do(http.MethodGet, "/api/todos?sortBy=password_hash", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, fmt.Sprintf("/api/todos/%d", ids[0]), tok, map[string]any{"completed": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.Todo](t, rec).Completed)

	rec = s.do(http.MethodPatch, "/api/todos/batch", tok, map[string]any{"ids": ids[1:], "data": map[string]any{"completed": true}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/todos/statistics", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[model.TodoStats](t, rec)
	assert.EqualValues(t, 3, stats.Completed)
	assert.InDelta(t, 100, stats.CompletionRate, 0.001)

	rec = s.do(http.MethodDelete, "/api/todos/batch", tok, map[string]any{"ids": []uint64{ids[1], 9999}})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Todo with identifier 9999 not found", decode[handler.ErrorBody](t, rec).Message)

	rec = s.do(http.MethodDelete, fmt.Sprintf("/api/todos/%d", ids[0]), tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, fmt.Sprintf("/api/todos/%d", ids[0]), tok, nil).Code)

	rec = s.do(http.MethodDelete, "/api/todos/batch", tok, map[string]any{"ids": ids[1:]})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())
}

func TestTodosAreScopedToOwner(t *testing.T) {
	s := newServer(t)
	_, ann := s.signup("ann@example.com")
	_, bob := s.signup("bob@example.com")

	rec := s.do(http.MethodPost, "/api/todos", ann.AccessToken, map[string]any{"title": "private"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[model.Todo](t, rec).ID

	target := fmt.Sprintf("/api/todos/%d", id)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, target, bob.AccessToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPatch, target, bob.AccessToken, map[string]any{"title": "x"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, target, bob.AccessToken, nil).Code)

	page := decode[model.TodoPage](t, s.do(http.MethodGet, "/api/todos", bob.AccessToken, nil))
	assert.Empty(t, page.Data)
}

func TestUsersResponseCache(t *testing.T) {
	s := newServer(t)
	ann, login := s.signup("ann@example.com")

	rec := s.do(http.MethodGet, "/api/users", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.NotContains(t, rec.Body.String(), "password")

	rec = s.do(http.MethodGet, "/api/users", login.AccessToken, nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Len(t, decode[[]model.PublicUser](t, rec), 1)

	// Registration purges the directory so the new user shows up.
	s.signup("bob@example.com")
	rec = s.do(http.MethodGet, "/api/users", login.AccessToken, nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Len(t, decode[[]model.PublicUser](t, rec), 2)

	self := fmt.Sprintf("/api/users/%d", ann.ID)
	rec = s.do(http.MethodPatch, self, login.AccessToken, map[string]any{"name": "Annie"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, self, login.AccessToken, nil)
	assert.Equal(t, "Annie", decode[model.PublicUser](t, rec).Name)
}

func TestUsersSelfOnly(t *testing.T) {
	s := newServer(t)
	ann, annLogin := s.signup("ann@example.com")
	_, bobLogin := s.signup("bob@example.com")

	target := fmt.Sprintf("/api/users/%d", ann.ID)
	rec := s.do(http.MethodPatch, target, bobLogin.AccessToken, map[string]any{"name": "Mallory"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperror.CodeForbidden, decode[handler.ErrorBody](t, rec).Code)

	rec = s.do(http.MethodDelete, target, bobLogin.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodDelete, target, annLogin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, target, bobLogin.AccessToken, nil).Code)
}

func TestDeletedUserCannotCreateTodos(t *testing.T) {
	s := newServer(t)
	ann, login := s.signup("ann@example.com")

	rec := s.do(http.MethodDelete, fmt.Sprintf("/api/users/%d", ann.ID), login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/todos", login.AccessToken, map[string]any{"title": "after delete"})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	assert.Equal(t, apperror.CodeRecordNotFound, decode[handler.ErrorBody](t, rec).Code)
}
