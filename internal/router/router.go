// Package router assembles the echo instance: global middleware, the
// operational endpoints and the /api route groups.
package router

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/todo-service/internal/cache"
	"github.com/iliyamo/todo-service/internal/config"
	"github.com/iliyamo/todo-service/internal/handler"
	"github.com/iliyamo/todo-service/internal/middleware"
	"github.com/iliyamo/todo-service/internal/service"
)

// UsersNamespace names the response cache entries of the user directory.
const UsersNamespace = "users"

// Deps is everything the HTTP layer needs. Redis may be nil, in which case
// rate limiting is skipped.
type Deps struct {
	Config    config.Config
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Log       *zap.Logger
	DB        handler.Pinger
	Redis     *redis.Client
	Store     cache.Store

	Auth  *service.AuthService
	Users *service.UserService
	Todos *service.TodoService
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(d.Log, nil)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Secure())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: d.Config.CORSOrigins,
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	e.Use(echomw.Gzip())
	if d.Config.BodyLimit != "" {
		e.Use(echomw.BodyLimit(d.Config.BodyLimit))
	}

	RegisterOps(e, d.DB)

	limit := middleware.RateLimit(d.RateLimit, d.Redis, d.Log)
	auth := middleware.Auth(d.Auth)
	api := e.Group("/api")
	RegisterAuth(api, handler.NewAuthHandler(d.Auth), auth, limit)
	RegisterUsers(api, handler.NewUserHandler(d.Users), d.Cache, d.Store, auth, limit)
	RegisterTodos(api, handler.NewTodoHandler(d.Todos), auth, limit)
	return e
}

// RegisterOps registers the health endpoints and /metrics.
func RegisterOps(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers /api/auth. Register, login and refresh are public;
// logout and me need an access token.
func RegisterAuth(api *echo.Group, h *handler.AuthHandler, auth, limit echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/register", h.Register, limit)
	g.POST("/login", h.Login, limit)
	g.POST("/refresh", h.Refresh, limit)
	g.POST("/logout", h.Logout, auth, limit)
	g.GET("/me", h.Me, auth, limit)
}

// RegisterUsers registers /api/users. Reads go through the response cache,
// which runs after Auth so anonymous callers never see a cached body.
func RegisterUsers(api *echo.Group, h *handler.UserHandler, cfg config.CacheConfig, store cache.Store, auth, limit echo.MiddlewareFunc) {
	g := api.Group("/users", auth, limit)
	cached := middleware.ResponseCache(cfg, UsersNamespace, store)
	g.GET("", h.List, cached)
	g.GET("/:id", h.Get, cached)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

// RegisterTodos registers /api/todos. The static batch and statistics paths
// take precedence over /:id.
func RegisterTodos(api *echo.Group, h *handler.TodoHandler, auth, limit echo.MiddlewareFunc) {
	g := api.Group("/todos", auth, limit)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/statistics", h.Statistics)
	g.PATCH("/batch", h.BatchUpdate)
	g.DELETE("/batch", h.BatchDelete)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
