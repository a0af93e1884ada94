package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/todo-service/internal/cache"
	"github.com/iliyamo/todo-service/internal/config"
	"github.com/iliyamo/todo-service/internal/database"
	"github.com/iliyamo/todo-service/internal/logging"
	"github.com/iliyamo/todo-service/internal/middleware"
	"github.com/iliyamo/todo-service/internal/queue"
	"github.com/iliyamo/todo-service/internal/repository"
	"github.com/iliyamo/todo-service/internal/router"
	"github.com/iliyamo/todo-service/internal/service"
	"github.com/iliyamo/todo-service/internal/token"
	"github.com/iliyamo/todo-service/internal/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()
	redisCfg := config.LoadRedisConfig()
	eventsCfg := config.LoadEventsConfig()

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "todo-service", Env: cfg.Env})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Password: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	rdb, err := config.NewRedisClient(ctx, redisCfg)
	if err != nil {
		log.Warn("redis unavailable, caching and rate limiting disabled", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}
	var store cache.Store = cache.NoopStore{}
	if cacheCfg.Enabled {
		store = cache.New(rdb, log)
	}
	log.Info("cache configured", zap.Bool("enabled", store.Enabled()))

	eventsCtx, stopEvents := context.WithCancel(ctx)
	var consumers sync.WaitGroup
	events := startEvents(eventsCtx, &consumers, eventsCfg, log)
	defer events.Close()
	// Runs before events.Close and db.Close on every return path.
	defer func() {
		stopEvents()
		consumers.Wait()
	}()

	e := router.New(buildDeps(cfg, cacheCfg, rlCfg, store, rdb, events, db, log))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// startEvents returns the broker publisher and, when configured, runs the
// audit-log consumer until ctx ends. wg tracks the consumer goroutine.
func startEvents(ctx context.Context, wg *sync.WaitGroup, cfg config.EventsConfig, log *zap.Logger) queue.Publisher {
	if !cfg.Enabled {
		return queue.NoopPublisher{}
	}
	if cfg.ConsumerEnabled {
		consumer := queue.NewConsumer(cfg.URL, cfg.Queue, cfg.LogDir, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	}
	return queue.NewAMQPPublisher(cfg.URL, cfg.Queue, log)
}

func buildDeps(cfg config.Config, cacheCfg config.CacheConfig, rlCfg config.RateLimitConfig,
	store cache.Store, rdb *redis.Client, events queue.Publisher, sqlDB *sql.DB, log *zap.Logger) router.Deps {
	tokens := token.NewService(cfg.JWTSecret, cfg.JWTRefreshSecret, store, log)
	hasher := utils.NewPasswordHasher(cfg.BcryptCost)
	users := repository.NewUserRepo(sqlDB)
	prefix := middleware.ResponseCachePrefix(cacheCfg, router.UsersNamespace)

	return router.Deps{
		Config:    cfg,
		Cache:     cacheCfg,
		RateLimit: rlCfg,
		Log:       log,
		DB:        sqlDB,
		Redis:     rdb,
		Store:     store,
		Auth: &service.AuthService{
			Users: users, Tokens: tokens, Hasher: hasher, Events: events, Log: log.Named("auth"),
			Cache: store, ResponsePrefix: prefix,
		},
		Users: &service.UserService{
			Users: users, Tokens: tokens, Hasher: hasher, Cache: store, Events: events, Log: log.Named("users"),
			ResponsePrefix: prefix,
		},
		Todos: &service.TodoService{
			Todos: repository.NewTodoRepo(sqlDB), Cache: store, Events: events, Log: log.Named("todos"),
			TTL: cacheCfg.TodoTTL,
		},
	}
}
