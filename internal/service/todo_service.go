package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/todo-service/internal/apperror"
	"github.com/iliyamo/todo-service/internal/cache"
	"github.com/iliyamo/todo-service/internal/metrics"
	"github.com/iliyamo/todo-service/internal/model"
	"github.com/iliyamo/todo-service/internal/queue"
	"github.com/iliyamo/todo-service/internal/repository"
)

// DefaultTodoTTL bounds how long a listing or statistics entry is served.
const DefaultTodoTTL = 300 * time.Second

// TodoService is the per-user todo resource: reads go through the cache,
// writes drop every cached listing and the statistics of the owner once the
// write has succeeded.
type TodoService struct {
	Todos  *repository.TodoRepo
	Cache  cache.Store
	Events queue.Publisher
	Log    *zap.Logger
	Clock  Clock
	TTL    time.Duration
}

func (s *TodoService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultTodoTTL
}

func (s *TodoService) Create(ctx context.Context, userID uint64, in model.NewTodo) (model.Todo, error) {
	td, err := s.Todos.Create(ctx, userID, in, s.Clock.now())
	if err != nil {
		return model.Todo{}, err
	}
	s.invalidate(ctx, userID)
	emit(ctx, s.Events, s.Log, queue.TodoEvent{
		Type: queue.TodoCreated, UserID: userID, TodoIDs: []uint64{td.ID}, Count: 1, OccurredAt: td.CreatedAt,
	})
	return td, nil
}

// FindAll returns one page of the user's todos.
func (s *TodoService) FindAll(ctx context.Context, userID uint64, q model.TodoQuery) (model.TodoPage, error) {
	q = q.Normalize()
	key := cache.TodoListKey(userID, q.Serialize())

	var page model.TodoPage
	if s.lookup(ctx, "todos", key, &page) {
		return page, nil
	}

	todos, total, err := s.Todos.List(ctx, userID, q)
	if err != nil {
		return model.TodoPage{}, err
	}
	page = model.TodoPage{Data: todos, Meta: model.NewPageMeta(total, q.Page, q.Limit)}
	s.store(ctx, key, page)
	return page, nil
}

// FindOne returns a todo of the user. Todos of other users are not found.
func (s *TodoService) FindOne(ctx context.Context, id, userID uint64) (model.Todo, error) {
	return s.Todos.Get(ctx, id, userID)
}

func (s *TodoService) Update(ctx context.Context, id, userID uint64, upd model.TodoUpdate) (model.Todo, error) {
	if _, err := s.FindOne(ctx, id, userID); err != nil {
		return model.Todo{}, err
	}
	td, err := s.Todos.Update(ctx, id, userID, upd, s.Clock.now())
	if err != nil {
		return model.Todo{}, err
	}
	s.invalidate(ctx, userID)
	emit(ctx, s.Events, s.Log, queue.TodoEvent{
		Type: queue.TodoUpdated, UserID: userID, TodoIDs: []uint64{id}, Count: 1, OccurredAt: td.UpdatedAt,
	})
	return td, nil
}

func (s *TodoService) Remove(ctx context.Context, id, userID uint64) (model.Ack, error) {
	if _, err := s.FindOne(ctx, id, userID); err != nil {
		return model.Ack{}, err
	}
	if err := s.Todos.Delete(ctx, id, userID); err != nil {
		return model.Ack{}, err
	}
	s.invalidate(ctx, userID)
	emit(ctx, s.Events, s.Log, queue.TodoEvent{
		Type: queue.TodoDeleted, UserID: userID, TodoIDs: []uint64{id}, Count: 1, OccurredAt: s.Clock.now(),
	})
	return model.Ack{Success: true}, nil
}

// Statistics summarizes the user's todos.
func (s *TodoService) Statistics(ctx context.Context, userID uint64) (model.TodoStats, error) {
	key := cache.TodoStatsKey(userID)

	var stats model.TodoStats
	if s.lookup(ctx, "stats", key, &stats) {
		return stats, nil
	}

	total, completed, err := s.Todos.Stats(ctx, userID)
	if err != nil {
		return model.TodoStats{}, err
	}
	stats = model.NewTodoStats(total, completed)
	s.store(ctx, key, stats)
	return stats, nil
}

// UpdateMany applies upd to all ids or to none of them.
func (s *TodoService) UpdateMany(ctx context.Context, userID uint64, ids []uint64, upd model.TodoUpdate) (model.BatchResult, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return model.BatchResult{}, apperror.Validation("ids must contain at least one id")
	}
	now := s.Clock.now()

	var n int64
	err := s.Todos.InTx(ctx, func(tx *repository.TodoRepo) error {
		if err := requireOwned(ctx, tx, userID, ids); err != nil {
			return err
		}
		var err error
		n, err = tx.UpdateMany(ctx, userID, ids, upd, now)
		return err
	})
	if err != nil {
		return model.BatchResult{}, err
	}

	s.invalidate(ctx, userID)
	emit(ctx, s.Events, s.Log, queue.TodoEvent{
		Type: queue.TodoBatchUpdated, UserID: userID, TodoIDs: ids, Count: n, OccurredAt: now,
	})
	return model.BatchResult{Count: n}, nil
}

// DeleteMany deletes all ids or none of them.
func (s *TodoService) DeleteMany(ctx context.Context, userID uint64, ids []uint64) (model.BatchResult, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return model.BatchResult{}, apperror.Validation("ids must contain at least one id")
	}

	var n int64
	err := s.Todos.InTx(ctx, func(tx *repository.TodoRepo) error {
		if err := requireOwned(ctx, tx, userID, ids); err != nil {
			return err
		}
		var err error
		n, err = tx.DeleteMany(ctx, userID, ids)
		return err
	})
	if err != nil {
		return model.BatchResult{}, err
	}

	s.invalidate(ctx, userID)
	emit(ctx, s.Events, s.Log, queue.TodoEvent{
		Type: queue.TodoBatchDeleted, UserID: userID, TodoIDs: ids, Count: n, OccurredAt: s.Clock.now(),
	})
	return model.BatchResult{Count: n}, nil
}

// requireOwned fails with RecordNotFound for the first id, in request order,
// that does not exist or belongs to someone else.
func requireOwned(ctx context.Context, tx *repository.TodoRepo, userID uint64, ids []uint64) error {
	owned, err := tx.OwnedIDs(ctx, userID, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !owned[id] {
			return apperror.RecordNotFound("Todo", id)
		}
	}
	return nil
}

func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// lookup decodes a cached value into dst. It reports false on a miss, an
// unavailable cache or an undecodable entry; none of these fail the call.
func (s *TodoService) lookup(ctx context.Context, namespace, key string, dst any) bool {
	if !s.Cache.Enabled() {
		return false
	}
	raw, err := s.Cache.Get(ctx, key)
	switch {
	case errors.Is(err, cache.ErrMiss):
		metrics.CacheLookups.WithLabelValues(namespace, "miss").Inc()
		return false
	case err != nil:
		metrics.CacheLookups.WithLabelValues(namespace, "error").Inc()
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		metrics.CacheLookups.WithLabelValues(namespace, "error").Inc()
		s.Log.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	metrics.CacheLookups.WithLabelValues(namespace, "hit").Inc()
	return true
}

func (s *TodoService) store(ctx context.Context, key string, v any) {
	if !s.Cache.Enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.Log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.Cache.Set(ctx, key, string(b), s.ttl())
}

func (s *TodoService) invalidate(ctx context.Context, userID uint64) {
	if !s.Cache.Enabled() {
		return
	}
	s.Cache.DeletePrefix(ctx, cache.TodoListPrefix(userID))
	s.Cache.Delete(ctx, cache.TodoStatsKey(userID))
}
