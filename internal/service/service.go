// Package service holds the business rules of the todo backend. Services
// depend on repositories for storage, on cache.Store for advisory caching
// and on queue.Publisher for events; none of them know about HTTP.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/todo-service/internal/cache"
	"github.com/iliyamo/todo-service/internal/queue"
)

// Clock returns the current time. Timestamps are stored at millisecond
// precision to match the DATETIME(3) columns.
type Clock func() time.Time

func (c Clock) now() time.Time {
	t := time.Now()
	if c != nil {
		t = c()
	}
	return t.UTC().Truncate(time.Millisecond)
}

// publishTimeout bounds how long a write waits on the broker after commit.
const publishTimeout = 2 * time.Second

// emit publishes ev on a best-effort basis. The publish gets its own
// deadline, detached from the request's, and a broker failure is logged
// and never reaches the caller.
func emit(ctx context.Context, pub queue.Publisher, log *zap.Logger, ev queue.TodoEvent) {
	if pub == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn("event dropped", zap.String("type", ev.Type), zap.Uint64("user_id", ev.UserID), zap.Error(err))
	}
}

// purgeResponses drops the cached user listing responses under prefix.
func purgeResponses(ctx context.Context, store cache.Store, prefix string) {
	if store != nil && prefix != "" {
		store.DeletePrefix(ctx, prefix)
	}
}
