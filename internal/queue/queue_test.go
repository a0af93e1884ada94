package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var occurred = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

func TestFormatLine(t *testing.T) {
	t.Parallel()

	line := FormatLine(TodoEvent{Type: TodoBatchDeleted, UserID: 7, TodoIDs: []uint64{1, 2}, Count: 2, OccurredAt: occurred})
	assert.Equal(t, "[2025-02-03T04:05:06Z] todo.batch_deleted | user_id=7 | count=2 | todo_ids=[1,2]\n", line)

	line = FormatLine(TodoEvent{Type: UserDeleted, UserID: 7, OccurredAt: occurred})
	assert.Equal(t, "[2025-02-03T04:05:06Z] user.deleted | user_id=7 | count=0 | todo_ids=[]\n", line)
}

func TestConsumer_HandleAppends(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "logs")
	c := NewConsumer("", "todo.events", dir, nil)

	for _, id := range []uint64{1, 2} {
		body, err := json.Marshal(TodoEvent{Type: TodoCreated, UserID: 3, TodoIDs: []uint64{id}, Count: 1, OccurredAt: occurred})
		require.NoError(t, err)
		require.NoError(t, c.Handle(body))
	}

	data, err := os.ReadFile(filepath.Join(dir, "todo_events.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "todo_ids=[2]")
}

func TestConsumer_HandleRejectsBadPayload(t *testing.T) {
	t.Parallel()
	c := NewConsumer("", "todo.events", t.TempDir(), nil)

	assert.ErrorIs(t, c.Handle([]byte("{nope")), ErrBadPayload)
	assert.ErrorIs(t, c.Handle([]byte(`{"userId":1}`)), ErrBadPayload)
}

func TestConsumer_HandleDiskFailureIsRetryable(t *testing.T) {
	t.Parallel()
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	c := NewConsumer("", "todo.events", blocker, nil)

	err := c.Handle([]byte(`{"type":"todo.created","userId":1}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBadPayload)
}

func TestAMQPPublisher_WaitHonoursContext(t *testing.T) {
	t.Parallel()
	p := NewAMQPPublisher("amqp://unused", "todo.events", nil)
	p.sem <- struct{}{} // another publish is stuck dialing

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := p.Publish(ctx, TodoEvent{Type: TodoCreated})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	<-p.sem
}

func TestAMQPPublisher_DialFailure(t *testing.T) {
	t.Parallel()
	p := NewAMQPPublisher("amqp://unused", "todo.events", nil)
	dialErr := errors.New("connection refused")
	calls := 0
	p.dial = func(string) (*amqp.Connection, error) {
		calls++
		return nil, dialErr
	}

	err := p.Publish(context.Background(), TodoEvent{Type: TodoCreated})
	require.ErrorIs(t, err, dialErr)

	// The next publish dials again rather than reusing a broken channel.
	_ = p.Publish(context.Background(), TodoEvent{Type: TodoCreated})
	assert.Equal(t, 2, calls)
	require.NoError(t, p.Close())
}

func TestNoopPublisher(t *testing.T) {
	t.Parallel()
	var p Publisher = NoopPublisher{}
	require.NoError(t, p.Publish(context.Background(), TodoEvent{Type: TodoCreated}))
	require.NoError(t, p.Close())
}
