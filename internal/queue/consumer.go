package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	logFileName = "todo_events.log"
	maxBackoff  = 30 * time.Second
)

// ErrBadPayload marks a message that can never be handled. Such messages
// are dropped; every other Handle failure is retried.
var ErrBadPayload = errors.New("bad event payload")

// Consumer drains the events queue and appends one line per event to
// {dir}/todo_events.log.
type Consumer struct {
	url   string
	queue string
	dir   string
	log   *zap.Logger

	mu sync.Mutex // serializes writes to the log file
}

func NewConsumer(url, queue, dir string, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{url: url, queue: queue, dir: dir, log: log}
}

// Run consumes until ctx is cancelled, redialing with exponential backoff
// between 1s and 30s whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := dialBroker(c.url)
		if err != nil {
			c.log.Warn("event consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("event consumer loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("event consumer qos failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.log.Info("event consumer started", zap.String("queue", c.queue))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				requeue := !errors.Is(err, ErrBadPayload)
				c.log.Warn("event not handled", zap.Bool("requeue", requeue), zap.Error(err))
				if requeue && !sleep(ctx, time.Second) {
					_ = d.Nack(false, true)
					return ctx.Err()
				}
				_ = d.Nack(false, requeue)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends it to the audit log.
func (c *Consumer) Handle(body []byte) error {
	var ev TodoEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if ev.Type == "" {
		return fmt.Errorf("%w: event without type", ErrBadPayload)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders an event as a single newline-terminated log line.
func FormatLine(ev TodoEvent) string {
	ids := make([]string, 0, len(ev.TodoIDs))
	for _, id := range ev.TodoIDs {
		ids = append(ids, fmt.Sprint(id))
	}
	return fmt.Sprintf("[%s] %s | user_id=%d | count=%d | todo_ids=[%s]\n",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.UserID, ev.Count, strings.Join(ids, ","))
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
