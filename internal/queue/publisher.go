package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/todo-service/internal/metrics"
)

// Publisher hands events to the broker. Callers treat errors as advisory.
type Publisher interface {
	Publish(ctx context.Context, ev TodoEvent) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, TodoEvent) error { return nil }
func (NoopPublisher) Close() error                             { return nil }

// DialTimeout bounds the TCP connect and AMQP handshake with the broker.
const DialTimeout = 2 * time.Second

// dialBroker is amqp.Dial with DialTimeout instead of the library's 30s.
func dialBroker(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(DialTimeout),
	})
}

// AMQPPublisher publishes persistent JSON messages on the default exchange,
// routed to a durable queue. One connection and channel are shared and
// re-dialed lazily after a failure. Publishers wait for the shared channel
// only as long as their context allows.
type AMQPPublisher struct {
	url   string
	queue string
	log   *zap.Logger
	dial  func(url string) (*amqp.Connection, error)

	sem  chan struct{} // holds one token while conn/ch are in use
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, queue string, log *zap.Logger) *AMQPPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPPublisher{url: url, queue: queue, log: log, dial: dialBroker, sem: make(chan struct{}, 1)}
}

// channel returns the open channel, dialing when needed. Callers hold sem.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev TodoEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("publish %s: %w", ev.Type, ctx.Err())
	}
	defer func() { <-p.sem }()

	ch, err := p.channel()
	if err == nil {
		err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         ev.Type,
			Body:         body,
		})
	}
	if err != nil {
		p.reset()
		metrics.EventsPublished.WithLabelValues("error").Inc()
		p.log.Warn("publish event failed", zap.String("type", ev.Type), zap.Error(err))
		return err
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()
	p.reset()
	return nil
}
