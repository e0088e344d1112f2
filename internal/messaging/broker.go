// Package messaging is the RabbitMQ transport: durable topic exchanges, durable queues, persistent
// JSON messages and manual acknowledgement. Delivery is at-least-once; handlers must be idempotent.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/platform/fault"
)

// ErrClosed is returned when the connection or a consumer channel has gone away.
var ErrClosed = fmt.Errorf("%w: broker connection closed", fault.ErrUnavailable)

// Binding binds Queue to Exchange under RoutingKey. When DeadLetterKey is set, messages the
// queue rejects without requeue are republished to Exchange under that key.
type Binding struct {
	Queue         string
	Exchange      string
	RoutingKey    string
	DeadLetterKey string
}

func (bd Binding) queueArgs() amqp.Table {
	if bd.DeadLetterKey == "" {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange":    bd.Exchange,
		"x-dead-letter-routing-key": bd.DeadLetterKey,
	}
}

// Topology is the set of exchanges and queue bindings a process declares at startup.
type Topology struct {
	Exchanges []string
	Bindings  []Binding
}

// Publisher sends a message body to an exchange.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// Broker owns one AMQP connection and a publishing channel. Consumers get their own channel.
type Broker struct {
	conn *amqp.Connection
	mu   sync.Mutex // guards pub; amqp channels are not safe for concurrent publishing
	pub  *amqp.Channel
	log  logging.Logger

	prefetch int
}

// Dial connects to url and opens the publishing channel.
func Dial(url string, log logging.Logger) (*Broker, error) {
	if log == nil {
		log = logging.Nop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %w", fault.ErrUnavailable, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open channel: %w", fault.ErrUnavailable, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: enable publisher confirms: %w", fault.ErrUnavailable, err)
	}
	return &Broker{conn: conn, pub: ch, log: log, prefetch: 10}, nil
}

// Declare declares every exchange (durable topic) and every queue (durable) with its binding.
func (b *Broker) Declare(t Topology) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ex := range t.Exchanges {
		if err := b.pub.ExchangeDeclare(ex, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}
	for _, bd := range t.Bindings {
		if _, err := b.pub.QueueDeclare(bd.Queue, true, false, false, false, bd.queueArgs()); err != nil {
			return fmt.Errorf("declare queue %s: %w", bd.Queue, err)
		}
		if err := b.pub.QueueBind(bd.Queue, bd.RoutingKey, bd.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s/%s: %w", bd.Queue, bd.Exchange, bd.RoutingKey, err)
		}
	}
	return nil
}

// Publish sends body as a persistent JSON message and waits for the broker to confirm it.
func (b *Broker) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	b.mu.Lock()
	conf, err := b.pub.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	b.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: publish %s/%s: %w", fault.ErrUnavailable, exchange, routingKey, err)
	}
	ack, err := conf.WaitContext(ctx)
	return confirmResult(ack, err, exchange, routingKey)
}

// confirmResult maps a publisher confirm to an error. Only a positive ack counts as published.
func confirmResult(ack bool, err error, exchange, routingKey string) error {
	switch {
	case err != nil:
		return fmt.Errorf("%w: confirm %s/%s: %w", fault.ErrUnavailable, exchange, routingKey, err)
	case !ack:
		return fmt.Errorf("%w: broker nacked %s/%s", fault.ErrUnavailable, exchange, routingKey)
	}
	return nil
}

// Consume delivers messages from queue to h until ctx is canceled or the channel closes.
// See Dispatch for how handler results map to ack and nack.
func (b *Broker) Consume(ctx context.Context, queue string, h Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: open consumer channel: %w", fault.ErrUnavailable, err)
	}
	defer ch.Close()
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos %s: %w", queue, err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}
	log := b.log.With("queue", queue)
	log.Info(ctx, "consumer started")
	for {
		select {
		case <-ctx.Done():
			log.Info(ctx, "consumer stopping")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrClosed
			}
			Dispatch(ctx, d, h, log)
		}
	}
}

// Ping reports whether the connection is still open.
func (b *Broker) Ping(context.Context) error {
	if b.conn == nil || b.conn.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Close closes the publishing channel and the connection.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Join(b.pub.Close(), b.conn.Close())
}
