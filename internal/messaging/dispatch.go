package messaging

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"credential-lifecycle/backend/internal/logging"
)

// ErrRetryable marks a handler failure that may be redelivered once.
var ErrRetryable = errors.New("retryable")

// Retry wraps err so Dispatch requeues the message on its first delivery.
func Retry(err error) error {
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}

// Handler processes one message body.
type Handler func(ctx context.Context, body []byte) error

// Dispatch runs h on d and settles it:
//
//	nil                             ack
//	ErrRetryable, first delivery    nack with requeue
//	ErrRetryable, redelivered       nack without requeue (dead-lettered by queue policy)
//	any other error                 nack without requeue
//
// A message is therefore handled at most twice; nothing is retried on a schedule.
func Dispatch(ctx context.Context, d amqp.Delivery, h Handler, log logging.Logger) {
	err := h(ctx, d.Body)
	switch {
	case err == nil:
		if aerr := d.Ack(false); aerr != nil {
			log.Error(ctx, "ack failed", "delivery_tag", d.DeliveryTag, "error", aerr)
		}
	case errors.Is(err, ErrRetryable) && d.Redelivered:
		log.Error(ctx, "message dead-lettered after redelivery", "delivery_tag", d.DeliveryTag, "error", err)
		if nerr := d.Nack(false, false); nerr != nil {
			log.Error(ctx, "nack failed", "delivery_tag", d.DeliveryTag, "error", nerr)
		}
	case errors.Is(err, ErrRetryable):
		log.Warn(ctx, "message requeued", "delivery_tag", d.DeliveryTag, "error", err)
		if nerr := d.Nack(false, true); nerr != nil {
			log.Error(ctx, "nack failed", "delivery_tag", d.DeliveryTag, "error", nerr)
		}
	default:
		log.Error(ctx, "message rejected", "delivery_tag", d.DeliveryTag, "error", err)
		if nerr := d.Nack(false, false); nerr != nil {
			log.Error(ctx, "nack failed", "delivery_tag", d.DeliveryTag, "error", nerr)
		}
	}
}
