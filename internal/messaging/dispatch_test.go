package messaging

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"

	"credential-lifecycle/backend/internal/logging"
)

type recordingAck struct {
	acked, nacked, requeued bool
}

func (r *recordingAck) Ack(tag uint64, multiple bool) error {
	r.acked = true
	return nil
}

func (r *recordingAck) Nack(tag uint64, multiple, requeue bool) error {
	r.nacked = true
	r.requeued = requeue
	return nil
}

func (r *recordingAck) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name                    string
		err                     error
		redelivered             bool
		acked, nacked, requeued bool
	}{
		{"success acks", nil, false, true, false, false},
		{"redelivered success acks", nil, true, true, false, false},
		{"retryable requeues once", Retry(errors.New("db down")), false, false, true, true},
		{"retryable redelivery is dead-lettered", Retry(errors.New("db down")), true, false, true, false},
		{"permanent drops", errors.New("bad payload"), false, false, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ack := &recordingAck{}
			d := amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Redelivered: tc.redelivered, Body: []byte(`{}`)}
			var seen []byte
			Dispatch(context.Background(), d, func(_ context.Context, body []byte) error {
				seen = body
				return tc.err
			}, logging.Nop())

			if string(seen) != `{}` {
				t.Errorf("handler saw %q", seen)
			}
			if ack.acked != tc.acked || ack.nacked != tc.nacked || ack.requeued != tc.requeued {
				t.Errorf("ack=%v nack=%v requeue=%v; want %v %v %v",
					ack.acked, ack.nacked, ack.requeued, tc.acked, tc.nacked, tc.requeued)
			}
		})
	}
}

func TestRetry_Wraps(t *testing.T) {
	cause := errors.New("timeout")
	err := Retry(cause)
	if !errors.Is(err, ErrRetryable) || !errors.Is(err, cause) {
		t.Errorf("Retry(%v) = %v; want both ErrRetryable and cause", cause, err)
	}
}
