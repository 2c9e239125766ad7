package worker

import (
	"context"

	"github.com/redis/go-redis/v9"

	"wardline.app/api/internal/queue"
)

// Consumer is the stream side of the worker. *queue.RedisConsumer satisfies it.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, reason string) error
	SendDLQ(ctx context.Context, msg queue.Message, reason string) error
	Quarantine(ctx context.Context, entry redis.XMessage, cause error) error
}

// Deliverer sends the notification carried by a message.
type Deliverer interface {
	Deliver(ctx context.Context, msg queue.Message) error
}
