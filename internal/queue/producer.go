package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, task Task) error
}

type ProducerConfig struct {
	Stream string
	// MaxLen caps the stream with approximate trimming. Zero leaves it unbounded.
	MaxLen int64
}

// RedisProducer appends tasks to a Redis stream. It does not own the client.
type RedisProducer struct {
	client redis.Cmdable
	cfg    ProducerConfig
}

func NewRedisProducer(client redis.Cmdable, cfg ProducerConfig) *RedisProducer {
	return &RedisProducer{client: client, cfg: cfg}
}

func (p *RedisProducer) Enqueue(ctx context.Context, task Task) error {
	values, err := task.fields()
	if err != nil {
		return err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.cfg.Stream,
		MaxLen: p.cfg.MaxLen,
		Approx: p.cfg.MaxLen > 0,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.cfg.Stream, err)
	}

	slog.DebugContext(ctx, "task enqueued",
		"stream_id", id,
		"task_type", task.TaskType,
		"kind", task.Kind)
	return nil
}

// Dial connects to the Redis instance at rawURL and verifies it answers.
func Dial(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}
