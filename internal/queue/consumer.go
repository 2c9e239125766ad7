package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"wardline.app/api/common/logger"
)

type ConsumerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	DLQStream string

	BatchSize int64
	// Block bounds a single XREADGROUP call.
	Block time.Duration
	// RequeueDelay is waited out before a failed task goes back on the stream.
	RequeueDelay time.Duration
}

// Message is a task read from the stream, identified by its entry ID.
type Message struct {
	ID string
	Task
	LastError string
}

// MessageProcessor processes a queue message.
type MessageProcessor func(ctx context.Context, msg Message) error

// RedisConsumer reads notification tasks through a consumer group. Moving an
// entry elsewhere (requeue or dead-letter) acks it in the same MULTI so the
// task is never lost between the two commands.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	c := &RedisConsumer{client: client, cfg: cfg}
	if err := c.createGroup(context.Background()); err != nil { //nolint:contextcheck
		return nil, err
	}
	return c, nil
}

// createGroup starts new groups at "0" so entries written before the first
// worker came up are still delivered.
func (c *RedisConsumer) createGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err == nil || strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("creating group %s on %s: %w", c.cfg.Group, c.cfg.Stream, err)
}

// Read returns the next batch of never-delivered entries. Entries that do not
// decode are quarantined in the DLQ and left out of the batch.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "wardline.queue.consumer"})

	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", c.cfg.Stream, err)
	}

	var batch []Message
	for _, stream := range res {
		for _, entry := range stream.Messages {
			msg, err := ParseMessage(entry)
			if err != nil {
				if qErr := c.Quarantine(ctx, entry, err); qErr != nil {
					slog.ErrorContext(ctx, "failed to quarantine malformed entry",
						"error", qErr,
						"stream_id", entry.ID)
				}
				continue
			}
			batch = append(batch, msg)
		}
	}
	return batch, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", msg.ID, err)
	}
	return nil
}

// Requeue puts the task back at the tail of the stream with the next attempt
// number once RequeueDelay has passed.
func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, reason string) error {
	if c.cfg.RequeueDelay > 0 {
		timer := time.NewTimer(c.cfg.RequeueDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := msg.Task
	next.Attempt = msg.Attempt + 1
	values, err := next.fields()
	if err != nil {
		return err
	}
	if reason != "" {
		values[fieldLastError] = reason
	}

	if err := c.move(ctx, msg.ID, c.cfg.Stream, values); err != nil {
		return fmt.Errorf("requeue %s: %w", msg.ID, err)
	}
	slog.InfoContext(ctx, "task requeued", "next_attempt", next.Attempt, "reason", reason)
	return nil
}

func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, reason string) error {
	values, err := msg.Task.fields()
	if err != nil {
		return err
	}
	values[fieldDLQReason] = reason

	if err := c.move(ctx, msg.ID, c.cfg.DLQStream, values); err != nil {
		return fmt.Errorf("dead-letter %s: %w", msg.ID, err)
	}
	slog.ErrorContext(ctx, "task dead-lettered",
		"stream_id", msg.ID,
		"kind", msg.Kind,
		"attempt", msg.Attempt,
		"reason", reason)
	return nil
}

// Quarantine moves an entry that cannot be decoded to the DLQ verbatim.
func (c *RedisConsumer) Quarantine(ctx context.Context, entry redis.XMessage, cause error) error {
	values := make(map[string]any, len(entry.Values)+1)
	for k, v := range entry.Values {
		values[k] = v
	}
	values[fieldDLQReason] = "malformed: " + cause.Error()

	if err := c.move(ctx, entry.ID, c.cfg.DLQStream, values); err != nil {
		return fmt.Errorf("quarantine %s: %w", entry.ID, err)
	}
	slog.WarnContext(ctx, "malformed entry quarantined", "stream_id", entry.ID, "error", cause)
	return nil
}

func (c *RedisConsumer) move(ctx context.Context, id, dest string, values map[string]any) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAck(ctx, c.cfg.Stream, c.cfg.Group, id)
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: dest, Values: values})
		return nil
	})
	return err
}

// ParseMessage decodes a stream entry into a Message.
func ParseMessage(entry redis.XMessage) (Message, error) {
	task, err := decodeTask(entry.Values)
	if err != nil {
		return Message{}, fmt.Errorf("entry %s: %w", entry.ID, err)
	}
	return Message{
		ID:        entry.ID,
		Task:      task,
		LastError: optional(entry.Values, fieldLastError),
	}, nil
}
