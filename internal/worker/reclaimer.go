package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"wardline.app/api/common/logger"
	"wardline.app/api/internal/queue"
)

type RedisReclaimerConfig struct {
	Stream   string
	Group    string
	Consumer string
	// MinIdle is how long an entry must sit unacked before it is taken over.
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64

	MaxAttempts int
}

// RedisReclaimer takes over notifications left pending by a worker that died
// after reading them and before acking.
type RedisReclaimer struct {
	client  *redis.Client
	cfg     RedisReclaimerConfig
	target  Consumer
	process queue.MessageProcessor

	stop chan struct{}
	done chan struct{}
}

func NewRedisReclaimer(client *redis.Client, cfg RedisReclaimerConfig, consumer Consumer, processor queue.MessageProcessor) *RedisReclaimer {
	return &RedisReclaimer{
		client:  client,
		cfg:     cfg,
		target:  consumer,
		process: processor,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run sweeps every Interval until Stop is called or ctx ends.
func (r *RedisReclaimer) Run(ctx context.Context) {
	defer close(r.done)
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "wardline.worker.reclaimer"})

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started", "interval", r.cfg.Interval, "min_idle", r.cfg.MinIdle)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim sweep failed", "error", err)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stop)
	<-r.done
}

// sweep claims every stale entry in one XCLAIM and processes them in order.
// The delivery count Redis keeps for each entry feeds the attempt budget, so a
// task that keeps crashing its worker still ends up in the DLQ.
func (r *RedisReclaimer) sweep(ctx context.Context) error {
	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("xpending: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	deliveries := make(map[string]int64, len(pending))
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		deliveries[p.ID] = p.RetryCount
		ids = append(ids, p.ID)
	}

	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return fmt.Errorf("xclaim: %w", err)
	}

	slog.InfoContext(ctx, "claimed stale entries", "pending", len(pending), "claimed", len(claimed))
	for _, entry := range claimed {
		r.resume(ctx, entry, int(deliveries[entry.ID]))
	}
	return nil
}

func (r *RedisReclaimer) resume(ctx context.Context, entry redis.XMessage, delivered int) {
	msg, err := queue.ParseMessage(entry)
	if err != nil {
		if qErr := r.target.Quarantine(ctx, entry, err); qErr != nil {
			slog.ErrorContext(ctx, "failed to quarantine reclaimed entry", "stream_id", entry.ID, "error", qErr)
		}
		return
	}
	msg.Attempt = max(msg.Attempt, delivered)

	if err := r.process(ctx, msg); err != nil {
		settleFailure(ctx, r.target, r.cfg.MaxAttempts, msg, err)
	}
}
