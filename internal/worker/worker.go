package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"wardline.app/api/common/logger"
	"wardline.app/api/internal/queue"
)

const readBackoff = time.Second

type Config struct {
	// MaxAttempts is the delivery budget per task, counting the first try.
	MaxAttempts int
}

// Worker delivers notification tasks read from the stream. A failed delivery
// goes back on the stream until the budget is spent and then to the DLQ.
type Worker struct {
	consumer  Consumer
	deliverer Deliverer
	cfg       Config

	stop chan struct{}
	done chan struct{}
}

func New(consumer Consumer, deliverer Deliverer, cfg Config) *Worker {
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	return &Worker{
		consumer:  consumer,
		deliverer: deliverer,
		cfg:       cfg,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Run polls until Stop is called or ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "wardline.worker"})
	slog.InfoContext(ctx, "worker started", "max_attempts", w.cfg.MaxAttempts)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			slog.InfoContext(ctx, "worker stopped")
			return nil
		default:
		}

		if err := w.poll(ctx); err != nil {
			slog.ErrorContext(ctx, "poll failed", "error", err)
			select {
			case <-ctx.Done():
			case <-w.stop:
			case <-time.After(readBackoff):
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}

func (w *Worker) poll(ctx context.Context) error {
	batch, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	for _, msg := range batch {
		if err := w.Handle(ctx, msg); err != nil {
			settleFailure(ctx, w.consumer, w.cfg.MaxAttempts, msg, err)
		}
	}
	return nil
}

// Handle delivers one task and acks it. Failures, panics included, are returned
// unsettled so the caller decides between requeue and dead-letter.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panicked: %v", r)
		}
	}()

	id, taskType := msg.ID, string(msg.TaskType)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &id,
		TaskType:  &taskType,
	})

	span := logger.StartLinkedSpan(ctx, msg.TraceID, msg.SpanID, "worker.deliver_notification",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("notification.kind", msg.Kind),
			attribute.Int("notification.attempt", msg.Attempt),
		))
	defer span.End()
	ctx = span.Context()

	if err := w.deliverer.Deliver(ctx, msg); err != nil {
		span.RecordError(err)
		return err
	}
	recordOutcome(msg.Kind, outcomeDelivered)

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The reclaimer will redeliver; a duplicate email is tolerated.
		slog.WarnContext(ctx, "ack after delivery failed", "error", err)
	}
	return nil
}

// settleFailure requeues a failed task, or dead-letters it when the failure is
// permanent or the attempt budget is spent.
func settleFailure(ctx context.Context, c Consumer, maxAttempts int, msg queue.Message, cause error) {
	log := slog.With("stream_id", msg.ID, "kind", msg.Kind, "attempt", msg.Attempt)

	if errors.Is(cause, queue.ErrPermanent) || msg.Attempt >= maxAttempts {
		log.ErrorContext(ctx, "delivery abandoned", "error", cause)
		recordOutcome(msg.Kind, outcomeDeadLetter)
		if err := c.SendDLQ(ctx, msg, cause.Error()); err != nil {
			log.ErrorContext(ctx, "dead-letter failed", "error", err)
		}
		return
	}

	log.WarnContext(ctx, "delivery failed, retrying", "error", cause)
	recordOutcome(msg.Kind, outcomeRequeued)
	if err := c.Requeue(ctx, msg, cause.Error()); err != nil {
		log.ErrorContext(ctx, "requeue failed", "error", err)
	}
}
