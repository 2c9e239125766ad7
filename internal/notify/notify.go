package notify

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"wardline.app/api/internal/queue"
)

type Kind string

const (
	KindInvitation    Kind = "invitation"
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInvitation, KindVerification, KindPasswordReset:
		return true
	}
	return false
}

// Payload keys understood by the templates.
const (
	FieldLink      = "link"
	FieldTeamName  = "team_name"
	FieldInviter   = "inviter"
	FieldRecipient = "recipient_name"
)

const defaultEnqueueTimeout = 2 * time.Second

// QueueNotifier hands notifications to the worker through the Redis stream.
// Notify never blocks longer than its timeout and never returns an error.
type QueueNotifier struct {
	producer queue.Producer
	timeout  time.Duration
}

func NewQueueNotifier(producer queue.Producer) *QueueNotifier {
	return &QueueNotifier{producer: producer, timeout: defaultEnqueueTimeout}
}

func (n *QueueNotifier) Notify(ctx context.Context, recipient string, kind Kind, payload map[string]string) bool {
	// Must outlive the request: the triggering transition has already committed.
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	task := queue.Task{
		TaskType:  queue.TaskTypeNotification,
		Kind:      string(kind),
		Recipient: recipient,
		Payload:   payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		task.TraceID = sc.TraceID().String()
		task.SpanID = sc.SpanID().String()
	}

	if err := n.producer.Enqueue(enqueueCtx, task); err != nil {
		slog.WarnContext(ctx, "failed to enqueue notification",
			"error", err,
			"kind", kind,
			"recipient", recipient)
		return false
	}
	return true
}
