package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrPermanent marks a task that will fail on every attempt. Workers dead-letter
// such tasks without retrying.
var ErrPermanent = errors.New("permanent task failure")

type TaskType string

const (
	TaskTypeNotification TaskType = "notification"
)

// Stream entry fields.
const (
	fieldTaskType  = "task_type"
	fieldKind      = "kind"
	fieldRecipient = "recipient"
	fieldPayload   = "payload"
	fieldAttempt   = "attempt"
	fieldTraceID   = "trace_id"
	fieldSpanID    = "span_id"
	fieldLastError = "last_error"
	fieldDLQReason = "error"
)

// Task is one outbound notification as it travels through the stream.
type Task struct {
	TaskType  TaskType
	Kind      string
	Recipient string
	Payload   map[string]string
	// TraceID and SpanID identify the request span that produced the task, if
	// it was sampled. Both are hex encoded.
	TraceID string
	SpanID  string
	Attempt int
}

// fields flattens the task into stream entry values. Attempts start at 1.
func (t Task) fields() (map[string]any, error) {
	payload := t.Payload
	if payload == nil {
		payload = map[string]string{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	attempt := t.Attempt
	if attempt < 1 {
		attempt = 1
	}

	values := map[string]any{
		fieldTaskType:  string(t.TaskType),
		fieldKind:      t.Kind,
		fieldRecipient: t.Recipient,
		fieldPayload:   string(encoded),
		fieldAttempt:   attempt,
	}
	if t.TraceID != "" {
		values[fieldTraceID] = t.TraceID
	}
	if t.SpanID != "" {
		values[fieldSpanID] = t.SpanID
	}
	return values, nil
}

func decodeTask(values map[string]any) (Task, error) {
	var (
		task Task
		err  error
	)

	raw, err := required(values, fieldTaskType)
	if err != nil {
		return Task{}, err
	}
	task.TaskType = TaskType(raw)
	if task.TaskType != TaskTypeNotification {
		return Task{}, fmt.Errorf("unknown task_type %q", raw)
	}

	if task.Kind, err = required(values, fieldKind); err != nil {
		return Task{}, err
	}
	if task.Recipient, err = required(values, fieldRecipient); err != nil {
		return Task{}, err
	}
	if task.Recipient == "" {
		return Task{}, errors.New("empty recipient")
	}

	task.Payload = map[string]string{}
	if encoded := optional(values, fieldPayload); encoded != "" {
		if err := json.Unmarshal([]byte(encoded), &task.Payload); err != nil {
			return Task{}, fmt.Errorf("decoding payload: %w", err)
		}
	}

	task.TraceID = optional(values, fieldTraceID)
	task.SpanID = optional(values, fieldSpanID)

	task.Attempt = 1
	if s := optional(values, fieldAttempt); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Task{}, fmt.Errorf("decoding attempt: %w", err)
		}
		if n > 0 {
			task.Attempt = n
		}
	}

	return task, nil
}

func required(values map[string]any, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(v), nil
}

func optional(values map[string]any, key string) string {
	v, ok := values[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}
