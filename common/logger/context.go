package logger

import (
	"context"
	"log/slog"
)

type fieldsKey struct{}

// LogFields are attached to a context once and added to every record logged
// with that context.
type LogFields struct {
	UserID       *int64
	TeamID       *int64
	InvitationID *int64
	MessageID    *string // stream entry ID
	TaskType     *string
	RequestID    *string
	Component    string // e.g. "wardline.worker"
}

// WithLogFields layers fields over those already on ctx. Unset fields keep the
// outer value.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	return context.WithValue(ctx, fieldsKey{}, GetLogFields(ctx).overlay(fields))
}

func GetLogFields(ctx context.Context) LogFields {
	fields, _ := ctx.Value(fieldsKey{}).(LogFields)
	return fields
}

func (f LogFields) overlay(top LogFields) LogFields {
	f.UserID = pick(top.UserID, f.UserID)
	f.TeamID = pick(top.TeamID, f.TeamID)
	f.InvitationID = pick(top.InvitationID, f.InvitationID)
	f.MessageID = pick(top.MessageID, f.MessageID)
	f.TaskType = pick(top.TaskType, f.TaskType)
	f.RequestID = pick(top.RequestID, f.RequestID)
	if top.Component != "" {
		f.Component = top.Component
	}
	return f
}

func pick[T any](top, base *T) *T {
	if top != nil {
		return top
	}
	return base
}

func (f LogFields) attrs() []slog.Attr {
	var attrs []slog.Attr
	add64 := func(key string, v *int64) {
		if v != nil {
			attrs = append(attrs, slog.Int64(key, *v))
		}
	}
	addStr := func(key string, v *string) {
		if v != nil {
			attrs = append(attrs, slog.String(key, *v))
		}
	}

	add64("user_id", f.UserID)
	add64("team_id", f.TeamID)
	add64("invitation_id", f.InvitationID)
	addStr("message_id", f.MessageID)
	addStr("task_type", f.TaskType)
	addStr("request_id", f.RequestID)
	if f.Component != "" {
		attrs = append(attrs, slog.String("component", f.Component))
	}
	return attrs
}
