package dto

import (
	"time"

	"wardline.app/api/internal/model"
)

type TeamNameRequest struct {
	Name string `json:"name" binding:"required"`
}

type UpdateMemberRoleRequest struct {
	Role model.TeamRole `json:"role" binding:"required"`
}

type TransferOwnershipRequest struct {
	UserID int64 `json:"user_id,string" binding:"required"`
}

type TeamResponse struct {
	ID                   int64                    `json:"id,string"`
	Name                 string                   `json:"name"`
	SubscriptionStatus   model.SubscriptionStatus `json:"subscription_status"`
	SubscriptionPlan     *model.SubscriptionPlan  `json:"subscription_plan,omitempty"`
	MemberLimit          int                      `json:"member_limit"`
	MemberCount          *int                     `json:"member_count,omitempty"`
	TrialEndsAt          *time.Time               `json:"trial_ends_at,omitempty"`
	DeletedAt            *time.Time               `json:"deleted_at,omitempty"`
	DeletionScheduledFor *time.Time               `json:"deletion_scheduled_for,omitempty"`
	CreatedAt            time.Time                `json:"created_at"`
}

func ToTeamResponse(t *model.Team) TeamResponse {
	resp := TeamResponse{
		ID:                 t.ID,
		Name:               t.Name,
		SubscriptionStatus: t.SubscriptionStatus,
		SubscriptionPlan:   t.SubscriptionPlan,
		MemberLimit:        t.MemberLimit,
		TrialEndsAt:        t.TrialEndsAt,
		CreatedAt:          t.CreatedAt,
	}
	if t.Deletion != nil {
		deletedAt := t.Deletion.DeletedAt
		scheduledFor := t.Deletion.ScheduledFor
		resp.DeletedAt = &deletedAt
		resp.DeletionScheduledFor = &scheduledFor
	}
	return resp
}
