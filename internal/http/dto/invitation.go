package dto

import (
	"time"

	"wardline.app/api/internal/model"
	"wardline.app/api/internal/service"
)

type CreateInvitationRequest struct {
	Email string         `json:"email" binding:"required,email,max=255"`
	Role  model.TeamRole `json:"role"`
}

type InvitationResponse struct {
	ID         int64                  `json:"id,string"`
	TeamID     int64                  `json:"team_id,string"`
	Email      string                 `json:"email"`
	Role       model.TeamRole         `json:"role"`
	Status     model.InvitationStatus `json:"status"`
	InvitedBy  int64                  `json:"invited_by,string"`
	ExpiresAt  time.Time              `json:"expires_at"`
	AcceptedAt *time.Time             `json:"accepted_at,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

func ToInvitationResponse(inv *model.Invitation) InvitationResponse {
	return InvitationResponse{
		ID:         inv.ID,
		TeamID:     inv.TeamID,
		Email:      inv.Email,
		Role:       inv.Role,
		Status:     inv.Status,
		InvitedBy:  inv.InvitedBy,
		ExpiresAt:  inv.ExpiresAt,
		AcceptedAt: inv.AcceptedAt,
		CreatedAt:  inv.CreatedAt,
	}
}

func ToInvitationResponses(invitations []model.Invitation) []InvitationResponse {
	resp := make([]InvitationResponse, len(invitations))
	for i := range invitations {
		resp[i] = ToInvitationResponse(&invitations[i])
	}
	return resp
}

// InvitationLookupResponse is the public view of an invitation token.
type InvitationLookupResponse struct {
	Email       string                 `json:"email"`
	Role        model.TeamRole         `json:"role"`
	Status      model.InvitationStatus `json:"status"`
	TeamName    string                 `json:"team_name"`
	InviterName string                 `json:"inviter_name"`
	ExpiresAt   time.Time              `json:"expires_at"`
}

func ToInvitationLookupResponse(details *service.InvitationDetails) InvitationLookupResponse {
	return InvitationLookupResponse{
		Email:       details.Invitation.Email,
		Role:        details.Invitation.Role,
		Status:      details.Invitation.Status,
		TeamName:    details.TeamName,
		InviterName: details.InviterName,
		ExpiresAt:   details.Invitation.ExpiresAt,
	}
}
