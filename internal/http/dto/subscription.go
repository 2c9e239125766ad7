package dto

import (
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/service"
)

type CheckoutRequest struct {
	Plan model.SubscriptionPlan `json:"plan" binding:"required"`
}

type RedirectResponse struct {
	URL string `json:"url"`
}

type SubscriptionStatusResponse struct {
	HasTeam       bool          `json:"has_team"`
	Team          *TeamResponse `json:"team,omitempty"`
	DaysRemaining *int          `json:"days_remaining,omitempty"`
}

func ToSubscriptionStatusResponse(overview *service.SubscriptionOverview, memberCount *int) SubscriptionStatusResponse {
	resp := SubscriptionStatusResponse{
		HasTeam:       overview.HasTeam,
		DaysRemaining: overview.DaysRemaining,
	}
	if overview.Team != nil {
		team := ToTeamResponse(overview.Team)
		team.MemberCount = memberCount
		resp.Team = &team
	}
	return resp
}
