package dto

import (
	"time"

	"wardline.app/api/internal/model"
	"wardline.app/api/internal/service"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required"`
}

func (r RegisterRequest) Registration() service.Registration {
	return service.Registration{Name: r.Name, Email: r.Email, Password: r.Password}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

type PasswordResetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type UserResponse struct {
	ID            int64           `json:"id,string"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Role          model.UserRole  `json:"role"`
	TeamID        *int64          `json:"team_id,omitempty,string"`
	TeamRole      *model.TeamRole `json:"team_role,omitempty"`
	IsActive      bool            `json:"is_active"`
	EmailVerified bool            `json:"email_verified"`
	CreatedAt     time.Time       `json:"created_at"`
}

func ToUserResponse(u *model.User) UserResponse {
	resp := UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          u.Role,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
	if u.Membership != nil {
		teamID := u.Membership.TeamID
		role := u.Membership.Role
		resp.TeamID = &teamID
		resp.TeamRole = &role
	}
	return resp
}

func ToUserResponses(users []model.User) []UserResponse {
	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = ToUserResponse(&users[i])
	}
	return resp
}

type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        UserResponse `json:"user"`
}

func ToAuthResponse(result *service.AuthResult) AuthResponse {
	return AuthResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		ExpiresAt:   result.ExpiresAt,
		User:        ToUserResponse(result.User),
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}
