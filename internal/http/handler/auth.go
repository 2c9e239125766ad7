package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"wardline.app/api/internal/http/dto"
	"wardline.app/api/internal/service"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: name, email and password are required"})
		return
	}

	result, err := h.authService.Register(c.Request.Context(), req.Registration())
	if err != nil {
		respondError(c, err, "register")
		return
	}

	c.JSON(http.StatusCreated, dto.ToAuthResponse(result))
}

func (h *AuthHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: email and password are required"})
		return
	}

	result, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, err, "log in")
		return
	}

	slog.InfoContext(ctx, "user logged in", "user_id", result.User.ID)
	c.JSON(http.StatusOK, dto.ToAuthResponse(result))
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	user, err := h.authService.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		respondError(c, err, "verify email")
		return
	}

	c.JSON(http.StatusOK, dto.ToUserResponse(user))
}

func (h *AuthHandler) ResendVerification(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.authService.ResendVerification(c.Request.Context(), user); err != nil {
		respondError(c, err, "resend verification")
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "verification email sent"})
}

func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: email is required"})
		return
	}

	if err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err, "request password reset")
		return
	}

	// Same answer whether or not the account exists.
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "if the email is registered, a reset link has been sent"})
}

func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req dto.PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: token and new_password are required"})
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondError(c, err, "reset password")
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "password updated"})
}
