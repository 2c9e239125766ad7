package router

import (
	"github.com/gin-gonic/gin"

	"wardline.app/api/internal/http/handler"
)

func AuthRouter(rg *gin.RouterGroup, h *handler.AuthHandler, g guards) {
	rg.POST("/register", g.rateLimit, h.Register)
	rg.POST("/login", g.rateLimit, h.Login)
	rg.POST("/verify-email", g.rateLimit, h.VerifyEmail)
	rg.POST("/password-reset/request", g.rateLimit, h.RequestPasswordReset)
	rg.POST("/password-reset/confirm", g.rateLimit, h.ConfirmPasswordReset)

	authed := rg.Group("", g.auth)
	{
		authed.GET("/me", h.Me)
		authed.POST("/resend-verification", h.ResendVerification)
	}
}
